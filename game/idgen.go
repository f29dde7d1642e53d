package game

import "github.com/google/uuid"

type uuidGen struct{}

func NewIdGen() UniqueIdGenerator {
	return uuidGen{}
}

func (uuidGen) Generate() string {
	return uuid.NewString()
}
