package auth

import "time"

type TokenManager interface {
	Generate(id, name string, now time.Time) (string, error)
	Verify(token string) (id string, name string, err error)
}

type IdGenerator interface {
	Generate() string
}
