package game

import "time"

type ticker struct{}

func NewTickerGen() PeriodicTickerChannelCreator {
	return ticker{}
}

func (ticker) Create(duration time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(duration)
	return t.C, t.Stop
}
