package profile

import "time"

type Cache interface {
	GetByID(id string) (*Profile, bool)
	SetByID(id string, profile *Profile, ttl time.Duration)
	DeleteByID(ids ...string)
	Clear()
}

type noopCache struct{}

func NoopCache() Cache {
	return noopCache{}
}

func (noopCache) GetByID(string) (*Profile, bool) {
	return nil, false
}

func (noopCache) SetByID(string, *Profile, time.Duration) {}

func (noopCache) DeleteByID(...string) {}

func (noopCache) Clear() {}
