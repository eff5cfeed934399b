package handler

import (
	profiledomain "family-tree-go/internal/domain/profile"
	treedomain "family-tree-go/internal/domain/tree"
	"family-tree-go/pkg/logger"
	"family-tree-go/pkg/validator"
)

type Handlers struct {
	Profiles *profiledomain.Service
	Trees    *treedomain.Builder
	validate *validator.Validator
	log      logger.Logger
}

func New(profiles *profiledomain.Service, trees *treedomain.Builder, log logger.Logger) *Handlers {
	return &Handlers{
		Profiles: profiles,
		Trees:    trees,
		validate: validator.New(),
		log:      log,
	}
}
