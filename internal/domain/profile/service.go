package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	searchMinQueryLength = 2
	searchDefaultLimit   = 10
	searchMaxLimit       = 50
	parentMinYearsOlder  = 15
)

type Service struct {
	repo     Repository
	index    *Index
	cache    Cache
	cacheTTL time.Duration
}

func NewService(repo Repository, index *Index, cache Cache, cacheTTL time.Duration) *Service {
	if cache == nil {
		cache = NoopCache()
	}
	if index == nil {
		index = NewIndex(repo, cache)
	}
	return &Service{
		repo:     repo,
		index:    index,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

func (s *Service) Relationships() *Index {
	return s.index
}

func (s *Service) GetProfile(ctx context.Context, id string) (*Profile, error) {
	if cached, ok := s.cache.GetByID(id); ok {
		profileCacheLookups.WithLabelValues("hit").Inc()
		return cached, nil
	}
	profileCacheLookups.WithLabelValues("miss").Inc()

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.SetByID(id, p, s.cacheTTL)
	return p, nil
}

func (s *Service) GetProfileByUser(ctx context.Context, userID string) (*Profile, error) {
	return s.repo.GetByUserID(ctx, userID)
}

func (s *Service) ListProfiles(ctx context.Context) ([]Profile, error) {
	return s.repo.ListAll(ctx)
}

// CreateProfile registers the profile of userID and links the selected
// relatives. Nothing is stored if any relationship fails.
func (s *Service) CreateProfile(ctx context.Context, userID string, input CreateInput) (*Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fieldError("user_id", ErrInvalidInput)
	}

	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		return nil, fieldError("full_name", ErrInvalidInput)
	}
	if !input.Gender.Valid() {
		return nil, fieldError("gender", ErrInvalidInput)
	}

	var result *Profile
	changed := make(touched)
	err := s.repo.Transaction(ctx, func(tx Repository) error {
		_, err := tx.GetByUserID(ctx, userID)
		switch {
		case err == nil:
			return ErrProfileExists
		case !errors.Is(err, ErrProfileNotFound):
			return fmt.Errorf("get profile by user %s: %w", userID, err)
		}

		p := Profile{
			ID:            uuid.NewString(),
			UserID:        userID,
			FullName:      fullName,
			FamilyName:    strings.TrimSpace(input.FamilyName),
			Initial:       strings.TrimSpace(input.Initial),
			Gender:        input.Gender,
			DateOfBirth:   input.DateOfBirth,
			MaritalStatus: MaritalStatusUnmarried,
			PictureURL:    strings.TrimSpace(input.PictureURL),
			ChildrenIDs:   IDList{},
		}
		if _, err := save(ctx, tx, changed, p); err != nil {
			return err
		}

		ids, err := s.index.Apply(ctx, tx, p.ID, input.Relations)
		if err != nil {
			return err
		}
		changed.add(ids...)

		result, err = tx.GetByID(ctx, p.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.DeleteByID(changed.ids()...)
	return result, nil
}

func (s *Service) UpdateProfile(ctx context.Context, id string, input UpdateInput) (*Profile, error) {
	var result *Profile
	changed := make(touched)
	err := s.repo.Transaction(ctx, func(tx Repository) error {
		current, err := load(ctx, tx, id, "profile_id")
		if err != nil {
			return err
		}

		next, dirty, err := patch(*current, input)
		if err != nil {
			return err
		}
		if dirty {
			if _, err := save(ctx, tx, changed, next); err != nil {
				return err
			}
		}

		ids, err := s.index.Apply(ctx, tx, id, input.Relations)
		if err != nil {
			return err
		}
		changed.add(ids...)

		result, err = tx.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.DeleteByID(changed.ids()...)
	return result, nil
}

// Search returns profiles whose full name, family name or initial contains
// query, ignoring case. Queries shorter than two characters match nothing.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]Profile, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < searchMinQueryLength {
		return []Profile{}, nil
	}
	if limit <= 0 {
		limit = searchDefaultLimit
	}
	if limit > searchMaxLimit {
		limit = searchMaxLimit
	}
	return s.repo.Search(ctx, query, limit)
}

// PotentialParents lists profiles born at least fifteen years before
// dateOfBirth. Profiles without a birth date are always included.
func (s *Service) PotentialParents(ctx context.Context, dateOfBirth *time.Time) ([]Profile, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if dateOfBirth == nil {
		return all, nil
	}

	result := make([]Profile, 0, len(all))
	for _, p := range all {
		if p.DateOfBirth == nil || dateOfBirth.Year()-p.DateOfBirth.Year() >= parentMinYearsOlder {
			result = append(result, p)
		}
	}
	return result, nil
}

// PotentialSpouses lists every profile except id itself, its parents and its
// children.
func (s *Service) PotentialSpouses(ctx context.Context, id string) ([]Profile, error) {
	self, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Profile, 0, len(all))
	for _, p := range all {
		if p.ID == self.ID || self.HasParent(p.ID) || self.ChildrenIDs.Contains(p.ID) {
			continue
		}
		result = append(result, p)
	}
	return result, nil
}

func patch(p Profile, input UpdateInput) (Profile, bool, error) {
	next := p.Clone()
	dirty := false

	if input.FullName != nil {
		name := strings.TrimSpace(*input.FullName)
		if name == "" {
			return p, false, fieldError("full_name", ErrInvalidInput)
		}
		next.FullName = name
		dirty = true
	}
	if input.FamilyName != nil {
		next.FamilyName = strings.TrimSpace(*input.FamilyName)
		dirty = true
	}
	if input.Initial != nil {
		next.Initial = strings.TrimSpace(*input.Initial)
		dirty = true
	}
	if input.Gender != nil {
		if !input.Gender.Valid() {
			return p, false, fieldError("gender", ErrInvalidInput)
		}
		next.Gender = *input.Gender
		dirty = true
	}
	if input.DateOfBirth != nil {
		dob := *input.DateOfBirth
		next.DateOfBirth = &dob
		dirty = true
	}
	if input.PictureURL != nil {
		next.PictureURL = strings.TrimSpace(*input.PictureURL)
		dirty = true
	}

	return next, dirty, nil
}
