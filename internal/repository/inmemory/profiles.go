package inmemory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	profiledomain "family-tree-go/internal/domain/profile"
)

// ProfileStore keeps profiles in process memory. Transactions hold the write
// lock for their whole duration and stage writes until fn returns nil.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]profiledomain.Profile
}

func NewProfileStore(seed ...profiledomain.Profile) *ProfileStore {
	s := &ProfileStore{profiles: make(map[string]profiledomain.Profile, len(seed))}
	for _, p := range seed {
		s.profiles[p.ID] = p.Clone()
	}
	return s
}

func (s *ProfileStore) Transaction(ctx context.Context, fn func(profiledomain.Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &profileTx{base: s.profiles, staged: map[string]profiledomain.Profile{}}
	if err := fn(tx); err != nil {
		return err
	}
	for id, p := range tx.staged {
		s.profiles[id] = p
	}
	return nil
}

func (s *ProfileStore) GetByID(_ context.Context, id string) (*profiledomain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lookup(s.profiles, nil, id)
}

func (s *ProfileStore) GetByUserID(_ context.Context, userID string) (*profiledomain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lookupUser(s.profiles, nil, userID)
}

func (s *ProfileStore) ListAll(_ context.Context) ([]profiledomain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collect(s.profiles, nil, nil, 0), nil
}

func (s *ProfileStore) Upsert(_ context.Context, profile profiledomain.Profile) (*profiledomain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return store(s.profiles, nil, s.profiles, profile)
}

func (s *ProfileStore) Search(_ context.Context, query string, limit int) ([]profiledomain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collect(s.profiles, nil, matchName(query), limit), nil
}

type profileTx struct {
	base   map[string]profiledomain.Profile
	staged map[string]profiledomain.Profile
}

func (t *profileTx) Transaction(_ context.Context, fn func(profiledomain.Repository) error) error {
	return fn(t)
}

func (t *profileTx) GetByID(_ context.Context, id string) (*profiledomain.Profile, error) {
	return lookup(t.base, t.staged, id)
}

func (t *profileTx) GetByUserID(_ context.Context, userID string) (*profiledomain.Profile, error) {
	return lookupUser(t.base, t.staged, userID)
}

func (t *profileTx) ListAll(_ context.Context) ([]profiledomain.Profile, error) {
	return collect(t.base, t.staged, nil, 0), nil
}

func (t *profileTx) Upsert(_ context.Context, profile profiledomain.Profile) (*profiledomain.Profile, error) {
	return store(t.base, t.staged, t.staged, profile)
}

func (t *profileTx) Search(_ context.Context, query string, limit int) ([]profiledomain.Profile, error) {
	return collect(t.base, t.staged, matchName(query), limit), nil
}

func lookup(base, staged map[string]profiledomain.Profile, id string) (*profiledomain.Profile, error) {
	p, ok := staged[id]
	if !ok {
		p, ok = base[id]
	}
	if !ok {
		return nil, profiledomain.ErrProfileNotFound
	}
	clone := p.Clone()
	return &clone, nil
}

func lookupUser(base, staged map[string]profiledomain.Profile, userID string) (*profiledomain.Profile, error) {
	if userID == "" {
		return nil, profiledomain.ErrProfileNotFound
	}
	for _, p := range collect(base, staged, nil, 0) {
		if p.UserID == userID {
			return &p, nil
		}
	}
	return nil, profiledomain.ErrProfileNotFound
}

// store writes profile into dst, keeping the creation time of any existing
// record in staged or base.
func store(base, staged, dst map[string]profiledomain.Profile, profile profiledomain.Profile) (*profiledomain.Profile, error) {
	if profile.ID == "" {
		return nil, errors.New("inmemory: profile id is required")
	}
	if profile.ChildrenIDs == nil {
		profile.ChildrenIDs = profiledomain.IDList{}
	}

	now := time.Now().UTC()
	if existing, err := lookup(base, staged, profile.ID); err == nil {
		profile.CreatedAt = existing.CreatedAt
	} else if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	dst[profile.ID] = profile.Clone()
	return &profile, nil
}

func collect(base, staged map[string]profiledomain.Profile, match func(profiledomain.Profile) bool, limit int) []profiledomain.Profile {
	result := make([]profiledomain.Profile, 0, len(base)+len(staged))
	for id, p := range base {
		if s, ok := staged[id]; ok {
			p = s
		}
		if match == nil || match(p) {
			result = append(result, p.Clone())
		}
	}
	for id, p := range staged {
		if _, ok := base[id]; ok {
			continue
		}
		if match == nil || match(p) {
			result = append(result, p.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].FullName != result[j].FullName {
			return result[i].FullName < result[j].FullName
		}
		return result[i].ID < result[j].ID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

func matchName(query string) func(profiledomain.Profile) bool {
	needle := strings.ToLower(query)
	return func(p profiledomain.Profile) bool {
		return strings.Contains(strings.ToLower(p.FullName), needle) ||
			strings.Contains(strings.ToLower(p.FamilyName), needle) ||
			strings.Contains(strings.ToLower(p.Initial), needle)
	}
}
