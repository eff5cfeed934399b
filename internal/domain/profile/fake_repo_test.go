package profile

import (
	"context"
	"errors"
	"sort"
	"strings"
)

type fakeProfileRepo struct {
	profiles map[string]Profile
	order    []string
	failOn   map[string]error
	writes   int
}

func newFakeProfileRepo(profiles ...Profile) *fakeProfileRepo {
	r := &fakeProfileRepo{
		profiles: make(map[string]Profile),
		failOn:   make(map[string]error),
	}
	for _, p := range profiles {
		if p.MaritalStatus == "" {
			p.MaritalStatus = MaritalStatusUnmarried
		}
		if p.Gender == "" {
			p.Gender = GenderOther
		}
		r.profiles[p.ID] = p.Clone()
		r.order = append(r.order, p.ID)
	}
	return r
}

// Transaction stages writes on a copy and keeps them only when fn succeeds.
func (r *fakeProfileRepo) Transaction(ctx context.Context, fn func(Repository) error) error {
	staged := &fakeProfileRepo{
		profiles: make(map[string]Profile, len(r.profiles)),
		order:    append([]string(nil), r.order...),
		failOn:   r.failOn,
	}
	for id, p := range r.profiles {
		staged.profiles[id] = p.Clone()
	}

	if err := fn(staged); err != nil {
		return err
	}

	r.profiles = staged.profiles
	r.order = staged.order
	r.writes += staged.writes
	return nil
}

func (r *fakeProfileRepo) GetByID(ctx context.Context, id string) (*Profile, error) {
	p, ok := r.profiles[id]
	if !ok {
		return nil, ErrProfileNotFound
	}
	clone := p.Clone()
	return &clone, nil
}

func (r *fakeProfileRepo) GetByUserID(ctx context.Context, userID string) (*Profile, error) {
	for _, id := range r.order {
		if p := r.profiles[id]; p.UserID == userID {
			clone := p.Clone()
			return &clone, nil
		}
	}
	return nil, ErrProfileNotFound
}

func (r *fakeProfileRepo) ListAll(ctx context.Context) ([]Profile, error) {
	result := make([]Profile, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.profiles[id].Clone())
	}
	return result, nil
}

func (r *fakeProfileRepo) Upsert(ctx context.Context, p Profile) (*Profile, error) {
	if err, ok := r.failOn[p.ID]; ok {
		return nil, err
	}
	if _, ok := r.profiles[p.ID]; !ok {
		r.order = append(r.order, p.ID)
	}
	r.profiles[p.ID] = p.Clone()
	r.writes++
	clone := p.Clone()
	return &clone, nil
}

func (r *fakeProfileRepo) Search(ctx context.Context, query string, limit int) ([]Profile, error) {
	query = strings.ToLower(query)
	result := make([]Profile, 0)
	for _, id := range r.order {
		p := r.profiles[id]
		if strings.Contains(strings.ToLower(p.FullName), query) {
			result = append(result, p.Clone())
		}
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

func (r *fakeProfileRepo) mustGet(id string) Profile {
	p, ok := r.profiles[id]
	if !ok {
		panic("missing profile " + id)
	}
	return p
}

func (r *fakeProfileRepo) ids() []string {
	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

var errStoreDown = errors.New("store down")
