package profile

import "context"

// Repository is the profile store. GetByID and GetByUserID return
// ErrProfileNotFound for unknown keys. Upsert inserts a new id or replaces the
// stored record wholesale.
type Repository interface {
	Transaction(ctx context.Context, fn func(Repository) error) error
	GetByID(ctx context.Context, id string) (*Profile, error)
	GetByUserID(ctx context.Context, userID string) (*Profile, error)
	ListAll(ctx context.Context) ([]Profile, error)
	Upsert(ctx context.Context, profile Profile) (*Profile, error)
	Search(ctx context.Context, query string, limit int) ([]Profile, error)
}
