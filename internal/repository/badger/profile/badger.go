package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	profiledomain "family-tree-go/internal/domain/profile"
	"github.com/dgraph-io/badger/v4"
)

const (
	profilePrefix = "profile:"
	userPrefix    = "profile-user:"
)

// BadgerRepository stores each profile as a JSON document keyed by id, plus
// a user id index. Inside Transaction every call shares one badger txn.
type BadgerRepository struct {
	db  *badger.DB
	txn *badger.Txn
}

func NewBadger(db *badger.DB) *BadgerRepository {
	return &BadgerRepository{db: db}
}

func (r *BadgerRepository) Transaction(ctx context.Context, fn func(profiledomain.Repository) error) error {
	if r.txn != nil {
		return fn(r)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return fn(&BadgerRepository{db: r.db, txn: txn})
	})
}

func (r *BadgerRepository) GetByID(ctx context.Context, id string) (*profiledomain.Profile, error) {
	var profile *profiledomain.Profile
	err := r.view(ctx, func(txn *badger.Txn) error {
		var err error
		profile, err = getProfile(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (r *BadgerRepository) GetByUserID(ctx context.Context, userID string) (*profiledomain.Profile, error) {
	var profile *profiledomain.Profile
	err := r.view(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(userPrefix + userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return profiledomain.ErrProfileNotFound
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		profile, err = getProfile(txn, string(id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (r *BadgerRepository) ListAll(ctx context.Context) ([]profiledomain.Profile, error) {
	return r.scan(ctx, func(profiledomain.Profile) bool { return true }, 0)
}

func (r *BadgerRepository) Upsert(ctx context.Context, profile profiledomain.Profile) (*profiledomain.Profile, error) {
	if profile.ID == "" {
		return nil, errors.New("badger: profile id is required")
	}
	if profile.ChildrenIDs == nil {
		profile.ChildrenIDs = profiledomain.IDList{}
	}

	now := time.Now().UTC()
	err := r.update(ctx, func(txn *badger.Txn) error {
		existing, err := getProfile(txn, profile.ID)
		switch {
		case errors.Is(err, profiledomain.ErrProfileNotFound):
			if profile.CreatedAt.IsZero() {
				profile.CreatedAt = now
			}
		case err != nil:
			return err
		default:
			profile.CreatedAt = existing.CreatedAt
			if existing.UserID != "" && existing.UserID != profile.UserID {
				if err := txn.Delete([]byte(userPrefix + existing.UserID)); err != nil {
					return err
				}
			}
		}
		profile.UpdatedAt = now

		data, err := json.Marshal(profile)
		if err != nil {
			return fmt.Errorf("encode profile %s: %w", profile.ID, err)
		}
		if err := txn.Set([]byte(profilePrefix+profile.ID), data); err != nil {
			return err
		}
		if profile.UserID != "" {
			return txn.Set([]byte(userPrefix+profile.UserID), []byte(profile.ID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *BadgerRepository) Search(ctx context.Context, query string, limit int) ([]profiledomain.Profile, error) {
	needle := strings.ToLower(query)
	return r.scan(ctx, func(p profiledomain.Profile) bool {
		return strings.Contains(strings.ToLower(p.FullName), needle) ||
			strings.Contains(strings.ToLower(p.FamilyName), needle) ||
			strings.Contains(strings.ToLower(p.Initial), needle)
	}, limit)
}

func (r *BadgerRepository) scan(ctx context.Context, match func(profiledomain.Profile) bool, limit int) ([]profiledomain.Profile, error) {
	profiles := []profiledomain.Profile{}
	err := r.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(profilePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var p profiledomain.Profile
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &p)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			if match(p) {
				profiles = append(profiles, p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].FullName != profiles[j].FullName {
			return profiles[i].FullName < profiles[j].FullName
		}
		return profiles[i].ID < profiles[j].ID
	})
	if limit > 0 && len(profiles) > limit {
		profiles = profiles[:limit]
	}
	return profiles, nil
}

func (r *BadgerRepository) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.txn != nil {
		return fn(r.txn)
	}
	return r.db.View(fn)
}

func (r *BadgerRepository) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.txn != nil {
		return fn(r.txn)
	}
	return r.db.Update(fn)
}

func getProfile(txn *badger.Txn, id string) (*profiledomain.Profile, error) {
	item, err := txn.Get([]byte(profilePrefix + id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, profiledomain.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	var profile profiledomain.Profile
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &profile)
	}); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", id, err)
	}
	return &profile, nil
}
