package profile

import (
	"context"
	"errors"
	"strings"

	profiledomain "family-tree-go/internal/domain/profile"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// byName matches the byte order used by the badger and in-memory stores.
const byName = `full_name COLLATE "C" asc`

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Transaction(ctx context.Context, fn func(profiledomain.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PostgresRepository{db: tx})
	})
}

// GetByID treats ids that are not uuids as unknown. Relationship columns are
// free text, so a hand edited reference must not reach the uuid typed key.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*profiledomain.Profile, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, profiledomain.ErrProfileNotFound
	}

	var profile profiledomain.Profile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, profiledomain.ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}

func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (*profiledomain.Profile, error) {
	var profile profiledomain.Profile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, profiledomain.ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]profiledomain.Profile, error) {
	var profiles []profiledomain.Profile
	if err := r.db.WithContext(ctx).
		Order(byName).
		Order("id asc").
		Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, profile profiledomain.Profile) (*profiledomain.Profile, error) {
	if profile.ChildrenIDs == nil {
		profile.ChildrenIDs = profiledomain.IDList{}
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"user_id", "full_name", "family_name", "initial", "gender", "date_of_birth",
				"marital_status", "picture_url", "father_id", "mother_id", "spouse_id",
				"children_ids", "updated_at",
			}),
		}).
		Create(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *PostgresRepository) Search(ctx context.Context, query string, limit int) ([]profiledomain.Profile, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"

	var profiles []profiledomain.Profile
	if err := r.db.WithContext(ctx).
		Where("lower(full_name) LIKE ? OR lower(family_name) LIKE ? OR lower(initial) LIKE ?", pattern, pattern, pattern).
		Order(byName).
		Order("id asc").
		Limit(limit).
		Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
