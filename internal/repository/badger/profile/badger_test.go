package profile

import (
	"context"
	"errors"
	"testing"

	profiledomain "family-tree-go/internal/domain/profile"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openRepo(t *testing.T) *BadgerRepository {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewBadger(db)
}

func TestUpsertAndGet(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()

	saved, err := repo.Upsert(ctx, profiledomain.Profile{ID: "p1", UserID: "u1", FullName: "Ada", Gender: profiledomain.GenderFemale})
	require.NoError(t, err)
	assert.False(t, saved.CreatedAt.IsZero())
	assert.NotNil(t, saved.ChildrenIDs)

	byID, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", byID.FullName)

	byUser, err := repo.GetByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "p1", byUser.ID)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, profiledomain.ErrProfileNotFound)
	_, err = repo.GetByUserID(ctx, "nobody")
	assert.ErrorIs(t, err, profiledomain.ErrProfileNotFound)
}

func TestUpsertReplacesAndKeepsCreatedAt(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()

	first, err := repo.Upsert(ctx, profiledomain.Profile{ID: "p1", UserID: "u1", FullName: "Ada"})
	require.NoError(t, err)

	second, err := repo.Upsert(ctx, profiledomain.Profile{ID: "p1", UserID: "u2", FullName: "Ada L", ChildrenIDs: profiledomain.IDList{"c1"}})
	require.NoError(t, err)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))

	got, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Ada L", got.FullName)
	assert.Equal(t, profiledomain.IDList{"c1"}, got.ChildrenIDs)

	_, err = repo.GetByUserID(ctx, "u1")
	assert.ErrorIs(t, err, profiledomain.ErrProfileNotFound)
}

func TestTransactionRollsBackOnError(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()
	_, err := repo.Upsert(ctx, profiledomain.Profile{ID: "a", FullName: "A"})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = repo.Transaction(ctx, func(tx profiledomain.Repository) error {
		if _, err := tx.Upsert(ctx, profiledomain.Profile{ID: "a", FullName: "A", SpouseID: "b"}); err != nil {
			return err
		}
		if _, err := tx.Upsert(ctx, profiledomain.Profile{ID: "b", FullName: "B", SpouseID: "a"}); err != nil {
			return err
		}
		inside, err := tx.GetByID(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, "a", inside.SpouseID)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	a, err := repo.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, a.SpouseID)
	_, err = repo.GetByID(ctx, "b")
	assert.ErrorIs(t, err, profiledomain.ErrProfileNotFound)
}

func TestSearchAndList(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()
	for _, p := range []profiledomain.Profile{
		{ID: "1", FullName: "Charlie Brown"},
		{ID: "2", FullName: "Alice", FamilyName: "Brownstone"},
		{ID: "3", FullName: "Bob", Initial: "BR"},
		{ID: "4", FullName: "Dora"},
	} {
		_, err := repo.Upsert(ctx, p)
		require.NoError(t, err)
	}

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "Alice", all[0].FullName)

	found, err := repo.Search(ctx, "bRo", 10)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "2", found[0].ID)
	assert.Equal(t, "1", found[1].ID)

	found, err = repo.Search(ctx, "br", 2)
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestRelationshipIndexOnBadger(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()
	for _, id := range []string{"dad", "kid", "partner"} {
		_, err := repo.Upsert(ctx, profiledomain.Profile{ID: id, FullName: id})
		require.NoError(t, err)
	}
	idx := profiledomain.NewIndex(repo, nil)

	require.NoError(t, idx.SetParent(ctx, "kid", "dad", profiledomain.RoleFather))
	require.NoError(t, idx.SetSpouse(ctx, "kid", "partner"))

	dad, err := repo.GetByID(ctx, "dad")
	require.NoError(t, err)
	assert.Equal(t, profiledomain.IDList{"kid"}, dad.ChildrenIDs)

	partner, err := repo.GetByID(ctx, "partner")
	require.NoError(t, err)
	assert.Equal(t, "kid", partner.SpouseID)
	assert.Equal(t, profiledomain.MaritalStatusMarried, partner.MaritalStatus)

	err = idx.SetParent(ctx, "kid", "ghost", profiledomain.RoleMother)
	assert.ErrorIs(t, err, profiledomain.ErrProfileNotFound)
	kid, err := repo.GetByID(ctx, "kid")
	require.NoError(t, err)
	assert.Empty(t, kid.MotherID)
}

func TestListAllInByteOrder(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()

	for _, p := range []profiledomain.Profile{
		{ID: "2", FullName: "adam Low"},
		{ID: "1", FullName: "Bob Low"},
		{ID: "0", FullName: "Bob Low"},
	} {
		_, err := repo.Upsert(ctx, p)
		require.NoError(t, err)
	}

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"0", "1", "2"}, []string{all[0].ID, all[1].ID, all[2].ID})
}
