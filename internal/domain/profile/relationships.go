package profile

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Index keeps father/mother/spouse references and the mirrored child lists
// consistent. Every public operation runs in a single store transaction, so
// both sides of a pair are committed together or not at all.
type Index struct {
	repo  Repository
	cache Cache
}

func NewIndex(repo Repository, cache Cache) *Index {
	if cache == nil {
		cache = NoopCache()
	}
	return &Index{repo: repo, cache: cache}
}

// SetParent points child's father or mother reference at parentID and adds
// the child to the parent's child list. A previous parent in the same role
// loses the child from its list unless the child still references it through
// the other role.
func (i *Index) SetParent(ctx context.Context, childID, parentID string, role Role) error {
	return i.run(ctx, "set_parent", func(tx Repository, t touched) error {
		return setParent(ctx, tx, t, childID, parentID, role)
	})
}

func (i *Index) RemoveParent(ctx context.Context, childID string, role Role) error {
	return i.run(ctx, "remove_parent", func(tx Repository, t touched) error {
		return removeParent(ctx, tx, t, childID, role)
	})
}

// SetSpouse marries a and b. It fails with ErrAlreadyMarried when either side
// is married to somebody else; callers must ClearSpouse first.
func (i *Index) SetSpouse(ctx context.Context, a, b string) error {
	return i.run(ctx, "set_spouse", func(tx Repository, t touched) error {
		return setSpouse(ctx, tx, t, a, b)
	})
}

func (i *Index) ClearSpouse(ctx context.Context, id string) error {
	return i.run(ctx, "clear_spouse", func(tx Repository, t touched) error {
		return clearSpouse(ctx, tx, t, id)
	})
}

// Apply performs the relationship edits collected by an edit form inside the
// caller's transaction and returns the ids of every profile it wrote. A spouse
// change clears the previous partner before marrying the new one.
func (i *Index) Apply(ctx context.Context, tx Repository, profileID string, change RelationshipChange) ([]string, error) {
	t := make(touched)
	if err := apply(ctx, tx, t, profileID, change); err != nil {
		return nil, err
	}
	return t.ids(), nil
}

func (i *Index) run(ctx context.Context, operation string, fn func(tx Repository, t touched) error) error {
	t := make(touched)
	err := i.repo.Transaction(ctx, func(tx Repository) error {
		return fn(tx, t)
	})
	relationshipOperations.WithLabelValues(operation, resultLabel(err)).Inc()
	if err != nil {
		return err
	}
	i.cache.DeleteByID(t.ids()...)
	return nil
}

func apply(ctx context.Context, tx Repository, t touched, profileID string, change RelationshipChange) error {
	parents := []struct {
		role Role
		ref  *RefChange
	}{
		{RoleFather, change.Father},
		{RoleMother, change.Mother},
	}
	for _, parent := range parents {
		if parent.ref == nil {
			continue
		}
		var err error
		if parent.ref.ID == "" {
			err = removeParent(ctx, tx, t, profileID, parent.role)
		} else {
			err = setParent(ctx, tx, t, profileID, parent.ref.ID, parent.role)
		}
		if err != nil {
			return err
		}
	}

	if change.Spouse == nil {
		return nil
	}
	if change.Spouse.ID == "" {
		return clearSpouse(ctx, tx, t, profileID)
	}

	current, err := load(ctx, tx, profileID, "profile_id")
	if err != nil {
		return err
	}
	if current.SpouseID != "" && current.SpouseID != change.Spouse.ID {
		if err := clearSpouse(ctx, tx, t, profileID); err != nil {
			return err
		}
	}
	return setSpouse(ctx, tx, t, profileID, change.Spouse.ID)
}

func setParent(ctx context.Context, tx Repository, t touched, childID, parentID string, role Role) error {
	if !role.Valid() {
		return fieldError("role", ErrInvalidRole)
	}
	if parentID == "" {
		return fieldError(role.Field(), ErrInvalidInput)
	}
	if childID == parentID {
		return fieldError(role.Field(), ErrSelfReference)
	}

	child, err := load(ctx, tx, childID, "profile_id")
	if err != nil {
		return err
	}
	parent, err := load(ctx, tx, parentID, role.Field())
	if err != nil {
		return err
	}

	previous := child.Parent(role)
	if previous == parentID && parent.ChildrenIDs.Contains(childID) {
		return nil
	}

	updatedChild := child.WithParent(role, parentID)
	if _, err := save(ctx, tx, t, updatedChild); err != nil {
		return err
	}

	if previous != "" && previous != parentID && !updatedChild.HasParent(previous) {
		if err := retractChild(ctx, tx, t, previous, childID); err != nil {
			return err
		}
	}

	if !parent.ChildrenIDs.Contains(childID) {
		if _, err := save(ctx, tx, t, parent.WithChild(childID)); err != nil {
			return err
		}
	}

	return verify(ctx, tx, childID, parentID, func(c, p *Profile) bool {
		return c.Parent(role) == parentID && p.ChildrenIDs.Contains(childID)
	})
}

func removeParent(ctx context.Context, tx Repository, t touched, childID string, role Role) error {
	if !role.Valid() {
		return fieldError("role", ErrInvalidRole)
	}

	child, err := load(ctx, tx, childID, "profile_id")
	if err != nil {
		return err
	}

	previous := child.Parent(role)
	if previous == "" {
		return nil
	}

	updatedChild := child.WithoutParent(role)
	if _, err := save(ctx, tx, t, updatedChild); err != nil {
		return err
	}

	if !updatedChild.HasParent(previous) {
		if err := retractChild(ctx, tx, t, previous, childID); err != nil {
			return err
		}
	}

	stored, err := tx.GetByID(ctx, childID)
	if err != nil {
		return fmt.Errorf("verify %s: %w", childID, err)
	}
	if stored.Parent(role) != "" {
		return ErrInconsistentState
	}
	return nil
}

func setSpouse(ctx context.Context, tx Repository, t touched, a, b string) error {
	if b == "" {
		return fieldError("spouse_id", ErrInvalidInput)
	}
	if a == b {
		return fieldError("spouse_id", ErrSelfReference)
	}

	first, err := load(ctx, tx, a, "profile_id")
	if err != nil {
		return err
	}
	second, err := load(ctx, tx, b, "spouse_id")
	if err != nil {
		return err
	}

	if first.SpouseID != "" && first.SpouseID != b {
		return fieldError("profile_id", ErrAlreadyMarried)
	}
	if second.SpouseID != "" && second.SpouseID != a {
		return fieldError("spouse_id", ErrAlreadyMarried)
	}

	if first.SpouseID == b && first.MaritalStatus == MaritalStatusMarried &&
		second.SpouseID == a && second.MaritalStatus == MaritalStatusMarried {
		return nil
	}

	if _, err := save(ctx, tx, t, first.WithSpouse(b)); err != nil {
		return err
	}
	if _, err := save(ctx, tx, t, second.WithSpouse(a)); err != nil {
		return err
	}

	return verify(ctx, tx, a, b, func(x, y *Profile) bool {
		return x.SpouseID == b && y.SpouseID == a &&
			x.MaritalStatus == MaritalStatusMarried && y.MaritalStatus == MaritalStatusMarried
	})
}

// clearSpouse unmarries id and, when the partner points back at id, the
// partner as well. A partner that no longer exists is skipped.
func clearSpouse(ctx context.Context, tx Repository, t touched, id string) error {
	current, err := load(ctx, tx, id, "profile_id")
	if err != nil {
		return err
	}

	partnerID := current.SpouseID
	if partnerID == "" {
		if current.MaritalStatus != MaritalStatusUnmarried {
			_, err := save(ctx, tx, t, current.WithoutSpouse())
			return err
		}
		return nil
	}

	if _, err := save(ctx, tx, t, current.WithoutSpouse()); err != nil {
		return err
	}

	partner, err := tx.GetByID(ctx, partnerID)
	switch {
	case errors.Is(err, ErrProfileNotFound):
		partner = nil
	case err != nil:
		return fmt.Errorf("get profile %s: %w", partnerID, err)
	case partner.SpouseID == id:
		if _, err := save(ctx, tx, t, partner.WithoutSpouse()); err != nil {
			return err
		}
	}

	stored, err := tx.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("verify %s: %w", id, err)
	}
	if stored.SpouseID != "" || stored.MaritalStatus != MaritalStatusUnmarried {
		return ErrInconsistentState
	}
	if partner != nil {
		storedPartner, err := tx.GetByID(ctx, partnerID)
		if err != nil {
			return fmt.Errorf("verify %s: %w", partnerID, err)
		}
		if storedPartner.SpouseID == id {
			return ErrInconsistentState
		}
	}
	return nil
}

func retractChild(ctx context.Context, tx Repository, t touched, parentID, childID string) error {
	parent, err := tx.GetByID(ctx, parentID)
	if errors.Is(err, ErrProfileNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get profile %s: %w", parentID, err)
	}
	if !parent.ChildrenIDs.Contains(childID) {
		return nil
	}
	_, err = save(ctx, tx, t, parent.WithoutChild(childID))
	return err
}

func load(ctx context.Context, tx Repository, id, field string) (*Profile, error) {
	if id == "" {
		return nil, fieldError(field, ErrInvalidInput)
	}
	p, err := tx.GetByID(ctx, id)
	if errors.Is(err, ErrProfileNotFound) {
		return nil, fieldError(field, ErrProfileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", id, err)
	}
	return p, nil
}

func save(ctx context.Context, tx Repository, t touched, p Profile) (*Profile, error) {
	saved, err := tx.Upsert(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("upsert profile %s: %w", p.ID, err)
	}
	t.add(p.ID)
	return saved, nil
}

func verify(ctx context.Context, tx Repository, aID, bID string, ok func(a, b *Profile) bool) error {
	a, err := tx.GetByID(ctx, aID)
	if err != nil {
		return fmt.Errorf("verify %s: %w", aID, err)
	}
	b, err := tx.GetByID(ctx, bID)
	if err != nil {
		return fmt.Errorf("verify %s: %w", bID, err)
	}
	if !ok(a, b) {
		return ErrInconsistentState
	}
	return nil
}

type touched map[string]struct{}

func (t touched) add(ids ...string) {
	for _, id := range ids {
		if id != "" {
			t[id] = struct{}{}
		}
	}
}

func (t touched) ids() []string {
	result := make([]string, 0, len(t))
	for id := range t {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}
