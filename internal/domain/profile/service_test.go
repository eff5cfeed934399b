package profile

import (
	"context"
	"errors"
	"testing"
	"time"
)

func date(year int) *time.Time {
	d := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return &d
}

func TestCreateProfileLinksRelatives(t *testing.T) {
	repo := newFakeProfileRepo(
		Profile{ID: "dad", FullName: "Dad", Gender: GenderMale},
		Profile{ID: "mom", FullName: "Mom", Gender: GenderFemale},
		Profile{ID: "partner", FullName: "Partner", Gender: GenderFemale},
	)
	svc := NewService(repo, nil, nil, time.Minute)

	result, err := svc.CreateProfile(context.Background(), "user-1", CreateInput{
		FullName: "  Kid  ",
		Gender:   GenderMale,
		Relations: RelationshipChange{
			Father: SetRef("dad"),
			Mother: SetRef("mom"),
			Spouse: SetRef("partner"),
		},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.FullName != "Kid" {
		t.Fatalf("expected trimmed name, got %q", result.FullName)
	}
	if result.ID == "" {
		t.Fatalf("expected generated id")
	}
	if result.FatherID != "dad" || result.MotherID != "mom" || result.SpouseID != "partner" {
		t.Fatalf("expected relatives linked, got %+v", result)
	}
	if result.MaritalStatus != MaritalStatusMarried {
		t.Fatalf("expected married, got %s", result.MaritalStatus)
	}
	if dad := repo.mustGet("dad"); !dad.ChildrenIDs.Contains(result.ID) {
		t.Fatalf("expected dad to list child, got %v", dad.ChildrenIDs)
	}
	if partner := repo.mustGet("partner"); partner.SpouseID != result.ID {
		t.Fatalf("expected partner spouse %s, got %q", result.ID, partner.SpouseID)
	}
}

func TestCreateProfileRollsBackOnRelationshipFailure(t *testing.T) {
	repo := newFakeProfileRepo(Profile{ID: "dad"})
	svc := NewService(repo, nil, nil, time.Minute)

	_, err := svc.CreateProfile(context.Background(), "user-1", CreateInput{
		FullName:  "Kid",
		Gender:    GenderOther,
		Relations: RelationshipChange{Father: SetRef("dad"), Mother: SetRef("missing")},
	})
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
	if len(repo.profiles) != 1 {
		t.Fatalf("expected no profile stored, got %d profiles", len(repo.profiles))
	}
	if dad := repo.mustGet("dad"); len(dad.ChildrenIDs) != 0 {
		t.Fatalf("expected dad untouched, got %v", dad.ChildrenIDs)
	}
}

func TestCreateProfileAlreadyExists(t *testing.T) {
	repo := newFakeProfileRepo(Profile{ID: "p1", UserID: "user-1"})
	svc := NewService(repo, nil, nil, time.Minute)

	_, err := svc.CreateProfile(context.Background(), "user-1", CreateInput{FullName: "Again", Gender: GenderMale})
	if !errors.Is(err, ErrProfileExists) {
		t.Fatalf("expected ErrProfileExists, got %v", err)
	}
}

func TestCreateProfileValidation(t *testing.T) {
	svc := NewService(newFakeProfileRepo(), nil, nil, time.Minute)

	_, err := svc.CreateProfile(context.Background(), "user-1", CreateInput{FullName: " ", Gender: GenderMale})
	if field, _ := FieldOf(err); field != "full_name" {
		t.Fatalf("expected full_name error, got %v", err)
	}

	_, err = svc.CreateProfile(context.Background(), "user-1", CreateInput{FullName: "Name", Gender: "robot"})
	if field, _ := FieldOf(err); field != "gender" {
		t.Fatalf("expected gender error, got %v", err)
	}
}

func TestUpdateProfilePatchesAttributesAndRelations(t *testing.T) {
	repo := newFakeProfileRepo(
		Profile{ID: "p", FullName: "Old", FatherID: "old-dad"},
		Profile{ID: "old-dad", ChildrenIDs: IDList{"p"}},
		Profile{ID: "new-dad"},
	)
	svc := NewService(repo, nil, nil, time.Minute)

	name := "New"
	result, err := svc.UpdateProfile(context.Background(), "p", UpdateInput{
		FullName:  &name,
		Relations: RelationshipChange{Father: SetRef("new-dad")},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.FullName != "New" || result.FatherID != "new-dad" {
		t.Fatalf("unexpected result %+v", result)
	}
	if old := repo.mustGet("old-dad"); old.ChildrenIDs.Contains("p") {
		t.Fatalf("expected stale child edge retracted, got %v", old.ChildrenIDs)
	}
}

func TestUpdateProfileClearsSpouse(t *testing.T) {
	repo := newFakeProfileRepo(
		Profile{ID: "a", SpouseID: "b", MaritalStatus: MaritalStatusMarried},
		Profile{ID: "b", SpouseID: "a", MaritalStatus: MaritalStatusMarried},
	)
	svc := NewService(repo, nil, nil, time.Minute)

	result, err := svc.UpdateProfile(context.Background(), "a", UpdateInput{
		Relations: RelationshipChange{Spouse: ClearRef()},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.SpouseID != "" || result.MaritalStatus != MaritalStatusUnmarried {
		t.Fatalf("expected a unmarried, got %+v", result)
	}
	if b := repo.mustGet("b"); b.SpouseID != "" {
		t.Fatalf("expected b unmarried, got %+v", b)
	}
}

func TestSearchRequiresTwoCharacters(t *testing.T) {
	repo := newFakeProfileRepo(Profile{ID: "a", FullName: "Alice"})
	svc := NewService(repo, nil, nil, time.Minute)

	result, err := svc.Search(context.Background(), " a ", 10)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(result) != 0 {
		t.Fatalf("expected no results, got %d", len(result))
	}

	result, err = svc.Search(context.Background(), "AL", 0)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("expected one result, got %d", len(result))
	}
}

func TestPotentialParents(t *testing.T) {
	repo := newFakeProfileRepo(
		Profile{ID: "old", DateOfBirth: date(1950)},
		Profile{ID: "young", DateOfBirth: date(1985)},
		Profile{ID: "unknown"},
	)
	svc := NewService(repo, nil, nil, time.Minute)

	result, err := svc.PotentialParents(context.Background(), date(1990))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(result) != 2 || result[0].ID != "old" || result[1].ID != "unknown" {
		t.Fatalf("unexpected candidates %+v", result)
	}
}

func TestPotentialSpousesExcludesCloseFamily(t *testing.T) {
	repo := newFakeProfileRepo(
		Profile{ID: "me", FatherID: "dad", ChildrenIDs: IDList{"kid"}},
		Profile{ID: "dad"},
		Profile{ID: "kid"},
		Profile{ID: "friend"},
	)
	svc := NewService(repo, nil, nil, time.Minute)

	result, err := svc.PotentialSpouses(context.Background(), "me")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(result) != 1 || result[0].ID != "friend" {
		t.Fatalf("expected only friend, got %+v", result)
	}
}

type mapCache struct {
	items map[string]Profile
}

func (c *mapCache) GetByID(id string) (*Profile, bool) {
	p, ok := c.items[id]
	if !ok {
		return nil, false
	}
	return &p, true
}

func (c *mapCache) SetByID(id string, p *Profile, _ time.Duration) { c.items[id] = *p }

func (c *mapCache) DeleteByID(ids ...string) {
	for _, id := range ids {
		delete(c.items, id)
	}
}

func (c *mapCache) Clear() { c.items = map[string]Profile{} }

func TestGetProfileUsesCacheUntilInvalidated(t *testing.T) {
	repo := newFakeProfileRepo(Profile{ID: "a", FullName: "A"}, Profile{ID: "b", FullName: "B"})
	cache := &mapCache{items: map[string]Profile{}}
	idx := NewIndex(repo, cache)
	svc := NewService(repo, idx, cache, time.Minute)
	ctx := context.Background()

	if _, err := svc.GetProfile(ctx, "a"); err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if _, ok := cache.items["a"]; !ok {
		t.Fatalf("expected a cached")
	}

	if err := idx.SetSpouse(ctx, "a", "b"); err != nil {
		t.Fatalf("set spouse: %v", err)
	}
	if _, ok := cache.items["a"]; ok {
		t.Fatalf("expected a invalidated")
	}

	a, err := svc.GetProfile(ctx, "a")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if a.SpouseID != "b" {
		t.Fatalf("expected fresh spouse b, got %q", a.SpouseID)
	}
}
