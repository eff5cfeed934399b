package profile

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

type MaritalStatus string

const (
	MaritalStatusMarried   MaritalStatus = "married"
	MaritalStatusUnmarried MaritalStatus = "unmarried"
)

type Role string

const (
	RoleFather Role = "father"
	RoleMother Role = "mother"
)

func (r Role) Valid() bool {
	return r == RoleFather || r == RoleMother
}

func (r Role) Field() string {
	return string(r) + "_id"
}

// Profile is a person record in the family graph. Values are treated as
// immutable: the With* helpers return modified copies and never touch the
// receiver's ChildrenIDs backing array.
type Profile struct {
	ID            string        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        string        `gorm:"type:text;index" json:"user_id,omitempty"`
	FullName      string        `gorm:"type:text;not null" json:"full_name"`
	FamilyName    string        `gorm:"type:text" json:"family_name,omitempty"`
	Initial       string        `gorm:"type:text" json:"initial,omitempty"`
	Gender        Gender        `gorm:"type:varchar(16);not null" json:"gender"`
	DateOfBirth   *time.Time    `gorm:"type:date" json:"date_of_birth,omitempty"`
	MaritalStatus MaritalStatus `gorm:"type:varchar(16);not null" json:"marital_status"`
	PictureURL    string        `gorm:"type:text" json:"picture_url,omitempty"`
	FatherID      string        `gorm:"type:text;index" json:"father_id,omitempty"`
	MotherID      string        `gorm:"type:text;index" json:"mother_id,omitempty"`
	SpouseID      string        `gorm:"type:text;index" json:"spouse_id,omitempty"`
	ChildrenIDs   IDList        `gorm:"type:jsonb;not null;default:'[]'" json:"children_ids"`
	CreatedAt     time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}

func (p Profile) Clone() Profile {
	p.ChildrenIDs = p.ChildrenIDs.clone()
	if p.DateOfBirth != nil {
		dob := *p.DateOfBirth
		p.DateOfBirth = &dob
	}
	return p
}

func (p Profile) Parent(role Role) string {
	if role == RoleMother {
		return p.MotherID
	}
	return p.FatherID
}

func (p Profile) WithParent(role Role, parentID string) Profile {
	next := p.Clone()
	if role == RoleMother {
		next.MotherID = parentID
	} else {
		next.FatherID = parentID
	}
	return next
}

func (p Profile) WithoutParent(role Role) Profile {
	return p.WithParent(role, "")
}

// HasParent reports whether parentID is referenced through either role.
func (p Profile) HasParent(parentID string) bool {
	return parentID != "" && (p.FatherID == parentID || p.MotherID == parentID)
}

func (p Profile) WithSpouse(spouseID string) Profile {
	next := p.Clone()
	next.SpouseID = spouseID
	next.MaritalStatus = MaritalStatusMarried
	return next
}

func (p Profile) WithoutSpouse() Profile {
	next := p.Clone()
	next.SpouseID = ""
	next.MaritalStatus = MaritalStatusUnmarried
	return next
}

func (p Profile) WithChild(childID string) Profile {
	next := p.Clone()
	if !next.ChildrenIDs.Contains(childID) {
		next.ChildrenIDs = append(next.ChildrenIDs, childID)
	}
	return next
}

func (p Profile) WithoutChild(childID string) Profile {
	next := p.Clone()
	next.ChildrenIDs = next.ChildrenIDs.Without(childID)
	return next
}

// IDList is an ordered set of profile ids persisted as a JSON array.
type IDList []string

func (l IDList) Contains(id string) bool {
	for _, item := range l {
		if item == id {
			return true
		}
	}
	return false
}

func (l IDList) Without(id string) IDList {
	result := make(IDList, 0, len(l))
	for _, item := range l {
		if item != id {
			result = append(result, item)
		}
	}
	return result
}

// Dedupe keeps the first occurrence of every id.
func (l IDList) Dedupe() IDList {
	seen := make(map[string]struct{}, len(l))
	result := make(IDList, 0, len(l))
	for _, item := range l {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		result = append(result, item)
	}
	return result
}

func (l IDList) clone() IDList {
	if l == nil {
		return IDList{}
	}
	result := make(IDList, len(l))
	copy(result, l)
	return result
}

func (l IDList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *IDList) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*l = IDList{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan id list: unsupported type %T", value)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("scan id list: %w", err)
	}
	*l = IDList(ids)
	return nil
}

type CreateInput struct {
	FullName    string
	FamilyName  string
	Initial     string
	Gender      Gender
	DateOfBirth *time.Time
	PictureURL  string
	Relations   RelationshipChange
}

// UpdateInput patches attributes; nil fields are left unchanged.
type UpdateInput struct {
	FullName    *string
	FamilyName  *string
	Initial     *string
	Gender      *Gender
	DateOfBirth *time.Time
	PictureURL  *string
	Relations   RelationshipChange
}

// RefChange describes the desired value of one relationship reference.
// A nil *RefChange leaves the reference untouched; an empty ID clears it.
type RefChange struct {
	ID string
}

func SetRef(id string) *RefChange {
	return &RefChange{ID: id}
}

func ClearRef() *RefChange {
	return &RefChange{}
}

type RelationshipChange struct {
	Father *RefChange
	Mother *RefChange
	Spouse *RefChange
}

func (c RelationshipChange) Empty() bool {
	return c.Father == nil && c.Mother == nil && c.Spouse == nil
}
