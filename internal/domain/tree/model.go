package tree

import (
	"context"

	profiledomain "family-tree-go/internal/domain/profile"
)

const (
	DefaultMaxDepth         = 3
	DefaultClimbLimit       = 5
	DefaultFetchConcurrency = 4
)

// ProfileReader resolves profiles by id and returns
// profile.ErrProfileNotFound for unknown ids.
type ProfileReader interface {
	GetProfile(ctx context.Context, id string) (*profiledomain.Profile, error)
}

type Config struct {
	MaxDepth         int
	ClimbLimit       int
	FetchConcurrency int
}

func DefaultConfig() Config {
	return Config{
		MaxDepth:         DefaultMaxDepth,
		ClimbLimit:       DefaultClimbLimit,
		FetchConcurrency: DefaultFetchConcurrency,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.ClimbLimit <= 0 {
		c.ClimbLimit = DefaultClimbLimit
	}
	if c.FetchConcurrency <= 0 {
		c.FetchConcurrency = DefaultFetchConcurrency
	}
	return c
}

// Node is a display-only materialization of a profile. Spouse nodes never
// carry children of their own.
type Node struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Gender    profiledomain.Gender `json:"gender"`
	ProfileID string               `json:"profile_id"`
	Level     int                  `json:"level"`
	Spouse    *Node                `json:"spouse,omitempty"`
	Children  []*Node              `json:"children"`
}

func newNode(p *profiledomain.Profile, level int) *Node {
	return &Node{
		ID:        "node-" + p.ID,
		Name:      p.FullName,
		Gender:    p.Gender,
		ProfileID: p.ID,
		Level:     level,
		Children:  []*Node{},
	}
}

type Stats struct {
	Members     int `json:"total_family_members"`
	Male        int `json:"male_count"`
	Female      int `json:"female_count"`
	Other       int `json:"other_count"`
	Marriages   int `json:"marriages"`
	Generations int `json:"generations"`
}

// Summarize counts the people shown in a built tree.
func Summarize(root *Node) Stats {
	var stats Stats
	if root == nil {
		return stats
	}

	deepest := root.Level
	var walk func(n *Node)
	walk = func(n *Node) {
		stats.count(n)
		if n.Level > deepest {
			deepest = n.Level
		}
		if n.Spouse != nil {
			stats.count(n.Spouse)
			stats.Marriages++
		}
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(root)

	stats.Generations = deepest - root.Level + 1
	return stats
}

func (s *Stats) count(n *Node) {
	s.Members++
	switch n.Gender {
	case profiledomain.GenderMale:
		s.Male++
	case profiledomain.GenderFemale:
		s.Female++
	default:
		s.Other++
	}
}
