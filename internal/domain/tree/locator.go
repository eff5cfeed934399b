package tree

import (
	"context"
	"errors"
	"fmt"

	profiledomain "family-tree-go/internal/domain/profile"
)

// Locator climbs parent links to find the root of a displayed tree.
type Locator struct {
	profiles ProfileReader
	limit    int
	onDiag   DiagnosticFunc
}

func NewLocator(profiles ProfileReader, climbLimit int, onDiag DiagnosticFunc) *Locator {
	if climbLimit <= 0 {
		climbLimit = DefaultClimbLimit
	}
	return &Locator{profiles: profiles, limit: climbLimit, onDiag: onDiag}
}

// Locate follows the father link when it resolves, otherwise the
// mother link, for at most the configured number of climbs. The climb stops
// early when neither parent resolves.
func (l *Locator) Locate(ctx context.Context, startID string) (*profiledomain.Profile, error) {
	current, err := l.profiles.GetProfile(ctx, startID)
	if err != nil {
		return nil, fmt.Errorf("get start profile %s: %w", startID, err)
	}

	for climb := 0; climb < l.limit; climb++ {
		next, err := l.parentOf(ctx, current)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return current, nil
		}
		current = next
	}

	if current.FatherID != "" || current.MotherID != "" {
		emit(ctx, l.onDiag, Diagnostic{Kind: ClimbLimitReached, ProfileID: current.ID})
	}
	return current, nil
}

func (l *Locator) parentOf(ctx context.Context, p *profiledomain.Profile) (*profiledomain.Profile, error) {
	for _, parentID := range []string{p.FatherID, p.MotherID} {
		if parentID == "" {
			continue
		}
		parent, err := l.profiles.GetProfile(ctx, parentID)
		if errors.Is(err, profiledomain.ErrProfileNotFound) {
			emit(ctx, l.onDiag, Diagnostic{Kind: DanglingParent, ProfileID: p.ID, RefID: parentID})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get parent %s of %s: %w", parentID, p.ID, err)
		}
		return parent, nil
	}
	return nil, nil
}
