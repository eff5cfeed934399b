package tree

import (
	"context"
	"errors"
	"fmt"
	"time"

	profiledomain "family-tree-go/internal/domain/profile"

	"golang.org/x/sync/errgroup"
)

// Builder materializes display trees. Each build owns its own visited set.
type Builder struct {
	profiles ProfileReader
	locator  *Locator
	cfg      Config
	onDiag   DiagnosticFunc
}

func NewBuilder(profiles ProfileReader, cfg Config, onDiag DiagnosticFunc) *Builder {
	cfg = cfg.withDefaults()
	return &Builder{
		profiles: profiles,
		locator:  NewLocator(profiles, cfg.ClimbLimit, onDiag),
		cfg:      cfg,
		onDiag:   onDiag,
	}
}

func (b *Builder) Locator() *Locator {
	return b.locator
}

// Build climbs to the highest known ancestor of profileID and materializes
// the tree downward from there.
func (b *Builder) Build(ctx context.Context, profileID string) (*Node, error) {
	started := time.Now()
	root, err := b.locator.Locate(ctx, profileID)
	if err != nil {
		treeBuilds.WithLabelValues(buildResult(err)).Inc()
		return nil, err
	}
	return b.buildFrom(ctx, root, started)
}

// BuildFrom materializes the tree rooted at profileID without climbing.
func (b *Builder) BuildFrom(ctx context.Context, profileID string) (*Node, error) {
	started := time.Now()
	root, err := b.profiles.GetProfile(ctx, profileID)
	if err != nil {
		treeBuilds.WithLabelValues(buildResult(err)).Inc()
		return nil, fmt.Errorf("get root profile %s: %w", profileID, err)
	}
	return b.buildFrom(ctx, root, started)
}

func (b *Builder) buildFrom(ctx context.Context, root *profiledomain.Profile, started time.Time) (*Node, error) {
	st := &buildState{visited: map[string]struct{}{}}
	node, err := b.materialize(ctx, st, root, 0)
	treeBuilds.WithLabelValues(buildResult(err)).Inc()
	if err != nil {
		return nil, err
	}
	treeBuildDuration.Observe(time.Since(started).Seconds())
	treeNodes.Observe(float64(st.nodes))
	return node, nil
}

type buildState struct {
	visited map[string]struct{}
	nodes   int
}

func (s *buildState) seen(id string) bool {
	_, ok := s.visited[id]
	return ok
}

func (s *buildState) visit(id string) {
	s.visited[id] = struct{}{}
	s.nodes++
}

func (b *Builder) materialize(ctx context.Context, st *buildState, p *profiledomain.Profile, level int) (*Node, error) {
	st.visit(p.ID)
	node := newNode(p, level)

	if err := b.attachSpouse(ctx, st, node, p); err != nil {
		return nil, err
	}

	if len(p.ChildrenIDs) == 0 {
		return node, nil
	}
	if level >= b.cfg.MaxDepth {
		emit(ctx, b.onDiag, Diagnostic{Kind: DepthLimitReached, ProfileID: p.ID})
		return node, nil
	}

	children, err := b.fetchChildren(ctx, st, p)
	if err != nil {
		return nil, err
	}

	for i, childID := range p.ChildrenIDs {
		if st.seen(childID) {
			emit(ctx, b.onDiag, Diagnostic{Kind: ChildAlreadyVisited, ProfileID: p.ID, RefID: childID})
			continue
		}
		child := children[i]
		if child == nil {
			emit(ctx, b.onDiag, Diagnostic{Kind: DanglingChild, ProfileID: p.ID, RefID: childID})
			continue
		}
		childNode, err := b.materialize(ctx, st, child, level+1)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, childNode)
	}
	return node, nil
}

func (b *Builder) attachSpouse(ctx context.Context, st *buildState, node *Node, p *profiledomain.Profile) error {
	if p.SpouseID == "" {
		return nil
	}
	if st.seen(p.SpouseID) {
		emit(ctx, b.onDiag, Diagnostic{Kind: SpouseAlreadyVisited, ProfileID: p.ID, RefID: p.SpouseID})
		return nil
	}

	spouse, err := b.profiles.GetProfile(ctx, p.SpouseID)
	if errors.Is(err, profiledomain.ErrProfileNotFound) {
		emit(ctx, b.onDiag, Diagnostic{Kind: DanglingSpouse, ProfileID: p.ID, RefID: p.SpouseID})
		return nil
	}
	if err != nil {
		return fmt.Errorf("get spouse %s of %s: %w", p.SpouseID, p.ID, err)
	}

	st.visit(spouse.ID)
	node.Spouse = newNode(spouse, node.Level)
	return nil
}

// fetchChildren resolves the not yet visited children of p concurrently.
// The result is indexed like p.ChildrenIDs; nil marks a skipped or missing
// child.
func (b *Builder) fetchChildren(ctx context.Context, st *buildState, p *profiledomain.Profile) ([]*profiledomain.Profile, error) {
	results := make([]*profiledomain.Profile, len(p.ChildrenIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.FetchConcurrency)
	for i, childID := range p.ChildrenIDs {
		if st.seen(childID) {
			continue
		}
		g.Go(func() error {
			child, err := b.profiles.GetProfile(gctx, childID)
			if errors.Is(err, profiledomain.ErrProfileNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("get child %s of %s: %w", childID, p.ID, err)
			}
			results[i] = child
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func buildResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, profiledomain.ErrProfileNotFound):
		return "not_found"
	default:
		return "error"
	}
}
