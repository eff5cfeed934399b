package tree

import (
	"context"

	"family-tree-go/pkg/logger"
)

type DiagnosticKind string

const (
	DanglingParent       DiagnosticKind = "dangling_parent"
	DanglingSpouse       DiagnosticKind = "dangling_spouse"
	DanglingChild        DiagnosticKind = "dangling_child"
	SpouseAlreadyVisited DiagnosticKind = "spouse_already_visited"
	ChildAlreadyVisited  DiagnosticKind = "child_already_visited"
	DepthLimitReached    DiagnosticKind = "depth_limit"
	ClimbLimitReached    DiagnosticKind = "climb_limit"
)

func (k DiagnosticKind) dangling() bool {
	return k == DanglingParent || k == DanglingSpouse || k == DanglingChild
}

// Diagnostic reports a reference that was skipped while walking the graph.
// RefID is the id that could not be followed; it is empty for limit kinds.
type Diagnostic struct {
	Kind      DiagnosticKind
	ProfileID string
	RefID     string
}

type DiagnosticFunc func(ctx context.Context, d Diagnostic)

// LogDiagnostics writes dangling references at warn level and everything
// else at debug level, through the request logger when ctx carries one.
func LogDiagnostics(fallback logger.Logger) DiagnosticFunc {
	return func(ctx context.Context, d Diagnostic) {
		log := logger.FromContext(ctx, fallback)
		args := []any{"kind", string(d.Kind), "profile_id", d.ProfileID}
		if d.RefID != "" {
			args = append(args, "ref_id", d.RefID)
		}
		if d.Kind.dangling() {
			log.Warn("tree: skipped dangling reference", args...)
			return
		}
		log.Debug("tree: skipped reference", args...)
	}
}

func emit(ctx context.Context, fn DiagnosticFunc, d Diagnostic) {
	if d.Kind.dangling() {
		danglingReferences.WithLabelValues(string(d.Kind)).Inc()
	}
	if fn != nil {
		fn(ctx, d)
	}
}
