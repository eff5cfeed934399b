package tree

import (
	"context"
	"errors"
	"sync"

	profiledomain "family-tree-go/internal/domain/profile"
)

var errReaderDown = errors.New("reader down")

type fakeReader struct {
	mu       sync.Mutex
	profiles map[string]profiledomain.Profile
	failOn   map[string]error
	reads    map[string]int
}

func newFakeReader(profiles ...profiledomain.Profile) *fakeReader {
	r := &fakeReader{
		profiles: map[string]profiledomain.Profile{},
		failOn:   map[string]error{},
		reads:    map[string]int{},
	}
	for _, p := range profiles {
		r.profiles[p.ID] = p
	}
	return r
}

func (r *fakeReader) GetProfile(_ context.Context, id string) (*profiledomain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reads[id]++
	if err, ok := r.failOn[id]; ok {
		return nil, err
	}
	p, ok := r.profiles[id]
	if !ok {
		return nil, profiledomain.ErrProfileNotFound
	}
	clone := p.Clone()
	return &clone, nil
}

type diagRecorder struct {
	items []Diagnostic
}

func (r *diagRecorder) record(_ context.Context, d Diagnostic) {
	r.items = append(r.items, d)
}

func (r *diagRecorder) has(kind DiagnosticKind, refID string) bool {
	for _, d := range r.items {
		if d.Kind == kind && d.RefID == refID {
			return true
		}
	}
	return false
}

func (r *diagRecorder) count(kind DiagnosticKind) int {
	n := 0
	for _, d := range r.items {
		if d.Kind == kind {
			n++
		}
	}
	return n
}
