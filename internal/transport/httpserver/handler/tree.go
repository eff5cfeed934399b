package handler

import (
	"net/http"

	treedomain "family-tree-go/internal/domain/tree"
)

type treeResponse struct {
	RequestedID string           `json:"requested_id"`
	RootID      string           `json:"root_id"`
	Tree        *treedomain.Node `json:"tree"`
}

type treeStatsResponse struct {
	RootID string           `json:"root_id"`
	Stats  treedomain.Stats `json:"stats"`
}

// GetTree builds the display tree for a profile. By default it starts from
// the highest known ancestor; from=self starts at the profile itself.
func (h *Handlers) GetTree(w http.ResponseWriter, r *http.Request) {
	root, id, ok := h.buildTree(w, r, "tree.get")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, treeResponse{RequestedID: id, RootID: root.ProfileID, Tree: root})
}

func (h *Handlers) GetTreeStats(w http.ResponseWriter, r *http.Request) {
	root, _, ok := h.buildTree(w, r, "tree.stats")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, treeStatsResponse{RootID: root.ProfileID, Stats: treedomain.Summarize(root)})
}

func (h *Handlers) buildTree(w http.ResponseWriter, r *http.Request, op string) (*treedomain.Node, string, bool) {
	id, ok := h.profileIDParam(w, r)
	if !ok {
		return nil, "", false
	}

	var (
		root *treedomain.Node
		err  error
	)
	switch from := r.URL.Query().Get("from"); from {
	case "", "ancestor":
		root, err = h.Trees.Build(r.Context(), id)
	case "self":
		root, err = h.Trees.BuildFrom(r.Context(), id)
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "from must be ancestor or self")
		return nil, "", false
	}
	if err != nil {
		h.writeProfileError(w, r, op, err, "profile_id", id)
		return nil, "", false
	}
	return root, id, true
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
