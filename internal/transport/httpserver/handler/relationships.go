package handler

import (
	"net/http"

	profiledomain "family-tree-go/internal/domain/profile"
	"family-tree-go/pkg/validator"
	"github.com/go-chi/chi/v5"
)

type setParentRequest struct {
	ParentID string `json:"parent_id" validate:"required,uuid"`
}

type setSpouseRequest struct {
	SpouseID string `json:"spouse_id" validate:"required,uuid"`
}

func (h *Handlers) SetParent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.profileIDParam(w, r)
	if !ok {
		return
	}
	role, ok := roleParam(w, r)
	if !ok {
		return
	}

	var req setParentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeFieldErrors(w, http.StatusBadRequest, "invalid_request", "invalid request", validator.FormatValidationErrors(err))
		return
	}

	if err := h.Profiles.Relationships().SetParent(r.Context(), id, req.ParentID, role); err != nil {
		h.writeProfileError(w, r, "relationships.set_parent", err, "profile_id", id, "parent_id", req.ParentID, "role", string(role))
		return
	}

	h.writeCurrentProfile(w, r, "relationships.set_parent", id)
}

func (h *Handlers) RemoveParent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.profileIDParam(w, r)
	if !ok {
		return
	}
	role, ok := roleParam(w, r)
	if !ok {
		return
	}

	if err := h.Profiles.Relationships().RemoveParent(r.Context(), id, role); err != nil {
		h.writeProfileError(w, r, "relationships.remove_parent", err, "profile_id", id, "role", string(role))
		return
	}

	h.writeCurrentProfile(w, r, "relationships.remove_parent", id)
}

func (h *Handlers) SetSpouse(w http.ResponseWriter, r *http.Request) {
	id, ok := h.profileIDParam(w, r)
	if !ok {
		return
	}

	var req setSpouseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeFieldErrors(w, http.StatusBadRequest, "invalid_request", "invalid request", validator.FormatValidationErrors(err))
		return
	}

	if err := h.Profiles.Relationships().SetSpouse(r.Context(), id, req.SpouseID); err != nil {
		h.writeProfileError(w, r, "relationships.set_spouse", err, "profile_id", id, "spouse_id", req.SpouseID)
		return
	}

	h.writeCurrentProfile(w, r, "relationships.set_spouse", id)
}

func (h *Handlers) ClearSpouse(w http.ResponseWriter, r *http.Request) {
	id, ok := h.profileIDParam(w, r)
	if !ok {
		return
	}

	if err := h.Profiles.Relationships().ClearSpouse(r.Context(), id); err != nil {
		h.writeProfileError(w, r, "relationships.clear_spouse", err, "profile_id", id)
		return
	}

	h.writeCurrentProfile(w, r, "relationships.clear_spouse", id)
}

func (h *Handlers) writeCurrentProfile(w http.ResponseWriter, r *http.Request, op, id string) {
	result, err := h.Profiles.GetProfile(r.Context(), id)
	if err != nil {
		h.writeProfileError(w, r, op, err, "profile_id", id)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(*result))
}

func roleParam(w http.ResponseWriter, r *http.Request) (profiledomain.Role, bool) {
	role := profiledomain.Role(chi.URLParam(r, "role"))
	if !role.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_role", "role must be father or mother")
		return "", false
	}
	return role, true
}
