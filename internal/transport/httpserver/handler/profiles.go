package handler

import (
	"net/http"
	"strings"
	"time"

	profiledomain "family-tree-go/internal/domain/profile"
	"family-tree-go/internal/transport/httpserver/middleware"
	"family-tree-go/pkg/validator"
	"github.com/go-chi/chi/v5"
)

type createProfileRequest struct {
	FullName    string `json:"full_name" validate:"required,max=200"`
	FamilyName  string `json:"family_name" validate:"max=200"`
	Initial     string `json:"initial" validate:"max=20"`
	Gender      string `json:"gender" validate:"required,oneof=male female other"`
	DateOfBirth string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	PictureURL  string `json:"picture_url" validate:"omitempty,url"`
	FatherID    string `json:"father_id" validate:"omitempty,uuid"`
	MotherID    string `json:"mother_id" validate:"omitempty,uuid"`
	SpouseID    string `json:"spouse_id" validate:"omitempty,uuid"`
}

// updateProfileRequest patches a profile. Absent fields are left alone. An
// empty father_id, mother_id, spouse_id or picture_url clears that value; an
// empty date_of_birth leaves it unchanged. Those fields are checked by
// validatePatch because a non-nil pointer to "" never counts as omitted.
// marital_status is derived from the spouse link, so only "unmarried" has an
// effect: it clears the spouse.
type updateProfileRequest struct {
	FullName    *string `json:"full_name" validate:"omitempty,max=200"`
	FamilyName  *string `json:"family_name" validate:"omitempty,max=200"`
	Initial     *string `json:"initial" validate:"omitempty,max=20"`
	Gender      *string `json:"gender" validate:"omitempty,oneof=male female other"`
	DateOfBirth *string `json:"date_of_birth"`
	PictureURL  *string `json:"picture_url"`
	FatherID    *string `json:"father_id"`
	MotherID    *string `json:"mother_id"`
	SpouseID    *string `json:"spouse_id"`

	MaritalStatus *string `json:"marital_status" validate:"omitempty,oneof=married unmarried"`
}

type profileResponse struct {
	ID            string   `json:"id"`
	UserID        string   `json:"user_id,omitempty"`
	FullName      string   `json:"full_name"`
	FamilyName    string   `json:"family_name,omitempty"`
	Initial       string   `json:"initial,omitempty"`
	Gender        string   `json:"gender"`
	DateOfBirth   *string  `json:"date_of_birth,omitempty"`
	MaritalStatus string   `json:"marital_status"`
	PictureURL    string   `json:"picture_url,omitempty"`
	FatherID      string   `json:"father_id,omitempty"`
	MotherID      string   `json:"mother_id,omitempty"`
	SpouseID      string   `json:"spouse_id,omitempty"`
	ChildrenIDs   []string `json:"children_ids"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at"`
}

type profileListResponse struct {
	Items []profileResponse `json:"items"`
}

func (h *Handlers) GetMyProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	result, err := h.Profiles.GetProfileByUser(r.Context(), user.ID)
	if err != nil {
		h.writeProfileError(w, r, "profiles.get_me", err, "user_id", user.ID)
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(*result))
}

func (h *Handlers) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeFieldErrors(w, http.StatusBadRequest, "invalid_request", "invalid request", validator.FormatValidationErrors(err))
		return
	}

	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	dob, _ := parseDate(req.DateOfBirth)
	result, err := h.Profiles.CreateProfile(r.Context(), user.ID, profiledomain.CreateInput{
		FullName:    req.FullName,
		FamilyName:  req.FamilyName,
		Initial:     req.Initial,
		Gender:      profiledomain.Gender(req.Gender),
		DateOfBirth: dob,
		PictureURL:  req.PictureURL,
		Relations: profiledomain.RelationshipChange{
			Father: optionalRef(req.FatherID),
			Mother: optionalRef(req.MotherID),
			Spouse: optionalRef(req.SpouseID),
		},
	})
	if err != nil {
		h.writeProfileError(w, r, "profiles.create", err, "user_id", user.ID)
		return
	}

	writeJSON(w, http.StatusCreated, toProfileResponse(*result))
}

func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.profileIDParam(w, r)
	if !ok {
		return
	}

	result, err := h.Profiles.GetProfile(r.Context(), id)
	if err != nil {
		h.writeProfileError(w, r, "profiles.get", err, "profile_id", id)
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(*result))
}

func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.profileIDParam(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeFieldErrors(w, http.StatusBadRequest, "invalid_request", "invalid request", validator.FormatValidationErrors(err))
		return
	}
	if fields := h.validatePatch(req); len(fields) > 0 {
		writeFieldErrors(w, http.StatusBadRequest, "invalid_request", "invalid request", fields)
		return
	}

	input := profiledomain.UpdateInput{
		FullName:   req.FullName,
		FamilyName: req.FamilyName,
		Initial:    req.Initial,
		PictureURL: req.PictureURL,
		Relations: profiledomain.RelationshipChange{
			Father: patchRef(req.FatherID),
			Mother: patchRef(req.MotherID),
			Spouse: patchRef(req.SpouseID),
		},
	}
	if req.MaritalStatus != nil && profiledomain.MaritalStatus(*req.MaritalStatus) == profiledomain.MaritalStatusUnmarried {
		if req.SpouseID != nil && *req.SpouseID != "" {
			writeFieldErrors(w, http.StatusBadRequest, "invalid_request", "invalid request",
				map[string]string{"marital_status": "marital_status unmarried conflicts with spouse_id"})
			return
		}
		input.Relations.Spouse = profiledomain.ClearRef()
	}
	if req.Gender != nil {
		gender := profiledomain.Gender(*req.Gender)
		input.Gender = &gender
	}
	if req.DateOfBirth != nil {
		dob, err := parseDate(*req.DateOfBirth)
		if err != nil {
			writeFieldErrors(w, http.StatusBadRequest, "invalid_request", "invalid request",
				map[string]string{"date_of_birth": "date_of_birth must be a date in " + dateLayout + " format"})
			return
		}
		input.DateOfBirth = dob
	}

	result, err := h.Profiles.UpdateProfile(r.Context(), id, input)
	if err != nil {
		h.writeProfileError(w, r, "profiles.update", err, "profile_id", id)
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(*result))
}

// validatePatch checks the non-empty values of fields where "" has a meaning
// of its own.
func (h *Handlers) validatePatch(req updateProfileRequest) map[string]string {
	fields := map[string]string{}
	rules := []struct {
		name  string
		value *string
		tag   string
	}{
		{"date_of_birth", req.DateOfBirth, "datetime=" + dateLayout},
		{"picture_url", req.PictureURL, "url"},
		{"father_id", req.FatherID, "uuid"},
		{"mother_id", req.MotherID, "uuid"},
		{"spouse_id", req.SpouseID, "uuid"},
	}
	for _, rule := range rules {
		if rule.value == nil || strings.TrimSpace(*rule.value) == "" {
			continue
		}
		for field, msg := range validator.FormatVarError(rule.name, h.validate.Var(*rule.value, rule.tag)) {
			fields[field] = msg
		}
	}
	return fields
}

func (h *Handlers) SearchProfiles(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", errInvalidLimit.Error())
		return
	}

	query := r.URL.Query().Get("q")
	result, err := h.Profiles.Search(r.Context(), query, limit)
	if err != nil {
		h.writeProfileError(w, r, "profiles.search", err, "query", query)
		return
	}

	writeJSON(w, http.StatusOK, toProfileListResponse(result))
}

func (h *Handlers) SuggestParents(w http.ResponseWriter, r *http.Request) {
	dob, err := parseDate(r.URL.Query().Get("date_of_birth"))
	if err != nil {
		writeFieldErrors(w, http.StatusBadRequest, "invalid_request", "invalid request",
			map[string]string{"date_of_birth": "date_of_birth must be a date in 2006-01-02 format"})
		return
	}

	result, err := h.Profiles.PotentialParents(r.Context(), dob)
	if err != nil {
		h.writeProfileError(w, r, "profiles.suggest_parents", err)
		return
	}

	writeJSON(w, http.StatusOK, toProfileListResponse(result))
}

func (h *Handlers) SuggestSpouses(w http.ResponseWriter, r *http.Request) {
	id, ok := h.profileIDParam(w, r)
	if !ok {
		return
	}

	result, err := h.Profiles.PotentialSpouses(r.Context(), id)
	if err != nil {
		h.writeProfileError(w, r, "profiles.suggest_spouses", err, "profile_id", id)
		return
	}

	writeJSON(w, http.StatusOK, toProfileListResponse(result))
}

func (h *Handlers) profileIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if err := h.validate.Var(id, "required,uuid"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "profile id must be a uuid")
		return "", false
	}
	return id, true
}

func optionalRef(id string) *profiledomain.RefChange {
	if id == "" {
		return nil
	}
	return profiledomain.SetRef(id)
}

func patchRef(id *string) *profiledomain.RefChange {
	if id == nil {
		return nil
	}
	return profiledomain.SetRef(strings.TrimSpace(*id))
}

func toProfileResponse(p profiledomain.Profile) profileResponse {
	children := []string(p.ChildrenIDs)
	if children == nil {
		children = []string{}
	}
	return profileResponse{
		ID:            p.ID,
		UserID:        p.UserID,
		FullName:      p.FullName,
		FamilyName:    p.FamilyName,
		Initial:       p.Initial,
		Gender:        string(p.Gender),
		DateOfBirth:   formatDate(p.DateOfBirth),
		MaritalStatus: string(p.MaritalStatus),
		PictureURL:    p.PictureURL,
		FatherID:      p.FatherID,
		MotherID:      p.MotherID,
		SpouseID:      p.SpouseID,
		ChildrenIDs:   children,
		CreatedAt:     p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toProfileListResponse(items []profiledomain.Profile) profileListResponse {
	resp := profileListResponse{Items: make([]profileResponse, 0, len(items))}
	for _, item := range items {
		resp.Items = append(resp.Items, toProfileResponse(item))
	}
	return resp
}
