package handler

import (
	"net/http"

	profiledomain "family-tree-go/internal/domain/profile"
	"family-tree-go/pkg/logger"
)

// writeProfileError maps profile domain failures onto the error envelope and
// logs them under op.
func (h *Handlers) writeProfileError(w http.ResponseWriter, r *http.Request, op string, err error, args ...any) {
	log := logger.FromContext(r.Context(), h.log)
	field, hasField := profiledomain.FieldOf(err)
	if hasField {
		args = append(args, "field", field)
	}

	switch profiledomain.Kind(err) {
	case profiledomain.KindNotFound:
		log.BusinessError(op+": profile not found", err, args...)
		h.writeKindError(w, http.StatusNotFound, "profile_not_found", "profile not found", field, hasField)
	case profiledomain.KindSelfReference:
		log.BusinessError(op+": self reference", err, args...)
		h.writeKindError(w, http.StatusUnprocessableEntity, "self_reference", "profile cannot reference itself", field, hasField)
	case profiledomain.KindAlreadyMarried:
		log.BusinessError(op+": already married", err, args...)
		h.writeKindError(w, http.StatusConflict, "already_married", "profile already married", field, hasField)
	case profiledomain.KindConflict:
		log.BusinessError(op+": profile exists", err, args...)
		writeError(w, http.StatusConflict, "profile_exists", "profile already exists")
	case profiledomain.KindInvalid:
		log.BusinessError(op+": invalid input", err, args...)
		h.writeKindError(w, http.StatusBadRequest, "invalid_request", "invalid request", field, hasField)
	case profiledomain.KindInconsistentState:
		log.Critical(op+": relationship pair inconsistent", append([]any{"err", err}, args...)...)
		writeError(w, http.StatusInternalServerError, "inconsistent_state", "relationship update could not be completed")
	default:
		log.InternalError(op+": failed", err, args...)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func (h *Handlers) writeKindError(w http.ResponseWriter, status int, code, message, field string, hasField bool) {
	if !hasField {
		writeError(w, status, code, message)
		return
	}
	writeFieldErrors(w, status, code, message, map[string]string{field: message})
}
