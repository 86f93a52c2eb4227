package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"slotlist.org/internal/audit"
	"slotlist.org/internal/auth"
)

type grantPermissionRequest struct {
	Permission string `json:"permission"`
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	userUID := parts[0]

	switch {
	case len(parts) == 2 && parts[1] == "permissions":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.grantPermission(w, r, userUID)
	case len(parts) == 3 && parts[1] == "permissions":
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r, http.MethodDelete)
			return
		}
		a.revokePermission(w, r, userUID, parts[2])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

// requirePermissionAdmin gates permission management behind admin.permission.
func (a *API) requirePermissionAdmin(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return nil, false
	}
	if !auth.HasPermission(claims.Permissions, auth.PermPermissionAdmin) {
		writeError(w, r, http.StatusForbidden, "insufficient permissions to manage permissions")
		return nil, false
	}
	return claims, true
}

func (a *API) grantPermission(w http.ResponseWriter, r *http.Request, userUID string) {
	claims, ok := a.requirePermissionAdmin(w, r)
	if !ok {
		return
	}
	var req grantPermissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	permission := strings.ToLower(strings.TrimSpace(req.Permission))
	if permission == "" {
		writeError(w, r, http.StatusBadRequest, "permission is required")
		return
	}

	if err := a.permissions.GrantPermission(r.Context(), userUID, permission); err != nil {
		handlePermissionError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.permission.grant", map[string]any{
		"user":       userUID,
		"permission": permission,
		"actor":      claims.User.UID,
	})
	writeJSON(w, http.StatusCreated, map[string]any{"success": true})
}

func (a *API) revokePermission(w http.ResponseWriter, r *http.Request, userUID, permission string) {
	claims, ok := a.requirePermissionAdmin(w, r)
	if !ok {
		return
	}
	if err := a.permissions.RevokePermission(r.Context(), userUID, permission); err != nil {
		handlePermissionError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.permission.revoke", map[string]any{
		"user":       userUID,
		"permission": permission,
		"actor":      claims.User.UID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func handlePermissionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrAlreadyExists):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
