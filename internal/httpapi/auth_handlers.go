package httpapi

import (
	"errors"
	"net/http"
	"time"

	"slotlist.org/internal/audit"
	"slotlist.org/internal/auth"
	"slotlist.org/internal/obs"
)

// handleAuthRefresh exchanges a valid session token for a fresh one. The
// user record and permission list are reloaded so community changes and
// permission grants take effect without waiting for expiry. Deactivated
// accounts cannot refresh even while their current token is still valid.
func (a *API) handleAuthRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	user, err := a.users.FindUser(r.Context(), claims.User.UID)
	if errors.Is(err, auth.ErrNotFound) {
		writeError(w, r, http.StatusUnauthorized, "invalid token")
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if !user.Active {
		writeError(w, r, http.StatusForbidden, "account is deactivated")
		return
	}

	permissions, err := a.users.UserPermissions(r.Context(), user.UID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	token, expiresAt, err := a.tokens.Issue(user, permissions)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	obs.TokenIssued()
	event := map[string]any{"user": user.UID}
	if old, ok := auth.TokenFromContext(r.Context()); ok {
		event["refreshed_from"] = auth.TokenFingerprint(old)
	}
	_ = audit.LogEvent(r.Context(), "auth.token.refresh", event)
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	})
}
