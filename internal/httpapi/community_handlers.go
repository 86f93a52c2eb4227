package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"slotlist.org/internal/audit"
	"slotlist.org/internal/auth"
	"slotlist.org/internal/community"
	"slotlist.org/internal/mission"
)

type applyRequest struct {
	Text string `json:"text"`
}

type processApplicationRequest struct {
	Approve bool `json:"approve"`
}

func (a *API) handleCommunityResource(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/communities/"), "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	slug := parts[0]

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.getCommunity(w, r, slug)
	case len(parts) == 2 && parts[1] == "missions":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.listCommunityMissions(w, r, slug)
	case len(parts) == 2 && parts[1] == "applications":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.applyToCommunity(w, r, slug)
	case len(parts) == 3 && parts[1] == "applications" && parts[2] == "status":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.applicationStatus(w, r, slug)
	case len(parts) == 3 && parts[1] == "applications":
		if r.Method != http.MethodPatch {
			methodNotAllowed(w, r, http.MethodPatch)
			return
		}
		a.processApplication(w, r, slug, parts[2])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) getCommunity(w http.ResponseWriter, r *http.Request, slug string) {
	c, err := a.communities.GetCommunity(r.Context(), slug)
	if err != nil {
		handleCommunityError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"community": c})
}

// listCommunityMissions serves the community mission board. It sits behind
// the community gate: only callers with an approved community may browse it,
// and the denial reason is returned verbatim.
func (a *API) listCommunityMissions(w http.ResponseWriter, r *http.Request, slug string) {
	claims, ok := a.requireApprovedCommunity(w, r)
	if !ok {
		return
	}
	c, err := a.communities.GetCommunity(r.Context(), slug)
	if err != nil {
		handleCommunityError(w, r, err)
		return
	}

	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 25, 1, 100)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 100")
		return
	}
	missions, err := a.missions.List(r.Context(), filterForClaims(claims), mission.ListOptions{
		Limit:        limit,
		IncludeEnded: r.URL.Query().Get("include_ended") == "true",
	})
	if err != nil {
		handleMissionError(w, r, err)
		return
	}
	board := make([]mission.Mission, 0, len(missions))
	for _, m := range missions {
		if m.CommunityUID == c.UID {
			board = append(board, m)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"missions": board})
}

func (a *API) applicationStatus(w http.ResponseWriter, r *http.Request, slug string) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	app, err := a.communities.ApplicationStatus(r.Context(), claims.User.UID, slug)
	if errors.Is(err, community.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "none"})
		return
	}
	if err != nil {
		handleCommunityError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      app.Status,
		"application": app,
	})
}

func (a *API) applyToCommunity(w http.ResponseWriter, r *http.Request, slug string) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	var req applyRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	app, err := a.communities.Apply(r.Context(), claims.User.UID, slug, req.Text)
	if err != nil {
		handleCommunityError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "community.application.submit", map[string]any{
		"community":   slug,
		"application": app.UID,
	})
	writeJSON(w, http.StatusCreated, map[string]any{"application": app})
}

func (a *API) processApplication(w http.ResponseWriter, r *http.Request, slug, applicationUID string) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	if !auth.HasPermission(claims.Permissions,
		auth.CommunityLeaderPermission(slug),
		auth.CommunityRecruitmentPermission(slug),
		auth.PermCommunity,
	) {
		writeError(w, r, http.StatusForbidden, "insufficient permissions to process applications")
		return
	}

	var req processApplicationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	c, err := a.communities.GetCommunity(r.Context(), slug)
	if err != nil {
		handleCommunityError(w, r, err)
		return
	}
	app, err := a.communities.Process(r.Context(), c.UID, applicationUID, req.Approve)
	if err != nil {
		handleCommunityError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "community.application.process", map[string]any{
		"community":   slug,
		"application": app.UID,
		"status":      app.Status,
		"actor":       claims.User.UID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"application": app})
}

func handleCommunityError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, community.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, community.ErrAlreadyApplied),
		errors.Is(err, community.ErrAlreadyMember):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, community.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
