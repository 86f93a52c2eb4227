package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"slotlist.org/internal/audit"
	"slotlist.org/internal/auth"
	"slotlist.org/internal/mission"
	"slotlist.org/internal/obs"
	"slotlist.org/internal/stream"
)

// insert_after places the new item after the given zero-based index, -1
// meaning the front; omitting it appends at the end.
type createSlotGroupRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	InsertAfter *int   `json:"insert_after"`
}

type updateSlotGroupRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	OrderNumber *int    `json:"order_number"`
}

type createSlotRequest struct {
	SlotGroupUID        string `json:"slot_group_uid"`
	Title               string `json:"title"`
	Description         string `json:"description"`
	DetailedDescription string `json:"detailed_description"`
	InsertAfter         *int   `json:"insert_after"`
	Blocked             bool   `json:"blocked"`
	Reserve             bool   `json:"reserve"`
	AutoAssignable      bool   `json:"auto_assignable"`
}

type updateSlotRequest struct {
	Title               *string `json:"title"`
	Description         *string `json:"description"`
	DetailedDescription *string `json:"detailed_description"`
	OrderNumber         *int    `json:"order_number"`
	Blocked             *bool   `json:"blocked"`
	Reserve             *bool   `json:"reserve"`
	AutoAssignable      *bool   `json:"auto_assignable"`
}

type assignSlotRequest struct {
	UserUID string `json:"user_uid"`
}

func (a *API) handleMissionsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listMissions(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet)
	}
}

func (a *API) handleMissionResource(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/missions/"), "/"), "/")
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
		a.getMission(w, r, slug)
	case len(parts) == 2 && parts[1] == "slots":
		switch r.Method {
		case http.MethodGet:
			a.listSlots(w, r, slug)
		case http.MethodPost:
			a.createSlot(w, r, slug)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		}
	case len(parts) == 2 && parts[1] == "events":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.missionEvents(w, r, slug)
	case len(parts) == 2 && parts[1] == "slotGroups":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.createSlotGroup(w, r, slug)
	case len(parts) == 3 && parts[1] == "slotGroups":
		switch r.Method {
		case http.MethodPatch:
			a.updateSlotGroup(w, r, slug, parts[2])
		case http.MethodDelete:
			a.deleteSlotGroup(w, r, slug, parts[2])
		default:
			methodNotAllowed(w, r, http.MethodPatch, http.MethodDelete)
		}
	case len(parts) == 3 && parts[1] == "slots":
		switch r.Method {
		case http.MethodPatch:
			a.updateSlot(w, r, slug, parts[2])
		case http.MethodDelete:
			a.deleteSlot(w, r, slug, parts[2])
		default:
			methodNotAllowed(w, r, http.MethodPatch, http.MethodDelete)
		}
	case len(parts) == 4 && parts[1] == "slots" && parts[3] == "assign":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.assignSlot(w, r, slug, parts[2])
	case len(parts) == 4 && parts[1] == "slots" && parts[3] == "unassign":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.unassignSlot(w, r, slug, parts[2])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) listMissions(w http.ResponseWriter, r *http.Request) {
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 25, 1, 100)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 100")
		return
	}
	offset, err := parsePositiveInt(r.URL.Query().Get("offset"), 0, 0, 1<<30)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	claims, _ := auth.ClaimsFromContext(r.Context())
	f := filterForClaims(claims)
	missions, err := a.missions.List(r.Context(), f, mission.ListOptions{
		Limit:        limit,
		Offset:       offset,
		IncludeEnded: r.URL.Query().Get("include_ended") == "true",
	})
	if err != nil {
		handleMissionError(w, r, err)
		return
	}
	if missions == nil {
		missions = []mission.Mission{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"missions": missions,
		"limit":    limit,
		"offset":   offset,
	})
}

func (a *API) getMission(w http.ResponseWriter, r *http.Request, slug string) {
	m, ok := a.visibleMission(w, r, slug)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mission": m})
}

func (a *API) listSlots(w http.ResponseWriter, r *http.Request, slug string) {
	m, ok := a.visibleMission(w, r, slug)
	if !ok {
		return
	}
	groups, err := a.missions.SlotGroups(r.Context(), m.UID)
	if err != nil {
		handleMissionError(w, r, err)
		return
	}
	if groups == nil {
		groups = []mission.SlotGroup{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"slot_groups": groups})
}

func (a *API) createSlotGroup(w http.ResponseWriter, r *http.Request, slug string) {
	m, claims, ok := a.editableMission(w, r, slug)
	if !ok {
		return
	}

	var req createSlotGroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, r, http.StatusBadRequest, "title is required")
		return
	}

	in := mission.NewSlotGroup{
		Title:       req.Title,
		Description: req.Description,
		Append:      req.InsertAfter == nil,
	}
	if req.InsertAfter != nil {
		in.AfterIndex = *req.InsertAfter
	}
	g, err := a.missions.CreateSlotGroup(r.Context(), m.UID, in)
	if err != nil {
		handleMissionError(w, r, err)
		return
	}
	obs.RenumberObserved("slot_group")
	a.publishSlotEvent(stream.SlotEvent{Type: stream.EventSlotlistEdited, MissionSlug: m.Slug})
	_ = audit.LogEvent(r.Context(), "mission.slotgroup.create", map[string]any{
		"mission":    m.Slug,
		"slot_group": g.UID,
		"order":      g.OrderNumber,
		"actor":      claims.User.UID,
	})
	writeJSON(w, http.StatusCreated, map[string]any{"slot_group": g})
}

func (a *API) updateSlotGroup(w http.ResponseWriter, r *http.Request, slug, groupUID string) {
	m, claims, ok := a.editableMission(w, r, slug)
	if !ok {
		return
	}

	var req updateSlotGroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	g, err := a.missions.UpdateSlotGroup(r.Context(), m.UID, groupUID, mission.SlotGroupUpdate{
		Title:       req.Title,
		Description: req.Description,
		OrderNumber: req.OrderNumber,
	})
	if err != nil {
		handleMissionError(w, r, err)
		return
	}
	if req.OrderNumber != nil {
		obs.RenumberObserved("slot_group")
	}
	a.publishSlotEvent(stream.SlotEvent{Type: stream.EventSlotlistEdited, MissionSlug: m.Slug})
	_ = audit.LogEvent(r.Context(), "mission.slotgroup.update", map[string]any{
		"mission":    m.Slug,
		"slot_group": g.UID,
		"actor":      claims.User.UID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"slot_group": g})
}

func (a *API) deleteSlotGroup(w http.ResponseWriter, r *http.Request, slug, groupUID string) {
	m, claims, ok := a.editableMission(w, r, slug)
	if !ok {
		return
	}
	if err := a.missions.DeleteSlotGroup(r.Context(), m.UID, groupUID); err != nil {
		handleMissionError(w, r, err)
		return
	}
	obs.RenumberObserved("slot_group")
	a.publishSlotEvent(stream.SlotEvent{Type: stream.EventSlotlistEdited, MissionSlug: m.Slug})
	_ = audit.LogEvent(r.Context(), "mission.slotgroup.delete", map[string]any{
		"mission":    m.Slug,
		"slot_group": groupUID,
		"actor":      claims.User.UID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) createSlot(w http.ResponseWriter, r *http.Request, slug string) {
	m, claims, ok := a.editableMission(w, r, slug)
	if !ok {
		return
	}

	var req createSlotRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, r, http.StatusBadRequest, "title is required")
		return
	}
	if !a.groupBelongsToMission(r, m.UID, req.SlotGroupUID) {
		writeError(w, r, http.StatusNotFound, "slot group not found")
		return
	}

	in := mission.NewSlot{
		Title:               req.Title,
		Description:         req.Description,
		DetailedDescription: req.DetailedDescription,
		Append:              req.InsertAfter == nil,
		Blocked:             req.Blocked,
		Reserve:             req.Reserve,
		AutoAssignable:      req.AutoAssignable,
	}
	if req.InsertAfter != nil {
		in.AfterIndex = *req.InsertAfter
	}
	sl, err := a.missions.CreateSlot(r.Context(), req.SlotGroupUID, in)
	if err != nil {
		handleMissionError(w, r, err)
		return
	}
	obs.RenumberObserved("slot")
	a.publishSlotEvent(stream.SlotEvent{Type: stream.EventSlotlistEdited, MissionSlug: m.Slug})
	_ = audit.LogEvent(r.Context(), "mission.slot.create", map[string]any{
		"mission": m.Slug,
		"slot":    sl.UID,
		"order":   sl.OrderNumber,
		"actor":   claims.User.UID,
	})
	writeJSON(w, http.StatusCreated, map[string]any{"slot": sl})
}

func (a *API) updateSlot(w http.ResponseWriter, r *http.Request, slug, slotUID string) {
	m, claims, ok := a.editableMission(w, r, slug)
	if !ok {
		return
	}

	var req updateSlotRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	sl, found, err := a.findSlot(r, m.UID, slotUID)
	if err != nil {
		handleMissionError(w, r, err)
		return
	}
	if !found {
		writeError(w, r, http.StatusNotFound, "slot not found")
		return
	}

	updated, err := a.missions.UpdateSlot(r.Context(), sl.SlotGroupUID, slotUID, mission.SlotUpdate{
		Title:               req.Title,
		Description:         req.Description,
		DetailedDescription: req.DetailedDescription,
		OrderNumber:         req.OrderNumber,
		Blocked:             req.Blocked,
		Reserve:             req.Reserve,
		AutoAssignable:      req.AutoAssignable,
	})
	if err != nil {
		handleMissionError(w, r, err)
		return
	}
	if req.OrderNumber != nil {
		obs.RenumberObserved("slot")
	}
	a.publishSlotEvent(stream.SlotEvent{Type: stream.EventSlotlistEdited, MissionSlug: m.Slug})
	_ = audit.LogEvent(r.Context(), "mission.slot.update", map[string]any{
		"mission": m.Slug,
		"slot":    slotUID,
		"actor":   claims.User.UID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"slot": updated})
}

func (a *API) deleteSlot(w http.ResponseWriter, r *http.Request, slug, slotUID string) {
	m, claims, ok := a.editableMission(w, r, slug)
	if !ok {
		return
	}

	sl, found, err := a.findSlot(r, m.UID, slotUID)
	if err != nil {
		handleMissionError(w, r, err)
		return
	}
	if !found {
		writeError(w, r, http.StatusNotFound, "slot not found")
		return
	}
	if err := a.missions.DeleteSlot(r.Context(), sl.SlotGroupUID, slotUID); err != nil {
		handleMissionError(w, r, err)
		return
	}
	obs.RenumberObserved("slot")
	a.publishSlotEvent(stream.SlotEvent{Type: stream.EventSlotlistEdited, MissionSlug: m.Slug})
	_ = audit.LogEvent(r.Context(), "mission.slot.delete", map[string]any{
		"mission": m.Slug,
		"slot":    slotUID,
		"actor":   claims.User.UID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) assignSlot(w http.ResponseWriter, r *http.Request, slug, slotUID string) {
	m, ok := a.visibleMission(w, r, slug)
	if !ok {
		return
	}
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var req assignSlotRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	target := strings.TrimSpace(req.UserUID)
	if target == "" {
		target = claims.User.UID
	}
	if target != claims.User.UID && claims.User.UID != m.CreatorUID &&
		!auth.HasPermission(claims.Permissions, "mission.slot.assign", "admin.*") {
		writeError(w, r, http.StatusForbidden, "insufficient permissions to assign this slot")
		return
	}

	if _, found, err := a.findSlot(r, m.UID, slotUID); err != nil {
		handleMissionError(w, r, err)
		return
	} else if !found {
		writeError(w, r, http.StatusNotFound, "slot not found")
		return
	}

	if err := a.missions.AssignSlot(r.Context(), slotUID, target); err != nil {
		handleMissionError(w, r, err)
		return
	}
	a.publishSlotEvent(stream.SlotEvent{
		Type:        stream.EventSlotAssigned,
		MissionSlug: m.Slug,
		SlotUID:     slotUID,
		UserUID:     target,
	})
	_ = audit.LogEvent(r.Context(), "mission.slot.assign", map[string]any{
		"mission":  m.Slug,
		"slot":     slotUID,
		"assignee": target,
		"actor":    claims.User.UID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) unassignSlot(w http.ResponseWriter, r *http.Request, slug, slotUID string) {
	m, ok := a.visibleMission(w, r, slug)
	if !ok {
		return
	}
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	sl, found, err := a.findSlot(r, m.UID, slotUID)
	if err != nil {
		handleMissionError(w, r, err)
		return
	}
	if !found {
		writeError(w, r, http.StatusNotFound, "slot not found")
		return
	}
	if sl.AssigneeUID != claims.User.UID && claims.User.UID != m.CreatorUID &&
		!auth.HasPermission(claims.Permissions, "mission.slot.assign", "admin.*") {
		writeError(w, r, http.StatusForbidden, "insufficient permissions to unassign this slot")
		return
	}

	if err := a.missions.UnassignSlot(r.Context(), slotUID); err != nil {
		handleMissionError(w, r, err)
		return
	}
	a.publishSlotEvent(stream.SlotEvent{
		Type:        stream.EventSlotUnassigned,
		MissionSlug: m.Slug,
		SlotUID:     slotUID,
		UserUID:     sl.AssigneeUID,
	})
	_ = audit.LogEvent(r.Context(), "mission.slot.unassign", map[string]any{
		"mission": m.Slug,
		"slot":    slotUID,
		"actor":   claims.User.UID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// visibleMission loads the mission and enforces visibility. Denied and
// missing missions are indistinguishable to the caller.
func (a *API) visibleMission(w http.ResponseWriter, r *http.Request, slug string) (mission.Mission, bool) {
	m, err := a.missions.GetBySlug(r.Context(), slug)
	if errors.Is(err, mission.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "mission not found")
		return mission.Mission{}, false
	}
	if err != nil {
		handleMissionError(w, r, err)
		return mission.Mission{}, false
	}
	claims, _ := auth.ClaimsFromContext(r.Context())
	if !mission.CanView(m, claims) {
		writeError(w, r, http.StatusNotFound, "mission not found")
		return mission.Mission{}, false
	}
	return m, true
}

// editableMission is visibleMission plus the write check.
func (a *API) editableMission(w http.ResponseWriter, r *http.Request, slug string) (mission.Mission, *auth.Claims, bool) {
	m, ok := a.visibleMission(w, r, slug)
	if !ok {
		return mission.Mission{}, nil, false
	}
	claims, ok := requireClaims(w, r)
	if !ok {
		return mission.Mission{}, nil, false
	}
	if !canEditSlotlist(m, claims) {
		writeError(w, r, http.StatusForbidden, "insufficient permissions to edit this mission")
		return mission.Mission{}, nil, false
	}
	return m, claims, true
}

// canEditSlotlist grants slotlist writes to the creator, mission admins,
// per-mission editors, and community members holding the mission's
// community-slotlist permission.
func canEditSlotlist(m mission.Mission, claims *auth.Claims) bool {
	if claims.User.UID == m.CreatorUID {
		return true
	}
	if auth.HasPermission(claims.Permissions,
		auth.PermMissionAdmin, auth.MissionEditorPermission(m.Slug)) {
		return true
	}
	return m.CommunityUID != "" && claims.CommunityUID() == m.CommunityUID &&
		auth.HasPermission(claims.Permissions, auth.MissionSlotlistPermission(m.Slug))
}

func (a *API) groupBelongsToMission(r *http.Request, missionUID, groupUID string) bool {
	if strings.TrimSpace(groupUID) == "" {
		return false
	}
	groups, err := a.missions.SlotGroups(r.Context(), missionUID)
	if err != nil {
		return false
	}
	for _, g := range groups {
		if g.UID == groupUID {
			return true
		}
	}
	return false
}

func (a *API) findSlot(r *http.Request, missionUID, slotUID string) (mission.Slot, bool, error) {
	groups, err := a.missions.SlotGroups(r.Context(), missionUID)
	if err != nil {
		return mission.Slot{}, false, err
	}
	for _, g := range groups {
		for _, sl := range g.Slots {
			if sl.UID == slotUID {
				return sl, true, nil
			}
		}
	}
	return mission.Slot{}, false, nil
}

func filterForClaims(claims *auth.Claims) mission.Filter {
	if claims == nil {
		return mission.NewFilter("", "", nil)
	}
	return mission.NewFilter(claims.User.UID, claims.CommunityUID(), claims.Permissions)
}

func handleMissionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, mission.ErrInvalidInput),
		errors.Is(err, mission.ErrOrderOutOfRange),
		errors.Is(err, mission.ErrOrderNotDense):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, mission.ErrAlreadyExists):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, mission.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
