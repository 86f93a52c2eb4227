package mission

import (
	"fmt"
	"strings"

	"slotlist.org/internal/auth"
)

// CanView decides whether the caller may view the mission. A nil claims
// pointer is an anonymous caller. Creator, admin, and editor checks run
// before the visibility-specific branch so an editor or admin always sees
// a hidden mission.
func CanView(m Mission, claims *auth.Claims) bool {
	if m.Visibility == VisibilityPublic {
		return true
	}
	if claims == nil || claims.User.UID == "" {
		return false
	}
	if claims.User.UID == m.CreatorUID {
		return true
	}
	if auth.HasPermission(claims.Permissions, auth.PermMissionAdmin) {
		return true
	}
	if auth.HasPermission(claims.Permissions, auth.MissionEditorPermission(m.Slug)) {
		return true
	}
	switch m.Visibility {
	case VisibilityCommunity:
		return m.CommunityUID != "" && m.CommunityUID == claims.CommunityUID()
	case VisibilityPrivate:
		return m.HasAssignee(claims.User.UID)
	}
	// hidden, or an unknown visibility class: deny.
	return false
}

// FilterVisible applies CanView to an already-fetched collection.
func FilterVisible(missions []Mission, claims *auth.Claims) []Mission {
	visible := make([]Mission, 0, len(missions))
	for _, m := range missions {
		if CanView(m, claims) {
			visible = append(visible, m)
		}
	}
	return visible
}

// Filter restricts a mission query to rows the caller may view. It is the
// database-level equivalent of CanView: for any caller and any mission
// state the filtered set equals applying CanView row by row.
type Filter struct {
	matchAll     bool
	callerUID    string
	communityUID string
	editorSlugs  []string
}

// NewFilter captures the caller's identity for query-level filtering.
// callerUID and communityUID are empty for anonymous callers and callers
// without a community respectively.
func NewFilter(callerUID, communityUID string, permissions []string) Filter {
	f := Filter{
		callerUID:    strings.TrimSpace(callerUID),
		communityUID: strings.TrimSpace(communityUID),
	}
	if f.callerUID == "" {
		return f
	}
	if auth.HasPermission(permissions, auth.PermMissionAdmin) {
		f.matchAll = true
		return f
	}
	f.editorSlugs = auth.EditorSlugs(permissions)
	return f
}

// MatchAll reports whether the filter places no restriction at all
// (mission administrators see every mission).
func (f Filter) MatchAll() bool { return f.matchAll }

// Clause renders the filter as a SQL condition over a missions table
// aliased m, with positional placeholders starting at argIndex. The
// private-visibility branch uses an exists subquery against slot
// assignments. Callers append the returned args to their query arguments.
func (f Filter) Clause(argIndex int) (string, []any) {
	if f.matchAll {
		return "true", nil
	}

	conds := []string{"m.visibility = 'public'"}
	var args []any
	next := func(v any) string {
		args = append(args, v)
		placeholder := fmt.Sprintf("$%d", argIndex+len(args)-1)
		return placeholder
	}

	if f.callerUID != "" {
		conds = append(conds, fmt.Sprintf("m.creator_uid = %s", next(f.callerUID)))
		if f.communityUID != "" {
			conds = append(conds, fmt.Sprintf(
				"(m.visibility = 'community' and m.community_uid = %s)", next(f.communityUID)))
		}
		conds = append(conds, fmt.Sprintf(`(m.visibility = 'private' and exists (
			select 1 from mission_slots s
			join mission_slot_groups g on g.uid = s.slot_group_uid
			where g.mission_uid = m.uid and s.assignee_uid = %s))`, next(f.callerUID)))
		if len(f.editorSlugs) > 0 {
			placeholders := make([]string, 0, len(f.editorSlugs))
			for _, slug := range f.editorSlugs {
				placeholders = append(placeholders, next(slug))
			}
			conds = append(conds, fmt.Sprintf("m.slug in (%s)", strings.Join(placeholders, ", ")))
		}
	}

	return "(" + strings.Join(conds, " or ") + ")", args
}
