package auth

import "strings"

// Wildcard is the permission segment that matches every descendant.
const Wildcard = "*"

// Well-known permission strings.
const (
	PermSuperadmin      = "admin.superadmin"
	PermMissionAdmin    = "admin.mission"
	PermCommunity       = "admin.community"
	PermPermissionAdmin = "admin.permission"
)

// MissionEditorPermission returns the dynamic editor permission for a mission slug.
func MissionEditorPermission(slug string) string {
	return "mission." + strings.ToLower(strings.TrimSpace(slug)) + ".editor"
}

// MissionSlotlistPermission returns the dynamic slotlist permission for a mission slug.
func MissionSlotlistPermission(slug string) string {
	return "mission." + strings.ToLower(strings.TrimSpace(slug)) + ".slotlist.community"
}

// CommunityLeaderPermission returns the leader permission for a community slug.
func CommunityLeaderPermission(slug string) string {
	return "community." + strings.ToLower(strings.TrimSpace(slug)) + ".leader"
}

// CommunityRecruitmentPermission returns the recruitment permission for a community slug.
func CommunityRecruitmentPermission(slug string) string {
	return "community." + strings.ToLower(strings.TrimSpace(slug)) + ".recruitment"
}

// Tree is a parsed permission list. Each key is a lower-cased permission
// segment; a Wildcard key grants everything below its position. Trees are
// built fresh per authorization decision and never shared between requests.
type Tree map[string]Tree

// ParsePermissions explodes dot-separated permission strings into a Tree.
// Permissions sharing a prefix share nodes. Input order is irrelevant.
func ParsePermissions(permissions []string) Tree {
	tree := make(Tree, len(permissions))
	for _, permission := range permissions {
		permission = strings.ToLower(strings.TrimSpace(permission))
		if permission == "" {
			continue
		}
		node := tree
		for _, segment := range strings.Split(permission, ".") {
			child, ok := node[segment]
			if !ok {
				child = make(Tree)
				node[segment] = child
			}
			node = child
		}
	}
	return tree
}

// Find reports whether the tree contains the dotted target permission.
// A prefix grant is sufficient: a tree holding "mission.foo" satisfies a
// lookup for "mission.foo", and a wildcard at any level satisfies every
// deeper lookup. The wildcard is consulted before the exact segment.
func (t Tree) Find(target string) bool {
	return t.findSegments(strings.Split(strings.ToLower(target), "."))
}

func (t Tree) findSegments(segments []string) bool {
	if len(t) == 0 {
		return false
	}
	if len(segments) == 0 {
		return true
	}
	if _, ok := t[Wildcard]; ok {
		return true
	}
	child, ok := t[segments[0]]
	if !ok {
		return false
	}
	if len(segments) == 1 {
		return true
	}
	return child.findSegments(segments[1:])
}

// HasPermission reports whether the permission list grants at least one of
// the targets. A top-level wildcard or admin.superadmin grants everything
// and short-circuits all further checks.
func HasPermission(permissions []string, targets ...string) bool {
	if len(permissions) == 0 || len(targets) == 0 {
		return false
	}
	tree := ParsePermissions(permissions)
	if _, ok := tree[Wildcard]; ok {
		return true
	}
	if tree.Find(PermSuperadmin) {
		return true
	}
	for _, target := range targets {
		if tree.Find(target) {
			return true
		}
	}
	return false
}

// EditorSlugs extracts mission slugs from every held mission.{slug}.editor
// permission. Used to push editor visibility into database-level filters.
func EditorSlugs(permissions []string) []string {
	var slugs []string
	for _, permission := range permissions {
		permission = strings.ToLower(strings.TrimSpace(permission))
		parts := strings.Split(permission, ".")
		if len(parts) == 3 && parts[0] == "mission" && parts[2] == "editor" && parts[1] != "" {
			slugs = append(slugs, parts[1])
		}
	}
	return slugs
}
