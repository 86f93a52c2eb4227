package mission

import "time"

// Visibility governs who may view a mission.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityCommunity Visibility = "community"
	VisibilityHidden    Visibility = "hidden"
	VisibilityPrivate   Visibility = "private"
)

// Valid reports whether v is one of the four visibility classes.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityCommunity, VisibilityHidden, VisibilityPrivate:
		return true
	}
	return false
}

// Mission is the slice of a mission record the visibility resolver works
// on. AssigneeUIDs carries the uids assigned to any slot under the
// mission, preloaded by the store so private-visibility checks stay pure.
type Mission struct {
	UID          string     `json:"uid"`
	Slug         string     `json:"slug"`
	Title        string     `json:"title"`
	Visibility   Visibility `json:"visibility"`
	CreatorUID   string     `json:"creator_uid"`
	CommunityUID string     `json:"community_uid,omitempty"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      time.Time  `json:"end_time"`
	AssigneeUIDs []string   `json:"-"`
}

// HasAssignee reports whether the user is assigned to any slot under the
// mission.
func (m Mission) HasAssignee(userUID string) bool {
	if userUID == "" {
		return false
	}
	for _, uid := range m.AssigneeUIDs {
		if uid == userUID {
			return true
		}
	}
	return false
}

// SlotGroup is an orderable container of slots, scoped to a mission.
type SlotGroup struct {
	UID         string `json:"uid"`
	MissionUID  string `json:"mission_uid"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	OrderNumber int    `json:"order_number"`
	Slots       []Slot `json:"slots,omitempty"`
}

// ItemUID implements Orderable.
func (g *SlotGroup) ItemUID() string { return g.UID }

// Order implements Orderable.
func (g *SlotGroup) Order() int { return g.OrderNumber }

// SetOrder implements Orderable.
func (g *SlotGroup) SetOrder(n int) { g.OrderNumber = n }

// Slot is an assignable role, scoped to a slot group.
type Slot struct {
	UID                 string `json:"uid"`
	SlotGroupUID        string `json:"slot_group_uid"`
	Title               string `json:"title"`
	Description         string `json:"description,omitempty"`
	DetailedDescription string `json:"detailed_description,omitempty"`
	OrderNumber         int    `json:"order_number"`
	AssigneeUID         string `json:"assignee_uid,omitempty"`
	Blocked             bool   `json:"blocked"`
	Reserve             bool   `json:"reserve"`
	AutoAssignable      bool   `json:"auto_assignable"`
}

// ItemUID implements Orderable.
func (s *Slot) ItemUID() string { return s.UID }

// Order implements Orderable.
func (s *Slot) Order() int { return s.OrderNumber }

// SetOrder implements Orderable.
func (s *Slot) SetOrder(n int) { s.OrderNumber = n }
