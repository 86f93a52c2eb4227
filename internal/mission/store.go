package mission

import (
	"context"
	"time"
)

// ListOptions paginate the mission list. Zero values fall back to the
// store's defaults.
type ListOptions struct {
	Limit        int
	Offset       int
	IncludeEnded bool
}

// NewSlotGroup carries the caller-supplied fields of a slot group to be
// created. Placement is expressed as the zero-based index of the existing
// group to insert after, with -1 meaning the front; Append places the
// group at the end and ignores AfterIndex.
type NewSlotGroup struct {
	Title       string
	Description string
	AfterIndex  int
	Append      bool
}

// NewSlot carries the caller-supplied fields of a slot to be created
// inside a slot group. Placement works as in NewSlotGroup.
type NewSlot struct {
	Title               string
	Description         string
	DetailedDescription string
	AfterIndex          int
	Append              bool
	Blocked             bool
	Reserve             bool
	AutoAssignable      bool
}

// SlotGroupUpdate holds partial updates; nil fields are left untouched.
// Setting OrderNumber relocates the group within its mission.
type SlotGroupUpdate struct {
	Title       *string
	Description *string
	OrderNumber *int
}

// SlotUpdate holds partial updates; nil fields are left untouched.
// Setting OrderNumber relocates the slot within its group.
type SlotUpdate struct {
	Title               *string
	Description         *string
	DetailedDescription *string
	OrderNumber         *int
	Blocked             *bool
	Reserve             *bool
	AutoAssignable      *bool
}

// Store is the persistence surface the HTTP layer works against. The
// Postgres implementation runs every slotlist mutation in a single
// transaction so order numbers stay dense under concurrent edits.
type Store interface {
	List(ctx context.Context, f Filter, opts ListOptions) ([]Mission, error)
	GetBySlug(ctx context.Context, slug string) (Mission, error)
	SlotGroups(ctx context.Context, missionUID string) ([]SlotGroup, error)

	CreateSlotGroup(ctx context.Context, missionUID string, in NewSlotGroup) (SlotGroup, error)
	UpdateSlotGroup(ctx context.Context, missionUID, groupUID string, upd SlotGroupUpdate) (SlotGroup, error)
	DeleteSlotGroup(ctx context.Context, missionUID, groupUID string) error

	CreateSlot(ctx context.Context, groupUID string, in NewSlot) (Slot, error)
	UpdateSlot(ctx context.Context, groupUID, slotUID string, upd SlotUpdate) (Slot, error)
	DeleteSlot(ctx context.Context, groupUID, slotUID string) error

	AssignSlot(ctx context.Context, slotUID, userUID string) error
	UnassignSlot(ctx context.Context, slotUID string) error
}

// Ended reports whether the mission's end time lies in the past.
func (m Mission) Ended(now time.Time) bool {
	return !m.EndTime.IsZero() && m.EndTime.Before(now)
}
