package auth

import (
	"context"
	"errors"
	"strings"
)

// Gate denial reasons, surfaced verbatim to clients.
const (
	ReasonUserNotFound  = "User not found"
	ReasonPendingMember = "You have a pending community application. Please wait for approval."
	ReasonMustJoinFirst = "You must be a member of a community to access this content. Please apply to a community first."
)

// GateUser is the slice of the user record the gate needs.
type GateUser struct {
	UID          string
	CommunityUID string
}

// GateStore describes persistence required by the community gate.
type GateStore interface {
	// FindGateUser returns ErrNotFound when no user exists for the uid.
	FindGateUser(ctx context.Context, userUID string) (GateUser, error)
	// HasSubmittedApplication reports whether the user has any community
	// application still in the submitted state.
	HasSubmittedApplication(ctx context.Context, userUID string) (bool, error)
}

// CommunityGate decides whether a user is past the approved-community
// requirement. It is consulted in addition to token verification, never
// instead of it.
type CommunityGate struct {
	store GateStore
}

// NewCommunityGate constructs the gate.
func NewCommunityGate(store GateStore) (*CommunityGate, error) {
	if store == nil {
		return nil, errors.New("auth: gate store is required")
	}
	return &CommunityGate{store: store}, nil
}

// CheckAccess reports whether the user may pass the gate. The reason is
// empty when access is allowed. A missing user is reported as a reason,
// not an error; the error return carries infrastructure failures only.
func (g *CommunityGate) CheckAccess(ctx context.Context, userUID string) (bool, string, error) {
	userUID = strings.TrimSpace(userUID)
	if userUID == "" {
		return false, ReasonUserNotFound, nil
	}
	user, err := g.store.FindGateUser(ctx, userUID)
	if errors.Is(err, ErrNotFound) {
		return false, ReasonUserNotFound, nil
	}
	if err != nil {
		return false, "", err
	}
	if user.CommunityUID != "" {
		return true, "", nil
	}
	pending, err := g.store.HasSubmittedApplication(ctx, userUID)
	if err != nil {
		return false, "", err
	}
	if pending {
		return false, ReasonPendingMember, nil
	}
	return false, ReasonMustJoinFirst, nil
}
