// Package community models communities and membership applications. A
// user belongs to at most one community; joining goes through an
// application that a community leader approves or denies.
package community

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("community: not found")
	ErrAlreadyApplied = errors.New("community: application already submitted")
	ErrAlreadyMember  = errors.New("community: user already belongs to a community")
	ErrInvalidInput   = errors.New("community: invalid input")
)

// ApplicationStatus is the lifecycle state of a membership application.
type ApplicationStatus string

const (
	StatusSubmitted ApplicationStatus = "submitted"
	StatusApproved  ApplicationStatus = "approved"
	StatusDenied    ApplicationStatus = "denied"
)

// Valid reports whether s is one of the three application states.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusSubmitted, StatusApproved, StatusDenied:
		return true
	}
	return false
}

type Community struct {
	UID       string    `json:"uid"`
	Name      string    `json:"name"`
	Tag       string    `json:"tag"`
	Slug      string    `json:"slug"`
	Website   string    `json:"website,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Application struct {
	UID          string            `json:"uid"`
	UserUID      string            `json:"user_uid"`
	CommunityUID string            `json:"community_uid"`
	Status       ApplicationStatus `json:"status"`
	Text         string            `json:"text,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Store is the persistence surface for communities and applications.
//
// Apply enforces one application per (user, community) pair: a denied
// application blocks re-application the same way a pending one does.
// Process moves a submitted application to approved or denied; approval
// also sets the applicant's community, atomically with the status change.
type Store interface {
	GetCommunity(ctx context.Context, slug string) (Community, error)
	ApplicationStatus(ctx context.Context, userUID, communitySlug string) (Application, error)
	Apply(ctx context.Context, userUID, communitySlug, text string) (Application, error)
	Process(ctx context.Context, communityUID, applicationUID string, approve bool) (Application, error)
}
