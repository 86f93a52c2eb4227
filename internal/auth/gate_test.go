package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type stubGateStore struct {
	findFn    func(context.Context, string) (GateUser, error)
	pendingFn func(context.Context, string) (bool, error)
}

func (s *stubGateStore) FindGateUser(ctx context.Context, userUID string) (GateUser, error) {
	if s.findFn != nil {
		return s.findFn(ctx, userUID)
	}
	return GateUser{}, ErrNotFound
}

func (s *stubGateStore) HasSubmittedApplication(ctx context.Context, userUID string) (bool, error) {
	if s.pendingFn != nil {
		return s.pendingFn(ctx, userUID)
	}
	return false, nil
}

func TestGateUserWithCommunity(t *testing.T) {
	gate, err := NewCommunityGate(&stubGateStore{
		findFn: func(_ context.Context, uid string) (GateUser, error) {
			return GateUser{UID: uid, CommunityUID: "community-1"}, nil
		},
	})
	if err != nil {
		t.Fatalf("NewCommunityGate: %v", err)
	}
	allowed, reason, err := gate.CheckAccess(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("CheckAccess: %v", err)
	}
	if !allowed || reason != "" {
		t.Fatalf("member should pass the gate, got allowed=%v reason=%q", allowed, reason)
	}
}

func TestGatePendingApplication(t *testing.T) {
	gate, _ := NewCommunityGate(&stubGateStore{
		findFn: func(_ context.Context, uid string) (GateUser, error) {
			return GateUser{UID: uid}, nil
		},
		pendingFn: func(_ context.Context, _ string) (bool, error) {
			return true, nil
		},
	})
	allowed, reason, err := gate.CheckAccess(context.Background(), "user-2")
	if err != nil {
		t.Fatalf("CheckAccess: %v", err)
	}
	if allowed {
		t.Fatalf("pending applicant must not pass the gate")
	}
	if !strings.Contains(reason, "pending") {
		t.Fatalf("expected pending reason, got %q", reason)
	}
}

func TestGateNoCommunityNoApplication(t *testing.T) {
	gate, _ := NewCommunityGate(&stubGateStore{
		findFn: func(_ context.Context, uid string) (GateUser, error) {
			return GateUser{UID: uid}, nil
		},
	})
	allowed, reason, err := gate.CheckAccess(context.Background(), "user-3")
	if err != nil {
		t.Fatalf("CheckAccess: %v", err)
	}
	if allowed {
		t.Fatalf("non-member must not pass the gate")
	}
	if !strings.Contains(reason, "must") {
		t.Fatalf("expected must-join reason, got %q", reason)
	}
}

func TestGateUserNotFound(t *testing.T) {
	gate, _ := NewCommunityGate(&stubGateStore{})
	allowed, reason, err := gate.CheckAccess(context.Background(), "00000000-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("missing user is a reason, not an error: %v", err)
	}
	if allowed || !strings.Contains(reason, "not found") {
		t.Fatalf("expected not-found denial, got allowed=%v reason=%q", allowed, reason)
	}

	allowed, reason, err = gate.CheckAccess(context.Background(), "   ")
	if err != nil || allowed || reason != ReasonUserNotFound {
		t.Fatalf("blank uid should deny with not-found, got allowed=%v reason=%q err=%v", allowed, reason, err)
	}
}

func TestGateStoreFailure(t *testing.T) {
	boom := errors.New("connection refused")
	gate, _ := NewCommunityGate(&stubGateStore{
		findFn: func(_ context.Context, _ string) (GateUser, error) {
			return GateUser{}, boom
		},
	})
	_, _, err := gate.CheckAccess(context.Background(), "user-4")
	if !errors.Is(err, boom) {
		t.Fatalf("infrastructure failures must surface as errors, got %v", err)
	}
}
