package httpapi

import (
	"context"
	"net/http"
	"testing"

	"slotlist.org/internal/auth"
	"slotlist.org/internal/community"
	"slotlist.org/internal/mission"
)

func tf47() community.Community {
	return community.Community{UID: "c1", Name: "Task Force 47", Tag: "TF47", Slug: "tf47"}
}

func newGate(t *testing.T, store auth.GateStore) *auth.CommunityGate {
	t.Helper()
	gate, err := auth.NewCommunityGate(store)
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	return gate
}

func TestCommunityMissionsGateDeniesWithExactReasons(t *testing.T) {
	cases := []struct {
		name   string
		store  *stubGateStore
		reason string
	}{
		{
			name: "unknown user",
			store: &stubGateStore{
				findGateUser: func(_ context.Context, _ string) (auth.GateUser, error) {
					return auth.GateUser{}, auth.ErrNotFound
				},
			},
			reason: auth.ReasonUserNotFound,
		},
		{
			name: "pending application",
			store: &stubGateStore{
				findGateUser: func(_ context.Context, uid string) (auth.GateUser, error) {
					return auth.GateUser{UID: uid}, nil
				},
				hasApplication: func(_ context.Context, _ string) (bool, error) {
					return true, nil
				},
			},
			reason: auth.ReasonPendingMember,
		},
		{
			name: "no community",
			store: &stubGateStore{
				findGateUser: func(_ context.Context, uid string) (auth.GateUser, error) {
					return auth.GateUser{UID: uid}, nil
				},
				hasApplication: func(_ context.Context, _ string) (bool, error) {
					return false, nil
				},
			},
			reason: auth.ReasonMustJoinFirst,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestAPI(t, Deps{Gate: newGate(t, tc.store)})
			resp := c.do(http.MethodGet, "/v1/communities/tf47/missions", nil, c.token("alice"))
			if resp.StatusCode != http.StatusForbidden {
				t.Fatalf("unexpected status: %d", resp.StatusCode)
			}
			payload := decode[map[string]any](t, resp)
			if payload["error"] != tc.reason {
				t.Fatalf("reason %q, want %q", payload["error"], tc.reason)
			}
		})
	}
}

func TestCommunityMissionsMemberSeesOnlyCommunityBoard(t *testing.T) {
	communities := &stubCommunityStore{
		getCommunity: func(_ context.Context, slug string) (community.Community, error) {
			if slug != "tf47" {
				return community.Community{}, community.ErrNotFound
			}
			return tf47(), nil
		},
	}
	missions := &stubMissionStore{
		list: func(_ context.Context, _ mission.Filter, _ mission.ListOptions) ([]mission.Mission, error) {
			return []mission.Mission{
				{UID: "m1", Slug: "ours", Visibility: mission.VisibilityCommunity, CommunityUID: "c1"},
				{UID: "m2", Slug: "theirs", Visibility: mission.VisibilityPublic, CommunityUID: "c2"},
			}, nil
		},
	}
	c := newTestAPI(t, Deps{Missions: missions, Communities: communities})

	resp := c.do(http.MethodGet, "/v1/communities/tf47/missions", nil, c.token("alice"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	board, ok := payload["missions"].([]any)
	if !ok || len(board) != 1 {
		t.Fatalf("unexpected board: %v", payload["missions"])
	}
	first := board[0].(map[string]any)
	if first["slug"] != "ours" {
		t.Fatalf("unexpected mission on board: %v", first["slug"])
	}
}

func TestCommunityMissionsRequireToken(t *testing.T) {
	c := newTestAPI(t, Deps{})
	resp := c.do(http.MethodGet, "/v1/communities/tf47/missions", nil, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestApplicationStatusNone(t *testing.T) {
	communities := &stubCommunityStore{
		applicationStatus: func(_ context.Context, userUID, slug string) (community.Application, error) {
			return community.Application{}, community.ErrNotFound
		},
	}
	c := newTestAPI(t, Deps{Communities: communities})

	resp := c.do(http.MethodGet, "/v1/communities/tf47/applications/status", nil, c.token("alice"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	if payload["status"] != "none" {
		t.Fatalf("unexpected status payload: %v", payload["status"])
	}
}

func TestApplicationStatusSubmitted(t *testing.T) {
	communities := &stubCommunityStore{
		applicationStatus: func(_ context.Context, userUID, slug string) (community.Application, error) {
			return community.Application{
				UID: "a1", UserUID: userUID, CommunityUID: "c1",
				Status: community.StatusSubmitted,
			}, nil
		},
	}
	c := newTestAPI(t, Deps{Communities: communities})

	resp := c.do(http.MethodGet, "/v1/communities/tf47/applications/status", nil, c.token("alice"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	if payload["status"] != "submitted" {
		t.Fatalf("unexpected status payload: %v", payload["status"])
	}
}

func TestApplyToCommunity(t *testing.T) {
	var gotText string
	communities := &stubCommunityStore{
		apply: func(_ context.Context, userUID, slug, text string) (community.Application, error) {
			gotText = text
			return community.Application{
				UID: "a1", UserUID: userUID, CommunityUID: "c1",
				Status: community.StatusSubmitted, Text: text,
			}, nil
		},
	}
	c := newTestAPI(t, Deps{Communities: communities})

	body := map[string]any{"text": "long-time arma player"}
	resp := c.do(http.MethodPost, "/v1/communities/tf47/applications", body, c.token("alice"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if gotText != "long-time arma player" {
		t.Fatalf("store received text %q", gotText)
	}
}

func TestApplyDuplicateIsConflict(t *testing.T) {
	communities := &stubCommunityStore{
		apply: func(_ context.Context, _, _, _ string) (community.Application, error) {
			return community.Application{}, community.ErrAlreadyApplied
		},
	}
	c := newTestAPI(t, Deps{Communities: communities})

	resp := c.do(http.MethodPost, "/v1/communities/tf47/applications", nil, c.token("alice"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestProcessApplicationRequiresPermission(t *testing.T) {
	c := newTestAPI(t, Deps{Communities: &stubCommunityStore{}})

	body := map[string]any{"approve": true}
	resp := c.do(http.MethodPatch, "/v1/communities/tf47/applications/a1", body, c.token("alice"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestProcessApplicationAsLeader(t *testing.T) {
	var gotApprove bool
	var gotCommunity string
	communities := &stubCommunityStore{
		getCommunity: func(_ context.Context, slug string) (community.Community, error) {
			return tf47(), nil
		},
		process: func(_ context.Context, communityUID, applicationUID string, approve bool) (community.Application, error) {
			gotCommunity = communityUID
			gotApprove = approve
			return community.Application{
				UID: applicationUID, CommunityUID: communityUID,
				Status: community.StatusApproved,
			}, nil
		},
	}
	c := newTestAPI(t, Deps{Communities: communities})

	body := map[string]any{"approve": true}
	resp := c.do(http.MethodPatch, "/v1/communities/tf47/applications/a1", body,
		c.token("leader", "community.tf47.leader"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if !gotApprove || gotCommunity != "c1" {
		t.Fatalf("store received approve=%v community=%q", gotApprove, gotCommunity)
	}
}

func TestProcessApplicationAlreadyDecided(t *testing.T) {
	communities := &stubCommunityStore{
		getCommunity: func(_ context.Context, _ string) (community.Community, error) {
			return tf47(), nil
		},
		process: func(_ context.Context, _, _ string, _ bool) (community.Application, error) {
			return community.Application{}, community.ErrInvalidInput
		},
	}
	c := newTestAPI(t, Deps{Communities: communities})

	body := map[string]any{"approve": false}
	resp := c.do(http.MethodPatch, "/v1/communities/tf47/applications/a1", body,
		c.token("leader", "admin.community"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}
