package httpapi

import (
	"context"
	"net/http"
	"testing"

	"slotlist.org/internal/auth"
)

func TestRefreshIssuesFreshToken(t *testing.T) {
	users := &stubUserDirectory{
		findUser: func(_ context.Context, uid string) (auth.UserClaim, error) {
			return auth.UserClaim{
				UID: uid, Nickname: "alice", Active: true,
				Community: &auth.CommunityClaim{UID: "c2", Slug: "new-home"},
			}, nil
		},
		userPermissions: func(_ context.Context, _ string) ([]string, error) {
			return []string{"community.new-home.leader"}, nil
		},
	}
	c := newTestAPI(t, Deps{Users: users})

	resp := c.do(http.MethodPost, "/v1/auth/refresh", nil, c.token("alice"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	token, _ := payload["token"].(string)
	if token == "" {
		t.Fatal("no token in response")
	}
	if payload["expires_at"] == "" {
		t.Fatal("no expiry in response")
	}

	// The new token reflects current state, not the old token's snapshot.
	claims, ok := c.tokens.Verify(token)
	if !ok {
		t.Fatal("refreshed token does not verify")
	}
	if claims.CommunityUID() != "c2" {
		t.Fatalf("community %q, want c2", claims.CommunityUID())
	}
	if !auth.HasPermission(claims.Permissions, "community.new-home.leader") {
		t.Fatalf("permissions not refreshed: %v", claims.Permissions)
	}
}

func TestRefreshDeactivatedAccount(t *testing.T) {
	users := &stubUserDirectory{
		findUser: func(_ context.Context, uid string) (auth.UserClaim, error) {
			return auth.UserClaim{UID: uid, Active: false}, nil
		},
	}
	c := newTestAPI(t, Deps{Users: users})

	resp := c.do(http.MethodPost, "/v1/auth/refresh", nil, c.token("alice"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestRefreshVanishedUser(t *testing.T) {
	users := &stubUserDirectory{
		findUser: func(_ context.Context, _ string) (auth.UserClaim, error) {
			return auth.UserClaim{}, auth.ErrNotFound
		},
	}
	c := newTestAPI(t, Deps{Users: users})

	resp := c.do(http.MethodPost, "/v1/auth/refresh", nil, c.token("alice"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestRefreshMethodNotAllowed(t *testing.T) {
	c := newTestAPI(t, Deps{})
	resp := c.do(http.MethodGet, "/v1/auth/refresh", nil, c.token("alice"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}
