package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"slotlist.org/internal/auth"
	"slotlist.org/internal/community"
	"slotlist.org/internal/mission"
)

var errUnexpectedCall = errors.New("unexpected store call")

type stubMissionStore struct {
	list            func(ctx context.Context, f mission.Filter, opts mission.ListOptions) ([]mission.Mission, error)
	getBySlug       func(ctx context.Context, slug string) (mission.Mission, error)
	slotGroups      func(ctx context.Context, missionUID string) ([]mission.SlotGroup, error)
	createSlotGroup func(ctx context.Context, missionUID string, in mission.NewSlotGroup) (mission.SlotGroup, error)
	updateSlotGroup func(ctx context.Context, missionUID, groupUID string, upd mission.SlotGroupUpdate) (mission.SlotGroup, error)
	deleteSlotGroup func(ctx context.Context, missionUID, groupUID string) error
	createSlot      func(ctx context.Context, groupUID string, in mission.NewSlot) (mission.Slot, error)
	updateSlot      func(ctx context.Context, groupUID, slotUID string, upd mission.SlotUpdate) (mission.Slot, error)
	deleteSlot      func(ctx context.Context, groupUID, slotUID string) error
	assignSlot      func(ctx context.Context, slotUID, userUID string) error
	unassignSlot    func(ctx context.Context, slotUID string) error
}

func (s *stubMissionStore) List(ctx context.Context, f mission.Filter, opts mission.ListOptions) ([]mission.Mission, error) {
	if s.list == nil {
		return nil, errUnexpectedCall
	}
	return s.list(ctx, f, opts)
}

func (s *stubMissionStore) GetBySlug(ctx context.Context, slug string) (mission.Mission, error) {
	if s.getBySlug == nil {
		return mission.Mission{}, errUnexpectedCall
	}
	return s.getBySlug(ctx, slug)
}

func (s *stubMissionStore) SlotGroups(ctx context.Context, missionUID string) ([]mission.SlotGroup, error) {
	if s.slotGroups == nil {
		return nil, errUnexpectedCall
	}
	return s.slotGroups(ctx, missionUID)
}

func (s *stubMissionStore) CreateSlotGroup(ctx context.Context, missionUID string, in mission.NewSlotGroup) (mission.SlotGroup, error) {
	if s.createSlotGroup == nil {
		return mission.SlotGroup{}, errUnexpectedCall
	}
	return s.createSlotGroup(ctx, missionUID, in)
}

func (s *stubMissionStore) UpdateSlotGroup(ctx context.Context, missionUID, groupUID string, upd mission.SlotGroupUpdate) (mission.SlotGroup, error) {
	if s.updateSlotGroup == nil {
		return mission.SlotGroup{}, errUnexpectedCall
	}
	return s.updateSlotGroup(ctx, missionUID, groupUID, upd)
}

func (s *stubMissionStore) DeleteSlotGroup(ctx context.Context, missionUID, groupUID string) error {
	if s.deleteSlotGroup == nil {
		return errUnexpectedCall
	}
	return s.deleteSlotGroup(ctx, missionUID, groupUID)
}

func (s *stubMissionStore) CreateSlot(ctx context.Context, groupUID string, in mission.NewSlot) (mission.Slot, error) {
	if s.createSlot == nil {
		return mission.Slot{}, errUnexpectedCall
	}
	return s.createSlot(ctx, groupUID, in)
}

func (s *stubMissionStore) UpdateSlot(ctx context.Context, groupUID, slotUID string, upd mission.SlotUpdate) (mission.Slot, error) {
	if s.updateSlot == nil {
		return mission.Slot{}, errUnexpectedCall
	}
	return s.updateSlot(ctx, groupUID, slotUID, upd)
}

func (s *stubMissionStore) DeleteSlot(ctx context.Context, groupUID, slotUID string) error {
	if s.deleteSlot == nil {
		return errUnexpectedCall
	}
	return s.deleteSlot(ctx, groupUID, slotUID)
}

func (s *stubMissionStore) AssignSlot(ctx context.Context, slotUID, userUID string) error {
	if s.assignSlot == nil {
		return errUnexpectedCall
	}
	return s.assignSlot(ctx, slotUID, userUID)
}

func (s *stubMissionStore) UnassignSlot(ctx context.Context, slotUID string) error {
	if s.unassignSlot == nil {
		return errUnexpectedCall
	}
	return s.unassignSlot(ctx, slotUID)
}

type stubCommunityStore struct {
	getCommunity      func(ctx context.Context, slug string) (community.Community, error)
	applicationStatus func(ctx context.Context, userUID, slug string) (community.Application, error)
	apply             func(ctx context.Context, userUID, slug, text string) (community.Application, error)
	process           func(ctx context.Context, communityUID, applicationUID string, approve bool) (community.Application, error)
}

func (s *stubCommunityStore) GetCommunity(ctx context.Context, slug string) (community.Community, error) {
	if s.getCommunity == nil {
		return community.Community{}, errUnexpectedCall
	}
	return s.getCommunity(ctx, slug)
}

func (s *stubCommunityStore) ApplicationStatus(ctx context.Context, userUID, slug string) (community.Application, error) {
	if s.applicationStatus == nil {
		return community.Application{}, errUnexpectedCall
	}
	return s.applicationStatus(ctx, userUID, slug)
}

func (s *stubCommunityStore) Apply(ctx context.Context, userUID, slug, text string) (community.Application, error) {
	if s.apply == nil {
		return community.Application{}, errUnexpectedCall
	}
	return s.apply(ctx, userUID, slug, text)
}

func (s *stubCommunityStore) Process(ctx context.Context, communityUID, applicationUID string, approve bool) (community.Application, error) {
	if s.process == nil {
		return community.Application{}, errUnexpectedCall
	}
	return s.process(ctx, communityUID, applicationUID, approve)
}

type stubUserDirectory struct {
	findUser        func(ctx context.Context, userUID string) (auth.UserClaim, error)
	userPermissions func(ctx context.Context, userUID string) ([]string, error)
}

func (s *stubUserDirectory) FindUser(ctx context.Context, userUID string) (auth.UserClaim, error) {
	if s.findUser == nil {
		return auth.UserClaim{}, errUnexpectedCall
	}
	return s.findUser(ctx, userUID)
}

func (s *stubUserDirectory) UserPermissions(ctx context.Context, userUID string) ([]string, error) {
	if s.userPermissions == nil {
		return nil, errUnexpectedCall
	}
	return s.userPermissions(ctx, userUID)
}

type stubPermissionStore struct {
	grant  func(ctx context.Context, userUID, permission string) error
	revoke func(ctx context.Context, userUID, permission string) error
}

func (s *stubPermissionStore) GrantPermission(ctx context.Context, userUID, permission string) error {
	if s.grant == nil {
		return errUnexpectedCall
	}
	return s.grant(ctx, userUID, permission)
}

func (s *stubPermissionStore) RevokePermission(ctx context.Context, userUID, permission string) error {
	if s.revoke == nil {
		return errUnexpectedCall
	}
	return s.revoke(ctx, userUID, permission)
}

type stubGateStore struct {
	findGateUser   func(ctx context.Context, userUID string) (auth.GateUser, error)
	hasApplication func(ctx context.Context, userUID string) (bool, error)
}

func (s *stubGateStore) FindGateUser(ctx context.Context, userUID string) (auth.GateUser, error) {
	if s.findGateUser == nil {
		return auth.GateUser{}, errUnexpectedCall
	}
	return s.findGateUser(ctx, userUID)
}

func (s *stubGateStore) HasSubmittedApplication(ctx context.Context, userUID string) (bool, error) {
	if s.hasApplication == nil {
		return false, errUnexpectedCall
	}
	return s.hasApplication(ctx, userUID)
}

// memberGateStore passes every known caller through the community gate.
func memberGateStore() *stubGateStore {
	return &stubGateStore{
		findGateUser: func(_ context.Context, uid string) (auth.GateUser, error) {
			return auth.GateUser{UID: uid, CommunityUID: "c1"}, nil
		},
	}
}

func newTestTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	svc, err := auth.NewTokenService(auth.Config{
		Secret:   "test-secret",
		Issuer:   "slotlist-test",
		Audience: "slotlist-users",
	})
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	return svc
}

type apiClient struct {
	baseURL string
	client  *http.Client
	tokens  *auth.TokenService
	t       *testing.T
}

func newTestAPI(t *testing.T, deps Deps) *apiClient {
	t.Helper()

	tokens := newTestTokens(t)
	deps.Tokens = tokens
	if deps.Gate == nil {
		gate, err := auth.NewCommunityGate(memberGateStore())
		if err != nil {
			t.Fatalf("gate: %v", err)
		}
		deps.Gate = gate
	}
	if deps.Version == "" {
		deps.Version = "test"
	}

	srv := httptest.NewServer(New(deps).Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		tokens:  tokens,
		t:       t,
	}
}

// token issues a bearer token for a member of community c1.
func (c *apiClient) token(uid string, permissions ...string) string {
	c.t.Helper()
	signed, _, err := c.tokens.Issue(auth.UserClaim{
		UID:      uid,
		Nickname: uid,
		Active:   true,
		Community: &auth.CommunityClaim{
			UID: "c1", Name: "Task Force 47", Tag: "TF47", Slug: "tf47",
		},
	}, permissions)
	if err != nil {
		c.t.Fatalf("issue token: %v", err)
	}
	return signed
}

func (c *apiClient) do(method, path string, body any, token string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealthz(t *testing.T) {
	c := newTestAPI(t, Deps{})
	resp := c.do(http.MethodGet, "/healthz", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	if payload["service"] != "slotlist-api" {
		t.Fatalf("unexpected service: %v", payload["service"])
	}
	if payload["version"] != "test" {
		t.Fatalf("unexpected version: %v", payload["version"])
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	c := newTestAPI(t, Deps{})
	resp := c.do(http.MethodGet, "/v1/nope", nil, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}
