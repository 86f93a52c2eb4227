package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"slotlist.org/internal/auth"
	"slotlist.org/internal/community"
	"slotlist.org/internal/mission"
	"slotlist.org/internal/obs"
	"slotlist.org/internal/stream"
)

// UserDirectory resolves fresh user state for token refresh.
type UserDirectory interface {
	FindUser(ctx context.Context, userUID string) (auth.UserClaim, error)
	UserPermissions(ctx context.Context, userUID string) ([]string, error)
}

// PermissionStore manages persisted permission strings.
type PermissionStore interface {
	GrantPermission(ctx context.Context, userUID, permission string) error
	RevokePermission(ctx context.Context, userUID, permission string) error
}

// ReadyProbe reports service readiness (database reachability).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Deps wires the HTTP layer to its collaborators.
type Deps struct {
	Missions    mission.Store
	Communities community.Store
	Users       UserDirectory
	Permissions PermissionStore
	Gate        *auth.CommunityGate
	Tokens      *auth.TokenService
	Stream      *stream.Stream
	ReadyProbe  ReadyProbe
	Version     string
}

// API is the HTTP layer.
type API struct {
	mux         *http.ServeMux
	missions    mission.Store
	communities community.Store
	users       UserDirectory
	permissions PermissionStore
	gate        *auth.CommunityGate
	tokens      *auth.TokenService
	stream      *stream.Stream
	readyProbe  ReadyProbe
	version     string
}

func New(deps Deps) *API {
	a := &API{
		mux:         http.NewServeMux(),
		missions:    deps.Missions,
		communities: deps.Communities,
		users:       deps.Users,
		permissions: deps.Permissions,
		gate:        deps.Gate,
		tokens:      deps.Tokens,
		stream:      deps.Stream,
		readyProbe:  deps.ReadyProbe,
		version:     deps.Version,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/refresh", a.handleAuthRefresh)
	a.mux.HandleFunc("/v1/missions", a.handleMissionsCollection)
	a.mux.HandleFunc("/v1/missions/", a.handleMissionResource)
	a.mux.HandleFunc("/v1/communities/", a.handleCommunityResource)
	a.mux.HandleFunc("/v1/users/", a.handleUserResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = obs.Instrument(h)
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, 50, 25)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return h
}

// --- health ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "slotlist-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

var errEmptyBody = errors.New("request body is required")

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("value must be an integer")
	}
	if val < min || val > max {
		return 0, errors.New("value out of range")
	}
	return val, nil
}
