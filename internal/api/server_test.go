package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/fieldlink/fieldlink-core/internal/auth"
	"github.com/fieldlink/fieldlink-core/internal/command"
	"github.com/fieldlink/fieldlink-core/internal/coordinator"
	"github.com/fieldlink/fieldlink-core/internal/dispatch"
	"github.com/fieldlink/fieldlink-core/internal/eventbus"
	"github.com/fieldlink/fieldlink-core/internal/gateway"
	"github.com/fieldlink/fieldlink-core/internal/infrastructure/config"
	"github.com/fieldlink/fieldlink-core/internal/infrastructure/database"
	"github.com/fieldlink/fieldlink-core/internal/infrastructure/logging"
	"github.com/fieldlink/fieldlink-core/internal/infrastructure/mqtt"
	"github.com/fieldlink/fieldlink-core/internal/protocol"
	"github.com/fieldlink/fieldlink-core/internal/usage"
	"github.com/fieldlink/fieldlink-core/migrations"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

// fakeBroker stands in for the broker client.
type fakeBroker struct {
	mu        sync.Mutex
	connected bool
	frames    []protocol.DeviceFrame
}

func (f *fakeBroker) PublishFrame(_ context.Context, frame protocol.DeviceFrame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeBroker) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeBroker) Status() mqtt.Status {
	if f.IsConnected() {
		return mqtt.StatusConnected
	}
	return mqtt.StatusDisconnected
}

func (f *fakeBroker) published() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

type testEnv struct {
	url     string
	db      *sql.DB
	broker  *fakeBroker
	bus     *eventbus.Bus
	gateway *gateway.Gateway
	admin   string
	user    string
}

// newTestEnv wires a server over in-memory SQLite with the real resolver,
// orchestrator, bus and gateway. Only the broker is faked.
func newTestEnv(t *testing.T, devMode bool, overrides ...func(*Deps)) *testEnv {
	t.Helper()
	ctx := context.Background()
	log := logging.Discard()

	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	env := &testEnv{db: db.DB, broker: &fakeBroker{connected: true}}
	env.admin = env.seedUser(t, 1, "admin", true)
	env.user = env.seedUser(t, 2, "operator", false)
	for _, stmt := range []string{
		"INSERT INTO coordinators (id, name) VALUES (1, 'north'), (2, 'south')",
		"INSERT INTO coordinator_nodes (id, coordinator_id, name) VALUES (10, 1, 'n10'), (11, 1, 'n11'), (20, 2, 'n20')",
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("seeding: %v", err)
		}
	}

	env.bus = eventbus.New(log)
	t.Cleanup(func() { env.bus.Close(context.Background()) }) //nolint:errcheck // test cleanup

	resolver := auth.NewResolver(auth.NewSQLiteStore(db.DB), testSecret)
	membership := coordinator.NewSQLiteRepository(db.DB)
	catalog := command.DefaultCatalog()

	env.gateway = gateway.New(config.WebSocketConfig{Path: "/ws", PingInterval: 30, SendBuffer: 8}, resolver, log, nil)
	t.Cleanup(env.gateway.Close)
	unsubscribe := env.gateway.Attach(env.bus)
	t.Cleanup(unsubscribe)

	deps := Deps{
		Config:   config.APIConfig{Host: "127.0.0.1"},
		WS:       config.WebSocketConfig{Path: "/ws"},
		DevMode:  devMode,
		Version:  "test",
		Logger:   log,
		Resolver: resolver,
		Catalog:  catalog,
		Dispatch: dispatch.New(dispatch.Config{
			Catalog:    catalog,
			Membership: membership,
			Frames:     env.broker,
			Events:     env.bus,
			Logger:     log,
		}),
		Broker:   env.broker,
		Nodes:    membership,
		Usage:    usage.NewSQLiteStore(db.DB),
		Events:   env.bus,
		Gateway:  env.gateway,
		Metrics:  http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("# metrics\n")) }), //nolint:errcheck // test
		Database: db,
	}
	for _, override := range overrides {
		override(&deps)
	}
	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	env.url = ts.URL
	return env
}

// seedUser creates a user with a stored, valid token and returns the token.
func (e *testEnv) seedUser(t *testing.T, id int, name string, admin bool) string {
	t.Helper()

	isAdmin := 0
	if admin {
		isAdmin = 1
	}
	if _, err := e.db.Exec("INSERT INTO users (id, name, is_admin) VALUES (?, ?, ?)", id, name, isAdmin); err != nil {
		t.Fatalf("seeding user: %v", err)
	}

	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		Result:           auth.TokenSubject{ID: id, Name: name},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	if _, err := e.db.Exec("INSERT INTO user_tokens (token, user_id) VALUES (?, ?)", token, id); err != nil {
		t.Fatalf("seeding token: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) (*http.Response, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(method, e.url+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body) //nolint:errcheck // test
	var decoded map[string]any
	_ = json.Unmarshal(buf.Bytes(), &decoded) //nolint:errcheck // some bodies are not objects
	return resp, decoded
}

// ─── Health & metrics ──────────────────────────────────────────────

func TestHealth(t *testing.T) {
	env := newTestEnv(t, false)

	resp, body := env.do(t, http.MethodGet, "/api/v1/health", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["status"] != "ok" || body["broker"] != "connected" || body["database"] != "ok" {
		t.Errorf("body = %v", body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

type fakeHealth struct{ err error }

func (f fakeHealth) HealthCheck(context.Context) error { return f.err }

func TestHealth_Dependencies(t *testing.T) {
	down := fakeHealth{err: errors.New("down")}

	tests := []struct {
		name     string
		deps     func(*Deps)
		status   int
		overall  string
		mqtt     any
		influxdb any
	}{
		{
			name:     "all healthy",
			deps:     func(d *Deps) { d.MQTT, d.InfluxDB = fakeHealth{}, fakeHealth{} },
			status:   http.StatusOK,
			overall:  "ok",
			mqtt:     "ok",
			influxdb: "ok",
		},
		{
			name:    "influxdb disabled",
			deps:    func(d *Deps) { d.MQTT = fakeHealth{} },
			status:  http.StatusOK,
			overall: "ok",
			mqtt:    "ok",
		},
		{
			name:     "broker down",
			deps:     func(d *Deps) { d.MQTT, d.InfluxDB = down, fakeHealth{} },
			status:   http.StatusOK,
			overall:  "degraded",
			mqtt:     "unavailable",
			influxdb: "ok",
		},
		{
			name:    "database down",
			deps:    func(d *Deps) { d.Database = down },
			status:  http.StatusServiceUnavailable,
			overall: "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, false, tt.deps)

			resp, body := env.do(t, http.MethodGet, "/api/v1/health", "", "")
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if body["status"] != tt.overall {
				t.Errorf("body status = %v, want %s", body["status"], tt.overall)
			}
			if body["mqtt"] != tt.mqtt {
				t.Errorf("mqtt = %v, want %v", body["mqtt"], tt.mqtt)
			}
			if body["influxdb"] != tt.influxdb {
				t.Errorf("influxdb = %v, want %v", body["influxdb"], tt.influxdb)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, false)

	resp, _ := env.do(t, http.MethodGet, "/api/v1/metrics", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

// ─── Authentication ────────────────────────────────────────────────

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, false)

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodGet, "/api/v1/commands", tt.token, "")
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", resp.StatusCode)
			}
			if body["code"] != ErrCodeUnauthorized {
				t.Errorf("code = %v", body["code"])
			}
		})
	}
}

func TestAuth_RevokedToken(t *testing.T) {
	env := newTestEnv(t, false)
	if _, err := env.db.Exec("DELETE FROM user_tokens WHERE user_id = 2"); err != nil {
		t.Fatalf("revoking: %v", err)
	}

	resp, _ := env.do(t, http.MethodGet, "/api/v1/commands", env.user, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

// ─── Commands ──────────────────────────────────────────────────────

func TestListCommands(t *testing.T) {
	env := newTestEnv(t, false)

	resp, body := env.do(t, http.MethodGet, "/api/v1/commands", env.user, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if int(body["count"].(float64)) != command.DefaultCatalog().Len() {
		t.Errorf("count = %v", body["count"])
	}
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		connected bool
		status    int
		code      string
		frames    int
	}{
		{"coordinator command", `{"commandId":7,"coordinatorIds":[1,2]}`, true, http.StatusAccepted, "", 2},
		{"node command", `{"commandId":12,"coordinatorIds":[1],"nodeIds":[10,11],"parameters":[1,2.5]}`, true, http.StatusAccepted, "", 2},
		{"malformed body", `{"commandId":"x"}`, true, http.StatusBadRequest, ErrCodeValidation, 0},
		{"unknown command", `{"commandId":404,"coordinatorIds":[1]}`, true, http.StatusNotFound, ErrCodeNotFound, 0},
		{"unknown node", `{"commandId":1,"coordinatorIds":[1],"nodeIds":[20]}`, true, http.StatusNotFound, ErrCodeNotFound, 0},
		{"out of range", `{"commandId":8,"coordinatorIds":[1],"parameters":[0]}`, true, http.StatusBadRequest, ErrCodeValidation, 0},
		{"broker down", `{"commandId":7,"coordinatorIds":[1]}`, false, http.StatusInternalServerError, ErrCodeBrokerUnavailable, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, false)
			env.broker.connected = tt.connected

			resp, body := env.do(t, http.MethodPost, "/api/v1/commands", env.user, tt.body)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d (body %v)", resp.StatusCode, tt.status, body)
			}
			if tt.code != "" && body["code"] != tt.code {
				t.Errorf("code = %v, want %s", body["code"], tt.code)
			}
			if tt.status == http.StatusAccepted {
				if id, ok := body["orderId"].(float64); !ok || id < 1 {
					t.Errorf("orderId = %v", body["orderId"])
				}
			}
			if got := env.broker.published(); got != tt.frames {
				t.Errorf("frames published = %d, want %d", got, tt.frames)
			}
		})
	}
}

func TestBrokerStatus(t *testing.T) {
	env := newTestEnv(t, false)

	_, body := env.do(t, http.MethodGet, "/api/v1/commands/broker", env.user, "")
	if body["success"] != true || body["data"] != "connected" {
		t.Errorf("body = %v", body)
	}
}

func TestCoordinatorNodes(t *testing.T) {
	env := newTestEnv(t, false)

	resp, body := env.do(t, http.MethodGet, "/api/v1/coordinators/nodes", env.user, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	nodes, ok := body["1"].([]any)
	if !ok || len(nodes) != 2 {
		t.Errorf("coordinator 1 nodes = %v", body["1"])
	}
}

func TestUsage_RecordedAfterDispatch(t *testing.T) {
	env := newTestEnv(t, false)
	store := usage.NewSQLiteStore(env.db)
	unsubscribe := usage.NewRecorder(store, nil, logging.Discard(), nil).Attach(env.bus)
	defer unsubscribe()

	resp, _ := env.do(t, http.MethodPost, "/api/v1/commands", env.user, `{"commandId":7,"coordinatorIds":[1]}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("dispatch status = %d", resp.StatusCode)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, body := env.do(t, http.MethodGet, "/api/v1/commands/usage", env.user, "")
		if list, ok := body["usage"].([]any); ok && len(list) == 1 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("usage record not written")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// ─── Dev mode echo ─────────────────────────────────────────────────

func TestTestWS(t *testing.T) {
	t.Run("absent outside dev mode", func(t *testing.T) {
		env := newTestEnv(t, false)
		resp, _ := env.do(t, http.MethodPost, "/api/v1/commands/test-ws", env.admin, `{"message":"hi"}`)
		if resp.StatusCode != http.StatusNotFound && resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 404/405", resp.StatusCode)
		}
	})

	t.Run("admin only", func(t *testing.T) {
		env := newTestEnv(t, true)
		resp, _ := env.do(t, http.MethodPost, "/api/v1/commands/test-ws", env.user, `{"message":"hi"}`)
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status = %d, want 403", resp.StatusCode)
		}
	})

	t.Run("broadcast reaches subscribers", func(t *testing.T) {
		env := newTestEnv(t, true)
		conn := env.dialWS(t, env.user)

		resp, _ := env.do(t, http.MethodPost, "/api/v1/commands/test-ws", env.admin, `{"message":"hi"}`)
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("status = %d, want 202", resp.StatusCode)
		}

		conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test
		var frame map[string]any
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		if frame["type"] != "echo" || frame["message"] != "hi" {
			t.Errorf("frame = %v", frame)
		}
	})
}

// ─── WebSocket ─────────────────────────────────────────────────────

func (e *testEnv) dialWS(t *testing.T, token string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(e.url, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer " + token}})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() }) //nolint:errcheck // test cleanup

	deadline := time.Now().Add(2 * time.Second)
	for e.gateway.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func TestWebSocket_RejectsWithoutToken(t *testing.T) {
	env := newTestEnv(t, false)

	url := "ws" + strings.TrimPrefix(env.url, "http") + "/api/v1/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Dial() succeeded without a token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %v, want 401", resp)
	}
	if n := env.gateway.ClientCount(); n != 0 {
		t.Errorf("ClientCount() = %d, want 0", n)
	}
}

func TestWebSocket_ReceivesCommandUsage(t *testing.T) {
	env := newTestEnv(t, false)
	conn := env.dialWS(t, env.user)

	resp, body := env.do(t, http.MethodPost, "/api/v1/commands", env.user, `{"commandId":7,"coordinatorIds":[2]}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("dispatch status = %d", resp.StatusCode)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test
	var frame map[string]any
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if frame["type"] != "command_usage" || frame["commandId"] != float64(7) || frame["orderId"] != body["orderId"] {
		t.Errorf("frame = %v", frame)
	}
}
