package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/luminapp/lumin/internal/auth"
	"github.com/luminapp/lumin/internal/billing"
	"github.com/luminapp/lumin/internal/config"
	"github.com/luminapp/lumin/internal/storage"
	"github.com/luminapp/lumin/internal/storage/bolt"
	"github.com/luminapp/lumin/internal/tasks"
	"github.com/luminapp/lumin/internal/timer"
	"github.com/rs/zerolog"
)

const testWebhookSecret = "whsec_api_test"

type testServer struct {
	server *Server
	store  storage.Store
	token  string
	userID string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := bolt.Open(filepath.Join(t.TempDir(), "api_test.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := zerolog.Nop()
	authService := auth.NewService(store.Users(), "api-test-secret", time.Hour, logger)
	taskService := tasks.NewService(store, nil, logger)
	timers := timer.NewManager(taskService, taskService, timer.Config{}, logger)
	t.Cleanup(timers.Shutdown)

	processor := billing.NewProcessor(testWebhookSecret, store.Entitlements(), logger)
	checkout := billing.NewCheckout(config.StripeConfig{SecretKey: "sk_test"}, "https://lumin.test", logger)
	cache := billing.NewEntitlementCache(store.Entitlements(), 100, time.Minute)
	processor.OnEntitlementChange(func(ent storage.UserEntitlement) {
		cache.Invalidate(ent.UserID)
	})

	server := NewServer(Config{}, store, authService, taskService, timers, processor, checkout, cache, logger)

	ts := &testServer{server: server, store: store}

	// Register a user for the authenticated endpoints.
	resp := ts.do(t, "POST", "/api/auth/signup", map[string]string{
		"email":    "test@example.com",
		"password": "passw0rd!",
	}, "")
	if resp.Code != http.StatusCreated {
		t.Fatalf("Signup returned %d: %s", resp.Code, resp.Body.String())
	}
	var authResp struct {
		Token string       `json:"token"`
		User  storage.User `json:"user"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &authResp); err != nil {
		t.Fatalf("Failed to decode signup response: %v", err)
	}
	ts.token = authResp.Token
	ts.userID = authResp.User.ID

	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	return rec
}

func signWebhookPayload(payload []byte, secret string) string {
	ts := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func checkoutEventPayload(userID string) []byte {
	metadata := ""
	if userID != "" {
		metadata = fmt.Sprintf(`"userId": %q`, userID)
	}
	return []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"api_version": "2025-03-31",
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_1",
				"object": "checkout.session",
				"customer": "cus_1",
				"customer_email": "test@example.com",
				"metadata": {%s}
			}
		}
	}`, metadata))
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	paths := []struct {
		method string
		path   string
	}{
		{"GET", "/api/tasks"},
		{"GET", "/api/stats"},
		{"GET", "/api/settings"},
		{"GET", "/api/entitlement"},
	}
	for _, p := range paths {
		resp := ts.do(t, p.method, p.path, nil, "")
		if resp.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without token returned %d, want 401", p.method, p.path, resp.Code)
		}
	}

	resp := ts.do(t, "GET", "/api/tasks", nil, "not-a-token")
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Bad token returned %d, want 401", resp.Code)
	}
}

func TestLoginFlow(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "POST", "/api/auth/login", map[string]string{
		"email":    "test@example.com",
		"password": "passw0rd!",
	}, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("Login returned %d: %s", resp.Code, resp.Body.String())
	}

	resp = ts.do(t, "POST", "/api/auth/login", map[string]string{
		"email":    "test@example.com",
		"password": "wrong-password",
	}, "")
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Wrong password returned %d, want 401", resp.Code)
	}

	resp = ts.do(t, "GET", "/api/auth/me", nil, ts.token)
	if resp.Code != http.StatusOK {
		t.Fatalf("Me returned %d", resp.Code)
	}
}

func TestTaskLifecycle(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "POST", "/api/tasks", map[string]string{"text": "Write report"}, ts.token)
	if resp.Code != http.StatusCreated {
		t.Fatalf("Create returned %d: %s", resp.Code, resp.Body.String())
	}
	var task storage.Task
	if err := json.Unmarshal(resp.Body.Bytes(), &task); err != nil {
		t.Fatalf("Failed to decode task: %v", err)
	}

	resp = ts.do(t, "POST", "/api/tasks", map[string]string{"text": "   "}, ts.token)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Blank task returned %d, want 400", resp.Code)
	}

	resp = ts.do(t, "GET", "/api/tasks", nil, ts.token)
	if resp.Code != http.StatusOK {
		t.Fatalf("List returned %d", resp.Code)
	}
	var list []storage.Task
	if err := json.Unmarshal(resp.Body.Bytes(), &list); err != nil {
		t.Fatalf("Failed to decode list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("Expected 1 task, got %d", len(list))
	}

	resp = ts.do(t, "PUT", "/api/tasks/"+task.ID, map[string]bool{"completed": true}, ts.token)
	if resp.Code != http.StatusOK {
		t.Fatalf("Update returned %d: %s", resp.Code, resp.Body.String())
	}
	var updated storage.Task
	if err := json.Unmarshal(resp.Body.Bytes(), &updated); err != nil {
		t.Fatalf("Failed to decode updated task: %v", err)
	}
	if !updated.Completed || updated.CompletedAt == nil {
		t.Error("Expected completed task with timestamp")
	}

	resp = ts.do(t, "DELETE", "/api/tasks/"+task.ID, nil, ts.token)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("Delete returned %d", resp.Code)
	}

	resp = ts.do(t, "GET", "/api/tasks/"+task.ID, nil, ts.token)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Get deleted task returned %d, want 404", resp.Code)
	}
}

func TestSettingsValidation(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "GET", "/api/settings", nil, ts.token)
	if resp.Code != http.StatusOK {
		t.Fatalf("Get settings returned %d", resp.Code)
	}
	var settings storage.UserSettings
	if err := json.Unmarshal(resp.Body.Bytes(), &settings); err != nil {
		t.Fatalf("Failed to decode settings: %v", err)
	}
	if settings.FocusTime != 25 || settings.BreakTime != 5 {
		t.Errorf("Expected default durations 25/5, got %d/%d", settings.FocusTime, settings.BreakTime)
	}

	resp = ts.do(t, "PUT", "/api/settings", map[string]int{"focus_time": 50, "break_time": 10}, ts.token)
	if resp.Code != http.StatusOK {
		t.Fatalf("Update settings returned %d: %s", resp.Code, resp.Body.String())
	}

	for _, body := range []map[string]int{
		{"focus_time": 0},
		{"focus_time": 121},
		{"break_time": -5},
		{"break_time": 31},
	} {
		resp = ts.do(t, "PUT", "/api/settings", body, ts.token)
		if resp.Code != http.StatusBadRequest {
			t.Errorf("Settings %v returned %d, want 400", body, resp.Code)
		}
	}

	// The 400s above must not have clobbered the saved values.
	resp = ts.do(t, "GET", "/api/settings", nil, ts.token)
	if err := json.Unmarshal(resp.Body.Bytes(), &settings); err != nil {
		t.Fatalf("Failed to decode settings: %v", err)
	}
	if settings.FocusTime != 50 || settings.BreakTime != 10 {
		t.Errorf("Expected saved durations 50/10, got %d/%d", settings.FocusTime, settings.BreakTime)
	}
}

func TestTimerEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "POST", "/api/tasks", map[string]string{"text": "Deep work"}, ts.token)
	var task storage.Task
	if err := json.Unmarshal(resp.Body.Bytes(), &task); err != nil {
		t.Fatalf("Failed to decode task: %v", err)
	}
	base := "/api/tasks/" + task.ID + "/timer"

	// No session yet.
	resp = ts.do(t, "GET", base, nil, ts.token)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Timer state before open returned %d, want 404", resp.Code)
	}

	resp = ts.do(t, "POST", base+"/open", nil, ts.token)
	if resp.Code != http.StatusOK {
		t.Fatalf("Open returned %d: %s", resp.Code, resp.Body.String())
	}
	var snap timer.Snapshot
	if err := json.Unmarshal(resp.Body.Bytes(), &snap); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if snap.State != timer.StateIdle || snap.RemainingSeconds != 25*60 {
		t.Errorf("Expected idle timer at 1500s, got %s at %ds", snap.State, snap.RemainingSeconds)
	}

	resp = ts.do(t, "POST", base+"/start", nil, ts.token)
	if resp.Code != http.StatusOK {
		t.Fatalf("Start returned %d", resp.Code)
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &snap); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if snap.State != timer.StateRunning {
		t.Errorf("Expected running state, got %s", snap.State)
	}

	resp = ts.do(t, "POST", base+"/pause", nil, ts.token)
	if resp.Code != http.StatusOK {
		t.Fatalf("Pause returned %d", resp.Code)
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &snap); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if snap.State != timer.StatePaused {
		t.Errorf("Expected paused state, got %s", snap.State)
	}

	resp = ts.do(t, "POST", base+"/reset", nil, ts.token)
	if resp.Code != http.StatusOK {
		t.Fatalf("Reset returned %d", resp.Code)
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &snap); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if snap.State != timer.StateIdle || snap.RemainingSeconds != snap.TotalSeconds {
		t.Errorf("Expected reset to full idle countdown, got %s at %d/%d", snap.State, snap.RemainingSeconds, snap.TotalSeconds)
	}

	resp = ts.do(t, "DELETE", base, nil, ts.token)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("Close returned %d", resp.Code)
	}

	// Timer for a missing task.
	resp = ts.do(t, "POST", "/api/tasks/nope/timer/open", nil, ts.token)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Open for missing task returned %d, want 404", resp.Code)
	}
}

func TestStripeWebhookEndpoint(t *testing.T) {
	ts := newTestServer(t)

	post := func(payload []byte, sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/stripe/webhook", bytes.NewReader(payload))
		req.Header.Set("Stripe-Signature", sig)
		rec := httptest.NewRecorder()
		ts.server.Handler().ServeHTTP(rec, req)
		return rec
	}

	payload := checkoutEventPayload(ts.userID)

	// Bad signature.
	resp := post(payload, signWebhookPayload(payload, "whsec_wrong"))
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Invalid signature returned %d, want 400", resp.Code)
	}

	// Missing user reference.
	anonymous := checkoutEventPayload("")
	resp = post(anonymous, signWebhookPayload(anonymous, testWebhookSecret))
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Missing user reference returned %d, want 400", resp.Code)
	}

	// Entitlement starts out absent.
	entResp := ts.do(t, "GET", "/api/entitlement", nil, ts.token)
	if entResp.Code != http.StatusOK {
		t.Fatalf("Entitlement returned %d", entResp.Code)
	}
	var ent struct {
		Premium bool `json:"premium"`
	}
	if err := json.Unmarshal(entResp.Body.Bytes(), &ent); err != nil {
		t.Fatalf("Failed to decode entitlement: %v", err)
	}
	if ent.Premium {
		t.Error("Expected non-premium before purchase")
	}

	// Valid delivery grants premium, and the grant survives a replay.
	for i := 0; i < 2; i++ {
		resp = post(payload, signWebhookPayload(payload, testWebhookSecret))
		if resp.Code != http.StatusOK {
			t.Fatalf("Delivery %d returned %d: %s", i+1, resp.Code, resp.Body.String())
		}
	}

	entResp = ts.do(t, "GET", "/api/entitlement", nil, ts.token)
	if err := json.Unmarshal(entResp.Body.Bytes(), &ent); err != nil {
		t.Fatalf("Failed to decode entitlement: %v", err)
	}
	if !ent.Premium {
		t.Error("Expected premium after checkout completion")
	}

	// Unknown event types are acknowledged.
	unknown := []byte(`{"id":"evt_2","object":"event","api_version":"2025-03-31","type":"customer.created","data":{"object":{}}}`)
	resp = post(unknown, signWebhookPayload(unknown, testWebhookSecret))
	if resp.Code != http.StatusOK {
		t.Errorf("Unknown event returned %d, want 200", resp.Code)
	}

	// Premium users can't start another checkout.
	resp = ts.do(t, "POST", "/api/stripe/checkout", nil, ts.token)
	if resp.Code != http.StatusConflict {
		t.Errorf("Checkout while premium returned %d, want 409", resp.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "POST", "/api/tasks", map[string]string{"text": "One"}, ts.token)
	var task storage.Task
	if err := json.Unmarshal(resp.Body.Bytes(), &task); err != nil {
		t.Fatalf("Failed to decode task: %v", err)
	}
	ts.do(t, "POST", "/api/tasks", map[string]string{"text": "Two"}, ts.token)
	ts.do(t, "PUT", "/api/tasks/"+task.ID, map[string]bool{"completed": true}, ts.token)

	resp = ts.do(t, "GET", "/api/stats", nil, ts.token)
	if resp.Code != http.StatusOK {
		t.Fatalf("Stats returned %d", resp.Code)
	}
	var stats tasks.Stats
	if err := json.Unmarshal(resp.Body.Bytes(), &stats); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}
	if stats.TotalTasks != 2 || stats.CompletedTasks != 1 {
		t.Errorf("Expected 2 tasks with 1 completed, got %d/%d", stats.TotalTasks, stats.CompletedTasks)
	}
	if stats.CompletionRate != 50 {
		t.Errorf("Expected 50%% completion rate, got %v", stats.CompletionRate)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "GET", "/healthz", nil, "")
	if resp.Code != http.StatusOK {
		t.Errorf("Health returned %d", resp.Code)
	}
}
