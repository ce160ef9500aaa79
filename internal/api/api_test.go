package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"suture/internal/analyzer"
	"suture/internal/api"
	"suture/internal/config"
	"suture/internal/dispatcher"
	"suture/internal/netmon"
	"suture/internal/notifications"
	"suture/internal/queue"
	"suture/internal/storage"
	"suture/internal/testsupport"
)

// gateEngine blocks every run until released, keeping submissions observable
// in their pending states.
type gateEngine struct {
	mu       sync.Mutex
	releases chan struct{}
	calls    int
}

func newGateEngine() *gateEngine {
	return &gateEngine{releases: make(chan struct{})}
}

func (e *gateEngine) Run(ctx context.Context, path string) (*analyzer.Result, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	select {
	case <-e.releases:
		return &analyzer.Result{Score: 8.0, Engine: "gate"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type staticNet struct{ events chan netmon.Event }

func (s *staticNet) Online() bool                { return true }
func (s *staticNet) Events() <-chan netmon.Event { return s.events }

type apiHarness struct {
	cfg    *config.Config
	store  *queue.Store
	engine *gateEngine
	server *httptest.Server
}

func newAPIHarness(t *testing.T, opts ...testsupport.ConfigOption) *apiHarness {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	cfg.Notifications.MaxAttempts = 1
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	store := testsupport.MustOpenStore(t, cfg)
	backend := storage.NewLocal(cfg.Paths.VideoDir)
	engine := newGateEngine()
	notifier := notifications.NewNotifier(cfg, notifications.NewMailer(cfg), nil)
	net := &staticNet{events: make(chan netmon.Event, 1)}

	mgr := dispatcher.New(cfg, store, backend, engine, notifier, nil, net, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		mgr.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	handler := api.NewHandler(cfg, mgr, api.NewStatusService(store, mgr, nil), backend, nil)
	server := httptest.NewServer(handler.Router())
	t.Cleanup(server.Close)

	return &apiHarness{cfg: cfg, store: store, engine: engine, server: server}
}

func multipartSubmission(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("WriteField(%s): %v", key, err)
		}
	}
	part, err := writer.CreateFormFile("video", "session.mp4")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write([]byte("fake video bytes")); err != nil {
		t.Fatalf("write video: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func (h *apiHarness) submit(t *testing.T, email string) api.SubmitResponse {
	t.Helper()

	body, contentType := multipartSubmission(t, map[string]string{
		"name":             "Dana",
		"email":            email,
		"program":          "general-surgery",
		"iteration_number": "2",
	})
	resp, err := http.Post(h.server.URL+"/submit", contentType, body)
	if err != nil {
		t.Fatalf("POST /submit: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	var decoded api.SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	return decoded
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

func TestSubmitAcceptsUpload(t *testing.T) {
	h := newAPIHarness(t)

	decoded := h.submit(t, "dana@example.com")
	if decoded.SubmissionID == "" {
		t.Fatal("expected a submission id")
	}
	if decoded.Status != "accepted" {
		t.Fatalf("expected accepted, got %q", decoded.Status)
	}
	if decoded.QueuePosition < 0 {
		t.Fatalf("unexpected queue position %d", decoded.QueuePosition)
	}

	sub, err := h.store.GetByID(context.Background(), decoded.SubmissionID)
	if err != nil || sub == nil {
		t.Fatalf("stored submission missing: %v", err)
	}
	if sub.Email != "dana@example.com" || sub.Iteration != 2 {
		t.Fatalf("unexpected stored submission %#v", sub)
	}
}

func TestSubmitValidation(t *testing.T) {
	h := newAPIHarness(t)

	cases := []struct {
		name   string
		fields map[string]string
	}{
		{"missing email", map[string]string{"name": "x"}},
		{"malformed email", map[string]string{"email": "nope"}},
		{"bad iteration", map[string]string{"email": "a@b.com", "iteration_number": "minus-one"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, contentType := multipartSubmission(t, tc.fields)
			resp, err := http.Post(h.server.URL+"/submit", contentType, body)
			if err != nil {
				t.Fatalf("POST /submit: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestSubmitRequiresVideoFile(t *testing.T) {
	h := newAPIHarness(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	_ = writer.WriteField("email", "a@b.com")
	_ = writer.Close()

	resp, err := http.Post(h.server.URL+"/submit", writer.FormDataContentType(), body)
	if err != nil {
		t.Fatalf("POST /submit: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSubmitStoreFailureIsInternalError(t *testing.T) {
	h := newAPIHarness(t)
	if err := h.store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	body, contentType := multipartSubmission(t, map[string]string{"email": "vik@example.com"})
	resp, err := http.Post(h.server.URL+"/submit", contentType, body)
	if err != nil {
		t.Fatalf("POST /submit: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload.Error != "internal error" {
		t.Fatalf("expected opaque error message, got %q", payload.Error)
	}
}

func TestStatusLifecycle(t *testing.T) {
	h := newAPIHarness(t, testsupport.WithMaxConcurrent(1))

	first := h.submit(t, "one@example.com")
	second := h.submit(t, "two@example.com")

	var status api.StatusResponse
	if code := getJSON(t, h.server.URL+"/status/"+second.SubmissionID, &status); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if status.Status != string(queue.StatusQueued) {
		t.Fatalf("expected queued, got %s", status.Status)
	}
	if status.QueuePosition == nil || *status.QueuePosition != 1 {
		t.Fatalf("expected position 1, got %v", status.QueuePosition)
	}
	if status.EstimatedProcessingTime == nil || *status.EstimatedProcessingTime <= 0 {
		t.Fatalf("expected positive estimate, got %v", status.EstimatedProcessingTime)
	}

	close(h.engine.releases)
	deadline := time.Now().Add(5 * time.Second)
	for {
		var final api.StatusResponse
		getJSON(t, h.server.URL+"/status/"+first.SubmissionID, &final)
		if final.Status == string(queue.StatusCompleted) {
			if final.Score == nil || *final.Score != 8.0 {
				t.Fatalf("expected score 8.0, got %v", final.Score)
			}
			if final.QueuePosition != nil {
				t.Fatal("completed submission must not report a position")
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("submission never completed, last status %s", final.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStatusNotFound(t *testing.T) {
	h := newAPIHarness(t)
	if code := getJSON(t, h.server.URL+"/status/unknown-id", nil); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

func TestCancelQueuedSubmission(t *testing.T) {
	h := newAPIHarness(t, testsupport.WithMaxConcurrent(1))

	h.submit(t, "running@example.com")
	victim := h.submit(t, "victim@example.com")

	req, _ := http.NewRequest(http.MethodDelete, h.server.URL+"/submission/"+victim.SubmissionID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var cancelled api.CancelResponse
	_ = json.NewDecoder(resp.Body).Decode(&cancelled)
	if cancelled.Status != string(queue.StatusCancelled) {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}

	// A second cancel hits a terminal submission and conflicts.
	req2, _ := http.NewRequest(http.MethodDelete, h.server.URL+"/submission/"+victim.SubmissionID, nil)
	resp2, err := http.DefaultClient.Do(req2)
	if err != nil {
		t.Fatalf("second DELETE: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp2.StatusCode)
	}
}

func TestQueueStatusAggregates(t *testing.T) {
	h := newAPIHarness(t, testsupport.WithMaxConcurrent(2))

	h.submit(t, "a@example.com")
	h.submit(t, "b@example.com")
	h.submit(t, "c@example.com")

	var status api.QueueStatusResponse
	if code := getJSON(t, h.server.URL+"/queue-status", &status); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if status.MaxWorkers != 2 {
		t.Fatalf("expected max workers 2, got %d", status.MaxWorkers)
	}
	total := 0
	for _, count := range status.Counts {
		total += count
	}
	if total != 3 {
		t.Fatalf("expected 3 tracked submissions, got %d (%#v)", total, status.Counts)
	}
}

func TestHealthEndpoint(t *testing.T) {
	h := newAPIHarness(t)

	var health api.HealthResponse
	if code := getJSON(t, h.server.URL+"/health", &health); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if health.Status != "ok" || len(health.Checks) == 0 {
		t.Fatalf("unexpected health payload %#v", health)
	}
}

func TestBearerAuth(t *testing.T) {
	h := newAPIHarness(t, testsupport.WithAPIToken("sekrit"))

	if code := getJSON(t, h.server.URL+"/queue-status", nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}

	req, _ := http.NewRequest(http.MethodGet, h.server.URL+"/queue-status", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET with token: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}

	// Health stays open for load balancer probes.
	if code := getJSON(t, h.server.URL+"/health", nil); code != http.StatusOK {
		t.Fatalf("expected open health endpoint, got %d", code)
	}
}
