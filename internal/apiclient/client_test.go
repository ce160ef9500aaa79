package apiclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"suture/internal/api"
	"suture/internal/apiclient"
)

func TestSubmitSendsMultipartForm(t *testing.T) {
	video := filepath.Join(t.TempDir(), "session.mp4")
	if err := os.WriteFile(video, []byte("bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/submit" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.FormValue("email"); got != "a@example.com" {
			t.Errorf("unexpected email %q", got)
		}
		if got := r.FormValue("iteration_number"); got != "2" {
			t.Errorf("unexpected iteration %q", got)
		}
		if _, header, err := r.FormFile("video"); err != nil || header.Filename != "session.mp4" {
			t.Errorf("video part missing: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(api.SubmitResponse{SubmissionID: "id-1", Status: "accepted", QueuePosition: 1})
	}))
	defer server.Close()

	client := apiclient.New(server.URL, "")
	resp, err := client.Submit(context.Background(), apiclient.SubmitInput{
		VideoPath: video,
		Email:     "a@example.com",
		Iteration: 2,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.SubmissionID != "id-1" {
		t.Fatalf("unexpected response %#v", resp)
	}
}

func TestBearerTokenAttached(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected auth header %q", got)
		}
		json.NewEncoder(w).Encode(api.QueueStatusResponse{MaxWorkers: 2})
	}))
	defer server.Close()

	client := apiclient.New(server.URL, "tok")
	resp, err := client.QueueStatus(context.Background())
	if err != nil {
		t.Fatalf("QueueStatus: %v", err)
	}
	if resp.MaxWorkers != 2 {
		t.Fatalf("unexpected response %#v", resp)
	}
}

func TestErrorPayloadSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "submission not found"})
	}))
	defer server.Close()

	client := apiclient.New(server.URL, "")
	_, err := client.Status(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); got != "daemon returned 404: submission not found" {
		t.Fatalf("unexpected error %q", got)
	}
}

func TestHealthAcceptsDegraded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(api.HealthResponse{Status: "degraded"})
	}))
	defer server.Close()

	client := apiclient.New(server.URL, "")
	resp, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if resp.Status != "degraded" {
		t.Fatalf("unexpected health %#v", resp)
	}
}
