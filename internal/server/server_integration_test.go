package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/emojicam/internal/store"
)

func TestAPI_SessionWorkflow(t *testing.T) {
	// Setup
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New error = %v", err)
	}
	defer s.Close()

	if err := s.Sessions().Create(&store.Session{ID: "sess-1"}); err != nil {
		t.Fatalf("create session: %v", err)
	}
	for _, label := range []string{"happy", "happy", "surprise"} {
		if err := s.Readings().Create(&store.Reading{SessionID: "sess-1", Label: label, Score: 0.6}); err != nil {
			t.Fatalf("create reading: %v", err)
		}
	}

	srv := New(Config{Store: s})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	// 1. List sessions
	resp, err := client.Get(ts.URL + "/api/sessions")
	if err != nil {
		t.Fatalf("GET /api/sessions error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/sessions status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var listed struct {
		Sessions []struct {
			ID       string `json:"id"`
			Readings int    `json:"readings"`
		} `json:"sessions"`
	}
	json.NewDecoder(resp.Body).Decode(&listed)
	resp.Body.Close()

	if len(listed.Sessions) != 1 || listed.Sessions[0].Readings != 3 {
		t.Fatalf("sessions = %+v, want one session with 3 readings", listed.Sessions)
	}

	// 2. Readings
	resp, _ = client.Get(ts.URL + "/api/sessions/sess-1/readings")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET readings status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var readings struct {
		Readings []struct {
			Label string `json:"label"`
		} `json:"readings"`
	}
	json.NewDecoder(resp.Body).Decode(&readings)
	resp.Body.Close()

	if len(readings.Readings) != 3 {
		t.Fatalf("len(readings) = %d, want 3", len(readings.Readings))
	}

	// 3. Delete session
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/sess-1", nil)
	resp, _ = client.Do(req)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	resp.Body.Close()

	// 4. Verify deleted
	resp, _ = client.Get(ts.URL + "/api/sessions/sess-1")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET after delete status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	resp.Body.Close()
}

func TestAPI_HealthCheck(t *testing.T) {
	preview := NewPreview()
	preview.SetEmoji("😄")
	preview.SetStatus("Happy (80.0%)")

	srv := New(Config{Preview: preview})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var health struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
		State  State  `json:"state"`
	}
	json.NewDecoder(resp.Body).Decode(&health)

	if health.Status != "ok" {
		t.Errorf("status = %s, want ok", health.Status)
	}
	if health.State.Emoji != "😄" || health.State.Status != "Happy (80.0%)" {
		t.Errorf("state = %+v", health.State)
	}
}

func TestServer_ListenAndShutdown(t *testing.T) {
	srv := New(Config{})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe("127.0.0.1:0") }()

	// Shutdown may race with startup; retry until the server has been created
	deadline := time.Now().Add(2 * time.Second)
	for {
		srv.mu.Lock()
		started := srv.http != nil
		srv.mu.Unlock()
		if started || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown error = %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("ListenAndServe returned %v, want nil after shutdown", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ListenAndServe did not return after Shutdown")
	}
}
