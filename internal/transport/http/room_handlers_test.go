package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/causalchat/server/internal/config"
	"github.com/causalchat/server/internal/core"
)

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()

	testStore := createTestStore(t)
	t.Cleanup(func() { testStore.Close() })

	authService := createTestAuthService(t, testStore, "test-secret")

	hub := core.NewHub(nil, 0, 0, 0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	disabledLogger := zerolog.New(nil)
	cfg := config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
		JWTSecret:         "test-secret",
	}

	server := NewServer(hub, authService, testStore, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	token, err := authService.Register(context.Background(), "testuser", "password123")
	if err != nil {
		t.Fatalf("failed to register user: %v", err)
	}

	return ts, token
}

func TestCreateRoom(t *testing.T) {
	ts, token := newTestServer(t)

	reqBody := bytes.NewBufferString(`{"room_id":"lobby"}`)
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/rooms", reqBody)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", resp.StatusCode)
	}

	var roomResp RoomResponse
	if err := json.NewDecoder(resp.Body).Decode(&roomResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if roomResp.ID != "lobby" {
		t.Errorf("expected room id 'lobby', got %q", roomResp.ID)
	}
}

func TestCreateRoomRequiresAuth(t *testing.T) {
	ts, _ := newTestServer(t)

	reqBody := bytes.NewBufferString(`{"room_id":"should-fail"}`)
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/rooms", reqBody)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.StatusCode)
	}
}

func TestCreateRoomRejectsDuplicate(t *testing.T) {
	ts, token := newTestServer(t)

	for i, wantStatus := range []int{http.StatusCreated, http.StatusConflict} {
		reqBody := bytes.NewBufferString(`{"room_id":"lobby"}`)
		req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/rooms", reqBody)
		if err != nil {
			t.Fatalf("failed to build request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := ts.Client().Do(req)
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		resp.Body.Close()
		if resp.StatusCode != wantStatus {
			t.Errorf("request %d: expected status %d, got %d", i, wantStatus, resp.StatusCode)
		}
	}
}

func TestListRooms(t *testing.T) {
	ts, token := newTestServer(t)

	for _, roomID := range []string{"room1", "room2"} {
		reqBody := bytes.NewBufferString(`{"room_id":"` + roomID + `"}`)
		req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/rooms", reqBody)
		if err != nil {
			t.Fatalf("failed to build request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := ts.Client().Do(req)
		if err != nil {
			t.Fatalf("create %s failed: %v", roomID, err)
		}
		resp.Body.Close()
	}

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/rooms", nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("list rooms failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var rooms []RoomResponse
	if err := json.NewDecoder(resp.Body).Decode(&rooms); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	// main (default) + room1 + room2
	if len(rooms) != 3 {
		t.Fatalf("expected 3 rooms, got %d: %+v", len(rooms), rooms)
	}

	ids := make(map[string]bool, len(rooms))
	for _, r := range rooms {
		ids[r.ID] = true
	}
	for _, want := range []string{"main", "room1", "room2"} {
		if !ids[want] {
			t.Errorf("expected room %q not found in list", want)
		}
	}
}

func TestListRoomsRequiresAuth(t *testing.T) {
	ts, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/rooms", nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.StatusCode)
	}
}
