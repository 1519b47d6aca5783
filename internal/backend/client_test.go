package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Gouravbirwaz/cold-calling-platform/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, zerolog.Nop())
}

func TestMakeCallReturnsGrant(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/make_call" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["agent_id"] != "agent-1" || body["to"] != "+15550100" {
			t.Errorf("body = %v", body)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"customer_call_sid": "CA123",
			"conference":        "conf-1",
		})
	}))

	grant, err := client.MakeCall(context.Background(), "agent-1", "+15550100")
	if err != nil {
		t.Fatalf("make call: %v", err)
	}
	if grant.CustomerCallSID != "CA123" || grant.Conference != "conf-1" {
		t.Fatalf("grant = %+v", grant)
	}
}

func TestMakeCallSurfacesServerError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"error": "twilio unavailable"})
	}))

	_, err := client.MakeCall(context.Background(), "agent-1", "+15550100")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("got %v, want APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d", apiErr.StatusCode)
	}
	if apiErr.Message != "twilio unavailable" {
		t.Fatalf("message = %q", apiErr.Message)
	}
}

func TestListQueueDefaultsStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/calls" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"caller_number": "+15550100", "user_id": 7},
			{"caller_number": "+15550101", "user_id": 8, "status": "in-progress"},
		})
	}))

	entries, err := client.ListQueue(context.Background())
	if err != nil {
		t.Fatalf("list queue: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].Status != domain.LeadStatusPending {
		t.Fatalf("default status = %s", entries[0].Status)
	}
	if entries[1].Status != domain.LeadStatusInProgress {
		t.Fatalf("status = %s", entries[1].Status)
	}
}

func TestGetTranscriptEscapesCallSID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get_transcript/CA123" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(Transcript{
			CallSID: "CA123",
			Recordings: []Recording{
				{RecordingSID: "RE1", Transcript: "hello there"},
			},
		})
	}))

	transcript, err := client.GetTranscript(context.Background(), "CA123")
	if err != nil {
		t.Fatalf("get transcript: %v", err)
	}
	if len(transcript.Recordings) != 1 || transcript.Recordings[0].Transcript != "hello there" {
		t.Fatalf("transcript = %+v", transcript)
	}
}

func TestRateTranscriptRequiresRating(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{})
	}))

	if _, err := client.RateTranscript(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for missing rating")
	}
}

func TestRateTranscriptReturnsRating(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/gemini_rating" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]int{"rating": 7})
	}))

	rating, err := client.RateTranscript(context.Background(), "hello")
	if err != nil {
		t.Fatalf("rate transcript: %v", err)
	}
	if rating != 7 {
		t.Fatalf("rating = %d, want 7", rating)
	}
}

func TestTokenPassesAgentID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("agent_id"); got != "agent-1" {
			t.Errorf("agent_id = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]string{"token": "jwt-token"})
	}))

	token, err := client.Token(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if token != "jwt-token" {
		t.Fatalf("token = %q", token)
	}
}

func TestAddNotePayload(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/add_note" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body struct {
			UserID  int64  `json:"user_id"`
			AgentID string `json:"agent_id"`
			Note    string `json:"note"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.UserID != 42 || body.AgentID != "agent-1" || body.Note != "call back" {
			t.Errorf("body = %+v", body)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))

	if err := client.AddNote(context.Background(), 42, "agent-1", "call back"); err != nil {
		t.Fatalf("add note: %v", err)
	}
}
