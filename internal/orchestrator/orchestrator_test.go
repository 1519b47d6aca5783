package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Gouravbirwaz/cold-calling-platform/internal/config"
	"github.com/Gouravbirwaz/cold-calling-platform/internal/device"
	"github.com/Gouravbirwaz/cold-calling-platform/internal/domain"
	"github.com/Gouravbirwaz/cold-calling-platform/internal/session"
)

type fakeGateway struct {
	mu       sync.Mutex
	ready    bool
	handlers []func(device.Event)
}

func (g *fakeGateway) Register(ctx context.Context, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ready = true
	return nil
}

func (g *fakeGateway) Connect(params device.ConnectParams) (device.Connection, error) {
	return nil, errors.New("no device connection in this test")
}

func (g *fakeGateway) Ready() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ready
}

func (g *fakeGateway) OnEvent(fn func(device.Event)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers = append(g.handlers, fn)
}

type backendStub struct {
	mu      sync.Mutex
	leads   []domain.QueueEntry
	removed []string
	srv     *httptest.Server
}

func newBackendStub(t *testing.T) *backendStub {
	t.Helper()

	b := &backendStub{
		leads: []domain.QueueEntry{
			{PhoneNumber: "+15550100", UserID: 1, Status: domain.LeadStatusPending},
			{PhoneNumber: "+15550101", UserID: 2, Status: domain.LeadStatusPending},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/calls", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		json.NewEncoder(w).Encode(b.leads)
	})
	mux.HandleFunc("/api/remove_lead", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			PhoneNumber string `json:"phone_number"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		b.removed = append(b.removed, body.PhoneNumber)
		kept := b.leads[:0]
		for _, lead := range b.leads {
			if lead.PhoneNumber != body.PhoneNumber {
				kept = append(kept, lead)
			}
		}
		b.leads = kept
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/get_transcript/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"call_sid": "CA1",
			"recordings": []map[string]string{
				{"recording_sid": "RE1", "transcript": "hello"},
			},
		})
	})
	mux.HandleFunc("/api/gemini_rating", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]int{"rating": 7})
	})

	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *backendStub) removedLeads() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.removed))
	copy(out, b.removed)
	return out
}

func newTestOrchestrator(t *testing.T, stub *backendStub) *Orchestrator {
	t.Helper()

	cfg := &config.Config{
		Backend: config.BackendConfig{BaseURL: stub.srv.URL, Timeout: 5 * time.Second},
		Queue:   config.QueueConfig{PollInterval: time.Hour},
		History: config.HistoryConfig{Size: 10},
		Notes:   config.NotesConfig{Workspace: t.TempDir()},
		HTTP:    config.HTTPConfig{Enabled: false},
	}

	o := New(Config{
		Config:  cfg,
		Logger:  zerolog.Nop(),
		Gateway: &fakeGateway{ready: true},
	})
	if err := o.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { o.Stop() })

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(o.QueueSnapshot()) > 0 {
			return o
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("queue snapshot never loaded")
	return nil
}

func TestCompletedCallDisposesLeadAndPrefillsRating(t *testing.T) {
	stub := newBackendStub(t)
	o := newTestOrchestrator(t, stub)

	o.SelectNumber(o.Context(), "+15550100")

	o.handleEnded(session.Ended{
		CallSID:     "CA1",
		PhoneNumber: "+15550100",
		AgentID:     "agent-1",
		Reason:      domain.TerminationRemoteDisconnect,
		Duration:    time.Minute,
	})

	if got := o.NoteBuffer(); !strings.Contains(got, "Call Rating: 7/10") {
		t.Fatalf("rating prefill lost: note buffer = %q", got)
	}
	if o.coordinator.Selected() != "" {
		t.Fatalf("selection not cleared: %q", o.coordinator.Selected())
	}

	removed := stub.removedLeads()
	if len(removed) != 1 || removed[0] != "+15550100" {
		t.Fatalf("removed leads = %v, want [+15550100]", removed)
	}
	for _, entry := range o.QueueSnapshot() {
		if entry.PhoneNumber == "+15550100" {
			t.Fatal("served lead still in queue snapshot")
		}
	}

	log := o.CallLog()
	if len(log) != 1 {
		t.Fatalf("call log len = %d, want 1", len(log))
	}
	if log[0].Outcome != "completed" {
		t.Fatalf("outcome = %q, want completed", log[0].Outcome)
	}

	verdicts := o.Satisfaction()
	if len(verdicts) != 1 || verdicts[0].Verdict != "Rating: 7/10" {
		t.Fatalf("satisfaction = %+v", verdicts)
	}
}

func TestCanceledCallClearsSelectionWithoutDisposing(t *testing.T) {
	stub := newBackendStub(t)
	o := newTestOrchestrator(t, stub)

	o.SelectNumber(o.Context(), "+15550100")

	o.handleEnded(session.Ended{
		PhoneNumber: "+15550100",
		AgentID:     "agent-1",
		Reason:      domain.TerminationCanceled,
	})

	if o.coordinator.Selected() != "" {
		t.Fatalf("selection not cleared: %q", o.coordinator.Selected())
	}
	if removed := stub.removedLeads(); len(removed) != 0 {
		t.Fatalf("canceled call disposed leads: %v", removed)
	}

	log := o.CallLog()
	if len(log) != 1 || log[0].Outcome != "failed" {
		t.Fatalf("call log = %+v", log)
	}
	if len(o.Satisfaction()) != 0 {
		t.Fatal("scoring ran for a canceled call with no call SID")
	}
}

func TestFailedCallKeepsSelection(t *testing.T) {
	stub := newBackendStub(t)
	o := newTestOrchestrator(t, stub)

	o.SelectNumber(o.Context(), "+15550100")

	o.handleEnded(session.Ended{
		PhoneNumber: "+15550100",
		AgentID:     "agent-1",
		Reason:      domain.TerminationFailed,
	})

	if o.coordinator.Selected() != "+15550100" {
		t.Fatalf("selection = %q, want +15550100", o.coordinator.Selected())
	}
	if removed := stub.removedLeads(); len(removed) != 0 {
		t.Fatalf("failed call disposed leads: %v", removed)
	}
	if len(o.QueueSnapshot()) != 2 {
		t.Fatalf("queue snapshot len = %d, want 2", len(o.QueueSnapshot()))
	}
}
