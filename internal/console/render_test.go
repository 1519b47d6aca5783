package console

import (
	"strings"
	"testing"
	"time"

	"github.com/Gouravbirwaz/cold-calling-platform/internal/domain"
	"github.com/Gouravbirwaz/cold-calling-platform/internal/queue"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "--"},
		{-time.Second, "--"},
		{5 * time.Second, "0:05"},
		{65 * time.Second, "1:05"},
		{10 * time.Minute, "10:00"},
	}
	for _, tc := range cases {
		if got := FormatDuration(tc.d); got != tc.want {
			t.Errorf("FormatDuration(%s) = %q, want %q", tc.d, got, tc.want)
		}
	}
}

func TestRenderQueue(t *testing.T) {
	out := RenderQueue([]queue.RankedEntry{
		{
			QueueEntry: domain.QueueEntry{PhoneNumber: "+15550100", Status: domain.LeadStatusPending},
			Priority:   domain.PriorityHigh,
		},
	})
	if !strings.Contains(out, "+15550100") || !strings.Contains(out, "High") {
		t.Fatalf("rendered queue:\n%s", out)
	}
}

func TestRenderQueueEmpty(t *testing.T) {
	out := RenderQueue(nil)
	if !strings.Contains(out, "no pending calls") {
		t.Fatalf("rendered queue:\n%s", out)
	}
}

func TestRenderCallLog(t *testing.T) {
	out := RenderCallLog([]domain.CallLogEntry{
		{
			PhoneNumber: "+15550100",
			Outcome:     "completed",
			Duration:    95 * time.Second,
			EndedAt:     time.Date(2025, 6, 1, 14, 30, 5, 0, time.UTC),
		},
	})
	if !strings.Contains(out, "1:35") || !strings.Contains(out, "completed") {
		t.Fatalf("rendered call log:\n%s", out)
	}
}
