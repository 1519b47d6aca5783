package postcall

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Gouravbirwaz/cold-calling-platform/internal/backend"
	"github.com/Gouravbirwaz/cold-calling-platform/internal/domain"
)

// Verdicts for manual satisfaction disposition.
const (
	VerdictSatisfied    = "Satisfied"
	VerdictNotSatisfied = "Not Satisfied"
	VerdictSkipped      = "N/A"
)

// ScoringService is the slice of the backend the engine needs.
type ScoringService interface {
	GetTranscript(ctx context.Context, callSID string) (backend.Transcript, error)
	RateTranscript(ctx context.Context, transcript string) (int, error)
}

// Outcome describes one terminated session.
type Outcome struct {
	CallSID     string
	PhoneNumber string
	AgentID     string
	Reason      domain.TerminationReason
	Duration    time.Duration
}

// Engine runs once per ended session: it appends the call-log record and,
// when a call SID exists, runs the satisfaction scoring pipeline. Every
// failure inside the pipeline is soft: logged, never propagated.
type Engine struct {
	backend      ScoringService
	callLog      *domain.History[domain.CallLogEntry]
	satisfaction *domain.History[domain.SatisfactionEntry]
	onRating     func(phoneNumber string, rating int)
	logger       zerolog.Logger
}

type EngineConfig struct {
	Backend     ScoringService
	HistorySize int
	// OnRating surfaces the numeric rating for note prefilling.
	OnRating func(phoneNumber string, rating int)
	Logger   zerolog.Logger
}

func NewEngine(cfg EngineConfig) *Engine {
	size := cfg.HistorySize
	if size <= 0 {
		size = 10
	}
	return &Engine{
		backend:      cfg.Backend,
		callLog:      domain.NewHistory[domain.CallLogEntry](size),
		satisfaction: domain.NewHistory[domain.SatisfactionEntry](size),
		onRating:     cfg.OnRating,
		logger:       cfg.Logger,
	}
}

// Process handles one ended session. The caller guarantees it is invoked
// exactly once per ENDED transition.
func (e *Engine) Process(ctx context.Context, outcome Outcome) {
	entry := domain.CallLogEntry{
		PhoneNumber: outcome.PhoneNumber,
		Outcome:     outcome.Reason.Outcome(),
		Duration:    outcome.Duration,
		EndedAt:     time.Now(),
	}
	e.callLog.Append(entry)

	e.logger.Info().
		Str("number", outcome.PhoneNumber).
		Str("outcome", entry.Outcome).
		Dur("duration", outcome.Duration).
		Str("reason", string(outcome.Reason)).
		Msg("Call logged")

	e.score(ctx, outcome)
}

// score runs the transcript/rating pipeline. It fires for every ended
// session that produced a call SID, no matter which side hung up.
func (e *Engine) score(ctx context.Context, outcome Outcome) {
	if outcome.CallSID == "" {
		e.logger.Warn().
			Str("number", outcome.PhoneNumber).
			Msg("No call SID available to fetch transcript")
		return
	}

	transcript, err := e.backend.GetTranscript(ctx, outcome.CallSID)
	if err != nil {
		e.logger.Warn().Err(err).
			Str("call_sid", outcome.CallSID).
			Msg("Failed to fetch transcript")
		return
	}
	if len(transcript.Recordings) == 0 {
		e.logger.Warn().
			Str("call_sid", outcome.CallSID).
			Msg("No recordings found for call")
		return
	}

	rating, err := e.backend.RateTranscript(ctx, transcript.Recordings[0].Transcript)
	if err != nil {
		e.logger.Warn().Err(err).
			Str("call_sid", outcome.CallSID).
			Msg("Failed to rate transcript")
		return
	}
	if rating < 1 || rating > 10 {
		e.logger.Warn().
			Int("rating", rating).
			Str("call_sid", outcome.CallSID).
			Msg("Rating service returned an out-of-range rating")
		return
	}

	e.satisfaction.Append(domain.SatisfactionEntry{
		AgentID:   outcome.AgentID,
		Verdict:   fmt.Sprintf("Rating: %d/10", rating),
		Timestamp: time.Now(),
	})

	e.logger.Info().
		Int("rating", rating).
		Str("agent_id", outcome.AgentID).
		Str("call_sid", outcome.CallSID).
		Msg("Call rating received")

	if e.onRating != nil {
		e.onRating(outcome.PhoneNumber, rating)
	}
}

// RecordVerdict appends a manual satisfaction verdict. It is an explicit
// operator action, independent of automatic scoring.
func (e *Engine) RecordVerdict(agentID, verdict string) {
	e.satisfaction.Append(domain.SatisfactionEntry{
		AgentID:   agentID,
		Verdict:   verdict,
		Timestamp: time.Now(),
	})

	e.logger.Info().
		Str("agent_id", agentID).
		Str("verdict", verdict).
		Msg("Satisfaction verdict recorded")
}

// CallLog returns the bounded call history, newest first.
func (e *Engine) CallLog() []domain.CallLogEntry {
	return e.callLog.Entries()
}

// Satisfaction returns the bounded verdict history, newest first.
func (e *Engine) Satisfaction() []domain.SatisfactionEntry {
	return e.satisfaction.Entries()
}
