package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Gouravbirwaz/cold-calling-platform/internal/domain"
)

// LeadService is the slice of the backend the coordinator needs.
type LeadService interface {
	ListQueue(ctx context.Context) ([]domain.QueueEntry, error)
	RemoveLead(ctx context.Context, phoneNumber string) error
	AddNote(ctx context.Context, userID int64, agentID, note string) error
}

// NoteStore is the local cross-session note persistence.
type NoteStore interface {
	Get(ctx context.Context, phoneNumber string) (string, error)
	Put(ctx context.Context, phoneNumber, body string) error
}

// RankedEntry is a queue entry with its derived display priority.
type RankedEntry struct {
	domain.QueueEntry
	Priority domain.Priority `json:"priority"`
}

// Coordinator reconciles the local view of the call queue with the backend
// and owns the selected number and its editable note buffer. The last
// successful fetch is authoritative; there is no merging.
type Coordinator struct {
	backend LeadService
	notes   NoteStore
	agentID func() string
	logger  zerolog.Logger

	mutex      sync.RWMutex
	snapshot   []domain.QueueEntry
	selected   string
	noteBuffer string
}

type CoordinatorConfig struct {
	Backend LeadService
	Notes   NoteStore
	// AgentID resolves the currently selected agent identity.
	AgentID func() string
	Logger  zerolog.Logger
}

func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	return &Coordinator{
		backend: cfg.Backend,
		notes:   cfg.Notes,
		agentID: cfg.AgentID,
		logger:  cfg.Logger,
	}
}

// Refresh pulls the queue snapshot. On failure the previous snapshot stays
// in place until the next poll.
func (c *Coordinator) Refresh(ctx context.Context) error {
	entries, err := c.backend.ListQueue(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to fetch call queue")
		return err
	}

	c.mutex.Lock()
	c.snapshot = entries
	c.mutex.Unlock()

	c.logger.Debug().Int("leads", len(entries)).Msg("Queue snapshot refreshed")
	return nil
}

// Snapshot returns the current queue view in backend order with derived
// priority ranks.
func (c *Coordinator) Snapshot() []RankedEntry {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	ranked := make([]RankedEntry, len(c.snapshot))
	for i, entry := range c.snapshot {
		ranked[i] = RankedEntry{QueueEntry: entry, Priority: domain.PriorityForRank(i)}
	}
	return ranked
}

// Select makes a number the active target and loads its stored note into
// the editable buffer.
func (c *Coordinator) Select(ctx context.Context, phoneNumber string) string {
	note, err := c.notes.Get(ctx, phoneNumber)
	if err != nil {
		c.logger.Warn().Err(err).Str("number", phoneNumber).Msg("Failed to load stored note")
		note = ""
	}

	c.mutex.Lock()
	c.selected = phoneNumber
	c.noteBuffer = note
	c.mutex.Unlock()

	c.logger.Info().Str("number", phoneNumber).Msg("Number selected from queue")
	return note
}

// Selected returns the active target number, empty when none.
func (c *Coordinator) Selected() string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.selected
}

// NoteBuffer returns the editable note text for the selected number.
func (c *Coordinator) NoteBuffer() string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.noteBuffer
}

// ClearSelection drops the active number and its note buffer, typically
// after a call ends or a voicemail is sent.
func (c *Coordinator) ClearSelection() {
	c.mutex.Lock()
	c.selected = ""
	c.noteBuffer = ""
	c.mutex.Unlock()
}

// PrefillRating prepends the automatic call rating to the note buffer when
// the rated number is still the selected one.
func (c *Coordinator) PrefillRating(phoneNumber string, rating int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.selected != "" && c.selected != phoneNumber {
		return
	}
	c.noteBuffer = fmt.Sprintf("Call Rating: %d/10\n%s", rating, c.noteBuffer)
}

// SaveNote persists a note for a lead. The number must be present in the
// current queue snapshot; otherwise no backend call is made.
func (c *Coordinator) SaveNote(ctx context.Context, phoneNumber, text string) error {
	if phoneNumber == "" || text == "" {
		return domain.ErrInvalidRequest
	}

	c.mutex.RLock()
	var lead *domain.QueueEntry
	for i := range c.snapshot {
		if c.snapshot[i].PhoneNumber == phoneNumber {
			lead = &c.snapshot[i]
			break
		}
	}
	c.mutex.RUnlock()

	if lead == nil {
		return fmt.Errorf("%w: %s", domain.ErrUnknownLead, phoneNumber)
	}

	if err := c.backend.AddNote(ctx, lead.UserID, c.agentID(), text); err != nil {
		c.logger.Error().Err(err).Str("number", phoneNumber).Msg("Failed to save note")
		return err
	}

	if err := c.notes.Put(ctx, phoneNumber, text); err != nil {
		c.logger.Warn().Err(err).Str("number", phoneNumber).Msg("Failed to store note locally")
	}

	c.mutex.Lock()
	if c.selected == phoneNumber {
		c.noteBuffer = text
	}
	c.mutex.Unlock()

	c.logger.Info().Str("number", phoneNumber).Msg("Note saved")
	return nil
}

// Dispose removes a served lead from the backend queue and refreshes the
// snapshot. Removing an already-absent number is not an error.
func (c *Coordinator) Dispose(ctx context.Context, phoneNumber string) {
	c.mutex.RLock()
	present := false
	for _, entry := range c.snapshot {
		if entry.PhoneNumber == phoneNumber {
			present = true
			break
		}
	}
	c.mutex.RUnlock()

	if !present {
		c.logger.Debug().Str("number", phoneNumber).Msg("Lead already absent from queue")
		return
	}

	if err := c.backend.RemoveLead(ctx, phoneNumber); err != nil {
		// Queue stays stale until the next poll.
		c.logger.Error().Err(err).Str("number", phoneNumber).Msg("Failed to remove lead from queue")
		return
	}

	c.logger.Info().Str("number", phoneNumber).Msg("Lead removed from call queue")

	// Refresh failures are logged inside and leave the snapshot stale.
	_ = c.Refresh(ctx)
}
