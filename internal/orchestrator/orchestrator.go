package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/Gouravbirwaz/cold-calling-platform/internal/api"
	"github.com/Gouravbirwaz/cold-calling-platform/internal/backend"
	"github.com/Gouravbirwaz/cold-calling-platform/internal/config"
	"github.com/Gouravbirwaz/cold-calling-platform/internal/device"
	"github.com/Gouravbirwaz/cold-calling-platform/internal/domain"
	"github.com/Gouravbirwaz/cold-calling-platform/internal/notes"
	"github.com/Gouravbirwaz/cold-calling-platform/internal/postcall"
	"github.com/Gouravbirwaz/cold-calling-platform/internal/queue"
	"github.com/Gouravbirwaz/cold-calling-platform/internal/session"
)

// Orchestrator wires the backend client, device gateway, state machine,
// post-call engine, and queue coordinator into one running softphone.
type Orchestrator struct {
	config      *config.Config
	logger      zerolog.Logger
	backend     *backend.Client
	noteStore   *notes.Store
	gateway     device.Gateway
	machine     *session.Machine
	engine      *postcall.Engine
	coordinator *queue.Coordinator
	httpServer  *http.Server
	ctx         context.Context
	cancel      context.CancelFunc
}

type Config struct {
	Config *config.Config
	Logger zerolog.Logger
	// Gateway overrides the default websocket gateway; nil in production.
	Gateway device.Gateway
}

func New(cfg Config) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())

	return &Orchestrator{
		config:  cfg.Config,
		logger:  cfg.Logger,
		gateway: cfg.Gateway,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (o *Orchestrator) Start() error {
	o.logger.Info().Msg("Starting softphone service")

	o.backend = backend.NewClient(
		o.config.Backend.BaseURL,
		o.config.Backend.Timeout,
		o.logger.With().Str("component", "backend_client").Logger(),
	)

	store, err := notes.Open(o.config.Notes.Workspace)
	if err != nil {
		return fmt.Errorf("failed to open note store: %w", err)
	}
	o.noteStore = store

	if o.gateway == nil {
		o.gateway = device.NewWSGateway(device.WSGatewayConfig{
			URL:    o.config.Device.WSURL,
			Logger: o.logger.With().Str("component", "device_gateway").Logger(),
		})
	}

	o.coordinator = queue.NewCoordinator(queue.CoordinatorConfig{
		Backend: o.backend,
		Notes:   o.noteStore,
		AgentID: func() string { return o.machine.Agent().AgentID },
		Logger:  o.logger.With().Str("component", "queue_coordinator").Logger(),
	})

	o.engine = postcall.NewEngine(postcall.EngineConfig{
		Backend:     o.backend,
		HistorySize: o.config.History.Size,
		OnRating:    o.coordinator.PrefillRating,
		Logger:      o.logger.With().Str("component", "postcall_engine").Logger(),
	})

	o.machine = session.NewMachine(session.MachineConfig{
		Backend: o.backend,
		Gateway: o.gateway,
		OnEnded: o.handleEnded,
		Logger:  o.logger.With().Str("component", "session_machine").Logger(),
	})

	if err := o.initHTTPServer(); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	go o.pollQueueRoutine()

	o.logger.Info().Msg("Softphone service started")
	return nil
}

// Context returns the orchestrator's lifetime context, canceled on Stop.
func (o *Orchestrator) Context() context.Context {
	return o.ctx
}

func (o *Orchestrator) Stop() error {
	o.logger.Info().Msg("Stopping softphone service")

	o.cancel()

	if o.machine != nil {
		o.machine.Close()
	}

	if closer, ok := o.gateway.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			o.logger.Error().Err(err).Msg("Failed to close device gateway")
		}
	}

	if o.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := o.httpServer.Shutdown(shutdownCtx); err != nil {
			o.logger.Error().Err(err).Msg("Failed to shutdown HTTP server")
		}
	}

	if o.noteStore != nil {
		if err := o.noteStore.Close(); err != nil {
			o.logger.Error().Err(err).Msg("Failed to close note store")
		}
	}

	o.logger.Info().Msg("Softphone service stopped")
	return nil
}

func (o *Orchestrator) initHTTPServer() error {
	if !o.config.HTTP.Enabled {
		o.logger.Info().Msg("Control API server is disabled")
		return nil
	}

	handlers := api.NewHandlers(o, o.logger.With().Str("component", "api_handlers").Logger())

	addr := ":" + strconv.Itoa(o.config.HTTP.Port)
	o.httpServer = &http.Server{
		Addr:    addr,
		Handler: handlers.Routes(),
	}

	go func() {
		o.logger.Info().Int("port", o.config.HTTP.Port).Msg("Starting control API server")

		if err := o.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			o.logger.Error().Err(err).Msg("Control API server failed")
		}
	}()

	return nil
}

func (o *Orchestrator) pollQueueRoutine() {
	if err := o.coordinator.Refresh(o.ctx); err == nil {
		o.logger.Debug().Msg("Initial queue snapshot loaded")
	}

	ticker := time.NewTicker(o.config.Queue.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.ctx.Done():
			return
		case <-ticker.C:
			_ = o.coordinator.Refresh(o.ctx)
		}
	}
}

// handleEnded runs the queue disposition and the post-call workflow for one
// finished session. Disposition runs first: the engine's rating hook must
// land in the already-cleared note buffer, not be wiped by it.
func (o *Orchestrator) handleEnded(ended session.Ended) {
	switch ended.Reason {
	case domain.TerminationUserHangup, domain.TerminationRemoteDisconnect:
		o.coordinator.Dispose(o.ctx, ended.PhoneNumber)
		o.coordinator.ClearSelection()
	case domain.TerminationCanceled:
		o.coordinator.ClearSelection()
	}

	o.engine.Process(o.ctx, postcall.Outcome{
		CallSID:     ended.CallSID,
		PhoneNumber: ended.PhoneNumber,
		AgentID:     ended.AgentID,
		Reason:      ended.Reason,
		Duration:    ended.Duration,
	})
}

// SelectAgent validates the agent against the backend roster, registers the
// device with a freshly minted token, and stores the identity.
func (o *Orchestrator) SelectAgent(ctx context.Context, agentID string) error {
	agents, err := o.backend.ListAgents(ctx)
	if err != nil {
		return err
	}

	var selected *domain.AgentInfo
	for i := range agents {
		if agents[i].AgentID == agentID {
			selected = &agents[i]
			break
		}
	}
	if selected == nil {
		return fmt.Errorf("%w: unknown agent %s", domain.ErrInvalidRequest, agentID)
	}

	token, err := o.backend.Token(ctx, agentID)
	if err != nil {
		return fmt.Errorf("failed to fetch device token: %w", err)
	}

	if err := o.gateway.Register(ctx, token); err != nil {
		// The machine stays in AWAITING_DEVICE until a later attempt
		// succeeds.
		return fmt.Errorf("device registration failed: %w", err)
	}

	o.machine.SetAgent(*selected)
	return nil
}

// Call dials the given number, falling back to the selected queue entry.
func (o *Orchestrator) Call(number string) error {
	if number == "" {
		number = o.coordinator.Selected()
	}
	return o.machine.Dial(number)
}

func (o *Orchestrator) Hangup() error {
	return o.machine.Hangup()
}

func (o *Orchestrator) ToggleMute() string {
	return o.machine.ToggleMute()
}

// SendVoicemail drops a pre-recorded voicemail and disposes the lead on
// success.
func (o *Orchestrator) SendVoicemail(ctx context.Context, to, voicemail string) error {
	if to == "" {
		to = o.coordinator.Selected()
	}
	if to == "" {
		return domain.ErrInvalidRequest
	}

	if err := o.backend.SendVoicemail(ctx, to, voicemail); err != nil {
		o.logger.Error().Err(err).Str("number", to).Msg("Failed to send voicemail")
		return err
	}

	o.logger.Info().Str("number", to).Str("voicemail", voicemail).Msg("Voicemail sent")
	o.coordinator.Dispose(ctx, to)
	o.coordinator.ClearSelection()
	return nil
}

func (o *Orchestrator) SelectNumber(ctx context.Context, number string) string {
	return o.coordinator.Select(ctx, number)
}

func (o *Orchestrator) SaveNote(ctx context.Context, number, text string) error {
	return o.coordinator.SaveNote(ctx, number, text)
}

func (o *Orchestrator) DisposeLead(ctx context.Context, number string) {
	o.coordinator.Dispose(ctx, number)
}

func (o *Orchestrator) RecordVerdict(verdict string) {
	o.engine.RecordVerdict(o.machine.Agent().AgentID, verdict)
}

func (o *Orchestrator) QueueSnapshot() []queue.RankedEntry {
	return o.coordinator.Snapshot()
}

func (o *Orchestrator) CallLog() []domain.CallLogEntry {
	return o.engine.CallLog()
}

func (o *Orchestrator) Satisfaction() []domain.SatisfactionEntry {
	return o.engine.Satisfaction()
}

func (o *Orchestrator) Session() domain.CallSession {
	return o.machine.Snapshot()
}

func (o *Orchestrator) AgentInfo() domain.AgentInfo {
	return o.machine.Agent()
}

func (o *Orchestrator) NoteBuffer() string {
	return o.coordinator.NoteBuffer()
}

func (o *Orchestrator) DeviceReady() bool {
	return o.gateway.Ready()
}
