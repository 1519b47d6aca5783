package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Gouravbirwaz/cold-calling-platform/internal/backend"
	"github.com/Gouravbirwaz/cold-calling-platform/internal/device"
	"github.com/Gouravbirwaz/cold-calling-platform/internal/domain"
)

// CallService is the slice of the backend the machine needs.
type CallService interface {
	MakeCall(ctx context.Context, agentID, to string) (backend.CallGrant, error)
}

// Ended describes one finished session, handed to the post-call hook
// exactly once per ENDED transition.
type Ended struct {
	CallSID     string
	PhoneNumber string
	AgentID     string
	Reason      domain.TerminationReason
	Duration    time.Duration
}

// Machine owns the single CallSession and applies every transition under
// one lock, so device events, initiation responses, and user actions are
// strictly sequential no matter which goroutine delivers them.
type Machine struct {
	backend CallService
	gateway device.Gateway
	onEnded func(Ended)
	logger  zerolog.Logger

	mutex   sync.Mutex
	session *domain.CallSession
	agent   domain.AgentInfo
	conn    device.Connection

	ctx    context.Context
	cancel context.CancelFunc
}

type MachineConfig struct {
	Backend CallService
	Gateway device.Gateway
	// OnEnded is dispatched exactly once per ended session, after the
	// termination reason has been recorded.
	OnEnded func(Ended)
	Logger  zerolog.Logger
}

func NewMachine(cfg MachineConfig) *Machine {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Machine{
		backend: cfg.Backend,
		gateway: cfg.Gateway,
		onEnded: cfg.OnEnded,
		logger:  cfg.Logger,
		session: domain.NewCallSession(domain.SessionStateAwaitingDevice),
		ctx:     ctx,
		cancel:  cancel,
	}
	cfg.Gateway.OnEvent(m.HandleDeviceEvent)
	return m
}

func (m *Machine) Close() {
	m.cancel()
}

// SetAgent records the selected agent identity.
func (m *Machine) SetAgent(agent domain.AgentInfo) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.agent = agent
	m.logger.Info().Str("agent_id", agent.AgentID).Msg("Agent selected")
}

// Agent returns the selected agent identity.
func (m *Machine) Agent() domain.AgentInfo {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.agent
}

// Snapshot returns a copy of the current session for display.
func (m *Machine) Snapshot() domain.CallSession {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return *m.session
}

// Dial requests an outbound call to the given number. The IDLE guard is
// what prevents two initiation requests from ever being in flight.
func (m *Machine) Dial(number string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if number == "" || m.agent.AgentID == "" {
		m.logger.Error().Msg("Call rejected: phone number and agent are required")
		return domain.ErrInvalidRequest
	}
	if m.session.State == domain.SessionStateAwaitingDevice || !m.gateway.Ready() {
		m.logger.Error().Msg("Call rejected: device not registered")
		return domain.ErrDeviceUnavailable
	}
	if m.session.State != domain.SessionStateIdle {
		m.logger.Warn().
			Str("state", string(m.session.State)).
			Msg("Call rejected: session already active")
		return domain.ErrCallInProgress
	}

	m.session.State = domain.SessionStateRequesting
	m.session.TargetNumber = number
	m.session.RequestID = uuid.New().String()
	m.session.UserHangup = false

	m.logger.Info().
		Str("number", number).
		Str("agent_id", m.agent.AgentID).
		Msg("Requesting server to place call")

	go m.initiate(m.session.RequestID, m.agent.AgentID, number)
	return nil
}

func (m *Machine) initiate(requestID, agentID, number string) {
	grant, err := m.backend.MakeCall(m.ctx, agentID, number)

	m.mutex.Lock()
	defer m.mutex.Unlock()

	// A hangup during REQUESTING, or any other transition, retires the
	// request epoch: the late response is logged for bookkeeping only and
	// must not open a device connection.
	if m.session.State != domain.SessionStateRequesting || m.session.RequestID != requestID {
		m.logger.Info().
			Str("request_id", requestID).
			Bool("succeeded", err == nil).
			Msg("Stale call initiation response discarded")
		return
	}

	if err != nil {
		m.logger.Error().Err(err).Str("number", number).Msg("Server failed to initiate call")
		m.finalizeLocked(domain.TerminationFailed)
		return
	}

	m.session.CallSID = grant.CustomerCallSID
	m.session.Conference = grant.Conference

	conn, err := m.gateway.Connect(device.ConnectParams{To: "room:" + grant.Conference})
	if err != nil {
		m.logger.Error().Err(err).
			Str("conference", grant.Conference).
			Msg("Failed to open device connection")
		m.finalizeLocked(domain.TerminationFailed)
		return
	}

	m.conn = conn
	m.session.State = domain.SessionStateConnecting

	m.logger.Info().
		Str("call_sid", grant.CustomerCallSID).
		Str("conference", grant.Conference).
		Msg("Joining conference")
}

// Hangup terminates the active session at the user's request. During
// REQUESTING it retires the pending request so a late success cannot
// re-open a connection.
func (m *Machine) Hangup() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	switch m.session.State {
	case domain.SessionStateInCall:
		m.session.UserHangup = true
		m.disconnectLocked()
		m.logger.Info().Str("number", m.session.TargetNumber).Msg("Disconnecting call")
		m.finalizeLocked(domain.TerminationUserHangup)
		return nil

	case domain.SessionStateConnecting, domain.SessionStateIncomingRinging:
		m.session.UserHangup = true
		m.disconnectLocked()
		m.logger.Info().Str("number", m.session.TargetNumber).Msg("Abandoning unanswered call")
		m.finalizeLocked(domain.TerminationCanceled)
		return nil

	case domain.SessionStateRequesting:
		m.session.UserHangup = true
		m.logger.Info().
			Str("request_id", m.session.RequestID).
			Msg("Canceling pending call request")
		m.finalizeLocked(domain.TerminationCanceled)
		return nil

	default:
		m.logger.Warn().
			Str("state", string(m.session.State)).
			Msg("No active connection to disconnect")
		return domain.ErrNoActiveConnection
	}
}

// ToggleMute flips the mute flag while in a call and returns the label the
// mute control should now show. Outside IN_CALL it is a warned no-op.
func (m *Machine) ToggleMute() string {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.session.State != domain.SessionStateInCall {
		m.logger.Warn().
			Str("state", string(m.session.State)).
			Msg("Mute toggled outside of a call")
		return muteLabel(m.session.IsMuted)
	}

	m.session.IsMuted = !m.session.IsMuted
	if m.conn != nil {
		if err := m.conn.Mute(m.session.IsMuted); err != nil {
			m.logger.Error().Err(err).Msg("Failed to forward mute to device")
		}
	}

	m.logger.Info().Bool("muted", m.session.IsMuted).Msg("Call mute toggled")
	return muteLabel(m.session.IsMuted)
}

func muteLabel(muted bool) string {
	if muted {
		return "Unmute"
	}
	return "Mute"
}

// HandleDeviceEvent applies one telephony-device event to the session.
func (m *Machine) HandleDeviceEvent(event device.Event) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	switch event.Type {
	case device.EventReady:
		if m.session.State == domain.SessionStateAwaitingDevice {
			m.session = domain.NewCallSession(domain.SessionStateIdle)
			m.logger.Info().Msg("Device ready")
		}

	case device.EventError:
		m.logger.Error().Err(event.Err).Msg("Device error")
		if !m.session.Live() {
			m.session = domain.NewCallSession(domain.SessionStateAwaitingDevice)
		}

	case device.EventIncoming:
		if m.session.State != domain.SessionStateIdle {
			m.logger.Warn().
				Str("state", string(m.session.State)).
				Msg("Incoming call refused: session busy")
			return
		}
		m.conn = event.Conn
		m.session.State = domain.SessionStateIncomingRinging
		m.session.TargetNumber = event.From
		m.logger.Info().Str("from", event.From).Msg("Incoming call, auto-accepting")
		if err := event.Conn.Accept(); err != nil {
			m.logger.Error().Err(err).Msg("Failed to accept incoming call")
			m.finalizeLocked(domain.TerminationFailed)
		}

	case device.EventAccept:
		if m.session.State != domain.SessionStateConnecting &&
			m.session.State != domain.SessionStateIncomingRinging {
			return
		}
		now := time.Now()
		m.session.StartedAt = &now
		m.session.State = domain.SessionStateInCall
		m.logger.Info().Str("number", m.session.TargetNumber).Msg("Connected to conference")

	case device.EventDisconnect:
		switch m.session.State {
		case domain.SessionStateInCall:
			reason := domain.TerminationRemoteDisconnect
			if m.session.UserHangup {
				reason = domain.TerminationUserHangup
			}
			m.finalizeLocked(reason)
		case domain.SessionStateConnecting:
			m.finalizeLocked(domain.TerminationCanceled)
		case domain.SessionStateIncomingRinging:
			m.finalizeLocked(domain.TerminationRemoteDisconnect)
		default:
			m.logger.Debug().Msg("Disconnect event with no live session")
		}

	case device.EventCancel:
		if m.session.Live() {
			m.logger.Info().Str("number", m.session.TargetNumber).Msg("Call canceled before connecting")
			m.finalizeLocked(domain.TerminationCanceled)
		}

	case device.EventMute:
		if m.session.State == domain.SessionStateInCall {
			m.session.IsMuted = event.Muted
			m.logger.Info().Bool("muted", event.Muted).Msg("Device confirmed mute state")
		}
	}
}

func (m *Machine) disconnectLocked() {
	if m.conn == nil {
		return
	}
	if err := m.conn.Disconnect(); err != nil {
		m.logger.Error().Err(err).Msg("Failed to disconnect device connection")
	}
}

// finalizeLocked records the termination reason exactly once, dispatches
// the post-call hook, and resets the machine to IDLE. Callers hold the
// lock.
func (m *Machine) finalizeLocked(reason domain.TerminationReason) {
	now := time.Now()
	m.session.TerminationReason = reason
	m.session.EndedAt = &now
	m.session.State = domain.SessionStateEnded

	ended := Ended{
		CallSID:     m.session.CallSID,
		PhoneNumber: m.session.TargetNumber,
		AgentID:     m.agent.AgentID,
		Reason:      reason,
		Duration:    m.session.Duration(),
	}

	m.logger.Info().
		Str("number", ended.PhoneNumber).
		Str("reason", string(reason)).
		Dur("duration", ended.Duration).
		Msg("Call ended")

	m.conn = nil

	next := domain.SessionStateIdle
	if !m.gateway.Ready() {
		next = domain.SessionStateAwaitingDevice
	}
	m.session = domain.NewCallSession(next)

	if m.onEnded != nil {
		go m.onEnded(ended)
	}
}
