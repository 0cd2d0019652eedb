package services

import (
	"fmt"
	"sync"

	"dcbench/internal/core/domain"
	"dcbench/internal/core/ports"

	"go.uber.org/zap"
)

// Session is the state machine for one peer: negotiation via the
// signaling transport, then the lifecycle of at most one data channel.
// Engine callbacks run on engine-owned goroutines and may race with each
// other and with the control flow; all mutable session state sits behind
// mu.
type Session struct {
	id     domain.PeerID
	role   domain.Role
	conn   ports.PeerConnection
	reg    *Registry
	sender ports.EnvelopeSender
	bench  *Engine
	logger *zap.SugaredLogger

	mu         sync.Mutex
	state      domain.SessionState
	haveRemote bool
	channel    ports.DataChannel
}

func newSession(id domain.PeerID, role domain.Role, conn ports.PeerConnection, reg *Registry, sender ports.EnvelopeSender, bench *Engine, logger *zap.SugaredLogger) *Session {
	return &Session{
		id:     id,
		role:   role,
		conn:   conn,
		reg:    reg,
		sender: sender,
		bench:  bench,
		logger: logger,
		state:  domain.StateCreated,
	}
}

// wire registers the engine callbacks. Called by the registry after the
// session is inserted, so every callback can rely on Lookup finding it.
func (s *Session) wire() {
	s.conn.OnLocalDescription(func(sdp, sdpType string) {
		s.transition(domain.StateNegotiating)
		env := domain.SignalEnvelope{ID: s.id, Type: sdpType, Description: sdp}
		if err := s.sender.SendEnvelope(env); err != nil {
			// The session stays in Negotiating; resolution is up to the
			// caller (timeout policy is out of scope here).
			s.logger.Warnw("sending local description failed",
				"peer_id", s.id, "type", sdpType, "error", err)
		}
	})

	s.conn.OnLocalCandidate(func(candidate, mid string) {
		env := domain.SignalEnvelope{ID: s.id, Type: domain.TypeCandidate, Candidate: candidate, Mid: mid}
		if err := s.sender.SendEnvelope(env); err != nil {
			s.logger.Warnw("sending local candidate failed", "peer_id", s.id, "error", err)
		}
	})

	s.conn.OnStateChange(func(state string) {
		s.logger.Infow("connection state changed", "peer_id", s.id, "state", state)
	})

	s.conn.OnGatheringStateChange(func(state string) {
		s.logger.Infow("gathering state changed", "peer_id", s.id, "state", state)
	})

	s.conn.OnDataChannel(func(ch ports.DataChannel) {
		s.logger.Infow("data channel received", "peer_id", s.id, "label", ch.Label())
		s.adoptChannel(ch)
	})
}

// SetRemoteDescription applies a remote offer or answer. Rejected once the
// session is Active with an established channel; this system does not
// model renegotiation.
func (s *Session) SetRemoteDescription(sdp, sdpType string) error {
	s.mu.Lock()
	if s.state == domain.StateActive && s.channel != nil {
		s.mu.Unlock()
		return fmt.Errorf("remote %s for %s after channel established: %w", sdpType, s.id, domain.ErrSignalingState)
	}
	s.mu.Unlock()

	if err := s.conn.SetRemoteDescription(sdp, sdpType); err != nil {
		return fmt.Errorf("applying remote %s for %s: %w", sdpType, s.id, err)
	}

	// Candidates are admitted only once the engine holds a remote
	// description, so the latch follows the successful call.
	s.mu.Lock()
	s.haveRemote = true
	s.mu.Unlock()
	return nil
}

// AddRemoteCandidate applies a remote ICE candidate. A candidate arriving
// before any remote description is out of order and dropped by the caller.
func (s *Session) AddRemoteCandidate(candidate, mid string) error {
	s.mu.Lock()
	ready := s.haveRemote
	s.mu.Unlock()
	if !ready {
		return fmt.Errorf("candidate for %s before remote description: %w", s.id, domain.ErrSignalingState)
	}

	if err := s.conn.AddRemoteCandidate(candidate, mid); err != nil {
		return fmt.Errorf("applying remote candidate for %s: %w", s.id, err)
	}
	return nil
}

// CreateChannel opens the benchmark data channel. Used by the offerer to
// initiate negotiation; the answerer receives its channel via
// OnDataChannel instead.
func (s *Session) CreateChannel(label string) error {
	ch, err := s.conn.CreateDataChannel(label)
	if err != nil {
		return fmt.Errorf("creating data channel %q for %s: %w", label, s.id, err)
	}
	s.logger.Infow("data channel created", "peer_id", s.id, "label", label)
	s.adoptChannel(ch)
	return nil
}

// adoptChannel registers the channel, attaches the benchmark engine and
// moves the session to Active. The first channel wins; the registry keeps
// only one channel per peer.
func (s *Session) adoptChannel(ch ports.DataChannel) {
	s.mu.Lock()
	if s.state == domain.StateClosed {
		s.mu.Unlock()
		ch.Close()
		return
	}
	if s.channel != nil {
		s.mu.Unlock()
		s.logger.Warnw("ignoring extra data channel", "peer_id", s.id, "label", ch.Label())
		return
	}
	s.channel = ch
	s.state = domain.StateActive
	s.mu.Unlock()

	s.reg.RegisterChannel(s.id, ch)
	s.bench.Attach(s.id, ch)
}

func (s *Session) transition(state domain.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Active and Closed are terminal with respect to Negotiating.
	if s.state == domain.StateActive || s.state == domain.StateClosed {
		return
	}
	s.state = state
}

func (s *Session) ID() domain.PeerID { return s.id }

func (s *Session) Role() domain.Role { return s.role }

func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Channel returns the active data channel, nil until one is adopted.
func (s *Session) Channel() ports.DataChannel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

// Conn exposes the underlying connection for lifetime statistics.
func (s *Session) Conn() ports.PeerConnection { return s.conn }

// Info reports the current state of the session.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	ch := s.channel
	state := s.state
	s.mu.Unlock()

	info := SessionInfo{
		ID:            s.id,
		Role:          s.role,
		State:         state.String(),
		BytesSent:     s.conn.BytesSent(),
		BytesReceived: s.conn.BytesReceived(),
		RTTMillis:     s.conn.RTT().Milliseconds(),
	}
	if ch != nil {
		info.BufferedAmount = ch.BufferedAmount()
	}
	return info
}

// Close tears the session down. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == domain.StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = domain.StateClosed
	ch := s.channel
	s.mu.Unlock()

	if ch != nil {
		if err := ch.Close(); err != nil {
			s.logger.Debugw("closing data channel failed", "peer_id", s.id, "error", err)
		}
	}
	return s.conn.Close()
}
