package services

import (
	"fmt"
	"sync"

	"dcbench/internal/core/domain"
	"dcbench/internal/core/ports"

	"go.uber.org/zap"
)

// ConnectionFactory constructs the underlying peer connection for a new
// session. Injected so tests can substitute a fake engine.
type ConnectionFactory func(id domain.PeerID) (ports.PeerConnection, error)

// Registry is the single source of truth mapping peer identifiers to
// sessions and their active data channels. Insertions happen under lock
// and before any engine callback for the session can fire, so concurrent
// readers never miss an entry mid-run.
type Registry struct {
	connect ConnectionFactory
	sender  ports.EnvelopeSender
	bench   *Engine
	logger  *zap.SugaredLogger

	mu       sync.RWMutex
	closed   bool
	sessions map[domain.PeerID]*Session
	channels map[domain.PeerID]ports.DataChannel
}

// SessionInfo is a point-in-time view of one session, used by the status
// endpoint and shutdown reporting.
type SessionInfo struct {
	ID             domain.PeerID `json:"id"`
	Role           domain.Role   `json:"role"`
	State          string        `json:"state"`
	BufferedAmount uint64        `json:"buffered_amount"`
	BytesSent      uint64        `json:"bytes_sent"`
	BytesReceived  uint64        `json:"bytes_received"`
	RTTMillis      int64         `json:"rtt_ms"`
}

func NewRegistry(connect ConnectionFactory, sender ports.EnvelopeSender, bench *Engine, logger *zap.SugaredLogger) *Registry {
	return &Registry{
		connect:  connect,
		sender:   sender,
		bench:    bench,
		logger:   logger,
		sessions: make(map[domain.PeerID]*Session),
		channels: make(map[domain.PeerID]ports.DataChannel),
	}
}

// Create constructs a session for id and inserts it before wiring the
// engine callbacks, so the entry is visible to concurrent readers by the
// time the first callback can run. Returns ErrDuplicateSession if the id
// is already registered; the existing session is left untouched.
func (r *Registry) Create(id domain.PeerID, role domain.Role) (*Session, error) {
	r.mu.Lock()
	if _, ok := r.sessions[id]; ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("create session for %s: %w", id, domain.ErrDuplicateSession)
	}

	conn, err := r.connect(id)
	if err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("creating peer connection for %s: %w", id, err)
	}

	sess := newSession(id, role, conn, r, r.sender, r.bench, r.logger)
	r.sessions[id] = sess
	r.mu.Unlock()

	sess.wire()
	return sess, nil
}

// Lookup returns the session for id, if any. Never fails.
func (r *Registry) Lookup(id domain.PeerID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

// RegisterChannel records the active data channel for id. The first
// registration wins; re-registering the same id is a no-op, as is any
// registration racing in after Clear.
func (r *Registry) RegisterChannel(id domain.PeerID, ch ports.DataChannel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if _, ok := r.channels[id]; ok {
		return
	}
	r.channels[id] = ch
}

// Channel returns the active data channel for id, if any.
func (r *Registry) Channel(id domain.PeerID) (ports.DataChannel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[id]
	return ch, ok
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns a view of all sessions for reporting.
func (r *Registry) Snapshot() []SessionInfo {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, sess.Info())
	}
	return infos
}

// Clear drops all sessions and channels and closes the underlying
// connections. The maps are swapped out under lock first, so in-flight
// callbacks observe either the live registry or an empty one, never a
// half-torn-down state; their sends against closing channels fail and are
// handled as ordinary transport errors.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.closed = true
	sessions := r.sessions
	r.sessions = make(map[domain.PeerID]*Session)
	r.channels = make(map[domain.PeerID]ports.DataChannel)
	r.mu.Unlock()

	for id, sess := range sessions {
		if err := sess.Close(); err != nil {
			r.logger.Warnw("closing session failed", "peer_id", id, "error", err)
		}
	}
}
