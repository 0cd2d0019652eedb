package signal

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"dcbench/internal/core/domain"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // rendezvous server, peers connect from anywhere
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Server is the signaling rendezvous: each peer connects on /<id> and
// every envelope it sends is forwarded to the connection registered under
// the envelope's id, with the id field rewritten to the sender so the
// receiver knows who is talking.
type Server struct {
	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration

	messagesPerSecond rate.Limit
	messageBurst      int

	mu    sync.RWMutex
	peers map[domain.PeerID]*peerConn

	logger *zap.SugaredLogger
}

// peerConn pairs a connection with its write lock; envelopes for one peer
// may be forwarded from several handler goroutines.
type peerConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (p *peerConn) writeJSON(timeout time.Duration, v interface{}) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(timeout))
	return p.conn.WriteJSON(v)
}

func NewServer(logger *zap.SugaredLogger) *Server {
	return &Server{
		pingInterval:      30 * time.Second,
		readTimeout:       60 * time.Second,
		writeTimeout:      10 * time.Second,
		messagesPerSecond: 100,
		messageBurst:      200,
		peers:             make(map[domain.PeerID]*peerConn),
		logger:            logger,
	}
}

// HandleWebSocket upgrades the request and relays envelopes until the
// peer disconnects. The peer identifier is the request path.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := domain.PeerID(strings.Trim(r.URL.Path, "/"))
	if id == "" {
		http.Error(w, "missing peer id in path", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "peer_id", id, "error", err)
		return
	}

	peer := &peerConn{conn: conn}

	s.mu.Lock()
	if old, reconnect := s.peers[id]; reconnect {
		old.conn.Close()
		s.logger.Infow("closing old connection for reconnecting peer", "peer_id", id)
	}
	s.peers[id] = peer
	s.mu.Unlock()

	s.logger.Infow("peer connected", "peer_id", id)
	s.readLoop(id, peer)

	s.mu.Lock()
	if current, ok := s.peers[id]; ok && current == peer {
		delete(s.peers, id)
	}
	s.mu.Unlock()
	conn.Close()
	s.logger.Infow("peer disconnected", "peer_id", id)
}

func (s *Server) readLoop(id domain.PeerID, peer *peerConn) {
	conn := peer.conn
	limiter := rate.NewLimiter(s.messagesPerSecond, s.messageBurst)

	conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		return nil
	})

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	payloads := make(chan []byte, 16)
	errs := make(chan error, 1)

	// Closed when this loop returns so the reader never stays parked on a
	// full payloads buffer after the ping path bails out.
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				errs <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(s.readTimeout))
			select {
			case payloads <- payload:
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case payload := <-payloads:
			if !limiter.Allow() {
				s.logger.Warnw("dropping envelope, message rate exceeded", "peer_id", id)
				continue
			}
			s.forward(id, payload)

		case <-pingTicker.C:
			peer.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			peer.writeMu.Unlock()
			if err != nil {
				s.logger.Infow("ping failed", "peer_id", id, "error", err)
				return
			}

		case err := <-errs:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Infow("read failed", "peer_id", id, "error", err)
			}
			return
		}
	}
}

// forward relays one envelope to its destination peer. Envelopes without
// a routable destination are dropped; signaling is best-effort by design.
func (s *Server) forward(from domain.PeerID, payload []byte) {
	var env domain.SignalEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		s.logger.Debugw("dropping undecodable envelope", "peer_id", from, "error", err)
		return
	}
	if env.ID == "" {
		return
	}

	s.mu.RLock()
	dest, ok := s.peers[env.ID]
	s.mu.RUnlock()
	if !ok {
		s.logger.Debugw("dropping envelope for unknown destination",
			"from", from, "to", env.ID, "type", env.Type)
		return
	}

	to := env.ID
	env.ID = from
	if err := dest.writeJSON(s.writeTimeout, env); err != nil {
		s.logger.Warnw("forwarding envelope failed",
			"from", from, "to", to, "type", env.Type, "error", err)
	}
}

// ConnectedPeers returns the identifiers currently registered.
func (s *Server) ConnectedPeers() []domain.PeerID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]domain.PeerID, 0, len(s.peers))
	for id := range s.peers {
		ids = append(ids, id)
	}
	return ids
}

// HealthCheck reports server liveness and the current connection count.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	count := len(s.peers)
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "healthy",
		"timestamp":   time.Now().Unix(),
		"connections": count,
	})
}
