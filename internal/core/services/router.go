package services

import (
	"encoding/json"
	"fmt"

	"dcbench/internal/core/domain"

	"go.uber.org/zap"
)

// Router decodes inbound signaling payloads and dispatches them to the
// owning session. Only an offer for an unknown identifier creates a new
// session; everything else addressed to an unknown identifier is dropped,
// which shields against out-of-order candidates and unsolicited answers.
type Router struct {
	registry *Registry
	logger   *zap.SugaredLogger
}

func NewRouter(registry *Registry, logger *zap.SugaredLogger) *Router {
	return &Router{registry: registry, logger: logger}
}

// HandleMessage processes one inbound signaling payload. Errors are
// contained to the single message: logged and dropped, never propagated
// to the transport read loop.
func (rt *Router) HandleMessage(payload []byte, isText bool) {
	if !isText {
		return
	}

	var env domain.SignalEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		// Signaling traffic may carry unrelated control frames.
		rt.logger.Debugw("ignoring undecodable signaling payload", "error", err)
		return
	}
	if env.ID == "" || env.Type == "" {
		return
	}

	sess, ok := rt.registry.Lookup(env.ID)
	if !ok {
		if env.Type != domain.TypeOffer {
			rt.logger.Debugw("dropping envelope for unknown peer",
				"peer_id", env.ID, "type", env.Type)
			return
		}
		rt.logger.Infow("answering to peer", "peer_id", env.ID)
		var err error
		sess, err = rt.registry.Create(env.ID, domain.RoleAnswerer)
		if err != nil {
			rt.logger.Errorw("creating answering session failed", "peer_id", env.ID, "error", err)
			return
		}
	}

	if err := rt.dispatch(sess, env); err != nil {
		rt.logger.Warnw("dropping signaling message",
			"peer_id", env.ID, "type", env.Type, "error", err)
	}
}

func (rt *Router) dispatch(sess *Session, env domain.SignalEnvelope) error {
	switch env.Type {
	case domain.TypeOffer, domain.TypeAnswer:
		if env.Description == "" {
			return fmt.Errorf("%s envelope without description: %w", env.Type, domain.ErrDecode)
		}
		return sess.SetRemoteDescription(env.Description, env.Type)
	case domain.TypeCandidate:
		if env.Candidate == "" || env.Mid == "" {
			return fmt.Errorf("candidate envelope missing candidate or mid: %w", domain.ErrDecode)
		}
		return sess.AddRemoteCandidate(env.Candidate, env.Mid)
	default:
		return fmt.Errorf("unknown envelope type %q: %w", env.Type, domain.ErrDecode)
	}
}
