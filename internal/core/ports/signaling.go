package ports

import "dcbench/internal/core/domain"

// EnvelopeSender is the outbound half of the signaling transport. Sessions
// use it to emit local descriptions and candidates.
type EnvelopeSender interface {
	SendEnvelope(env domain.SignalEnvelope) error
}

// SignalingClient is a duplex connection to the signaling server. The
// message handler must be registered before Connect so no inbound
// envelope is lost.
type SignalingClient interface {
	EnvelopeSender
	OnMessage(handler func(payload []byte, isText bool))
	Close() error
}
