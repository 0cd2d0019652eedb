package ports

import "time"

// PeerConnection is the consumer-side surface of the underlying peer
// engine. The engine owns ICE negotiation and byte delivery; this core
// only drives descriptions and candidates through it and observes its
// events. Handlers may be invoked from engine-owned goroutines and must
// be registered before negotiation starts.
type PeerConnection interface {
	SetRemoteDescription(sdp, sdpType string) error
	AddRemoteCandidate(candidate, mid string) error
	CreateDataChannel(label string) (DataChannel, error)

	OnDataChannel(handler func(ch DataChannel))
	OnLocalDescription(handler func(sdp, sdpType string))
	OnLocalCandidate(handler func(candidate, mid string))
	OnStateChange(handler func(state string))
	OnGatheringStateChange(handler func(state string))

	// Lifetime transfer statistics, owned by the engine.
	BytesSent() uint64
	BytesReceived() uint64
	// RTT returns the last round-trip-time sample, 0 when unavailable.
	RTT() time.Duration

	Close() error
}

// DataChannel is one message-oriented channel on a peer connection.
// BufferedAmount reports bytes accepted for sending but not yet drained;
// OnBufferedAmountLow fires when it drops past the configured threshold.
type DataChannel interface {
	Label() string
	Send(data []byte) error
	BufferedAmount() uint64
	SetBufferedAmountLowThreshold(bytes uint64)
	IsOpen() bool

	OnOpen(handler func())
	OnClose(handler func())
	OnBufferedAmountLow(handler func())
	OnMessage(handler func(data []byte, isText bool))

	Close() error
}
