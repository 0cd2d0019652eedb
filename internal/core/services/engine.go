package services

import (
	"dcbench/internal/core/domain"
	"dcbench/internal/core/ports"

	"go.uber.org/zap"
)

// DefaultMessageSize is the fixed size of each benchmark message.
const DefaultMessageSize = 65535

// Engine drives maximal-throughput sending under channel backpressure and
// accounts bytes in both directions. The protocol is level-triggered and
// non-blocking: a burst pushes messages only while the channel's buffered
// amount is exactly zero, then yields; the channel's buffered-amount-low
// event is the sole resume signal.
type Engine struct {
	counters     *WindowCounters
	payload      []byte
	lowThreshold uint64
	logger       *zap.SugaredLogger
}

func NewEngine(messageSize int, lowThreshold uint64, logger *zap.SugaredLogger) *Engine {
	if messageSize <= 0 {
		messageSize = DefaultMessageSize
	}
	payload := make([]byte, messageSize)
	for i := range payload {
		payload[i] = 0xFF
	}
	return &Engine{
		counters:     &WindowCounters{},
		payload:      payload,
		lowThreshold: lowThreshold,
		logger:       logger,
	}
}

func (e *Engine) Counters() *WindowCounters { return e.counters }

func (e *Engine) MessageSize() int { return len(e.payload) }

// Attach hooks the engine onto a channel. The first burst starts on the
// channel's open event; later bursts are triggered exclusively by the
// buffered-amount-low notification. Callbacks hold only the channel
// handle and no-op once it reports closed.
func (e *Engine) Attach(id domain.PeerID, ch ports.DataChannel) {
	ch.SetBufferedAmountLowThreshold(e.lowThreshold)

	ch.OnOpen(func() {
		e.logger.Infow("data channel open, starting benchmark", "peer_id", id, "label", ch.Label())
		e.burst(id, ch)
	})

	ch.OnBufferedAmountLow(func() {
		e.burst(id, ch)
	})

	ch.OnClose(func() {
		e.logger.Infow("data channel closed", "peer_id", id, "label", ch.Label())
	})

	ch.OnMessage(func(data []byte, isText bool) {
		if isText {
			// Text frames are not expected on the benchmark channel and
			// are excluded from accounting.
			return
		}
		e.counters.AddReceived(uint64(len(data)))
	})
}

// burst sends until the channel stops draining synchronously. Open-state
// is re-checked on every iteration, including the very first burst, so a
// channel closed between the open event and the loop is a no-op. A send
// error ends the burst but not the session.
func (e *Engine) burst(id domain.PeerID, ch ports.DataChannel) {
	for ch.IsOpen() && ch.BufferedAmount() == 0 {
		if err := ch.Send(e.payload); err != nil {
			e.logger.Warnw("benchmark send failed, pausing", "peer_id", id, "error", err)
			return
		}
		e.counters.AddSent(uint64(len(e.payload)))
	}
}
