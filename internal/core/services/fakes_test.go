package services

import (
	"sync"
	"time"

	"dcbench/internal/core/domain"
	"dcbench/internal/core/ports"
)

// fakeConn is a scriptable stand-in for the underlying peer engine.
type fakeConn struct {
	mu sync.Mutex

	onLocalDescription func(sdp, sdpType string)
	onLocalCandidate   func(candidate, mid string)
	onDataChannel      func(ch ports.DataChannel)
	onState            func(state string)
	onGatheringState   func(state string)

	remoteDescriptions []remoteDescription
	remoteCandidates   []remoteCandidate
	createdChannels    []*fakeChannel

	bytesSent     uint64
	bytesReceived uint64
	rtt           time.Duration

	setRemoteErr error
	closed       bool
}

type remoteDescription struct{ SDP, Type string }

type remoteCandidate struct{ Candidate, Mid string }

func (c *fakeConn) SetRemoteDescription(sdp, sdpType string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setRemoteErr != nil {
		return c.setRemoteErr
	}
	c.remoteDescriptions = append(c.remoteDescriptions, remoteDescription{sdp, sdpType})
	return nil
}

func (c *fakeConn) AddRemoteCandidate(candidate, mid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remoteCandidates = append(c.remoteCandidates, remoteCandidate{candidate, mid})
	return nil
}

func (c *fakeConn) CreateDataChannel(label string) (ports.DataChannel, error) {
	ch := newFakeChannel(label)
	c.mu.Lock()
	c.createdChannels = append(c.createdChannels, ch)
	c.mu.Unlock()
	return ch, nil
}

func (c *fakeConn) OnDataChannel(handler func(ch ports.DataChannel)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDataChannel = handler
}

func (c *fakeConn) OnLocalDescription(handler func(sdp, sdpType string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLocalDescription = handler
}

func (c *fakeConn) OnLocalCandidate(handler func(candidate, mid string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLocalCandidate = handler
}

func (c *fakeConn) OnStateChange(handler func(state string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = handler
}

func (c *fakeConn) OnGatheringStateChange(handler func(state string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onGatheringState = handler
}

func (c *fakeConn) BytesSent() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytesSent
}

func (c *fakeConn) BytesReceived() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytesReceived
}

func (c *fakeConn) RTT() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rtt
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) fireLocalDescription(sdp, sdpType string) {
	c.mu.Lock()
	handler := c.onLocalDescription
	c.mu.Unlock()
	if handler != nil {
		handler(sdp, sdpType)
	}
}

func (c *fakeConn) fireLocalCandidate(candidate, mid string) {
	c.mu.Lock()
	handler := c.onLocalCandidate
	c.mu.Unlock()
	if handler != nil {
		handler(candidate, mid)
	}
}

func (c *fakeConn) fireDataChannel(ch ports.DataChannel) {
	c.mu.Lock()
	handler := c.onDataChannel
	c.mu.Unlock()
	if handler != nil {
		handler(ch)
	}
}

func (c *fakeConn) descriptions() []remoteDescription {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]remoteDescription, len(c.remoteDescriptions))
	copy(out, c.remoteDescriptions)
	return out
}

func (c *fakeConn) candidates() []remoteCandidate {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]remoteCandidate, len(c.remoteCandidates))
	copy(out, c.remoteCandidates)
	return out
}

// fakeChannel scripts the buffered-amount behavior of a data channel.
// bufferAfter, when > 0, makes the Nth successful send leave a nonzero
// buffered amount, simulating the first send the transport accepts but
// does not drain synchronously.
type fakeChannel struct {
	mu sync.Mutex

	label     string
	open      bool
	buffered  uint64
	threshold uint64

	sends       int
	sentBytes   uint64
	bufferAfter int
	sendErr     error
	closed      bool

	onOpen    func()
	onClose   func()
	onLow     func()
	onMessage func(data []byte, isText bool)
}

func newFakeChannel(label string) *fakeChannel {
	return &fakeChannel{label: label, open: true}
}

func (c *fakeChannel) Label() string { return c.label }

func (c *fakeChannel) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sends++
	c.sentBytes += uint64(len(data))
	if c.bufferAfter > 0 && c.sends >= c.bufferAfter {
		c.buffered = uint64(len(data))
	}
	return nil
}

func (c *fakeChannel) BufferedAmount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffered
}

func (c *fakeChannel) SetBufferedAmountLowThreshold(bytes uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threshold = bytes
}

func (c *fakeChannel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeChannel) OnOpen(handler func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onOpen = handler
}

func (c *fakeChannel) OnClose(handler func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = handler
}

func (c *fakeChannel) OnBufferedAmountLow(handler func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLow = handler
}

func (c *fakeChannel) OnMessage(handler func(data []byte, isText bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = handler
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.open = false
	return nil
}

func (c *fakeChannel) fireOpen() {
	c.mu.Lock()
	handler := c.onOpen
	c.mu.Unlock()
	if handler != nil {
		handler()
	}
}

func (c *fakeChannel) fireBufferedAmountLow() {
	c.mu.Lock()
	handler := c.onLow
	c.mu.Unlock()
	if handler != nil {
		handler()
	}
}

func (c *fakeChannel) deliver(data []byte, isText bool) {
	c.mu.Lock()
	handler := c.onMessage
	c.mu.Unlock()
	if handler != nil {
		handler(data, isText)
	}
}

func (c *fakeChannel) drain(resumeAfter int) {
	c.mu.Lock()
	c.buffered = 0
	c.bufferAfter = resumeAfter
	c.sends = 0
	c.mu.Unlock()
}

func (c *fakeChannel) sendCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sends
}

// fakeSender records envelopes the sessions emit.
type fakeSender struct {
	mu        sync.Mutex
	envelopes []domain.SignalEnvelope
	err       error
}

func (s *fakeSender) SendEnvelope(env domain.SignalEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.envelopes = append(s.envelopes, env)
	return nil
}

func (s *fakeSender) sent() []domain.SignalEnvelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SignalEnvelope, len(s.envelopes))
	copy(out, s.envelopes)
	return out
}

// fakeFactory hands out fakeConns and remembers them per peer.
type fakeFactory struct {
	mu    sync.Mutex
	conns map[domain.PeerID]*fakeConn
	err   error
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{conns: make(map[domain.PeerID]*fakeConn)}
}

func (f *fakeFactory) create(id domain.PeerID) (ports.PeerConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	conn := &fakeConn{}
	f.conns[id] = conn
	return conn, nil
}

func (f *fakeFactory) conn(id domain.PeerID) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[id]
}
