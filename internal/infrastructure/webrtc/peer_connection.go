package webrtc

import (
	"fmt"
	"sync"
	"time"

	"dcbench/internal/core/ports"

	"github.com/pion/webrtc/v3"
)

var _ ports.PeerConnection = (*PeerConnection)(nil)

// Config carries the engine-level settings for new peer connections.
type Config struct {
	// STUNServer is a full "stun:host:port" URL; empty disables STUN and
	// limits connectivity to local hosts and public addresses.
	STUNServer string
}

// PeerConnection adapts a pion peer connection to the engine surface the
// core consumes. pion has no local-description event of its own: the
// adapter fires the registered handler itself after producing an offer
// (CreateDataChannel) or an answer (SetRemoteDescription of an offer),
// then trickles candidates through OnLocalCandidate.
type PeerConnection struct {
	pc *webrtc.PeerConnection

	mu                 sync.Mutex
	onLocalDescription func(sdp, sdpType string)
	onLocalCandidate   func(candidate, mid string)
	onDataChannel      func(ch ports.DataChannel)
	onState            func(state string)
	onGatheringState   func(state string)
}

func NewPeerConnection(cfg Config) (*PeerConnection, error) {
	config := webrtc.Configuration{}
	if cfg.STUNServer != "" {
		config.ICEServers = []webrtc.ICEServer{{URLs: []string{cfg.STUNServer}}}
	}

	settingEngine := webrtc.SettingEngine{}
	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))
	pc, err := api.NewPeerConnection(config)
	if err != nil {
		return nil, fmt.Errorf("creating peer connection: %w", err)
	}

	p := &PeerConnection{pc: pc}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return // end of gathering
		}
		p.mu.Lock()
		handler := p.onLocalCandidate
		p.mu.Unlock()
		if handler == nil {
			return
		}
		init := c.ToJSON()
		mid := ""
		if init.SDPMid != nil {
			mid = *init.SDPMid
		}
		handler(init.Candidate, mid)
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		p.mu.Lock()
		handler := p.onState
		p.mu.Unlock()
		if handler != nil {
			handler(s.String())
		}
	})

	pc.OnICEGatheringStateChange(func(s webrtc.ICEGathererState) {
		p.mu.Lock()
		handler := p.onGatheringState
		p.mu.Unlock()
		if handler != nil {
			handler(s.String())
		}
	})

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		p.mu.Lock()
		handler := p.onDataChannel
		p.mu.Unlock()
		if handler != nil {
			handler(newDataChannel(dc))
		}
	})

	return p, nil
}

// SetRemoteDescription applies the remote description. For an offer it
// also produces and installs the local answer and fires the
// local-description handler, mirroring an auto-answering engine.
func (p *PeerConnection) SetRemoteDescription(sdp, sdpType string) error {
	desc := webrtc.SessionDescription{Type: webrtc.NewSDPType(sdpType), SDP: sdp}
	if err := p.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("setting remote description: %w", err)
	}

	if desc.Type != webrtc.SDPTypeOffer {
		return nil
	}

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("creating answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("setting local answer: %w", err)
	}
	p.emitLocalDescription()
	return nil
}

func (p *PeerConnection) AddRemoteCandidate(candidate, mid string) error {
	sdpMid := mid
	init := webrtc.ICECandidateInit{Candidate: candidate, SDPMid: &sdpMid}
	if err := p.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("adding remote candidate: %w", err)
	}
	return nil
}

// CreateDataChannel opens a channel and starts negotiation: the local
// offer is produced, installed and emitted through the local-description
// handler.
func (p *PeerConnection) CreateDataChannel(label string) (ports.DataChannel, error) {
	dc, err := p.pc.CreateDataChannel(label, nil)
	if err != nil {
		return nil, fmt.Errorf("creating data channel %q: %w", label, err)
	}

	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("creating offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return nil, fmt.Errorf("setting local offer: %w", err)
	}
	p.emitLocalDescription()

	return newDataChannel(dc), nil
}

func (p *PeerConnection) emitLocalDescription() {
	p.mu.Lock()
	handler := p.onLocalDescription
	p.mu.Unlock()
	if handler == nil {
		return
	}
	if desc := p.pc.LocalDescription(); desc != nil {
		handler(desc.SDP, desc.Type.String())
	}
}

func (p *PeerConnection) OnDataChannel(handler func(ch ports.DataChannel)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onDataChannel = handler
}

func (p *PeerConnection) OnLocalDescription(handler func(sdp, sdpType string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onLocalDescription = handler
}

func (p *PeerConnection) OnLocalCandidate(handler func(candidate, mid string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onLocalCandidate = handler
}

func (p *PeerConnection) OnStateChange(handler func(state string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onState = handler
}

func (p *PeerConnection) OnGatheringStateChange(handler func(state string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onGatheringState = handler
}

// BytesSent reports lifetime bytes sent on the transport.
func (p *PeerConnection) BytesSent() uint64 {
	sent, _ := p.transferTotals()
	return sent
}

// BytesReceived reports lifetime bytes received on the transport.
func (p *PeerConnection) BytesReceived() uint64 {
	_, received := p.transferTotals()
	return received
}

func (p *PeerConnection) transferTotals() (sent, received uint64) {
	for _, s := range p.pc.GetStats() {
		switch stat := s.(type) {
		case webrtc.TransportStats:
			if stat.BytesSent > 0 || stat.BytesReceived > 0 {
				return stat.BytesSent, stat.BytesReceived
			}
		case webrtc.ICECandidatePairStats:
			if stat.Nominated {
				sent, received = stat.BytesSent, stat.BytesReceived
			}
		}
	}
	return sent, received
}

// RTT returns the nominated candidate pair's current round-trip time, 0
// when no sample is available yet.
func (p *PeerConnection) RTT() time.Duration {
	for _, s := range p.pc.GetStats() {
		if pair, ok := s.(webrtc.ICECandidatePairStats); ok && pair.Nominated && pair.CurrentRoundTripTime > 0 {
			return time.Duration(pair.CurrentRoundTripTime * float64(time.Second))
		}
	}
	return 0
}

func (p *PeerConnection) Close() error {
	return p.pc.Close()
}
