package domain

// PeerID is the opaque token identifying a remote party on the signaling
// channel. It is either taken from the signaling address path or generated
// locally as a short random alphanumeric string.
type PeerID string

// Role describes which side of the negotiation this process plays for a
// given session.
type Role string

const (
	RoleOfferer  Role = "offerer"
	RoleAnswerer Role = "answerer"
)

// SessionState is the lifecycle position of a peer session.
type SessionState int32

const (
	StateCreated SessionState = iota
	StateNegotiating
	StateActive
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateNegotiating:
		return "negotiating"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Envelope types carried on the signaling channel.
const (
	TypeOffer     = "offer"
	TypeAnswer    = "answer"
	TypeCandidate = "candidate"
)

// SignalEnvelope is the JSON message exchanged over the signaling
// transport. Description is set for offer/answer envelopes, Candidate and
// Mid for candidate envelopes.
type SignalEnvelope struct {
	ID          PeerID `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Candidate   string `json:"candidate,omitempty"`
	Mid         string `json:"mid,omitempty"`
}
