package services

import (
	"testing"

	"dcbench/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) (*Router, *Registry, *fakeFactory) {
	t.Helper()
	reg, factory, _ := newTestRegistry(t)
	return NewRouter(reg, zap.NewNop().Sugar()), reg, factory
}

func TestRouterOfferCreatesAnsweringSession(t *testing.T) {
	router, reg, factory := newTestRouter(t)

	router.HandleMessage([]byte(`{"id":"AB12","type":"offer","description":"<sdp>"}`), true)

	sess, ok := reg.Lookup("AB12")
	require.True(t, ok)
	assert.Equal(t, domain.RoleAnswerer, sess.Role())

	descs := factory.conn("AB12").descriptions()
	require.Len(t, descs, 1)
	assert.Equal(t, "<sdp>", descs[0].SDP)
	assert.Equal(t, domain.TypeOffer, descs[0].Type)
}

func TestRouterUnknownPeerNonOfferIsNoOp(t *testing.T) {
	router, reg, _ := newTestRouter(t)

	router.HandleMessage([]byte(`{"id":"AB12","type":"answer","description":"<sdp>"}`), true)
	router.HandleMessage([]byte(`{"id":"AB12","type":"candidate","candidate":"candidate:1","mid":"0"}`), true)

	assert.Equal(t, 0, reg.Len())
}

func TestRouterDuplicateOfferKeepsSession(t *testing.T) {
	router, reg, _ := newTestRouter(t)

	router.HandleMessage([]byte(`{"id":"AB12","type":"offer","description":"<sdp1>"}`), true)
	first, ok := reg.Lookup("AB12")
	require.True(t, ok)

	router.HandleMessage([]byte(`{"id":"AB12","type":"offer","description":"<sdp2>"}`), true)

	assert.Equal(t, 1, reg.Len())
	got, _ := reg.Lookup("AB12")
	assert.Same(t, first, got)
	assert.Equal(t, domain.RoleAnswerer, got.Role())
}

func TestRouterRoutesToExistingSession(t *testing.T) {
	router, _, factory := newTestRouter(t)

	router.HandleMessage([]byte(`{"id":"AB12","type":"offer","description":"<offer>"}`), true)
	router.HandleMessage([]byte(`{"id":"AB12","type":"candidate","candidate":"candidate:1","mid":"0"}`), true)

	conn := factory.conn("AB12")
	cands := conn.candidates()
	require.Len(t, cands, 1)
	assert.Equal(t, "candidate:1", cands[0].Candidate)
	assert.Equal(t, "0", cands[0].Mid)
}

func TestRouterIgnoresNonText(t *testing.T) {
	router, reg, _ := newTestRouter(t)

	router.HandleMessage([]byte{0x01, 0x02}, false)

	assert.Equal(t, 0, reg.Len())
}

func TestRouterDropsMalformedPayloads(t *testing.T) {
	router, reg, _ := newTestRouter(t)

	router.HandleMessage([]byte(`not json at all`), true)
	router.HandleMessage([]byte(`{"type":"offer","description":"<sdp>"}`), true)
	router.HandleMessage([]byte(`{"id":"AB12","description":"<sdp>"}`), true)
	router.HandleMessage([]byte(`{"id":"AB12","type":"weird"}`), true)

	assert.Equal(t, 0, reg.Len())
}

func TestRouterCandidateMissingMidIsDropped(t *testing.T) {
	router, _, factory := newTestRouter(t)

	router.HandleMessage([]byte(`{"id":"AB12","type":"offer","description":"<offer>"}`), true)
	router.HandleMessage([]byte(`{"id":"AB12","type":"candidate","candidate":"candidate:1"}`), true)

	// Malformed candidate aborts that message only; the session survives.
	assert.Empty(t, factory.conn("AB12").candidates())
}

func TestRouterOfferWithoutDescriptionIsDropped(t *testing.T) {
	router, reg, factory := newTestRouter(t)

	router.HandleMessage([]byte(`{"id":"AB12","type":"offer"}`), true)

	// The session is created for the offer, but nothing is applied.
	assert.Equal(t, 1, reg.Len())
	assert.Empty(t, factory.conn("AB12").descriptions())
}
