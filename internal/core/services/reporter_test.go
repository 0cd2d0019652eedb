package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"dcbench/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type windowObservation struct {
	sent, received, buffered uint64
}

type totalsObservation struct {
	sent, received uint64
	rtt            time.Duration
}

type fakeSink struct {
	mu      sync.Mutex
	windows []windowObservation
	totals  []totalsObservation
}

func (s *fakeSink) ObserveWindow(sent, received, buffered uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows = append(s.windows, windowObservation{sent, received, buffered})
}

func (s *fakeSink) ObserveTotals(sent, received uint64, rtt time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totals = append(s.totals, totalsObservation{sent, received, rtt})
}

func newTestReporter(t *testing.T) (*Reporter, *Registry, *fakeFactory, *fakeSink) {
	t.Helper()
	reg, factory, _ := newTestRegistry(t)
	sink := &fakeSink{}
	reporter := NewReporter(reg.bench.Counters(), reg, sink, zap.NewNop().Sugar())
	reporter.interval = 5 * time.Millisecond
	return reporter, reg, factory, sink
}

func TestReporterWindowResetsEachTick(t *testing.T) {
	reporter, reg, factory, sink := newTestReporter(t)

	sess, err := reg.Create("AB12", domain.RoleOfferer)
	require.NoError(t, err)
	ch := newFakeChannel("benchmark")
	ch.buffered = 4096
	factory.conn("AB12").fireDataChannel(ch)

	reg.bench.Counters().AddSent(65535)
	reg.bench.Counters().AddSent(65535)
	reg.bench.Counters().AddReceived(65535)
	reg.bench.Counters().AddReceived(65535)

	summary := reporter.Run(context.Background(), "AB12", 2*reporter.interval)

	require.Len(t, sink.windows, 2)
	assert.Equal(t, uint64(131070), sink.windows[0].sent)
	assert.Equal(t, uint64(131070), sink.windows[0].received)
	assert.Equal(t, uint64(128), sink.windows[0].received/1024)
	assert.Equal(t, uint64(4096), sink.windows[0].buffered)
	// Swapped out on the first tick, nothing accumulated since.
	assert.Equal(t, uint64(0), sink.windows[1].sent)
	assert.Equal(t, uint64(0), sink.windows[1].received)

	assert.Equal(t, 2, summary.Ticks)
	assert.Equal(t, uint64(131070), summary.WindowSentBytes)
	assert.Equal(t, sess.Role(), summary.Role)
	assert.Greater(t, summary.MeanSentKBps, 0.0)
}

func TestReporterTotalsEveryFifthTick(t *testing.T) {
	reporter, reg, factory, sink := newTestReporter(t)

	_, err := reg.Create("AB12", domain.RoleOfferer)
	require.NoError(t, err)
	conn := factory.conn("AB12")
	conn.bytesSent = 10 * 1024 * 1024
	conn.bytesReceived = 20 * 1024 * 1024
	conn.rtt = 30 * time.Millisecond

	summary := reporter.Run(context.Background(), "AB12", 5*reporter.interval)

	require.Len(t, sink.totals, 1)
	assert.Equal(t, uint64(10*1024*1024), sink.totals[0].sent)
	assert.Equal(t, uint64(20*1024*1024), sink.totals[0].received)
	assert.Equal(t, 30*time.Millisecond, sink.totals[0].rtt)

	assert.Equal(t, uint64(10*1024*1024), summary.TotalSentBytes)
	assert.Equal(t, uint64(20*1024*1024), summary.TotalRecvBytes)
	assert.Equal(t, 30*time.Millisecond, summary.RTT)
}

func TestReporterStopsOnContextCancel(t *testing.T) {
	reporter, _, _, sink := newTestReporter(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(12 * time.Millisecond)
		cancel()
	}()

	done := make(chan RunSummary, 1)
	go func() {
		done <- reporter.Run(ctx, "AB12", 0)
	}()

	select {
	case summary := <-done:
		assert.Greater(t, summary.Elapsed, time.Duration(0))
		sink.mu.Lock()
		ticked := len(sink.windows)
		sink.mu.Unlock()
		assert.GreaterOrEqual(t, ticked, 1)
	case <-time.After(time.Second):
		t.Fatal("reporter did not stop on cancellation")
	}
}

func TestReporterLatchesFirstSession(t *testing.T) {
	reporter, reg, factory, _ := newTestReporter(t)

	_, err := reg.Create("CD34", domain.RoleAnswerer)
	require.NoError(t, err)
	factory.conn("CD34").bytesReceived = 512

	summary := reporter.Run(context.Background(), "", reporter.interval)

	assert.Equal(t, domain.PeerID("CD34"), summary.Peer)
	assert.Equal(t, domain.RoleAnswerer, summary.Role)
	assert.Equal(t, uint64(512), summary.TotalRecvBytes)
}

func TestReporterNoSession(t *testing.T) {
	reporter, _, _, sink := newTestReporter(t)

	summary := reporter.Run(context.Background(), "ZZ99", reporter.interval)

	assert.Equal(t, 1, summary.Ticks)
	require.Len(t, sink.windows, 1)
	assert.Equal(t, uint64(0), sink.windows[0].buffered)
	assert.Equal(t, uint64(0), summary.TotalSentBytes)
}
