package services

import (
	"context"
	"time"

	"dcbench/internal/core/domain"
	"dcbench/internal/core/ports"

	"go.uber.org/zap"
)

// totalsEvery is the tick multiple at which lifetime totals and RTT are
// reported in addition to the per-window rates.
const totalsEvery = 5

// MetricsSink receives reporter observations. Implemented by the
// prometheus collector; nil disables export.
type MetricsSink interface {
	ObserveWindow(sentBytes, receivedBytes, bufferedAmount uint64)
	ObserveTotals(bytesSent, bytesReceived uint64, rtt time.Duration)
}

// RunSummary is the aggregate outcome of one benchmark run.
type RunSummary struct {
	Peer             domain.PeerID
	Role             domain.Role
	Ticks            int
	Elapsed          time.Duration
	WindowSentBytes  uint64
	WindowRecvBytes  uint64
	TotalSentBytes   uint64
	TotalRecvBytes   uint64
	MeanSentKBps     float64
	MeanReceivedKBps float64
	RTT              time.Duration
}

// Reporter owns the once-per-second stats loop. It only reads counters
// maintained by the engine callbacks and never blocks them; the sleep
// between ticks is the sole deliberate wait in the core.
type Reporter struct {
	counters *WindowCounters
	registry *Registry
	interval time.Duration
	sink     MetricsSink
	logger   *zap.SugaredLogger
}

func NewReporter(counters *WindowCounters, registry *Registry, sink MetricsSink, logger *zap.SugaredLogger) *Reporter {
	return &Reporter{
		counters: counters,
		registry: registry,
		interval: time.Second,
		sink:     sink,
		logger:   logger,
	}
}

// Run reports stats every interval until the duration elapses (0 = run
// until ctx is cancelled). peer selects whose channel and connection feed
// the buffered-amount and totals columns; when empty the reporter tracks
// whichever session appears first, which is the listen-mode case.
func (r *Reporter) Run(ctx context.Context, peer domain.PeerID, duration time.Duration) RunSummary {
	ticks := 0
	if duration > 0 {
		ticks = int(duration / r.interval)
		if ticks < 1 {
			ticks = 1
		}
	}

	summary := RunSummary{Peer: peer}
	started := time.Now()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for i := 1; ticks == 0 || i <= ticks; i++ {
		select {
		case <-ctx.Done():
			r.finish(&summary, started)
			return summary
		case <-ticker.C:
		}

		sent, received := r.counters.TakeWindows()
		summary.WindowSentBytes += sent
		summary.WindowRecvBytes += received
		summary.Ticks = i

		sess := r.target(&summary)
		var buffered uint64
		if sess != nil {
			if ch := sess.Channel(); ch != nil {
				buffered = ch.BufferedAmount()
			}
		}

		r.logger.Infow("benchmark window",
			"tick", i,
			"received_kbps", received/1024,
			"sent_kbps", sent/1024,
			"buffer_size", buffered,
		)
		if r.sink != nil {
			r.sink.ObserveWindow(sent, received, buffered)
		}

		if i%totalsEvery == 0 && sess != nil {
			r.reportTotals(sess.Conn())
		}
	}

	r.finish(&summary, started)
	return summary
}

func (r *Reporter) reportTotals(conn ports.PeerConnection) {
	bytesSent := conn.BytesSent()
	bytesReceived := conn.BytesReceived()
	rtt := conn.RTT()

	r.logger.Infow("benchmark totals",
		"received_mb", bytesReceived/(1024*1024),
		"sent_mb", bytesSent/(1024*1024),
		"rtt_ms", rtt.Milliseconds(),
	)
	if r.sink != nil {
		r.sink.ObserveTotals(bytesSent, bytesReceived, rtt)
	}
}

// target resolves the session the reporter follows, latching the first
// registered session when no explicit peer was given.
func (r *Reporter) target(summary *RunSummary) *Session {
	if summary.Peer != "" {
		if sess, ok := r.registry.Lookup(summary.Peer); ok {
			summary.Role = sess.Role()
			return sess
		}
		return nil
	}
	for _, info := range r.registry.Snapshot() {
		summary.Peer = info.ID
		summary.Role = info.Role
		sess, _ := r.registry.Lookup(info.ID)
		return sess
	}
	return nil
}

func (r *Reporter) finish(summary *RunSummary, started time.Time) {
	summary.Elapsed = time.Since(started)
	if sess := r.target(summary); sess != nil {
		conn := sess.Conn()
		summary.TotalSentBytes = conn.BytesSent()
		summary.TotalRecvBytes = conn.BytesReceived()
		summary.RTT = conn.RTT()
	}
	if secs := summary.Elapsed.Seconds(); secs > 0 {
		summary.MeanSentKBps = float64(summary.WindowSentBytes) / 1024 / secs
		summary.MeanReceivedKBps = float64(summary.WindowRecvBytes) / 1024 / secs
	}
}
