package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"dcbench/internal/core/domain"
	"dcbench/internal/core/ports"
	"dcbench/internal/core/services"
	"dcbench/internal/infrastructure/monitoring"
	"dcbench/internal/infrastructure/results"
	"dcbench/internal/infrastructure/signal"
	rtc "dcbench/internal/infrastructure/webrtc"
	"dcbench/pkg/config"
	"dcbench/pkg/logger"
	"dcbench/pkg/utils"

	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("config", "dcbench.yaml", "path to the configuration file")
		remote     = flag.String("remote", "", "remote peer ID to offer to (prompts on stdin when empty)")
		listen     = flag.Bool("listen", false, "skip the offer prompt and answer inbound offers")
		signaling  = flag.String("signaling", "", "signaling server host, overrides config")
		sigPort    = flag.Int("signaling-port", 0, "signaling server port, overrides config")
		stunServer = flag.String("stun", "", "STUN server host, overrides config")
		stunPort   = flag.Int("stun-port", 0, "STUN server port, overrides config")
		noStun     = flag.Bool("no-stun", false, "disable STUN")
		duration   = flag.Int("duration", -1, "benchmark duration in seconds, 0 = run indefinitely")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading configuration: %v\n", err)
		return 1
	}
	if *signaling != "" {
		cfg.Signaling.Server = *signaling
	}
	if *sigPort > 0 {
		cfg.Signaling.Port = *sigPort
	}
	if *stunServer != "" {
		cfg.STUN.Server = *stunServer
	}
	if *stunPort > 0 {
		cfg.STUN.Port = *stunPort
	}
	if *noStun {
		cfg.STUN.Enabled = false
	}
	if *duration >= 0 {
		cfg.Benchmark.DurationSeconds = *duration
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 1
	}

	zl := logger.New(cfg.Logging.Level)
	defer zl.Sync()
	log := zl.Sugar()

	if stun := cfg.STUNURL(); stun != "" {
		log.Infow("using STUN server", "url", stun)
	} else {
		log.Infow("no STUN server configured, only local hosts and public IP addresses supported")
	}

	localID := utils.RandomID(utils.LocalIDLength)
	log.Infow("local peer id", "peer_id", localID)

	bench := services.NewEngine(cfg.Benchmark.MessageSize, uint64(cfg.Benchmark.LowThreshold), log)
	client := signal.NewClient(cfg.SignalingURL(localID), log)

	engineCfg := rtc.Config{STUNServer: cfg.STUNURL()}
	factory := func(id domain.PeerID) (ports.PeerConnection, error) {
		return rtc.NewPeerConnection(engineCfg)
	}

	registry := services.NewRegistry(factory, client, bench, log)
	router := services.NewRouter(registry, log)
	client.OnMessage(router.HandleMessage)

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		log.Errorw("signaling connection failed", "error", err)
		registry.Clear()
		return 1
	}
	defer client.Close()

	var sink services.MetricsSink
	if cfg.Monitoring.Enabled {
		collector := monitoring.NewPrometheusCollector()
		sink = collector
		status := monitoring.NewStatusServer(cfg.Monitoring.Address, registry, log)
		status.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			status.Shutdown(shutdownCtx)
		}()
	}

	var store *results.Store
	if cfg.Results.Enabled {
		store, err = results.Open(cfg.Results.Path, cfg.Results.MaxRuns, log)
		if err != nil {
			log.Warnw("results store unavailable, continuing without it", "error", err)
		} else {
			defer store.Close()
		}
	}

	benchPeer, ok := resolveRemote(*remote, *listen, localID, log)
	if !ok {
		registry.Clear()
		return 0
	}

	if benchPeer != "" {
		log.Infow("offering to peer", "peer_id", benchPeer)
		sess, err := registry.Create(benchPeer, domain.RoleOfferer)
		if err != nil {
			log.Errorw("creating session failed", "peer_id", benchPeer, "error", err)
			registry.Clear()
			return 1
		}
		if err := sess.CreateChannel(cfg.Benchmark.ChannelLabel); err != nil {
			log.Errorw("creating benchmark channel failed", "peer_id", benchPeer, "error", err)
			registry.Clear()
			return 1
		}
	} else {
		log.Infow("listening for inbound offers")
	}

	runFor := time.Duration(cfg.Benchmark.DurationSeconds) * time.Second
	if runFor > 0 {
		log.Infow("benchmark starting", "duration_seconds", cfg.Benchmark.DurationSeconds)
	} else {
		log.Infow("benchmark starting, running until interrupted")
	}

	reporter := services.NewReporter(bench.Counters(), registry, sink, log)
	summary := reporter.Run(ctx, benchPeer, runFor)

	logSummary(log, summary)
	if store != nil {
		if res, err := store.SaveSummary(summary); err != nil {
			log.Warnw("saving run result failed", "error", err)
		} else {
			log.Infow("run result saved", "run_id", res.ID, "path", cfg.Results.Path)
		}
	}

	log.Infow("cleaning up")
	registry.Clear()
	return 0
}

// resolveRemote decides who to offer to. Returns ok=false when the
// process should exit normally without benchmarking: empty input, or a
// remote ID that is our own.
func resolveRemote(remote string, listen bool, localID string, log *zap.SugaredLogger) (domain.PeerID, bool) {
	if listen {
		return "", true
	}
	if remote == "" {
		fmt.Printf("Enter a remote ID to send an offer (empty to exit): ")
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			remote = strings.TrimSpace(scanner.Text())
		}
	}
	if remote == "" {
		log.Infow("no remote id entered, exiting")
		return "", false
	}
	if remote == localID {
		log.Warnw("invalid remote id: this is my local id", "peer_id", remote)
		return "", false
	}
	return domain.PeerID(remote), true
}

func logSummary(log *zap.SugaredLogger, summary services.RunSummary) {
	log.Infow("benchmark finished",
		"peer_id", summary.Peer,
		"ticks", summary.Ticks,
		"elapsed", summary.Elapsed.Round(time.Millisecond),
		"mean_sent_kbps", fmt.Sprintf("%.1f", summary.MeanSentKBps),
		"mean_received_kbps", fmt.Sprintf("%.1f", summary.MeanReceivedKBps),
		"rtt_ms", summary.RTT.Milliseconds(),
	)
}
