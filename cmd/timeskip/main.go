// Command timeskip records messages flowing on a broker subject pattern to
// a capture file, and replays captures back onto a broker with faithful
// timing. See the record and play subcommands below.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	_ "go.uber.org/automaxprocs"

	"timeskip/internal/broker"
	"timeskip/internal/config"
	"timeskip/internal/logging"
	"timeskip/internal/metrics"
	"timeskip/internal/player"
	"timeskip/internal/playerui"
	"timeskip/internal/recorder"
	"timeskip/internal/sysmon"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "record":
		err = runRecord(os.Args[2:])
	case "play":
		err = runPlay(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "timeskip: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: timeskip record <subject> [-o PATH] [-s URL]")
	fmt.Fprintln(os.Stderr, "       timeskip play <file> [-s URL] [--speed S] [--no-interactive]")
}

func serverURL(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envURL := os.Getenv("NATS_URL"); envURL != "" {
		return envURL
	}
	return broker.DefaultURL
}

func runRecord(args []string) error {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	output := fs.String("o", "", "output capture file path")
	fs.StringVar(output, "output", "", "output capture file path (long form)")
	server := fs.String("s", "", "broker server URL")
	fs.StringVar(server, "server", "", "broker server URL (long form)")
	format := fs.String("format", "zet", "container format: zet|mcap")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("record requires a subject argument")
	}
	subject := fs.Arg(0)
	fs.Parse(fs.Args()[1:]) // flags may also follow the subject
	if *output == "" {
		return fmt.Errorf("record requires -o/--output")
	}
	if *format != "zet" {
		return fmt.Errorf("unsupported container format %q (only zet is implemented)", *format)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runSysmon(ctx, logger)
	recMetrics, _ := startMetricsServer(cfg.MetricsAddr, logger)

	url := serverURL(*server)
	bus, err := broker.Connect(broker.Config{
		URL:             url,
		MaxReconnects:   cfg.BrokerMaxReconnects,
		ReconnectWait:   cfg.BrokerReconnectWait,
		ReconnectJitter: cfg.BrokerReconnectJitter,
		MaxPingsOut:     cfg.BrokerMaxPingsOut,
		PingInterval:    cfg.BrokerPingInterval,
	}, logger)
	if err != nil {
		return err
	}

	rec, err := recorder.Create(url, subject, *output, cfg.RingCapacity, logger, recorder.Deps{Bus: bus, Metrics: recMetrics})
	if err != nil {
		return err
	}
	if err := rec.Start(); err != nil {
		return err
	}
	logger.Info().Str("subject", subject).Str("output", *output).Str("server", url).Msg("recording started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	statTick := time.NewTicker(5 * time.Second)
	defer statTick.Stop()

loop:
	for {
		select {
		case <-sig:
			break loop
		case <-statTick.C:
			s := rec.Stats()
			logger.Info().
				Uint64("received", s.Received).
				Uint64("written", s.Written).
				Uint64("dropped", s.Dropped).
				Bool("overflow", s.Overflow).
				Msg("recorder stats")
		}
	}

	rec.Stop()
	final := rec.Stats()
	logger.Info().
		Uint64("received", final.Received).
		Uint64("written", final.Written).
		Uint64("dropped", final.Dropped).
		Uint64("bytes_written", final.BytesWritten).
		Bool("overflow", final.Overflow).
		Msg("recording stopped")

	if final.Overflow {
		fmt.Fprintln(os.Stderr, "warning: ring buffer overflowed during recording, some messages were dropped")
	}
	return nil
}

func runPlay(args []string) error {
	fs := flag.NewFlagSet("play", flag.ExitOnError)
	server := fs.String("s", "", "broker server URL")
	fs.StringVar(server, "server", "", "broker server URL (long form)")
	speed := fs.Float64("speed", 1.0, "playback speed multiplier (0 = unthrottled)")
	noInteractive := fs.Bool("no-interactive", false, "disable the terminal control loop")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("play requires a capture file argument")
	}
	inputPath := fs.Arg(0)
	fs.Parse(fs.Args()[1:]) // flags may also follow the file

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runSysmon(ctx, logger)
	_, playMetrics := startMetricsServer(cfg.MetricsAddr, logger)

	url := serverURL(*server)
	p, err := player.Create(url, inputPath, *speed, logger, player.Deps{Metrics: playMetrics})
	if err != nil {
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		p.Cancel()
	}()

	if !*noInteractive {
		go runInteractiveControls(ctx, p)
	}

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	statTick := time.NewTicker(time.Second)
	defer statTick.Stop()

	var runErr error
waitLoop:
	for {
		select {
		case runErr = <-done:
			break waitLoop
		case <-statTick.C:
			fmt.Fprintf(os.Stderr, "\r%s", playerui.Line(p.Stats()))
		}
	}
	fmt.Fprintf(os.Stderr, "\r%s\n", playerui.Line(p.Stats()))

	final := p.Stats()
	logger.Info().
		Int("published", int(final.MessagesPublished)).
		Uint64("not_published", final.NotPublished).
		Msg("playback finished")

	return runErr
}

// runInteractiveControls reads single-line stdin commands and maps them to
// player operations per the left/right/up/down/p/n/q mapping of spec
// §4.2. A real terminal UI would read raw key events instead; this text
// protocol is the collaborator contract's minimal stand-in.
func runInteractiveControls(ctx context.Context, p *player.Player) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		switch scanner.Text() {
		case "left":
			p.Seek(-10)
		case "right":
			p.Seek(10)
		case "up":
			p.SetSpeedStep(true)
		case "down":
			p.SetSpeedStep(false)
		case "p", " ":
			if p.IsPaused() {
				p.Resume()
			} else {
				p.Pause()
			}
		case "n":
			p.SkipNext()
		case "s":
			p.Step()
		case "q":
			p.Cancel()
			return
		}
	}
}

func runSysmon(ctx context.Context, logger zerolog.Logger) {
	sysmon.New(logger, 15*time.Second).Run(ctx)
}

// startMetricsServer registers the recorder and player metric sets and
// serves them on addr, returning both so the caller can thread whichever
// one its subcommand needs into recorder.Deps/player.Deps — without that,
// the registered series would sit permanently at zero. Returns nil, nil
// when addr is empty (metrics disabled).
func startMetricsServer(addr string, logger zerolog.Logger) (*metrics.Recorder, *metrics.Player) {
	if addr == "" {
		return nil, nil
	}
	recM := metrics.NewRecorder()
	playM := metrics.NewPlayer()
	go func() {
		if err := metrics.Serve(addr); err != nil {
			logger.Warn().Err(err).Msg("metrics server stopped")
		}
	}()
	return recM, playM
}
