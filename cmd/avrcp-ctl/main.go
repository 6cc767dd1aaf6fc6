// Command avrcp-ctl is an interactive AVRCP controller console.
//
// It runs a controller session against a simulated target, either in
// process over a loopback transport or over TCP against avrcp-peersim.
//
// Usage:
//
//	avrcp-ctl [flags]
//
// Flags:
//
//	-config string      Configuration file path
//	-profile string     Simulated target profile (YAML)
//	-connect string     host:port of a running avrcp-peersim
//	-peer string        Bluetooth address reported for the target
//	-log-level string   Log level: debug, info, warn, error (default "info")
//	-capture string     Write a protocol capture (.rclog)
//	-interactive        Enable interactive command mode (default true)
//
// Examples:
//
//	# Drive the built-in headphones profile
//	avrcp-ctl
//
//	# Drive a served target and capture the session
//	avrcp-ctl -connect 127.0.0.1:7300 -profile car.yaml -capture car.rclog
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"

	"github.com/rcctl/avrcp-go/cmd/avrcp-ctl/interactive"
	"github.com/rcctl/avrcp-go/pkg/config"
	protolog "github.com/rcctl/avrcp-go/pkg/log"
	"github.com/rcctl/avrcp-go/pkg/peersim"
	"github.com/rcctl/avrcp-go/pkg/service"
	"github.com/rcctl/avrcp-go/pkg/transport"
)

// controllerAddr is the local address used on the loopback link.
const controllerAddr = "00:00:00:00:00:00"

var (
	configFile  string
	profileFile string
	connectAddr string
	peerAddr    string
	logLevel    string
	capturePath string
	interact    bool
)

func init() {
	flag.StringVar(&configFile, "config", "", "Configuration file path")
	flag.StringVar(&profileFile, "profile", "", "Simulated target profile (YAML)")
	flag.StringVar(&connectAddr, "connect", "", "host:port of a running avrcp-peersim")
	flag.StringVar(&peerAddr, "peer", "", "Bluetooth address reported for the target")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default \"info\")")
	flag.StringVar(&capturePath, "capture", "", "Write a protocol capture (.rclog)")
	flag.BoolVar(&interact, "interactive", true, "Enable interactive command mode")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Configuration: %v", err)
	}

	profile := peersim.DefaultProfile()
	if cfg.Target.Profile != "" {
		if profile, err = peersim.LoadProfile(cfg.Target.Profile); err != nil {
			log.Fatalf("Profile: %v", err)
		}
	}
	features, err := profile.FeatureBits()
	if err != nil {
		log.Fatalf("Profile: %v", err)
	}

	sessCfg, err := cfg.SessionConfig()
	if err != nil {
		log.Fatalf("Configuration: %v", err)
	}

	// Output goes through the console once it exists.
	out := &switchWriter{w: os.Stdout}
	log.SetOutput(out)
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	sessCfg.Logger = logger

	protoLogger, closeCapture, err := protocolLogger(cfg, logger)
	if err != nil {
		log.Fatalf("Capture: %v", err)
	}
	defer closeCapture()
	sessCfg.ProtocolLogger = protoLogger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	printer := interactive.NewPrinter(out)
	link, err := openLink(ctx, cfg, profile, printer, sessCfg, protoLogger)
	if err != nil {
		log.Fatalf("Link: %v", err)
	}
	defer link.close()
	printer.SetResponder(link.session)

	log.Println("AVRCP Controller Console")
	log.Println("========================")
	log.Printf("Target: %s (%s)", cfg.Target.Peer, features)
	if link.target != nil {
		log.Printf("Simulated in process: %s", profile.Name)
	} else {
		log.Printf("Connected to %s", cfg.Target.Address)
	}

	if err := link.session.OnConnect(cfg.Target.Peer, features); err != nil {
		log.Fatalf("Connect: %v", err)
	}

	if interact {
		opts := interactive.Options{Peer: cfg.Target.Peer, Features: features}
		if link.target != nil {
			opts.Simulator = link.target
		}
		console, err := interactive.New(link.session, opts)
		if err != nil {
			log.Fatalf("Failed to create console: %v", err)
		}
		out.set(console.Stdout())
		go console.Run(ctx, cancel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal: %v", sig)
	case <-link.done:
		log.Println("Link closed by peer")
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	cancel()
	// cancel may already have stopped the session.
	if err := link.session.Stop(); err != nil && !errors.Is(err, service.ErrNotStarted) {
		log.Printf("Error stopping session: %v", err)
	}
	log.Println("Goodbye!")
}

// loadConfig reads the configuration file and applies flag overrides.
func loadConfig() (*config.File, error) {
	cfg := config.Default()
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, err
		}
	}
	if profileFile != "" {
		cfg.Target.Profile = profileFile
	}
	if connectAddr != "" {
		cfg.Target.Address = connectAddr
	}
	if peerAddr != "" {
		cfg.Target.Peer = peerAddr
	}
	if cfg.Target.Peer == "" {
		cfg.Target.Peer = config.DefaultPeer
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if capturePath != "" {
		cfg.Log.Capture = capturePath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// protocolLogger combines the capture file with a debug slog trace of the
// decoded PDUs.
func protocolLogger(cfg *config.File, logger *slog.Logger) (protolog.Logger, func(), error) {
	var capture, trace protolog.Logger
	closer := func() {}

	if cfg.Log.Capture != "" {
		fl, err := protolog.NewFileLogger(cfg.Log.Capture)
		if err != nil {
			return nil, closer, err
		}
		capture = fl
		closer = func() {
			if err := fl.Err(); err != nil {
				logger.Warn("capture stopped early", "path", cfg.Log.Capture, "events", fl.Count(), "error", err)
			}
			fl.Close()
		}
	}
	if cfg.LogLevel() <= slog.LevelDebug {
		wireLayer := protolog.LayerWire
		trace = protolog.Only(protolog.NewSlogAdapter(logger), protolog.Filter{Layer: &wireLayer})
	}
	return protolog.Tee(capture, trace), closer, nil
}

// link is a started session and the transport under it.
type link struct {
	session *service.Session
	target  *peersim.Target
	done    <-chan struct{}
	close   func()
}

func openLink(ctx context.Context, cfg *config.File, profile *peersim.Profile, cb service.Callbacks,
	sessCfg service.SessionConfig, protoLogger protolog.Logger) (*link, error) {
	if cfg.Target.Address != "" {
		return dialLink(ctx, cfg, cb, sessCfg, protoLogger)
	}

	local, remote := transport.NewLoopbackPair(controllerAddr, cfg.Target.Peer)
	target, err := peersim.NewTarget(profile, remote, controllerAddr, sessCfg.Logger)
	if err != nil {
		return nil, err
	}
	session := service.NewSession(local, cb, sessCfg)
	if err := session.Start(ctx); err != nil {
		return nil, err
	}
	if err := remote.Start(target.Handle); err != nil {
		return nil, err
	}
	if err := local.Start(session.OnMessage); err != nil {
		return nil, err
	}

	return &link{
		session: session,
		target:  target,
		close: func() {
			target.Close()
			local.Close()
			remote.Close()
		},
	}, nil
}

func dialLink(ctx context.Context, cfg *config.File, cb service.Callbacks,
	sessCfg service.SessionConfig, protoLogger protolog.Logger) (*link, error) {
	st, err := transport.Dial(ctx, cfg.Target.Address, transport.StreamConfig{
		Peer:   cfg.Target.Peer,
		Logger: sessCfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	if protoLogger != nil {
		st.SetProtocolLogger(protoLogger, uuid.New().String())
	}

	session := service.NewSession(st, cb, sessCfg)
	if err := session.Start(ctx); err != nil {
		st.Close()
		return nil, err
	}
	if err := st.Start(ctx, session.OnMessage); err != nil {
		st.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		<-st.Done()
		if err := st.Err(); err != nil {
			log.Printf("Link error: %v", err)
		}
		_ = session.OnDisconnect(cfg.Target.Peer)
		close(done)
	}()

	return &link{
		session: session,
		done:    done,
		close:   func() { st.Close() },
	}, nil
}

// switchWriter lets log output move to the readline stdout after start.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) set(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = w
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
