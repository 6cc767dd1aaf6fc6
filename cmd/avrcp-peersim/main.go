// Command avrcp-peersim serves a simulated AVRCP target over TCP.
//
// Each accepted connection gets its own target built from the profile.
// avrcp-ctl -connect drives it.
//
// Usage:
//
//	avrcp-peersim [flags]
//
// Flags:
//
//	-listen string          Listen address (default "127.0.0.1:7300")
//	-profile string         Target profile (YAML, default: built-in headphones)
//	-log-level string       Log level: debug, info, warn, error (default "info")
//	-capture string         Write a protocol capture (.rclog)
//	-track-interval duration  Start a new track at this interval (0 disables)
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	protolog "github.com/rcctl/avrcp-go/pkg/log"
	"github.com/rcctl/avrcp-go/pkg/peersim"
	"github.com/rcctl/avrcp-go/pkg/transport"
)

var (
	listenAddr    string
	profileFile   string
	logLevel      string
	capturePath   string
	trackInterval time.Duration
)

func init() {
	flag.StringVar(&listenAddr, "listen", "127.0.0.1:7300", "Listen address")
	flag.StringVar(&profileFile, "profile", "", "Target profile (YAML, default: built-in headphones)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&capturePath, "capture", "", "Write a protocol capture (.rclog)")
	flag.DurationVar(&trackInterval, "track-interval", 0, "Start a new track at this interval (0 disables)")
}

// targets tracks the simulated target of each live connection.
type targets struct {
	mu sync.Mutex
	m  map[*transport.ServerConn]*peersim.Target
}

func (t *targets) add(conn *transport.ServerConn, target *peersim.Target) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m[conn] = target
}

func (t *targets) remove(conn *transport.ServerConn) *peersim.Target {
	t.mu.Lock()
	defer t.mu.Unlock()
	target := t.m[conn]
	delete(t.m, conn)
	return target
}

func (t *targets) each(fn func(*peersim.Target)) {
	t.mu.Lock()
	list := make([]*peersim.Target, 0, len(t.m))
	for _, target := range t.m {
		list = append(list, target)
	}
	t.mu.Unlock()
	for _, target := range list {
		fn(target)
	}
}

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	level, err := parseLevel(logLevel)
	if err != nil {
		log.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	profile := peersim.DefaultProfile()
	if profileFile != "" {
		if profile, err = peersim.LoadProfile(profileFile); err != nil {
			log.Fatalf("Profile: %v", err)
		}
	}

	var capture protolog.Logger
	if capturePath != "" {
		fl, err := protolog.NewFileLogger(capturePath)
		if err != nil {
			log.Fatalf("Capture: %v", err)
		}
		defer fl.Close()
		capture = fl
	}

	live := &targets{m: make(map[*transport.ServerConn]*peersim.Target)}

	server, err := transport.NewServer(transport.ServerConfig{
		Address:        listenAddr,
		ProtocolLogger: capture,
		Logger:         logger,
		OnConnect: func(conn *transport.ServerConn) transport.Handler {
			target, err := peersim.NewTarget(profile, conn, conn.Peer(), logger)
			if err != nil {
				log.Printf("[%s] Failed to create target: %v", conn.ConnID()[:8], err)
				conn.Close()
				return nil
			}
			live.add(conn, target)
			log.Printf("[%s] Controller connected from %s", conn.ConnID()[:8], conn.Peer())
			return target.Handle
		},
		OnDisconnect: func(conn *transport.ServerConn) {
			if target := live.remove(conn); target != nil {
				target.Close()
			}
			log.Printf("[%s] Controller disconnected", conn.ConnID()[:8])
		},
	})
	if err != nil {
		log.Fatalf("Server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := server.Start(ctx); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("Serving %q on %s", profile.Name, server.Addr())

	if trackInterval > 0 {
		go advanceTracks(ctx, live, trackInterval)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received signal: %v", sig)

	cancel()
	if err := server.Stop(); err != nil {
		log.Printf("Error stopping server: %v", err)
	}
	log.Println("Goodbye!")
}

// advanceTracks starts a new track on every live target at each tick.
func advanceTracks(ctx context.Context, live *targets, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	uid := uint64(1)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			uid++
			track := peersim.Track{UID: uid, Title: fmt.Sprintf("Track %d", uid)}
			live.each(func(t *peersim.Target) { t.ChangeTrack(track) })
		}
	}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("invalid log level: %s", s)
	}
	return level, nil
}
