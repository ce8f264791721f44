package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Sagnify/peergo/internal/config"
	"github.com/Sagnify/peergo/internal/eventbus"
	"github.com/Sagnify/peergo/internal/logging"
	"github.com/Sagnify/peergo/pkg/signaling"
	"github.com/Sagnify/peergo/pkg/transport/rest"
	"github.com/Sagnify/peergo/pkg/transport/ws"
	"github.com/Sagnify/peergo/pkg/webrtc"
	"github.com/go-chi/chi/v5"
	pion "github.com/pion/webrtc/v4"
)

var configPath = flag.String("config", "", "path to config file (json or yaml)")

// messageLog is an in-memory stand-in for an application database. Real
// deployments would persist messages from the OnMessage hook instead.
type messageLog struct {
	mu      sync.Mutex
	entries []chatEntry
}

type chatEntry struct {
	Room     string    `json:"room"`
	SenderID string    `json:"sender_id"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

func (l *messageLog) save(room, senderID, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, chatEntry{
		Room:     room,
		SenderID: senderID,
		Message:  message,
		At:       time.Now(),
	})
}

func main() {
	flag.Parse()

	cfg, err := config.Load(config.LoadOptions{Path: *configPath})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := eventbus.NewInMemoryBus(256)
	bus.Start(ctx)
	defer bus.Stop()

	bus.SubscribeAll(func(event *eventbus.Event) {
		logger.Debug("event", "type", event.Type, "source", event.Source, "id", event.ID)
	})

	opts := signaling.ManagerOptions{
		Logger:           logger,
		EventBus:         bus,
		TransportFactory: webrtc.NewFactory(transportOptions(cfg, logger)),
		RequestTimeout:   cfg.Engine.RequestTimeout,
		QueueSize:        cfg.Engine.QueueSize,
	}

	manager := signaling.NewManager(opts)

	store := &messageLog{}
	manager.Handlers().OnMessage(func(room, senderID, message string) {
		logger.Info("message received", "room", room, "sender_id", senderID, "size", len(message))
		store.save(room, senderID, message)
	})
	manager.Handlers().OnPeerJoined(func(room, peerID string, info signaling.PeerInfo) {
		logger.Info("peer joined", "room", room, "peer_id", peerID, "joined_at", info.JoinedAt)
	})
	manager.Handlers().OnPeerLeft(func(room, peerID string, info signaling.PeerInfo) {
		logger.Info("peer left", "room", room, "peer_id", peerID)
	})

	if err := manager.Start(ctx); err != nil {
		logger.Error("failed to start signaling engine", "error", err)
		os.Exit(1)
	}
	defer manager.Stop()

	restServer := rest.NewServer(manager, logger, rest.ServerOptions{
		StaticDir: cfg.Server.StaticDir,
	})
	wsServer := ws.NewServer(manager, logger, ws.DefaultServerOptions())

	r := chi.NewRouter()
	r.Get("/ws", wsServer.Handle)
	r.Mount("/", restServer.Routes())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("signaling server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stop:
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
}

func transportOptions(cfg *config.Config, logger *logging.Logger) webrtc.PeerTransportOptions {
	opts := webrtc.PeerTransportOptions{Logger: logger}

	for _, server := range cfg.WebRTC.ICEServers {
		ice := pion.ICEServer{
			URLs:     server.URLs,
			Username: server.Username,
		}
		if server.Credential != "" {
			ice.Credential = server.Credential
		}
		opts.ICEServers = append(opts.ICEServers, ice)
	}

	return opts
}
