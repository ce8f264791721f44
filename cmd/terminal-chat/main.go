package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sagnify/peergo/internal/config"
	"github.com/Sagnify/peergo/internal/logging"
	"github.com/Sagnify/peergo/pkg/signaling"
	"github.com/Sagnify/peergo/pkg/transport/rest"
	"github.com/go-chi/chi/v5"
)

const defaultRoom = "terminal-chat-room"

var (
	addr      = flag.String("addr", "localhost:5000", "http service address")
	staticDir = flag.String("static", "", "directory with the browser client")
)

// Operator chat: browser peers join over the HTTP signaling endpoints while
// messages typed on this terminal are broadcast into the room.
func main() {
	flag.Parse()

	cfg := config.Default()
	logger := logging.New(logging.Config{Level: "warn", Format: "text"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := signaling.NewManager(signaling.DefaultManagerOptions(logger))

	manager.Handlers().OnMessage(func(room, senderID, message string) {
		fmt.Printf("\nFrontend (%s in %s) > %s\n", senderID, room, message)
		fmt.Print("Backend > ")
	})

	if err := manager.Start(ctx); err != nil {
		logger.Error("failed to start signaling engine", "error", err)
		os.Exit(1)
	}
	defer manager.Stop()

	broadcaster := signaling.NewBroadcaster(manager)

	go inputLoop(broadcaster)

	restServer := rest.NewServer(manager, logger, rest.ServerOptions{StaticDir: *staticDir})

	r := chi.NewRouter()
	r.Mount("/", restServer.Routes())

	server := &http.Server{
		Addr:         *addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		fmt.Println("Terminal chat is ready.")
		fmt.Printf("Messages you type here are sent to room %q.\n", defaultRoom)
		fmt.Printf("Signaling on http://%s\n", *addr)
		fmt.Println("--------------------------------------------------")
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

	server.Close()
}

// inputLoop reads operator messages from stdin on its own goroutine; the
// broadcaster hands them to the engine without blocking this loop.
func inputLoop(broadcaster *signaling.Broadcaster) {
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Print("Backend > ")
	for scanner.Scan() {
		message := scanner.Text()
		if message != "" {
			broadcaster.Broadcast(defaultRoom, message)
		}
		fmt.Print("Backend > ")
	}
}
