package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/seilige/messenger/pkg/server"
)

var (
	// Version is set at build time via ldflags
	Version = "dev"
)

func main() {
	// Configure logger with microsecond precision
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	// Command line flags
	configPath := flag.String("config", "~/.messenger/config.toml", "Path to config file")
	port := flag.Int("port", 0, "TCP port to listen on (overrides config)")
	dataDir := flag.String("data-dir", "", "Path to data directory (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	version := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *version {
		fmt.Printf("Messenger Server %s\n", Version)
		os.Exit(0)
	}

	// Load configuration (creates default if not found)
	config, err := server.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Command-line flags override config file
	if *port != 0 {
		config.Server.TCPPort = *port
	}
	if *dataDir != "" {
		config.Server.DataDir = *dataDir
	}

	finalDataDir, err := config.GetDataDir()
	if err != nil {
		log.Fatalf("Failed to resolve data directory: %v", err)
	}
	if err := os.MkdirAll(finalDataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	serverConfig := config.ToServerConfig()

	srv, err := server.NewServer(finalDataDir, serverConfig)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	srv.SetMetrics(server.NewMetrics())

	if *debug {
		server.EnableDebugLogging()
		log.Printf("Debug logging enabled")
	}

	resolvedConfigPath := *configPath
	if strings.HasPrefix(resolvedConfigPath, "~/") {
		if homeDir, err := os.UserHomeDir(); err == nil {
			resolvedConfigPath = filepath.Join(homeDir, resolvedConfigPath[2:])
		}
	}
	log.Printf("Config: %s", resolvedConfigPath)
	log.Printf("Data directory: %s", finalDataDir)

	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	log.Printf("Messenger server %s started successfully", Version)
	log.Printf("Available connection methods:")
	log.Printf("  - Binary Protocol (TCP): %s:%d", serverConfig.TCPHost, serverConfig.TCPPort)
	if serverConfig.HTTPAddr != "" {
		log.Printf("  - WebSocket: %s (ws://server%s/ws)", serverConfig.HTTPAddr, serverConfig.HTTPAddr)
		log.Printf("  - Metrics: http://server%s/metrics", serverConfig.HTTPAddr)
	}

	// Start pprof HTTP server for profiling
	go func() {
		log.Println("Starting pprof server on http://localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			log.Printf("pprof server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down server...")
	if err := srv.Stop(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	log.Println("Server stopped")
}
