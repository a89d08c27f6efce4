// Package main runs the murmur protocol core with a local diagnostics
// API: an encrypted message store, the dispatch/receive pipeline and a
// small HTTP surface for status checks.
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/MurmurLink/murmur-core/pkg/storage"
)

func main() {
	dataDir := flag.String("data", "./murmur-data", "Data directory for the encrypted store")
	apiPort := flag.Int("api-port", 8080, "Diagnostics API port")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	fmt.Println("🚀 Murmur Protocol Node")
	fmt.Println("=======================")
	fmt.Println()

	logger, err := buildLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	password := os.Getenv("MURMUR_STORE_PASSWORD")
	if password == "" {
		logger.Fatal("MURMUR_STORE_PASSWORD is not set")
	}

	if err := os.MkdirAll(*dataDir, 0o700); err != nil {
		logger.Fatal("failed to create data directory", zap.Error(err))
	}
	dbPath := filepath.Join(*dataDir, "murmur.db")

	fmt.Printf("📦 Opening encrypted store at %s...\n", dbPath)
	store, err := storage.Open(dbPath, password)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer store.Close()

	if store.UserPublicKey() == "" {
		fmt.Println("🔑 No identity found, generating one...")
		seed := make([]byte, 32)
		if _, err := rand.Read(seed); err != nil {
			logger.Fatal("failed to generate seed", zap.Error(err))
		}
		if err := store.SetIdentity(seed); err != nil {
			logger.Fatal("failed to store identity", zap.Error(err))
		}
	}

	fmt.Println()
	fmt.Println("Node Information:")
	fmt.Printf("  Account ID: %s\n", store.UserPublicKey())
	fmt.Printf("  Store:      %s\n", dbPath)
	fmt.Println()

	fmt.Printf("🌐 Starting diagnostics API on port %d...\n", *apiPort)
	srv := newAPIServer(store, logger, *apiPort)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("API server failed", zap.Error(err))
		}
	}()
	fmt.Println("✅ Node is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println()
	fmt.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("API shutdown failed", zap.Error(err))
	}
	fmt.Println("👋 Goodbye")
}

func buildLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
