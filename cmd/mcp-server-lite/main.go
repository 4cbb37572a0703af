// Package main provides the lightweight MCP entry point for the clinical assessment
// engine. It requires no external databases: results are cached in memory and stored
// definitions live in SQLite.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/clinical-assessment-engine/internal/config"
	"github.com/clinical-assessment-engine/internal/mcp"
)

func main() {
	// Load lightweight configuration
	cfg := config.LoadLiteConfig()

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// stdout carries the protocol, so the standard logger must stay on stderr.
	log.Printf("Starting clinical assessment MCP server (lite), data directory: %s", cfg.DataDir)

	server, err := mcp.NewLiteServer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}
	defer server.Close()

	if err := server.Start(ctx); err != nil {
		log.Fatalf("MCP server failed: %v", err)
	}

	log.Println("Clinical assessment MCP server (lite) stopped")
}
