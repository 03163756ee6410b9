// Command labsite serves a local practice target for hunter.
// Usage: go run ./cmd/labsite [addr] [weak|hardened]
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/raysh454/hunter/internal/labsite"
	"github.com/raysh454/hunter/internal/logging"
)

func main() {
	cfg := labsite.DefaultConfig()
	if len(os.Args) > 1 {
		cfg.Addr = os.Args[1]
	}
	if len(os.Args) > 2 {
		cfg.Posture = labsite.Posture(os.Args[2])
	}

	site, err := labsite.New(cfg, logging.NewStdoutLogger("labsite"))
	if err != nil {
		log.Fatalf("labsite: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := site.Start(ctx); err != nil {
		log.Fatalf("labsite: %v", err)
	}
}
