package server

import "github.com/raysh454/hunter/internal/logging"

type Config struct {
	// ListenAddr is the HTTP listen address for the API server (the cycle
	// CLI runs in-process and does not require the network).
	ListenAddr string

	Logger logging.Logger
}
