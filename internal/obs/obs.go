// Package obs centralises the zerolog setup so every package in the
// module logs through the same sink and field conventions instead of
// each constructing its own logger.
package obs

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
)

// SetOutput redirects the package logger, e.g. to a test buffer or to a
// JSON sink in production. Safe for concurrent use.
func SetOutput(w io.Writer, debug bool) {
	mu.Lock()
	defer mu.Unlock()
	lvl := zerolog.InfoLevel
	if debug {
		lvl = zerolog.TraceLevel
	}
	log = zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// For returns a component-scoped logger, e.g. obs.For("cache").
func For(component string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log.With().Str("component", component).Logger()
}
