package server

import (
	"io"
	"log"
	"os"
)

// Package-level loggers. Debug logging is off until EnableDebugLogging is
// called; tests point both at io.Discard.
var (
	errorLog = log.New(os.Stderr, "ERROR: ", log.LstdFlags|log.Lmicroseconds)
	debugLog = log.New(io.Discard, "DEBUG: ", log.LstdFlags|log.Lmicroseconds)
)

// EnableDebugLogging routes debug output to stderr.
func EnableDebugLogging() {
	debugLog.SetOutput(os.Stderr)
}
