// Package lifecycle holds timing constants shared by start and stop hooks.
package lifecycle

import "time"

const (
	// DefaultTimeout bounds connection checks on start and graceful shutdown on stop.
	DefaultTimeout = 10 * time.Second

	// DrainTimeout bounds how long background loops get to finish in-flight work.
	DrainTimeout = 5 * time.Second
)
