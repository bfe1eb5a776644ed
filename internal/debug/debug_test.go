package debug_test

import (
	"testing"

	"github.com/coldeck/mrcore/internal/debug"
)

// Log must never panic, enabled or not -- the scheduler calls it from many
// goroutines while a task is fanning out.
func TestLogDoesNotPanic(t *testing.T) {
	debug.Log("chunk %d skipped, not homed here", 7)
	debug.Log("static message")
}
