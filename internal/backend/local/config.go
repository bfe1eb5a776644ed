package local

import (
	"strings"

	"github.com/coldeck/mrcore/internal/errors"
	"github.com/coldeck/mrcore/internal/options"
)

// Config holds all information needed to open a local directory as a
// chunk/vector backing store.
type Config struct {
	Path string

	Connections uint `option:"connections" help:"set a limit for the number of concurrent operations (default: 2)"`
}

// NewConfig returns a new config with default options applied.
func NewConfig() Config {
	return Config{
		Connections: 2,
	}
}

func init() {
	options.Register("local", Config{})
}

// ParseConfig parses a local backend config of the form "local:/some/path".
func ParseConfig(s string) (*Config, error) {
	if !strings.HasPrefix(s, "local:") {
		return nil, errors.New(`invalid format, prefix "local" not found`)
	}

	cfg := NewConfig()
	cfg.Path = s[len("local:"):]
	return &cfg, nil
}
