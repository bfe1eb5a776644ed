// Package location parses a vector backing-store location string such as
// "s3://s3.amazonaws.com/bucket/prefix" or a bare local path into the scheme-specific config
// the matching backend package understands.
package location

import (
	"strings"

	"github.com/coldeck/mrcore/internal/backend/azure"
	"github.com/coldeck/mrcore/internal/backend/gs"
	"github.com/coldeck/mrcore/internal/backend/local"
	"github.com/coldeck/mrcore/internal/backend/s3"
	"github.com/coldeck/mrcore/internal/errors"
)

// Location specifies where a vector's chunks or object-store payload lives.
type Location struct {
	Scheme string
	Config interface{}
}

type parser struct {
	scheme string
	parse  func(string) (interface{}, error)
}

// wrap adapts a backend's concretely typed ParseConfig(s) (*C, error) to
// the interface{} signature Location needs, without forcing every backend
// package to know about this one.
func wrap[C any](f func(string) (*C, error)) func(string) (interface{}, error) {
	return func(s string) (interface{}, error) {
		cfg, err := f(s)
		if err != nil {
			return nil, err
		}
		return cfg, nil
	}
}

// parsers holds one entry per supported scheme. local is not listed here;
// it's the fallback used when s names neither a known scheme nor an
// ambiguous one.
var parsers = []parser{
	{"s3", wrap(s3.ParseConfig)},
	{"azure", wrap(azure.ParseConfig)},
	{"gs", wrap(gs.ParseConfig)},
}

func isPath(s string) bool {
	if strings.HasPrefix(s, "../") || strings.HasPrefix(s, `..\`) {
		return true
	}

	if strings.HasPrefix(s, "/") || strings.HasPrefix(s, `\`) {
		return true
	}

	if len(s) < 3 {
		return false
	}

	// check for Windows drive paths, e.g. C:\dir or C:/dir
	drive := s[0]
	if !(drive >= 'a' && drive <= 'z') && !(drive >= 'A' && drive <= 'Z') {
		return false
	}

	return s[1] == ':' && (s[2] == '\\' || s[2] == '/')
}

// Parse extracts location information from s. If s starts with a known
// scheme followed by a colon, that scheme's config parser runs. Otherwise
// s is treated as a local filesystem path.
func Parse(s string) (Location, error) {
	scheme := extractScheme(s)

	for _, p := range parsers {
		if p.scheme != scheme {
			continue
		}

		cfg, err := p.parse(s)
		if err != nil {
			return Location{}, err
		}

		return Location{Scheme: scheme, Config: cfg}, nil
	}

	// if s is not a path but contains a colon, the scheme is unrecognized
	if !isPath(s) && strings.ContainsRune(s, ':') {
		return Location{}, errors.New("invalid backend\nIf the location is a local directory, add a `local:` prefix")
	}

	cfg, err := local.ParseConfig("local:" + s)
	if err != nil {
		return Location{}, err
	}

	return Location{Scheme: "local", Config: cfg}, nil
}

func extractScheme(s string) string {
	scheme, _, _ := strings.Cut(s, ":")
	return scheme
}
