package local

import "testing"

func TestParseConfig(t *testing.T) {
	var tests = []struct {
		s    string
		path string
	}{
		{"local:/some/path", "/some/path"},
		{"local:dir1/dir2", "dir1/dir2"},
		{"local:../dir1/dir2", "../dir1/dir2"},
	}

	for _, test := range tests {
		t.Run(test.s, func(t *testing.T) {
			cfg, err := ParseConfig(test.s)
			if err != nil {
				t.Fatal(err)
			}

			if cfg.Path != test.path {
				t.Fatalf("wrong path, want %q, got %q", test.path, cfg.Path)
			}

			if cfg.Connections != 2 {
				t.Fatalf("wrong default connection count, want 2, got %d", cfg.Connections)
			}
		})
	}
}

func TestParseConfigInvalid(t *testing.T) {
	_, err := ParseConfig("s3:/some/path")
	if err == nil {
		t.Fatal("expected error for non-local prefix, got nil")
	}
}
