package version

import (
	"testing"

	"github.com/fatih/color"
)

func TestColorizeWithoutColor(t *testing.T) {
	saved := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = saved })

	tests := []struct{ in, want string }{
		{"1.2.3", "1.2.3"},
		{"0.3.0-dev", "0.3.0-dev"},
		{"1.2.3+build.7", "1.2.3+build.7"},
		{"dev", "dev"},
	}
	for _, tt := range tests {
		if got := Colorize(tt.in); got != tt.want {
			t.Errorf("Colorize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestColorizeAddsEscapes(t *testing.T) {
	saved := color.NoColor
	color.NoColor = false
	t.Cleanup(func() { color.NoColor = saved })

	if got := Colorize("1.2.3"); got == "1.2.3" {
		t.Fatal("expected ANSI escapes")
	}
}

func TestVersionCanBeOverridden(t *testing.T) {
	orig := Version
	t.Cleanup(func() { Version = orig })

	Version = "9.9.9"
	if Version != "9.9.9" {
		t.Fatalf("Version = %q", Version)
	}
	if Version == "" || Base == "" {
		t.Fatal("empty default version")
	}
}
