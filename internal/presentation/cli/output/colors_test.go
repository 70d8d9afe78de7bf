package output

import (
	"os"
	"testing"
)

func TestDetectColorSupport(t *testing.T) {
	tests := []struct {
		name       string
		noColor    bool
		forceColor bool
		want       bool
	}{
		{name: "NO_COLOR set", noColor: true, want: false},
		{name: "FORCE_COLOR set", forceColor: true, want: true},
		{name: "NO_COLOR wins over FORCE_COLOR", noColor: true, forceColor: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NO_COLOR", "")
			t.Setenv("FORCE_COLOR", "")
			if !tt.noColor {
				os.Unsetenv("NO_COLOR")
			}
			if !tt.forceColor {
				os.Unsetenv("FORCE_COLOR")
			}

			if got := detectColorSupport(); got != tt.want {
				t.Errorf("detectColorSupport() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectColorSupport_DumbTerminal(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("FORCE_COLOR", "")
	os.Unsetenv("NO_COLOR")
	os.Unsetenv("FORCE_COLOR")
	t.Setenv("TERM", "dumb")

	if detectColorSupport() {
		t.Error("expected colors disabled for TERM=dumb")
	}
}
