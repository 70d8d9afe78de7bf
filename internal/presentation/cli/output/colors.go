package output

import (
	"os"
	"sync"
)

var (
	colorOnce    sync.Once
	colorEnabled bool
)

// IsColorSupported reports whether stdout should receive ANSI colors.
// NO_COLOR disables colors and FORCE_COLOR enables them regardless of the
// terminal. The result is computed once per process.
func IsColorSupported() bool {
	colorOnce.Do(func() {
		colorEnabled = detectColorSupport()
	})
	return colorEnabled
}

func detectColorSupport() bool {
	// https://no-color.org/
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return false
	}
	if _, exists := os.LookupEnv("FORCE_COLOR"); exists {
		return true
	}

	stat, err := os.Stdout.Stat()
	if err != nil || stat.Mode()&os.ModeCharDevice == 0 {
		return false
	}

	term := os.Getenv("TERM")
	return term != "" && term != "dumb"
}
