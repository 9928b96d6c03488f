// Package version provides build version information and runtime metadata.
package version

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"
)

var (
	// These are set via ldflags at build time
	Version = ""
	Commit  = ""
	Date    = ""

	mu          sync.Mutex
	initialized bool

	execCommand = exec.CommandContext
)

const gitTimeout = 2 * time.Second

func ensureInitialized() {
	mu.Lock()
	defer mu.Unlock()
	if initialized {
		return
	}
	initialized = true

	if Date == "" {
		Date = time.Now().UTC().Format("2006-01-02")
	}
	if Commit == "" {
		Commit = gitOutput("unknown", "describe", "--always", "--dirty")
	}
	if Version == "" {
		Version = strings.TrimPrefix(gitOutput("", "describe", "--tags", "--abbrev=0"), "v")
		if Version == "" {
			Version = "dev"
		}
	}
}

func gitOutput(fallback string, args ...string) string {
	ctx, cancel := context.WithTimeout(context.Background(), gitTimeout)
	defer cancel()

	cmd := execCommand(ctx, "git", args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return fallback
	}
	if s := strings.TrimSpace(out.String()); s != "" {
		return s
	}
	return fallback
}

// Reset clears values resolved at runtime so the next call resolves them again.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	Version, Commit, Date = "", "", ""
	initialized = false
}

// GetVersion returns the release version, "dev" outside a tagged checkout.
func GetVersion() string {
	ensureInitialized()
	return Version
}

// GetCommit returns the git commit the binary was built from.
func GetCommit() string {
	ensureInitialized()
	return Commit
}

// GetDate returns the build date.
func GetDate() string {
	ensureInitialized()
	return Date
}

// Info is the one-line version banner printed by "cfud version".
func Info() string {
	ensureInitialized()
	return fmt.Sprintf("cfud %s (commit: %s, built: %s, %s/%s)",
		Version, Commit, Date, runtime.GOOS, runtime.GOARCH)
}
