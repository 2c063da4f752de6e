package dispatch

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Opener hands an invocation URL to the platform. Implementations must
// report an error when the platform refuses the URL so dispatch can
// advance to the next candidate.
type Opener interface {
	OpenURL(ctx context.Context, rawURL string) error
}

// ExecOpener opens URLs through the host launcher (open on macOS,
// xdg-open on Linux, start on Windows). The launcher resolves whether
// any application claims the URL scheme.
type ExecOpener struct{}

func (ExecOpener) OpenURL(ctx context.Context, rawURL string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", rawURL)
	case "windows":
		// start treats its first quoted argument as a window title
		cmd = exec.CommandContext(ctx, "cmd", "/c", "start", "", rawURL)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", rawURL)
	}

	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("launcher rejected url: %w (%s)", err, msg)
		}
		return fmt.Errorf("launcher rejected url: %w", err)
	}
	return nil
}
