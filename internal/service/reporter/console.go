package reporter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/oshokin/acm-simulator/internal/logger"
)

// Console keys.
const (
	KeyAlarm     = "a"
	KeyHeartbeat = "t"
	KeyQuit      = "q"
)

const consoleHelp = "Press a to send an alarm, t to toggle heartbeats, q to quit"

// Console reads one command per line from in until q, end of input or ctx
// cancellation. q calls quit.
func (r *Reporter) Console(ctx context.Context, in io.Reader, out io.Writer, quit context.CancelFunc) error {
	fmt.Fprintln(out, consoleHelp)

	scanner := bufio.NewScanner(in)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		switch strings.TrimSpace(scanner.Text()) {
		case KeyAlarm:
			if _, err := r.SendAlarm(ctx); err != nil {
				fmt.Fprintf(out, "Alarm failed: %v\n", err)
			}
		case KeyHeartbeat:
			if r.ToggleHeartbeat() {
				fmt.Fprintln(out, "Heartbeat on")
			} else {
				fmt.Fprintln(out, "Heartbeat off")
			}
		case KeyQuit:
			logger.Info(ctx, "Quit requested")
			quit()

			return nil
		case "":
		default:
			fmt.Fprintln(out, "Unknown key")
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read console: %w", err)
	}

	return nil
}
