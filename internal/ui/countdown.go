package ui

import (
	"context"
	"fmt"
	"io"
	"time"
)

// tick is shortened by tests.
var tick = time.Second

// Countdown counts down from seconds to 1 on a single rewritten terminal
// line, one tick per second. It returns early with the context's error when
// the run is interrupted.
func Countdown(ctx context.Context, w io.Writer, seconds int) error {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for i := seconds; i > 0; i-- {
		fmt.Fprintf(w, "%s \r", StyleCountdown.Render(fmt.Sprintf("%d", i)))
		select {
		case <-ctx.Done():
			fmt.Fprintln(w)
			return ctx.Err()
		case <-ticker.C:
		}
	}
	fmt.Fprintln(w)
	return nil
}
