package mcphost

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Calibrate implements [mcp.Host]. Every registered tool receives one probe
// call with empty arguments; probes run concurrently via [errgroup] and
// respect ctx.
//
// Probes against tools with required parameters will typically return an
// application-level error. The latency and error-rate samples still improve
// tier assignments, so those errors are recorded rather than propagated.
// Only context cancellation aborts calibration.
func (h *Host) Calibrate(ctx context.Context) error {
	h.mu.RLock()
	names := make([]string, 0, len(h.tools))
	for name := range h.tools {
		names = append(names, name)
	}
	h.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)

	for _, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			h.probe(gctx, name)
			return nil
		})
	}

	return g.Wait()
}

// probe sends a single empty-args call to the named tool and records the
// outcome directly, bypassing ExecuteTool to avoid double-recording.
func (h *Host) probe(ctx context.Context, name string) {
	h.mu.RLock()
	entry, ok := h.tools[name]
	h.mu.RUnlock()
	if !ok {
		return
	}

	start := time.Now()
	var isError bool

	if entry.builtinFn != nil {
		_, err := entry.builtinFn(ctx, "{}")
		isError = err != nil
	} else {
		result, err := h.callServerTool(ctx, entry, "{}")
		isError = err != nil || (result != nil && result.IsError)
	}

	h.record(name, time.Since(start).Milliseconds(), isError)
}
