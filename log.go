package gcix

import (
	"io"
	"log/slog"
)

// discardLogger is the default, matching the pack's own convention of
// defaulting to a discarding handler rather than nil (hiveexplorer/logger).
var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// SetLogger installs l as the collector's structured trace output. Passing
// nil restores the discarding default. Debug-level records are emitted for
// block requests, chunk acquisition/release and large-object allocation;
// Info-level for completed collection cycles.
func (c *Collector) SetLogger(l *slog.Logger) {
	if l == nil {
		l = discardLogger
	}
	c.log = l
}
