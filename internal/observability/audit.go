package observability

import (
	"context"
	"log/slog"
)

// Audit logs a session-affecting event at info level.
func Audit(ctx context.Context, logger *slog.Logger, event string, attrs ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	base := []any{"event", event}
	base = append(base, attrs...)
	logger.InfoContext(ctx, "audit", base...)
}
