package worker

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

var workerDebugEnabled = strings.EqualFold(os.Getenv("AUDIOFP_WORKER_DEBUG"), "1")

func debugLog(logger *slog.Logger, msg string, args ...any) {
	if !workerDebugEnabled || logger == nil {
		return
	}
	logger.Log(context.Background(), slog.LevelDebug, msg, args...)
}
