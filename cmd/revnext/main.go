package main

import (
	"context"
	"log/slog"
	"time"

	"revnext-reports/cmd/revnext/commands"
	"revnext-reports/internal/components/serviceutil"
	"revnext-reports/internal/components/telemetry"
)

func main() {
	otel, err := telemetry.SetupFromEnv(context.Background(), "revnext")
	if err != nil {
		slog.Warn("failed to setup telemetry", "err", err)
	}

	runErr := commands.ExecuteContext(serviceutil.SignalContext())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = otel.Shutdown(ctx)
	cancel()
	if err != nil {
		slog.Warn("failed to flush telemetry", "err", err)
	}

	if runErr != nil {
		serviceutil.Fatal("revnext failed", runErr)
	}
}
