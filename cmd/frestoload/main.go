package main

import (
	"context"
	"log/slog"
	"os"

	"frestoload/cmd/frestoload/commands"
	"frestoload/lib/telemetry"
)

func main() {
	ctx := context.Background()

	telemetry.InitSlog(true)
	tel, err := telemetry.SetupFromEnv(ctx, "frestoload")
	if err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to set up telemetry", "err", err)
	}
	defer tel.Shutdown(ctx)
	telemetry.InstrumentPerfStats(ctx)

	commands.ExecuteContext(ctx)
}
