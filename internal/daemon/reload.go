package daemon

import (
	"context"
	"os"

	"github.com/JFJun/kernel/internal/config"
	"go.uber.org/zap"
)

// reloadOnSignal re-reads the session config each time sigs fires, until ctx
// is done. A config that fails to load or validate leaves the current one in
// place. done is closed on return.
func reloadOnSignal(ctx context.Context, src *config.Source, sigs <-chan os.Signal, logger *zap.Logger, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			if err := src.Reload(); err != nil {
				logger.Error("config reload failed", zap.Stringer("signal", sig), zap.Error(err))
				continue
			}
			cfg := src.Current()
			logger.Info("config reloaded",
				zap.Stringer("signal", sig),
				zap.Bool("channels_enabled", cfg.Features.ChannelsEnabled),
				zap.Bool("retry_login", cfg.Features.RetryLogin),
				zap.Bool("presence_disabled", cfg.Features.PresenceDisabled))
		}
	}
}
