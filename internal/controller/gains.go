package controller

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// PushMotorGains sends gains once, retrying every interval until the
// client accepts them or ctx is done.
func PushMotorGains(ctx context.Context, client GainsClient, gains MotorGains, interval time.Duration, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	for {
		err := client.SetMotorGains(ctx, gains)
		if err == nil {
			logger.Info("motor gains set", zap.String("group", gains.Group))
			return nil
		}
		logger.Info("waiting for motor gains service", zap.String("group", gains.Group), zap.Error(err))

		select {
		case <-ctx.Done():
			logger.Error("interrupted while waiting for motor gains service")
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
