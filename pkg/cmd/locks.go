package cmd

import (
	"log/slog"

	"github.com/caseway/caseway/pkg/locks"
	"github.com/caseway/caseway/pkg/locks/redislock"
)

// NewLocker selects the per-instance lock provider. A Redis URL yields
// the distributed locker for multi-node deployments; without one the
// in-process locker is used.
func NewLocker(logger *slog.Logger, redisURL string) (locks.Locker, error) {
	if redisURL == "" {
		logger.Debug("Using in-process instance locks")

		return locks.NewMemoryLocker(), nil
	}

	locker, err := redislock.NewLocker(redisURL)
	if err != nil {
		return nil, err
	}

	logger.Info("Using Redis instance locks")

	return locker, nil
}
