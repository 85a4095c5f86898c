package cache

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.uber.org/zap"
)

// sweeper runs a purge function on a fixed interval until halted
type sweeper struct {
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// startSweeper returns nil when every is not positive
func startSweeper(every time.Duration, purge func(context.Context) error, logger *zap.Logger) *sweeper {
	if every <= 0 {
		return nil
	}

	s := &sweeper{
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := purge(context.Background()); err != nil {
					logger.Error("Failed to purge expired verdicts", zap.Error(err))
				}
			case <-s.stopCh:
				return
			}
		}
	}()
	return s
}

// halt stops the loop and waits for an in-flight purge to return
func (s *sweeper) halt() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.done
}

func logPurged(logger *zap.Logger, result sql.Result) {
	n, err := result.RowsAffected()
	if err != nil {
		logger.Warn("Failed to count purged verdicts", zap.Error(err))
		return
	}
	logger.Debug("Purged expired verdicts", zap.Int64("count", n))
}
