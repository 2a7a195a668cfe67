package withdraw

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/lordbasilaiassistant-sudo/thryx-chain/common/tasks"
)

// Scheduler periodically drains matured delayed withdrawals through the
// processor. It holds no state of its own; maturity comes from the stored
// records, so a restarted scheduler picks up exactly where the old one
// stopped. The interval only tunes release latency.
type Scheduler struct {
	log       log.Logger
	processor *Processor
	interval  time.Duration

	resourceCtx    context.Context
	resourceCancel context.CancelFunc
	tasks          tasks.Group
}

func NewScheduler(logger log.Logger, processor *Processor, interval time.Duration, shutdown context.CancelCauseFunc) *Scheduler {
	resCtx, resCancel := context.WithCancel(context.Background())
	return &Scheduler{
		log:            logger.New("module", "scheduler"),
		processor:      processor,
		interval:       interval,
		resourceCtx:    resCtx,
		resourceCancel: resCancel,
		tasks: tasks.Group{HandleCrit: func(err error) {
			shutdown(fmt.Errorf("critical error in delay scheduler: %w", err))
		}},
	}
}

func (s *Scheduler) Start() error {
	s.log.Info("starting delay scheduler...", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	s.tasks.Go(func() error {
		defer ticker.Stop()
		for {
			select {
			case <-s.resourceCtx.Done():
				s.log.Info("delay scheduler stopping")
				return nil
			case <-ticker.C:
				if err := s.processor.ReleaseMatured(s.resourceCtx, time.Now()); err != nil {
					s.log.Error("release sweep failed, retrying on next tick", "err", err)
				}
			}
		}
	})
	return nil
}

func (s *Scheduler) Close() error {
	s.resourceCancel()
	return s.tasks.Wait()
}
