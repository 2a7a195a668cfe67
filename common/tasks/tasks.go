package tasks

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Group is a collection of goroutines working on subtasks,
// all of which are expected to run until shutdown.
// If any of the subtasks fail critically, the HandleCrit callback is invoked.
type Group struct {
	errGroup   errgroup.Group
	HandleCrit func(err error)
}

func (t *Group) Go(fn func() error) {
	t.errGroup.Go(func() error {
		defer func() {
			if err := recover(); err != nil {
				t.HandleCrit(fmt.Errorf("panic: %v", err))
			}
		}()
		if err := fn(); err != nil {
			t.HandleCrit(err)
			return err
		}
		return nil
	})
}

func (t *Group) Wait() error {
	return t.errGroup.Wait()
}
