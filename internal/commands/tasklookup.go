package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gtodo/internal/config"
	"gtodo/internal/exitcode"
	"gtodo/internal/order"
	"gtodo/internal/prefs"
	"gtodo/internal/service"
	"gtodo/internal/tasks"
)

// errOutOfRange is wrapped by lookups for numbers outside the list.
var errOutOfRange = errors.New("task number out of range")

// session is the facade plus the ordered list built on it for one command run.
type session struct {
	facade *tasks.Facade
	order  *order.List
	prefs  *prefs.File
}

// openSession wires the facade and ordered list over svc and loads the
// persisted order from the prefs file.
func openSession(ctx context.Context, cfg *config.Config, svc service.Service) (*session, error) {
	logger := cfg.Logger()
	facade := tasks.New(svc, logger)
	store := prefs.NewFile(cfg.PrefsPath())
	list := order.New(facade, store, order.Options{
		Debounce: cfg.OrderDebounce(),
		Logger:   logger,
	})
	if err := list.Start(ctx); err != nil {
		return nil, err
	}
	return &session{facade: facade, order: list, prefs: store}, nil
}

// Close flushes pending order writes.
func (s *session) Close() {
	s.order.Close()
}

// lookupTasks maps 1-based numbers to tasks in the ordered list. All numbers
// are resolved against the same snapshot, so later mutations in the same
// command do not shift earlier references.
func lookupTasks(items []service.Task, nums []int) ([]service.Task, error) {
	out := make([]service.Task, 0, len(nums))
	for _, n := range nums {
		if n < 1 || n > len(items) {
			return nil, fmt.Errorf("%w: %d", errOutOfRange, n)
		}
		out = append(out, items[n-1])
	}
	return out, nil
}

// reportError prints err to errOut and returns the matching exit code.
func reportError(errOut io.Writer, err error) int {
	switch {
	case errors.Is(err, tasks.ErrEmptyText),
		errors.Is(err, errOutOfRange),
		errors.Is(err, ErrTaskRefRequired),
		errors.Is(err, order.ErrNotPermutation),
		errors.Is(err, service.ErrNotFound):
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	case errors.Is(err, service.ErrUnauthorized):
		fmt.Fprintf(errOut, "error: auth error: %v\n", err)
		return exitcode.AuthError
	default:
		fmt.Fprintf(errOut, "error: backend error: %v\n", err)
		return exitcode.BackendError
	}
}
