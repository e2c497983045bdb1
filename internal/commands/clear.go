package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"gtodo/internal/config"
	"gtodo/internal/exitcode"
	"gtodo/internal/service"
	"gtodo/internal/tasks"
)

func init() {
	Register(&ClearCmd{})
}

// ClearCmd implements the clear command.
type ClearCmd struct{}

func (c *ClearCmd) Name() string      { return "clear" }
func (c *ClearCmd) Aliases() []string { return []string{"clear-completed"} }
func (c *ClearCmd) Synopsis() string  { return "Delete all completed tasks" }
func (c *ClearCmd) Usage() string     { return "gtodo clear" }
func (c *ClearCmd) NeedsStore() bool  { return true }

func (c *ClearCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *ClearCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	s, err := openSession(ctx, cfg, svc)
	if err != nil {
		return reportError(errOut, err)
	}
	defer s.Close()

	n, err := s.order.ClearCompleted(ctx)
	if err != nil {
		var partial *tasks.PartialError
		if errors.As(err, &partial) {
			fmt.Fprintf(errOut, "error: backend error: deleted %d before failure: %v\n", partial.Deleted, partial.Err)
			return exitcode.BackendError
		}
		return reportError(errOut, err)
	}

	if !cfg.Quiet {
		fmt.Fprintf(out, "deleted %d\n", n)
	}
	return exitcode.Success
}
