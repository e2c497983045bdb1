package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"gtodo/internal/config"
	"gtodo/internal/exitcode"
	"gtodo/internal/service"
)

func init() {
	Register(&MoveCmd{})
}

// MoveCmd implements the move command.
type MoveCmd struct{}

func (c *MoveCmd) Name() string      { return "move" }
func (c *MoveCmd) Aliases() []string { return []string{"mv"} }
func (c *MoveCmd) Synopsis() string  { return "Move a task to another position" }
func (c *MoveCmd) Usage() string     { return "gtodo move <n> <position>" }
func (c *MoveCmd) NeedsStore() bool  { return true }

func (c *MoveCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *MoveCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) != 2 {
		fmt.Fprintln(errOut, "error: task number and position required")
		return exitcode.UserError
	}
	num, err := ParseTaskRef(args[0])
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
	pos, err := ParseTaskRef(args[1])
	if err != nil || pos < 1 {
		fmt.Fprintf(errOut, "error: invalid position: %s\n", args[1])
		return exitcode.UserError
	}

	s, err := openSession(ctx, cfg, svc)
	if err != nil {
		return reportError(errOut, err)
	}
	defer s.Close()

	targets, err := lookupTasks(s.order.Items(), []int{num})
	if err != nil {
		return reportError(errOut, err)
	}
	// Positions past the end clamp to the last slot.
	if err := s.order.Move(targets[0].ID, pos-1); err != nil {
		return reportError(errOut, err)
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
