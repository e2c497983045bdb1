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
	Register(&DoneCmd{})
	Register(&UndoneCmd{})
	Register(&ToggleCmd{})
}

// markMode selects how done, undone and toggle change a task.
type markMode int

const (
	markDone markMode = iota
	markUndone
	markToggle
)

// DoneCmd implements the done command.
type DoneCmd struct{}

func (c *DoneCmd) Name() string      { return "done" }
func (c *DoneCmd) Aliases() []string { return []string{"complete"} }
func (c *DoneCmd) Synopsis() string  { return "Mark tasks completed" }
func (c *DoneCmd) Usage() string     { return "gtodo done <n...>" }
func (c *DoneCmd) NeedsStore() bool  { return true }

func (c *DoneCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *DoneCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	return runMark(ctx, cfg, svc, markDone, args, out, errOut)
}

// UndoneCmd implements the undone command.
type UndoneCmd struct{}

func (c *UndoneCmd) Name() string      { return "undone" }
func (c *UndoneCmd) Aliases() []string { return []string{"reopen"} }
func (c *UndoneCmd) Synopsis() string  { return "Mark tasks active again" }
func (c *UndoneCmd) Usage() string     { return "gtodo undone <n...>" }
func (c *UndoneCmd) NeedsStore() bool  { return true }

func (c *UndoneCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *UndoneCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	return runMark(ctx, cfg, svc, markUndone, args, out, errOut)
}

// ToggleCmd implements the toggle command.
type ToggleCmd struct{}

func (c *ToggleCmd) Name() string      { return "toggle" }
func (c *ToggleCmd) Aliases() []string { return nil }
func (c *ToggleCmd) Synopsis() string  { return "Flip the completion state of tasks" }
func (c *ToggleCmd) Usage() string     { return "gtodo toggle <n...>" }
func (c *ToggleCmd) NeedsStore() bool  { return true }

func (c *ToggleCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *ToggleCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	return runMark(ctx, cfg, svc, markToggle, args, out, errOut)
}

// runMark is the shared implementation for done, undone and toggle.
func runMark(ctx context.Context, cfg *config.Config, svc service.Service, mode markMode, args []string, out, errOut io.Writer) int {
	nums, err := ParseTaskRefs(args)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	s, err := openSession(ctx, cfg, svc)
	if err != nil {
		return reportError(errOut, err)
	}
	defer s.Close()

	targets, err := lookupTasks(s.order.Items(), nums)
	if err != nil {
		return reportError(errOut, err)
	}

	for _, t := range targets {
		var err error
		switch mode {
		case markDone:
			err = s.facade.Update(ctx, t.ID, true)
		case markUndone:
			err = s.facade.Update(ctx, t.ID, false)
		default:
			err = s.facade.Toggle(ctx, t.ID)
		}
		if err != nil {
			return reportError(errOut, err)
		}
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
