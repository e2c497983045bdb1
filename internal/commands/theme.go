package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"gtodo/internal/config"
	"gtodo/internal/exitcode"
	"gtodo/internal/prefs"
	"gtodo/internal/service"
	"gtodo/internal/theme"
)

func init() {
	Register(&ThemeCmd{})
}

// ThemeCmd implements the theme command.
type ThemeCmd struct{}

func (c *ThemeCmd) Name() string      { return "theme" }
func (c *ThemeCmd) Aliases() []string { return nil }
func (c *ThemeCmd) Synopsis() string  { return "Show or set the color theme" }
func (c *ThemeCmd) Usage() string     { return "gtodo theme [light|dark|system|toggle]" }
func (c *ThemeCmd) NeedsStore() bool  { return false }

func (c *ThemeCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *ThemeCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 1 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[1])
		return exitcode.UserError
	}

	m := theme.Load(prefs.NewFile(cfg.PrefsPath()), cfg.Logger())
	if len(args) == 0 {
		fmt.Fprintln(out, m.Current())
		return exitcode.Success
	}

	if args[0] == "toggle" {
		fmt.Fprintln(out, m.Toggle())
		return exitcode.Success
	}
	t, err := theme.Parse(args[0])
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
	m.Set(t)
	fmt.Fprintln(out, t)
	return exitcode.Success
}
