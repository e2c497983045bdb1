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
	Register(&HelpCmd{})
}

// HelpCmd implements the help command.
type HelpCmd struct{}

func (c *HelpCmd) Name() string      { return "help" }
func (c *HelpCmd) Aliases() []string { return nil }
func (c *HelpCmd) Synopsis() string  { return "Print usage" }
func (c *HelpCmd) Usage() string     { return "gtodo help" }
func (c *HelpCmd) NeedsStore() bool  { return false }

func (c *HelpCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	fmt.Fprint(out, helpText)
	return exitcode.Success
}

const helpText = `Usage:
  gtodo                                          List all tasks
  gtodo list [common flags] [--filter all|active|completed] [--format text|json|yaml]
  gtodo add [common flags] <text...>
  gtodo create [common flags] <text...>
  gtodo done [common flags] <n...>
  gtodo undone [common flags] <n...>
  gtodo toggle [common flags] <n...>
  gtodo rm [common flags] <n...>
  gtodo clear [common flags]
  gtodo move [common flags] <n> <position>
  gtodo theme [common flags] [light|dark|system|toggle]
  gtodo serve [common flags] [--addr <host:port>]
  gtodo login [common flags]
  gtodo logout [common flags]
  gtodo help
  gtodo version

Task numbers are positions in the full list as printed by "gtodo list".

Common flags:
  --config <dir>   Override config directory
  --quiet          Suppress informational output
  --debug          Print debug logs to stderr
`
