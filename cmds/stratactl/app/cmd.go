package app

import (
	"os"
	"strings"

	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/spf13/cobra"

	"github.com/stratadb/strata/pkg/utils"
)

const DEFAULT_SERVER = "http://localhost:8080"

// Options holds the global settings shared by all sub commands.
type Options struct {
	address string
	fs      vfs.FileSystem
}

// GetURL yields the base URL of the engine REST interface.
func (o *Options) GetURL() string {
	a := o.address
	if !strings.HasPrefix(a, "http://") && !strings.HasPrefix(a, "https://") {
		a = "http://" + a
	}
	if !strings.HasSuffix(a, "/") {
		a += "/"
	}
	return a + "v1/"
}

// New creates the stratactl command tree. An optional filesystem
// may be given to read manifests from, it defaults to the OS
// filesystem.
func New(fss ...vfs.FileSystem) *cobra.Command {
	opts := &Options{
		fs: utils.OptionalDefaulted(vfs.FileSystem(osfs.OsFs), fss...),
	}

	opts.address = os.Getenv("STRATA_SERVER")
	if opts.address == "" {
		opts.address = DEFAULT_SERVER
	}

	maincmd := &cobra.Command{
		Use:   "stratactl <options> <cmd> <args>",
		Short: "manage entities of a strata engine daemon",
		Long: `
The stratactl command manages the datasets, functions and procedures
hosted by a strata engine daemon and executes procedure runs.

The daemon address is taken from the STRATA_SERVER environment
variable and may be overridden with the --server option.
`,
		Run:              nil,
		TraverseChildren: true,
	}

	flags := maincmd.Flags()
	flags.StringVarP(&opts.address, "server", "s", opts.address, "address of the engine daemon")

	maincmd.AddCommand(NewTypes(opts))
	maincmd.AddCommand(NewGet(opts))
	maincmd.AddCommand(NewApply(opts))
	maincmd.AddCommand(NewDelete(opts))
	maincmd.AddCommand(NewRun(opts))
	maincmd.AddCommand(NewRuns(opts))
	return maincmd
}

func TweakCommand(cmd *cobra.Command) {
	cmd.DisableFlagsInUseLine = true
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
}
