package app

import (
	"fmt"
	"io"
	"path"

	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/stratadb/strata/pkg/procedure"
)

type Run struct {
	cmd *cobra.Command

	mainopts *Options
	id       string
	file     string
	output   string
}

// NewRun executes a procedure run and reports the resulting run
// record. The run waits for completion, there is no detached mode.
func NewRun(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <procedure> <options>",
		Short: "execute a procedure run",
	}
	TweakCommand(cmd)

	c := &Run{
		cmd:      cmd,
		mainopts: opts,
	}
	c.cmd.RunE = func(cmd *cobra.Command, args []string) error { return c.Run(args) }

	flags := cmd.Flags()
	flags.StringVarP(&c.id, "id", "i", "", "run id (defaults to a generated id)")
	flags.StringVarP(&c.file, "file", "f", "", "run configuration file (- for stdin)")
	flags.StringVarP(&c.output, "output", "o", "", "output format (json, yaml)")
	return cmd
}

func (c *Run) Run(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("procedure name required")
	}
	name := args[0]
	out := c.cmd.OutOrStdout()

	var config procedure.RunConfig
	if c.file != "" {
		var data []byte
		var err error

		if c.file == "-" {
			data, err = io.ReadAll(c.cmd.InOrStdin())
		} else {
			data, err = vfs.ReadFile(c.mainopts.fs, c.file)
		}
		if err != nil {
			return fmt.Errorf("cannot read file %q: %w", c.file, err)
		}
		err = yaml.Unmarshal(data, &config)
		if err != nil {
			return fmt.Errorf("cannot unmarshal file %q: %w", c.file, err)
		}
	}
	if c.id != "" {
		config.ID = c.id
	}

	var record procedure.Run
	err := postJSON(c.mainopts, path.Join("procedures", name, "runs"), &config, &record)
	if err != nil {
		return err
	}

	if c.output != "" {
		return PrintFormatted(out, c.output, &record)
	}
	fmt.Fprintf(out, "run %q of procedure %q finished\n", record.Config.ID, name)
	if !record.Results.IsEmpty() {
		data, err := yaml.Marshal(record.Results)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s", string(data))
	}
	return nil
}
