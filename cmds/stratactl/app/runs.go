package app

import (
	"fmt"
	"path"

	"github.com/spf13/cobra"

	"github.com/stratadb/strata/pkg/api"
	"github.com/stratadb/strata/pkg/procedure"
	"github.com/stratadb/strata/pkg/runtime"
)

type Runs struct {
	cmd *cobra.Command

	mainopts *Options
	details  bool
	output   string
}

// NewRuns lists the recorded runs of a procedure or describes
// dedicated runs by id.
func NewRuns(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs <procedure> [<run>...] <options>",
		Short: "list recorded procedure runs",
	}
	TweakCommand(cmd)

	c := &Runs{
		cmd:      cmd,
		mainopts: opts,
	}
	c.cmd.RunE = func(cmd *cobra.Command, args []string) error { return c.Run(args) }

	flags := cmd.Flags()
	flags.BoolVarP(&c.details, "details", "d", false, "report the run details instead of the run record")
	flags.StringVarP(&c.output, "output", "o", "", "output format (json, yaml)")
	return cmd
}

func (c *Runs) Run(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("procedure name required")
	}
	name := args[0]
	ids := args[1:]
	out := c.cmd.OutOrStdout()

	if len(ids) == 0 {
		if c.details {
			return fmt.Errorf("run id required for details")
		}
		var records api.Items[*procedure.Run]
		err := getJSON(c.mainopts, path.Join("procedures", name, "runs"), &records)
		if err != nil {
			return err
		}
		if c.output != "" {
			return PrintFormatted(out, c.output, &records)
		}
		rows := [][]string{}
		for _, r := range records.Items {
			finished := ""
			if r.RunFinished != nil {
				finished = r.RunFinished.String()
			}
			rows = append(rows, []string{r.Config.ID, r.RunStarted.String(), finished})
		}
		PrintTable(out, []string{"RUN", "STARTED", "FINISHED"}, rows)
		return nil
	}

	format := c.output
	if format == "" {
		format = "yaml"
	}
	for _, id := range ids {
		if c.details {
			var details runtime.Value
			err := getJSON(c.mainopts, path.Join("procedures", name, "runs", id, "details"), &details)
			if err != nil {
				return err
			}
			err = PrintFormatted(out, format, details)
			if err != nil {
				return err
			}
			continue
		}
		var record procedure.Run
		err := getJSON(c.mainopts, path.Join("procedures", name, "runs", id), &record)
		if err != nil {
			return err
		}
		err = PrintFormatted(out, format, &record)
		if err != nil {
			return err
		}
	}
	return nil
}
