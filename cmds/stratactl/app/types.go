package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratadb/strata/pkg/api"
)

type Types struct {
	cmd      *cobra.Command
	mainopts *Options

	output string
}

// NewTypes lists the entity categories of the engine or the kinds
// registered for a dedicated category.
func NewTypes(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "types [<category>] <options>",
		Short: "list registered entity kinds",
	}
	TweakCommand(cmd)

	c := &Types{
		cmd:      cmd,
		mainopts: opts,
	}
	c.cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return c.Run(args)
	}

	flags := cmd.Flags()
	flags.StringVarP(&c.output, "output", "o", "", "output format (json, yaml)")
	return cmd
}

func (c *Types) Run(args []string) error {
	out := c.cmd.OutOrStdout()

	switch len(args) {
	case 0:
		var categories api.Items[string]
		err := getJSON(c.mainopts, "types", &categories)
		if err != nil {
			return err
		}
		if c.output != "" {
			return PrintFormatted(out, c.output, &categories)
		}
		rows := [][]string{}
		for _, n := range categories.Items {
			rows = append(rows, []string{n})
		}
		PrintTable(out, []string{"CATEGORY"}, rows)
		return nil
	case 1:
		var kinds api.Items[api.Kind]
		err := getJSON(c.mainopts, "types/"+args[0], &kinds)
		if err != nil {
			return err
		}
		if c.output != "" {
			return PrintFormatted(out, c.output, &kinds)
		}
		rows := [][]string{}
		for _, k := range kinds.Items {
			rows = append(rows, []string{k.Name, k.Description})
		}
		PrintTable(out, []string{"NAME", "DESCRIPTION"}, rows)
		return nil
	default:
		return fmt.Errorf("at most one category expected")
	}
}
