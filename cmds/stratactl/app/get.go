package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratadb/strata/pkg/api"
)

type Get struct {
	cmd      *cobra.Command
	mainopts *Options

	output string
}

// NewGet lists the entities of a category or describes dedicated
// entities by name.
func NewGet(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <category> [<name>...] <options>",
		Short: "get entities hosted by the engine",
	}
	TweakCommand(cmd)

	c := &Get{
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

func (c *Get) Run(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("entity category required")
	}
	out := c.cmd.OutOrStdout()

	category := args[0]
	names := args[1:]
	if len(names) == 0 {
		var found api.Items[string]
		err := getJSON(c.mainopts, category, &found)
		if err != nil {
			return err
		}
		names = found.Items
	}

	infos := []*api.EntityInfo{}
	for _, n := range names {
		var info api.EntityInfo
		err := getJSON(c.mainopts, category+"/"+n, &info)
		if err != nil {
			return err
		}
		infos = append(infos, &info)
	}

	if c.output != "" {
		if len(args) == 2 {
			return PrintFormatted(out, c.output, infos[0])
		}
		return PrintFormatted(out, c.output, &api.Items[*api.EntityInfo]{Items: infos})
	}

	rows := [][]string{}
	for _, info := range infos {
		rows = append(rows, []string{info.Config.ID, info.Config.Kind})
	}
	PrintTable(out, []string{"NAME", "KIND"}, rows)
	return nil
}
