package app

import (
	"fmt"
	"net/http"
	"path"

	"github.com/spf13/cobra"

	"github.com/stratadb/strata/pkg/api"
)

type Delete struct {
	cmd *cobra.Command

	mainopts *Options
	all      bool
}

// NewDelete removes entities from the engine.
func NewDelete(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <category> [<name>...] <options>",
		Short: "delete entities hosted by the engine",
	}
	TweakCommand(cmd)

	c := &Delete{
		cmd:      cmd,
		mainopts: opts,
	}
	c.cmd.RunE = func(cmd *cobra.Command, args []string) error { return c.Run(args) }

	flags := cmd.Flags()
	flags.BoolVarP(&c.all, "all", "A", false, "delete all entities of the category")
	return cmd
}

func (c *Delete) Run(args []string) error {
	var cmderr error

	if len(args) < 1 {
		return fmt.Errorf("entity category required")
	}

	category := args[0]
	names := args[1:]
	if len(names) == 0 {
		if !c.all {
			return fmt.Errorf("entity name or --all required")
		}
		var found api.Items[string]
		err := getJSON(c.mainopts, category, &found)
		if err != nil {
			return err
		}
		names = found.Items
	}

	for _, n := range names {
		err := c.delete(category, n)
		if err != nil {
			fmt.Fprintf(c.cmd.ErrOrStderr(), "%s/%s: %s\n", category, n, err.Error())
			cmderr = fmt.Errorf("deletion failed for some entities")
			continue
		}
		fmt.Fprintf(c.cmd.OutOrStdout(), "%s/%s: deleted\n", category, n)
	}

	return cmderr
}

func (c *Delete) delete(category, name string) error {
	req, err := http.NewRequest(http.MethodDelete, c.mainopts.GetURL()+path.Join(category, name), nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	_, err = ResponseData(resp)
	return err
}
