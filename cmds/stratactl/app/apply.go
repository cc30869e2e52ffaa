package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/stratadb/strata/pkg/api"
	"github.com/stratadb/strata/pkg/engine"
	"github.com/stratadb/strata/pkg/entity"
	"github.com/stratadb/strata/pkg/runtime"
)

type Apply struct {
	cmd *cobra.Command

	mainopts *Options
	files    []string
}

// NewApply creates the entities described by one or more manifest
// files on the engine. A manifest holds the entity configurations
// grouped by category, using the same layout as the daemon spec
// file.
func NewApply(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <options>",
		Short: "create entities on the engine",
	}
	TweakCommand(cmd)

	c := &Apply{
		cmd:      cmd,
		mainopts: opts,
	}
	c.cmd.RunE = func(cmd *cobra.Command, args []string) error { return c.Run(args) }

	flags := cmd.Flags()
	flags.StringSliceVarP(&c.files, "file", "f", nil, "manifest file (- for stdin)")
	return cmd
}

func (c *Apply) Run(args []string) error {
	var cmderr error

	if len(args) != 0 {
		return fmt.Errorf("no arguments expected")
	}

	for _, f := range c.files {
		var data []byte
		var err error

		if f == "-" {
			data, err = io.ReadAll(c.cmd.InOrStdin())
		} else {
			data, err = vfs.ReadFile(c.mainopts.fs, f)
		}
		if err != nil {
			fmt.Fprintf(c.cmd.ErrOrStderr(), "cannot read file %q: %s\n", f, err.Error())
			cmderr = fmt.Errorf("apply failed for some entities")
			continue
		}

		var spec engine.Spec
		err = yaml.Unmarshal(data, &spec)
		if err != nil {
			fmt.Fprintf(c.cmd.ErrOrStderr(), "cannot unmarshal file %q: %s\n", f, err.Error())
			cmderr = fmt.Errorf("apply failed for some entities")
			continue
		}

		spec.Each(func(category entity.Category, config runtime.PolyConfig) error {
			info, err := c.create(category, config)
			if err != nil {
				fmt.Fprintf(c.cmd.ErrOrStderr(), "%s/%s: %s\n", category, config.ID, err.Error())
				cmderr = fmt.Errorf("apply failed for some entities")
				return nil
			}
			fmt.Fprintf(c.cmd.OutOrStdout(), "%s/%s: created\n", category, info.Config.ID)
			return nil
		})
	}

	return cmderr
}

func (c *Apply) create(category entity.Category, config runtime.PolyConfig) (*api.EntityInfo, error) {
	data, err := json.Marshal(&config)
	if err != nil {
		return nil, err
	}

	var resp *http.Response
	if config.ID == "" {
		resp, err = http.Post(c.mainopts.GetURL()+string(category), "application/json", bytes.NewReader(data))
	} else {
		var req *http.Request
		req, err = http.NewRequest(http.MethodPut, c.mainopts.GetURL()+path.Join(string(category), config.ID), bytes.NewReader(data))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
			resp, err = http.DefaultClient.Do(req)
		}
	}
	if err != nil {
		return nil, err
	}

	data, err = ResponseData(resp)
	if err != nil {
		return nil, err
	}
	var info api.EntityInfo
	err = json.Unmarshal(data, &info)
	if err != nil {
		return nil, err
	}
	return &info, nil
}
