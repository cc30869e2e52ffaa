package main

import (
	"os"

	"github.com/drone/envsubst"
	"sigs.k8s.io/yaml"

	"github.com/stratadb/strata/pkg/engine"
)

// bootstrap populates a fresh engine from a spec file. The file is
// YAML or JSON, with environment variable references substituted
// before parsing.
func bootstrap(eng engine.Engine, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	expanded, err := envsubst.EvalEnv(string(data))
	if err != nil {
		return err
	}
	var spec engine.Spec
	if err := yaml.Unmarshal([]byte(expanded), &spec); err != nil {
		return err
	}
	return spec.Apply(eng)
}
