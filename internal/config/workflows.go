package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/seantiz/pulse/internal/model"
)

// workflowFile is the YAML document shape: either a single workflow or a list
// of workflows under a "workflows" key.
type workflowFile struct {
	Name      string                     `yaml:"name"`
	APIs      []model.ApiSpec            `yaml:"apis"`
	Workflows []model.WorkflowDefinition `yaml:"workflows"`
}

// LoadWorkflows reads workflow definitions from a YAML file or from every
// *.yaml/*.yml file in a directory. Environment variable references of the
// form ${VAR} in the file contents are interpolated before parsing. A
// malformed definition fails the whole load so that it is never registered.
func LoadWorkflows(path string) ([]model.WorkflowDefinition, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat workflows path: %w", err)
	}

	var files []string
	if info.IsDir() {
		for _, pattern := range []string{"*.yaml", "*.yml"} {
			matches, err := filepath.Glob(filepath.Join(path, pattern))
			if err != nil {
				return nil, fmt.Errorf("glob workflow files: %w", err)
			}
			files = append(files, matches...)
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no workflow files found in %s", path)
		}
		sort.Strings(files)
	} else {
		files = []string{path}
	}

	var defs []model.WorkflowDefinition
	seen := make(map[string]bool)
	for _, file := range files {
		parsed, err := loadWorkflowFile(file)
		if err != nil {
			return nil, err
		}
		for _, def := range parsed {
			if seen[def.Name] {
				return nil, fmt.Errorf("%s: duplicate workflow name %q", file, def.Name)
			}
			seen[def.Name] = true
			defs = append(defs, def)
		}
	}

	return defs, nil
}

func loadWorkflowFile(path string) ([]model.WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow file: %w", err)
	}

	// Interpolate ${VAR} references; bare $VAR is left untouched so that
	// literal dollar signs in bodies survive.
	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	var doc workflowFile
	if err := yaml.Unmarshal([]byte(expanded), &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	var defs []model.WorkflowDefinition
	if doc.Name != "" || len(doc.APIs) > 0 {
		defs = append(defs, model.WorkflowDefinition{Name: doc.Name, APIs: doc.APIs})
	}
	defs = append(defs, doc.Workflows...)

	if len(defs) == 0 {
		return nil, fmt.Errorf("%s: no workflows defined", path)
	}

	for i := range defs {
		if err := validateWorkflow(&defs[i]); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	return defs, nil
}

// validMethods is the set of HTTP methods a check may use.
var validMethods = map[string]bool{
	"GET":    true,
	"POST":   true,
	"PUT":    true,
	"PATCH":  true,
	"DELETE": true,
	"HEAD":   true,
}

func validateWorkflow(def *model.WorkflowDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("workflow name is required")
	}
	if len(def.APIs) == 0 {
		return fmt.Errorf("workflow %q has no apis", def.Name)
	}

	names := make(map[string]bool)
	for i := range def.APIs {
		api := &def.APIs[i]
		if api.Name == "" {
			return fmt.Errorf("workflow %q: api %d has no name", def.Name, i)
		}
		if names[api.Name] {
			return fmt.Errorf("workflow %q: duplicate api name %q", def.Name, api.Name)
		}
		names[api.Name] = true

		if api.URL == "" {
			return fmt.Errorf("workflow %q: api %q has no url", def.Name, api.Name)
		}
		u, err := url.Parse(api.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("workflow %q: api %q has invalid url %q", def.Name, api.Name, api.URL)
		}

		if api.Method == "" {
			api.Method = "GET"
		}
		api.Method = strings.ToUpper(api.Method)
		if !validMethods[api.Method] {
			return fmt.Errorf("workflow %q: api %q has invalid method %q", def.Name, api.Name, api.Method)
		}

		if api.ThresholdMS < 0 {
			return fmt.Errorf("workflow %q: api %q has negative threshold", def.Name, api.Name)
		}
	}

	return nil
}
