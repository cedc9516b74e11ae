// Package descriptor validates the auxiliary descriptor files the context
// manager tracks outside the main driver: the package manifest (YAML) and the
// generated fix-data file (JSON). Validation failures are data problems, never
// errors: a malformed or unreadable file yields a result, possibly with
// issues, and processing always continues.
package descriptor

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// Kind identifies the descriptor file type.
type Kind uint8

const (
	KindManifest Kind = iota
	KindFixData
)

func (k Kind) String() string {
	switch k {
	case KindManifest:
		return "manifest"
	case KindFixData:
		return "fix_data"
	}
	return "unknown"
}

// Issue is a single validation finding.
type Issue struct {
	Message string `json:"message"`
}

// Result is the outcome of validating one descriptor file.
type Result struct {
	Path   string  `json:"path"`
	Kind   Kind    `json:"kind"`
	Issues []Issue `json:"issues"`
}

// Valid reports whether the file validated cleanly.
func (r *Result) Valid() bool { return len(r.Issues) == 0 }

// manifest is the expected shape of the package manifest.
type manifest struct {
	Name         string            `yaml:"name"`
	Version      string            `yaml:"version"`
	Dependencies map[string]string `yaml:"dependencies"`
}

// ValidateManifest checks a manifest file against its expected shape. An
// unreadable file contributes zero issues.
func ValidateManifest(path string) *Result {
	res := &Result{Path: path, Kind: KindManifest}
	data, err := os.ReadFile(path)
	if err != nil {
		return res
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		res.Issues = append(res.Issues, Issue{Message: fmt.Sprintf("malformed YAML: %v", err)})
		return res
	}
	if m.Name == "" {
		res.Issues = append(res.Issues, Issue{Message: "missing required field: name"})
	}
	for dep, constraint := range m.Dependencies {
		if strings.TrimSpace(constraint) == "" {
			res.Issues = append(res.Issues, Issue{Message: fmt.Sprintf("dependency %q has an empty constraint", dep)})
		}
	}
	return res
}

// fixDataSchema is the JSON schema for generated fix-data files.
const fixDataSchema = `{
  "type": "object",
  "required": ["version", "transforms"],
  "properties": {
    "version": {"type": "integer", "minimum": 1},
    "transforms": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["title", "element"],
        "properties": {
          "title": {"type": "string"},
          "element": {"type": "object"},
          "changes": {"type": "array"}
        }
      }
    }
  }
}`

var fixDataCompiled = mustCompileFixData()

func mustCompileFixData() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(fixDataSchema))
	if err != nil {
		panic(fmt.Sprintf("descriptor: invalid fix-data schema: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("fix_data.json", doc); err != nil {
		panic(fmt.Sprintf("descriptor: %v", err))
	}
	sch, err := c.Compile("fix_data.json")
	if err != nil {
		panic(fmt.Sprintf("descriptor: %v", err))
	}
	return sch
}

// ValidateFixData checks a generated fix-data file against its schema. An
// unreadable file contributes zero issues.
func ValidateFixData(path string) *Result {
	res := &Result{Path: path, Kind: KindFixData}
	data, err := os.ReadFile(path)
	if err != nil {
		return res
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		res.Issues = append(res.Issues, Issue{Message: fmt.Sprintf("malformed JSON: %v", err)})
		return res
	}
	if err := fixDataCompiled.Validate(inst); err != nil {
		res.Issues = append(res.Issues, Issue{Message: err.Error()})
	}
	return res
}
