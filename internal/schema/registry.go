// Package schema holds the per-agent JSON Schemas and the registry that
// compiles them with cross-file $ref resolution.
package schema

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/wanderplan/wanderplan/internal/trip"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// baseURL anchors every embedded schema so $ref between files resolves.
const baseURL = "https://wanderplan.dev/schemas/"

// Error is one schema violation, pointed at by JSON path.
type Error struct {
	Agent   string `json:"agent"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e Error) String() string {
	return fmt.Sprintf("%s: %s: %s", e.Agent, e.Path, e.Message)
}

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

func compileAll() {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		compileErr = fmt.Errorf("read embedded schemas: %w", err)
		return
	}
	for _, entry := range entries {
		data, err := schemaFS.ReadFile("schemas/" + entry.Name())
		if err != nil {
			compileErr = fmt.Errorf("read schema %s: %w", entry.Name(), err)
			return
		}
		if err := compiler.AddResource(baseURL+entry.Name(), strings.NewReader(string(data))); err != nil {
			compileErr = fmt.Errorf("add schema resource %s: %w", entry.Name(), err)
			return
		}
	}

	compiled = make(map[string]*jsonschema.Schema, len(trip.Agents))
	for _, agent := range trip.Agents {
		name := agent + ".schema.json"
		s, err := compiler.Compile(baseURL + name)
		if err != nil {
			compileErr = fmt.Errorf("compile %s: %w", name, err)
			return
		}
		compiled[agent] = s
	}
}

// For returns the compiled schema for an agent.
func For(agent string) (*jsonschema.Schema, error) {
	compileOnce.Do(compileAll)
	if compileErr != nil {
		return nil, compileErr
	}
	s, ok := compiled[agent]
	if !ok {
		return nil, trip.E(trip.KindNotFound, "no schema for agent %q", agent)
	}
	return s, nil
}

// Validate checks a decoded (unwrapped) agent document against the agent's
// schema. Violations come back sorted lexicographically by path so output
// is stable between runs.
func Validate(agent string, doc any) ([]Error, error) {
	s, err := For(agent)
	if err != nil {
		return nil, err
	}
	err = s.Validate(doc)
	if err == nil {
		return nil, nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return nil, fmt.Errorf("validate %s: %w", agent, err)
	}
	errs := flatten(agent, ve)
	sort.Slice(errs, func(i, j int) bool {
		if errs[i].Path != errs[j].Path {
			return errs[i].Path < errs[j].Path
		}
		return errs[i].Message < errs[j].Message
	})
	return errs, nil
}

// flatten walks the cause tree down to leaves.
func flatten(agent string, ve *jsonschema.ValidationError) []Error {
	if len(ve.Causes) == 0 {
		return []Error{{
			Agent:   agent,
			Path:    instancePath(ve.InstanceLocation),
			Message: ve.Message,
		}}
	}
	var out []Error
	for _, cause := range ve.Causes {
		out = append(out, flatten(agent, cause)...)
	}
	return out
}

// instancePath converts a JSON-pointer instance location into the dotted
// path form used in diagnostics.
func instancePath(loc string) string {
	if loc == "" {
		return "$"
	}
	parts := strings.Split(strings.TrimPrefix(loc, "/"), "/")
	var b strings.Builder
	b.WriteString("$")
	for _, p := range parts {
		p = strings.ReplaceAll(strings.ReplaceAll(p, "~1", "/"), "~0", "~")
		b.WriteString(".")
		b.WriteString(p)
	}
	return b.String()
}
