// Package plandir is the filesystem store for one plan directory: typed
// load/save of the skeletons and the eight agent JSON files, tolerant of
// the {agent,status,data:{...}} envelope and preserving it on write.
package plandir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/wanderplan/wanderplan/internal/trip"
)

// Fixed filenames inside a plan directory.
const (
	FileRequirements = "requirements-skeleton.json"
	FilePlan         = "plan-skeleton.json"
	FileImages       = "images.json"
	FileSyncReport   = "sync-report.json"
)

// AgentFile returns the filename for an agent's output.
func AgentFile(agent string) string { return agent + ".json" }

// Dir is a handle on one plan directory. It owns every JSON file inside and
// never writes outside it.
type Dir struct {
	path string
}

// Open returns a handle on an existing plan directory.
func Open(path string) (*Dir, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, trip.Wrap(trip.KindNotFound, err, "plan directory %s", path)
	}
	if !info.IsDir() {
		return nil, trip.E(trip.KindInvalidInput, "%s is not a directory", path)
	}
	return &Dir{path: path}, nil
}

// Create makes the plan directory if needed and returns a handle on it.
func Create(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create plan directory: %w", err)
	}
	return &Dir{path: path}, nil
}

// Path returns the directory path.
func (d *Dir) Path() string { return d.path }

// Slug returns the destination slug (the directory's base name).
func (d *Dir) Slug() string { return filepath.Base(d.path) }

// File returns the absolute path of a file inside the directory.
func (d *Dir) File(name string) string { return filepath.Join(d.path, name) }

// Exists reports whether the named file is present.
func (d *Dir) Exists(name string) bool {
	_, err := os.Stat(d.File(name))
	return err == nil
}

// MTime returns the modification time of a file, or the zero time when the
// file is absent.
func (d *Dir) MTime(name string) time.Time {
	info, err := os.Stat(d.File(name))
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// LoadRequirements reads the requirements skeleton.
func (d *Dir) LoadRequirements() (*trip.RequirementsSkeleton, error) {
	var rs trip.RequirementsSkeleton
	if err := d.readJSON(FileRequirements, &rs); err != nil {
		return nil, err
	}
	return &rs, nil
}

// SaveRequirements writes the requirements skeleton.
func (d *Dir) SaveRequirements(rs *trip.RequirementsSkeleton) error {
	return d.writeJSON(FileRequirements, rs)
}

// LoadPlan reads the plan skeleton.
func (d *Dir) LoadPlan() (*trip.PlanSkeleton, error) {
	var ps trip.PlanSkeleton
	if err := d.readJSON(FilePlan, &ps); err != nil {
		return nil, err
	}
	return &ps, nil
}

// SavePlan writes the plan skeleton.
func (d *Dir) SavePlan(ps *trip.PlanSkeleton) error {
	return d.writeJSON(FilePlan, ps)
}

// agentBody is the day container shared by both envelope forms.
type agentBody struct {
	Days []trip.AgentDay `json:"days"`
}

// agentEnvelope is the wrapped form some agents emit.
type agentEnvelope struct {
	Agent  string          `json:"agent,omitempty"`
	Status string          `json:"status,omitempty"`
	Data   json.RawMessage `json:"data"`
	Notes  string          `json:"notes,omitempty"`
}

// LoadAgent reads one agent output file, unwrapping the envelope if present.
func (d *Dir) LoadAgent(agent string) (*trip.AgentDoc, error) {
	raw, err := os.ReadFile(d.File(AgentFile(agent)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, trip.E(trip.KindNotFound, "agent file %s missing", AgentFile(agent))
		}
		return nil, fmt.Errorf("read %s: %w", AgentFile(agent), err)
	}
	return ParseAgent(agent, raw)
}

// ParseAgent decodes agent output bytes. Exposed for validation paths that
// need to report on files without a directory handle.
func ParseAgent(agent string, raw []byte) (*trip.AgentDoc, error) {
	var probe struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, trip.Wrap(trip.KindInvalidInput, err, "agent %s: invalid JSON", agent)
	}

	doc := &trip.AgentDoc{}
	body := raw
	if len(probe.Data) > 0 {
		var env agentEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, trip.Wrap(trip.KindInvalidInput, err, "agent %s: invalid envelope", agent)
		}
		doc.Enveloped = true
		doc.Agent = env.Agent
		doc.Status = env.Status
		doc.Notes = env.Notes
		envExtra, err := trip.CollectExtra(raw, reflect.TypeOf(agentEnvelope{}))
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", agent, err)
		}
		doc.EnvelopeExtra = envExtra
		body = env.Data
	}

	var days agentBody
	if err := json.Unmarshal(body, &days); err != nil {
		return nil, trip.Wrap(trip.KindInvalidInput, err, "agent %s: invalid days", agent)
	}
	doc.Days = days.Days
	extra, err := trip.CollectExtra(body, reflect.TypeOf(agentBody{}))
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", agent, err)
	}
	doc.Extra = extra
	return doc, nil
}

// SaveAgent writes one agent output file, restoring the envelope when the
// source document carried one.
func (d *Dir) SaveAgent(agent string, doc *trip.AgentDoc) error {
	raw, err := EncodeAgent(doc)
	if err != nil {
		return fmt.Errorf("agent %s: %w", agent, err)
	}
	return d.writeRaw(AgentFile(agent), raw)
}

// EncodeBody renders the unwrapped day container of an agent document,
// without envelope metadata. Schema validation runs against this form.
func EncodeBody(doc *trip.AgentDoc) (json.RawMessage, error) {
	days := doc.Days
	if days == nil {
		days = []trip.AgentDay{}
	}
	return trip.MarshalWithExtra(agentBody{Days: days}, doc.Extra)
}

// EncodeAgent renders an agent document back to its on-disk form.
func EncodeAgent(doc *trip.AgentDoc) (json.RawMessage, error) {
	body, err := EncodeBody(doc)
	if err != nil {
		return nil, err
	}
	if !doc.Enveloped {
		return body, nil
	}
	env := agentEnvelope{
		Agent:  doc.Agent,
		Status: doc.Status,
		Data:   body,
		Notes:  doc.Notes,
	}
	return trip.MarshalWithExtra(env, doc.EnvelopeExtra)
}

func (d *Dir) readJSON(name string, v any) error {
	raw, err := os.ReadFile(d.File(name))
	if err != nil {
		if os.IsNotExist(err) {
			return trip.E(trip.KindNotFound, "%s missing in %s", name, d.path)
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return trip.Wrap(trip.KindInvalidInput, err, "parse %s", name)
	}
	return nil
}

func (d *Dir) writeJSON(name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return d.writeRaw(name, raw)
}

// writeRaw pretty-prints and writes a JSON document. All plan files are
// UTF-8, two-space indented, newline terminated.
func (d *Dir) writeRaw(name string, raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return fmt.Errorf("indent %s: %w", name, err)
	}
	buf.WriteByte('\n')
	if err := os.WriteFile(d.File(name), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// WriteReport writes an arbitrary structured report (sync report and the
// like) into the directory.
func (d *Dir) WriteReport(name string, v any) error {
	return d.writeJSON(name, v)
}
