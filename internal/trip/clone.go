package trip

import (
	"encoding/json"
	"fmt"
)

// cloneVia deep-copies src into dst through a JSON round trip. The model's
// marshalers carry Extra fields through, so unknown data survives the copy.
func cloneVia(src, dst any) error {
	b, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("clone marshal: %w", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("clone unmarshal: %w", err)
	}
	return nil
}

// Clone returns a deep copy of the requirements skeleton.
func (r *RequirementsSkeleton) Clone() *RequirementsSkeleton {
	var c RequirementsSkeleton
	if err := cloneVia(r, &c); err != nil {
		panic(err)
	}
	return &c
}

// Clone returns a deep copy of the plan skeleton.
func (p *PlanSkeleton) Clone() *PlanSkeleton {
	var c PlanSkeleton
	if err := cloneVia(p, &c); err != nil {
		panic(err)
	}
	return &c
}

// Clone returns a deep copy of the agent document, envelope flag included.
func (doc *AgentDoc) Clone() *AgentDoc {
	var c AgentDoc
	if err := cloneVia(doc, &c); err != nil {
		panic(err)
	}
	c.Enveloped = doc.Enveloped
	c.Extra = cloneRaw(doc.Extra)
	c.EnvelopeExtra = cloneRaw(doc.EnvelopeExtra)
	return &c
}

func cloneRaw(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	c := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		c[k] = append(json.RawMessage(nil), v...)
	}
	return c
}
