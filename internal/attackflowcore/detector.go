package attackflowcore

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is returned when a document matches neither of the
// two accepted serializations, or matches the bundle shape but contains no
// attack-flow or attack-action object. It is the only fatal parse error;
// everything else degrades to warnings and defaults.
var ErrUnsupportedFormat = errors.New("unsupported attack flow format")

// documentEnvelope probes the top-level shape of a document before
// committing to a format-specific decode.
type documentEnvelope struct {
	Type    string          `json:"type"`
	Schema  json.RawMessage `json:"schema"`
	Objects json.RawMessage `json:"objects"`
}

// stixObject carries the union of fields across every STIX object type we
// extract. Decoding heterogeneous bundle objects into one flat struct keeps
// reference resolution a plain map lookup.
type stixObject struct {
	Type               string              `json:"type"`
	ID                 string              `json:"id"`
	Name               string              `json:"name"`
	Description        string              `json:"description"`
	TechniqueID        string              `json:"technique_id"`
	TacticID           string              `json:"tactic_id"`
	Confidence         string              `json:"confidence"`
	ExecutionStart     string              `json:"execution_start"`
	ExecutionEnd       string              `json:"execution_end"`
	EffectRefs         []string            `json:"effect_refs"`
	OnTrueRefs         []string            `json:"on_true_refs"`
	OnFalseRefs        []string            `json:"on_false_refs"`
	StartRefs          []string            `json:"start_refs"`
	Operator           string              `json:"operator"`
	Scope              string              `json:"scope"`
	Created            string              `json:"created"`
	Modified           string              `json:"modified"`
	Author             any                 `json:"author"`
	SourceRef          string              `json:"source_ref"`
	TargetRef          string              `json:"target_ref"`
	KillChainPhases    []killChainPhase    `json:"kill_chain_phases"`
	ExternalReferences []ExternalReference `json:"external_references"`
}

type killChainPhase struct {
	KillChainName string `json:"kill_chain_name"`
	PhaseName     string `json:"phase_name"`
}

// builderObject is one entry of the builder export's flat object list. The
// "id" field is a kind tag, not an identifier; "instance" identifies the
// object.
type builderObject struct {
	ID         string            `json:"id"`
	Instance   string            `json:"instance"`
	Properties []builderProperty `json:"properties"`
	Source     string            `json:"source"`
	Target     string            `json:"target"`
}

// builderProperty is a [key, value] pair from a builder property list.
type builderProperty struct {
	Key   string
	Value json.RawMessage
}

func (p *builderProperty) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("property pair has %d elements, want 2", len(pair))
	}
	if err := json.Unmarshal(pair[0], &p.Key); err != nil {
		return fmt.Errorf("property key: %w", err)
	}
	p.Value = pair[1]
	return nil
}

// Intermediate records both extractors normalize into. The resolver never
// sees format-specific shapes.
type actionRecord struct {
	ID              string
	Name            string
	Description     string
	TechniqueID     string
	TacticID        string
	Confidence      string
	ExecutionStart  string
	ExecutionEnd    string
	EffectRefs      []string
	KillChainPhases []string
}

type relationshipRecord struct {
	Source string
	Target string
}

type assetRecord struct {
	ID          string
	Name        string
	Description string
}

type conditionRecord struct {
	ID      string
	OnTrue  []string
	OnFalse []string
}

type operatorRecord struct {
	ID         string
	Operator   string
	EffectRefs []string
}

// extraction is the uniform intermediate representation produced by the
// format detector for either encoding.
type extraction struct {
	format        FlowFormat
	actions       []actionRecord
	actionIDs     map[string]bool
	objectTypes   map[string]string // flat id lookup (STIX only), id -> type tag
	relationships []relationshipRecord
	assets        []assetRecord
	conditions    map[string]conditionRecord
	operators     map[string]operatorRecord
	starts        []string
	meta          FlowMetadata
}

// detectAndExtract classifies the raw document and extracts per-kind record
// collections plus document metadata. The input document is never mutated.
func detectAndExtract(data []byte) (*extraction, error) {
	var env documentEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: not a JSON object: %v", ErrUnsupportedFormat, err)
	}

	switch {
	case env.Type == "bundle" && len(env.Objects) > 0:
		return extractSTIX(env.Objects)
	case len(env.Schema) > 0 && len(env.Objects) > 0:
		return extractBuilder(env.Objects)
	default:
		return nil, fmt.Errorf("%w: document is neither a STIX bundle nor a builder export", ErrUnsupportedFormat)
	}
}

func extractSTIX(rawObjects json.RawMessage) (*extraction, error) {
	var objects []stixObject
	if err := json.Unmarshal(rawObjects, &objects); err != nil {
		return nil, fmt.Errorf("%w: malformed bundle object list: %v", ErrUnsupportedFormat, err)
	}

	ex := &extraction{
		format:      FormatSTIX,
		actionIDs:   make(map[string]bool),
		objectTypes: make(map[string]string),
		conditions:  make(map[string]conditionRecord),
		operators:   make(map[string]operatorRecord),
	}
	ex.meta.Format = FormatSTIX

	flowSeen := false
	for i := range objects {
		obj := &objects[i]
		if obj.ID != "" {
			ex.objectTypes[obj.ID] = obj.Type
		}
		switch obj.Type {
		case "attack-flow":
			flowSeen = true
			ex.meta.Name = obj.Name
			ex.meta.Description = obj.Description
			ex.meta.Scope = obj.Scope
			ex.meta.Created = obj.Created
			ex.meta.Modified = obj.Modified
			ex.meta.Author = authorName(obj.Author)
			ex.meta.ExternalReferences = obj.ExternalReferences
			ex.starts = append(ex.starts, obj.StartRefs...)
		case "attack-action":
			var phases []string
			for _, p := range obj.KillChainPhases {
				phases = append(phases, p.PhaseName)
			}
			ex.actions = append(ex.actions, actionRecord{
				ID:              obj.ID,
				Name:            obj.Name,
				Description:     obj.Description,
				TechniqueID:     obj.TechniqueID,
				TacticID:        obj.TacticID,
				Confidence:      obj.Confidence,
				ExecutionStart:  obj.ExecutionStart,
				ExecutionEnd:    obj.ExecutionEnd,
				EffectRefs:      obj.EffectRefs,
				KillChainPhases: phases,
			})
			if obj.ID != "" {
				ex.actionIDs[obj.ID] = true
			}
		case "attack-condition":
			ex.conditions[obj.ID] = conditionRecord{
				ID:      obj.ID,
				OnTrue:  obj.OnTrueRefs,
				OnFalse: obj.OnFalseRefs,
			}
		case "attack-operator":
			ex.operators[obj.ID] = operatorRecord{
				ID:         obj.ID,
				Operator:   obj.Operator,
				EffectRefs: obj.EffectRefs,
			}
		case "attack-asset":
			ex.assets = append(ex.assets, assetRecord{
				ID:          obj.ID,
				Name:        obj.Name,
				Description: obj.Description,
			})
		case "relationship":
			ex.relationships = append(ex.relationships, relationshipRecord{
				Source: obj.SourceRef,
				Target: obj.TargetRef,
			})
		}
	}

	// Syntactically a bundle but not an attack flow document.
	if !flowSeen && len(ex.actions) == 0 {
		return nil, fmt.Errorf("%w: bundle contains no attack-flow or attack-action object", ErrUnsupportedFormat)
	}

	ex.meta.ActionCount = len(ex.actions)
	ex.meta.RelationshipCount = len(ex.relationships)
	return ex, nil
}

func extractBuilder(rawObjects json.RawMessage) (*extraction, error) {
	var objects []builderObject
	if err := json.Unmarshal(rawObjects, &objects); err != nil {
		return nil, fmt.Errorf("%w: malformed builder object list: %v", ErrUnsupportedFormat, err)
	}

	ex := &extraction{
		format:     FormatBuilder,
		actionIDs:  make(map[string]bool),
		conditions: make(map[string]conditionRecord),
		operators:  make(map[string]operatorRecord),
	}
	ex.meta.Format = FormatBuilder

	for i := range objects {
		obj := &objects[i]
		switch obj.ID {
		case "flow":
			props := flattenProperties(obj.Properties)
			ex.meta.Name = propString(props, "name")
			ex.meta.Description = propString(props, "description")
			ex.meta.Scope = propString(props, "scope")
			ex.meta.Created = propString(props, "created")
			ex.meta.Modified = propString(props, "modified")
			ex.meta.Author = authorName(props["author"])
		case "action":
			props := flattenProperties(obj.Properties)
			ex.actions = append(ex.actions, actionRecord{
				ID:             obj.Instance,
				Name:           propString(props, "name"),
				Description:    propString(props, "description"),
				TechniqueID:    propString(props, "tid", "technique_id"),
				TacticID:       propString(props, "tactic", "tactic_id"),
				Confidence:     propString(props, "confidence"),
				ExecutionStart: propString(props, "execution_start"),
				ExecutionEnd:   propString(props, "execution_end"),
			})
			if obj.Instance != "" {
				ex.actionIDs[obj.Instance] = true
			}
		case "asset":
			props := flattenProperties(obj.Properties)
			ex.assets = append(ex.assets, assetRecord{
				ID:          obj.Instance,
				Name:        propString(props, "name"),
				Description: propString(props, "description"),
			})
		case "line", "dynamic_line":
			ex.relationships = append(ex.relationships, relationshipRecord{
				Source: obj.Source,
				Target: obj.Target,
			})
		}
	}

	ex.meta.ActionCount = len(ex.actions)
	ex.meta.RelationshipCount = len(ex.relationships)
	return ex, nil
}

// flattenProperties converts a builder property list to a plain mapping.
// A value that is itself a property list (an author sub-object, say) is
// flattened one level into a nested map.
func flattenProperties(props []builderProperty) map[string]any {
	out := make(map[string]any, len(props))
	for _, p := range props {
		var nested []builderProperty
		if err := json.Unmarshal(p.Value, &nested); err == nil {
			sub := make(map[string]any, len(nested))
			for _, np := range nested {
				sub[np.Key] = scalarValue(np.Value)
			}
			out[p.Key] = sub
			continue
		}
		out[p.Key] = scalarValue(p.Value)
	}
	return out
}

func scalarValue(raw json.RawMessage) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

// propString returns the first non-empty value among keys, as a string.
func propString(props map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := props[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case nil:
		default:
			return fmt.Sprint(v)
		}
	}
	return ""
}

// authorName extracts a display name from an author value that may be a
// plain string or a sub-object with a "name" field.
func authorName(author any) string {
	switch v := author.(type) {
	case string:
		return v
	case map[string]any:
		if name, ok := v["name"].(string); ok {
			return name
		}
	}
	return ""
}
