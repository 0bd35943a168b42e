// Package dashboard persists the templating and annotation sections of a
// dashboard and binds them to a templating.Service for one editing session.
package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	templating "github.com/goliatone/go-templating"
	"github.com/goliatone/go-templating/internal/hydrate"
)

// Domain is the state.Ref domain of dashboard documents.
const Domain = "dashboards"

// ErrUIDRequired is returned when a document has no uid.
var ErrUIDRequired = errors.New("dashboard: uid is required")

// Templating is the variable section of a dashboard.
type Templating struct {
	List []templating.Definition `json:"list"`
}

// Annotations is the annotation query section of a dashboard.
type Annotations struct {
	List []map[string]any `json:"list"`
}

// Document is a persisted dashboard. Top level keys it does not model are
// kept in Extra and written back unchanged.
type Document struct {
	UID         string
	Title       string
	Version     int
	Templating  Templating
	Annotations Annotations
	Extra       map[string]any
}

type documentFields struct {
	UID         string      `json:"uid"`
	Title       string      `json:"title"`
	Version     int         `json:"version"`
	Templating  Templating  `json:"templating"`
	Annotations Annotations `json:"annotations"`
}

var modelledKeys = []string{"uid", "title", "version", "templating", "annotations"}

// MarshalJSON writes the modelled fields over Extra.
func (d Document) MarshalJSON() ([]byte, error) {
	payload, err := d.Payload()
	if err != nil {
		return nil, err
	}
	return json.Marshal(payload)
}

// UnmarshalJSON reads the modelled fields and keeps the rest in Extra.
func (d *Document) UnmarshalJSON(data []byte) error {
	var fields documentFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var extra map[string]any
	if err := json.Unmarshal(data, &extra); err != nil {
		return err
	}
	for _, key := range modelledKeys {
		delete(extra, key)
	}
	if len(extra) == 0 {
		extra = nil
	}
	*d = Document{
		UID:         fields.UID,
		Title:       fields.Title,
		Version:     fields.Version,
		Templating:  fields.Templating,
		Annotations: fields.Annotations,
		Extra:       extra,
	}
	return nil
}

// Payload returns the document as a generic JSON object.
func (d Document) Payload() (map[string]any, error) {
	fields := documentFields{
		UID:         d.UID,
		Title:       d.Title,
		Version:     d.Version,
		Templating:  d.Templating,
		Annotations: d.Annotations,
	}
	if fields.Templating.List == nil {
		fields.Templating.List = []templating.Definition{}
	}
	if fields.Annotations.List == nil {
		fields.Annotations.List = []map[string]any{}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("dashboard: encode %q: %w", d.UID, err)
	}
	var modelled map[string]any
	if err := json.Unmarshal(raw, &modelled); err != nil {
		return nil, fmt.Errorf("dashboard: encode %q: %w", d.UID, err)
	}
	out := make(map[string]any, len(d.Extra)+len(modelled))
	for k, v := range d.Extra {
		out[k] = v
	}
	for k, v := range modelled {
		out[k] = v
	}
	return out, nil
}

// Validate checks the fields a stored document must carry.
func Validate(doc Document) error {
	uid := strings.TrimSpace(doc.UID)
	if uid == "" {
		return ErrUIDRequired
	}
	if strings.Contains(uid, "/") {
		return fmt.Errorf("dashboard: invalid uid %q", uid)
	}
	return nil
}

var decoder = hydrate.NewDecoder[Document](
	hydrate.WithPreHook[Document](normalizePayload),
	hydrate.WithPostHook[Document](fillUID),
)

// Decode converts a stored payload into a Document. Missing or null
// templating and annotation lists decode as empty lists, and a payload
// without a uid takes the one of ctx.
func Decode(ctx hydrate.Context, payload map[string]any) (Document, error) {
	return decoder.Decode(ctx, payload)
}

// Parse decodes a dashboard file. Names ending in .yaml or .yml are read as
// YAML, everything else as JSON with comments and trailing commas allowed.
func Parse(name string, data []byte) (Document, error) {
	var payload map[string]any
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &payload); err != nil {
			return Document{}, fmt.Errorf("dashboard: parse %s: %w", name, err)
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), &payload); err != nil {
			return Document{}, fmt.Errorf("dashboard: parse %s: %w", name, err)
		}
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return Decode(hydrate.Context{}, payload)
}

// Format renders doc in the format Parse picks for name.
func Format(name string, doc Document) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		payload, err := doc.Payload()
		if err != nil {
			return nil, err
		}
		return yaml.Marshal(payload)
	default:
		return json.MarshalIndent(doc, "", "  ")
	}
}

func normalizePayload(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
	for _, section := range []string{"templating", "annotations"} {
		switch value := payload[section].(type) {
		case nil:
			payload[section] = map[string]any{"list": []any{}}
		case map[string]any:
			if value["list"] == nil {
				value["list"] = []any{}
			}
		default:
			return nil, fmt.Errorf("%s must be an object, got %T", section, value)
		}
	}
	return payload, nil
}

func fillUID(ctx hydrate.Context, doc *Document) error {
	if doc.UID == "" {
		doc.UID = ctx.UID
	}
	return nil
}
