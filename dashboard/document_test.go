package dashboard_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	templating "github.com/goliatone/go-templating"
	"github.com/goliatone/go-templating/dashboard"
	"github.com/goliatone/go-templating/internal/hydrate"
)

func TestDecodeNormalisesMissingLists(t *testing.T) {
	doc, err := dashboard.Decode(hydrate.Context{UID: "ops"}, map[string]any{
		"title":       "Ops",
		"annotations": map[string]any{"list": nil},
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.UID != "ops" {
		t.Fatalf("expected uid from context, got %q", doc.UID)
	}
	if doc.Templating.List == nil || len(doc.Templating.List) != 0 {
		t.Fatalf("expected empty templating list, got %#v", doc.Templating.List)
	}
	if doc.Annotations.List == nil || len(doc.Annotations.List) != 0 {
		t.Fatalf("expected empty annotation list, got %#v", doc.Annotations.List)
	}
}

func TestDecodeRejectsMalformedSection(t *testing.T) {
	_, err := dashboard.Decode(hydrate.Context{UID: "ops"}, map[string]any{"templating": "nope"})
	if err == nil || !strings.Contains(err.Error(), "templating must be an object") {
		t.Fatalf("expected malformed section error, got %v", err)
	}
}

func TestDocumentKeepsUnknownKeys(t *testing.T) {
	raw := []byte(`{
		"uid": "ops",
		"title": "Ops",
		"version": 4,
		"refresh": "5s",
		"panels": [{"title": "CPU"}],
		"templating": {"list": [{"type": "custom", "name": "env", "query": "a,b"}]}
	}`)
	var doc dashboard.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Version != 4 || doc.Templating.List[0].Name() != "env" {
		t.Fatalf("unexpected document %+v", doc)
	}
	wantExtra := map[string]any{"refresh": "5s", "panels": []any{map[string]any{"title": "CPU"}}}
	if diff := cmp.Diff(wantExtra, doc.Extra); diff != "" {
		t.Fatalf("extra mismatch (-want +got):\n%s", diff)
	}

	out, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(out, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["refresh"] != "5s" || payload["uid"] != "ops" {
		t.Fatalf("expected unknown and modelled keys, got %v", payload)
	}
	if _, ok := payload["annotations"].(map[string]any); !ok {
		t.Fatalf("expected annotations section written, got %v", payload["annotations"])
	}
}

func TestParseFormats(t *testing.T) {
	jsonc := []byte(`{
		// shared ops board
		"uid": "ops",
		"templating": {"list": [
			{"type": "constant", "name": "prefix", "query": "prod"},
		]},
	}`)
	yamlDoc := []byte(`
uid: ops
templating:
  list:
    - type: constant
      name: prefix
      query: prod
`)

	fromJSON, err := dashboard.Parse("ops.json", jsonc)
	if err != nil {
		t.Fatalf("parse json: %v", err)
	}
	fromYAML, err := dashboard.Parse("ops.yaml", yamlDoc)
	if err != nil {
		t.Fatalf("parse yaml: %v", err)
	}
	want := []templating.Definition{{"type": "constant", "name": "prefix", "query": "prod"}}
	if diff := cmp.Diff(want, fromJSON.Templating.List); diff != "" {
		t.Fatalf("json list mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, fromYAML.Templating.List); diff != "" {
		t.Fatalf("yaml list mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatRoundTrip(t *testing.T) {
	doc := dashboard.Document{
		UID:        "ops",
		Title:      "Ops",
		Version:    2,
		Templating: dashboard.Templating{List: []templating.Definition{{"type": "textbox", "name": "filter", "query": "err"}}},
		Extra:      map[string]any{"refresh": "1m"},
	}
	for _, name := range []string{"ops.json", "ops.yml"} {
		data, err := dashboard.Format(name, doc)
		if err != nil {
			t.Fatalf("format %s: %v", name, err)
		}
		got, err := dashboard.Parse(name, data)
		if err != nil {
			t.Fatalf("parse %s: %v", name, err)
		}
		if got.UID != "ops" || got.Version != 2 || got.Templating.List[0].Name() != "filter" || got.Extra["refresh"] != "1m" {
			t.Fatalf("%s round trip mismatch: %+v", name, got)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := dashboard.Validate(dashboard.Document{}); err != dashboard.ErrUIDRequired {
		t.Fatalf("expected ErrUIDRequired, got %v", err)
	}
	if err := dashboard.Validate(dashboard.Document{UID: "a/b"}); err == nil {
		t.Fatalf("expected invalid uid")
	}
	if err := dashboard.Validate(dashboard.Document{UID: "ops"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
