package annotations

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewFillsDefaults(t *testing.T) {
	m, err := New(map[string]any{"name": "Deploys"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	want := Fields{Name: "Deploys", IconColor: DefaultIconColor, Enable: true}
	if diff := cmp.Diff(want, m.Fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveModelKeepsForeignKeys(t *testing.T) {
	def := map[string]any{
		"name":       "Deploys",
		"datasource": "events",
		"enable":     false,
		"expr":       "deploys{env=\"prod\"}",
	}
	m, err := New(def)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	m.Hide = true

	saved, err := m.SaveModel()
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	want := map[string]any{
		"name":       "Deploys",
		"datasource": "events",
		"iconColor":  DefaultIconColor,
		"enable":     false,
		"showIn":     float64(0),
		"hide":       true,
		"expr":       "deploys{env=\"prod\"}",
	}
	if diff := cmp.Diff(want, saved); diff != "" {
		t.Fatalf("saved mismatch (-want +got):\n%s", diff)
	}
	if _, ok := def["hide"]; ok {
		t.Fatalf("expected input definition untouched")
	}
}

func TestLoadAllSaveAll(t *testing.T) {
	models, err := LoadAll([]map[string]any{{"name": "a"}, {"name": "b", "showIn": 1}})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	saved, err := SaveAll(models)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(saved) != 2 || saved[0]["name"] != "a" || saved[1]["showIn"] != float64(1) {
		t.Fatalf("unexpected saved models %v", saved)
	}
}
