package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-templating/dashboard"
)

const testDatasources = `
[datasources.default.queries]
"regions" = ["eu", "us"]
"hosts(eu)" = ["eu-1", "eu-2"]
"hosts(us)" = ["us-1"]
`

const testDashboard = `
uid: ops
title: Ops
refresh: 5s
templating:
  list:
    - type: query
      name: region
      query: regions
    - type: query
      name: host
      query: hosts($region)
    - type: textbox
      name: filter
      query: err
`

func writeFixtures(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	board := filepath.Join(dir, "ops.yaml")
	sources := filepath.Join(dir, "datasources.toml")
	if err := os.WriteFile(board, []byte(testDashboard), 0o644); err != nil {
		t.Fatalf("write dashboard: %v", err)
	}
	if err := os.WriteFile(sources, []byte(testDatasources), 0o644); err != nil {
		t.Fatalf("write datasources: %v", err)
	}
	return board, sources
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("execute %v: %v\nstderr: %s", args, err, stderr.String())
	}
	return stdout.String()
}

func TestResolveJSON(t *testing.T) {
	board, sources := writeFixtures(t)
	raw := execute(t, "resolve", "-f", board, "-d", sources, "--url", "?var-region=us", "--json", "--log-level", "off")

	var out resolveOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("decode output: %v\n%s", err, raw)
	}
	want := []variableOutput{
		{Name: "region", Type: "query", Status: "ready", Text: "us", Value: "us", Options: []string{"eu", "us"}},
		{Name: "host", Type: "query", Status: "ready", Text: "us-1", Value: "us-1", Options: []string{"us-1"}},
		{Name: "filter", Type: "textbox", Status: "ready", Text: "err", Value: "err", Options: []string{"err"}},
	}
	if diff := cmp.Diff(want, out.Variables); diff != "" {
		t.Fatalf("variables mismatch (-want +got):\n%s", diff)
	}
	if out.Query != "var-filter=err&var-host=us-1&var-region=us" {
		t.Fatalf("unexpected query %q", out.Query)
	}
}

func TestResolveTable(t *testing.T) {
	board, sources := writeFixtures(t)
	out := execute(t, "resolve", "-f", board, "-d", sources, "--log-level", "off")
	if !strings.Contains(out, "NAME") || !strings.Contains(out, "eu-1") {
		t.Fatalf("unexpected table output:\n%s", out)
	}
	if !strings.HasSuffix(strings.TrimSpace(out), "?var-filter=err&var-host=eu-1&var-region=eu") {
		t.Fatalf("expected url query at the end:\n%s", out)
	}
}

func TestResolveSave(t *testing.T) {
	board, sources := writeFixtures(t)
	execute(t, "resolve", "-f", board, "-d", sources, "--url", "var-host=eu-2", "--save", "--log-level", "off")

	data, err := os.ReadFile(board)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	doc, err := dashboard.Parse(board, data)
	if err != nil {
		t.Fatalf("parse saved: %v", err)
	}
	if doc.Version != 1 || doc.Extra["refresh"] != "5s" {
		t.Fatalf("unexpected saved document %+v", doc)
	}
	current, _ := doc.Templating.List[1]["current"].(map[string]any)
	if current["value"] != "eu-2" {
		t.Fatalf("expected saved host selection, got %v", doc.Templating.List[1]["current"])
	}
}

func TestLoadConfig(t *testing.T) {
	_, sources := writeFixtures(t)
	cfg, err := loadConfig(sources)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ds, err := cfg.provider().Datasource("")
	if err != nil {
		t.Fatalf("default datasource: %v", err)
	}
	values, err := ds.Query(context.Background(), " regions ")
	if err != nil || len(values) != 2 {
		t.Fatalf("unexpected query result %v %v", values, err)
	}
	if _, err := ds.Query(context.Background(), "nope"); err == nil {
		t.Fatalf("expected unknown query error")
	}

	bad := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(bad, []byte("datasorces = 1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadConfig(bad); err == nil || !strings.Contains(err.Error(), "unknown key") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestSchemaCommand(t *testing.T) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(execute(t, "schema")), &doc); err != nil {
		t.Fatalf("decode schema: %v", err)
	}
	schemas := doc["components"].(map[string]any)["schemas"].(map[string]any)
	if _, ok := schemas["query_variable"]; !ok {
		t.Fatalf("expected query component, got %v", schemas)
	}
}

func TestTypesCommand(t *testing.T) {
	out := execute(t, "types")
	for _, tag := range []string{"custom", "query", "constant", "textbox", "global", "expression"} {
		if !strings.Contains(out, tag) {
			t.Fatalf("expected %q listed:\n%s", tag, out)
		}
	}
}
