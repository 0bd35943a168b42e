package templating

import (
	"context"
	"errors"
	"testing"
)

func TestRegistryLastRegistrationWins(t *testing.T) {
	r := NewRegistry()
	r.Register(Descriptor{Type: "custom", Name: "First"})
	r.Register(Descriptor{Type: " custom ", Name: "Second"})

	desc, err := r.Resolve("custom")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if desc.Name != "Second" {
		t.Fatalf("expected second registration to win, got %q", desc.Name)
	}
	if got := r.Types(); len(got) != 1 || got[0] != "custom" {
		t.Fatalf("unexpected types %v", got)
	}
}

func TestRegistryIgnoresEmptyTag(t *testing.T) {
	r := NewRegistry()
	r.Register(Descriptor{Type: "  "})
	if len(r.Types()) != 0 {
		t.Fatalf("expected empty registry, got %v", r.Types())
	}
}

func TestRegistryResolveUnknownType(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve("adhoc")
	if !errors.Is(err, ErrUnknownVariableType) {
		t.Fatalf("expected ErrUnknownVariableType, got %v", err)
	}
	var typed *UnknownVariableTypeError
	if !errors.As(err, &typed) || typed.Type != "adhoc" {
		t.Fatalf("expected typed error for adhoc, got %v", err)
	}
}

func TestRegistryConstructUnknownTypeCarriesName(t *testing.T) {
	r := NewDefaultRegistry()
	_, err := r.Construct(context.Background(), Definition{"type": "adhoc", "name": "filters"}, Collaborators{})
	var typed *UnknownVariableTypeError
	if !errors.As(err, &typed) {
		t.Fatalf("expected UnknownVariableTypeError, got %v", err)
	}
	if typed.Name != "filters" || typed.Type != "adhoc" {
		t.Fatalf("unexpected error fields %+v", typed)
	}
}

func TestRegistryBuiltins(t *testing.T) {
	r := NewDefaultRegistry()
	want := []string{"constant", "custom", "expression", "global", "query", "textbox"}
	got := r.Types()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	for _, desc := range r.Descriptors() {
		if desc.Defaults.Type() != desc.Type {
			t.Fatalf("descriptor %q defaults carry type %q", desc.Type, desc.Defaults.Type())
		}
	}
}

func TestRegistryDelegationBuildsTargetKind(t *testing.T) {
	r := NewDefaultRegistry()
	r.Register(Descriptor{
		Type:     "preset",
		Defaults: Definition{"type": "preset", "name": "", "preset": ""},
		Construct: func(_ context.Context, def Definition, _ Collaborators) (Construction, error) {
			next := def.Clone()
			next["query"] = "a,b"
			return Delegated("custom", next), nil
		},
	})

	v, err := r.Construct(context.Background(), Definition{"type": "preset", "name": "p", "preset": "ab"}, Collaborators{})
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	if err := v.UpdateOptions(context.Background(), NewEnv()); err != nil {
		t.Fatalf("update options: %v", err)
	}
	if got := v.Snapshot().Values(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("expected delegated custom options, got %v", got)
	}
	if v.Type() != "preset" {
		t.Fatalf("expected type tag preserved, got %q", v.Type())
	}

	saved, err := v.SaveModel()
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved["preset"] != "ab" {
		t.Fatalf("expected delegating kind keys kept on save, got %v", saved)
	}
	if saved["query"] != "a,b" {
		t.Fatalf("expected target kind keys on save, got %v", saved)
	}
}

func TestRegistryDelegationDepthIsBounded(t *testing.T) {
	r := NewRegistry()
	r.Register(Descriptor{
		Type: "loop",
		Construct: func(_ context.Context, def Definition, _ Collaborators) (Construction, error) {
			return Delegated("loop", def), nil
		},
	})
	if _, err := r.Construct(context.Background(), Definition{"type": "loop", "name": "x"}, Collaborators{}); err == nil {
		t.Fatalf("expected delegation loop to fail")
	}
}
