package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	templating "github.com/goliatone/go-templating"
	"github.com/goliatone/go-templating/annotations"
	"github.com/goliatone/go-templating/modelsync"
	"github.com/goliatone/go-templating/pkg/state"
)

// Session is one editing session of a stored dashboard. It owns the
// variables through a templating.Service and writes them back with the
// stored ETag, so a concurrent save makes Save fail with
// state.ErrETagMismatch.
type Session struct {
	repo    state.Repository[Document]
	ref     state.Ref
	service *templating.Service

	doc         Document
	meta        state.Meta
	annotations []*annotations.Model
	loadErr     error
}

// Open loads the dashboard at ref, hands its variables to service and
// resolves them. Variables that fail to load are disabled and reported by
// LoadErr; they do not fail Open.
func Open(ctx context.Context, repo state.Repository[Document], ref state.Ref, service *templating.Service) (*Session, error) {
	if service == nil {
		return nil, errors.New("dashboard: service is required")
	}
	if ref.Domain == "" {
		ref.Domain = Domain
	}
	doc, meta, err := repo.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	anns, err := annotations.LoadAll(doc.Annotations.List)
	if err != nil {
		return nil, fmt.Errorf("dashboard: annotations of %q: %w", ref.UID, err)
	}

	s := &Session{
		repo:        repo,
		ref:         ref,
		service:     service,
		doc:         doc,
		meta:        meta,
		annotations: anns,
	}
	s.loadErr = service.Load(ctx, doc.Templating.List)
	if err := service.Init(ctx); err != nil {
		return nil, fmt.Errorf("dashboard: init %q: %w", ref.UID, err)
	}
	return s, nil
}

// Service returns the service owning the session's variables.
func (s *Session) Service() *templating.Service {
	return s.service
}

// LoadErr reports the variables disabled on Open, or nil.
func (s *Session) LoadErr() error {
	return s.loadErr
}

// Document returns a copy of the document as last loaded or saved.
func (s *Session) Document() Document {
	return modelsync.Clone(s.doc)
}

// Meta returns the storage metadata of the last load or save.
func (s *Session) Meta() state.Meta {
	return s.meta
}

// Annotations returns the annotation queries of the dashboard.
func (s *Session) Annotations() []annotations.Fields {
	out := make([]annotations.Fields, 0, len(s.annotations))
	for _, m := range s.annotations {
		out = append(out, m.Fields)
	}
	return out
}

// URLValues returns the var-<name> parameters of the current selections.
func (s *Session) URLValues() url.Values {
	return s.service.URLValues()
}

// ApplyURL applies var-<name> parameters to the session.
func (s *Session) ApplyURL(ctx context.Context, values url.Values) error {
	return s.service.ApplyURL(ctx, values)
}

// Save projects variables and annotations back into the document and stores
// it, bumping its version.
func (s *Session) Save(ctx context.Context) (Document, error) {
	defs, err := s.service.SaveModel(ctx)
	if err != nil {
		return Document{}, err
	}
	anns, err := annotations.SaveAll(s.annotations)
	if err != nil {
		return Document{}, fmt.Errorf("dashboard: annotations of %q: %w", s.ref.UID, err)
	}

	doc, meta, err := s.repo.Mutate(ctx, s.ref, state.Meta{ETag: s.meta.ETag}, func(doc *Document) error {
		if doc.UID == "" {
			doc.UID = s.ref.UID
		}
		doc.Templating.List = defs
		doc.Annotations.List = anns
		doc.Version++
		return nil
	})
	if err != nil {
		return Document{}, fmt.Errorf("dashboard: save %q: %w", s.ref.UID, err)
	}
	s.doc = doc
	s.meta = meta
	return modelsync.Clone(doc), nil
}

// Create stores doc under its uid, replacing any stored version.
func Create(ctx context.Context, repo state.Repository[Document], doc Document) (state.Ref, state.Meta, error) {
	if err := Validate(doc); err != nil {
		return state.Ref{}, state.Meta{}, err
	}
	ref := state.Ref{Domain: Domain, UID: doc.UID}
	_, meta, err := repo.Mutate(ctx, ref, state.Meta{}, func(stored *Document) error {
		*stored = modelsync.Clone(doc)
		return nil
	})
	if err != nil {
		return state.Ref{}, state.Meta{}, err
	}
	return ref, meta, nil
}

// NewRepository returns a Repository over store that validates documents.
func NewRepository(store state.Store[Document]) state.Repository[Document] {
	return state.Repository[Document]{Store: store, Validate: Validate}
}
