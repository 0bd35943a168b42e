package dashboard_test

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-hclog"

	templating "github.com/goliatone/go-templating"
	"github.com/goliatone/go-templating/dashboard"
	"github.com/goliatone/go-templating/pkg/state"
)

var hosts = templating.DatasourceFunc(func(_ context.Context, query string) ([]string, error) {
	switch query {
	case "hosts(eu)":
		return []string{"eu-1", "eu-2"}, nil
	case "hosts(us)":
		return []string{"us-1"}, nil
	}
	return nil, errors.New("unknown query " + query)
})

func opsDocument() dashboard.Document {
	return dashboard.Document{
		UID:   "ops",
		Title: "Ops",
		Templating: dashboard.Templating{List: []templating.Definition{
			{"type": "custom", "name": "region", "query": "eu,us"},
			{"type": "query", "name": "host", "query": "hosts($region)"},
			{"type": "sparkline", "name": "legacy", "keep": "me"},
		}},
		Annotations: dashboard.Annotations{List: []map[string]any{
			{"name": "Deploys", "enable": false, "builtIn": 1},
		}},
		Extra: map[string]any{"refresh": "5s"},
	}
}

func newService(t *testing.T) *templating.Service {
	t.Helper()
	return templating.NewService(nil,
		templating.WithDatasources(templating.Datasources{templating.DefaultDatasource: hosts}),
		templating.WithLogger(hclog.New(&hclog.LoggerOptions{Name: t.Name(), Level: hclog.Off})),
		templating.WithDashboard("ops"),
	)
}

func openOps(t *testing.T) (state.Repository[dashboard.Document], *dashboard.Session) {
	t.Helper()
	repo := dashboard.NewRepository(state.NewMemoryStore[dashboard.Document]())
	ref, _, err := dashboard.Create(context.Background(), repo, opsDocument())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	session, err := dashboard.Open(context.Background(), repo, ref, newService(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return repo, session
}

func TestSessionOpenResolvesVariables(t *testing.T) {
	_, session := openOps(t)

	want := url.Values{"var-region": {"eu"}, "var-host": {"eu-1"}}
	if diff := cmp.Diff(want, session.URLValues()); diff != "" {
		t.Fatalf("url values mismatch (-want +got):\n%s", diff)
	}
	if err := session.LoadErr(); err == nil || !strings.Contains(err.Error(), "sparkline") {
		t.Fatalf("expected unknown kind reported, got %v", err)
	}
	anns := session.Annotations()
	if len(anns) != 1 || anns[0].Name != "Deploys" || anns[0].Enable {
		t.Fatalf("unexpected annotations %+v", anns)
	}
}

func TestSessionSaveRoundTrip(t *testing.T) {
	repo, session := openOps(t)
	values := url.Values{"var-region": {"us"}}
	if err := session.ApplyURL(context.Background(), values); err != nil {
		t.Fatalf("apply url: %v", err)
	}

	saved, err := session.Save(context.Background())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.Version != 1 || saved.Extra["refresh"] != "5s" {
		t.Fatalf("unexpected saved document %+v", saved)
	}
	if session.Meta().ETag != "2" {
		t.Fatalf("expected second revision, got %q", session.Meta().ETag)
	}

	stored, _, err := repo.Get(context.Background(), state.Ref{Domain: dashboard.Domain, UID: "ops"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	list := stored.Templating.List
	if len(list) != 3 {
		t.Fatalf("expected three variables, got %d", len(list))
	}
	if diff := cmp.Diff(map[string]any{"text": "us-1", "value": "us-1"}, list[1]["current"]); diff != "" {
		t.Fatalf("host current mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(templating.Definition{"type": "sparkline", "name": "legacy", "keep": "me"}, list[2]); diff != "" {
		t.Fatalf("disabled variable changed (-want +got):\n%s", diff)
	}
	if stored.Annotations.List[0]["builtIn"] != 1 {
		t.Fatalf("expected foreign annotation key kept, got %v", stored.Annotations.List[0])
	}

	reopened, err := dashboard.Open(context.Background(), repo, state.Ref{UID: "ops"}, newService(t))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := reopened.URLValues().Get("var-host"); got != "us-1" {
		t.Fatalf("expected persisted host, got %q", got)
	}
}

func TestSessionSaveDetectsConcurrentWrite(t *testing.T) {
	repo, first := openOps(t)
	second, err := dashboard.Open(context.Background(), repo, state.Ref{UID: "ops"}, newService(t))
	if err != nil {
		t.Fatalf("open second: %v", err)
	}

	if _, err := second.Save(context.Background()); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if _, err := first.Save(context.Background()); !errors.Is(err, state.ErrETagMismatch) {
		t.Fatalf("expected ErrETagMismatch, got %v", err)
	}
}

func TestOpenMissingDashboard(t *testing.T) {
	repo := dashboard.NewRepository(state.NewMemoryStore[dashboard.Document]())
	_, err := dashboard.Open(context.Background(), repo, state.Ref{UID: "nope"}, newService(t))
	if !errors.Is(err, state.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
