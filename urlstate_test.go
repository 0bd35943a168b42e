package templating

import (
	"context"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func urlDefinitions() []Definition {
	return []Definition{
		{"type": "custom", "name": "region", "query": "eu,us", "includeAll": true},
		{"type": "query", "name": "host", "query": "hosts($region)"},
		{"type": "constant", "name": "prefix", "query": "prod"},
		{"type": "textbox", "name": "filter", "query": "err"},
	}
}

func urlSource() *fakeSource {
	return newFakeSource(map[string][]string{
		"hosts({eu,us})": {"eu-1", "us-1"},
		"hosts(eu)":      {"eu-1", "eu-2"},
		"hosts(us)":      {"us-1"},
	})
}

func TestServiceURLValues(t *testing.T) {
	svc := newTestService(t, urlSource(), urlDefinitions())

	want := url.Values{
		"var-region": {AllText},
		"var-host":   {"eu-1"},
		"var-prefix": {"prod"},
		"var-filter": {"err"},
	}
	if diff := cmp.Diff(want, svc.URLValues()); diff != "" {
		t.Fatalf("url values mismatch (-want +got):\n%s", diff)
	}
}

func TestServiceApplyURLRefreshesDependents(t *testing.T) {
	src := urlSource()
	svc := newTestService(t, src, urlDefinitions())
	src.takeLog()

	values := url.Values{}
	values.Set(URLParam("region"), "eu")
	values.Set(URLParam("host"), "eu-2")
	values.Set(URLParam("filter"), "timeout")
	values.Set(URLParam("unknown"), "ignored")
	if err := svc.ApplyURL(context.Background(), values); err != nil {
		t.Fatalf("apply url: %v", err)
	}

	if diff := cmp.Diff([]string{"start hosts(eu)", "end hosts(eu)"}, src.takeLog()); diff != "" {
		t.Fatalf("refresh mismatch (-want +got):\n%s", diff)
	}
	got := svc.URLValues()
	if got.Get("var-region") != "eu" || got.Get("var-host") != "eu-2" || got.Get("var-filter") != "timeout" {
		t.Fatalf("unexpected url state %v", got)
	}
}

func TestServiceURLRoundTrip(t *testing.T) {
	svc := newTestService(t, urlSource(), urlDefinitions())
	before := svc.URLValues()

	other := newTestService(t, urlSource(), urlDefinitions())
	if err := other.SetValue(context.Background(), "region", Option{Value: "us"}); err != nil {
		t.Fatalf("set value: %v", err)
	}
	if err := other.ApplyURL(context.Background(), before); err != nil {
		t.Fatalf("apply url: %v", err)
	}
	if diff := cmp.Diff(before, other.URLValues()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestServiceApplyURLAdHocValue(t *testing.T) {
	svc := newTestService(t, urlSource(), urlDefinitions())
	values := url.Values{URLParam("host"): {"not-listed"}}
	if err := svc.ApplyURL(context.Background(), values); err != nil {
		t.Fatalf("apply url: %v", err)
	}
	if got := currentOf(t, svc, "host"); got != (Current{Text: "not-listed", Value: "not-listed"}) {
		t.Fatalf("expected ad hoc value accepted, got %+v", got)
	}
}
