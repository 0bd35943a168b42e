package templating

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-templating/modelsync"
)

// globalOverlayKeys are the dashboard local keys of a global variable that
// take precedence over the shared template.
var globalOverlayKeys = []string{"type", "name", "label", "hide", "current", "templateId"}

func globalDefaults() Definition {
	return commonDefaults("global", Definition{
		"templateId": "",
	})
}

// constructGlobal fetches the shared template named by templateId, overlays
// the dashboard local keys and delegates the result to the query kind. The
// type tag stays "global" so the variable saves as one.
func constructGlobal(ctx context.Context, def Definition, collab Collaborators) (Construction, error) {
	if collab.Templates == nil {
		return Construction{}, ErrNoTemplateFetcher
	}
	id := strings.TrimSpace(fmt.Sprint(def["templateId"]))
	if def["templateId"] == nil || id == "" {
		return Construction{}, fmt.Errorf("templating: global variable %q has no templateId", def.Name())
	}

	template, err := collab.Templates.FetchTemplate(ctx, id)
	if err != nil {
		return Construction{}, fmt.Errorf("templating: fetch template %q: %w", id, err)
	}
	collab.Logger.Debug("fetched global template", "variable", def.Name(), "template", id)

	overlay := map[string]any{"type": "global"}
	for _, key := range globalOverlayKeys {
		if value, ok := def[key]; ok {
			overlay[key] = value
		}
	}
	merged := modelsync.MergeLayers(overlay, map[string]any(template))
	return Delegated("query", Definition(merged)), nil
}
