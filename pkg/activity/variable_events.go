package activity

import (
	"strings"
	"time"
)

// VariableEventInput describes the common fields for template variable
// lifecycle events.
type VariableEventInput struct {
	ActorID        string
	UserID         string
	TenantID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	Dashboard      string
	Variable       string
	VariableType   string
	OldValue       any
	NewValue       any
	Options        int
	Err            error
	OccurredAt     time.Time
}

// BuildVariableValueChangedEvent constructs an event for a selection change.
func BuildVariableValueChangedEvent(input VariableEventInput) Event {
	return buildVariableEvent("variable.value.changed", "variable", input)
}

// BuildVariableOptionsRefreshedEvent constructs an event for a successful
// option refresh.
func BuildVariableOptionsRefreshedEvent(input VariableEventInput) Event {
	event := buildVariableEvent("variable.options.refreshed", "variable", input)
	event.Metadata = ensureMetadata(event.Metadata)
	event.Metadata["options"] = input.Options
	return event
}

// BuildVariableRefreshFailedEvent constructs an event for a failed refresh.
func BuildVariableRefreshFailedEvent(input VariableEventInput) Event {
	return buildVariableEvent("variable.refresh.failed", "variable", input)
}

// BuildDashboardSavedEvent constructs an event for a serialized dashboard.
func BuildDashboardSavedEvent(input VariableEventInput) Event {
	input.Variable = ""
	return buildVariableEvent("dashboard.saved", "dashboard", input)
}

func buildVariableEvent(verb, objectType string, input VariableEventInput) Event {
	metadata := cloneMap(input.Metadata)
	dashboard := strings.TrimSpace(input.Dashboard)
	variable := strings.TrimSpace(input.Variable)
	if dashboard != "" {
		metadata = ensureMetadata(metadata)
		metadata["dashboard"] = dashboard
	}
	if variable != "" {
		metadata = ensureMetadata(metadata)
		metadata["variable"] = variable
	}
	if input.VariableType != "" {
		metadata = ensureMetadata(metadata)
		metadata["variable_type"] = input.VariableType
	}
	if input.OldValue != nil {
		metadata = ensureMetadata(metadata)
		metadata["old_value"] = input.OldValue
	}
	if input.NewValue != nil {
		metadata = ensureMetadata(metadata)
		metadata["new_value"] = input.NewValue
	}
	if input.Err != nil {
		metadata = ensureMetadata(metadata)
		metadata["error"] = input.Err.Error()
	}

	recipients := input.Recipients
	if len(recipients) > 0 {
		recipients = append([]string{}, input.Recipients...)
	}

	objectID := variable
	switch {
	case objectID != "" && dashboard != "":
		objectID = dashboard + "/" + objectID
	case objectID == "":
		objectID = dashboard
	}
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:           verb,
		ActorID:        strings.TrimSpace(input.ActorID),
		UserID:         strings.TrimSpace(input.UserID),
		TenantID:       strings.TrimSpace(input.TenantID),
		ObjectType:     objectType,
		ObjectID:       objectID,
		Channel:        strings.TrimSpace(input.Channel),
		DefinitionCode: strings.TrimSpace(input.DefinitionCode),
		Recipients:     recipients,
		Metadata:       metadata,
		OccurredAt:     input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
