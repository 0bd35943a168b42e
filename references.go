package templating

import "regexp"

// referencePattern matches $name, ${name}, ${name:format} and [[name]] or
// [[name:format]].
var referencePattern = regexp.MustCompile(`\$(\w+)|\$\{(\w+)(?::(\w+))?\}|\[\[(\w+)(?::(\w+))?\]\]`)

type reference struct {
	name   string
	format string
}

func parseReference(groups []string) reference {
	switch {
	case groups[1] != "":
		return reference{name: groups[1]}
	case groups[2] != "":
		return reference{name: groups[2], format: groups[3]}
	default:
		return reference{name: groups[4], format: groups[5]}
	}
}

// References returns the variable names referenced by text in order of first
// appearance.
func References(text string) []string {
	var names []string
	seen := map[string]struct{}{}
	for _, groups := range referencePattern.FindAllStringSubmatch(text, -1) {
		ref := parseReference(groups)
		if _, ok := seen[ref.name]; ok {
			continue
		}
		seen[ref.name] = struct{}{}
		names = append(names, ref.name)
	}
	return names
}

// ReferencesVariable reports whether text references name.
func ReferencesVariable(text, name string) bool {
	if name == "" {
		return false
	}
	for _, groups := range referencePattern.FindAllStringSubmatch(text, -1) {
		if parseReference(groups).name == name {
			return true
		}
	}
	return false
}

// replaceReferences rewrites every reference with the result of fn.
func replaceReferences(text string, fn func(ref reference, match string) string) string {
	return referencePattern.ReplaceAllStringFunc(text, func(match string) string {
		groups := referencePattern.FindStringSubmatch(match)
		return fn(parseReference(groups), match)
	})
}
