package templating

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// LiteralOptions splits query on commas and trims each segment. Segments are
// kept in order, empty ones included.
func LiteralOptions(query string) []Option {
	parts := strings.Split(query, ",")
	options := make([]Option, 0, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		options = append(options, Option{Text: value, Value: value})
	}
	return options
}

// ValueOptions turns raw values into options with matching text.
func ValueOptions(values []string) []Option {
	options := make([]Option, 0, len(values))
	for _, value := range values {
		options = append(options, Option{Text: value, Value: value})
	}
	return options
}

func allOption() Option {
	return Option{Text: AllText, Value: AllValue}
}

// ensureAllOption places exactly one wildcard at index 0.
func ensureAllOption(options []Option) []Option {
	out := make([]Option, 0, len(options)+1)
	out = append(out, allOption())
	for _, option := range options {
		if option.IsAll() {
			continue
		}
		out = append(out, option)
	}
	return out
}

func withoutAllOption(options []Option) []Option {
	out := options[:0:0]
	for _, option := range options {
		if option.IsAll() {
			continue
		}
		out = append(out, option)
	}
	return out
}

// CompileRegex parses a filter pattern written either bare or as /re/flags.
// Supported flags are i, m and s; g is accepted and ignored.
func CompileRegex(pattern string) (*regexp.Regexp, error) {
	body := pattern
	flags := ""
	if len(pattern) > 1 && strings.HasPrefix(pattern, "/") {
		if end := strings.LastIndex(pattern, "/"); end > 0 {
			body = pattern[1:end]
			flags = pattern[end+1:]
		}
	}
	prefix := ""
	for _, flag := range flags {
		switch flag {
		case 'i', 'm', 's':
			prefix += string(flag)
		case 'g':
		default:
			return nil, fmt.Errorf("templating: unsupported regex flag %q in %q", flag, pattern)
		}
	}
	if prefix != "" {
		body = "(?" + prefix + ")" + body
	}
	re, err := regexp.Compile(body)
	if err != nil {
		return nil, fmt.Errorf("templating: regex %q: %w", pattern, err)
	}
	return re, nil
}

// FilterValues keeps the values matched by pattern. The named groups text
// and value, or else the first capture group, replace the matched value.
// Results are deduplicated by value. An empty pattern only deduplicates.
func FilterValues(values []string, pattern string) ([]Option, error) {
	var re *regexp.Regexp
	if pattern != "" {
		compiled, err := CompileRegex(pattern)
		if err != nil {
			return nil, err
		}
		re = compiled
	}

	seen := map[string]struct{}{}
	options := make([]Option, 0, len(values))
	for _, raw := range values {
		option := Option{Text: raw, Value: raw}
		if re != nil {
			match := re.FindStringSubmatch(raw)
			if match == nil {
				continue
			}
			option = optionFromMatch(re, match, raw)
		}
		if _, ok := seen[option.Value]; ok {
			continue
		}
		seen[option.Value] = struct{}{}
		options = append(options, option)
	}
	return options, nil
}

func optionFromMatch(re *regexp.Regexp, match []string, raw string) Option {
	text, value := "", ""
	for i, name := range re.SubexpNames() {
		switch name {
		case "text":
			text = match[i]
		case "value":
			value = match[i]
		}
	}
	if text == "" && value == "" && len(match) > 1 {
		value = match[1]
	}
	if value == "" && text == "" {
		value = raw
	}
	if value == "" {
		value = text
	}
	if text == "" {
		text = value
	}
	return Option{Text: text, Value: value}
}

var leadingNumber = regexp.MustCompile(`\d+`)

func numericKey(text string) int {
	match := leadingNumber.FindString(text)
	if match == "" {
		return -1
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return -1
	}
	return n
}

// SortOptions orders options by text according to mode. The sort is stable.
func SortOptions(options []Option, mode SortMode) []Option {
	out := append([]Option(nil), options...)
	var less func(a, b Option) bool
	switch mode {
	case SortAlphaAsc:
		less = func(a, b Option) bool { return a.Text < b.Text }
	case SortAlphaDesc:
		less = func(a, b Option) bool { return a.Text > b.Text }
	case SortNumericAsc:
		less = func(a, b Option) bool { return numericKey(a.Text) < numericKey(b.Text) }
	case SortNumericDesc:
		less = func(a, b Option) bool { return numericKey(a.Text) > numericKey(b.Text) }
	case SortAlphaInsensitiveAsc:
		less = func(a, b Option) bool { return strings.ToLower(a.Text) < strings.ToLower(b.Text) }
	case SortAlphaInsensitiveDesc:
		less = func(a, b Option) bool { return strings.ToLower(a.Text) > strings.ToLower(b.Text) }
	default:
		return out
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
