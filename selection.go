package templating

// Selection is the option list and current value of a variable. Kinds embed
// it in their persisted model, so its fields map onto top level definition
// keys.
type Selection struct {
	Current    Current  `json:"current"`
	Options    []Option `json:"options"`
	IncludeAll bool     `json:"includeAll"`
	AllValue   string   `json:"allValue"`
	Multi      bool     `json:"multi"`
}

// Validate keeps Current when its value names an option, refreshing the text
// from that option. Otherwise it falls back to the first option, which is the
// wildcard when IncludeAll is set. With no options Current is cleared. Only
// the chosen option is marked Selected.
func (s *Selection) Validate() {
	if len(s.Options) == 0 {
		s.Current = Current{}
		return
	}
	index := s.indexOf(s.Current.Value)
	if index < 0 {
		index = 0
	}
	s.Current = Current{Text: s.Options[index].Text, Value: s.Options[index].Value}
	s.mark(index)
}

// Select adopts option when its value is one of the options.
func (s *Selection) Select(option Option) error {
	index := s.indexOf(option.Value)
	if index < 0 {
		return ErrUnknownOption
	}
	s.Current = Current{Text: s.Options[index].Text, Value: s.Options[index].Value}
	s.mark(index)
	return nil
}

// SelectFromURL adopts raw as the current value. An exact value match wins;
// "All" selects the wildcard when IncludeAll is set. Anything else is taken
// verbatim and left for the next option pass to validate.
func (s *Selection) SelectFromURL(raw string) {
	if index := s.indexOf(raw); index >= 0 {
		s.Current = Current{Text: s.Options[index].Text, Value: s.Options[index].Value}
		s.mark(index)
		return
	}
	if raw == AllText && s.IncludeAll {
		s.Current = Current{Text: AllText, Value: AllValue}
		if index := s.indexOf(AllValue); index >= 0 {
			s.mark(index)
		}
		return
	}
	s.Current = Current{Text: raw, Value: raw}
	s.mark(-1)
}

// ValueForURL returns the URL form of Current: "All" for the wildcard,
// otherwise the value itself.
func (s *Selection) ValueForURL() string {
	if s.Current.IsAll() {
		return AllText
	}
	return s.Current.Value
}

// SetOptions replaces the option list, adds the wildcard when IncludeAll is
// set, and validates Current against the result.
func (s *Selection) SetOptions(options []Option) {
	next := make([]Option, 0, len(options)+1)
	for _, option := range options {
		option.Selected = false
		next = append(next, option)
	}
	if s.IncludeAll {
		next = ensureAllOption(next)
	} else {
		next = withoutAllOption(next)
	}
	s.Options = next
	s.Validate()
}

// Values returns the option values excluding the wildcard.
func (s Selection) Values() []string {
	values := make([]string, 0, len(s.Options))
	for _, option := range s.Options {
		if option.IsAll() {
			continue
		}
		values = append(values, option.Value)
	}
	return values
}

// clone returns a copy that shares no slices with s.
func (s Selection) clone() Selection {
	out := s
	if s.Options != nil {
		out.Options = append([]Option(nil), s.Options...)
	}
	return out
}

func (s *Selection) indexOf(value string) int {
	for i, option := range s.Options {
		if option.Value == value {
			return i
		}
	}
	return -1
}

func (s *Selection) mark(index int) {
	for i := range s.Options {
		s.Options[i].Selected = i == index
	}
}
