package domain

// DefaultTitle is used when no language carries a value.
const DefaultTitle = "Untitled"

// MultiLanguage holds localized text values keyed by language.
type MultiLanguage map[Language][]string

// LanguagePolicy decides which localized value is displayed.
type LanguagePolicy struct {
	Enabled  []Language
	Primary  Language
	Fallback Language
}

// Add appends a non-empty value for a language.
func (m MultiLanguage) Add(lang Language, value string) {
	if value == "" {
		return
	}
	m[lang] = append(m[lang], value)
}

// Resolve picks the display value: primary language, then fallback language,
// then the first value of any language (in declaration order), then def.
func (m MultiLanguage) Resolve(p LanguagePolicy, def string) string {
	if v := first(m[p.Primary]); v != "" {
		return v
	}
	if v := first(m[p.Fallback]); v != "" {
		return v
	}
	for _, lang := range AllLanguages {
		if v := first(m[lang]); v != "" {
			return v
		}
	}
	return def
}

// Flatten returns every value across all languages in declaration order.
func (m MultiLanguage) Flatten() []string {
	var out []string
	for _, lang := range AllLanguages {
		for _, v := range m[lang] {
			if v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// IsEmpty reports whether no language carries a value.
func (m MultiLanguage) IsEmpty() bool {
	return len(m.Flatten()) == 0
}

func first(values []string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
