package rules

import (
	"regexp"

	"docverify/internal/verification/facts"
)

var placeholder = regexp.MustCompile(`\{([A-Za-z0-9_.:-]+)\}`)

// RenderMessage replaces {fact} placeholders with display values from m.
// Placeholders naming absent facts are left as written. Textual values that
// look like Aadhaar numbers are masked.
func RenderMessage(tmpl string, m *facts.Model) string {
	if tmpl == "" {
		return ""
	}
	return placeholder.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := match[1 : len(match)-1]
		if f, ok := m.Get(name); ok {
			if f.Kind().Textual() {
				return facts.MaskAadhaar(f.Display())
			}
			return f.Display()
		}
		return match
	})
}
