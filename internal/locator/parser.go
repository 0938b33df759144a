// File: internal/locator/parser.go
package locator

import (
	"regexp"
	"strings"
)

// Matchers for the semantic dialect. One tagged variant per call-form, run
// waterfall-style: each either produces a descriptor or passes. Values are
// literal strings or delimited regex sources (/pattern/flags).
var (
	roleRe = regexp.MustCompile(
		`^getByRole\(\s*['"]([^'"]+)['"]\s*(?:,\s*\{\s*name:\s*(?:['"]([^'"]*)['"]|(/[^/]*/[a-zA-Z]*))\s*\})?\s*\)$`)
	textRe = regexp.MustCompile(
		`^getByText\(\s*(?:['"]([^'"]*)['"]|(/[^/]*/[a-zA-Z]*))\s*(?:,\s*\{\s*exact:\s*(true|false)\s*\})?\s*\)$`)
	filterRe = regexp.MustCompile(
		`\.filter\(\{\s*(hasText|hasNotText|has|hasNot):\s*(?:['"]([^'"]*)['"]|(/[^/]*/[a-zA-Z]*))\s*\}\)`)
	filterStripRe = regexp.MustCompile(`\.filter\(\{[^}]*\}\)`)
)

// simpleCallRe builds the matcher for the single-argument call-forms.
func simpleCallRe(fn string) *regexp.Regexp {
	return regexp.MustCompile(`^` + fn + `\(\s*(?:['"]([^'"]*)['"]|(/[^/]*/[a-zA-Z]*))\s*\)$`)
}

var simpleCalls = []struct {
	kind Kind
	re   *regexp.Regexp
}{
	{KindLabel, simpleCallRe("getByLabel")},
	{KindPlaceholder, simpleCallRe("getByPlaceholder")},
	{KindAltText, simpleCallRe("getByAltText")},
	{KindTitle, simpleCallRe("getByTitle")},
	{KindTestID, simpleCallRe("getByTestId")},
}

// Parse normalizes a raw locator string of either dialect into a Descriptor.
// Only empty input fails; anything unrecognized falls through to classic
// detection, which itself never fails.
func Parse(raw string) (*Descriptor, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, ErrMalformedLocator
	}

	// Extracted selectors sometimes arrive wrapped like
	// locator("getByRole('button', { name: 'X' })").
	trimmed = unwrapLocator(trimmed)

	// Filters apply to whichever base call-form matches, so pull them off
	// first, in chain order.
	filters := extractFilters(trimmed)
	base := strings.TrimSpace(filterStripRe.ReplaceAllString(trimmed, ""))

	if d := parseSemantic(base); d != nil {
		d.Filters = filters
		return d, nil
	}

	// Explicit dialect prefixes.
	if strings.HasPrefix(base, "xpath=") {
		return &Descriptor{Kind: KindXPath, Value: strings.TrimSpace(base[len("xpath="):]), Filters: filters}, nil
	}
	if strings.HasPrefix(base, "//") || strings.HasPrefix(base, "(//") {
		return &Descriptor{Kind: KindXPath, Value: base, Filters: filters}, nil
	}
	if strings.HasPrefix(base, "css:") {
		return &Descriptor{Kind: KindCSS, Value: strings.TrimSpace(base[len("css:"):]), Filters: filters}, nil
	}

	return &Descriptor{Kind: DetectKind(base), Value: base, Filters: filters}, nil
}

// MustParse is a convenience for tests and fixed literals.
func MustParse(raw string) *Descriptor {
	d, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return d
}

func unwrapLocator(s string) string {
	if strings.HasPrefix(s, `locator("`) && strings.HasSuffix(s, `")`) {
		return s[len(`locator("`) : len(s)-2]
	}
	if strings.HasPrefix(s, `locator('`) && strings.HasSuffix(s, `')`) {
		return s[len(`locator('`) : len(s)-2]
	}
	return s
}

func extractFilters(s string) []Filter {
	var filters []Filter
	for _, m := range filterRe.FindAllStringSubmatch(s, -1) {
		var kind FilterKind
		switch m[1] {
		case "hasText":
			kind = FilterHasText
		case "hasNotText":
			kind = FilterHasNotText
		case "has":
			kind = FilterHas
		case "hasNot":
			kind = FilterHasNot
		default:
			continue
		}
		if m[3] != "" {
			filters = append(filters, Filter{Kind: kind, Value: m[3], IsRegex: true})
		} else {
			filters = append(filters, Filter{Kind: kind, Value: m[2]})
		}
	}
	return filters
}

func parseSemantic(base string) *Descriptor {
	if m := roleRe.FindStringSubmatch(base); m != nil {
		d := &Descriptor{Kind: KindRole, Value: strings.TrimSpace(m[1])}
		switch {
		case m[3] != "":
			d.Options = map[string]string{"name": m[3], "isRegex": "true"}
		case m[2] != "":
			d.Options = map[string]string{"name": m[2], "isRegex": "false"}
		}
		return d
	}

	if m := textRe.FindStringSubmatch(base); m != nil {
		d := &Descriptor{Kind: KindText}
		if m[2] != "" {
			d.Value = m[2]
			d.IsRegex = true
		} else {
			d.Value = m[1]
			if m[3] == "true" {
				d.Options = map[string]string{"exact": "true"}
			}
		}
		return d
	}

	for _, c := range simpleCalls {
		if m := c.re.FindStringSubmatch(base); m != nil {
			d := &Descriptor{Kind: c.kind}
			if m[2] != "" {
				d.Value = m[2]
				d.IsRegex = true
			} else {
				d.Value = m[1]
			}
			return d
		}
	}
	return nil
}
