// File: internal/locator/descriptor.go
package locator

import "errors"

// ErrMalformedLocator is returned by Parse for empty input. Every non-empty
// string parses to some descriptor.
var ErrMalformedLocator = errors.New("locator string cannot be empty")

// ErrUnsupportedConversion is returned by ToPredicate when a descriptor has
// no structural-search equivalent (e.g. regex-valued semantic locators).
var ErrUnsupportedConversion = errors.New("locator has no structural equivalent")

// Kind identifies a locator strategy. The first block covers classic
// attribute/position addressing, the second the semantic role/content
// dialect.
type Kind int

const (
	KindCSS Kind = iota
	KindXPath
	KindID
	KindName
	KindClassName
	KindTagName
	KindLinkText
	KindPartialLinkText

	KindRole
	KindLabel
	KindPlaceholder
	KindText
	KindAltText
	KindTitle
	KindTestID
)

var kindDisplayNames = map[Kind]string{
	KindCSS:             "CSS Selector",
	KindXPath:           "XPath",
	KindID:              "ID",
	KindName:            "Name",
	KindClassName:       "Class Name",
	KindTagName:         "Tag Name",
	KindLinkText:        "Link Text",
	KindPartialLinkText: "Partial Link Text",
	KindRole:            "Get By Role",
	KindLabel:           "Get By Label",
	KindPlaceholder:     "Get By Placeholder",
	KindText:            "Get By Text",
	KindAltText:         "Get By Alt Text",
	KindTitle:           "Get By Title",
	KindTestID:          "Get By Test ID",
}

var kindReportNames = map[Kind]string{
	KindCSS:             "css_selector",
	KindXPath:           "xpath",
	KindID:              "id",
	KindName:            "name",
	KindClassName:       "class_name",
	KindTagName:         "tag_name",
	KindLinkText:        "link_text",
	KindPartialLinkText: "partial_link_text",
	KindRole:            "get_by_role",
	KindLabel:           "get_by_label",
	KindPlaceholder:     "get_by_placeholder",
	KindText:            "get_by_text",
	KindAltText:         "get_by_alt_text",
	KindTitle:           "get_by_title",
	KindTestID:          "get_by_test_id",
}

// DisplayName is the human-readable name used in logs and reports.
func (k Kind) DisplayName() string {
	if n, ok := kindDisplayNames[k]; ok {
		return n
	}
	return "Unknown"
}

// ReportName is the snake_case form used in machine-readable output and
// cache keys.
func (k Kind) ReportName() string {
	if n, ok := kindReportNames[k]; ok {
		return n
	}
	return "unknown"
}

func (k Kind) String() string { return k.DisplayName() }

// IsSemantic reports whether the kind belongs to the role/content dialect.
func (k Kind) IsSemantic() bool { return k >= KindRole }

// FilterKind identifies a content filter chained onto a semantic locator.
type FilterKind int

const (
	FilterHasText FilterKind = iota
	FilterHasNotText
	FilterHas
	FilterHasNot
)

func (f FilterKind) String() string {
	switch f {
	case FilterHasText:
		return "hasText"
	case FilterHasNotText:
		return "hasNotText"
	case FilterHas:
		return "has"
	case FilterHasNot:
		return "hasNot"
	}
	return "unknown"
}

// Filter narrows a semantic locator by the presence or absence of text or a
// nested match. Value is either a literal or a delimited regex source,
// distinguished by IsRegex.
type Filter struct {
	Kind    FilterKind
	Value   string
	IsRegex bool
}

// Descriptor is the normalized form of a raw locator string of either
// dialect. It is immutable once built; Parse constructs one per raw string.
type Descriptor struct {
	Kind    Kind
	Value   string
	IsRegex bool
	// Options holds recognized modifiers of the base call, e.g. "name" and
	// "isRegex" for by-role, "exact" for by-text.
	Options map[string]string
	// Filters are content filters in source chain order.
	Filters []Filter
}

// Option returns the named option value, or "" when absent.
func (d *Descriptor) Option(name string) string {
	if d.Options == nil {
		return ""
	}
	return d.Options[name]
}

// NeedsHealingContext reports whether a locator of this kind benefits from a
// DOM snapshot when handed to the repair oracle. Structural strategies do;
// content-based ones carry their own anchor text.
func NeedsHealingContext(k Kind) bool {
	return k == KindCSS || k == KindXPath || k == KindID || k == KindName
}

// DetectionDescription renders a human-readable summary of a detection
// outcome for logs.
func DetectionDescription(raw string, k Kind) string {
	return "Auto-detected '" + raw + "' as " + k.DisplayName() + " locator"
}
