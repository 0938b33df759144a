// File: internal/locator/xpath.go
package locator

import (
	"fmt"
	"strings"
)

// Strategy is the lookup mechanism an execution backend understands.
type Strategy int

const (
	StrategyCSS Strategy = iota
	StrategyXPath
)

func (s Strategy) String() string {
	if s == StrategyCSS {
		return "css"
	}
	return "xpath"
}

// Predicate is the structural-search form of a descriptor, ready for an
// execution backend.
type Predicate struct {
	Strategy   Strategy
	Expression string
}

// ToPredicate converts a descriptor into an executable predicate. Semantic
// kinds become XPath expressions; classic kinds map onto their native
// strategy. Combinations with no structural equivalent (regex values, nested
// has/hasNot filters with regex values) return ErrUnsupportedConversion.
func ToPredicate(d *Descriptor) (Predicate, error) {
	if d == nil {
		return Predicate{}, fmt.Errorf("nil descriptor: %w", ErrUnsupportedConversion)
	}
	if d.IsRegex {
		return Predicate{}, fmt.Errorf("regex value %q: %w", d.Value, ErrUnsupportedConversion)
	}

	base, err := basePredicate(d)
	if err != nil {
		return Predicate{}, err
	}

	if len(d.Filters) == 0 {
		return base, nil
	}
	if base.Strategy != StrategyXPath {
		return Predicate{}, fmt.Errorf("content filters on %s locator: %w", d.Kind.ReportName(), ErrUnsupportedConversion)
	}
	expr := base.Expression
	for _, f := range d.Filters {
		p, err := filterPredicate(f)
		if err != nil {
			return Predicate{}, err
		}
		expr += "[" + p + "]"
	}
	return Predicate{Strategy: StrategyXPath, Expression: expr}, nil
}

func basePredicate(d *Descriptor) (Predicate, error) {
	v := strings.TrimSpace(d.Value)

	switch d.Kind {
	case KindCSS:
		return Predicate{StrategyCSS, v}, nil
	case KindXPath:
		return Predicate{StrategyXPath, v}, nil
	case KindID:
		return Predicate{StrategyXPath, "//*[@id=" + EscapeXPathLiteral(v) + "]"}, nil
	case KindName:
		return Predicate{StrategyXPath, "//*[@name=" + EscapeXPathLiteral(v) + "]"}, nil
	case KindClassName:
		return Predicate{StrategyCSS, "." + v}, nil
	case KindTagName:
		return Predicate{StrategyCSS, v}, nil
	case KindLinkText:
		return Predicate{StrategyXPath, "//a[normalize-space(.)=" + EscapeXPathLiteral(v) + "]"}, nil
	case KindPartialLinkText:
		return Predicate{StrategyXPath, "//a[contains(normalize-space(.), " + EscapeXPathLiteral(v) + ")]"}, nil
	}

	esc := EscapeXPathLiteral(v)
	switch d.Kind {
	case KindText:
		return Predicate{StrategyXPath, "//*[normalize-space(.)=" + esc + "]"}, nil
	case KindLabel:
		return Predicate{StrategyXPath,
			"//label[normalize-space(.)=" + esc + "]/following::*[self::input or self::textarea or self::select][1]"}, nil
	case KindPlaceholder:
		return Predicate{StrategyXPath, "//*[@placeholder=" + esc + "]"}, nil
	case KindAltText:
		return Predicate{StrategyXPath, "//*[@alt=" + esc + "]"}, nil
	case KindTitle:
		return Predicate{StrategyXPath, "//*[@title=" + esc + "]"}, nil
	case KindTestID:
		return Predicate{StrategyXPath, "//*[@data-testid=" + esc + "]"}, nil
	case KindRole:
		if name := d.Option("name"); name != "" {
			if d.Option("isRegex") == "true" {
				return Predicate{}, fmt.Errorf("regex role name %q: %w", name, ErrUnsupportedConversion)
			}
			return Predicate{StrategyXPath,
				"//*[(self::" + v + " or @role=" + esc + ") and normalize-space(.)=" + EscapeXPathLiteral(name) + "]"}, nil
		}
		return Predicate{StrategyXPath, "//*[self::" + v + " or @role=" + esc + "]"}, nil
	}

	return Predicate{}, fmt.Errorf("kind %s: %w", d.Kind.ReportName(), ErrUnsupportedConversion)
}

func filterPredicate(f Filter) (string, error) {
	if f.IsRegex {
		return "", fmt.Errorf("regex filter value %q: %w", f.Value, ErrUnsupportedConversion)
	}
	esc := EscapeXPathLiteral(f.Value)
	switch f.Kind {
	case FilterHasText:
		return "contains(normalize-space(.), " + esc + ")", nil
	case FilterHasNotText:
		return "not(contains(normalize-space(.), " + esc + "))", nil
	case FilterHas:
		return ".//*[contains(normalize-space(.), " + esc + ")]", nil
	case FilterHasNot:
		return "not(.//*[contains(normalize-space(.), " + esc + ")])", nil
	}
	return "", fmt.Errorf("filter kind %d: %w", f.Kind, ErrUnsupportedConversion)
}

// EscapeXPathLiteral renders a string as a well-formed XPath 1.0 literal.
// XPath has no escape sequences, so a value containing both quote styles is
// decomposed into a concat() alternating quote style per character.
func EscapeXPathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}

	var b strings.Builder
	b.WriteString("concat(")
	for i, r := range s {
		if i > 0 {
			b.WriteString(",")
		}
		if r == '\'' {
			b.WriteString(`"'"`)
		} else {
			b.WriteString("'")
			b.WriteRune(r)
			b.WriteString("'")
		}
	}
	b.WriteString(")")
	return b.String()
}
