// File: internal/locator/detect.go
package locator

import (
	"regexp"
	"strings"
)

// Detection patterns, in waterfall order. First match wins; nothing here
// ever fails, the last step is an unconditional fallback.
var (
	xpathPrefixRe   = regexp.MustCompile(`^(//|/|\./|\.\./)`)
	cssIDRe         = regexp.MustCompile(`^#[a-zA-Z][a-zA-Z0-9_-]*$`)
	cssClassRe      = regexp.MustCompile(`^\.[a-zA-Z][a-zA-Z0-9_-]*$`)
	cssAttributeRe  = regexp.MustCompile(`\[.*=.*\]`)
	cssPseudoRe     = regexp.MustCompile(`:`)
	cssCombinatorRe = regexp.MustCompile(`[>+~]`)
	cssMarkerRe     = regexp.MustCompile(`[#.]`)
	identifierRe    = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)
	// Characters a human-readable link text would not contain.
	selectorPunctRe = regexp.MustCompile(`[#.\[\]@/]`)
)

// htmlTags is the fixed HTML tag-name vocabulary used for bare tag
// detection.
var htmlTags = map[string]struct{}{}

func init() {
	for _, t := range strings.Fields(
		"a abbr address area article aside audio b base bdi bdo big blockquote body br button canvas " +
			"caption cite code col colgroup data datalist dd del details dfn dialog div dl dt em embed " +
			"fieldset figcaption figure footer form h1 h2 h3 h4 h5 h6 head header hr html i iframe img " +
			"input ins kbd label legend li link main map mark meta meter nav noscript object ol optgroup " +
			"option output p param picture pre progress q rp rt ruby s samp script section select small " +
			"source span strong style sub summary sup svg table tbody td textarea tfoot th thead time " +
			"title tr track u ul var video wbr") {
		htmlTags[t] = struct{}{}
	}
}

// linkAffordanceWords are substrings that make a bare string look like the
// visible text of a link or button.
var linkAffordanceWords = []string{
	"click", "here", "more", "read", "view", "login", "logout", "sign",
	"register", "home", "about", "contact", "help", "support",
}

// DetectKind classifies an un-annotated classic-dialect string. The
// waterfall is ordered and has no backtracking; an unclassifiable string
// falls through to the name-attribute strategy rather than failing.
func DetectKind(raw string) Kind {
	s := strings.TrimSpace(raw)
	if s == "" {
		return KindName
	}

	// 1. XPath prefixes.
	if xpathPrefixRe.MatchString(s) {
		return KindXPath
	}

	// 2-3. Bare CSS id/class forms.
	if cssIDRe.MatchString(s) || cssClassRe.MatchString(s) {
		return KindCSS
	}

	// 4. Anything with CSS structure: attribute selectors, pseudo-classes,
	// combinators, or #/. markers embedded in a longer expression.
	if cssAttributeRe.MatchString(s) || cssPseudoRe.MatchString(s) ||
		cssCombinatorRe.MatchString(s) || cssMarkerRe.MatchString(s) {
		return KindCSS
	}

	// 5. Bare HTML tag names.
	if _, ok := htmlTags[strings.ToLower(s)]; ok {
		return KindTagName
	}

	// 6. Human-readable link text.
	if isLikelyLinkText(s) {
		return KindLinkText
	}

	// 7. Simple identifiers default to the id attribute.
	if identifierRe.MatchString(s) {
		return KindID
	}

	// 8. Last resort: name attribute.
	return KindName
}

func isLikelyLinkText(s string) bool {
	if strings.Contains(s, " ") {
		return true
	}
	lower := strings.ToLower(s)
	for _, w := range linkAffordanceWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	// Long text free of selector punctuation reads as link text too.
	return len(lower) > 15 && !selectorPunctRe.MatchString(lower)
}
