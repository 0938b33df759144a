// File: internal/locator/detect_test.go
package locator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Kind
	}{
		// XPath prefixes.
		{"absolute xpath", "//div[@id='main']", KindXPath},
		{"rooted xpath", "/html/body/div", KindXPath},
		{"relative xpath", "./span", KindXPath},
		{"parent xpath", "../td", KindXPath},

		// Bare CSS id/class forms.
		{"css id", "#submit-btn", KindCSS},
		{"css class", ".btn-primary", KindCSS},

		// CSS structure in longer expressions.
		{"attribute selector", `input[type="radio"]`, KindCSS},
		{"pseudo class", "li:first-child", KindCSS},
		{"combinator", "div > span", KindCSS},
		{"embedded marker", "div#main .content", KindCSS},

		// Bare HTML tag names.
		{"tag lowercase", "textarea", KindTagName},
		{"tag mixed case", "BUTTON", KindTagName},

		// Human-readable link text.
		{"multi word", "Read more", KindLinkText},
		{"affordance word", "Sign-In-Now", KindLinkText},
		{"long prose", "TermsAndConditionsPage", KindLinkText},

		// Identifier fallbacks.
		{"bare identifier", "xyz123", KindID},
		{"hyphenated identifier", "main-nav", KindID},

		// Last resort.
		{"leading digit", "5items", KindName},
		{"empty", "", KindName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectKind(tt.raw), "input %q", tt.raw)
		})
	}
}

func TestDetectKind_NeverSemantic(t *testing.T) {
	// Detection only classifies the classic dialect; semantic kinds come
	// from the call-form parser.
	for _, raw := range []string{"#a", "//b", "span", "Click here", "foo", "9x"} {
		assert.False(t, DetectKind(raw).IsSemantic(), "input %q", raw)
	}
}
