// File: internal/locator/key_test.go
package locator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "css_selector|#submit-btn|login button",
		Key(KindCSS, "#submit-btn", "login button"))
	assert.Equal(t, "get_by_role|getByRole('button')|",
		Key(KindRole, "getByRole('button')", ""))
}

func TestContextualKey_PartOrder(t *testing.T) {
	ctx := &ElementContext{
		ParentContainer: "checkout-form",
		RelativePos:     &Position{X: 120, Y: 480},
		SiblingElements: []string{"qty-input", "remove-btn"},
	}
	got := ContextualKey("#buy", "buy button", ctx)
	assert.Equal(t, "#buy|buy button|parent:checkout-form|pos:120,480|siblings:qty-input,remove-btn", got)
}

func TestContextualKey_PartialContext(t *testing.T) {
	// Absent parts are omitted entirely, never left as empty segments.
	assert.Equal(t, "#a|b", ContextualKey("#a", "b", nil))
	assert.Equal(t, "#a|b", ContextualKey("#a", "b", &ElementContext{}))
	assert.Equal(t, "#a|b|pos:0,3",
		ContextualKey("#a", "b", &ElementContext{RelativePos: &Position{Y: 3}}))
	assert.Equal(t, "#a|b|siblings:x",
		ContextualKey("#a", "b", &ElementContext{SiblingElements: []string{"x"}}))
}

func TestContextualKey_Deterministic(t *testing.T) {
	ctx := &ElementContext{ParentContainer: "nav", SiblingElements: []string{"s1", "s2"}}
	first := ContextualKey("#x", "d", ctx)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ContextualKey("#x", "d", ctx))
	}
}
