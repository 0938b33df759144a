// File: internal/domopt/optimizer_test.go
package domopt

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/healbeacon/internal/config"
)

func testOptimizerConfig() config.OptimizerConfig {
	return config.OptimizerConfig{
		MaxChars:                    100_000,
		MaxTextLength:               120,
		MaxDepth:                    14,
		AttributeFrequencyThreshold: 2,
	}
}

func newTestOptimizer(t *testing.T, cfg config.OptimizerConfig) *Optimizer {
	t.Helper()
	return New(cfg, zap.NewNop())
}

func TestOptimize_EmptyInput(t *testing.T) {
	o := newTestOptimizer(t, testOptimizerConfig())

	for _, raw := range []string{"", "   ", "\n\t"} {
		res, err := o.Optimize(raw)
		require.NoError(t, err)
		assert.Empty(t, res.HTML)
		assert.Zero(t, res.OriginalElements)
		assert.Zero(t, res.ReductionPercent())
	}
}

func TestOptimize_RemovesNoiseTags(t *testing.T) {
	o := newTestOptimizer(t, testOptimizerConfig())

	res, err := o.Optimize(`<html><head>
		<script>alert(1)</script>
		<style>.x{color:red}</style>
		<meta charset="utf-8">
		<link rel="stylesheet" href="a.css">
	</head><body>
		<svg viewBox="0 0 1 1"></svg>
		<canvas id="c"></canvas>
		<noscript>enable js</noscript>
		<button id="go">Go</button>
		<!-- a comment -->
	</body></html>`)
	require.NoError(t, err)

	for _, tag := range []string{"<script", "<style", "<meta", "<link", "<svg", "<canvas", "<noscript", "<!--"} {
		assert.NotContains(t, res.HTML, tag)
	}
	assert.Contains(t, res.HTML, `<button id="go">`)
	assert.Less(t, res.OptimizedElements, res.OriginalElements)
}

func TestOptimize_AttributeFrequency(t *testing.T) {
	o := newTestOptimizer(t, testOptimizerConfig())

	// data-x appears once (below threshold, not always-keep); class appears
	// on many elements and is always-keep anyway; data-theme appears twice
	// and clears the threshold.
	var sb strings.Builder
	sb.WriteString(`<html><body><div data-x="once" data-theme="dark">first</div>`)
	sb.WriteString(`<div data-theme="dark">second</div>`)
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&sb, `<p class="row">row %d</p>`, i)
	}
	sb.WriteString(`</body></html>`)

	res, err := o.Optimize(sb.String())
	require.NoError(t, err)

	assert.NotContains(t, res.HTML, "data-x")
	assert.Contains(t, res.HTML, `data-theme="dark"`)
	assert.Contains(t, res.HTML, `class="row"`)
}

func TestOptimize_AlwaysKeepAttributes(t *testing.T) {
	o := newTestOptimizer(t, testOptimizerConfig())

	// Each appears exactly once, below the frequency threshold, yet every
	// one survives.
	res, err := o.Optimize(`<html><body>
		<input id="email" name="email" value="x">
		<div class="card" data-qa-marker="m1" data-testid="t1">hi</div>
	</body></html>`)
	require.NoError(t, err)

	for _, attr := range []string{`id="email"`, `name="email"`, `value="x"`, `class="card"`, `data-qa-marker="m1"`, `data-testid="t1"`} {
		assert.Contains(t, res.HTML, attr)
	}
}

func TestOptimize_TruncatesLongText(t *testing.T) {
	cfg := testOptimizerConfig()
	cfg.MaxTextLength = 10
	o := newTestOptimizer(t, cfg)

	res, err := o.Optimize(`<html><body><p id="p">` + strings.Repeat("a", 50) + `</p></body></html>`)
	require.NoError(t, err)

	assert.Contains(t, res.HTML, strings.Repeat("a", 10)+"…")
	assert.NotContains(t, res.HTML, strings.Repeat("a", 11))
}

func TestOptimize_PrunesDeepBareElements(t *testing.T) {
	cfg := testOptimizerConfig()
	cfg.MaxDepth = 3
	o := newTestOptimizer(t, cfg)

	// Depth past the bound: attribute-free spans go, the marked one stays
	// protected by its attribute.
	res, err := o.Optimize(`<html><body><div id="wrap">
		<span>too deep</span>
		<span id="keep">still here</span>
	</div></body></html>`)
	require.NoError(t, err)

	assert.NotContains(t, res.HTML, "too deep")
	assert.Contains(t, res.HTML, `id="keep"`)
}

func TestOptimize_SizeCap(t *testing.T) {
	cfg := testOptimizerConfig()
	cfg.MaxChars = 500
	o := newTestOptimizer(t, cfg)

	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&sb, `<div id="cell-%d">cell</div>`, i)
	}
	sb.WriteString("</body></html>")

	res, err := o.Optimize(sb.String())
	require.NoError(t, err)

	assert.True(t, res.Truncated)
	assert.True(t, strings.HasSuffix(res.HTML, truncationMarker))
	assert.LessOrEqual(t, len(res.HTML), cfg.MaxChars+len(truncationMarker))
}

func TestOptimize_MemoizesByContent(t *testing.T) {
	o := newTestOptimizer(t, testOptimizerConfig())
	const page = `<html><body><div id="a">x</div></body></html>`

	first, err := o.Optimize(page)
	require.NoError(t, err)
	second, err := o.Optimize(page)
	require.NoError(t, err)

	assert.Same(t, first, second, "identical input should return the memoized result")

	o.ClearCache()
	third, err := o.Optimize(page)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, first.HTML, third.HTML)
}

func TestOptimize_ConcurrentSameInput(t *testing.T) {
	o := newTestOptimizer(t, testOptimizerConfig())
	const page = `<html><body><button id="go">Go</button></body></html>`

	results := make([]*Result, 16)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := o.Optimize(page)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	for _, res := range results[1:] {
		assert.Same(t, results[0], res)
	}
}

func TestOptimize_RetainedAttributesSuperset(t *testing.T) {
	o := newTestOptimizer(t, testOptimizerConfig())

	// A page carrying none of the always-keep attributes: the allow-list
	// still contains every one of them, plus the frequency-qualified
	// data-theme, and never the one-off data-x.
	res, err := o.Optimize(`<html><body>
		<div data-x="once" data-theme="dark">first</div>
		<div data-theme="dark">second</div>
	</body></html>`)
	require.NoError(t, err)

	for attr := range alwaysKeepAttrs {
		assert.Contains(t, res.RetainedAttributes, attr)
	}
	assert.Contains(t, res.RetainedAttributes, "data-theme")
	assert.NotContains(t, res.RetainedAttributes, "data-x")
	assert.IsIncreasing(t, res.RetainedAttributes)
}

func TestResult_ReductionPercent(t *testing.T) {
	assert.Zero(t, (&Result{}).ReductionPercent())
	assert.InDelta(t, 60.0, (&Result{OriginalBytes: 500, OptimizedBytes: 200}).ReductionPercent(), 1e-9)
}

func TestOptimize_ReductionTracksSize(t *testing.T) {
	o := newTestOptimizer(t, testOptimizerConfig())

	// A page whose bulk is one huge script: barely any elements go away,
	// but nearly all of the markup does. The reduction metric must follow
	// the size, not the element count.
	page := `<html><head><script>` + strings.Repeat("x", 5000) + `</script></head>` +
		`<body><button id="go">Go</button></body></html>`

	res, err := o.Optimize(page)
	require.NoError(t, err)

	assert.Greater(t, res.ReductionPercent(), 90.0)
	assert.Equal(t, 1, res.OriginalElements-res.OptimizedElements,
		"only the script element itself is removed")
}

func TestFingerprint_Stable(t *testing.T) {
	assert.Equal(t, Fingerprint("<div/>"), Fingerprint("<div/>"))
	assert.NotEqual(t, Fingerprint("<div/>"), Fingerprint("<span/>"))
}
