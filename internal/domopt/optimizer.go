// File: internal/domopt/optimizer.go

// Package domopt reduces raw DOM snapshots to the structural skeleton a
// repair oracle needs. Reduction is bounded, deterministic for a given
// input, and memoized by content hash so repeated snapshots of the same
// page cost one pass.
package domopt

import (
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/sync/singleflight"

	"github.com/xkilldash9x/healbeacon/internal/config"
)

// Tags carrying no locator-relevant structure. Removed with their subtrees.
var noiseTags = map[string]bool{
	"script":   true,
	"style":    true,
	"meta":     true,
	"link":     true,
	"svg":      true,
	"canvas":   true,
	"noscript": true,
}

// Attributes kept regardless of how rarely they appear. These are the ones
// selectors are actually built from.
var alwaysKeepAttrs = map[string]bool{
	"id":             true,
	"name":           true,
	"value":          true,
	"class":          true,
	"data-qa-marker": true,
	"data-testid":    true,
}

const truncationMarker = "\n<!-- HTML TRUNCATED DUE TO SIZE LIMIT -->"

// Optimizer reduces DOM snapshots. Safe for concurrent use; concurrent
// requests for the same snapshot are coalesced into a single reduction.
type Optimizer struct {
	cfg    config.OptimizerConfig
	logger *zap.Logger

	memo  sync.Map // string (fnv-64a hex) -> *Result
	group singleflight.Group
}

// New builds an Optimizer from the given tuning.
func New(cfg config.OptimizerConfig, logger *zap.Logger) *Optimizer {
	return &Optimizer{
		cfg:    cfg,
		logger: logger.Named("domopt"),
	}
}

// Optimize reduces rawHTML and returns the shared, memoized result. Empty
// input yields an empty result without touching the memo.
func (o *Optimizer) Optimize(rawHTML string) (*Result, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return &Result{}, nil
	}

	key := contentHash(rawHTML)
	if cached, ok := o.memo.Load(key); ok {
		return cached.(*Result), nil
	}

	v, err, _ := o.group.Do(key, func() (any, error) {
		if cached, ok := o.memo.Load(key); ok {
			return cached.(*Result), nil
		}
		res, err := o.reduce(rawHTML)
		if err != nil {
			return nil, err
		}
		o.memo.Store(key, res)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

// ClearCache drops all memoized results.
func (o *Optimizer) ClearCache() {
	o.memo.Range(func(key, _ any) bool {
		o.memo.Delete(key)
		return true
	})
}

// reduce runs the full pipeline: noise removal, attribute pruning, text
// truncation, depth pruning, empty-leaf removal, then the size cap.
func (o *Optimizer) reduce(rawHTML string) (*Result, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}

	res := &Result{
		OriginalBytes:    len(rawHTML),
		OriginalElements: countElements(doc),
	}

	removeNoise(doc)

	freq := make(map[string]int)
	countAttributes(doc, freq)
	o.pruneAttributes(doc, freq)
	res.RetainedAttributes = o.retainedAttributes(freq)

	o.truncateText(doc)
	o.pruneDeep(doc, 0)
	removeEmptyLeaves(doc)

	var sb strings.Builder
	if err := html.Render(&sb, doc); err != nil {
		return nil, err
	}
	out := sb.String()
	if len(out) > o.cfg.MaxChars {
		out = out[:o.cfg.MaxChars] + truncationMarker
		res.Truncated = true
	}

	res.HTML = out
	res.OptimizedElements = countElements(doc)
	res.OptimizedBytes = len(out)

	o.logger.Debug("Snapshot reduced",
		zap.Int("original_elements", res.OriginalElements),
		zap.Int("optimized_elements", res.OptimizedElements),
		zap.Float64("reduction_percent", res.ReductionPercent()),
		zap.Bool("truncated", res.Truncated))
	return res, nil
}

func countElements(n *html.Node) int {
	count := 0
	if n.Type == html.ElementNode {
		count = 1
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		count += countElements(c)
	}
	return count
}

// removeNoise drops noise-tag subtrees and comment nodes.
func removeNoise(n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if c.Type == html.CommentNode ||
			(c.Type == html.ElementNode && noiseTags[c.Data]) {
			n.RemoveChild(c)
			continue
		}
		removeNoise(c)
	}
}

// retainedAttributes is the allow-list the pruning pass applied: the
// always-keep set extended with every attribute clearing the frequency
// threshold.
func (o *Optimizer) retainedAttributes(freq map[string]int) []string {
	retained := make([]string, 0, len(alwaysKeepAttrs))
	for attr := range alwaysKeepAttrs {
		retained = append(retained, attr)
	}
	for attr, n := range freq {
		if !alwaysKeepAttrs[attr] && n >= o.cfg.AttributeFrequencyThreshold {
			retained = append(retained, attr)
		}
	}
	sort.Strings(retained)
	return retained
}

func countAttributes(n *html.Node, freq map[string]int) {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			freq[a.Key]++
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		countAttributes(c, freq)
	}
}

// pruneAttributes keeps an attribute when it is in the always-keep set or
// appears at least the threshold number of times across the whole page.
func (o *Optimizer) pruneAttributes(n *html.Node, freq map[string]int) {
	if n.Type == html.ElementNode && len(n.Attr) > 0 {
		kept := n.Attr[:0]
		for _, a := range n.Attr {
			if alwaysKeepAttrs[a.Key] || freq[a.Key] >= o.cfg.AttributeFrequencyThreshold {
				kept = append(kept, a)
			}
		}
		n.Attr = kept
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		o.pruneAttributes(c, freq)
	}
}

// truncateText caps each text node at MaxTextLength runes, appending an
// ellipsis. Whitespace-only nodes collapse to empty.
func (o *Optimizer) truncateText(n *html.Node) {
	if n.Type == html.TextNode {
		text := strings.TrimSpace(n.Data)
		if runes := []rune(text); len(runes) > o.cfg.MaxTextLength {
			text = string(runes[:o.cfg.MaxTextLength]) + "…"
		}
		n.Data = text
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		o.truncateText(c)
	}
}

// pruneDeep removes attribute-free elements nested deeper than MaxDepth.
// Their subtrees go with them; anything deep enough to matter for a
// selector carries an attribute that protects it.
func (o *Optimizer) pruneDeep(n *html.Node, depth int) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if c.Type == html.ElementNode {
			if depth+1 > o.cfg.MaxDepth && len(c.Attr) == 0 {
				n.RemoveChild(c)
				continue
			}
			o.pruneDeep(c, depth+1)
		}
	}
}

// removeEmptyLeaves repeatedly strips elements with no attributes, no
// children, and no text, bottom-up so newly emptied parents go too.
func removeEmptyLeaves(n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		removeEmptyLeaves(c)
		if isRemovableLeaf(c) {
			n.RemoveChild(c)
		}
	}
}

func isRemovableLeaf(n *html.Node) bool {
	switch n.Type {
	case html.TextNode:
		return strings.TrimSpace(n.Data) == ""
	case html.ElementNode:
		return n.FirstChild == nil && len(n.Attr) == 0 &&
			n.Data != "html" && n.Data != "head" && n.Data != "body"
	default:
		return false
	}
}

// Fingerprint returns the content hash used to memoize reductions. Callers
// can use it to correlate a selector with the page state it was minted on.
func Fingerprint(s string) string {
	return contentHash(s)
}

func contentHash(s string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return strconv.FormatUint(h.Sum64(), 16)
}
