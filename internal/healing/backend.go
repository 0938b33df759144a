// File: internal/healing/backend.go
package healing

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/healbeacon/internal/config"
	"github.com/xkilldash9x/healbeacon/internal/locator"
)

// ChromedpBackend is an ExecutionBackend over a live chromedp session.
// The session context is owned by the caller; the backend only issues
// queries against it.
type ChromedpBackend struct {
	sessionCtx context.Context
	cfg        config.BrowserConfig
	logger     *zap.Logger
}

// NewChromedpBackend wraps an existing chromedp session context.
func NewChromedpBackend(sessionCtx context.Context, cfg config.BrowserConfig, logger *zap.Logger) *ChromedpBackend {
	return &ChromedpBackend{
		sessionCtx: sessionCtx,
		cfg:        cfg,
		logger:     logger.Named("backend.chromedp"),
	}
}

// Navigate loads url and waits for the document body.
func (b *ChromedpBackend) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := b.bounded(ctx, b.cfg.NavigationTimeout)
	defer cancel()

	if err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

// Resolve reports whether the predicate matches at least one node. A
// resolve timeout expiring with no match is a clean non-match, not an
// error.
func (b *ChromedpBackend) Resolve(ctx context.Context, pred locator.Predicate) (bool, error) {
	queryCtx, cancel := b.bounded(ctx, b.cfg.ResolveTimeout)
	defer cancel()

	var nodes []*cdp.Node
	opt := chromedp.ByQueryAll
	if pred.Strategy == locator.StrategyXPath {
		opt = chromedp.BySearch
	}

	err := chromedp.Run(queryCtx,
		chromedp.Nodes(pred.Expression, &nodes, opt, chromedp.AtLeast(0)),
	)
	if err != nil {
		if ctx.Err() == nil && queryCtx.Err() == context.DeadlineExceeded {
			b.logger.Debug("Selector query timed out",
				zap.String("expression", pred.Expression))
			return false, nil
		}
		return false, fmt.Errorf("querying %q: %w", pred.Expression, err)
	}

	b.logger.Debug("Selector resolved",
		zap.String("strategy", pred.Strategy.String()),
		zap.String("expression", pred.Expression),
		zap.Int("matches", len(nodes)))
	return len(nodes) > 0, nil
}

// Snapshot returns the serialized document.
func (b *ChromedpBackend) Snapshot(ctx context.Context) (string, error) {
	captureCtx, cancel := b.bounded(ctx, b.cfg.NavigationTimeout)
	defer cancel()

	var markup string
	if err := chromedp.Run(captureCtx,
		chromedp.OuterHTML("html", &markup, chromedp.ByQuery),
	); err != nil {
		return "", fmt.Errorf("capturing outer HTML: %w", err)
	}
	return markup, nil
}

// bounded derives a query context from the session, honoring both the
// caller's deadline and the configured per-operation timeout.
func (b *ChromedpBackend) bounded(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	merged, cancelCause := context.WithCancel(b.sessionCtx)
	stop := context.AfterFunc(ctx, cancelCause)
	boundedCtx, cancelTimeout := context.WithTimeout(merged, timeout)
	return boundedCtx, func() {
		stop()
		cancelTimeout()
		cancelCause()
	}
}
