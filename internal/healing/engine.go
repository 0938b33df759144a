// File: internal/healing/engine.go
package healing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/healbeacon/internal/domopt"
	"github.com/xkilldash9x/healbeacon/internal/locator"
	"github.com/xkilldash9x/healbeacon/internal/selectorcache"
)

// Resolution is the outcome of resolving one locator.
type Resolution struct {
	// AttemptID uniquely identifies this resolution for log correlation.
	AttemptID string
	// Predicate is the selector that finally matched.
	Predicate locator.Predicate
	// CacheKey is the contextual key under which outcomes for this
	// resolution should be reported.
	CacheKey string
	// Healed is true when the original locator failed and a repaired
	// selector matched instead.
	Healed bool
	// FromCache is true when the repaired selector came from the cache
	// rather than the oracle.
	FromCache bool
}

// Engine orchestrates the resolve-or-heal flow. Safe for concurrent use as
// long as the backend is.
type Engine struct {
	cache     *selectorcache.Cache
	optimizer *domopt.Optimizer
	oracle    RepairOracle
	backend   ExecutionBackend
	contexts  ContextProvider
	logger    *zap.Logger
}

// NewEngine wires the healing pipeline. contexts may be nil.
func NewEngine(
	cache *selectorcache.Cache,
	optimizer *domopt.Optimizer,
	oracle RepairOracle,
	backend ExecutionBackend,
	contexts ContextProvider,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		cache:     cache,
		optimizer: optimizer,
		oracle:    oracle,
		backend:   backend,
		contexts:  contexts,
		logger:    logger.Named("healing"),
	}
}

// Resolve tries raw as written, then a cached repair, then the oracle.
// description is the human intent behind the locator; empty falls back to
// a description derived from the locator itself. elCtx disambiguates
// recurring locators; nil consults the ContextProvider, if any.
func (e *Engine) Resolve(ctx context.Context, raw, description string, elCtx *locator.ElementContext) (*Resolution, error) {
	attemptID := uuid.NewString()
	log := e.logger.With(zap.String("attempt_id", attemptID), zap.String("locator", raw))

	desc, err := locator.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing locator %q: %w", raw, err)
	}
	if description == "" {
		description = locator.DetectionDescription(raw, desc.Kind)
	}

	pred, err := locator.ToPredicate(desc)
	if err != nil {
		return nil, fmt.Errorf("converting locator %q: %w", raw, err)
	}

	key := e.cacheKey(desc, raw, description, elCtx)

	// A selector that worked before, for the same contextual key, wins.
	if cached, ok := e.cache.Get(key); ok {
		cachedPred, err := repairPredicate(cached.Selector)
		if err != nil {
			return nil, fmt.Errorf("cached selector for %q: %w", raw, err)
		}
		matched, err := e.backend.Resolve(ctx, cachedPred)
		if err != nil {
			return nil, fmt.Errorf("resolving cached selector for %q: %w", raw, err)
		}
		if matched {
			log.Debug("Cached selector matched",
				zap.String("selector", cached.Selector),
				zap.Float64("success_rate", cached.SuccessRate()))
			e.cache.RecordOutcome(key, true)
			return &Resolution{
				AttemptID: attemptID,
				Predicate: cachedPred,
				CacheKey:  key,
				Healed:    cached.Selector != pred.Expression,
				FromCache: true,
			}, nil
		}
		log.Debug("Cached selector no longer matches", zap.String("selector", cached.Selector))
		e.cache.RecordOutcome(key, false)
	}

	// The locator as written.
	matched, err := e.backend.Resolve(ctx, pred)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", raw, err)
	}
	if matched {
		log.Debug("Locator resolved as written")
		e.cache.Put(key, selectorcache.NewCachedSelector(pred.Expression, ""))
		e.cache.RecordOutcome(key, true)
		return &Resolution{AttemptID: attemptID, Predicate: pred, CacheKey: key}, nil
	}

	log.Info("Locator failed to resolve, attempting repair",
		zap.String("kind", desc.Kind.DisplayName()))

	rawHTML, err := e.backend.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("capturing page snapshot: %w", err)
	}
	return e.heal(ctx, log, attemptID, key, description, rawHTML)
}

// Heal repairs raw against an already captured snapshot, bypassing the
// cached-repair fast path. Callers that hold the page markup (test runners
// reporting a failure after the fact) use this directly.
func (e *Engine) Heal(ctx context.Context, raw, description, pageHTML string) (*Resolution, error) {
	attemptID := uuid.NewString()
	log := e.logger.With(zap.String("attempt_id", attemptID), zap.String("locator", raw))

	desc, err := locator.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing locator %q: %w", raw, err)
	}
	if description == "" {
		description = locator.DetectionDescription(raw, desc.Kind)
	}
	key := e.cacheKey(desc, raw, description, nil)
	return e.heal(ctx, log, attemptID, key, description, pageHTML)
}

// heal reduces the snapshot and asks the oracle for a replacement, which
// must validate against the live page before it is cached.
func (e *Engine) heal(ctx context.Context, log *zap.Logger, attemptID, key, description, rawHTML string) (*Resolution, error) {
	reduced, err := e.optimizer.Optimize(rawHTML)
	if err != nil {
		return nil, fmt.Errorf("reducing page snapshot: %w", err)
	}
	log.Debug("Snapshot reduced for repair",
		zap.Int("original_elements", reduced.OriginalElements),
		zap.Int("optimized_elements", reduced.OptimizedElements))

	proposed, err := e.oracle.ProposeSelector(ctx, reduced.HTML, description)
	if err != nil {
		return nil, fmt.Errorf("repair oracle: %w", err)
	}
	if proposed == "" {
		return nil, fmt.Errorf("repair oracle returned no selector for %q", description)
	}

	pred, err := repairPredicate(proposed)
	if err != nil {
		return nil, fmt.Errorf("normalizing proposed selector %q: %w", proposed, err)
	}
	matched, err := e.backend.Resolve(ctx, pred)
	if err != nil {
		return nil, fmt.Errorf("validating proposed selector %q: %w", proposed, err)
	}
	if !matched {
		return nil, fmt.Errorf("proposed selector %q does not match any element", proposed)
	}

	entry := selectorcache.NewCachedSelector(proposed, domopt.Fingerprint(rawHTML))
	entry.UsageCount = 1
	entry.SuccessCount = 1
	e.cache.Put(key, entry)

	log.Info("Locator repaired", zap.String("selector", proposed))
	return &Resolution{
		AttemptID: attemptID,
		Predicate: pred,
		CacheKey:  key,
		Healed:    true,
	}, nil
}

// ReportOutcome records how a resolved selector actually performed, so the
// cache's success rates track reality rather than just resolution.
func (e *Engine) ReportOutcome(res *Resolution, success bool) {
	if res == nil || !res.Healed {
		return
	}
	e.cache.RecordOutcome(res.CacheKey, success)
}

// repairPredicate normalizes a stored or proposed repair selector. Repairs
// are usually plain CSS, but the oracle is free to answer with anything the
// normalizer understands.
func repairPredicate(selector string) (locator.Predicate, error) {
	desc, err := locator.Parse(selector)
	if err != nil {
		return locator.Predicate{}, err
	}
	return locator.ToPredicate(desc)
}

func (e *Engine) cacheKey(desc *locator.Descriptor, raw, description string, elCtx *locator.ElementContext) string {
	if elCtx == nil && e.contexts != nil {
		elCtx = e.contexts.ElementContext(raw)
	}
	if elCtx != nil {
		return desc.Kind.ReportName() + "|" + locator.ContextualKey(raw, description, elCtx)
	}
	return locator.Key(desc.Kind, raw, description)
}
