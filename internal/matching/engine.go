// Package matching wires the filter, scoring, ranking and exclusion stages
// into a single paginated match request.
package matching

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/cloutcash-matcher/internal/exclusion"
	"github.com/spigell/cloutcash-matcher/internal/filtering"
	"github.com/spigell/cloutcash-matcher/internal/interactions"
	logging "github.com/spigell/cloutcash-matcher/internal/logger"
	"github.com/spigell/cloutcash-matcher/internal/metrics"
	"github.com/spigell/cloutcash-matcher/internal/profiles"
	"github.com/spigell/cloutcash-matcher/internal/ranking"
	"github.com/spigell/cloutcash-matcher/internal/scoring"
)

const seenFilter = "seen"

// Config contains the paging and concurrency settings of the engine.
type Config struct {
	DefaultLimit int `mapstructure:"default-limit"`
	MaxLimit     int `mapstructure:"max-limit"`
	Workers      int `mapstructure:"workers"`
	// DisabledFilters names request filter steps to skip, e.g. "min_engagement".
	DisabledFilters []string `mapstructure:"disabled-filters"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{DefaultLimit: 10, MaxLimit: 100, Workers: 8}
}

// Deps aggregates the collaborators of the engine. History is optional.
type Deps struct {
	Store   profiles.Store
	Tracker exclusion.Tracker
	History interactions.Log
	Scorer  *scoring.Scorer
	Logger  *zap.Logger
}

// Engine serves match requests. It is safe for concurrent use.
type Engine struct {
	cfg  Config
	deps Deps
}

// New validates deps and returns an Engine.
func New(cfg Config, deps Deps) (*Engine, error) {
	if deps.Store == nil {
		return nil, errors.New("profile store is required")
	}
	if deps.Tracker == nil {
		return nil, errors.New("exclusion tracker is required")
	}
	if deps.Scorer == nil {
		return nil, errors.New("scorer is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	defaults := DefaultConfig()
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = defaults.DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = defaults.MaxLimit
	}
	if cfg.DefaultLimit > cfg.MaxLimit {
		return nil, fmt.Errorf("default limit %d exceeds max limit %d", cfg.DefaultLimit, cfg.MaxLimit)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if slices.Contains(cfg.DisabledFilters, seenFilter) {
		return nil, errors.New("the seen filter cannot be disabled")
	}

	return &Engine{cfg: cfg, deps: deps}, nil
}

// Match returns the next page of candidates for req and records the served
// ids in the requester's exclusion set.
func (e *Engine) Match(ctx context.Context, req Request) (*Response, error) {
	started := time.Now()
	requestID := uuid.NewString()

	if err := req.normalize(e.cfg); err != nil {
		metrics.MatchRequests.WithLabelValues(roleLabel(req.Role), "invalid").Inc()
		return nil, err
	}

	logger := logging.WithFields(e.deps.Logger, logging.RequestFields(requestID, req.RequesterID, string(req.Role))...)

	resp, err := e.match(ctx, logger, requestID, req)
	result := "ok"
	switch {
	case errors.Is(err, profiles.ErrNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	metrics.MatchRequests.WithLabelValues(string(req.Role), result).Inc()
	metrics.MatchDuration.WithLabelValues(string(req.Role)).Observe(time.Since(started).Seconds())

	if err != nil {
		logger.Warn("match request failed", zap.Error(err))
		return nil, err
	}

	logger.Info("match request served",
		zap.Int("cursor", req.Cursor),
		zap.Int("returned", len(resp.Candidates)),
		zap.Int("next_cursor", resp.NextCursor),
		zap.Duration("took", time.Since(started)),
	)
	return resp, nil
}

// roleLabel keeps metric cardinality bounded when the role failed validation.
func roleLabel(role profiles.Role) string {
	parsed, err := profiles.ParseRole(string(role))
	if err != nil {
		return "unknown"
	}
	return string(parsed)
}

func (e *Engine) match(ctx context.Context, logger *zap.Logger, requestID string, req Request) (*Response, error) {
	requester, err := e.resolveRequester(ctx, req)
	if err != nil {
		return nil, err
	}

	if req.Cursor == 0 {
		if err := e.deps.Tracker.Settle(ctx, req.RequesterID); err != nil {
			return nil, fmt.Errorf("starting a new listing: %w", err)
		}
	}

	seen, err := e.deps.Tracker.Snapshot(ctx, req.RequesterID)
	if err != nil {
		return nil, err
	}

	candidates, err := e.deps.Store.ListCandidates(ctx, req.Role)
	if err != nil {
		return nil, fmt.Errorf("listing candidates: %w", err)
	}

	steps := append([]filtering.Filter{filtering.NewSeen(seen.Settled)}, filtering.FromFilters(req.Filters)...)
	for _, name := range e.cfg.DisabledFilters {
		filtering.DisableByName(steps, name, "disabled in configuration")
	}
	pool, reports, err := filtering.Run(ctx, logger, steps, profiles.NewPool(candidates))
	if err != nil {
		return nil, fmt.Errorf("filtering candidates: %w", err)
	}

	history, err := e.loadHistory(ctx, req.RequesterID)
	if err != nil {
		return nil, err
	}

	scored, gated, err := e.score(ctx, logger, requester, pool, history)
	if err != nil {
		return nil, err
	}

	ranked := ranking.Rank(scored)
	page, next := ranking.Window(ranked, seen.CurrentIndex(), req.Cursor, req.Limit)

	// Nothing is committed for a request that was abandoned.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp := &Response{RequestID: requestID, Candidates: page, NextCursor: next}
	if req.Explain {
		resp.Explain = &Explanation{
			Filters: filtering.Describe(steps),
			Steps:   reports,
			Pool:    len(candidates),
			Scored:  len(ranked),
			Gated:   gated,

			Excluded: seen.Len(),
		}
	}
	if err := e.deps.Tracker.MarkSeen(ctx, req.RequesterID, resp.IDs()); err != nil {
		return nil, fmt.Errorf("recording served candidates: %w", err)
	}

	for _, c := range page {
		metrics.CandidateScores.Observe(c.Score)
	}
	return resp, nil
}

// resolveRequester returns the campaign or creator behind the request.
func (e *Engine) resolveRequester(ctx context.Context, req Request) (profiles.Profile, error) {
	if req.Role == profiles.RoleBrand && req.RequesterContext != nil {
		return req.RequesterContext, nil
	}

	requester, err := e.deps.Store.Get(ctx, req.RequesterID)
	if err != nil {
		return nil, err
	}
	if requester.Kind() != req.Role.RequesterKind() {
		return nil, fmt.Errorf("requester %q is a %s, not a %s: %w",
			req.RequesterID, requester.Kind(), req.Role.RequesterKind(), profiles.ErrNotFound)
	}
	if err := requester.Validate(); err != nil {
		return nil, err
	}
	return requester, nil
}

func (e *Engine) loadHistory(ctx context.Context, userID string) (scoring.History, error) {
	if e.deps.History == nil {
		return scoring.History{}, nil
	}

	items, err := e.deps.History.ListByUser(ctx, userID)
	if err != nil {
		return scoring.History{}, fmt.Errorf("loading interaction history: %w", err)
	}

	return scoring.NewHistory(items, func(id string) (profiles.Profile, bool) {
		p, err := e.deps.Store.Get(ctx, id)
		return p, err == nil
	}), nil
}

// score evaluates the pool on a bounded worker pool. Results are written by
// index, so the output order does not depend on scheduling.
// The second result is the number of candidates removed by the exclusion gate.
func (e *Engine) score(ctx context.Context, logger *zap.Logger, requester profiles.Profile, pool *profiles.Pool, history scoring.History) ([]ranking.ScoredCandidate, int, error) {
	type slot struct {
		result scoring.Result
		ok     bool
	}
	slots := make([]slot, pool.Len())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, candidate := range pool.Items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			res, err := e.deps.Scorer.Score(requester, candidate, history)
			if err != nil {
				metrics.ScoringFailures.Inc()
				logger.Warn("skipping candidate that could not be scored",
					zap.String(logging.FieldCandidateID, candidate.ProfileID()),
					zap.Error(err),
				)
				return nil
			}
			slots[i] = slot{result: res, ok: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	out := make([]ranking.ScoredCandidate, 0, len(slots))
	gated := 0
	for i, s := range slots {
		if !s.ok {
			continue
		}
		if s.result.Gated {
			gated++
			continue
		}
		out = append(out, ranking.ScoredCandidate{
			Candidate: pool.Items[i],
			Score:     s.result.Score,
			Rationale: s.result.Rationale,
			Breakdown: s.result.Breakdown,
		})
	}
	if gated > 0 {
		metrics.CandidatesDropped.WithLabelValues("exclusion_gate").Add(float64(gated))
		logger.Debug("candidates excluded by campaign", zap.Int("gated", gated))
	}

	return out, gated, nil
}
