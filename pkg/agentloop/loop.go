package agentloop

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// errorBackoff is the fixed sleep after a failed iteration.
const errorBackoff = 30 * time.Second

// RunOnce executes one full iteration: decide, adjust, act, reply pass,
// persona pass. It returns the delay before the next iteration.
func (e *Engine) RunOnce(ctx context.Context) (time.Duration, error) {
	st, err := e.store.Load()
	if err != nil {
		return 0, err
	}

	decision, result, err := e.DecideNextAction(ctx, st)
	if err != nil {
		return 0, err
	}
	originalAction := decision.Action
	e.applyHeuristics(decision, st)
	delay := clampDelay(decision.DelaySeconds)

	log.Info().
		Str("action", decision.Action).
		Str("original_action", originalAction).
		Dur("delay", delay).
		Str("provider", string(result.Provider)).
		Int("key_index", result.KeyIndex).
		Msg("Decision")

	if err := e.Execute(ctx, decision); err != nil {
		return 0, err
	}

	// Post-action passes are best effort and never fail the iteration.
	if err := e.maybeReplyToComments(ctx); err != nil {
		log.Error().Err(err).Msg("Reply pass failed")
	}
	e.maybeUpdatePersonaSummary(ctx)

	e.metrics.LoopIterationsTotal.Inc()
	e.metrics.LoopSleepSeconds.Set(delay.Seconds())

	updated, err := e.store.Load()
	if err == nil {
		log.Info().
			Str("action", originalAction).
			Bool("has_api_key", updated.MoltbookAPIKey != "").
			Str("last_status", updated.LastStatus).
			Dur("next_delay", delay).
			Msg("Iteration finished")
	}

	return delay, nil
}

// Run iterates forever until the context is cancelled. An iteration error
// is logged and followed by a fixed 30s backoff; the loop never exits on
// its own.
func (e *Engine) Run(ctx context.Context) error {
	log.Info().Msg("Agent loop starting")
	for {
		delay, err := e.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Msg("Iteration failed, backing off")
			e.metrics.LoopErrorsTotal.Inc()
			delay = errorBackoff
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
