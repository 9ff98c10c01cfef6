// Package agent implements the three pipeline roles (researcher, writer,
// reviewer) over a shared capability set: decision logging, phase updates,
// handoff initiation and validation, and fallback-bounded error recovery.
//
// Roles are independent types composed by the pipeline, not a hierarchy. Each
// supplies only its permitted phases and a fallback strategy producing a
// degraded-but-valid result.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"scribehq.app/scribe/common/logger"
	"scribehq.app/scribe/internal/model"
	"scribehq.app/scribe/internal/runstate"
)

// maxRecoveryAttempts caps fallback executions per recorded error. Hard bound,
// not caller-configurable.
const maxRecoveryAttempts = 3

type base struct {
	role   model.Role
	phases []model.Phase
	state  *runstate.Store
}

func newBase(role model.Role, state *runstate.Store, phases ...model.Phase) base {
	return base{role: role, phases: phases, state: state}
}

// canProceed checks the role's preconditions before any externally-visible
// work: no open error window, current phase in the role's permitted set, and
// no pending suggestions addressed to this role. Returns a descriptive error
// when the role must not act.
func (b base) canProceed() error {
	if current, ok := b.state.CurrentError(); ok {
		return fmt.Errorf("%s cannot proceed: unresolved %s error: %s", b.role, current.Role, current.Message)
	}

	phase := b.state.Phase()
	if !b.permitted(phase) {
		return fmt.Errorf("%s cannot proceed: not permitted to act in phase %s", b.role, phase)
	}

	if pending := b.state.PendingSuggestions(b.role); len(pending) > 0 {
		texts := make([]string, len(pending))
		for i, s := range pending {
			texts[i] = s.Text
		}
		return fmt.Errorf("%s cannot proceed: %d pending suggestions unaddressed: %s",
			b.role, len(pending), strings.Join(texts, "; "))
	}

	return nil
}

func (b base) permitted(phase model.Phase) bool {
	for _, p := range b.phases {
		if p == phase {
			return true
		}
	}
	return false
}

// handoffTo appends a handoff entry and nudges the phase forward for the two
// known target roles. The handoff is visible to the target as soon as this
// returns; the store's serialization makes that a synchronous postcondition.
func (b base) handoffTo(ctx context.Context, target model.Role, reason string, payload any) {
	b.state.RecordHandoff(b.role, target, reason, payload)

	var nudge model.Phase
	switch target {
	case model.RoleWriter:
		nudge = model.PhaseWriting
	case model.RoleReviewer:
		nudge = model.PhaseReview
	}
	if nudge != "" && b.state.Phase() != nudge {
		if err := b.state.UpdatePhase(nudge, "", 0); err != nil {
			slog.WarnContext(ctx, "handoff phase nudge skipped", "target_phase", nudge, "error", err)
		}
	}

	slog.InfoContext(ctx, "handoff recorded",
		"from", b.role,
		"to", target,
		"reason", reason)
}

// validateHandoff asserts the most recent handoff entry was addressed from
// expectedFrom to the given role and carries a payload of type P, then runs
// the payload's own validation. Roles call this before trusting shared state
// produced by an earlier stage.
func validateHandoff[P interface{ Validate() error }](state *runstate.Store, expectedFrom, self model.Role) (P, error) {
	var payload P

	handoff, ok := state.LatestHandoff()
	if !ok {
		return payload, fmt.Errorf("no handoff recorded for %s", self)
	}
	if handoff.From != expectedFrom || handoff.To != self {
		return payload, fmt.Errorf("unexpected handoff %s -> %s (want %s -> %s)",
			handoff.From, handoff.To, expectedFrom, self)
	}

	payload, ok = handoff.Payload.(P)
	if !ok {
		return payload, fmt.Errorf("handoff payload has type %T, want %T", handoff.Payload, payload)
	}
	if err := payload.Validate(); err != nil {
		return payload, fmt.Errorf("handoff payload invalid: %w", err)
	}
	return payload, nil
}

// handleError runs primary; on a recoverable failure it records the error and,
// while the attempt counter is below the ceiling, runs fallback once. Fallback
// success clears the error window; fallback failure escalates to fatal with
// the error window left set. Fatal failures propagate unchanged.
func (b base) handleError(ctx context.Context, operation string, primary, fallback func(context.Context) error) error {
	err := primary(ctx)
	if err == nil {
		return nil
	}

	b.state.RecordError(b.role, err.Error())

	if IsFatal(err) || fallback == nil {
		return err
	}

	current, ok := b.state.CurrentError()
	if !ok || current.RecoveryAttempts >= maxRecoveryAttempts {
		return err
	}

	attempt := b.state.IncrementRecoveryAttempts()
	slog.WarnContext(ctx, "primary operation failed, running fallback",
		"operation", operation,
		"attempt", attempt,
		"error", err)

	if fbErr := fallback(ctx); fbErr != nil {
		return NewFatalError(fmt.Errorf("recovery attempt failed for %s: %w (original: %s)",
			operation, fbErr, err))
	}

	b.state.ClearError()
	slog.InfoContext(ctx, "fallback recovered", "operation", operation, "attempt", attempt)
	return nil
}

// withRoleContext enriches the logging context with the acting role and phase.
func (b base) withRoleContext(ctx context.Context, component string) context.Context {
	return logger.WithLogFields(ctx, logger.LogFields{
		Role:      logger.Ptr(string(b.role)),
		Phase:     logger.Ptr(string(b.state.Phase())),
		Component: component,
	})
}
