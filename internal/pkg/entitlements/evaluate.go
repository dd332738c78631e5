package entitlements

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PropertyDesk/internal/pkg/metrics"
	"github.com/ManuelReschke/PropertyDesk/internal/pkg/plans"
)

// Effective is what an account may use right now.
type Effective struct {
	AccountID string
	// PlanID is the plan in force, plans.Free when no grant is live.
	PlanID plans.ID
	// LastPlanID is the stored plan, kept for "your Pro trial ended" messages.
	LastPlanID    plans.ID
	PropertyLimit plans.Limit
	Status        Status
	Remaining     time.Duration
	EndsAt        *time.Time
	TrialEndsAt   *time.Time
	PeriodEndsAt  *time.Time
}

func (e Effective) RemainingMs() int64 {
	if e.Remaining <= 0 {
		return 0
	}
	return e.Remaining.Milliseconds()
}

// IsLive reports whether a trial or paid period is currently running.
func (e Effective) IsLive() bool {
	return e.Status == StatusTrialing || e.Status == StatusActive
}

// derive computes the effective status of rec at now without side effects.
// A trial and a paid period may overlap; the later end wins and a tie goes
// to the trial.
func derive(rec Record, now time.Time) (Status, *time.Time) {
	var trialEnd, periodEnd *time.Time
	if rec.TrialEndsAt != nil && rec.TrialEndsAt.After(now) {
		trialEnd = rec.TrialEndsAt
	}
	if rec.PeriodEndsAt != nil && rec.PeriodEndsAt.After(now) {
		periodEnd = rec.PeriodEndsAt
	}

	switch {
	case trialEnd != nil && periodEnd != nil:
		if periodEnd.After(*trialEnd) {
			return StatusActive, periodEnd
		}
		return StatusTrialing, trialEnd
	case trialEnd != nil:
		return StatusTrialing, trialEnd
	case periodEnd != nil:
		return StatusActive, periodEnd
	case rec.Status == StatusCanceled:
		return StatusCanceled, nil
	case rec.PlanID != "" || rec.TrialEndsAt != nil || rec.PeriodEndsAt != nil:
		return StatusExpired, nil
	}
	return StatusNone, nil
}

// Evaluate returns the effective entitlement of an account. An elapsed grant
// is written back as expired; a failed write is logged and the derived
// answer is returned anyway.
func (s *Service) Evaluate(ctx context.Context, accountID string) (Effective, error) {
	accountID, err := normalizeAccount(accountID)
	if err != nil {
		return Effective{}, err
	}
	rec, err := s.store.Get(ctx, accountID)
	if err != nil {
		return Effective{}, err
	}

	now := s.clock()
	status, endsAt := derive(rec, now)

	eff := Effective{
		AccountID:    accountID,
		LastPlanID:   rec.PlanID,
		Status:       status,
		EndsAt:       endsAt,
		TrialEndsAt:  rec.TrialEndsAt,
		PeriodEndsAt: rec.PeriodEndsAt,
	}

	if eff.IsLive() {
		def, err := s.catalog.Get(string(rec.PlanID))
		if err != nil {
			return Effective{}, err
		}
		eff.PlanID = def.ID
		eff.PropertyLimit = def.PropertyLimit
		eff.Remaining = endsAt.Sub(now)
	} else {
		free := s.catalog.Free()
		eff.PlanID = free.ID
		eff.PropertyLimit = free.PropertyLimit
	}

	if status == StatusExpired && rec.Status != StatusExpired {
		s.reconcileExpired(ctx, rec)
	}
	return eff, nil
}

// reconcileExpired writes the derived expiry back. Only the status changes,
// and only if the row still is what rec was read as; a grant written since
// the read is left alone.
func (s *Service) reconcileExpired(ctx context.Context, rec Record) {
	if !CanTransition(rec.Status, StatusExpired) {
		return
	}
	changed, err := s.store.MarkExpired(ctx, rec)
	if err != nil {
		log.Warnf("entitlement: could not persist expiry for %s: %v", rec.AccountID, err)
		return
	}
	if !changed {
		log.Debugf("entitlement: %s changed since read, expiry not written", rec.AccountID)
		return
	}
	metrics.RecordReconciliation()
}
