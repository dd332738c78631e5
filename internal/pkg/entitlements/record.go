package entitlements

import (
	"time"

	"github.com/ManuelReschke/PropertyDesk/app/models"
	"github.com/ManuelReschke/PropertyDesk/internal/pkg/plans"
)

type Status string

const (
	StatusNone     Status = models.EntitlementStatusNone
	StatusTrialing Status = models.EntitlementStatusTrialing
	StatusActive   Status = models.EntitlementStatusActive
	StatusExpired  Status = models.EntitlementStatusExpired
	StatusCanceled Status = models.EntitlementStatusCanceled
)

// Record is the stored entitlement of one account. An empty PlanID means no
// plan was ever granted.
type Record struct {
	AccountID    string
	PlanID       plans.ID
	Status       Status
	TrialEndsAt  *time.Time
	PeriodEndsAt *time.Time
	TrialUsedAt  *time.Time
	LastSyncedAt *time.Time
}

// DefaultRecord is what an account without a stored row evaluates from.
func DefaultRecord(accountID string) Record {
	return Record{AccountID: accountID, Status: StatusNone}
}

func recordFromModel(m *models.Entitlement) Record {
	r := Record{
		AccountID:    m.AccountID,
		Status:       Status(m.Status),
		TrialEndsAt:  utcPtr(m.TrialEndsAt),
		PeriodEndsAt: utcPtr(m.PeriodEndsAt),
		TrialUsedAt:  utcPtr(m.TrialUsedAt),
		LastSyncedAt: utcPtr(m.LastSyncedAt),
	}
	if m.PlanID != nil {
		r.PlanID = plans.ID(*m.PlanID)
	}
	if r.Status == "" {
		r.Status = StatusNone
	}
	return r
}

func (r Record) toModel() *models.Entitlement {
	m := &models.Entitlement{
		AccountID:    r.AccountID,
		Status:       string(r.Status),
		TrialEndsAt:  r.TrialEndsAt,
		PeriodEndsAt: r.PeriodEndsAt,
		TrialUsedAt:  r.TrialUsedAt,
		LastSyncedAt: r.LastSyncedAt,
	}
	if r.PlanID != "" {
		plan := string(r.PlanID)
		m.PlanID = &plan
	}
	if m.Status == "" {
		m.Status = string(StatusNone)
	}
	return m
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func timePtr(t time.Time) *time.Time {
	return &t
}
