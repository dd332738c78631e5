package models

import "time"

const (
	EntitlementStatusNone     = "none"
	EntitlementStatusTrialing = "trialing"
	EntitlementStatusActive   = "active"
	EntitlementStatusExpired  = "expired"
	EntitlementStatusCanceled = "canceled"
)

// Entitlement is the persisted plan grant of one account. A missing row
// means the account never held a plan.
type Entitlement struct {
	AccountID    string     `gorm:"type:varchar(191);primaryKey" json:"account_id"`
	PlanID       *string    `gorm:"type:varchar(50);default:null;index" json:"plan_id,omitempty"`
	Status       string     `gorm:"type:varchar(32);not null;default:'none';index" json:"status"`
	TrialEndsAt  *time.Time `gorm:"type:timestamp;default:null" json:"trial_ends_at,omitempty"`
	PeriodEndsAt *time.Time `gorm:"type:timestamp;default:null" json:"period_ends_at,omitempty"`
	TrialUsedAt  *time.Time `gorm:"type:timestamp;default:null" json:"trial_used_at,omitempty"`
	LastSyncedAt *time.Time `gorm:"type:timestamp;default:null" json:"last_synced_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
