package models

import "time"

const (
	PaymentProviderHosted = "hosted"
	PaymentProviderStripe = "stripe"
)

// CheckoutCallback stores inbound payment callbacks with deduplication
// metadata so a replayed redirect is applied at most once.
type CheckoutCallback struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;index:ux_checkout_callbacks_provider_event,unique,priority:1" json:"provider"`
	EventID         string     `gorm:"type:varchar(191);not null;index:ux_checkout_callbacks_provider_event,unique,priority:2" json:"event_id"`
	Status          string     `gorm:"type:varchar(20);not null;index" json:"status"`
	AccountID       string     `gorm:"type:varchar(191);not null;default:'';index" json:"account_id"`
	PlanID          string     `gorm:"type:varchar(50);not null;default:''" json:"plan_id"`
	RawQuery        string     `gorm:"type:text" json:"raw_query"`
	SignatureValid  bool       `gorm:"default:false;index" json:"signature_valid"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
