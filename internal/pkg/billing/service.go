package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/ManuelReschke/PropertyDesk/app/models"
	"github.com/ManuelReschke/PropertyDesk/internal/pkg/metrics"
)

func init() {
	metrics.RegisterOutcome(ErrGatewayUnavailable, "unavailable")
	metrics.RegisterOutcome(ErrGatewayRejected, "rejected")
	metrics.RegisterOutcome(ErrMalformedCallback, "malformed")
	metrics.RegisterOutcome(ErrInvalidCallbackSignature, "invalid_signature")
}

// CallbackEventInput is the normalized input for callback persistence.
type CallbackEventInput struct {
	Provider       string
	CheckoutID     string
	Status         string
	AccountID      string
	PlanID         string
	RawQuery       string
	SignatureValid bool
}

// CallbackLog records checkout callbacks idempotently so replays can be
// detected before any entitlement change is applied.
type CallbackLog struct {
	repo CallbackRepository
}

func NewCallbackLog(repo CallbackRepository) *CallbackLog {
	return &CallbackLog{repo: repo}
}

func NewCallbackLogFromDB(db *gorm.DB) *CallbackLog {
	return NewCallbackLog(NewRepository(db))
}

// Record stores the callback unless the same event was seen before.
// created is false for duplicates.
func (l *CallbackLog) Record(ctx context.Context, in CallbackEventInput) (bool, *models.CheckoutCallback, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}

	cb := &models.CheckoutCallback{
		Provider:       provider,
		EventID:        CallbackEventID(in.CheckoutID, in.Status, in.RawQuery),
		Status:         strings.ToLower(strings.TrimSpace(in.Status)),
		AccountID:      strings.TrimSpace(in.AccountID),
		PlanID:         strings.TrimSpace(in.PlanID),
		RawQuery:       in.RawQuery,
		SignatureValid: in.SignatureValid,
	}
	if cb.Status == "" {
		cb.Status = "unknown"
	}
	return l.repo.CreateCallbackIfNotExists(ctx, cb)
}

// MarkProcessed marks a callback as handled and stores an optional error.
func (l *CallbackLog) MarkProcessed(ctx context.Context, callbackID uint, processingErr error) error {
	if callbackID == 0 {
		return errors.New("callback_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return l.repo.MarkCallbackProcessed(ctx, callbackID, errMsg)
}

// CallbackEventID keys a callback by checkout and status. Callbacks without
// a checkout id fall back to a hash of the raw query.
func CallbackEventID(checkoutID, status, rawQuery string) string {
	id := strings.TrimSpace(checkoutID)
	if id != "" {
		return id + ":" + strings.ToLower(strings.TrimSpace(status))
	}
	sum := sha256.Sum256([]byte(rawQuery))
	return "hash:" + hex.EncodeToString(sum[:])
}
