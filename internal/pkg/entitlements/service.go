package entitlements

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/ManuelReschke/PropertyDesk/internal/pkg/billing"
	"github.com/ManuelReschke/PropertyDesk/internal/pkg/metrics"
	"github.com/ManuelReschke/PropertyDesk/internal/pkg/plans"
)

var (
	ErrAlreadyActive   = errors.New("paid period already active")
	ErrPlanNotSellable = errors.New("plan cannot be purchased or trialed")
	ErrInvalidAccount  = errors.New("account id is required")
	ErrStaleEvent      = errors.New("payment event too old to grant a period")
)

const checkoutCacheTTL = 2 * time.Minute

func init() {
	metrics.RegisterOutcome(ErrStoreUnavailable, "store_unavailable")
	metrics.RegisterOutcome(plans.ErrNotFound, "not_found")
	metrics.RegisterOutcome(ErrAlreadyActive, "already_active")
	metrics.RegisterOutcome(ErrTrialAlreadyUsed, "trial_already_used")
	metrics.RegisterOutcome(ErrPlanNotSellable, "not_sellable")
	metrics.RegisterOutcome(ErrInvalidTransition, "invalid_transition")
	metrics.RegisterOutcome(ErrStaleEvent, "stale_event")
}

// Catalog is the plan lookup the service depends on.
type Catalog interface {
	Get(planID string) (plans.Definition, error)
	Free() plans.Definition
	IsSellable(planID string) bool
}

// Service is the single source of truth for what an account may use. All
// status is derived from stored timestamps at read time; nothing advances
// state in the background.
type Service struct {
	store   Store
	catalog Catalog
	gateway billing.Gateway

	now            func() time.Time
	trialPolicy    TrialPolicy
	trialDuration  time.Duration
	periodDuration time.Duration

	checkoutCache   billing.CheckoutCache
	callbackBaseURL string
	signer          *billing.CallbackSigner
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithTrialPolicy(p TrialPolicy) Option {
	return func(s *Service) { s.trialPolicy = p }
}

func WithTrialDuration(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.trialDuration = d
		}
	}
}

func WithPeriodDuration(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.periodDuration = d
		}
	}
}

func WithCheckoutCache(c billing.CheckoutCache) Option {
	return func(s *Service) { s.checkoutCache = c }
}

// WithCallbackBaseURL sets the absolute URL the gateway returns users to.
func WithCallbackBaseURL(base string) Option {
	return func(s *Service) { s.callbackBaseURL = strings.TrimSpace(base) }
}

func WithSigner(signer *billing.CallbackSigner) Option {
	return func(s *Service) { s.signer = signer }
}

func NewService(store Store, catalog Catalog, gateway billing.Gateway, opts ...Option) *Service {
	s := &Service{
		store:          store,
		catalog:        catalog,
		gateway:        gateway,
		now:            time.Now,
		trialPolicy:    TrialOncePerAccount,
		trialDuration:  DefaultTrialDuration,
		periodDuration: DefaultPeriodDuration,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signer returns the callback signer used for checkout return URLs.
func (s *Service) Signer() *billing.CallbackSigner {
	return s.signer
}

// Catalog exposes the plan table the service resolves limits from.
func (s *Service) Catalog() Catalog {
	return s.catalog
}

// clock returns the current time truncated to the precision the store keeps.
func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Second)
}

// RequestTrial starts a trial of planID. It is refused while a paid period is
// live and, under TrialOncePerAccount, when the account already had a trial.
func (s *Service) RequestTrial(ctx context.Context, accountID, planID string) (Record, error) {
	rec, err := s.requestTrial(ctx, accountID, planID)
	metrics.RecordTransition("request_trial", err)
	return rec, err
}

func (s *Service) requestTrial(ctx context.Context, accountID, planID string) (Record, error) {
	accountID, err := normalizeAccount(accountID)
	if err != nil {
		return Record{}, err
	}
	def, err := s.sellablePlan(planID)
	if err != nil {
		return Record{}, err
	}

	rec, err := s.store.Get(ctx, accountID)
	if err != nil {
		return Record{}, err
	}
	now := s.clock()
	current, _ := derive(rec, now)
	if current == StatusActive {
		return rec, ErrAlreadyActive
	}
	if err := trialEligibility(s.trialPolicy, rec); err != nil {
		return rec, err
	}
	if !CanTransition(current, StatusTrialing) {
		return rec, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, StatusTrialing)
	}

	next := rec
	next.PlanID = def.ID
	next.Status = StatusTrialing
	next.TrialEndsAt = timePtr(now.Add(s.trialDuration))
	// a paid period that ends before the trial stays on record
	if next.PeriodEndsAt != nil && !next.PeriodEndsAt.After(now) {
		next.PeriodEndsAt = nil
	}
	if next.TrialUsedAt == nil {
		next.TrialUsedAt = timePtr(now)
	}
	if err := s.store.Put(ctx, next); err != nil {
		return rec, err
	}
	log.Infof("entitlement: trial of %s started for %s until %s", def.ID, accountID, next.TrialEndsAt.Format(time.RFC3339))
	return next, nil
}

// BeginCheckout opens a hosted checkout and returns the URL to redirect the
// user to. The stored record is not touched; only a confirmed callback is.
func (s *Service) BeginCheckout(ctx context.Context, accountID, planID string, interval plans.Interval) (string, error) {
	url, err := s.beginCheckout(ctx, accountID, planID, interval)
	metrics.RecordTransition("begin_checkout", err)
	return url, err
}

func (s *Service) beginCheckout(ctx context.Context, accountID, planID string, interval plans.Interval) (string, error) {
	accountID, err := normalizeAccount(accountID)
	if err != nil {
		return "", err
	}
	def, err := s.sellablePlan(planID)
	if err != nil {
		return "", err
	}
	if interval != plans.Yearly {
		interval = plans.Monthly
	}

	cacheKey := billing.CheckoutCacheKey(accountID, string(def.ID), string(interval))
	if s.checkoutCache != nil {
		if cached, ok, cErr := s.checkoutCache.Get(ctx, cacheKey); cErr != nil {
			log.Warnf("entitlement: checkout cache read failed for %s: %v", accountID, cErr)
		} else if ok {
			return cached, nil
		}
	}

	if s.callbackBaseURL == "" {
		return "", fmt.Errorf("%w: callback base url is not configured", billing.ErrGatewayUnavailable)
	}

	intent := billing.Intent{
		CheckoutID:  uuid.NewString(),
		AccountID:   accountID,
		PlanID:      def.ID,
		Interval:    interval,
		Amount:      def.Price(interval),
		Description: fmt.Sprintf("%s plan (%s)", def.Name, interval),
		IssuedAt:    s.clock(),
	}
	intent.CallbackURLs, err = billing.BuildCallbackURLs(s.callbackBaseURL, intent, s.signer)
	if err != nil {
		return "", fmt.Errorf("%w: %w", billing.ErrGatewayUnavailable, err)
	}

	checkout, err := s.gateway.CreateCheckout(ctx, intent)
	if err != nil {
		log.Warnf("entitlement: checkout for %s (%s) via %s failed: %v", accountID, def.ID, s.gateway.Name(), err)
		return "", err
	}

	if s.checkoutCache != nil {
		if cErr := s.checkoutCache.Set(ctx, cacheKey, checkout.RedirectURL, checkoutCacheTTL); cErr != nil {
			log.Warnf("entitlement: checkout cache write failed for %s: %v", accountID, cErr)
		}
	}
	log.Infof("entitlement: checkout %s opened for %s (%s, %s)", intent.CheckoutID, accountID, def.ID, interval)
	return checkout.RedirectURL, nil
}

// ConfirmSuccess grants a paid period of the purchased interval, counted
// from eventTime. The same event applied twice yields the same record. A
// zero eventTime means now; an eventTime in the future is clamped to now.
func (s *Service) ConfirmSuccess(ctx context.Context, accountID, planID string, interval plans.Interval, eventTime time.Time) (Record, error) {
	rec, err := s.confirmSuccess(ctx, accountID, planID, interval, eventTime)
	metrics.RecordTransition("confirm_success", err)
	return rec, err
}

// periodEnd returns when a period of interval bought at start ends. Yearly
// periods follow the calendar.
func (s *Service) periodEnd(start time.Time, interval plans.Interval) time.Time {
	if interval == plans.Yearly {
		return start.AddDate(1, 0, 0)
	}
	return start.Add(s.periodDuration)
}

func (s *Service) confirmSuccess(ctx context.Context, accountID, planID string, interval plans.Interval, eventTime time.Time) (Record, error) {
	accountID, err := normalizeAccount(accountID)
	if err != nil {
		return Record{}, err
	}
	def, err := s.sellablePlan(planID)
	if err != nil {
		return Record{}, err
	}

	if interval != plans.Yearly {
		interval = plans.Monthly
	}

	rec, err := s.store.Get(ctx, accountID)
	if err != nil {
		return Record{}, err
	}
	now := s.clock()
	eventTime = eventTime.UTC().Truncate(time.Second)
	if eventTime.IsZero() || eventTime.After(now) {
		eventTime = now
	}
	periodEnd := s.periodEnd(eventTime, interval)

	if !periodEnd.After(now) {
		return rec, fmt.Errorf("%w: period would have ended %s", ErrStaleEvent, periodEnd.Format(time.RFC3339))
	}
	// An older event replayed after a newer one must not shorten the period.
	if rec.Status == StatusActive && rec.PeriodEndsAt != nil && rec.PeriodEndsAt.After(periodEnd) {
		log.Infof("entitlement: ignoring older success event for %s", accountID)
		return rec, nil
	}
	if rec.Status == StatusActive && rec.PlanID == def.ID && rec.TrialEndsAt == nil &&
		rec.PeriodEndsAt != nil && rec.PeriodEndsAt.Equal(periodEnd) {
		return rec, nil
	}
	if !CanTransition(rec.Status, StatusActive) {
		return rec, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, StatusActive)
	}

	next := rec
	next.PlanID = def.ID
	next.Status = StatusActive
	next.PeriodEndsAt = timePtr(periodEnd)
	next.TrialEndsAt = nil
	next.LastSyncedAt = timePtr(now)
	if err := s.store.Put(ctx, next); err != nil {
		return rec, err
	}
	log.Infof("entitlement: %s active on %s (%s) until %s", accountID, def.ID, interval, periodEnd.Format(time.RFC3339))
	return next, nil
}

// ConfirmCancelOrFailure acknowledges an abandoned or failed checkout. The
// prior entitlement stays as it was.
func (s *Service) ConfirmCancelOrFailure(ctx context.Context, accountID string) error {
	_ = ctx
	accountID, err := normalizeAccount(accountID)
	metrics.RecordTransition("confirm_cancel_or_failure", err)
	if err != nil {
		return err
	}
	log.Infof("entitlement: checkout for %s canceled or failed, entitlement unchanged", accountID)
	return nil
}

// Cancel revokes the current grant immediately, e.g. after a refund.
func (s *Service) Cancel(ctx context.Context, accountID string) (Record, error) {
	rec, err := s.cancel(ctx, accountID)
	metrics.RecordTransition("cancel", err)
	return rec, err
}

func (s *Service) cancel(ctx context.Context, accountID string) (Record, error) {
	accountID, err := normalizeAccount(accountID)
	if err != nil {
		return Record{}, err
	}
	rec, err := s.store.Get(ctx, accountID)
	if err != nil {
		return Record{}, err
	}
	if rec.Status == StatusCanceled && rec.TrialEndsAt == nil && rec.PeriodEndsAt == nil {
		return rec, nil
	}
	if !CanTransition(rec.Status, StatusCanceled) {
		return rec, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, StatusCanceled)
	}

	next := rec
	next.Status = StatusCanceled
	next.TrialEndsAt = nil
	next.PeriodEndsAt = nil
	if err := s.store.Put(ctx, next); err != nil {
		return rec, err
	}
	log.Infof("entitlement: %s canceled", accountID)
	return next, nil
}

// CanAddProperty reports whether an account managing count properties may
// add one more under its effective plan.
func (s *Service) CanAddProperty(ctx context.Context, accountID string, count int) (bool, Effective, error) {
	eff, err := s.Evaluate(ctx, accountID)
	if err != nil {
		return false, eff, err
	}
	return eff.PropertyLimit.Allows(count), eff, nil
}

func (s *Service) sellablePlan(planID string) (plans.Definition, error) {
	def, err := s.catalog.Get(planID)
	if err != nil {
		return plans.Definition{}, err
	}
	if !s.catalog.IsSellable(string(def.ID)) {
		return plans.Definition{}, fmt.Errorf("%w: %s", ErrPlanNotSellable, def.ID)
	}
	return def, nil
}

func normalizeAccount(accountID string) (string, error) {
	id := strings.TrimSpace(accountID)
	if id == "" {
		return "", ErrInvalidAccount
	}
	return id, nil
}
