package billing

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ManuelReschke/PropertyDesk/internal/pkg/plans"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeCancel  Outcome = "cancel"
	OutcomeFailure Outcome = "failure"
)

func (o Outcome) valid() bool {
	switch o {
	case OutcomeSuccess, OutcomeCancel, OutcomeFailure:
		return true
	}
	return false
}

// CallbackParams are the values carried on a checkout return URL.
type CallbackParams struct {
	Status     Outcome
	PlanID     string
	AccountID  string
	CheckoutID string
	Interval   string
	Timestamp  string
}

// canonical length-prefixes every field so no two parameter sets share a
// signing string, whatever characters the ids contain.
func (p CallbackParams) canonical() string {
	var b strings.Builder
	for _, f := range []string{string(p.Status), p.PlanID, p.AccountID, p.CheckoutID, p.Interval, p.Timestamp} {
		b.WriteString(strconv.Itoa(len(f)))
		b.WriteByte(':')
		b.WriteString(f)
		b.WriteByte('|')
	}
	return b.String()
}

// Callback is a parsed and validated checkout return.
type Callback struct {
	Outcome        Outcome
	AccountID      string
	PlanID         plans.ID
	CheckoutID     string
	Interval       plans.Interval
	EventTime      time.Time
	SignatureValid bool
}

// BuildCallbackURLs embeds account, plan, checkout id, interval and issue time in the
// success, cancel and failure URLs, signed when signer is enabled.
func BuildCallbackURLs(base string, in Intent, signer *CallbackSigner) (CallbackURLs, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return CallbackURLs{}, fmt.Errorf("invalid callback base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return CallbackURLs{}, fmt.Errorf("callback base url must be absolute: %q", base)
	}

	ts := ""
	if !in.IssuedAt.IsZero() {
		ts = strconv.FormatInt(in.IssuedAt.Unix(), 10)
	}
	build := func(status Outcome) string {
		p := CallbackParams{
			Status:     status,
			PlanID:     string(in.PlanID),
			AccountID:  in.AccountID,
			CheckoutID: in.CheckoutID,
			Interval:   string(in.Interval),
			Timestamp:  ts,
		}
		q := u.Query()
		q.Set("status", string(status))
		q.Set("plan", p.PlanID)
		q.Set("user", p.AccountID)
		if p.CheckoutID != "" {
			q.Set("checkout", p.CheckoutID)
		}
		if p.Interval != "" {
			q.Set("interval", p.Interval)
		}
		if ts != "" {
			q.Set("ts", ts)
		}
		if sig := signer.Sign(p); sig != "" {
			q.Set("sig", sig)
		}
		out := *u
		out.RawQuery = q.Encode()
		return out.String()
	}

	return CallbackURLs{
		Success: build(OutcomeSuccess),
		Cancel:  build(OutcomeCancel),
		Failure: build(OutcomeFailure),
	}, nil
}

// ParseCallback validates return query parameters. A callback with a bad
// signature is still returned so callers can log it, together with
// ErrInvalidCallbackSignature.
func ParseCallback(query url.Values, signer *CallbackSigner) (Callback, error) {
	p := CallbackParams{
		Status:     Outcome(strings.ToLower(strings.TrimSpace(query.Get("status")))),
		PlanID:     strings.TrimSpace(query.Get("plan")),
		AccountID:  strings.TrimSpace(query.Get("user")),
		CheckoutID: strings.TrimSpace(query.Get("checkout")),
		Interval:   strings.TrimSpace(query.Get("interval")),
		Timestamp:  strings.TrimSpace(query.Get("ts")),
	}

	var missing []string
	if p.Status == "" {
		missing = append(missing, "status")
	}
	if p.PlanID == "" {
		missing = append(missing, "plan")
	}
	if p.AccountID == "" {
		missing = append(missing, "user")
	}
	if len(missing) > 0 {
		return Callback{}, fmt.Errorf("%w: missing %s", ErrMalformedCallback, strings.Join(missing, ", "))
	}
	if !p.Status.valid() {
		return Callback{}, fmt.Errorf("%w: unknown status %q", ErrMalformedCallback, p.Status)
	}

	cb := Callback{
		Outcome:    p.Status,
		AccountID:  p.AccountID,
		PlanID:     plans.Normalize(p.PlanID),
		CheckoutID: p.CheckoutID,
		Interval:   plans.Monthly,
	}
	switch plans.Interval(p.Interval) {
	case "", plans.Monthly:
	case plans.Yearly:
		cb.Interval = plans.Yearly
	default:
		return Callback{}, fmt.Errorf("%w: unknown interval %q", ErrMalformedCallback, p.Interval)
	}
	if p.Timestamp != "" {
		secs, err := strconv.ParseInt(p.Timestamp, 10, 64)
		if err != nil || secs <= 0 {
			return Callback{}, fmt.Errorf("%w: invalid ts %q", ErrMalformedCallback, p.Timestamp)
		}
		cb.EventTime = time.Unix(secs, 0).UTC()
	}

	cb.SignatureValid = signer.Verify(p, query.Get("sig"))
	if !cb.SignatureValid {
		return cb, ErrInvalidCallbackSignature
	}
	return cb, nil
}
