package entitlements

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultTrialDuration  = 7 * 24 * time.Hour
	DefaultPeriodDuration = 30 * 24 * time.Hour
)

var ErrTrialAlreadyUsed = errors.New("trial already used")

// TrialPolicy decides whether an account may start a trial more than once.
type TrialPolicy string

const (
	// TrialOncePerAccount allows a single trial over the account lifetime.
	TrialOncePerAccount TrialPolicy = "once"
	// TrialRepeatable restarts the trial on every request.
	TrialRepeatable TrialPolicy = "repeatable"
)

// ParseTrialPolicy maps configuration values; empty selects TrialOncePerAccount.
func ParseTrialPolicy(raw string) (TrialPolicy, error) {
	switch TrialPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", TrialOncePerAccount:
		return TrialOncePerAccount, nil
	case TrialRepeatable:
		return TrialRepeatable, nil
	}
	return "", fmt.Errorf("unknown trial policy %q", raw)
}

// trialEligibility checks the policy against the stored record. Records
// written before TrialUsedAt existed still count a past trial end.
func trialEligibility(policy TrialPolicy, rec Record) error {
	if policy == TrialRepeatable {
		return nil
	}
	if rec.TrialUsedAt != nil || rec.TrialEndsAt != nil {
		return ErrTrialAlreadyUsed
	}
	return nil
}
