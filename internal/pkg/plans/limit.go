package plans

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

const unlimitedLabel = "unlimited"

// Limit is either a finite count or unlimited. The zero value is Finite(0).
type Limit struct {
	n         int
	unlimited bool
}

func Finite(n int) Limit {
	if n < 0 {
		n = 0
	}
	return Limit{n: n}
}

func Unlimited() Limit {
	return Limit{unlimited: true}
}

func (l Limit) IsUnlimited() bool {
	return l.unlimited
}

// Value returns the finite bound. ok is false for Unlimited.
func (l Limit) Value() (n int, ok bool) {
	if l.unlimited {
		return 0, false
	}
	return l.n, true
}

// Allows reports whether one more item fits when count items already exist.
func (l Limit) Allows(count int) bool {
	if l.unlimited {
		return true
	}
	return count < l.n
}

func (l Limit) String() string {
	if l.unlimited {
		return unlimitedLabel
	}
	return strconv.Itoa(l.n)
}

func (l Limit) MarshalJSON() ([]byte, error) {
	if l.unlimited {
		return json.Marshal(unlimitedLabel)
	}
	return json.Marshal(l.n)
}

func (l *Limit) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err == nil {
		if label != unlimitedLabel {
			return fmt.Errorf("invalid limit %q", label)
		}
		*l = Unlimited()
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("limit must be a non-negative integer or \"unlimited\"")
	}
	if n < 0 {
		return fmt.Errorf("invalid limit %d", n)
	}
	*l = Finite(n)
	return nil
}
