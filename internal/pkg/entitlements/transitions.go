package entitlements

import "errors"

var ErrInvalidTransition = errors.New("invalid entitlement transition")

// validTransitions lists the stored status moves the service may write.
var validTransitions = map[Status][]Status{
	StatusNone:     {StatusTrialing, StatusActive, StatusExpired},
	StatusTrialing: {StatusTrialing, StatusActive, StatusExpired, StatusCanceled},
	StatusActive:   {StatusActive, StatusExpired, StatusCanceled},
	StatusExpired:  {StatusTrialing, StatusActive, StatusExpired, StatusCanceled},
	StatusCanceled: {StatusTrialing, StatusActive, StatusCanceled},
}

func CanTransition(from, to Status) bool {
	if from == "" {
		from = StatusNone
	}
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
