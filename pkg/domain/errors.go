package domain

import "fmt"

// ErrInvalidParameter is returned when a search parameter cannot be accepted.
// It aborts the whole request before any catalog scan.
type ErrInvalidParameter struct {
	Name   string
	Value  string
	Reason string
}

func (e ErrInvalidParameter) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid parameter %s=%q", e.Name, e.Value)
	}
	return fmt.Sprintf("invalid parameter %s=%q: %s", e.Name, e.Value, e.Reason)
}

// ErrUnknownSpecies is returned when a species code matches no supported species.
type ErrUnknownSpecies struct {
	Code string
}

func (e ErrUnknownSpecies) Error() string {
	return fmt.Sprintf("unknown species %q", e.Code)
}
