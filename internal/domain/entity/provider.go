package entity

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownProvider is returned when a provider identifier is not recognised
var ErrUnknownProvider = errors.New("unknown provider")

// ProviderID identifies an upstream rate source
type ProviderID string

const (
	// ProviderFrankfurter is the frankfurter.app ECB reference rate feed
	ProviderFrankfurter ProviderID = "frankfurter"
)

// ParseProviderID converts a string to a ProviderID, ignoring case
func ParseProviderID(s string) (ProviderID, error) {
	id := ProviderID(strings.ToLower(strings.TrimSpace(s)))
	switch id {
	case ProviderFrankfurter:
		return id, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
}

func (p ProviderID) String() string {
	return string(p)
}
