package identity

import (
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is used to parse national numbers that omit the country
// prefix. Override before registration if your deployment serves one region.
var DefaultPhoneRegion = "US"

// NormalizePhone parses an optional contact number and returns its E.164 form
// so SMS delivery and storage share one canonical representation. An empty
// input is not an error; registration treats the phone as optional.
func NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	num, err := phonenumbers.Parse(raw, DefaultPhoneRegion)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryValidation, "invalid phone number").
			WithTextCode("INVALID_PHONE")
	}

	if !phonenumbers.IsValidNumber(num) {
		return "", errors.New("phone number is not valid for its region", errors.CategoryValidation).
			WithTextCode("INVALID_PHONE")
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}
