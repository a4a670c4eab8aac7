package contact

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DisplayWire renders a stored contactNo for read-only views such as the
// dashboard. Domestic numbers use the (DDD) DDD-DDDD form, other
// international numbers the libphonenumber international format. Values
// that cannot be parsed are returned trimmed but otherwise untouched.
func DisplayWire(wire string) string {
	wire = strings.TrimSpace(wire)
	if wire == "" {
		return ""
	}
	if d, ok := domesticDigits(wire); ok {
		return FormatForDisplay(d)
	}
	if !strings.HasPrefix(wire, "+") {
		return wire
	}

	num, err := phonenumbers.Parse(wire, "")
	if err != nil {
		return wire
	}
	return phonenumbers.Format(num, phonenumbers.INTERNATIONAL)
}
