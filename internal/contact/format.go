package contact

import "strings"

// MaxDigits is the length of a domestic subscriber number.
const MaxDigits = 10

// Digits strips every character that is not an ASCII decimal digit.
func Digits(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		if c := value[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// FormatForDisplay renders the current field value as (DDD) DDD-DDDD.
//
// The value is always recomputed from scratch: non-digits are dropped, the
// first ten digits are kept and the rest ignored. Partial input renders
// progressively so the separators only appear once their segment has a
// digit:
//
//	"12"         -> "12"
//	"1234"       -> "(123) 4"
//	"1234567"    -> "(123) 456-7"
//	"1234567890" -> "(123) 456-7890"
func FormatForDisplay(input string) string {
	d := Digits(input)
	if len(d) > MaxDigits {
		d = d[:MaxDigits]
	}

	switch {
	case len(d) <= 3:
		return d
	case len(d) <= 6:
		return "(" + d[:3] + ") " + d[3:]
	default:
		return "(" + d[:3] + ") " + d[3:6] + "-" + d[6:]
	}
}
