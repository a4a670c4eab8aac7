package contact

import (
	"fmt"
	"regexp"
	"strings"
)

// DomesticCountryCode is prepended to domestic numbers on the wire.
const DomesticCountryCode = "+1"

const (
	msgMissingValue  = "Contact number is required"
	msgInvalidFormat = "Include country code, e.g. +1234567890"
	msgInvalidLength = "Format should be (123) 456-7890"
)

var internationalPattern = regexp.MustCompile(`^\+\d{10,15}$`)

// RuleSet is one scheme for entering, checking and sending a contact number.
// A deployment picks a single rule set for every form.
type RuleSet interface {
	Name() string
	// Format reformats the field after a keystroke.
	Format(input string) string
	Validate(value string) Result
	// ToWireFormat converts an entered value into the API's contactNo field.
	// The result always starts with '+' and contains only digits after it.
	ToWireFormat(value string) string
	// FromWireFormat converts a stored contactNo back into an editable value.
	FromWireFormat(wire string) string
	Label() string
	Placeholder() string
}

var (
	// Domestic accepts ten-digit numbers typed freely and shown as (DDD) DDD-DDDD.
	Domestic RuleSet = domestic{}
	// International accepts '+' followed by 10 to 15 digits, typed as sent.
	International RuleSet = international{}
)

// ParseRuleSet resolves a configured rule set name. Empty means Domestic.
func ParseRuleSet(name string) (RuleSet, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "domestic", "b":
		return Domestic, nil
	case "international", "a":
		return International, nil
	default:
		return nil, fmt.Errorf("unknown contact rule set %q", name)
	}
}

type domestic struct{}

func (domestic) Name() string { return "domestic" }

func (domestic) Format(input string) string { return FormatForDisplay(input) }

func (domestic) Validate(value string) Result {
	if strings.TrimSpace(value) == "" {
		return Result{Kind: KindMissingValue, Message: msgMissingValue}
	}
	if len(Digits(value)) != MaxDigits {
		return Result{Kind: KindInvalidLength, Message: msgInvalidLength}
	}
	return Result{}
}

func (domestic) ToWireFormat(value string) string {
	return DomesticCountryCode + Digits(value)
}

func (domestic) FromWireFormat(wire string) string {
	if d, ok := domesticDigits(wire); ok {
		return FormatForDisplay(d)
	}
	return FormatForDisplay(wire)
}

func (domestic) Label() string { return "Contact Number" }

func (domestic) Placeholder() string { return "(123) 456-7890" }

type international struct{}

func (international) Name() string { return "international" }

func (international) Format(input string) string { return input }

func (international) Validate(value string) Result {
	value = strings.TrimSpace(value)
	if value == "" {
		return Result{Kind: KindMissingValue, Message: msgMissingValue}
	}
	if !internationalPattern.MatchString(value) {
		return Result{Kind: KindInvalidFormat, Message: msgInvalidFormat}
	}
	return Result{}
}

func (international) ToWireFormat(value string) string {
	trimmed := strings.TrimSpace(value)
	if internationalPattern.MatchString(trimmed) {
		return trimmed
	}
	return "+" + Digits(trimmed)
}

func (international) FromWireFormat(wire string) string { return wire }

func (international) Label() string { return "Contact Number (with country code)" }

func (international) Placeholder() string { return "+1234567890" }

// domesticDigits reports the subscriber digits of a "+1" wire value.
func domesticDigits(wire string) (string, bool) {
	wire = strings.TrimSpace(wire)
	if !strings.HasPrefix(wire, DomesticCountryCode) {
		return "", false
	}
	rest := wire[len(DomesticCountryCode):]
	if len(rest) != MaxDigits || Digits(rest) != rest {
		return "", false
	}
	return rest, true
}
