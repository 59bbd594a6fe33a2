package parse

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	phoneNoiseRe = regexp.MustCompile(`[\s\-().]`)
	phoneDigitRe = regexp.MustCompile(`^\+?\d{7,15}$`)
)

// PhoneNumber normalizes a customer contact into E.164 form for the SMS gateway.
// Local numbers with a leading 0 get countryCode in place of the 0.
func PhoneNumber(raw, countryCode string) (string, error) {
	s := phoneNoiseRe.ReplaceAllString(strings.TrimSpace(raw), "")
	if s == "" {
		return "", fmt.Errorf("empty phone number")
	}
	if !phoneDigitRe.MatchString(s) {
		return "", fmt.Errorf("invalid phone number: %q", raw)
	}

	switch {
	case strings.HasPrefix(s, "+"):
		return s, nil
	case strings.HasPrefix(s, "00"):
		return "+" + s[2:], nil
	case strings.HasPrefix(s, "0") && countryCode != "":
		return "+" + strings.TrimPrefix(countryCode, "+") + s[1:], nil
	case countryCode != "" && strings.HasPrefix(s, strings.TrimPrefix(countryCode, "+")):
		return "+" + s, nil
	}
	// local numbers without a country code go to the gateway as-is
	return s, nil
}
