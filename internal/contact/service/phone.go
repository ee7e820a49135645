package service

import (
	"fmt"
	"strings"

	dErrors "registro/pkg/domain-errors"
)

// callingCodes maps 2-letter country codes to international calling codes
// for the markets the platform sells into.
var callingCodes = map[string]string{
	"RW": "250",
	"BI": "257",
	"CD": "243",
	"ET": "251",
	"GH": "233",
	"KE": "254",
	"NG": "234",
	"TZ": "255",
	"UG": "256",
	"ZA": "27",
	"ZM": "260",
	"AE": "971",
	"BE": "32",
	"CA": "1",
	"CH": "41",
	"CN": "86",
	"DE": "49",
	"ES": "34",
	"FR": "33",
	"GB": "44",
	"IN": "91",
	"IT": "39",
	"JP": "81",
	"NL": "31",
	"SE": "46",
	"US": "1",
}

// NormalizePhone converts a raw phone number into the +<calling-code>.<national>
// form both backends require. Leading zeros are stripped from the national
// part and an already-prefixed number is not prefixed twice.
func NormalizePhone(raw, countryCode string) (string, error) {
	cc, ok := callingCodes[strings.ToUpper(strings.TrimSpace(countryCode))]
	if !ok {
		return "", dErrors.Newf(dErrors.CodeBadRequest, "no calling code for country %q", countryCode)
	}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if digits == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "phone number has no digits")
	}

	national := digits
	switch {
	case strings.HasPrefix(strings.TrimSpace(raw), "+") && strings.HasPrefix(digits, cc):
		// Already internationally prefixed.
		national = digits[len(cc):]
	case strings.HasPrefix(digits, "00"+cc):
		// 00-style international prefix.
		national = digits[len(cc)+2:]
	}
	national = strings.TrimLeft(national, "0")
	if national == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "phone number is empty after normalization")
	}

	return fmt.Sprintf("+%s.%s", cc, national), nil
}
