package tinvault

import "strings"

// TINType distinguishes the two identifier formats the vault accepts.
type TINType string

const (
	TINTypeSSN TINType = "ssn"
	TINTypeEIN TINType = "ein"
)

func (t TINType) Valid() bool {
	return t == TINTypeSSN || t == TINTypeEIN
}

const tinLength = 9

// Normalize strips separators so validation and encryption always see the
// bare nine digits.
func Normalize(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateSSN reports whether the candidate is a well-formed Social
// Security Number. Area 000, 666 and 900-999 are never issued; group and
// serial segments cannot be all zeros.
func ValidateSSN(candidate string) bool {
	digits := Normalize(candidate)
	if len(digits) != tinLength {
		return false
	}

	area := digits[0:3]
	group := digits[3:5]
	serial := digits[5:9]

	if area == "000" || area == "666" || area[0] == '9' {
		return false
	}
	if group == "00" {
		return false
	}
	if serial == "0000" {
		return false
	}
	return true
}

// ValidateEIN reports whether the candidate is a well-formed Employer
// Identification Number with a campus prefix the IRS actually assigns.
func ValidateEIN(candidate string) bool {
	digits := Normalize(candidate)
	if len(digits) != tinLength {
		return false
	}
	_, ok := einPrefixes[digits[0:2]]
	return ok
}

// einPrefixes is the set of valid EIN campus prefixes published by the IRS.
var einPrefixes = func() map[string]struct{} {
	prefixes := []string{
		"01", "02", "03", "04", "05", "06", "10", "11", "12", "13", "14",
		"15", "16", "20", "21", "22", "23", "24", "25", "26", "27", "30",
		"31", "32", "33", "34", "35", "36", "37", "38", "39", "40", "41",
		"42", "43", "44", "45", "46", "47", "48", "50", "51", "52", "53",
		"54", "55", "56", "57", "58", "59", "60", "61", "62", "63", "64",
		"65", "66", "67", "68", "71", "72", "73", "74", "75", "76", "77",
		"80", "81", "82", "83", "84", "85", "86", "87", "88", "90", "91",
		"92", "93", "94", "95", "98", "99",
	}
	set := make(map[string]struct{}, len(prefixes))
	for _, p := range prefixes {
		set[p] = struct{}{}
	}
	return set
}()

// Validate dispatches on TIN type.
func Validate(candidate string, tinType TINType) bool {
	switch tinType {
	case TINTypeSSN:
		return ValidateSSN(candidate)
	case TINTypeEIN:
		return ValidateEIN(candidate)
	default:
		return false
	}
}

// Mask renders a display string that never reveals more than the last four
// digits: XXX-XX-1234 for SSNs, XX-XXX1234 for EINs.
func Mask(lastFour string, tinType TINType) string {
	if len(lastFour) != 4 {
		return ""
	}
	switch tinType {
	case TINTypeSSN:
		return "XXX-XX-" + lastFour
	case TINTypeEIN:
		return "XX-XXX" + lastFour
	default:
		return ""
	}
}
