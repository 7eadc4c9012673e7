package domain

import (
	"regexp"
	"strings"
)

// National identifiers follow the Swiss AVS layout: 13 digits written as
// NNN.NNNN.NNNN.NN, the last digit being an EAN-13 check digit over the
// first twelve.

var nationalIDPattern = regexp.MustCompile(`^\d{3}\.\d{4}\.\d{4}\.\d{2}$`)

// NationalIDDigits strips the dots from a canonical national ID. It also
// accepts the already-stripped 13-digit form used for internal storage.
func NationalIDDigits(id string) (string, bool) {
	id = strings.TrimSpace(id)
	if nationalIDPattern.MatchString(id) {
		return strings.ReplaceAll(id, ".", ""), true
	}
	if len(id) == 13 && isAllDigits(id) {
		return id, true
	}
	return "", false
}

// FormatNationalID renders 13 raw digits in the canonical dotted form.
func FormatNationalID(digits string) string {
	if len(digits) != 13 {
		return digits
	}
	return digits[0:3] + "." + digits[3:7] + "." + digits[7:11] + "." + digits[11:13]
}

// ValidNationalID checks both the format and the EAN-13 checksum of a
// national ID. The check digit is computed over the first 12 digits with
// alternating weights 1 and 3.
func ValidNationalID(id string) bool {
	digits, ok := NationalIDDigits(id)
	if !ok {
		return false
	}
	sum := 0
	for i := 0; i < 12; i++ {
		d := int(digits[i] - '0')
		if i%2 == 0 {
			sum += d
		} else {
			sum += d * 3
		}
	}
	check := (10 - sum%10) % 10
	return check == int(digits[12]-'0')
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
