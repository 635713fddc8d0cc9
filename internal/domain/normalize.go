package domain

import "strings"

// NormalizeHumanName trims leading/trailing whitespace and collapses internal whitespace runs.
// It is used for user names and company names.
func NormalizeHumanName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeEmail trims whitespace and lowercases the address so lookups are case-insensitive.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeDigits strips every non-digit rune. CPF and CNPJ values are stored digits-only,
// so "123.456.789-09" and "12345678909" are the same document.
func NormalizeDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidCPF reports whether s (digits only) is an 11-digit CPF with valid check digits.
func ValidCPF(s string) bool {
	if len(s) != 11 || allSameDigit(s) {
		return false
	}
	d := digits(s)
	return checkDigit(d[:9], 10) == d[9] && checkDigit(d[:10], 11) == d[10]
}

// ValidCNPJ reports whether s (digits only) is a 14-digit CNPJ with valid check digits.
func ValidCNPJ(s string) bool {
	if len(s) != 14 || allSameDigit(s) {
		return false
	}
	d := digits(s)
	w1 := []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	w2 := []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	return weightedCheckDigit(d[:12], w1) == d[12] && weightedCheckDigit(d[:13], w2) == d[13]
}

func digits(s string) []int {
	out := make([]int, len(s))
	for i := 0; i < len(s); i++ {
		out[i] = int(s[i] - '0')
	}
	return out
}

func allSameDigit(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}

// checkDigit computes a CPF check digit with descending weights starting at firstWeight.
func checkDigit(d []int, firstWeight int) int {
	sum := 0
	for i, v := range d {
		sum += v * (firstWeight - i)
	}
	r := (sum * 10) % 11
	if r == 10 {
		return 0
	}
	return r
}

func weightedCheckDigit(d []int, weights []int) int {
	sum := 0
	for i, v := range d {
		sum += v * weights[i]
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}
