// Package redact masks personal data in free text before it is stored.
package redact

import (
	"regexp"
	"sort"
	"strings"
)

// Kind names a category of personal data
type Kind string

const (
	KindEmail      Kind = "email"
	KindPhone      Kind = "phone"
	KindCreditCard Kind = "credit_card"
	KindIPAddress  Kind = "ip_address"
	KindNationalID Kind = "national_id"
)

// Finding is one span of personal data in a text
type Finding struct {
	Kind  Kind
	Value string
	Start int
	End   int
}

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)

	// card numbers may be grouped by spaces or dashes
	cardPattern = regexp.MustCompile(`\b(?:\d[ \-]?){12,18}\d\b`)

	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:\+?1[-. ]?)?\(?\b[0-9]{3}\)?[-. ]?[0-9]{3}[-. ][0-9]{4}\b`),
		regexp.MustCompile(`\+[0-9]{1,3}[-. ]?[0-9]{2,4}[-. ]?[0-9]{3,4}[-. ]?[0-9]{3,4}\b`),
	}

	ipv4Pattern = regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`)
	ipv6Pattern = regexp.MustCompile(`\b(?:[0-9a-fA-F]{1,4}:){7}[0-9a-fA-F]{1,4}\b`)

	nationalIDPattern = regexp.MustCompile(`\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`)
)

// Find returns every non-overlapping finding in text ordered by position.
// When two patterns claim the same span the earlier kind in detection order
// wins: emails, cards, national ids, IPs, then phones.
func Find(text string) []Finding {
	var findings []Finding

	add := func(kind Kind, re *regexp.Regexp, accept func(string) bool) {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			value := text[loc[0]:loc[1]]
			if accept != nil && !accept(value) {
				continue
			}
			if overlaps(findings, loc[0], loc[1]) {
				continue
			}
			findings = append(findings, Finding{Kind: kind, Value: value, Start: loc[0], End: loc[1]})
		}
	}

	add(KindEmail, emailPattern, nil)
	add(KindCreditCard, cardPattern, luhnValid)
	add(KindNationalID, nationalIDPattern, plausibleNationalID)
	add(KindIPAddress, ipv4Pattern, nil)
	add(KindIPAddress, ipv6Pattern, nil)
	for _, re := range phonePatterns {
		add(KindPhone, re, nil)
	}

	sort.Slice(findings, func(i, j int) bool { return findings[i].Start < findings[j].Start })
	return findings
}

// Contains reports whether text holds any personal data
func Contains(text string) bool {
	return len(Find(text)) > 0
}

// String replaces every finding with a placeholder such as [EMAIL]
func String(text string) string {
	findings := Find(text)
	if len(findings) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, f := range findings {
		b.WriteString(text[last:f.Start])
		b.WriteString(Placeholder(f.Kind))
		last = f.End
	}
	b.WriteString(text[last:])
	return b.String()
}

// Placeholder returns the replacement text for kind
func Placeholder(kind Kind) string {
	switch kind {
	case KindEmail:
		return "[EMAIL]"
	case KindPhone:
		return "[PHONE]"
	case KindCreditCard:
		return "[CARD]"
	case KindIPAddress:
		return "[IP]"
	case KindNationalID:
		return "[ID]"
	default:
		return "[REDACTED]"
	}
}

func overlaps(findings []Finding, start, end int) bool {
	for _, f := range findings {
		if start < f.End && f.Start < end {
			return true
		}
	}
	return false
}

// plausibleNationalID rejects the all-zero groups that are never issued
func plausibleNationalID(s string) bool {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return false
	}
	if parts[0] == "000" || parts[0] == "666" || parts[1] == "00" || parts[2] == "0000" {
		return false
	}
	return true
}

// luhnValid checks the card number checksum
func luhnValid(number string) bool {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)

	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
