package domain

import (
	"encoding/csv"
	"io"
	"strings"
)

// Recipient is one destination identity: an email address, or a phone
// number paired with a carrier name for email-to-SMS gateway delivery.
type Recipient struct {
	Address string `json:"address"`
	Carrier string `json:"carrier,omitempty"` // SMS only; "auto" means try major gateways in order
}

// Key returns the deduplication key: the lower-cased trimmed email, or the
// last ten digits of the phone number.
func (r Recipient) Key() string {
	if strings.Contains(r.Address, "@") {
		return strings.ToLower(strings.TrimSpace(r.Address))
	}
	return LastTenDigits(r.Address)
}

// IsPhone reports whether the recipient is a phone number rather than an
// email address.
func (r Recipient) IsPhone() bool {
	return !strings.Contains(r.Address, "@")
}

// NormalizeEmail trims the address and reports whether it looks like a
// deliverable email (non-empty with an @). Anything stricter is left to the
// receiving server.
func NormalizeEmail(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !strings.Contains(s, "@") {
		return "", false
	}
	return s, true
}

// LastTenDigits strips every non-digit character and returns the last ten
// digits, or "" if fewer than ten remain.
func LastTenDigits(s string) string {
	var b strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	digits := b.String()
	if len(digits) < 10 {
		return ""
	}
	return digits[len(digits)-10:]
}

// ParseEmailList extracts email recipients from free-form text where
// addresses are separated by newlines and/or commas. Malformed entries are
// silently dropped; duplicates are removed keeping first appearance order.
func ParseEmailList(text string) []Recipient {
	var out []Recipient
	for _, line := range strings.Split(text, "\n") {
		for _, field := range strings.Split(line, ",") {
			if addr, ok := NormalizeEmail(field); ok {
				out = append(out, Recipient{Address: addr})
			}
		}
	}
	return Dedupe(out)
}

// ParseEmailCSV extracts email recipients from CSV content. Every cell that
// looks like an email address counts; everything else is skipped.
func ParseEmailCSV(r io.Reader) ([]Recipient, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var out []Recipient
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		for _, cell := range row {
			if addr, ok := NormalizeEmail(cell); ok {
				out = append(out, Recipient{Address: addr})
			}
		}
	}
	return Dedupe(out), nil
}

// ParseSMSCSV extracts (phone, carrier) recipients from CSV rows. A row with
// a single column gets carrier "auto". Rows whose phone has fewer than ten
// digits are dropped.
func ParseSMSCSV(r io.Reader) ([]Recipient, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var out []Recipient
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) == 0 {
			continue
		}
		phone := strings.TrimSpace(row[0])
		if LastTenDigits(phone) == "" {
			continue
		}
		carrier := "auto"
		if len(row) >= 2 && strings.TrimSpace(row[1]) != "" {
			carrier = strings.TrimSpace(row[1])
		}
		out = append(out, Recipient{Address: phone, Carrier: carrier})
	}
	return Dedupe(out), nil
}

// Dedupe removes recipients with a duplicate or empty normalization key,
// preserving first-appearance order.
func Dedupe(rs []Recipient) []Recipient {
	seen := make(map[string]struct{}, len(rs))
	out := make([]Recipient, 0, len(rs))
	for _, r := range rs {
		key := r.Key()
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
