// Package pattern substitutes {token} placeholders into message text at send
// time. Expansion never fails: tokens that cannot be resolved are left
// verbatim. Tokens do not nest.
package pattern

import (
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	alphanum = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	lower    = "abcdefghijklmnopqrstuvwxyz"
	upper    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits   = "0123456789"
)

// Each family matches both the length-qualified form {random:12} and the
// bare form {random}. The qualified form is matched first because the
// capture group is greedy within one regexp pass.
var (
	reRandom      = regexp.MustCompile(`\{random(?::(\d+))?\}`)
	reRandomLower = regexp.MustCompile(`\{random_lower(?::(\d+))?\}`)
	reRandomUpper = regexp.MustCompile(`\{random_upper(?::(\d+))?\}`)
	reRandomDigit = regexp.MustCompile(`\{random_digit(?::(\d+))?\}`)
	reUUID        = regexp.MustCompile(`\{uuid\}`)
)

// Expand renders every supported token in text. recipient is the raw
// identity of the destination ("" when there is no recipient context, in
// which case {email} and {name} are left untouched).
//
// Random tokens draw from the process-wide source; every occurrence gets a
// fresh value.
func Expand(text, recipient string) string {
	if !strings.Contains(text, "{") {
		return text
	}

	text = expandRandom(text, reRandom, alphanum, 8)
	text = expandRandom(text, reRandomLower, lower, 8)
	text = expandRandom(text, reRandomUpper, upper, 8)
	text = expandRandom(text, reRandomDigit, digits, 6)

	now := time.Now()
	text = strings.ReplaceAll(text, "{date}", now.Format("2006-01-02"))
	text = strings.ReplaceAll(text, "{time}", now.Format("15:04"))

	text = reUUID.ReplaceAllStringFunc(text, func(string) string {
		return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	})

	if recipient != "" {
		text = strings.ReplaceAll(text, "{email}", recipient)
		text = strings.ReplaceAll(text, "{name}", nameFromAddress(recipient))
	}

	return text
}

func expandRandom(text string, re *regexp.Regexp, charset string, defaultLen int) string {
	return re.ReplaceAllStringFunc(text, func(match string) string {
		n := defaultLen
		if sub := re.FindStringSubmatch(match); sub[1] != "" {
			if parsed, err := strconv.Atoi(sub[1]); err == nil && parsed > 0 {
				n = parsed
			}
		}
		return randomString(charset, n)
	})
}

func randomString(charset string, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}

// nameFromAddress turns the local part of an email address into a display
// name: separators become spaces and each word is title-cased.
func nameFromAddress(addr string) string {
	local := addr
	if i := strings.Index(addr, "@"); i >= 0 {
		local = addr[:i]
	}
	local = strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(local)

	words := strings.Fields(local)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
