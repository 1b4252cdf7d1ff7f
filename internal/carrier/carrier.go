// Package carrier maps US mobile carriers to their email-to-SMS gateway
// domains.
package carrier

import "strings"

// Auto is the sentinel carrier name that triggers ordered gateway fallback.
const Auto = "auto"

// AutoOrder lists the domains tried for carrier "auto", largest subscriber
// base first.
var AutoOrder = []string{
	"vtext.com",                // Verizon
	"tmomail.net",              // T-Mobile
	"txt.att.net",              // AT&T
	"messaging.sprintpcs.com",  // Sprint
}

var gateways = map[string]string{
	"att":               "txt.att.net",
	"tmobile":           "tmomail.net",
	"verizon":           "vtext.com",
	"sprint":            "messaging.sprintpcs.com",
	"uscellular":        "email.uscc.net",
	"metropcs":          "mymetropcs.com",
	"boostmobile":       "sms.myboostmobile.com",
	"cricket":           "sms.cricketwireless.net",
	"virginmobile":      "vmobl.com",
	"googlefi":          "msg.fi.google.com",
	"republicwireless":  "text.republicwireless.com",
	"straighttalk":      "vtext.com",
	"mintmobile":        "tmomail.net",
	"xfinitymobile":     "vtext.com",
	"visible":           "vtext.com",
}

// Domain resolves a carrier name to its gateway domain. Lookup is
// insensitive to case, spaces, and punctuation ("T-Mobile" == "tmobile").
// A value that already looks like a domain is passed through unchanged, so
// callers can supply an explicit gateway directly.
func Domain(name string) (string, bool) {
	key := normalize(name)
	if d, ok := gateways[key]; ok {
		return d, true
	}
	if strings.Contains(name, ".") {
		return strings.TrimSpace(strings.ToLower(name)), true
	}
	return "", false
}

// IsAuto reports whether the carrier name requests ordered fallback.
func IsAuto(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), Auto)
}

func normalize(name string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(name) {
		if c >= 'a' && c <= 'z' || c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	return b.String()
}
