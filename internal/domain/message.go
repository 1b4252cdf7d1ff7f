package domain

// BuiltMessage is a provider-native message produced by a delivery strategy
// and handed to a live provider connection. For SMTP connections the envelope
// recipients are To plus Bcc; the cloud SMS API uses only To and TextBody.
type BuiltMessage struct {
	From     string
	FromName string
	To       string
	Bcc      []string
	Subject  string
	TextBody string
	HTMLBody string

	// Extra headers set verbatim (Message-ID, Reply-To, X-Tracking-ID, ...).
	Headers map[string]string

	Attachments []Attachment
}
