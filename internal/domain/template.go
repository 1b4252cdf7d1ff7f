package domain

// Attachment is a named blob attached to an outgoing email.
type Attachment struct {
	Name string
	Data []byte
}

// MessageTemplate is the content to deliver, before per-recipient pattern
// expansion. Subject is ignored for SMS.
type MessageTemplate struct {
	Subject     string
	TextBody    string
	HTMLBody    string
	SenderName  string // optional display name for the From header
	Attachments []Attachment
}

func (t MessageTemplate) Validate() error {
	if t.TextBody == "" && t.HTMLBody == "" {
		return ErrEmptyBody
	}
	return nil
}
