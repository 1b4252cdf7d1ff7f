package domain

import "time"

// DeliveryResult is one append-only ledger record per recipient.
// It is never mutated after creation.
type DeliveryResult struct {
	Recipient  string    `json:"recipient"`
	Success    bool      `json:"success"`
	Detail     string    `json:"detail"`
	Kind       FailKind  `json:"kind,omitempty"` // empty on success
	TrackingID string    `json:"tracking_id,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Summary counts successes and failures over a result list.
type Summary struct {
	Total  int `json:"total"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

func Summarize(results []DeliveryResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Success {
			s.Sent++
		} else {
			s.Failed++
		}
	}
	return s
}
