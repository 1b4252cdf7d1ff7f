package domain

// Mode selects how recipients are grouped into units of work.
type Mode string

const (
	ModeDirect   Mode = "direct"    // one email per recipient
	ModeBCCBatch Mode = "bcc-batch" // one message per batch, recipients blind-copied
	ModeGateway  Mode = "gateway"   // one SMS per recipient via carrier gateway
)

func (m Mode) IsValid() bool {
	switch m {
	case ModeDirect, ModeBCCBatch, ModeGateway:
		return true
	}
	return false
}

// DispatchPolicy bundles the throughput and rotation knobs for one run.
// The zero value preserves legacy behaviour: direct mode, a single
// connection, no delays, no rotation.
type DispatchPolicy struct {
	Mode           Mode `json:"mode"`
	BatchSize      int  `json:"batch_size"`       // bcc-batch only; default 50
	DelaySeconds   int  `json:"delay_seconds"`    // sleep duration after units
	DelayEveryN    int  `json:"delay_every_n"`    // 0 = sleep after every unit
	RotateAfterN   int  `json:"rotate_after_n"`   // 0 = never rotate providers
	RatePerSecond  int  `json:"rate_per_second"`  // 0 = no throughput cap
	EnableTracking bool `json:"enable_tracking"`
	EnablePatterns bool `json:"enable_patterns"`
}

// DefaultBatchSize is applied when bcc-batch mode is selected without an
// explicit batch size.
const DefaultBatchSize = 50

// WithDefaults returns a copy with unset fields filled in.
func (p DispatchPolicy) WithDefaults() DispatchPolicy {
	if p.Mode == "" {
		p.Mode = ModeDirect
	}
	if p.BatchSize <= 0 {
		p.BatchSize = DefaultBatchSize
	}
	return p
}

func (p DispatchPolicy) Validate() error {
	if p.Mode != "" && !p.Mode.IsValid() {
		return ErrInvalidMode
	}
	if p.DelaySeconds < 0 || p.DelayEveryN < 0 || p.RotateAfterN < 0 || p.RatePerSecond < 0 {
		return Errorf(FailConfig, "policy counters must not be negative")
	}
	return nil
}
