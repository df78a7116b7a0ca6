package model

const (
	DefaultTimezone                = "UTC"
	DefaultSlotStepMinutes         = 15
	DefaultMinNoticeMinutes        = 60
	DefaultMaxDaysAhead            = 60
	DefaultCancellationCutoffHours = 24
	DefaultCurrency                = "EUR"
)

// BookingSettings is the per-tenant scheduling policy.
type BookingSettings struct {
	Timezone                string
	SlotStepMinutes         int
	MinNoticeMinutes        int
	MaxDaysAhead            int
	CancellationCutoffHours int
	Currency                string
}

// WithDefaults fills unset fields of a stored settings row.
//
// MinNoticeMinutes and CancellationCutoffHours are NOT NULL columns with defaults, so a
// zero read from a row was set on purpose: zero notice allows booking right away and a
// zero cutoff allows cancelling until the start. Both are kept as zero; only negative
// values fall back to DefaultMinNoticeMinutes and DefaultCancellationCutoffHours. A
// tenant without a row gets DefaultSettings instead.
func (s BookingSettings) WithDefaults() BookingSettings {
	if s.Timezone == "" {
		s.Timezone = DefaultTimezone
	}
	if s.SlotStepMinutes <= 0 {
		s.SlotStepMinutes = DefaultSlotStepMinutes
	}
	if s.MinNoticeMinutes < 0 {
		s.MinNoticeMinutes = DefaultMinNoticeMinutes
	}
	if s.MaxDaysAhead <= 0 {
		s.MaxDaysAhead = DefaultMaxDaysAhead
	}
	if s.CancellationCutoffHours < 0 {
		s.CancellationCutoffHours = DefaultCancellationCutoffHours
	}
	if s.Currency == "" {
		s.Currency = DefaultCurrency
	}
	return s
}

// DefaultSettings is used when a tenant has no settings row.
func DefaultSettings() BookingSettings {
	return BookingSettings{
		Timezone:                DefaultTimezone,
		SlotStepMinutes:         DefaultSlotStepMinutes,
		MinNoticeMinutes:        DefaultMinNoticeMinutes,
		MaxDaysAhead:            DefaultMaxDaysAhead,
		CancellationCutoffHours: DefaultCancellationCutoffHours,
		Currency:                DefaultCurrency,
	}
}
