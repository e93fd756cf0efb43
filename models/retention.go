package models

// RetentionCategory groups tables sharing a maximum storage duration.
// Loaded once at process start; immutable at runtime.
type RetentionCategory struct {
	Name          string
	Tables        []string
	RetentionDays int
	// Critical categories hold business or billing records whose retention
	// period is driven by legal requirement rather than housekeeping.
	Critical bool
}
