package domain

// ScreeningRule is an operator-configurable advisory rule evaluated
// alongside the scoring pipeline. Matches annotate the analysis
// response; they never alter the combined risk score.
type ScreeningRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// Expression is a CEL expression over transaction variables
	// (amount, hour, merchant, location, device_id, payment_method,
	// velocity_count). Must evaluate to bool.
	Expression string `json:"expression"`

	// Severity is a free-form tag surfaced with the match
	// (e.g. "info", "warning", "critical").
	Severity string `json:"severity"`

	Enabled bool `json:"enabled"`
}

// ScreeningMatch records a screening rule that matched a transaction.
type ScreeningMatch struct {
	RuleID   string `json:"ruleId"`
	Name     string `json:"name"`
	Severity string `json:"severity"`
	Reason   string `json:"reason,omitempty"`
}
