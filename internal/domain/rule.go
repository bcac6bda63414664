package domain

// AlertRule is an operator-defined alert condition, evaluated against each
// freshly scored history entry next to the built-in alert checks. The
// expression is a CEL program over the entry's fields; when it evaluates to
// true the rule's message is emitted as a custom-rule alert.
type AlertRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Expression is a CEL expression returning bool. Available variables:
	// amount, risk, prediction, customer_id, channel, hour, fraud_count.
	Expression string `json:"expression"`

	// Message is the alert message template; the entry's values are
	// appended by the rule engine.
	Message string `json:"message"`

	// Whether the rule is active
	Enabled bool `json:"enabled"`
}
