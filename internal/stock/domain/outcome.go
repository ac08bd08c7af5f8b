package domain

// ItemClassification is the verdict for one title of a purchase.
type ItemClassification int

const (
	ItemOK ItemClassification = iota
	ItemTitleNotFound
	ItemInsufficientStock
)

// OutcomeKind is the terminal result of reconciling a purchase.
type OutcomeKind string

const (
	OutcomeDuplicate OutcomeKind = "duplicate"
	OutcomeAccepted  OutcomeKind = "accepted"
	OutcomeRejected  OutcomeKind = "rejected"
)

// Outcome is returned by the reconciliation engine. Rejection is set only for OutcomeRejected.
type Outcome struct {
	Kind      OutcomeKind
	Rejection *StockRejected
}

// Duplicate returns the outcome for an event that was already processed.
func Duplicate() Outcome {
	return Outcome{Kind: OutcomeDuplicate}
}

// Accepted returns the outcome for an applied purchase.
func Accepted() Outcome {
	return Outcome{Kind: OutcomeAccepted}
}

// Rejected returns the outcome for a purchase turned down with the given event.
func Rejected(event *StockRejected) Outcome {
	return Outcome{Kind: OutcomeRejected, Rejection: event}
}
