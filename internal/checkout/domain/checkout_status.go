package domain

type CheckoutStatus string

const (
	CheckoutStatusCollectingShipping CheckoutStatus = "COLLECTING_SHIPPING"
	CheckoutStatusReviewingOrder     CheckoutStatus = "REVIEWING_ORDER"
	CheckoutStatusCompleted          CheckoutStatus = "COMPLETED"
	CheckoutStatusAbandoned          CheckoutStatus = "ABANDONED"
	CheckoutStatusFailed             CheckoutStatus = "FAILED"
)

var transitions = map[CheckoutStatus][]CheckoutStatus{
	CheckoutStatusCollectingShipping: {CheckoutStatusReviewingOrder, CheckoutStatusAbandoned},
	CheckoutStatusReviewingOrder: {
		CheckoutStatusCollectingShipping,
		CheckoutStatusCompleted,
		CheckoutStatusFailed,
		CheckoutStatusAbandoned,
	},
	CheckoutStatusFailed: {CheckoutStatusReviewingOrder, CheckoutStatusAbandoned},
}

func CanTransitionTo(from, to CheckoutStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusCompleted || s == CheckoutStatusAbandoned
}

// Step is the 1-based wizard step shown to the customer; 0 outside the wizard.
func (s CheckoutStatus) Step() int {
	switch s {
	case CheckoutStatusCollectingShipping:
		return 1
	case CheckoutStatusReviewingOrder, CheckoutStatusFailed:
		return 2
	case CheckoutStatusCompleted:
		return 3
	default:
		return 0
	}
}

// String representation (for logging)
func (s CheckoutStatus) String() string {
	return string(s)
}
