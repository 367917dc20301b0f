package engine

// Outcome is the terminal result of one delivery of an OrderCreated
// message. Errors are reported separately and mean the delivery must be
// redelivered by the channel.
type Outcome int

const (
	// OutcomeUnknown is the zero value, returned alongside errors so a
	// forgotten outcome can never read as success.
	OutcomeUnknown Outcome = iota
	OutcomeProcessed
	OutcomeFailed
	OutcomeDuplicate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeProcessed:
		return "PROCESSED"
	case OutcomeFailed:
		return "FAILED"
	case OutcomeDuplicate:
		return "DUPLICATE_SKIPPED"
	default:
		return "UNKNOWN"
	}
}
