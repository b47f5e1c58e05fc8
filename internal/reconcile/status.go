package reconcile

import "jobsync/internal"

var progression = map[internal.Status]int{
	internal.StatusApplied:    0,
	internal.StatusAssessment: 1,
	internal.StatusInterview:  2,
	internal.StatusOffer:      3,
}

// CanTransition reports whether a row at from may move to to. Moves go forward
// along Applied -> Assessment -> Interview -> Offer, or sideways to Rejected
// from any state. Rejected is terminal.
func CanTransition(from, to internal.Status) bool {
	if from == to || !to.Valid() {
		return false
	}
	if from == internal.StatusRejected {
		return false
	}
	if to == internal.StatusRejected {
		return true
	}
	fromRank, ok := progression[from]
	if !ok {
		return true
	}
	return progression[to] > fromRank
}
