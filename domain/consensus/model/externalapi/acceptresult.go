package externalapi

// AcceptStatus is the outcome of offering a candidate to the multiverse
type AcceptStatus uint8

// The possible acceptance outcomes
const (
	AcceptedAsHead AcceptStatus = iota
	AcceptedAsFork
	Rejected
)

func (s AcceptStatus) String() string {
	switch s {
	case AcceptedAsHead:
		return "AcceptedAsHead"
	case AcceptedAsFork:
		return "AcceptedAsFork"
	case Rejected:
		return "Rejected"
	}
	return "Unknown"
}

// AcceptResult describes what accepting a candidate changed
type AcceptResult struct {
	Status AcceptStatus
	Entry  *ChainEntry

	// Duplicate is set when the entry was already known with the same payload
	Duplicate bool

	// Reorg is set when the new head doesn't extend the previous head
	Reorg        bool
	PreviousHead *ChainEntry

	// Pruned holds the entries dropped for diverging too deep
	Pruned []*ChainEntry
}
