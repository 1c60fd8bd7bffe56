package conflict

// Decision is the outcome for an incoming change.
type Decision uint8

const (
	// Apply writes the incoming content.
	Apply Decision = iota
	// Agree means the content already matches; only the agreed state moves.
	Agree
	// Diverged means both sides moved; report a conflict and write nothing.
	Diverged
)

func (d Decision) String() string {
	switch d {
	case Apply:
		return "apply"
	case Agree:
		return "agree"
	case Diverged:
		return "diverged"
	default:
		return "unknown"
	}
}

// DecideUpsert decides what to do with incoming content. Empty fingerprints mean absent:
// local is the file on disk, agreed is the last agreed state, base is the state the
// sender built on and incoming is the new content.
func DecideUpsert(local, agreed, base, incoming string) Decision {
	switch {
	case local == incoming:
		return Agree
	case base != agreed:
		// sender did not see the last agreed state
		return Diverged
	case local == "" || local == agreed:
		return Apply
	default:
		// unsent local edit
		return Diverged
	}
}

// DecideDelete reports whether a delete built on base may remove the local file.
func DecideDelete(local, base string) bool {
	return local == "" || local == base
}
