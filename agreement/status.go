package agreement

// Aggregate derives the agreement status from the party statuses. Rejected
// is absorbing: once current is rejected it stays rejected.
func Aggregate(current Status, parties []PartyStatus) Status {
	if current == StatusRejected {
		return StatusRejected
	}
	if len(parties) == 0 {
		return StatusDraft
	}

	signed := 0
	for _, s := range parties {
		switch s {
		case PartyRejected:
			return StatusRejected
		case PartySigned:
			signed++
		case PartyPending, PartyViewed:
		}
	}

	switch {
	case signed == len(parties):
		return StatusCompleted
	case signed > 0:
		return StatusPartiallySigned
	default:
		return StatusPending
	}
}

// Consistent reports whether status is what Aggregate would derive.
func Consistent(status Status, parties []PartyStatus) bool {
	return Aggregate(status, parties) == status
}

func statusesOf(parties []Party) []PartyStatus {
	out := make([]PartyStatus, len(parties))
	for i, p := range parties {
		out[i] = p.Status
	}
	return out
}
