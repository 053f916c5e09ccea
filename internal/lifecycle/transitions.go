// Package lifecycle drives trades through their status machine and records
// the ledger effect of every transition.
package lifecycle

import (
	"trade-journal/internal/errors"
	"trade-journal/internal/models"
)

// transitions lists every legal status change.
var transitions = map[models.Status][]models.Status{
	models.StatusNew:             {models.StatusFunded, models.StatusCanceled},
	models.StatusFunded:          {models.StatusSubmitted, models.StatusCanceled},
	models.StatusSubmitted:       {models.StatusPartiallyFilled, models.StatusFilled, models.StatusCanceled},
	models.StatusPartiallyFilled: {models.StatusPartiallyFilled, models.StatusFilled, models.StatusClosed},
	models.StatusFilled:          {models.StatusClosed},
}

// CanTransition reports whether a trade may move from one status to another.
func CanTransition(from, to models.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Next returns the statuses reachable from s.
func Next(s models.Status) []models.Status {
	out := make([]models.Status, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

func checkTransition(from, to models.Status) error {
	if !CanTransition(from, to) {
		return errors.NewIllegalTransitionError(string(from), string(to))
	}
	return nil
}
