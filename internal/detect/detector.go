// Package detect turns successive poll results into "new visitor" signals.
package detect

import (
	"sort"

	"turnero-desk/internal/model"
)

// Detector compares the size of successive poll results for one scope.
// A zero baseline means "not established yet", so the first non-empty
// result never reports a burst of arrivals.
type Detector struct {
	lastCount int
}

// Update records currentCount and returns how many turns arrived since the
// previous update. It never returns a negative number.
func (d *Detector) Update(currentCount int) int {
	if d.lastCount > 0 && currentCount > d.lastCount {
		n := currentCount - d.lastCount
		d.lastCount = currentCount
		return n
	}
	d.lastCount = currentCount
	return 0
}

// LastCount returns the current baseline.
func (d *Detector) LastCount() int {
	return d.lastCount
}

// Newcomers picks the n turns of cur that account for a detected increase.
// Turns whose id was absent from prev come first, newest arrival first;
// if there are fewer than n of those the newest remaining turns fill in.
func Newcomers(prev, cur []model.Turn, n int) []model.Turn {
	if n <= 0 || len(cur) == 0 {
		return nil
	}

	seen := make(map[int64]struct{}, len(prev))
	for _, t := range prev {
		seen[t.ID] = struct{}{}
	}

	var unseen, known []model.Turn
	for _, t := range cur {
		if _, ok := seen[t.ID]; ok {
			known = append(known, t)
		} else {
			unseen = append(unseen, t)
		}
	}
	newestFirst(unseen)
	newestFirst(known)

	out := append(unseen, known...)
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func newestFirst(turns []model.Turn) {
	sort.SliceStable(turns, func(i, j int) bool {
		return turns[i].HoraLlegada.After(turns[j].HoraLlegada)
	})
}

// Waiting counts the turns still in ESPERA, the scope the detector tracks.
func Waiting(turns []model.Turn) int {
	n := 0
	for _, t := range turns {
		if t.Estado == model.EstadoEspera {
			n++
		}
	}
	return n
}

// WaitingOnly returns the turns of turns still in ESPERA.
func WaitingOnly(turns []model.Turn) []model.Turn {
	out := make([]model.Turn, 0, len(turns))
	for _, t := range turns {
		if t.Estado == model.EstadoEspera {
			out = append(out, t)
		}
	}
	return out
}
