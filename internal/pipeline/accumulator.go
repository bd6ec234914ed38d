package pipeline

import "github.com/law-makers/lotscout/pkg/models"

// accumulator keeps accepted records in acceptance order, first occurrence
// of a lot id wins
type accumulator struct {
	limit   int
	seen    map[string]struct{}
	records []*models.VehicleRecord
}

func newAccumulator(limit int) *accumulator {
	return &accumulator{limit: limit, seen: make(map[string]struct{})}
}

func (a *accumulator) has(lotID string) bool {
	_, ok := a.seen[lotID]
	return ok
}

// add reports whether rec was kept
func (a *accumulator) add(rec *models.VehicleRecord) bool {
	if rec == nil || rec.LotID == "" || a.has(rec.LotID) || a.full() {
		return false
	}
	a.seen[rec.LotID] = struct{}{}
	a.records = append(a.records, rec)
	return true
}

func (a *accumulator) full() bool {
	return len(a.records) >= a.limit
}

func (a *accumulator) len() int {
	return len(a.records)
}

func (a *accumulator) result() []*models.VehicleRecord {
	out := make([]*models.VehicleRecord, len(a.records))
	copy(out, a.records)
	return out
}
