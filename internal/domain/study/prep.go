package study

// Prepare returns a copy of the snapshot with derived attributes filled in:
//
//   - Baseline.Age is set to year(enrollment_date) − year(dob). This is a
//     plain year difference, not a calendar-aware age; the source dataset
//     defines it this way and downstream age bands depend on it.
//   - Week32.ReasonNotComplete is forced to "N/A" on completed rows, so the
//     sentinel holds exactly for completions.
//
// The input is never mutated and Prepare is idempotent: preparing an already
// prepared snapshot yields the same result.
func Prepare(in *Snapshot) *Snapshot {
	out := &Snapshot{
		Baseline:      make([]Baseline, len(in.Baseline)),
		Week13:        make([]Week13, len(in.Week13)),
		Week32:        make([]Week32, len(in.Week32)),
		AdverseEvents: make([]AdverseEvent, len(in.AdverseEvents)),
	}
	copy(out.Week13, in.Week13)
	copy(out.AdverseEvents, in.AdverseEvents)

	for i, b := range in.Baseline {
		if !b.DOB.IsZero() && !b.EnrollmentDate.IsZero() {
			age := b.EnrollmentDate.Year() - b.DOB.Year()
			b.Age = &age
		}
		out.Baseline[i] = b
	}

	for i, w := range in.Week32 {
		if w.Completed() {
			w.ReasonNotComplete = ReasonNA
		}
		out.Week32[i] = w
	}

	return out
}
