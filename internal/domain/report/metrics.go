package report

import (
	"math"
	"sort"

	"github.com/trialstats/trialstats/internal/domain/study"
)

// round1 rounds to one decimal place, the precision every percentage and
// rate in the report is published at.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// sortedKeys returns map keys in lexical order so measure rows come out in a
// stable order regardless of map iteration.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EnrollmentByArm counts baseline rows per treatment group.
func EnrollmentByArm(snap *study.Snapshot) []EnrollmentCount {
	counts := map[string]int{}
	for _, b := range snap.Baseline {
		counts[b.TreatmentGroup]++
	}
	out := make([]EnrollmentCount, 0, len(counts))
	for _, arm := range sortedKeys(counts) {
		out = append(out, EnrollmentCount{TreatmentGroup: arm, Participants: counts[arm]})
	}
	return out
}

type ageAccum struct {
	count int
	sum   int
	min   int
	max   int
}

func (a *ageAccum) add(age int) {
	if a.count == 0 || age < a.min {
		a.min = age
	}
	if a.count == 0 || age > a.max {
		a.max = age
	}
	a.count++
	a.sum += age
}

func (a *ageAccum) stats() (mean float64, min, max int) {
	if a.count == 0 {
		return 0, 0, 0
	}
	return round1(float64(a.sum) / float64(a.count)), a.min, a.max
}

// AgeStatsByArm summarizes age per treatment group. Rows without a derived
// age are excluded from the summary.
func AgeStatsByArm(snap *study.Snapshot) []AgeStats {
	acc := map[string]*ageAccum{}
	for _, b := range snap.Baseline {
		if b.Age == nil {
			continue
		}
		a, ok := acc[b.TreatmentGroup]
		if !ok {
			a = &ageAccum{}
			acc[b.TreatmentGroup] = a
		}
		a.add(*b.Age)
	}
	out := make([]AgeStats, 0, len(acc))
	for _, arm := range sortedKeys(acc) {
		a := acc[arm]
		mean, min, max := a.stats()
		out = append(out, AgeStats{TreatmentGroup: arm, Count: a.count, MeanAge: mean, MinAge: min, MaxAge: max})
	}
	return out
}

// AgeStatsByArmSex summarizes age per (treatment group, sex).
func AgeStatsByArmSex(snap *study.Snapshot) []AgeStats {
	type key struct{ arm, sex string }
	acc := map[key]*ageAccum{}
	for _, b := range snap.Baseline {
		if b.Age == nil {
			continue
		}
		k := key{b.TreatmentGroup, b.Sex}
		a, ok := acc[k]
		if !ok {
			a = &ageAccum{}
			acc[k] = a
		}
		a.add(*b.Age)
	}
	keys := make([]key, 0, len(acc))
	for k := range acc {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].arm != keys[j].arm {
			return keys[i].arm < keys[j].arm
		}
		return keys[i].sex < keys[j].sex
	})
	out := make([]AgeStats, 0, len(keys))
	for _, k := range keys {
		a := acc[k]
		mean, min, max := a.stats()
		out = append(out, AgeStats{TreatmentGroup: k.arm, Sex: k.sex, Count: a.count, MeanAge: mean, MinAge: min, MaxAge: max})
	}
	return out
}

// ageBand buckets a derived age. Ages under 18 and missing ages land in
// Unknown, matching the study's adult-only enrollment bands.
func ageBand(age *int) string {
	if age == nil {
		return "Unknown"
	}
	switch a := *age; {
	case a >= 18 && a <= 40:
		return "18-40"
	case a >= 41 && a <= 50:
		return "41-50"
	case a >= 51 && a <= 60:
		return "51-60"
	case a >= 61 && a <= 70:
		return "61-70"
	case a >= 71:
		return "71+"
	default:
		return "Unknown"
	}
}

// AgeBandsByArm renders the age-band histogram as a percentage of each
// treatment group's total. Within a group the percentages sum to 100 up to
// rounding. Bands with zero participants are omitted.
func AgeBandsByArm(snap *study.Snapshot) []AgeBandRow {
	counts := map[string]map[string]int{}
	totals := map[string]int{}
	for _, b := range snap.Baseline {
		band := ageBand(b.Age)
		if counts[b.TreatmentGroup] == nil {
			counts[b.TreatmentGroup] = map[string]int{}
		}
		counts[b.TreatmentGroup][band]++
		totals[b.TreatmentGroup]++
	}
	var out []AgeBandRow
	for _, arm := range sortedKeys(counts) {
		for _, band := range AgeBands {
			n := counts[arm][band]
			if n == 0 {
				continue
			}
			out = append(out, AgeBandRow{
				TreatmentGroup: arm,
				Band:           band,
				Count:          n,
				Percent:        round1(float64(n) / float64(totals[arm]) * 100),
			})
		}
	}
	return out
}

// RaceByArm counts race values per treatment group.
func RaceByArm(snap *study.Snapshot) []RaceCount {
	type key struct{ arm, race string }
	counts := map[key]int{}
	for _, b := range snap.Baseline {
		counts[key{b.TreatmentGroup, b.Race}]++
	}
	keys := make([]key, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].arm != keys[j].arm {
			return keys[i].arm < keys[j].arm
		}
		return keys[i].race < keys[j].race
	})
	out := make([]RaceCount, 0, len(keys))
	for _, k := range keys {
		out = append(out, RaceCount{TreatmentGroup: k.arm, Race: k.race, Count: counts[k]})
	}
	return out
}

// baselineIndex maps participant id to baseline row for join lookups.
func baselineIndex(snap *study.Snapshot) map[string]*study.Baseline {
	idx := make(map[string]*study.Baseline, len(snap.Baseline))
	for i := range snap.Baseline {
		idx[snap.Baseline[i].ParticipantID] = &snap.Baseline[i]
	}
	return idx
}

// CompletionByArm computes the per-arm completion percentage twice: once by
// grouping (arm, status) counts and dividing by the arm's window total, and
// once as a conditional sum over the arm. The two methods are algebraically
// equivalent; both are published so a drift in either path is visible.
func CompletionByArm(snap *study.Snapshot) []ArmCompletion {
	// Method (a): group-then-window-divide.
	statusCounts := map[string]map[string]int{}
	windowTotals := map[string]int{}
	for _, w := range snap.Week32 {
		if statusCounts[w.TreatmentGroup] == nil {
			statusCounts[w.TreatmentGroup] = map[string]int{}
		}
		statusCounts[w.TreatmentGroup][w.CompletionStatus]++
		windowTotals[w.TreatmentGroup]++
	}

	// Method (b): conditional-sum-divide.
	condCompleted := map[string]int{}
	condTotals := map[string]int{}
	for _, w := range snap.Week32 {
		condTotals[w.TreatmentGroup]++
		if w.Completed() {
			condCompleted[w.TreatmentGroup]++
		}
	}

	out := make([]ArmCompletion, 0, len(windowTotals))
	for _, arm := range sortedKeys(windowTotals) {
		completed := statusCounts[arm][study.StatusCompleted]
		out = append(out, ArmCompletion{
			TreatmentGroup:     arm,
			Completed:          completed,
			Total:              windowTotals[arm],
			WindowPercent:      round1(float64(completed) / float64(windowTotals[arm]) * 100),
			ConditionalPercent: round1(float64(condCompleted[arm]) / float64(condTotals[arm]) * 100),
		})
	}
	return out
}

// CompletionByArmSex joins week-32 rows to baseline for sex and computes the
// completion percentage per (treatment group, sex). Week-32 rows without a
// baseline partner are excluded.
func CompletionByArmSex(snap *study.Snapshot) []CompletionRate {
	idx := baselineIndex(snap)
	type key struct{ arm, sex string }
	completed := map[key]int{}
	totals := map[key]int{}
	for _, w := range snap.Week32 {
		b, ok := idx[w.ParticipantID]
		if !ok {
			continue
		}
		k := key{w.TreatmentGroup, b.Sex}
		totals[k]++
		if w.Completed() {
			completed[k]++
		}
	}
	keys := make([]key, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].arm != keys[j].arm {
			return keys[i].arm < keys[j].arm
		}
		return keys[i].sex < keys[j].sex
	})
	out := make([]CompletionRate, 0, len(keys))
	for _, k := range keys {
		out = append(out, CompletionRate{
			TreatmentGroup: k.arm,
			Sex:            k.sex,
			Completed:      completed[k],
			Total:          totals[k],
			Percent:        round1(float64(completed[k]) / float64(totals[k]) * 100),
		})
	}
	return out
}

// CompletionBySite computes the completion percentage per site.
func CompletionBySite(snap *study.Snapshot) []SiteCompletion {
	completed := map[string]int{}
	totals := map[string]int{}
	for _, w := range snap.Week32 {
		totals[w.SiteName]++
		if w.Completed() {
			completed[w.SiteName]++
		}
	}
	out := make([]SiteCompletion, 0, len(totals))
	for _, site := range sortedKeys(totals) {
		out = append(out, SiteCompletion{
			SiteName:  site,
			Completed: completed[site],
			Total:     totals[site],
			Percent:   round1(float64(completed[site]) / float64(totals[site]) * 100),
		})
	}
	return out
}

// DropoutReasons counts (treatment group, reason) pairs for genuine
// non-completions. Rows carrying the "N/A" sentinel are excluded.
func DropoutReasons(snap *study.Snapshot) []DropoutReason {
	type key struct{ arm, reason string }
	counts := map[key]int{}
	for _, w := range snap.Week32 {
		if w.ReasonNotComplete == study.ReasonNA {
			continue
		}
		counts[key{w.TreatmentGroup, w.ReasonNotComplete}]++
	}
	keys := make([]key, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].arm != keys[j].arm {
			return keys[i].arm < keys[j].arm
		}
		return keys[i].reason < keys[j].reason
	})
	out := make([]DropoutReason, 0, len(keys))
	for _, k := range keys {
		out = append(out, DropoutReason{TreatmentGroup: k.arm, Reason: k.reason, Count: counts[k]})
	}
	return out
}

// changeAccum accumulates percent changes for one (arm, measure) cell.
type changeAccum struct {
	n         int
	sum       float64
	undefined []UndefinedChange
}

// addPair folds one matched (baseline, follow-up) value pair into the
// accumulator. Pairs with a missing side are excluded, matching the inner
// join the measure is defined over. A zero baseline makes the percent change
// undefined for that row; the row is recorded rather than dropped silently.
func (c *changeAccum) addPair(participantID, measure string, base, follow *float64) {
	if base == nil || follow == nil {
		return
	}
	if *base == 0 {
		c.undefined = append(c.undefined, UndefinedChange{ParticipantID: participantID, Measure: measure})
		return
	}
	c.n++
	c.sum += (*follow - *base) / *base * 100
}

func changeRows(acc map[string]map[string]*changeAccum, measureOrder []string) []ChangeStat {
	var out []ChangeStat
	for _, arm := range sortedKeys(acc) {
		for _, measure := range measureOrder {
			a, ok := acc[arm][measure]
			if !ok {
				continue
			}
			row := ChangeStat{
				TreatmentGroup: arm,
				Measure:        measure,
				N:              a.n,
				Undefined:      a.undefined,
			}
			if a.n > 0 {
				row.MeanPercentChange = round1(a.sum / float64(a.n))
			}
			out = append(out, row)
		}
	}
	return out
}

// Measure labels used in change rows.
const (
	MeasureHsCRP      = "hsCRP"
	MeasureFibrinogen = "fibrinogen"
	MeasureSAA        = "SAA"
	MeasureSBP        = "SBP"
	MeasureDBP        = "DBP"
)

// BiomarkerChange computes the mean percent change from baseline to week 13
// for hsCRP, fibrinogen and SAA per treatment group, over participants with
// rows in both tables.
func BiomarkerChange(snap *study.Snapshot) []ChangeStat {
	idx := baselineIndex(snap)
	acc := map[string]map[string]*changeAccum{}
	for _, w := range snap.Week13 {
		b, ok := idx[w.ParticipantID]
		if !ok {
			continue
		}
		changeCell(acc, b.TreatmentGroup, MeasureHsCRP).addPair(b.ParticipantID, MeasureHsCRP, b.HsCRP, w.HsCRP)
		changeCell(acc, b.TreatmentGroup, MeasureFibrinogen).addPair(b.ParticipantID, MeasureFibrinogen, b.Fibrinogen, w.Fibrinogen)
		changeCell(acc, b.TreatmentGroup, MeasureSAA).addPair(b.ParticipantID, MeasureSAA, b.SAA, w.SAA)
	}
	return changeRows(acc, []string{MeasureHsCRP, MeasureFibrinogen, MeasureSAA})
}

// BloodPressureChange computes the mean percent change from baseline to week
// 32 for systolic and diastolic pressure per treatment group.
func BloodPressureChange(snap *study.Snapshot) []ChangeStat {
	idx := baselineIndex(snap)
	acc := map[string]map[string]*changeAccum{}
	for _, w := range snap.Week32 {
		b, ok := idx[w.ParticipantID]
		if !ok {
			continue
		}
		changeCell(acc, b.TreatmentGroup, MeasureSBP).addPair(b.ParticipantID, MeasureSBP, b.SBP, w.SBP)
		changeCell(acc, b.TreatmentGroup, MeasureDBP).addPair(b.ParticipantID, MeasureDBP, b.DBP, w.DBP)
	}
	return changeRows(acc, []string{MeasureSBP, MeasureDBP})
}

func changeCell(acc map[string]map[string]*changeAccum, arm, measure string) *changeAccum {
	if acc[arm] == nil {
		acc[arm] = map[string]*changeAccum{}
	}
	if acc[arm][measure] == nil {
		acc[arm][measure] = &changeAccum{}
	}
	return acc[arm][measure]
}

// ECGEffectByArm classifies each matched (baseline, week-32) ECG pair and
// aggregates count and percent-of-group-total per (treatment group, effect).
// Percentages sum to 100 within a treatment group up to rounding.
func ECGEffectByArm(snap *study.Snapshot) []ECGEffectRow {
	idx := baselineIndex(snap)
	counts := map[string]map[ECGEffect]int{}
	totals := map[string]int{}
	for _, w := range snap.Week32 {
		b, ok := idx[w.ParticipantID]
		if !ok || b.ECG == "" || w.ECG == "" {
			continue
		}
		effect := ClassifyECGEffect(b.ECG, w.ECG)
		if counts[w.TreatmentGroup] == nil {
			counts[w.TreatmentGroup] = map[ECGEffect]int{}
		}
		counts[w.TreatmentGroup][effect]++
		totals[w.TreatmentGroup]++
	}
	var out []ECGEffectRow
	for _, arm := range sortedKeys(counts) {
		for _, effect := range ecgEffects {
			n := counts[arm][effect]
			if n == 0 {
				continue
			}
			out = append(out, ECGEffectRow{
				TreatmentGroup: arm,
				Effect:         string(effect),
				Count:          n,
				Percent:        round1(float64(n) / float64(totals[arm]) * 100),
			})
		}
	}
	return out
}

// AdverseEventCounts counts adverse events per (treatment group, AE type),
// excluding the "None" sentinel.
func AdverseEventCounts(snap *study.Snapshot) []EventCount {
	return eventCounts(snap, func(a study.AdverseEvent) string { return a.AEType })
}

// SeriousAdverseEventCounts counts serious adverse events per (treatment
// group, SAE type), excluding the "None" sentinel.
func SeriousAdverseEventCounts(snap *study.Snapshot) []EventCount {
	return eventCounts(snap, func(a study.AdverseEvent) string { return a.SAEType })
}

func eventCounts(snap *study.Snapshot, typeOf func(study.AdverseEvent) string) []EventCount {
	type key struct{ arm, typ string }
	counts := map[key]int{}
	for _, a := range snap.AdverseEvents {
		t := typeOf(a)
		if t == study.AENone || t == "" {
			continue
		}
		counts[key{a.TreatmentGroup, t}]++
	}
	keys := make([]key, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].arm != keys[j].arm {
			return keys[i].arm < keys[j].arm
		}
		return keys[i].typ < keys[j].typ
	})
	out := make([]EventCount, 0, len(keys))
	for _, k := range keys {
		out = append(out, EventCount{TreatmentGroup: k.arm, EventType: k.typ, Count: counts[k]})
	}
	return out
}
