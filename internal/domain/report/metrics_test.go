package report

import (
	"math"
	"testing"

	"github.com/trialstats/trialstats/internal/domain/study"
)

func f(v float64) *float64 { return &v }

func iptr(v int) *int { return &v }

func TestEnrollmentByArm(t *testing.T) {
	snap := &study.Snapshot{Baseline: []study.Baseline{
		{ParticipantID: "P-1", TreatmentGroup: study.ArmPlacebo},
		{ParticipantID: "P-2", TreatmentGroup: study.ArmPlacebo},
		{ParticipantID: "P-3", TreatmentGroup: study.ArmHighDose},
	}}

	rows := EnrollmentByArm(snap)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	// Sorted lexically: "High Dose" before "Placebo".
	if rows[0].TreatmentGroup != study.ArmHighDose || rows[0].Participants != 1 {
		t.Errorf("row 0 = %+v, want High Dose / 1", rows[0])
	}
	if rows[1].TreatmentGroup != study.ArmPlacebo || rows[1].Participants != 2 {
		t.Errorf("row 1 = %+v, want Placebo / 2", rows[1])
	}
}

func TestAgeStatsByArm(t *testing.T) {
	snap := &study.Snapshot{Baseline: []study.Baseline{
		{ParticipantID: "P-1", TreatmentGroup: study.ArmPlacebo, Age: iptr(40)},
		{ParticipantID: "P-2", TreatmentGroup: study.ArmPlacebo, Age: iptr(61)},
		{ParticipantID: "P-3", TreatmentGroup: study.ArmPlacebo}, // no derived age
	}}

	rows := AgeStatsByArm(snap)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	got := rows[0]
	if got.Count != 2 {
		t.Errorf("count = %d, want 2 (nil age excluded)", got.Count)
	}
	if got.MeanAge != 50.5 {
		t.Errorf("mean = %v, want 50.5", got.MeanAge)
	}
	if got.MinAge != 40 || got.MaxAge != 61 {
		t.Errorf("min/max = %d/%d, want 40/61", got.MinAge, got.MaxAge)
	}
}

func TestAgeStatsByArmSex(t *testing.T) {
	snap := &study.Snapshot{Baseline: []study.Baseline{
		{ParticipantID: "P-1", TreatmentGroup: study.ArmPlacebo, Sex: "Female", Age: iptr(30)},
		{ParticipantID: "P-2", TreatmentGroup: study.ArmPlacebo, Sex: "Male", Age: iptr(50)},
		{ParticipantID: "P-3", TreatmentGroup: study.ArmPlacebo, Sex: "Female", Age: iptr(40)},
	}}

	rows := AgeStatsByArmSex(snap)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Sex != "Female" || rows[0].Count != 2 || rows[0].MeanAge != 35 {
		t.Errorf("female row = %+v, want count 2 mean 35", rows[0])
	}
	if rows[1].Sex != "Male" || rows[1].Count != 1 || rows[1].MeanAge != 50 {
		t.Errorf("male row = %+v, want count 1 mean 50", rows[1])
	}
}

func TestAgeBand(t *testing.T) {
	cases := []struct {
		age  *int
		want string
	}{
		{nil, "Unknown"},
		{iptr(17), "Unknown"},
		{iptr(18), "18-40"},
		{iptr(40), "18-40"},
		{iptr(41), "41-50"},
		{iptr(50), "41-50"},
		{iptr(51), "51-60"},
		{iptr(60), "51-60"},
		{iptr(61), "61-70"},
		{iptr(70), "61-70"},
		{iptr(71), "71+"},
		{iptr(95), "71+"},
	}
	for _, c := range cases {
		if got := ageBand(c.age); got != c.want {
			if c.age == nil {
				t.Errorf("ageBand(nil) = %q, want %q", got, c.want)
			} else {
				t.Errorf("ageBand(%d) = %q, want %q", *c.age, got, c.want)
			}
		}
	}
}

func TestAgeBandsByArm_PercentsSumPerArm(t *testing.T) {
	snap := &study.Snapshot{Baseline: []study.Baseline{
		{ParticipantID: "P-1", TreatmentGroup: study.ArmPlacebo, Age: iptr(25)},
		{ParticipantID: "P-2", TreatmentGroup: study.ArmPlacebo, Age: iptr(45)},
		{ParticipantID: "P-3", TreatmentGroup: study.ArmPlacebo, Age: iptr(72)},
		{ParticipantID: "P-4", TreatmentGroup: study.ArmLowDose, Age: iptr(55)},
		{ParticipantID: "P-5", TreatmentGroup: study.ArmLowDose},
	}}

	rows := AgeBandsByArm(snap)

	sums := map[string]float64{}
	for _, r := range rows {
		if r.Count == 0 {
			t.Errorf("zero-count band published: %+v", r)
		}
		sums[r.TreatmentGroup] += r.Percent
	}
	for arm, sum := range sums {
		if math.Abs(sum-100) > 0.2 {
			t.Errorf("%s band percents sum to %v, want ~100", arm, sum)
		}
	}
	// The nil-age participant lands in Unknown, not dropped.
	var unknown *AgeBandRow
	for i := range rows {
		if rows[i].TreatmentGroup == study.ArmLowDose && rows[i].Band == "Unknown" {
			unknown = &rows[i]
		}
	}
	if unknown == nil || unknown.Count != 1 {
		t.Errorf("expected Unknown band with count 1 for Low Dose, got %+v", unknown)
	}
}

func TestRaceByArm(t *testing.T) {
	snap := &study.Snapshot{Baseline: []study.Baseline{
		{ParticipantID: "P-1", TreatmentGroup: study.ArmPlacebo, Race: "Asian"},
		{ParticipantID: "P-2", TreatmentGroup: study.ArmPlacebo, Race: "Asian"},
		{ParticipantID: "P-3", TreatmentGroup: study.ArmPlacebo, Race: "White"},
	}}

	rows := RaceByArm(snap)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Race != "Asian" || rows[0].Count != 2 {
		t.Errorf("row 0 = %+v, want Asian / 2", rows[0])
	}
}

func completionFixture() *study.Snapshot {
	return &study.Snapshot{
		Baseline: []study.Baseline{
			{ParticipantID: "P-1", TreatmentGroup: study.ArmPlacebo, Sex: "Female"},
			{ParticipantID: "P-2", TreatmentGroup: study.ArmPlacebo, Sex: "Male"},
			{ParticipantID: "P-3", TreatmentGroup: study.ArmPlacebo, Sex: "Female"},
			{ParticipantID: "P-4", TreatmentGroup: study.ArmHighDose, Sex: "Male"},
		},
		Week32: []study.Week32{
			{ParticipantID: "P-1", TreatmentGroup: study.ArmPlacebo, CompletionStatus: study.StatusCompleted, ReasonNotComplete: study.ReasonNA, SiteName: "Boston General"},
			{ParticipantID: "P-2", TreatmentGroup: study.ArmPlacebo, CompletionStatus: study.StatusNotCompleted, ReasonNotComplete: "Withdrew consent", SiteName: "Boston General"},
			{ParticipantID: "P-3", TreatmentGroup: study.ArmPlacebo, CompletionStatus: study.StatusCompleted, ReasonNotComplete: study.ReasonNA, SiteName: "Raleigh Research"},
			{ParticipantID: "P-4", TreatmentGroup: study.ArmHighDose, CompletionStatus: study.StatusCompleted, ReasonNotComplete: study.ReasonNA, SiteName: "Raleigh Research"},
		},
	}
}

func TestCompletionByArm(t *testing.T) {
	rows := CompletionByArm(completionFixture())
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	var placebo *ArmCompletion
	for i := range rows {
		if rows[i].TreatmentGroup == study.ArmPlacebo {
			placebo = &rows[i]
		}
	}
	if placebo == nil {
		t.Fatal("missing Placebo row")
	}
	if placebo.Completed != 2 || placebo.Total != 3 {
		t.Errorf("Placebo completed/total = %d/%d, want 2/3", placebo.Completed, placebo.Total)
	}
	if placebo.WindowPercent != 66.7 {
		t.Errorf("Placebo window percent = %v, want 66.7", placebo.WindowPercent)
	}
	for _, r := range rows {
		if r.WindowPercent != r.ConditionalPercent {
			t.Errorf("%s: methods disagree: window=%v conditional=%v",
				r.TreatmentGroup, r.WindowPercent, r.ConditionalPercent)
		}
	}
}

func TestCompletionByArmSex(t *testing.T) {
	rows := CompletionByArmSex(completionFixture())

	var placeboFemale *CompletionRate
	for i := range rows {
		if rows[i].TreatmentGroup == study.ArmPlacebo && rows[i].Sex == "Female" {
			placeboFemale = &rows[i]
		}
	}
	if placeboFemale == nil {
		t.Fatal("missing Placebo/Female row")
	}
	if placeboFemale.Completed != 2 || placeboFemale.Total != 2 || placeboFemale.Percent != 100 {
		t.Errorf("Placebo/Female = %+v, want 2/2 at 100", placeboFemale)
	}
}

func TestCompletionByArmSex_UnmatchedExcluded(t *testing.T) {
	snap := completionFixture()
	snap.Week32 = append(snap.Week32, study.Week32{
		ParticipantID: "P-ORPHAN", TreatmentGroup: study.ArmPlacebo,
		CompletionStatus: study.StatusCompleted, SiteName: "Boston General",
	})

	rows := CompletionByArmSex(snap)
	total := 0
	for _, r := range rows {
		total += r.Total
	}
	if total != 4 {
		t.Errorf("joined total = %d, want 4 (orphan week-32 row excluded)", total)
	}
}

func TestCompletionBySite(t *testing.T) {
	rows := CompletionBySite(completionFixture())
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].SiteName != "Boston General" || rows[0].Completed != 1 || rows[0].Total != 2 || rows[0].Percent != 50 {
		t.Errorf("row 0 = %+v, want Boston General 1/2 at 50", rows[0])
	}
	if rows[1].SiteName != "Raleigh Research" || rows[1].Percent != 100 {
		t.Errorf("row 1 = %+v, want Raleigh Research at 100", rows[1])
	}
}

func TestDropoutReasons_ExcludesSentinel(t *testing.T) {
	rows := DropoutReasons(completionFixture())
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d (%+v)", len(rows), rows)
	}
	if rows[0].TreatmentGroup != study.ArmPlacebo || rows[0].Reason != "Withdrew consent" || rows[0].Count != 1 {
		t.Errorf("row = %+v, want Placebo / Withdrew consent / 1", rows[0])
	}
}

func TestBiomarkerChange(t *testing.T) {
	snap := &study.Snapshot{
		Baseline: []study.Baseline{
			{ParticipantID: "P-1", TreatmentGroup: study.ArmPlacebo, HsCRP: f(100), Fibrinogen: f(300), SAA: f(10)},
			{ParticipantID: "P-2", TreatmentGroup: study.ArmPlacebo, HsCRP: f(200)},
		},
		Week13: []study.Week13{
			{ParticipantID: "P-1", HsCRP: f(120), Fibrinogen: f(270), SAA: f(10)},
			{ParticipantID: "P-2", HsCRP: f(150)},
		},
	}

	rows := BiomarkerChange(snap)

	byMeasure := map[string]ChangeStat{}
	for _, r := range rows {
		byMeasure[r.Measure] = r
	}

	// hsCRP: +20% and -25%, mean -2.5.
	hs := byMeasure[MeasureHsCRP]
	if hs.N != 2 || hs.MeanPercentChange != -2.5 {
		t.Errorf("hsCRP = %+v, want n=2 mean=-2.5", hs)
	}
	// Fibrinogen: only P-1 carries both values.
	fib := byMeasure[MeasureFibrinogen]
	if fib.N != 1 || fib.MeanPercentChange != -10 {
		t.Errorf("fibrinogen = %+v, want n=1 mean=-10", fib)
	}
	saa := byMeasure[MeasureSAA]
	if saa.N != 1 || saa.MeanPercentChange != 0 {
		t.Errorf("SAA = %+v, want n=1 mean=0", saa)
	}
}

func TestBiomarkerChange_ZeroBaselineUndefined(t *testing.T) {
	snap := &study.Snapshot{
		Baseline: []study.Baseline{
			{ParticipantID: "P-1", TreatmentGroup: study.ArmPlacebo, HsCRP: f(0)},
			{ParticipantID: "P-2", TreatmentGroup: study.ArmPlacebo, HsCRP: f(100)},
		},
		Week13: []study.Week13{
			{ParticipantID: "P-1", HsCRP: f(5)},
			{ParticipantID: "P-2", HsCRP: f(110)},
		},
	}

	rows := BiomarkerChange(snap)
	var hs *ChangeStat
	for i := range rows {
		if rows[i].Measure == MeasureHsCRP {
			hs = &rows[i]
		}
	}
	if hs == nil {
		t.Fatal("missing hsCRP row")
	}
	if hs.N != 1 || hs.MeanPercentChange != 10 {
		t.Errorf("hsCRP = %+v, want n=1 mean=10 (zero baseline excluded from mean)", hs)
	}
	if len(hs.Undefined) != 1 || hs.Undefined[0].ParticipantID != "P-1" {
		t.Errorf("undefined = %+v, want P-1 flagged", hs.Undefined)
	}
}

func TestBiomarkerChange_UnmatchedExcluded(t *testing.T) {
	snap := &study.Snapshot{
		Baseline: []study.Baseline{
			{ParticipantID: "P-1", TreatmentGroup: study.ArmPlacebo, HsCRP: f(100)},
			{ParticipantID: "P-NOFOLLOWUP", TreatmentGroup: study.ArmPlacebo, HsCRP: f(100)},
		},
		Week13: []study.Week13{
			{ParticipantID: "P-1", HsCRP: f(110)},
			{ParticipantID: "P-NOBASELINE", HsCRP: f(110)},
		},
	}

	rows := BiomarkerChange(snap)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].N != 1 {
		t.Errorf("n = %d, want 1 (rows outside the join excluded)", rows[0].N)
	}
}

func TestBloodPressureChange(t *testing.T) {
	snap := &study.Snapshot{
		Baseline: []study.Baseline{
			{ParticipantID: "P-1", TreatmentGroup: study.ArmPlacebo, SBP: f(120), DBP: f(80)},
		},
		Week32: []study.Week32{
			{ParticipantID: "P-1", TreatmentGroup: study.ArmPlacebo, SBP: f(114), DBP: f(84)},
		},
	}

	rows := BloodPressureChange(snap)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Measure != MeasureSBP || rows[0].MeanPercentChange != -5 {
		t.Errorf("SBP = %+v, want mean=-5", rows[0])
	}
	if rows[1].Measure != MeasureDBP || rows[1].MeanPercentChange != 5 {
		t.Errorf("DBP = %+v, want mean=5", rows[1])
	}
}

func TestECGEffectByArm(t *testing.T) {
	snap := &study.Snapshot{
		Baseline: []study.Baseline{
			{ParticipantID: "P-1", TreatmentGroup: study.ArmPlacebo, ECG: ecgNS},
			{ParticipantID: "P-2", TreatmentGroup: study.ArmPlacebo, ECG: ecgNormal},
			{ParticipantID: "P-3", TreatmentGroup: study.ArmPlacebo, ECG: ecgNormal},
			{ParticipantID: "P-4", TreatmentGroup: study.ArmPlacebo, ECG: ""}, // not recorded
		},
		Week32: []study.Week32{
			{ParticipantID: "P-1", TreatmentGroup: study.ArmPlacebo, ECG: ecgNormal},
			{ParticipantID: "P-2", TreatmentGroup: study.ArmPlacebo, ECG: ecgCS},
			{ParticipantID: "P-3", TreatmentGroup: study.ArmPlacebo, ECG: ecgNormal},
			{ParticipantID: "P-4", TreatmentGroup: study.ArmPlacebo, ECG: ecgNormal},
		},
	}

	rows := ECGEffectByArm(snap)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d (%+v)", len(rows), rows)
	}

	byEffect := map[string]ECGEffectRow{}
	sum := 0.0
	for _, r := range rows {
		byEffect[r.Effect] = r
		sum += r.Percent
	}
	if byEffect[string(EffectPositive)].Count != 1 {
		t.Errorf("positive count = %d, want 1", byEffect[string(EffectPositive)].Count)
	}
	if byEffect[string(EffectNegative)].Count != 1 {
		t.Errorf("negative count = %d, want 1", byEffect[string(EffectNegative)].Count)
	}
	if byEffect[string(EffectNoChange)].Count != 1 {
		t.Errorf("no-change count = %d, want 1", byEffect[string(EffectNoChange)].Count)
	}
	if math.Abs(sum-100) > 0.2 {
		t.Errorf("percents sum to %v, want ~100", sum)
	}
}

func TestAdverseEventCounts(t *testing.T) {
	snap := &study.Snapshot{AdverseEvents: []study.AdverseEvent{
		{TreatmentGroup: study.ArmPlacebo, AEType: "Headache", SAEType: study.AENone},
		{TreatmentGroup: study.ArmPlacebo, AEType: "Headache", SAEType: "Hospitalization"},
		{TreatmentGroup: study.ArmPlacebo, AEType: study.AENone, SAEType: study.AENone},
		{TreatmentGroup: study.ArmHighDose, AEType: "Nausea", SAEType: study.AENone},
	}}

	aes := AdverseEventCounts(snap)
	if len(aes) != 2 {
		t.Fatalf("expected 2 AE rows, got %d", len(aes))
	}
	var placeboHeadache *EventCount
	for i := range aes {
		if aes[i].TreatmentGroup == study.ArmPlacebo && aes[i].EventType == "Headache" {
			placeboHeadache = &aes[i]
		}
	}
	if placeboHeadache == nil || placeboHeadache.Count != 2 {
		t.Errorf("Placebo/Headache = %+v, want count 2", placeboHeadache)
	}

	saes := SeriousAdverseEventCounts(snap)
	if len(saes) != 1 {
		t.Fatalf("expected 1 SAE row, got %d", len(saes))
	}
	if saes[0].EventType != "Hospitalization" || saes[0].Count != 1 {
		t.Errorf("SAE row = %+v, want Hospitalization / 1", saes[0])
	}
}

func TestRound1(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{66.666666, 66.7},
		{33.333333, 33.3},
		{50, 50},
		{-66.666666, -66.7},
	}
	for _, c := range cases {
		if got := round1(c.in); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("round1(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
