package report

import "time"

// Measure describes one derived view the engine can evaluate.
type Measure struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Measures is the fixed catalog of report measures, in presentation order.
var Measures = []Measure{
	{ID: "enrollment", Name: "Enrollment by Arm", Description: "Participant count per treatment group"},
	{ID: "age-stats", Name: "Age Statistics", Description: "Count, mean, min and max age per treatment group"},
	{ID: "age-stats-sex", Name: "Age Statistics by Sex", Description: "Count, mean, min and max age per treatment group and sex"},
	{ID: "age-bands", Name: "Age Band Distribution", Description: "Age band percentages per treatment group"},
	{ID: "race", Name: "Race by Arm", Description: "Race counts per treatment group"},
	{ID: "completion-arm", Name: "Completion by Arm", Description: "Completion percentage per treatment group, computed two ways"},
	{ID: "completion-arm-sex", Name: "Completion by Arm and Sex", Description: "Completion percentage per treatment group and sex"},
	{ID: "completion-site", Name: "Completion by Site", Description: "Completion percentage per site"},
	{ID: "dropout-reasons", Name: "Dropout Reasons", Description: "Non-completion reason counts per treatment group"},
	{ID: "biomarker-change", Name: "Biomarker Percent Change", Description: "Mean percent change from baseline to week 13 for hsCRP, fibrinogen and SAA"},
	{ID: "bp-change", Name: "Blood Pressure Percent Change", Description: "Mean percent change from baseline to week 32 for systolic and diastolic pressure"},
	{ID: "ecg-effect", Name: "ECG Effect", Description: "Baseline to week 32 ECG transition classification per treatment group"},
	{ID: "adverse-events", Name: "Adverse Events", Description: "Adverse and serious adverse event counts per treatment group"},
}

// FindMeasure looks up a measure by ID.
func FindMeasure(id string) *Measure {
	for i := range Measures {
		if Measures[i].ID == id {
			return &Measures[i]
		}
	}
	return nil
}

// EnrollmentCount is one row of the enrollment measure.
type EnrollmentCount struct {
	TreatmentGroup string `json:"treatment_group"`
	Participants   int    `json:"participants"`
}

// AgeStats summarizes participant age for one group key. Sex is empty when
// grouping by treatment group alone.
type AgeStats struct {
	TreatmentGroup string  `json:"treatment_group"`
	Sex            string  `json:"sex,omitempty"`
	Count          int     `json:"count"`
	MeanAge        float64 `json:"mean_age"`
	MinAge         int     `json:"min_age"`
	MaxAge         int     `json:"max_age"`
}

// AgeBands lists the age band labels in presentation order.
var AgeBands = []string{"18-40", "41-50", "51-60", "61-70", "71+", "Unknown"}

// AgeBandRow is one (treatment group, band) cell of the age histogram.
type AgeBandRow struct {
	TreatmentGroup string  `json:"treatment_group"`
	Band           string  `json:"band"`
	Count          int     `json:"count"`
	Percent        float64 `json:"percent"`
}

// RaceCount is one row of the race demographics measure.
type RaceCount struct {
	TreatmentGroup string `json:"treatment_group"`
	Race           string `json:"race"`
	Count          int    `json:"count"`
}

// CompletionRate is one row of a completion measure keyed by treatment group
// and, optionally, sex.
type CompletionRate struct {
	TreatmentGroup string  `json:"treatment_group"`
	Sex            string  `json:"sex,omitempty"`
	Completed      int     `json:"completed"`
	Total          int     `json:"total"`
	Percent        float64 `json:"percent"`
}

// ArmCompletion carries the per-arm completion percentage computed with two
// independent methods. The dataset invariants require both to agree.
type ArmCompletion struct {
	TreatmentGroup     string  `json:"treatment_group"`
	Completed          int     `json:"completed"`
	Total              int     `json:"total"`
	WindowPercent      float64 `json:"window_percent"`
	ConditionalPercent float64 `json:"conditional_percent"`
}

// SiteCompletion is one row of the per-site completion measure.
type SiteCompletion struct {
	SiteName  string  `json:"site_name"`
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
}

// DropoutReason is one (treatment group, reason) count. The "N/A" sentinel
// never appears here.
type DropoutReason struct {
	TreatmentGroup string `json:"treatment_group"`
	Reason         string `json:"reason"`
	Count          int    `json:"count"`
}

// UndefinedChange flags a participant whose percent change is undefined
// because the baseline value was zero. These rows are excluded from the
// group mean but surfaced so they are never silently lost.
type UndefinedChange struct {
	ParticipantID string `json:"participant_id"`
	Measure       string `json:"measure"`
}

// ChangeStat is the mean percent change of one measure within one treatment
// group, computed over participants present in both visits.
type ChangeStat struct {
	TreatmentGroup    string            `json:"treatment_group"`
	Measure           string            `json:"measure"`
	N                 int               `json:"n"`
	MeanPercentChange float64           `json:"mean_percent_change"`
	Undefined         []UndefinedChange `json:"undefined,omitempty"`
}

// ECGEffectRow is one (treatment group, effect) cell with its share of the
// group total. Percentages sum to 100 within a group.
type ECGEffectRow struct {
	TreatmentGroup string  `json:"treatment_group"`
	Effect         string  `json:"effect"`
	Count          int     `json:"count"`
	Percent        float64 `json:"percent"`
}

// EventCount is one (treatment group, event type) count. "None" sentinel
// rows are excluded.
type EventCount struct {
	TreatmentGroup string `json:"treatment_group"`
	EventType      string `json:"event_type"`
	Count          int    `json:"count"`
}

// MeasureResult wraps the evaluation of a single measure.
type MeasureResult struct {
	MeasureID   string      `json:"measure_id"`
	MeasureName string      `json:"measure_name"`
	GeneratedAt time.Time   `json:"generated_at"`
	Rows        interface{} `json:"rows"`
}

// Report bundles every measure over one snapshot. Measures that failed are
// recorded in Errors; one failure never blocks the others.
type Report struct {
	GeneratedAt          time.Time         `json:"generated_at"`
	Enrollment           []EnrollmentCount `json:"enrollment"`
	AgeStatsByArm        []AgeStats        `json:"age_stats_by_arm"`
	AgeStatsByArmSex     []AgeStats        `json:"age_stats_by_arm_sex"`
	AgeBands             []AgeBandRow      `json:"age_bands"`
	Race                 []RaceCount       `json:"race"`
	CompletionByArm      []ArmCompletion   `json:"completion_by_arm"`
	CompletionByArmSex   []CompletionRate  `json:"completion_by_arm_sex"`
	CompletionBySite     []SiteCompletion  `json:"completion_by_site"`
	DropoutReasons       []DropoutReason   `json:"dropout_reasons"`
	BiomarkerChange      []ChangeStat      `json:"biomarker_change"`
	BloodPressureChange  []ChangeStat      `json:"blood_pressure_change"`
	ECGEffect            []ECGEffectRow    `json:"ecg_effect"`
	AdverseEvents        []EventCount      `json:"adverse_events"`
	SeriousAdverseEvents []EventCount      `json:"serious_adverse_events"`
	Errors               []string          `json:"errors,omitempty"`
}
