package study

import (
	"strings"
	"time"
)

// Treatment arms used by the simulated study. The dataset is the source of
// truth; these constants exist for the seeder and for readable tests.
const (
	ArmPlacebo  = "Placebo"
	ArmLowDose  = "Low Dose"
	ArmHighDose = "High Dose"
)

// Completion status values recorded at week 32.
const (
	StatusCompleted    = "Completed"
	StatusNotCompleted = "Not Completed"
)

// ReasonNA is the sentinel stored in reason_notcomplete for participants who
// completed the study.
const ReasonNA = "N/A"

// AENone is the sentinel recorded when a participant had no (serious)
// adverse event.
const AENone = "None"

// ECGReading is the enumerated ECG interpretation domain. Raw dataset text is
// parsed once; anything outside the known values is ECGUnknown and the raw
// text is kept alongside for textual comparison.
type ECGReading int

const (
	ECGUnknown ECGReading = iota
	ECGNormal
	ECGAbnormalNS // abnormal, not clinically significant
	ECGAbnormalCS // abnormal, clinically significant
)

const (
	ecgNormalText     = "Normal"
	ecgAbnormalNSText = "Abnormal, not clinically significant"
	ecgAbnormalCSText = "Abnormal, clinically significant"
)

// ParseECG maps dataset text onto the ECG reading domain. Matching is
// case-insensitive and whitespace-tolerant; unrecognized text parses to
// ECGUnknown rather than failing.
func ParseECG(s string) ECGReading {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case strings.ToLower(ecgNormalText):
		return ECGNormal
	case strings.ToLower(ecgAbnormalNSText):
		return ECGAbnormalNS
	case strings.ToLower(ecgAbnormalCSText):
		return ECGAbnormalCS
	default:
		return ECGUnknown
	}
}

// IsAbnormal reports whether the reading is either abnormal category.
func (e ECGReading) IsAbnormal() bool {
	return e == ECGAbnormalNS || e == ECGAbnormalCS
}

func (e ECGReading) String() string {
	switch e {
	case ECGNormal:
		return ecgNormalText
	case ECGAbnormalNS:
		return ecgAbnormalNSText
	case ECGAbnormalCS:
		return ecgAbnormalCSText
	default:
		return "Unknown"
	}
}

// Baseline maps to the baseline table: one row per enrolled participant.
type Baseline struct {
	ParticipantID  string    `db:"participant_id" json:"participant_id"`
	DOB            time.Time `db:"dob" json:"dob"`
	EnrollmentDate time.Time `db:"enrollment_date" json:"enrollment_date"`
	Sex            string    `db:"sex" json:"sex"`
	Race           string    `db:"race" json:"race"`
	TreatmentGroup string    `db:"treatment_group" json:"treatment_group"`
	HsCRP          *float64  `db:"baseline_hscrp" json:"baseline_hscrp,omitempty"`
	Fibrinogen     *float64  `db:"baseline_fibrinogen" json:"baseline_fibrinogen,omitempty"`
	SAA            *float64  `db:"baseline_saa" json:"baseline_saa,omitempty"`
	ECG            string    `db:"baseline_ecg" json:"baseline_ecg"`
	SBP            *float64  `db:"baseline_sbp" json:"baseline_sbp,omitempty"`
	DBP            *float64  `db:"baseline_dbp" json:"baseline_dbp,omitempty"`

	// Age is populated by Prepare as a plain year difference between the
	// enrollment date and the date of birth. It stays nil when either date
	// is missing from the snapshot.
	Age *int `db:"age" json:"age,omitempty"`
}

// Week13 maps to the week_13 table: follow-up biomarker draws.
type Week13 struct {
	ParticipantID string   `db:"participant_id" json:"participant_id"`
	HsCRP         *float64 `db:"wk13_hscrp" json:"wk13_hscrp,omitempty"`
	Fibrinogen    *float64 `db:"wk13_fibrinogen" json:"wk13_fibrinogen,omitempty"`
	SAA           *float64 `db:"wk13_saa" json:"wk13_saa,omitempty"`
}

// Week32 maps to the week_32 table: end-of-study visit.
type Week32 struct {
	ParticipantID     string   `db:"participant_id" json:"participant_id"`
	TreatmentGroup    string   `db:"treatment_group" json:"treatment_group"`
	CompletionStatus  string   `db:"completion_status" json:"completion_status"`
	ReasonNotComplete string   `db:"reason_notcomplete" json:"reason_notcomplete"`
	SiteName          string   `db:"site_name" json:"site_name"`
	ECG               string   `db:"wk32_ecg" json:"wk32_ecg"`
	SBP               *float64 `db:"wk32_sbp" json:"wk32_sbp,omitempty"`
	DBP               *float64 `db:"wk32_dbp" json:"wk32_dbp,omitempty"`
}

// AdverseEvent maps to the adverse_events table. Events are reported per
// treatment group only; the source dataset does not key them to participants.
type AdverseEvent struct {
	TreatmentGroup string `db:"treatment_group" json:"treatment_group"`
	AEType         string `db:"ae_type" json:"ae_type"`
	SAEType        string `db:"sae_type" json:"sae_type"`
}

// Snapshot bundles the four frozen tables the report measures read.
type Snapshot struct {
	Baseline      []Baseline
	Week13        []Week13
	Week32        []Week32
	AdverseEvents []AdverseEvent
}

// Completed reports whether the week-32 row records a completed study.
func (w Week32) Completed() bool {
	return w.CompletionStatus == StatusCompleted
}
