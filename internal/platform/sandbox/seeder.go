// Package sandbox generates a reproducible simulated trial dataset for
// development, demos and end-to-end testing of the report measures.
package sandbox

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/trialstats/trialstats/internal/domain/study"
)

// SeedConfig controls the volume and shape of the generated dataset.
type SeedConfig struct {
	Participants int     `json:"participants"`
	DropoutRate  float64 `json:"dropoutRate"`  // fraction of participants not completing
	MissingRate  float64 `json:"missingRate"`  // fraction of participants without follow-up rows
	AEPerArm     int     `json:"aePerArm"`     // adverse event rows generated per arm
	Seed         int64   `json:"seed"`
}

// DefaultSeedConfig returns sensible defaults for a demo dataset.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		Participants: 300,
		DropoutRate:  0.15,
		MissingRate:  0.05,
		AEPerArm:     40,
		Seed:         1,
	}
}

var (
	arms  = []string{study.ArmPlacebo, study.ArmLowDose, study.ArmHighDose}
	sexes = []string{"Female", "Male"}
	races = []string{"White", "Black or African American", "Asian",
		"American Indian or Alaska Native", "Other"}
	sites = []string{"Boston General", "Chicago Heart Institute", "Denver Medical Center",
		"Palo Alto Clinical", "Raleigh Research"}
	ecgReadings = []string{"Normal", "Abnormal, not clinically significant",
		"Abnormal, clinically significant"}
	dropoutReasons = []string{"Withdrew consent", "Lost to follow-up",
		"Adverse event", "Protocol deviation", "Relocation"}
	aeTypes  = []string{"Headache", "Nausea", "Dizziness", "Fatigue", "Rash", "Injection site pain"}
	saeTypes = []string{"Hospitalization", "Arrhythmia", "Anaphylaxis"}
)

// GenerateSnapshot produces a simulated dataset honoring the study's
// structural invariants: unique participant ids, follow-up rows referencing
// baseline participants, a small fraction of participants missing follow-up
// rows (inner-join gaps), and the reason_notcomplete sentinel discipline.
// The same config always yields the same snapshot.
func GenerateSnapshot(cfg SeedConfig) *study.Snapshot {
	rng := rand.New(rand.NewSource(cfg.Seed))
	snap := &study.Snapshot{}

	enrollStart := time.Date(2023, time.January, 9, 0, 0, 0, 0, time.UTC)

	for i := 0; i < cfg.Participants; i++ {
		pid := participantID(rng)
		arm := arms[i%len(arms)]
		enrolled := enrollStart.AddDate(0, 0, rng.Intn(120))
		dob := enrolled.AddDate(-(18 + rng.Intn(62)), -rng.Intn(12), -rng.Intn(28))

		b := study.Baseline{
			ParticipantID:  pid,
			DOB:            dob,
			EnrollmentDate: enrolled,
			Sex:            sexes[rng.Intn(len(sexes))],
			Race:           races[rng.Intn(len(races))],
			TreatmentGroup: arm,
			HsCRP:          fptr(1 + rng.Float64()*9),
			Fibrinogen:     fptr(200 + rng.Float64()*200),
			SAA:            fptr(2 + rng.Float64()*8),
			ECG:            ecgReadings[rng.Intn(len(ecgReadings))],
			SBP:            fptr(105 + rng.Float64()*50),
			DBP:            fptr(65 + rng.Float64()*30),
		}
		snap.Baseline = append(snap.Baseline, b)

		if rng.Float64() < cfg.MissingRate {
			continue // no follow-up rows for this participant
		}

		snap.Week13 = append(snap.Week13, study.Week13{
			ParticipantID: pid,
			HsCRP:         drift(rng, b.HsCRP),
			Fibrinogen:    drift(rng, b.Fibrinogen),
			SAA:           drift(rng, b.SAA),
		})

		w32 := study.Week32{
			ParticipantID:     pid,
			TreatmentGroup:    arm,
			CompletionStatus:  study.StatusCompleted,
			ReasonNotComplete: study.ReasonNA,
			SiteName:          sites[rng.Intn(len(sites))],
			ECG:               ecgReadings[rng.Intn(len(ecgReadings))],
			SBP:               drift(rng, b.SBP),
			DBP:               drift(rng, b.DBP),
		}
		if rng.Float64() < cfg.DropoutRate {
			w32.CompletionStatus = study.StatusNotCompleted
			w32.ReasonNotComplete = dropoutReasons[rng.Intn(len(dropoutReasons))]
		}
		snap.Week32 = append(snap.Week32, w32)
	}

	for _, arm := range arms {
		for i := 0; i < cfg.AEPerArm; i++ {
			ae := study.AdverseEvent{
				TreatmentGroup: arm,
				AEType:         study.AENone,
				SAEType:        study.AENone,
			}
			if rng.Float64() < 0.6 {
				ae.AEType = aeTypes[rng.Intn(len(aeTypes))]
			}
			if rng.Float64() < 0.08 {
				ae.SAEType = saeTypes[rng.Intn(len(saeTypes))]
			}
			snap.AdverseEvents = append(snap.AdverseEvents, ae)
		}
	}

	return snap
}

// participantID derives a stable id from the seeded rng so the whole
// snapshot is reproducible.
func participantID(rng *rand.Rand) string {
	var b [16]byte
	rng.Read(b[:])
	u, _ := uuid.FromBytes(b[:])
	return fmt.Sprintf("P-%s", u.String()[:8])
}

func fptr(v float64) *float64 {
	r := float64(int(v*10)) / 10
	return &r
}

// drift returns the baseline value moved by up to ±30%.
func drift(rng *rand.Rand, base *float64) *float64 {
	if base == nil {
		return nil
	}
	factor := 0.7 + rng.Float64()*0.6
	return fptr(*base * factor)
}
