package study

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns a Repository backed by the four Postgres tables created
// by the trial migration.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const baselineCols = `participant_id, dob, enrollment_date, sex, race, treatment_group,
	baseline_hscrp, baseline_fibrinogen, baseline_saa, baseline_ecg, baseline_sbp, baseline_dbp`

const week13Cols = `participant_id, wk13_hscrp, wk13_fibrinogen, wk13_saa`

const week32Cols = `participant_id, treatment_group, completion_status, reason_notcomplete,
	site_name, wk32_ecg, wk32_sbp, wk32_dbp`

const adverseCols = `treatment_group, ae_type, sae_type`

func (r *repoPG) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	if err := r.queryInto(ctx, `SELECT `+baselineCols+` FROM baseline ORDER BY participant_id`,
		func(rows pgx.Rows) error {
			var b Baseline
			if err := rows.Scan(&b.ParticipantID, &b.DOB, &b.EnrollmentDate, &b.Sex, &b.Race,
				&b.TreatmentGroup, &b.HsCRP, &b.Fibrinogen, &b.SAA, &b.ECG, &b.SBP, &b.DBP); err != nil {
				return err
			}
			snap.Baseline = append(snap.Baseline, b)
			return nil
		}); err != nil {
		return nil, fmt.Errorf("load baseline: %w", err)
	}

	if err := r.queryInto(ctx, `SELECT `+week13Cols+` FROM week_13 ORDER BY participant_id`,
		func(rows pgx.Rows) error {
			var w Week13
			if err := rows.Scan(&w.ParticipantID, &w.HsCRP, &w.Fibrinogen, &w.SAA); err != nil {
				return err
			}
			snap.Week13 = append(snap.Week13, w)
			return nil
		}); err != nil {
		return nil, fmt.Errorf("load week_13: %w", err)
	}

	if err := r.queryInto(ctx, `SELECT `+week32Cols+` FROM week_32 ORDER BY participant_id`,
		func(rows pgx.Rows) error {
			var w Week32
			if err := rows.Scan(&w.ParticipantID, &w.TreatmentGroup, &w.CompletionStatus,
				&w.ReasonNotComplete, &w.SiteName, &w.ECG, &w.SBP, &w.DBP); err != nil {
				return err
			}
			snap.Week32 = append(snap.Week32, w)
			return nil
		}); err != nil {
		return nil, fmt.Errorf("load week_32: %w", err)
	}

	if err := r.queryInto(ctx, `SELECT `+adverseCols+` FROM adverse_events`,
		func(rows pgx.Rows) error {
			var a AdverseEvent
			if err := rows.Scan(&a.TreatmentGroup, &a.AEType, &a.SAEType); err != nil {
				return err
			}
			snap.AdverseEvents = append(snap.AdverseEvents, a)
			return nil
		}); err != nil {
		return nil, fmt.Errorf("load adverse_events: %w", err)
	}

	return snap, nil
}

func (r *repoPG) queryInto(ctx context.Context, sql string, scan func(pgx.Rows) error) error {
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// InsertSnapshot writes a snapshot into the Postgres tables. Used by the
// load command to promote a CSV snapshot into the database.
func InsertSnapshot(ctx context.Context, pool *pgxpool.Pool, snap *Snapshot) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, b := range snap.Baseline {
		if _, err := tx.Exec(ctx, `
			INSERT INTO baseline (`+baselineCols+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			b.ParticipantID, b.DOB, b.EnrollmentDate, b.Sex, b.Race, b.TreatmentGroup,
			b.HsCRP, b.Fibrinogen, b.SAA, b.ECG, b.SBP, b.DBP); err != nil {
			return fmt.Errorf("insert baseline %s: %w", b.ParticipantID, err)
		}
	}
	for _, w := range snap.Week13 {
		if _, err := tx.Exec(ctx, `
			INSERT INTO week_13 (`+week13Cols+`) VALUES ($1,$2,$3,$4)`,
			w.ParticipantID, w.HsCRP, w.Fibrinogen, w.SAA); err != nil {
			return fmt.Errorf("insert week_13 %s: %w", w.ParticipantID, err)
		}
	}
	for _, w := range snap.Week32 {
		if _, err := tx.Exec(ctx, `
			INSERT INTO week_32 (`+week32Cols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			w.ParticipantID, w.TreatmentGroup, w.CompletionStatus, w.ReasonNotComplete,
			w.SiteName, w.ECG, w.SBP, w.DBP); err != nil {
			return fmt.Errorf("insert week_32 %s: %w", w.ParticipantID, err)
		}
	}
	for _, a := range snap.AdverseEvents {
		if _, err := tx.Exec(ctx, `
			INSERT INTO adverse_events (`+adverseCols+`) VALUES ($1,$2,$3)`,
			a.TreatmentGroup, a.AEType, a.SAEType); err != nil {
			return fmt.Errorf("insert adverse_events: %w", err)
		}
	}

	return tx.Commit(ctx)
}
