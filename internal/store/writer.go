package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobmate/digest-service/internal/model"
)

// Writer persists one user's matching output for a batch date.
//
// Both tables are written with upsert semantics keyed by
// (user_id, job_id, batch_date): re-running the same user/date with the
// same inputs converges to the identical row set. Rows from an earlier
// partial attempt whose key is absent from the new set are deleted inside
// the same transaction, so a crash-rerun never leaves orphans.
type Writer struct {
	pool *pgxpool.Pool
}

// NewWriter returns a Writer backed by the given pool.
func NewWriter(pool *pgxpool.Pool) *Writer {
	return &Writer{pool: pool}
}

// WriteUser upserts the user's mapping rows (every scored candidate) and
// daily pick rows (the selection) for batchDate, atomically.
func (w *Writer) WriteUser(
	ctx context.Context,
	userID string,
	batchDate time.Time,
	mappings []model.Mapping,
	picks []model.DailyPick,
) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := w.writeMappings(ctx, tx, userID, batchDate, mappings); err != nil {
		return err
	}
	if err := w.writePicks(ctx, tx, userID, batchDate, picks); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (w *Writer) writeMappings(ctx context.Context, tx pgx.Tx, userID string, batchDate time.Time, mappings []model.Mapping) error {
	batch := &pgx.Batch{}
	jobIDs := make([]string, 0, len(mappings))

	for _, m := range mappings {
		jobIDs = append(jobIDs, m.JobID)
		batch.Queue(
			`INSERT INTO user_job_mapping (user_id, job_id, batch_date,
			                               composite_score, basic_score, seo_score,
			                               personalized_score, rank)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (user_id, job_id, batch_date) DO UPDATE
			 SET composite_score    = EXCLUDED.composite_score,
			     basic_score        = EXCLUDED.basic_score,
			     seo_score          = EXCLUDED.seo_score,
			     personalized_score = EXCLUDED.personalized_score,
			     rank               = EXCLUDED.rank`,
			m.UserID, m.JobID, m.BatchDate,
			m.CompositeScore, m.Components.Basic, m.Components.SEO,
			m.Components.Personalized, m.Rank,
		)
	}
	batch.Queue(
		`DELETE FROM user_job_mapping
		 WHERE user_id = $1 AND batch_date = $2 AND NOT (job_id = ANY($3))`,
		userID, batchDate, jobIDs,
	)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("write user_job_mapping: %w", err)
	}
	return nil
}

func (w *Writer) writePicks(ctx context.Context, tx pgx.Tx, userID string, batchDate time.Time, picks []model.DailyPick) error {
	batch := &pgx.Batch{}
	jobIDs := make([]string, 0, len(picks))

	for _, p := range picks {
		jobIDs = append(jobIDs, p.JobID)
		batch.Queue(
			`INSERT INTO daily_job_picks (user_id, job_id, batch_date,
			                              section, section_rank, section_order)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (user_id, job_id, batch_date) DO UPDATE
			 SET section       = EXCLUDED.section,
			     section_rank  = EXCLUDED.section_rank,
			     section_order = EXCLUDED.section_order`,
			p.UserID, p.JobID, p.BatchDate,
			p.Section, p.SectionRank, p.SectionOrder,
		)
	}
	batch.Queue(
		`DELETE FROM daily_job_picks
		 WHERE user_id = $1 AND batch_date = $2 AND NOT (job_id = ANY($3))`,
		userID, batchDate, jobIDs,
	)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("write daily_job_picks: %w", err)
	}
	return nil
}
