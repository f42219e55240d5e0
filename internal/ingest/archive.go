package ingest

import (
	"context"
	"time"

	"github.com/berkinory/Nobetcim/internal/db"
	"github.com/berkinory/Nobetcim/internal/pharmacy"

	"github.com/google/uuid"
)

// Archive keeps a relational history of every ingest run. The redis roster
// expires; the archive is what survives for reporting.
type Archive struct {
	db db.Querier
}

func NewArchive(db db.Querier) *Archive {
	return &Archive{db: db}
}

// SaveEntries stores one province's scraped roster under a run.
func (a *Archive) SaveEntries(ctx context.Context, runID, dateKey string, entries []pharmacy.Pharmacy) error {
	for _, p := range entries {
		_, err := a.db.Exec(ctx, `
			INSERT INTO pharmacy_archive (id, run_id, duty_date, city, district, name, phone, address, lat, long)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, uuid.NewString(), runID, dateKey, p.City, p.District, p.Name, p.Phone, p.Address, p.Lat, p.Long)
		if err != nil {
			return err
		}
	}
	return nil
}

// RecordRun writes the run summary row after a date has been processed.
func (a *Archive) RecordRun(ctx context.Context, runID, dateKey string, sum Summary, startedAt time.Time) error {
	_, err := a.db.Exec(ctx, `
		INSERT INTO ingest_runs (id, duty_date, provinces_ok, provinces_failed, provinces_skipped, entries, started_at, finished_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
	`, runID, dateKey, sum.Succeeded, sum.Failed, sum.Skipped, sum.Entries, startedAt)
	return err
}
