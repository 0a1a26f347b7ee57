package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/doc-cleanser/constants"
	"github.com/joseph-ayodele/doc-cleanser/internal/common"
	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
)

// LedgerRepository records batch runs and per-document status. It never stores document
// bytes or original text; findings are stored only after anonymization.
type LedgerRepository interface {
	StartRun(ctx context.Context, run entity.CleanseRun) error
	FinishRun(ctx context.Context, runID string) error
	StartJob(ctx context.Context, job entity.CleanseJob) error
	SetStatus(ctx context.Context, jobID string, status constants.JobStatus) error
	FinishJob(ctx context.Context, jobID string, entry entity.ReportEntry, failure error) error
	GetRun(ctx context.Context, runID string) (entity.CleanseRun, []entity.CleanseJob, error)
}

type ledgerRepo struct {
	db  *DB
	log *slog.Logger
}

func NewLedgerRepository(db *DB, log *slog.Logger) LedgerRepository {
	if log == nil {
		log = slog.Default()
	}
	return &ledgerRepo{db: db, log: log}
}

const tsLayout = time.RFC3339Nano

func ts(t time.Time) string { return t.UTC().Format(tsLayout) }

func (r *ledgerRepo) StartRun(ctx context.Context, run entity.CleanseRun) error {
	q := r.db.builder().Insert("cleanse_run").
		Columns("id", "client_name", "documents", "started_at").
		Values(run.ID, run.ClientName, run.Documents, ts(run.StartedAt))
	if err := r.db.exec(ctx, q); err != nil {
		r.log.Error("cleanse_run start failed", "run_id", run.ID, "err", err)
		return wrapDB("start run", err)
	}
	r.log.Info("cleanse_run started", "run_id", run.ID, "documents", run.Documents)
	return nil
}

func (r *ledgerRepo) FinishRun(ctx context.Context, runID string) error {
	q := r.db.builder().Update("cleanse_run").
		Set("finished_at", ts(time.Now())).
		Where(entsql.EQ("id", runID))
	if err := r.db.exec(ctx, q); err != nil {
		r.log.Error("cleanse_run finish failed", "run_id", runID, "err", err)
		return wrapDB("finish run", err)
	}
	return nil
}

func (r *ledgerRepo) StartJob(ctx context.Context, job entity.CleanseJob) error {
	status := job.Status
	if status == "" {
		status = string(constants.JobStatusQueued)
	}
	started := job.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	q := r.db.builder().Insert("cleanse_job").
		Columns("id", "run_id", "seq", "document_id", "document_name", "format", "status", "started_at").
		Values(job.ID, job.RunID, job.Seq, job.DocumentID, job.DocumentName, job.Format, status, ts(started))
	if err := r.db.exec(ctx, q); err != nil {
		r.log.Error("cleanse_job start failed", "job_id", job.ID, "document_id", job.DocumentID, "err", err)
		return wrapDB("start job", err)
	}
	r.log.Debug("cleanse_job started", "job_id", job.ID, "document_id", job.DocumentID)
	return nil
}

func (r *ledgerRepo) SetStatus(ctx context.Context, jobID string, status constants.JobStatus) error {
	q := r.db.builder().Update("cleanse_job").
		Set("status", string(status)).
		Where(entsql.EQ("id", jobID))
	if err := r.db.exec(ctx, q); err != nil {
		r.log.Error("cleanse_job status failed", "job_id", jobID, "status", status, "err", err)
		return wrapDB("set status", err)
	}
	return nil
}

// FinishJob stores the terminal state. A nil failure means COMPLETED, even with warnings.
func (r *ledgerRepo) FinishJob(ctx context.Context, jobID string, entry entity.ReportEntry, failure error) error {
	findings, err := json.Marshal(entry.Findings)
	if err != nil {
		return fmt.Errorf("encode findings: %w", err)
	}
	status := constants.JobStatusCompleted
	upd := r.db.builder().Update("cleanse_job").
		Set("finished_at", ts(time.Now())).
		Set("redaction_count", entry.RedactionCount).
		Set("warning_count", len(entry.Warnings)).
		Set("finding_count", len(entry.Findings)).
		Set("findings_json", string(findings))
	if failure != nil {
		status = constants.JobStatusFailed
		upd = upd.Set("error_message", common.Warning(failure))
	}
	upd = upd.Set("status", string(status)).Where(entsql.EQ("id", jobID))
	if err := r.db.exec(ctx, upd); err != nil {
		r.log.Error("cleanse_job finish failed", "job_id", jobID, "err", err)
		return wrapDB("finish job", err)
	}
	if failure != nil {
		r.log.Warn("cleanse_job finished (FAILED)", "job_id", jobID, "error", common.ErrorKind(failure))
	} else {
		r.log.Debug("cleanse_job finished (COMPLETED)", "job_id", jobID, "findings", len(entry.Findings))
	}
	return nil
}

func (r *ledgerRepo) GetRun(ctx context.Context, runID string) (entity.CleanseRun, []entity.CleanseJob, error) {
	var run entity.CleanseRun

	b := r.db.builder()
	query, args := b.Select("id", "client_name", "documents", "started_at", "finished_at").
		From(b.Table("cleanse_run")).
		Where(entsql.EQ("id", runID)).
		Query()
	rows := &entsql.Rows{}
	if err := r.db.drv.Query(ctx, query, args, rows); err != nil {
		return run, nil, wrapDB("get run", err)
	}
	found := false
	for rows.Next() {
		var (
			clientName, finished sql.NullString
			started              string
		)
		if err := rows.Scan(&run.ID, &clientName, &run.Documents, &started, &finished); err != nil {
			_ = rows.Close()
			return run, nil, wrapDB("scan run", err)
		}
		run.ClientName = clientName.String
		run.StartedAt = parseTS(started)
		if finished.Valid {
			t := parseTS(finished.String)
			run.FinishedAt = &t
		}
		found = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return run, nil, wrapDB("read run", err)
	}
	_ = rows.Close()
	if !found {
		return run, nil, common.NewAppError("NOT_FOUND", fmt.Sprintf("run %q not found", runID), common.ErrNotFound)
	}

	jobs, err := r.listJobs(ctx, runID)
	if err != nil {
		return run, nil, err
	}
	return run, jobs, nil
}

func (r *ledgerRepo) listJobs(ctx context.Context, runID string) ([]entity.CleanseJob, error) {
	b := r.db.builder()
	query, args := b.Select("id", "run_id", "seq", "document_id", "document_name", "format", "status",
		"started_at", "finished_at", "error_message", "redaction_count", "warning_count",
		"finding_count", "findings_json").
		From(b.Table("cleanse_job")).
		Where(entsql.EQ("run_id", runID)).
		OrderBy("seq").
		Query()
	rows := &entsql.Rows{}
	if err := r.db.drv.Query(ctx, query, args, rows); err != nil {
		return nil, wrapDB("list jobs", err)
	}
	defer rows.Close()

	var jobs []entity.CleanseJob
	for rows.Next() {
		var (
			j                                  entity.CleanseJob
			name, format, finished, msg, found sql.NullString
			started                            string
		)
		if err := rows.Scan(&j.ID, &j.RunID, &j.Seq, &j.DocumentID, &name, &format, &j.Status,
			&started, &finished, &msg, &j.RedactionCount, &j.WarningCount, &j.FindingCount, &found); err != nil {
			return nil, wrapDB("scan job", err)
		}
		j.DocumentName = name.String
		j.Format = format.String
		j.StartedAt = parseTS(started)
		if finished.Valid {
			t := parseTS(finished.String)
			j.FinishedAt = &t
		}
		if msg.Valid {
			s := msg.String
			j.ErrorMessage = &s
		}
		if found.Valid && found.String != "" {
			j.FindingsJSON = json.RawMessage(found.String)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDB("read jobs", err)
	}
	return jobs, nil
}

func parseTS(s string) time.Time {
	t, err := time.Parse(tsLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func wrapDB(op string, err error) error {
	return common.NewAppError("DATABASE_ERROR", op, errors.Join(common.ErrDatabase, err))
}
