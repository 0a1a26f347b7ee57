package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/doc-cleanser/constants"
	"github.com/joseph-ayodele/doc-cleanser/internal/common"
	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
)

func openTestLedger(t *testing.T) LedgerRepository {
	t.Helper()
	db, err := Open(context.Background(), Config{}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.HealthCheck(context.Background(), time.Second))
	return NewLedgerRepository(db, nil)
}

func TestLedgerRunLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := openTestLedger(t)

	require.NoError(t, repo.StartRun(ctx, entity.CleanseRun{ID: "run-1", ClientName: "Acme", Documents: 2, StartedAt: time.Now()}))
	require.NoError(t, repo.StartJob(ctx, entity.CleanseJob{ID: "job-b", RunID: "run-1", Seq: 1, DocumentID: "d2", DocumentName: "b.xyz", Format: "xyz"}))
	require.NoError(t, repo.StartJob(ctx, entity.CleanseJob{ID: "job-a", RunID: "run-1", Seq: 0, DocumentID: "d1", DocumentName: "a.txt", Format: "txt"}))

	require.NoError(t, repo.SetStatus(ctx, "job-a", constants.JobStatusRedacted))
	require.NoError(t, repo.FinishJob(ctx, "job-a", entity.ReportEntry{
		RedactionCount: 3,
		Findings:       []entity.StructuredFinding{{Action: entity.Str("deny")}},
		Warnings:       []string{"input truncated"},
	}, nil))
	require.NoError(t, repo.FinishJob(ctx, "job-b", entity.ReportEntry{}, common.UnsupportedFormat("xyz")))
	require.NoError(t, repo.FinishRun(ctx, "run-1"))

	run, jobs, err := repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", run.ClientName)
	assert.Equal(t, 2, run.Documents)
	assert.NotNil(t, run.FinishedAt)

	require.Len(t, jobs, 2)
	assert.Equal(t, "job-a", jobs[0].ID)
	assert.Equal(t, string(constants.JobStatusCompleted), jobs[0].Status)
	assert.Equal(t, 3, jobs[0].RedactionCount)
	assert.Equal(t, 1, jobs[0].WarningCount)
	assert.Equal(t, 1, jobs[0].FindingCount)
	assert.JSONEq(t, `[{"rule_type":null,"rule_id":null,"source":null,"destination":null,"port":null,"protocol":null,"action":"deny","principal":null,"scope":null,"description":null}]`, string(jobs[0].FindingsJSON))
	assert.Nil(t, jobs[0].ErrorMessage)

	assert.Equal(t, string(constants.JobStatusFailed), jobs[1].Status)
	require.NotNil(t, jobs[1].ErrorMessage)
	assert.Contains(t, *jobs[1].ErrorMessage, "UnsupportedFormat")
}

func TestLedgerGetRunNotFound(t *testing.T) {
	repo := openTestLedger(t)
	_, _, err := repo.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestLedgerRejectsJobForUnknownRun(t *testing.T) {
	repo := openTestLedger(t)
	err := repo.StartJob(context.Background(), entity.CleanseJob{ID: "j", RunID: "nope", DocumentID: "d"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrDatabase))
}
