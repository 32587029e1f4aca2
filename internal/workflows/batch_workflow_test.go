package workflows

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"labxtract/internal/activities"
)

func TestBatchConvertWorkflowCountsOutcomes(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(BatchConvertWorkflow)
	env.RegisterWorkflow(ReportProcessWorkflow)
	registerActivityName(env, "ListPDFsActivity", func(context.Context, activities.ListPDFsInput) (activities.ListPDFsOutput, error) {
		return activities.ListPDFsOutput{}, nil
	})
	registerActivityName(env, "WriteBatchSummaryActivity", func(context.Context, activities.WriteBatchSummaryInput) error { return nil })

	paths := []string{"/in/a.pdf", "/in/b.pdf", "/in/c.pdf"}
	env.OnActivity("ListPDFsActivity", mock.Anything, activities.ListPDFsInput{InputDir: "/in"}).Return(activities.ListPDFsOutput{Paths: paths}, nil)
	env.OnWorkflow(ReportProcessWorkflow, mock.Anything, ReportProcessInput{BatchID: "b1", ReportPath: "/in/a.pdf", Variant: "cc-seq"}).Return("processed", nil)
	env.OnWorkflow(ReportProcessWorkflow, mock.Anything, ReportProcessInput{BatchID: "b1", ReportPath: "/in/b.pdf", Variant: "cc-seq"}).Return("empty", nil)
	env.OnWorkflow(ReportProcessWorkflow, mock.Anything, ReportProcessInput{BatchID: "b1", ReportPath: "/in/c.pdf", Variant: "cc-seq"}).Return("failed", nil)
	var summary activities.WriteBatchSummaryInput
	env.OnActivity("WriteBatchSummaryActivity", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		summary = args.Get(1).(activities.WriteBatchSummaryInput)
	}).Return(nil)

	env.ExecuteWorkflow(BatchConvertWorkflow, BatchConvertInput{BatchID: "b1", InputDir: "/in", Variant: "cc-seq", MaxConcurrentChildren: 2})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	val, err := env.QueryWorkflow(QueryGetProgress)
	require.NoError(t, err)
	var progress BatchProgress
	require.NoError(t, val.Get(&progress))
	require.Equal(t, 3, progress.Total)
	require.Equal(t, 3, progress.Done)
	require.Equal(t, 1, progress.Failed)
	require.Equal(t, 1, progress.Empty)
	require.Equal(t, "empty", progress.PerReport["b.pdf"])
	require.Equal(t, "report-b1-a-pdf-a7949e62", progress.ChildWorkflow["a.pdf"])
	require.Equal(t, "b1", summary.BatchID)
	require.EqualValues(t, 3, summary.Summary["total"])
}

func TestBackfillWorkflowRetriesFailedReports(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(BackfillWorkflow)
	env.RegisterWorkflow(ReportProcessWorkflow)
	registerActivityName(env, "ListReportsActivity", func(context.Context, activities.ListReportsInput) (activities.ListReportsOutput, error) {
		return activities.ListReportsOutput{}, nil
	})
	registerActivityName(env, "WriteRunManifestActivity", func(context.Context, activities.WriteRunManifestInput) (activities.WriteRunManifestOutput, error) {
		return activities.WriteRunManifestOutput{}, nil
	})
	registerActivityName(env, "SetReportStatusActivity", func(context.Context, activities.SetReportStatusInput) error { return nil })

	env.OnActivity("ListReportsActivity", mock.Anything, activities.ListReportsInput{Status: "failed"}).Return(activities.ListReportsOutput{Reports: []activities.ReportRef{
		{ReportID: "r1", Filename: "a.pdf", SourcePath: "/in/a.pdf", Variant: "cc-seq", Status: "failed"},
		{ReportID: "r2", Filename: "b.pdf", Variant: "cc-seq", Status: "failed"},
	}}, nil)
	env.OnWorkflow(ReportProcessWorkflow, mock.Anything, ReportProcessInput{ReportPath: "/in/a.pdf", Filename: "a.pdf", Variant: "cc-id"}).Return("processed", nil)
	var queued []string
	env.OnActivity("SetReportStatusActivity", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		in := args.Get(1).(activities.SetReportStatusInput)
		require.Equal(t, "queued", in.Status)
		queued = append(queued, in.ReportID)
	}).Return(nil)
	var manifest map[string]any
	env.OnActivity("WriteRunManifestActivity", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		manifest = args.Get(1).(activities.WriteRunManifestInput).Manifest
	}).Return(activities.WriteRunManifestOutput{Path: "/out/runs/x/manifest.json"}, nil)

	env.ExecuteWorkflow(BackfillWorkflow, BackfillInput{Mode: "retry_failed_reports", Variant: "cc-id"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "/out/runs/x/manifest.json", out)
	outcomes, ok := manifest["outcomes"].(map[string]any)
	require.True(t, ok)
	require.EqualValues(t, 1, outcomes["processed"])
	require.EqualValues(t, 1, outcomes["skipped"])
	require.EqualValues(t, 2, manifest["reports_seen"])
	require.Equal(t, []string{"r1"}, queued)
}

func TestBackfillWorkflowRejectsUnknownMode(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(BackfillWorkflow)

	env.ExecuteWorkflow(BackfillWorkflow, BackfillInput{Mode: "REEMBED"})
	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
}

func TestReportWorkflowID(t *testing.T) {
	require.Equal(t, "report-0f8e2c1a-77aa-4bd1-9c55-2f1e0d3b6a90", ReportWorkflowID("", "0f8e2c1a-77aa-4bd1-9c55-2f1e0d3b6a90"))
	require.Equal(t, "report-abc-b5d4045c", ReportWorkflowID("", "ABC"))
	require.Equal(t, "report-b1-run-3-pdf-0c499c54", ReportWorkflowID("b1", "Run 3.pdf"))
}

func TestReportWorkflowIDKeepsSimilarNamesApart(t *testing.T) {
	underscore := ReportWorkflowID("b1", "run_1.pdf")
	hyphen := ReportWorkflowID("b1", "run-1.pdf")
	require.NotEqual(t, underscore, hyphen)
	require.Equal(t, "report-b1-run-1-pdf-836ac9a5", underscore)
	require.Equal(t, "report-b1-run-1-pdf-1bb7cc4b", hyphen)
}
