package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.ListPDFsActivity)
	w.RegisterActivity(a.ComputeReportIDActivity)
	w.RegisterActivity(a.ReadPagesActivity)
	w.RegisterActivity(a.ExtractResultsActivity)
	w.RegisterActivity(a.UpsertResultsActivity)
	w.RegisterActivity(a.WriteWorkbookActivity)
	w.RegisterActivity(a.WriteReportArtifactsActivity)
	w.RegisterActivity(a.UpdateReportStatusActivity)
	w.RegisterActivity(a.SetReportStatusActivity)
	w.RegisterActivity(a.WriteBatchSummaryActivity)
	w.RegisterActivity(a.ListReportsActivity)
	w.RegisterActivity(a.WriteRunManifestActivity)
}
