package workflows

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker) {
	w.RegisterWorkflow(BatchConvertWorkflow)
	w.RegisterWorkflow(ReportProcessWorkflow)
	w.RegisterWorkflow(BackfillWorkflow)
}
