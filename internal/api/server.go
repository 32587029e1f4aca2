package api

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"labxtract/internal/config"
	"labxtract/internal/extract"
	"labxtract/internal/models"
	"labxtract/internal/pdftext"
	"labxtract/internal/storage"
	"labxtract/internal/util"
	"labxtract/internal/workflows"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
)

type Server struct {
	cfg        config.Config
	db         *storage.DB
	batchRepo  *storage.BatchRepo
	reportRepo *storage.ReportRepo
	resultRepo *storage.ResultRepo
	registry   *extract.Registry
	temporal   tclient.Client
}

func NewServer(cfg config.Config) *Server {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		panic(err)
	}
	reg, err := extract.LoadRegistry(cfg.ProfilesPath)
	if err != nil {
		panic(err)
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		panic(err)
	}
	return &Server{
		cfg:        cfg,
		db:         db,
		batchRepo:  storage.NewBatchRepo(db),
		reportRepo: storage.NewReportRepo(db),
		resultRepo: storage.NewResultRepo(db),
		registry:   reg,
		temporal:   tc,
	}
}

func (s *Server) Close() {
	if s.temporal != nil {
		s.temporal.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/variants", s.handleVariants)
	mux.HandleFunc("/reports", s.handleReports)
	mux.HandleFunc("/reports/", s.handleReportScoped)
	mux.HandleFunc("/batches", s.handleBatches)
	mux.HandleFunc("/batches/", s.handleBatchScoped)
	mux.HandleFunc("/backfill", s.handleBackfill)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			writeErr(w, http.StatusServiceUnavailable, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleVariants(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	type variantView struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Analyzer    string   `json:"analyzer"`
		IDMode      string   `json:"id_mode"`
		Columns     []string `json:"columns"`
	}
	all := s.registry.All()
	out := make([]variantView, 0, len(all))
	for _, v := range all {
		out = append(out, variantView{
			Name:        v.Name,
			Description: v.Description,
			Analyzer:    string(v.Analyzer),
			IDMode:      string(v.IDMode),
			Columns:     v.Columns(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"default": s.cfg.DefaultVariant, "variants": out})
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var (
			reports []models.Report
			err     error
		)
		if st := strings.TrimSpace(r.URL.Query().Get("status")); st != "" {
			reports, err = s.reportRepo.ListReportsByStatus(r.Context(), st)
		} else {
			reports, err = s.reportRepo.ListReports(r.Context(), r.URL.Query().Get("batch_id"))
		}
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
	case http.MethodPost:
		s.handleUpload(w, r)
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := int64(s.cfg.MaxUploadMB) << 20
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErr(w, http.StatusRequestEntityTooLarge, fmt.Errorf("%w: %d MB", util.ErrUploadTooLarge, s.cfg.MaxUploadMB))
			return
		}
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}

	fh, ok := formFile(r.MultipartForm.File, "file")
	if !ok {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no files provided"))
		return
	}
	variant := strings.TrimSpace(r.FormValue("variant"))
	if variant == "" {
		variant = s.cfg.DefaultVariant
	}
	if _, err := s.registry.Lookup(variant); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if err := validateUpload(fh); err != nil {
		writeErr(w, http.StatusUnsupportedMediaType, err)
		return
	}

	inDir := filepath.Join(s.cfg.DataInRoot, "uploads")
	if err := util.EnsureDir(inDir); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	reportID, savedPath, err := saveUploadedFile(inDir, fh)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	filename := filepath.Base(fh.Filename)
	if err := s.reportRepo.UpsertReport(r.Context(), models.Report{
		ReportID:   reportID,
		Filename:   filename,
		SourcePath: savedPath,
		Variant:    variant,
		Status:     models.StatusQueued,
	}); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                                       workflows.ReportWorkflowID("", reportID),
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.ReportProcessWorkflow, workflows.ReportProcessInput{
		ReportPath: savedPath,
		Filename:   filename,
		Variant:    variant,
	})
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"report_id":   reportID,
		"filename":    filename,
		"variant":     variant,
		"workflow_id": we.GetID(),
		"run_id":      we.GetRunID(),
	})
}

func (s *Server) handleReportScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/reports/"), "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	reportID := parts[0]

	if len(parts) == 1 {
		rep, err := s.reportRepo.GetReport(r.Context(), reportID)
		if err != nil {
			writeErr(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
		return
	}
	if len(parts) != 2 {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}

	switch parts[1] {
	case "results":
		if _, err := s.reportRepo.GetReport(r.Context(), reportID); err != nil {
			writeErr(w, statusFor(err), err)
			return
		}
		results, err := s.resultRepo.ListResults(r.Context(), reportID)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"report_id": reportID, "results": results})
	case "progress":
		var st workflows.ReportStatus
		resp, err := s.temporal.QueryWorkflow(r.Context(), workflows.ReportWorkflowID("", reportID), "", workflows.QueryGetReportStatus)
		if err != nil {
			// Fall back to the stored row once the workflow is gone or was started by a batch.
			rep, rErr := s.reportRepo.GetReport(r.Context(), reportID)
			if rErr != nil {
				writeErr(w, statusFor(rErr), rErr)
				return
			}
			writeJSON(w, http.StatusOK, workflows.ReportStatus{
				ReportID:    rep.ReportID,
				ReportPath:  rep.SourcePath,
				Variant:     rep.Variant,
				CurrentStep: "done",
				Status:      rep.Status,
				FailReason:  rep.FailReason,
				PageCount:   rep.PageCount,
				RecordCount: rep.RecordCount,
				Workbook:    rep.WorkbookPath,
			})
			return
		}
		if err := resp.Get(&st); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	case "workbook":
		rep, err := s.reportRepo.GetReport(r.Context(), reportID)
		if err != nil {
			writeErr(w, statusFor(err), err)
			return
		}
		if rep.WorkbookPath == "" {
			writeErr(w, http.StatusNotFound, fmt.Errorf("workbook not available for status %s", rep.Status))
			return
		}
		if _, err := os.Stat(rep.WorkbookPath); err != nil {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		name := filepath.Base(rep.WorkbookPath)
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		http.ServeFile(w, r, rep.WorkbookPath)
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

func (s *Server) handleBatches(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		batches, err := s.batchRepo.ListBatches(r.Context())
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"batches": batches})
	case http.MethodPost:
		var req struct {
			InputDir string `json:"input_dir"`
			Variant  string `json:"variant"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
		req.InputDir = strings.TrimSpace(req.InputDir)
		if req.InputDir == "" {
			req.InputDir = s.cfg.DataInRoot
		}
		req.Variant = strings.TrimSpace(req.Variant)
		if req.Variant == "" {
			req.Variant = s.cfg.DefaultVariant
		}
		if _, err := s.registry.Lookup(req.Variant); err != nil {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		if fi, err := os.Stat(req.InputDir); err != nil || !fi.IsDir() {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("input_dir is not a directory: %s", req.InputDir))
			return
		}

		batchID := uuid.NewString()
		if err := s.batchRepo.CreateBatch(r.Context(), models.Batch{
			BatchID:  batchID,
			InputDir: req.InputDir,
			Variant:  req.Variant,
		}); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
			ID:                                       "batch-" + batchID,
			TaskQueue:                                s.cfg.TemporalTaskQueue,
			WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
			WorkflowExecutionErrorWhenAlreadyStarted: true,
		}, workflows.BatchConvertWorkflow, workflows.BatchConvertInput{
			BatchID:               batchID,
			InputDir:              req.InputDir,
			Variant:               req.Variant,
			MaxConcurrentChildren: s.cfg.BatchMaxChildren,
		})
		if err != nil {
			writeErr(w, http.StatusConflict, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"batch_id": batchID, "workflow_id": we.GetID(), "run_id": we.GetRunID()})
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

func (s *Server) handleBatchScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/batches/"), "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "progress" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	batchID := parts[0]

	var prog workflows.BatchProgress
	resp, err := s.temporal.QueryWorkflow(r.Context(), "batch-"+batchID, "", workflows.QueryGetProgress)
	if err != nil {
		reports, rErr := s.reportRepo.ListReports(r.Context(), batchID)
		if rErr != nil {
			writeErr(w, http.StatusInternalServerError, rErr)
			return
		}
		writeJSON(w, http.StatusOK, progressFromReports(batchID, reports))
		return
	}
	if err := resp.Get(&prog); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, prog)
}

// progressFromReports rebuilds batch progress from stored rows.
func progressFromReports(batchID string, reports []models.Report) workflows.BatchProgress {
	prog := workflows.BatchProgress{
		BatchID:   batchID,
		Total:     len(reports),
		PerReport: make(map[string]string, len(reports)),
	}
	for _, rep := range reports {
		prog.PerReport[rep.Filename] = rep.Status
		switch rep.Status {
		case models.StatusProcessed:
			prog.Done++
		case models.StatusEmpty:
			prog.Done++
			prog.Empty++
		case models.StatusFailed:
			prog.Failed++
		}
	}
	return prog
}

func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req workflows.BackfillInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.Mode = strings.ToUpper(strings.TrimSpace(req.Mode))
	if req.Mode == "" {
		req.Mode = workflows.ModeRetryFailed
	}
	if req.Mode != workflows.ModeRetryFailed && req.Mode != workflows.ModeReextractAll {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("unsupported backfill mode %q", req.Mode))
		return
	}
	if req.Variant != "" {
		if _, err := s.registry.Lookup(req.Variant); err != nil {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
	}
	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:        "backfill-" + uuid.NewString(),
		TaskQueue: s.cfg.TemporalTaskQueue,
	}, workflows.BackfillWorkflow, req)
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"mode": req.Mode, "workflow_id": we.GetID(), "run_id": we.GetRunID()})
}

func validateUpload(fh *multipart.FileHeader) error {
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
		return fmt.Errorf("%w: %s", pdftext.ErrNotPDF, fh.Filename)
	}
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()
	return pdftext.Validate(src)
}

// saveUploadedFile stores the upload as <sha256>.pdf so re-uploads of the same
// report land on the same path and id.
func saveUploadedFile(dstDir string, fh *multipart.FileHeader) (reportID, path string, err error) {
	src, err := fh.Open()
	if err != nil {
		return "", "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dstDir, "upload-*.pdf")
	if err != nil {
		return "", "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	h := sha256.New()
	if _, err = io.Copy(io.MultiWriter(tmp, h), src); err != nil {
		return "", "", fmt.Errorf("write upload: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return "", "", err
	}

	reportID = fmt.Sprintf("%x", h.Sum(nil))
	finalPath := util.SafeJoin(dstDir, reportID+".pdf")
	if err = os.Rename(tmp.Name(), finalPath); err != nil {
		return "", "", fmt.Errorf("atomic move upload: %w", err)
	}
	return reportID, finalPath, nil
}

func formFile(m map[string][]*multipart.FileHeader, field string) (*multipart.FileHeader, bool) {
	if v := m[field]; len(v) > 0 {
		return v[0], true
	}
	for _, v := range m {
		if len(v) > 0 {
			return v[0], true
		}
	}
	return nil, false
}

func statusFor(err error) int {
	if errors.Is(err, util.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "LX-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status == http.StatusServiceUnavailable:
		return apiError{
			Code:    "LX-DB-5002",
			Message: "Database connection is unavailable. Check local services and retry.",
		}
	case status >= 500:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "LX-DB-5001",
				Message: "Database schema is not initialized. Run migrations and retry.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "LX-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "LX-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "LX-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "LX-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusMethodNotAllowed:
		code = "LX-API-4005"
		msg = "This endpoint does not support the requested method."
	case status == http.StatusConflict:
		code = "LX-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
	case status == http.StatusRequestEntityTooLarge:
		code = "LX-API-4013"
		msg = "Uploaded file is too large."
	case status == http.StatusUnsupportedMediaType:
		code = "LX-API-4015"
		msg = "Uploaded file is not a PDF."
	}

	if status >= 400 && status < 500 && err != nil {
		switch {
		case strings.Contains(raw, "unknown variant"):
			msg = "Unknown report variant. See /variants."
		case strings.Contains(raw, "unsupported backfill mode"):
			msg = "Backfill mode must be RETRY_FAILED_REPORTS or REEXTRACT_ALL_REPORTS."
		case strings.Contains(raw, "input_dir is not a directory"):
			msg = "Input directory does not exist."
		case strings.Contains(raw, "no files provided"):
			msg = "No PDF file was provided."
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
		case strings.Contains(raw, "workbook not available"):
			msg = "No workbook was produced for this report."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
