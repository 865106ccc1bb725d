package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sangmeshafzalpur/minimini/internal/dto"
	"github.com/sangmeshafzalpur/minimini/internal/models"
	"github.com/sangmeshafzalpur/minimini/internal/repository"
	appErrors "github.com/sangmeshafzalpur/minimini/pkg/errors"
	"github.com/sangmeshafzalpur/minimini/pkg/export"
	"github.com/sangmeshafzalpur/minimini/pkg/jobs"
	"github.com/sangmeshafzalpur/minimini/pkg/storage"
)

// ExportJobType labels queue jobs rendering timetable exports.
const ExportJobType = "timetable_export"

type exportJobStore interface {
	Create(ctx context.Context, job *models.TimetableExport) error
	GetByID(ctx context.Context, id string) (*models.TimetableExport, error)
	Update(ctx context.Context, id string, params repository.UpdateExportParams) error
	ListQueued(ctx context.Context, limit int) ([]models.TimetableExport, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.TimetableExport, error)
}

type timetableReader interface {
	Get(ctx context.Context, id string) (*dto.TimetableDetail, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type fileStorage interface {
	Save(relPath string, data []byte) (string, error)
	Open(relPath string) (*os.File, error)
	Delete(relPath string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportServiceConfig tunes download links and retention.
type ExportServiceConfig struct {
	APIPrefix       string
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// ExportDownload is a resolved, opened export file.
type ExportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ExportFormat
	ExpiresAt time.Time
}

// ExportService queues, renders and serves timetable grid exports.
type ExportService struct {
	repo       exportJobStore
	timetables timetableReader
	queue      jobDispatcher
	storage    fileStorage
	signer     *storage.SignedURLSigner
	renderers  map[models.ExportFormat]datasetRenderer
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        ExportServiceConfig
}

// NewExportService wires the export service. The queue may be attached later with AttachQueue.
func NewExportService(
	repo exportJobStore,
	timetables timetableReader,
	files fileStorage,
	signer *storage.SignedURLSigner,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ExportServiceConfig,
) *ExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	return &ExportService{
		repo:       repo,
		timetables: timetables,
		storage:    files,
		signer:     signer,
		renderers: map[models.ExportFormat]datasetRenderer{
			models.ExportFormatCSV: export.NewCSVExporter(),
			models.ExportFormatPDF: export.NewPDFExporter(),
		},
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// AttachQueue sets the dispatcher used by Enqueue. The queue's handler usually needs the service first.
func (s *ExportService) AttachQueue(queue jobDispatcher) {
	s.queue = queue
}

// Enqueue records a QUEUED export of a saved timetable and hands it to the worker queue.
func (s *ExportService) Enqueue(ctx context.Context, timetableID string, req dto.CreateExportRequest, actorID string) (*models.TimetableExport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}
	detail, err := s.timetables.Get(ctx, timetableID)
	if err != nil {
		return nil, err
	}
	division := strings.TrimSpace(req.Division)
	if division != "" && len(filterDivision(detail.Divisions, division)) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("division %q is not part of this timetable", division))
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "export queue unavailable")
	}

	record := &models.TimetableExport{
		TimetableID: detail.Timetable.ID,
		Division:    optionalString(division),
		Format:      models.ExportFormat(req.Format),
		Status:      models.ExportStatusQueued,
		CreatedBy:   actorID,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: record.ID, Type: ExportJobType}); err != nil {
		failed := models.ExportStatusFailed
		msg := "failed to enqueue job"
		now := time.Now().UTC()
		_ = s.repo.Update(ctx, record.ID, repository.UpdateExportParams{Status: &failed, ErrorMessage: &msg, FinishedAt: &now})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}
	s.logger.Info("export queued",
		zap.String("export_id", record.ID),
		zap.String("timetable_id", record.TimetableID),
		zap.String("format", string(record.Format)),
	)
	return record, nil
}

// Status reports an export job; finished jobs carry a freshly signed download link.
func (s *ExportService) Status(ctx context.Context, id string) (*dto.ExportStatusResponse, error) {
	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := &dto.ExportStatusResponse{Export: *record}
	if record.Status == models.ExportStatusFinished && record.FilePath != nil && *record.FilePath != "" {
		token, expiresAt, err := s.signer.Generate(record.ID, *record.FilePath)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
		}
		resp.DownloadURL = fmt.Sprintf("%s/exports/%s", strings.TrimRight(s.cfg.APIPrefix, "/"), token)
		resp.ExpiresAt = &expiresAt
	}
	return resp, nil
}

// ResolveDownload validates a signed token and opens the stored file.
func (s *ExportService) ResolveDownload(ctx context.Context, token string) (*ExportDownload, error) {
	exportID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	record, err := s.load(ctx, exportID)
	if err != nil {
		return nil, err
	}
	if record.Status != models.ExportStatusFinished || record.FilePath == nil || *record.FilePath != relPath {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export not available")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export file not found")
	}
	return &ExportDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		Format:    record.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// Render builds the grid of the export's timetable, renders it and stores the file.
func (s *ExportService) Render(ctx context.Context, record *models.TimetableExport) (string, error) {
	if record == nil {
		return "", fmt.Errorf("export record is nil")
	}
	renderer, ok := s.renderers[record.Format]
	if !ok {
		return "", fmt.Errorf("unsupported export format %s", record.Format)
	}
	detail, err := s.timetables.Get(ctx, record.TimetableID)
	if err != nil {
		return "", err
	}
	division := derefString(record.Division)
	divisions := filterDivision(detail.Divisions, division)
	if len(divisions) == 0 {
		return "", fmt.Errorf("timetable %s has no division %q", detail.Timetable.ID, division)
	}

	title := fmt.Sprintf("Timetable %s v%d", detail.Timetable.AcademicKey, detail.Timetable.Version)
	if division != "" {
		title += " - Division " + division
	}
	payload, err := renderer.Render(GridDataset(title, detail.Document.Configuration.PeriodsPerDay, divisions))
	if err != nil {
		return "", fmt.Errorf("render %s export: %w", record.Format, err)
	}
	return s.storage.Save(exportFilename(detail.Timetable.AcademicKey, detail.Timetable.Version, record), payload)
}

// MarkExhausted flags a job FAILED once the queue gives up on it.
func (s *ExportService) MarkExhausted(ctx context.Context, job jobs.Job, cause error) {
	failed := models.ExportStatusFailed
	msg := cause.Error()
	now := time.Now().UTC()
	if err := s.repo.Update(context.WithoutCancel(ctx), job.ID, repository.UpdateExportParams{
		Status:       &failed,
		ErrorMessage: &msg,
		FinishedAt:   &now,
	}); err != nil {
		s.logger.Warn("failed to mark export failed", zap.String("export_id", job.ID), zap.Error(err))
	}
	format := ""
	if record, err := s.repo.GetByID(context.WithoutCancel(ctx), job.ID); err == nil {
		format = string(record.Format)
	}
	s.metrics.RecordExport(format, string(models.ExportStatusFailed))
}

// RecoverPendingJobs replays queued jobs after a restart.
func (s *ExportService) RecoverPendingJobs(ctx context.Context) {
	if s.queue == nil {
		return
	}
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to recover queued export jobs", zap.Error(err))
		return
	}
	for _, record := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: record.ID, Type: ExportJobType}); err != nil {
			s.logger.Warn("failed to requeue export job", zap.String("export_id", record.ID), zap.Error(err))
		}
	}
}

// StartCleanup purges expired export files every CleanupInterval until ctx ends.
func (s *ExportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Cleanup(ctx)
			}
		}
	}()
}

// Cleanup expires jobs finished before the retention window and deletes their files, then sweeps
// stray files. An expired job no longer yields download links.
func (s *ExportService) Cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.ResultTTL)
	expired, err := s.repo.ListFinishedBefore(ctx, cutoff, 100)
	if err != nil {
		s.logger.Warn("export cleanup list failed", zap.Error(err))
		return
	}
	status := models.ExportStatusExpired
	noPath := ""
	for _, record := range expired {
		if record.FilePath != nil && *record.FilePath != "" {
			if err := s.storage.Delete(*record.FilePath); err != nil {
				s.logger.Warn("export cleanup delete failed", zap.String("export_id", record.ID), zap.Error(err))
				continue
			}
		}
		if err := s.repo.Update(ctx, record.ID, repository.UpdateExportParams{Status: &status, FilePath: &noPath}); err != nil {
			s.logger.Warn("export cleanup update failed", zap.String("export_id", record.ID), zap.Error(err))
		}
	}
	if removed, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL); err != nil {
		s.logger.Warn("export filesystem cleanup failed", zap.Error(err))
	} else if len(removed) > 0 {
		s.logger.Info("export files removed", zap.Int("count", len(removed)))
	}
}

func (s *ExportService) load(ctx context.Context, id string) (*models.TimetableExport, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	return record, nil
}

func exportFilename(academicKey string, version int, record *models.TimetableExport) string {
	name := fmt.Sprintf("%s_v%d", sanitizeFilename(academicKey), version)
	if record.Division != nil && *record.Division != "" {
		name += "_" + sanitizeFilename(*record.Division)
	}
	return fmt.Sprintf("%s_%s.%s", name, record.ID, record.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", ".", "-")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

// ExportWorker bridges queue jobs to ExportService.
type ExportWorker struct {
	repo     exportJobStore
	exporter *ExportService
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewExportWorker constructs a worker.
func NewExportWorker(repo exportJobStore, exporter *ExportService, metrics *MetricsService, logger *zap.Logger) *ExportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportWorker{repo: repo, exporter: exporter, metrics: metrics, logger: logger}
}

// Handle processes a queue job. A returned error lets the queue retry it.
func (w *ExportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	processing := models.ExportStatusProcessing
	if err := w.repo.Update(ctx, job.ID, repository.UpdateExportParams{Status: &processing}); err != nil {
		return err
	}

	relPath, err := w.exporter.Render(ctx, record)
	if err != nil {
		queued := models.ExportStatusQueued
		msg := err.Error()
		if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateExportParams{Status: &queued, ErrorMessage: &msg}); updateErr != nil {
			w.logger.Warn("failed to mark export queued", zap.String("export_id", job.ID), zap.Error(updateErr))
		}
		return err
	}

	finished := models.ExportStatusFinished
	now := time.Now().UTC()
	noError := ""
	if err := w.repo.Update(ctx, job.ID, repository.UpdateExportParams{
		Status:       &finished,
		FilePath:     &relPath,
		ErrorMessage: &noError,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Warn("failed to mark export finished", zap.String("export_id", job.ID), zap.Error(err))
		return err
	}
	w.metrics.RecordExport(string(record.Format), string(models.ExportStatusFinished))
	w.logger.Info("export finished", zap.String("export_id", job.ID), zap.String("file", relPath))
	return nil
}
