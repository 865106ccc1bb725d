package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/sangmeshafzalpur/minimini/internal/dto"
	"github.com/sangmeshafzalpur/minimini/internal/models"
	"github.com/sangmeshafzalpur/minimini/internal/timetable"
	appErrors "github.com/sangmeshafzalpur/minimini/pkg/errors"
)

const (
	modeDivisions = "divisions"
	modePreview   = "preview"
	dateLayout    = "2006-01-02"
)

type timetableRepository interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, tt *models.Timetable) error
	ListByAcademicKey(ctx context.Context, academicKey string) ([]models.Timetable, error)
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableStatus, publishedAt *time.Time) error
	ArchivePublished(ctx context.Context, exec sqlx.ExtContext, academicKey, keepID string) error
}

type timetableSlotRepository interface {
	InsertBatch(ctx context.Context, exec sqlx.ExtContext, slots []models.TimetableSlot) error
	ListByTimetable(ctx context.Context, timetableID string) ([]models.TimetableSlot, error)
	DeleteByTimetable(ctx context.Context, exec sqlx.ExtContext, timetableID string) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// TimetableServiceConfig governs generation defaults and proposal retention.
type TimetableServiceConfig struct {
	ProposalTTL  time.Duration
	CacheTTL     time.Duration
	Reproducible bool
	MaxTeachers  int
}

// TimetableService runs the engine, keeps proposals and manages saved versions.
type TimetableService struct {
	timetables timetableRepository
	slots      timetableSlotRepository
	tx         txProvider
	cache      *CacheService
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        TimetableServiceConfig
	store      *proposalStore
	now        func() time.Time
}

// NewTimetableService wires the timetable service.
func NewTimetableService(
	timetables timetableRepository,
	slots timetableSlotRepository,
	tx txProvider,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableServiceConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if cfg.MaxTeachers <= 0 {
		cfg.MaxTeachers = 32
	}
	svc := &TimetableService{
		timetables: timetables,
		slots:      slots,
		tx:         tx,
		cache:      cache,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
	svc.store = newProposalStore(cfg.ProposalTTL, func() time.Time { return svc.now() })
	return svc
}

type runSettings struct {
	opts         timetable.Options
	generatedFor string
}

// Generate runs the engine for every division of the request and stores the outcome as a proposal.
func (s *TimetableService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}
	cfg := buildConfiguration(req.GridSettings, req.Divisions)
	if err := timetable.Validate(cfg); err != nil {
		s.metrics.ObserveGeneration(modeDivisions, "rejected", 0, 0)
		return nil, engineError(err)
	}
	if err := s.validateTeachers(req.Teachers, cfg.Subjects); err != nil {
		s.metrics.ObserveGeneration(modeDivisions, "rejected", 0, 0)
		return nil, err
	}

	run, err := s.runSettings(req.GridSettings, s.cfg.Reproducible)
	if err != nil {
		return nil, err
	}
	result, cached, err := s.generate(ctx, cfg, run)
	if err != nil {
		return nil, err
	}

	proposal := timetableProposal{
		ID:           uuid.NewString(),
		Academic:     req.AcademicMeta,
		Config:       cfg,
		Result:       *result,
		Load:         computeLoad(cfg),
		GeneratedFor: run.generatedFor,
		Reproducible: run.opts.Reproducible,
		RequestedAt:  s.now().UTC(),
	}
	proposal.Result.Ledger = nil
	s.store.Save(proposal)

	s.logger.Info("timetable generated",
		zap.String("proposal_id", proposal.ID),
		zap.String("academic_key", req.AcademicMeta.Key()),
		zap.Int("divisions", len(result.Order)),
		zap.Int("unplaced", totalUnplaced(result.Shortfalls)),
		zap.Bool("reproducible", run.opts.Reproducible),
		zap.Bool("cached", cached),
	)

	return &dto.GenerateTimetableResponse{
		ProposalID:   proposal.ID,
		Mode:         modePreview,
		AcademicKey:  req.AcademicMeta.Key(),
		Divisions:    divisionsOf(proposal.Result),
		Warning:      result.Warning,
		Shortfalls:   result.Shortfalls,
		Load:         proposal.Load,
		GeneratedFor: run.generatedFor,
		Reproducible: run.opts.Reproducible,
		Cached:       cached,
		ExpiresAt:    s.store.ExpiresAt(proposal),
	}, nil
}

// Preview runs a single unlabeled week without a cross-division ledger. It is
// non-reproducible unless the request asks otherwise.
func (s *TimetableService) Preview(ctx context.Context, req dto.PreviewDayRequest) (*dto.PreviewResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable preview payload")
	}
	cfg := buildConfiguration(req.GridSettings, nil)
	run, err := s.runSettings(req.GridSettings, false)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	schedule, err := timetable.GenerateDivision(cfg, "", nil, run.opts)
	if err != nil {
		s.metrics.ObserveGeneration(modePreview, "rejected", 0, 0)
		return nil, engineError(err)
	}
	outcome := "ok"
	if schedule.Shortfall.Unplaced > 0 {
		outcome = "shortfall"
	}
	s.metrics.ObserveGeneration(modePreview, outcome, time.Since(start), schedule.Shortfall.Unplaced)

	return &dto.PreviewResponse{
		Days:      schedule.Days,
		Warning:   schedule.Warning(),
		Shortfall: schedule.Shortfall,
		Load:      computeLoad(cfg),
	}, nil
}

// Save persists a stored proposal as the next version of its academic key.
func (s *TimetableService) Save(ctx context.Context, req dto.SaveTimetableRequest, actorID string) (*dto.TimetableDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid save timetable payload")
	}
	proposal, ok := s.store.Get(req.ProposalID)
	if !ok {
		return nil, appErrors.ErrProposalExpired
	}

	doc := proposal.document()
	metaBytes, err := json.Marshal(doc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode timetable metadata")
	}
	record := &models.Timetable{
		AcademicKey: proposal.Academic.Key(),
		Status:      models.TimetableStatusDraft,
		Meta:        types.JSONText(metaBytes),
		CreatedBy:   actorID,
	}
	if req.Publish {
		publishedAt := s.now().UTC()
		record.Status = models.TimetableStatusPublished
		record.PublishedAt = &publishedAt
	}

	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.timetables.CreateVersioned(ctx, tx, record); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable")
		}
		if err := s.slots.InsertBatch(ctx, tx, flattenSlots(record.ID, proposal.Result)); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist timetable slots")
		}
		if req.Publish {
			if err := s.timetables.ArchivePublished(ctx, tx, record.AcademicKey, record.ID); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive previous timetable")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.store.Delete(req.ProposalID)
	s.logger.Info("timetable saved",
		zap.String("timetable_id", record.ID),
		zap.String("academic_key", record.AcademicKey),
		zap.Int("version", record.Version),
		zap.String("status", string(record.Status)),
	)
	return &dto.TimetableDetail{
		Timetable: *record,
		Document:  doc,
		Divisions: divisionsOf(proposal.Result),
	}, nil
}

// List summarises every saved version of an academic key.
func (s *TimetableService) List(ctx context.Context, query dto.TimetableQuery) (*models.TimetableSummary, error) {
	key := strings.ToUpper(strings.TrimSpace(query.AcademicKey))
	if key == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "academicKey is required")
	}
	list, err := s.timetables.ListByAcademicKey(ctx, key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetables")
	}
	summary := &models.TimetableSummary{AcademicKey: key, Versions: make([]models.TimetableMeta, 0, len(list))}
	for _, item := range list {
		doc, err := decodeDocument(item.Meta)
		if err != nil {
			s.logger.Warn("undecodable timetable metadata", zap.String("timetable_id", item.ID), zap.Error(err))
		}
		if item.Status == models.TimetableStatusPublished && summary.ActiveID == nil {
			id := item.ID
			summary.ActiveID = &id
		}
		summary.Versions = append(summary.Versions, models.TimetableMeta{
			ID:        item.ID,
			Version:   item.Version,
			Status:    item.Status,
			Unplaced:  totalUnplaced(doc.Shortfalls),
			CreatedAt: item.CreatedAt,
		})
	}
	return summary, nil
}

// Get returns a saved version with its slots regrouped per division and day.
func (s *TimetableService) Get(ctx context.Context, id string) (*dto.TimetableDetail, error) {
	record, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, err := decodeDocument(record.Meta)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode timetable metadata")
	}
	rows, err := s.slots.ListByTimetable(ctx, record.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable slots")
	}
	return &dto.TimetableDetail{
		Timetable: *record,
		Document:  doc,
		Divisions: groupSlots(doc.Configuration.Divisions, doc.Configuration.DayNames(), rows),
	}, nil
}

// Delete removes a draft version and its slots.
func (s *TimetableService) Delete(ctx context.Context, id string) error {
	record, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if record.Status != models.TimetableStatusDraft {
		return appErrors.Clone(appErrors.ErrConflict, "only draft timetables can be deleted")
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.slots.DeleteByTimetable(ctx, tx, id); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable slots")
		}
		if err := s.timetables.Delete(ctx, tx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable")
		}
		return nil
	})
}

// Publish makes a version the active one of its academic key, archiving the previous one.
func (s *TimetableService) Publish(ctx context.Context, id string) (*models.Timetable, error) {
	record, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status == models.TimetableStatusPublished {
		return nil, appErrors.ErrPublished
	}
	publishedAt := s.now().UTC()
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.timetables.ArchivePublished(ctx, tx, record.AcademicKey, record.ID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive previous timetable")
		}
		if err := s.timetables.UpdateStatus(ctx, tx, record.ID, models.TimetableStatusPublished, &publishedAt); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish timetable")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	record.Status = models.TimetableStatusPublished
	record.PublishedAt = &publishedAt
	s.logger.Info("timetable published", zap.String("timetable_id", record.ID), zap.String("academic_key", record.AcademicKey))
	return record, nil
}

// FlushGenerationCache drops every cached engine result.
func (s *TimetableService) FlushGenerationCache(ctx context.Context) error {
	if !s.cache.Enabled() {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "generation cache is disabled")
	}
	if err := s.cache.Invalidate(ctx, generationCachePrefix+"*"); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to flush generation cache")
	}
	s.logger.Info("generation cache flushed")
	return nil
}

func (s *TimetableService) generate(ctx context.Context, cfg timetable.Configuration, run runSettings) (*timetable.Result, bool, error) {
	var key string
	if run.opts.Reproducible && s.cache.Enabled() {
		key = GenerationCacheKey(cfg, run.opts.Date)
		var cached timetable.Result
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			s.metrics.ObserveGeneration(modeDivisions, "cached", 0, 0)
			return &cached, true, nil
		}
	}

	start := time.Now()
	result, err := timetable.Generate(cfg, run.opts)
	if err != nil {
		return nil, false, engineError(err)
	}
	unplaced := totalUnplaced(result.Shortfalls)
	outcome := "ok"
	if unplaced > 0 {
		outcome = "shortfall"
	}
	s.metrics.ObserveGeneration(modeDivisions, outcome, time.Since(start), unplaced)

	if key != "" {
		_ = s.cache.Set(ctx, key, result, s.cfg.CacheTTL)
	}
	return result, false, nil
}

func (s *TimetableService) runSettings(grid dto.GridSettings, reproducible bool) (runSettings, error) {
	if grid.Reproducible != nil {
		reproducible = *grid.Reproducible
	}
	date := s.now().UTC()
	if grid.Date != "" {
		parsed, err := time.Parse(dateLayout, grid.Date)
		if err != nil {
			return runSettings{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must use YYYY-MM-DD")
		}
		date = parsed
	}
	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	run := runSettings{opts: timetable.Options{Reproducible: reproducible, Date: date, Now: s.now}}
	if reproducible {
		run.generatedFor = date.Format(dateLayout)
	}
	return run, nil
}

// validateTeachers enforces the roster limit, roster membership and one subject per teacher.
func (s *TimetableService) validateTeachers(teachers []string, subjects []timetable.SubjectSpec) error {
	if len(teachers) > s.cfg.MaxTeachers {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d teachers may be listed", s.cfg.MaxTeachers))
	}
	roster := make(map[string]struct{}, len(teachers))
	for _, t := range teachers {
		roster[strings.TrimSpace(t)] = struct{}{}
	}
	assigned := make(map[string]string, len(subjects))
	for _, subject := range subjects {
		if len(roster) > 0 {
			if _, ok := roster[subject.Faculty]; !ok {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("faculty %q of subject %q is not in the teachers list", subject.Faculty, subject.Name))
			}
		}
		if other, ok := assigned[subject.Faculty]; ok && other != subject.Name {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("teacher %q is already assigned to subject %q", subject.Faculty, other))
		}
		assigned[subject.Faculty] = subject.Name
	}
	return nil
}

func (s *TimetableService) find(ctx context.Context, id string) (*models.Timetable, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "timetable id is required")
	}
	record, err := s.timetables.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return record, nil
}

func (s *TimetableService) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable transaction")
	}
	return nil
}

// engineError maps pre-flight failures of the engine to validation errors, keeping their text.
func engineError(err error) error {
	if errors.Is(err, timetable.ErrUnassignedFaculty) || errors.Is(err, timetable.ErrNoRooms) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "timetable generation failed")
}
