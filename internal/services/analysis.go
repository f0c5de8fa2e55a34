package services

import (
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/cassiama/LicenseGuard-API/internal/apierr"
	"github.com/cassiama/LicenseGuard-API/internal/logger"
	"github.com/cassiama/LicenseGuard-API/internal/manifest"
	"github.com/cassiama/LicenseGuard-API/internal/observability"
	"github.com/cassiama/LicenseGuard-API/internal/repos"
	"github.com/cassiama/LicenseGuard-API/internal/types"
)

// AnalyzeResponse is what a completed (or failed) orchestration returns to
// the client. Result is non-nil only when Status is completed.
type AnalyzeResponse struct {
	ProjectID string                `json:"project_id"`
	Status    types.Status          `json:"status"`
	Result    *types.AnalysisResult `json:"result"`
}

// AnalysisService drives one manifest upload from receipt to a terminal,
// recorded state. Validation failures surface as typed API errors; inference
// failures degrade to a failed status on an otherwise successful response;
// storage faults propagate.
type AnalysisService interface {
	Analyze(ctx context.Context, userID uuid.UUID, projectName string, up manifest.Upload) (*AnalyzeResponse, error)
}

type analysisService struct {
	log          *logger.Logger
	events       EventService
	records      repos.ProjectRecordStore
	inference    InferenceClient
	inferTimeout time.Duration

	// One lock per (user, project name); holding it for a whole orchestration
	// keeps the event sequence for that key totally ordered even when the
	// same project is uploaded concurrently. Entries are reference-counted
	// and dropped once nothing holds or waits on them, so the table does not
	// accumulate every key ever seen.
	locksMu sync.Mutex
	locks   map[string]*projectLock

	now   func() time.Time
	newID func() string
}

type projectLock struct {
	sem  *semaphore.Weighted
	refs int
}

func NewAnalysisService(
	log *logger.Logger,
	events EventService,
	records repos.ProjectRecordStore,
	inference InferenceClient,
	inferTimeout time.Duration,
) AnalysisService {
	return &analysisService{
		log:          log.With("service", "AnalysisService"),
		events:       events,
		records:      records,
		inference:    inference,
		inferTimeout: inferTimeout,
		locks:        make(map[string]*projectLock),
		now:          time.Now,
		newID:        newProjectID,
	}
}

// newProjectID returns a 32-char lowercase hex id (a uuid4 without dashes),
// the format project ids have always had on the wire.
func newProjectID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

func (s *analysisService) Analyze(ctx context.Context, userID uuid.UUID, projectName string, up manifest.Upload) (*AnalyzeResponse, error) {
	lock := s.lockFor(userID, projectName)
	if err := lock.sem.Acquire(ctx, 1); err != nil {
		s.dropLockRef(userID, projectName, lock)
		return nil, err
	}
	defer func() {
		lock.sem.Release(1)
		s.dropLockRef(userID, projectName, lock)
	}()

	// The trail must reach a terminal state even if the client goes away
	// mid-orchestration, so everything below runs detached from the request's
	// cancellation.
	ctx = context.WithoutCancel(ctx)

	projectID := s.newID()
	log := s.log.With("project_id", projectID, "project_name", projectName)

	if err := s.events.Add(ctx, userID, projectName, types.EventProjectCreated, string(up.Data)); err != nil {
		return nil, err
	}

	if rej := s.validate(projectName, up); rej != nil {
		var ae *apierr.Error
		if errors.As(rej, &ae) {
			observability.ValidationRejections.WithLabelValues(ae.Code).Inc()
		}
		log.Info("Manifest rejected", "error", rej)
		if err := s.events.Add(ctx, userID, projectName, types.EventValidationFailed, ""); err != nil {
			return nil, err
		}
		return nil, rej
	}

	lines, err := manifest.Parse(up.Data)
	if err != nil {
		// Validate just parsed the same bytes; a failure here is a bug.
		return nil, err
	}
	if err := s.events.Add(ctx, userID, projectName, types.EventValidationSuccess, strings.Join(lines, ",")); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	record := &types.ProjectRecord{
		ID:        projectID,
		Name:      projectName,
		Status:    types.StatusInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.records.Upsert(ctx, record); err != nil {
		return nil, err
	}

	if err := s.events.Add(ctx, userID, projectName, types.EventAnalysisStarted, ""); err != nil {
		return nil, err
	}

	result := s.runInference(ctx, log, projectName, lines)
	if result == nil {
		if err := s.events.Add(ctx, userID, projectName, types.EventAnalysisFailed, ""); err != nil {
			return nil, err
		}
		if err := s.finishRecord(ctx, record, types.StatusFailed, nil); err != nil {
			return nil, err
		}
		observability.AnalysesTotal.WithLabelValues(string(types.StatusFailed)).Inc()
		return &AnalyzeResponse{ProjectID: projectID, Status: types.StatusFailed, Result: nil}, nil
	}

	encoded, err := types.EncodeAnalysisResult(result)
	if err != nil {
		// Result produced but unserializable; degrade exactly like an
		// inference failure so the trail still terminates.
		log.Error("Analysis result could not be serialized", "error", err)
		if aErr := s.events.Add(ctx, userID, projectName, types.EventAnalysisFailed, ""); aErr != nil {
			return nil, aErr
		}
		if fErr := s.finishRecord(ctx, record, types.StatusFailed, nil); fErr != nil {
			return nil, fErr
		}
		observability.AnalysesTotal.WithLabelValues(string(types.StatusFailed)).Inc()
		return &AnalyzeResponse{ProjectID: projectID, Status: types.StatusFailed, Result: nil}, nil
	}

	if err := s.events.Add(ctx, userID, projectName, types.EventAnalysisCompleted, encoded); err != nil {
		return nil, err
	}
	if err := s.finishRecord(ctx, record, types.StatusCompleted, result); err != nil {
		// Best-effort fallback: the analysis happened but the record could
		// not take the result; try to at least pin it to failed before
		// propagating the storage fault.
		if fbErr := s.finishRecord(ctx, record, types.StatusFailed, nil); fbErr != nil {
			log.Error("Fallback FAILED mark also failed", "error", fbErr)
		}
		return nil, err
	}

	observability.AnalysesTotal.WithLabelValues(string(types.StatusCompleted)).Inc()
	return &AnalyzeResponse{ProjectID: projectID, Status: types.StatusCompleted, Result: result}, nil
}

// validate runs the fixed precondition order: media type, extension, project
// name length, then body checks. Each short-circuits. The name bound counts
// characters, not bytes, so multibyte names get the full 100.
func (s *analysisService) validate(projectName string, up manifest.Upload) error {
	if err := manifest.ValidateMeta(up); err != nil {
		return err
	}
	if n := utf8.RuneCountInString(projectName); n < 1 || n > 100 {
		return apierr.New(http.StatusUnprocessableEntity, "bad_project_name",
			errors.New("Project name must be between 1 and 100 characters."))
	}
	return manifest.ValidateContent(up.Data)
}

// runInference makes the bounded external call. Any failure, including
// timeout and malformed output, is absorbed here and reported as nil.
func (s *analysisService) runInference(ctx context.Context, log *logger.Logger, projectName string, lines []string) *types.AnalysisResult {
	inferCtx, cancel := context.WithTimeout(ctx, s.inferTimeout)
	defer cancel()

	start := s.now()
	result, err := s.inference.Infer(inferCtx, projectName, lines)
	observability.InferenceLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		reason := InferenceTransport
		var infErr *InferenceError
		if errors.As(err, &infErr) {
			reason = infErr.Reason
		}
		observability.InferenceFailures.WithLabelValues(string(reason)).Inc()
		log.Warn("Inference call failed", "reason", string(reason), "error", err)
		return nil
	}
	return result
}

func (s *analysisService) finishRecord(ctx context.Context, record *types.ProjectRecord, status types.Status, result *types.AnalysisResult) error {
	finished := *record
	finished.UpdatedAt = s.now().UTC()
	finished.Status = status
	if status == types.StatusCompleted {
		if err := finished.SetResult(result); err != nil {
			return err
		}
	}
	return s.records.UpdateIf(ctx, record.ID, types.StatusInProgress, &finished)
}

// lockFor hands out the lock for a key and counts the caller as a holder
// until dropLockRef. The count covers waiters too, so a lock is never
// dropped out from under a goroutine still queued on it.
func (s *analysisService) lockFor(userID uuid.UUID, projectName string) *projectLock {
	key := userID.String() + "/" + projectName
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &projectLock{sem: semaphore.NewWeighted(1)}
		s.locks[key] = lock
	}
	lock.refs++
	return lock
}

func (s *analysisService) dropLockRef(userID uuid.UUID, projectName string, lock *projectLock) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(s.locks, userID.String()+"/"+projectName)
	}
}
