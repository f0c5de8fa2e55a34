package services

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cassiama/LicenseGuard-API/internal/apierr"
	"github.com/cassiama/LicenseGuard-API/internal/logger"
	"github.com/cassiama/LicenseGuard-API/internal/manifest"
	"github.com/cassiama/LicenseGuard-API/internal/repos"
	"github.com/cassiama/LicenseGuard-API/internal/types"
	"gorm.io/gorm"
)

type memEventRepo struct {
	mu     sync.Mutex
	events []*types.Event
}

func (m *memEventRepo) Append(_ context.Context, _ *gorm.DB, event *types.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *event
	m.events = append(m.events, &copied)
	return nil
}

func (m *memEventRepo) ListForProject(_ context.Context, _ *gorm.DB, userID uuid.UUID, projectName string) ([]*types.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.Event
	for _, e := range m.events {
		if e.UserID == userID && e.ProjectName == projectName {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

type memRecordStore struct {
	mu      sync.Mutex
	records map[string]*types.ProjectRecord
}

func newMemRecordStore() *memRecordStore {
	return &memRecordStore{records: map[string]*types.ProjectRecord{}}
}

func (m *memRecordStore) Upsert(_ context.Context, record *types.ProjectRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *record
	m.records[record.ID] = &copied
	return nil
}

func (m *memRecordStore) Get(_ context.Context, id string) (*types.ProjectRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	copied := *rec
	return &copied, nil
}

func (m *memRecordStore) UpdateIf(_ context.Context, id string, expected types.Status, record *types.ProjectRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.records[id]
	if !ok || current.Status != expected {
		return repos.ErrStaleRecord
	}
	copied := *record
	m.records[id] = &copied
	return nil
}

type stubInference struct {
	result *types.AnalysisResult
	err    error
	calls  int
}

func (s *stubInference) Infer(_ context.Context, _ string, _ []string) (*types.AnalysisResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func testAnalysisResult() *types.AnalysisResult {
	return &types.AnalysisResult{
		ProjectName:  "demo",
		AnalysisDate: types.NewDate(time.Date(2025, 8, 30, 0, 0, 0, 0, time.UTC)),
		Files: []types.DependencyReport{
			{Name: "requests", Version: "2.32.3", License: "Apache-2.0", ConfidenceScore: 0.8},
		},
	}
}

func newTestOrchestrator(t *testing.T, inference InferenceClient) (*analysisService, *memEventRepo, *memRecordStore) {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	eventRepo := &memEventRepo{}
	records := newMemRecordStore()
	svc := NewAnalysisService(log, NewEventService(log, eventRepo), records, inference, time.Second).(*analysisService)
	return svc, eventRepo, records
}

func validUpload() manifest.Upload {
	return manifest.Upload{
		Filename:    "requirements.txt",
		ContentType: "text/plain",
		Data:        []byte("requests==2.32.3\n"),
	}
}

func eventTypes(events []*types.Event) []types.EventType {
	out := make([]types.EventType, 0, len(events))
	for _, e := range events {
		out = append(out, e.Type)
	}
	return out
}

func assertEventSequence(t *testing.T, got []*types.Event, want ...types.EventType) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("event sequence %v, want %v", eventTypes(got), want)
	}
	for i := range want {
		if got[i].Type != want[i] {
			t.Fatalf("event sequence %v, want %v", eventTypes(got), want)
		}
	}
}

func TestAnalyze_SuccessPath(t *testing.T) {
	stub := &stubInference{result: testAnalysisResult()}
	svc, eventRepo, records := newTestOrchestrator(t, stub)
	userID := uuid.New()

	resp, err := svc.Analyze(context.Background(), userID, "demo", validUpload())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if resp.Status != types.StatusCompleted {
		t.Fatalf("status=%s, want completed", resp.Status)
	}
	if resp.Result == nil || len(resp.Result.Files) != 1 {
		t.Fatalf("result=%+v, want one dependency report", resp.Result)
	}
	f := resp.Result.Files[0]
	if f.Name != "requests" || f.Version != "2.32.3" || f.License != "Apache-2.0" || f.ConfidenceScore != 0.8 {
		t.Fatalf("unexpected report: %+v", f)
	}
	if len(resp.ProjectID) != 32 {
		t.Fatalf("project id %q is not 32 hex chars", resp.ProjectID)
	}

	events, _ := eventRepo.ListForProject(context.Background(), nil, userID, "demo")
	assertEventSequence(t, events,
		types.EventProjectCreated,
		types.EventValidationSuccess,
		types.EventAnalysisStarted,
		types.EventAnalysisCompleted,
	)
	if events[0].Content != "requests==2.32.3\n" {
		t.Fatalf("PROJECT_CREATED content=%q, want raw manifest", events[0].Content)
	}
	if events[1].Content != "requests==2.32.3" {
		t.Fatalf("VALIDATION_SUCCESS content=%q, want comma-joined lines", events[1].Content)
	}

	// The completed event content round-trips to the same result.
	decoded, err := types.DecodeAnalysisResult(events[3].Content)
	if err != nil {
		t.Fatalf("decode ANALYSIS_COMPLETED content: %v", err)
	}
	if decoded.ProjectName != "demo" || len(decoded.Files) != 1 || decoded.Files[0].ConfidenceScore != 0.8 {
		t.Fatalf("round-tripped result %+v differs", decoded)
	}

	rec, err := records.Get(context.Background(), resp.ProjectID)
	if err != nil || rec == nil {
		t.Fatalf("record missing: %v", err)
	}
	if rec.Status != types.StatusCompleted {
		t.Fatalf("record status=%s, want completed", rec.Status)
	}
	stored, err := rec.AnalysisResult()
	if err != nil || stored == nil {
		t.Fatalf("record result missing: %v", err)
	}
}

func TestAnalyze_InferenceFailure(t *testing.T) {
	stub := &stubInference{err: &InferenceError{Reason: InferenceTransport, Err: errors.New("boom")}}
	svc, eventRepo, records := newTestOrchestrator(t, stub)
	userID := uuid.New()

	resp, err := svc.Analyze(context.Background(), userID, "demo", validUpload())
	if err != nil {
		t.Fatalf("Analyze should absorb inference failure, got %v", err)
	}
	if resp.Status != types.StatusFailed || resp.Result != nil {
		t.Fatalf("resp=%+v, want failed with nil result", resp)
	}

	events, _ := eventRepo.ListForProject(context.Background(), nil, userID, "demo")
	assertEventSequence(t, events,
		types.EventProjectCreated,
		types.EventValidationSuccess,
		types.EventAnalysisStarted,
		types.EventAnalysisFailed,
	)
	if events[3].Content != "" {
		t.Fatalf("ANALYSIS_FAILED content=%q, want none", events[3].Content)
	}

	rec, _ := records.Get(context.Background(), resp.ProjectID)
	if rec == nil || rec.Status != types.StatusFailed {
		t.Fatalf("record=%+v, want failed", rec)
	}
	if len(rec.Result) != 0 {
		t.Fatalf("failed record has a result: %s", string(rec.Result))
	}
}

func TestAnalyze_ValidationFailureSkipsInference(t *testing.T) {
	stub := &stubInference{result: testAnalysisResult()}
	svc, eventRepo, _ := newTestOrchestrator(t, stub)
	userID := uuid.New()

	up := manifest.Upload{
		Filename:    "requirements.txt",
		ContentType: "text/plain",
		Data:        []byte("# only comments\n"),
	}
	_, err := svc.Analyze(context.Background(), userID, "demo", up)
	var ae *apierr.Error
	if !errors.As(err, &ae) || ae.Status != http.StatusUnprocessableEntity {
		t.Fatalf("err=%v, want 422 apierr", err)
	}
	if ae.Err.Error() != "No requirements found." {
		t.Fatalf("message=%q, want no-requirements rejection", ae.Err.Error())
	}
	if stub.calls != 0 {
		t.Fatalf("inference was invoked %d times on invalid manifest", stub.calls)
	}

	events, _ := eventRepo.ListForProject(context.Background(), nil, userID, "demo")
	assertEventSequence(t, events, types.EventProjectCreated, types.EventValidationFailed)
}

func TestAnalyze_WrongMediaType(t *testing.T) {
	stub := &stubInference{result: testAnalysisResult()}
	svc, _, _ := newTestOrchestrator(t, stub)

	up := manifest.Upload{
		Filename:    "requirements.txt",
		ContentType: "application/json",
		Data:        []byte("requests==2.32.3\n"),
	}
	_, err := svc.Analyze(context.Background(), uuid.New(), "demo", up)
	var ae *apierr.Error
	if !errors.As(err, &ae) || ae.Status != http.StatusUnsupportedMediaType {
		t.Fatalf("err=%v, want 415 apierr", err)
	}
	if stub.calls != 0 {
		t.Fatalf("inference invoked despite media-type rejection")
	}
}

func TestAnalyze_EmptyFile(t *testing.T) {
	svc, _, _ := newTestOrchestrator(t, &stubInference{result: testAnalysisResult()})

	up := manifest.Upload{Filename: "requirements.txt", ContentType: "text/plain", Data: nil}
	_, err := svc.Analyze(context.Background(), uuid.New(), "demo", up)
	var ae *apierr.Error
	if !errors.As(err, &ae) || ae.Status != http.StatusBadRequest {
		t.Fatalf("err=%v, want 400 apierr", err)
	}
	if ae.Err.Error() != "File is empty." {
		t.Fatalf("message=%q, want empty-file rejection", ae.Err.Error())
	}
}

func TestAnalyze_ProjectNameBoundaries(t *testing.T) {
	// The bound is on characters, so a 60-rune CJK name (180 bytes) is fine
	// and only the 101st rune tips it over.
	cases := []struct {
		name        string
		projectName string
		wantOK      bool
	}{
		{"length_1", "a", true},
		{"length_100", strings.Repeat("a", 100), true},
		{"multibyte_60", strings.Repeat("犬", 60), true},
		{"multibyte_100", strings.Repeat("犬", 100), true},
		{"length_0", "", false},
		{"length_101", strings.Repeat("a", 101), false},
		{"multibyte_101", strings.Repeat("犬", 101), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, _ := newTestOrchestrator(t, &stubInference{result: testAnalysisResult()})
			_, err := svc.Analyze(context.Background(), uuid.New(), tc.projectName, validUpload())
			if tc.wantOK {
				if err != nil {
					t.Fatalf("Analyze rejected valid name: %v", err)
				}
				return
			}
			var ae *apierr.Error
			if !errors.As(err, &ae) || ae.Status != http.StatusUnprocessableEntity {
				t.Fatalf("err=%v, want 422 apierr", err)
			}
			if ae.Err.Error() != "Project name must be between 1 and 100 characters." {
				t.Fatalf("message=%q, want name-length rejection", ae.Err.Error())
			}
		})
	}
}

func TestAnalyze_SameProjectSequentialUploadsStayOrdered(t *testing.T) {
	stub := &stubInference{result: testAnalysisResult()}
	svc, eventRepo, _ := newTestOrchestrator(t, stub)
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		if _, err := svc.Analyze(context.Background(), userID, "demo", validUpload()); err != nil {
			t.Fatalf("upload %d failed: %v", i, err)
		}
	}

	events, _ := eventRepo.ListForProject(context.Background(), nil, userID, "demo")
	if len(events) != 12 {
		t.Fatalf("got %d events, want 12", len(events))
	}
	// Each orchestration's four events appear as an uninterrupted block.
	for i := 0; i < 12; i += 4 {
		assertEventSequence(t, events[i:i+4],
			types.EventProjectCreated,
			types.EventValidationSuccess,
			types.EventAnalysisStarted,
			types.EventAnalysisCompleted,
		)
	}
}

func TestAnalyze_ConcurrentSameProjectUploadsStayOrdered(t *testing.T) {
	stub := &stubInference{result: testAnalysisResult()}
	svc, eventRepo, _ := newTestOrchestrator(t, stub)
	userID := uuid.New()

	const uploads = 8
	errs := make([]error, uploads)
	var wg sync.WaitGroup
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Analyze(context.Background(), userID, "demo", validUpload())
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("upload %d failed: %v", i, err)
		}
	}

	events, _ := eventRepo.ListForProject(context.Background(), nil, userID, "demo")
	if len(events) != uploads*4 {
		t.Fatalf("got %d events, want %d", len(events), uploads*4)
	}
	// The per-key lock serializes orchestrations, so even racing uploads
	// leave the trail in uninterrupted four-event blocks.
	for i := 0; i < uploads*4; i += 4 {
		assertEventSequence(t, events[i:i+4],
			types.EventProjectCreated,
			types.EventValidationSuccess,
			types.EventAnalysisStarted,
			types.EventAnalysisCompleted,
		)
	}

	// Once no orchestration holds or waits on a key, its lock is gone.
	svc.locksMu.Lock()
	remaining := len(svc.locks)
	svc.locksMu.Unlock()
	if remaining != 0 {
		t.Fatalf("%d lock entries left after all uploads finished, want 0", remaining)
	}
}
