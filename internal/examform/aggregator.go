package examform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alexanderramin/examdesk/internal/domain"
	"github.com/google/uuid"
)

var (
	// ErrMissingStep means a step the payload needs has no recorded values.
	// Gating Submit on IsReadyToSubmit makes it unreachable.
	ErrMissingStep = errors.New("step has no values")
	// ErrInvalidStep means recorded values break a cross-field rule.
	ErrInvalidStep = errors.New("step values are invalid")
	// ErrNotReady is returned by Submit while a registered step is invalid.
	ErrNotReady = errors.New("exam is not ready to submit")
)

// ExamCreator sends a payload to the platform and returns its message.
type ExamCreator interface {
	CreateExam(ctx context.Context, payload domain.ExamPayload) (string, error)
}

// DraftStore keeps payloads the platform did not accept.
type DraftStore interface {
	Save(ctx context.Context, d *domain.ExamDraft) error
}

// SubmitError is returned when the platform rejects a submission. DraftID is
// set when the payload was saved locally.
type SubmitError struct {
	Err     error
	DraftID string
}

func (e *SubmitError) Error() string {
	if e.DraftID != "" {
		return fmt.Sprintf("creating exam: %v (saved as draft %s)", e.Err, e.DraftID)
	}
	return fmt.Sprintf("creating exam: %v", e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

type stepState struct {
	values any
	valid  bool
}

// Aggregator holds the latest (values, valid) report of every step and
// builds the create-exam payload from them. It is safe for concurrent use.
type Aggregator struct {
	mu         sync.Mutex
	registered []StepKey
	steps      map[StepKey]stepState
	status     domain.ExamStatus

	drafts DraftStore
	logger *slog.Logger
	now    func() time.Time
}

// NewAggregator creates an Aggregator. drafts may be nil.
func NewAggregator(drafts DraftStore, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Aggregator{
		steps:  map[StepKey]stepState{},
		drafts: drafts,
		logger: logger,
		now:    time.Now,
	}
}

// Register sets the steps that must be valid before submitting. Values of
// steps that are no longer registered are kept, so switching modes back
// restores them.
func (a *Aggregator) Register(keys ...StepKey) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.registered = append([]StepKey(nil), keys...)
}

// Registered returns the registered steps in order.
func (a *Aggregator) Registered() []StepKey {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]StepKey(nil), a.registered...)
}

// RecordStepData replaces the values and validity of one step.
func (a *Aggregator) RecordStepData(key StepKey, values any, valid bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.steps[key] = stepState{values: values, valid: valid}
}

// Values returns the last values recorded for key.
func (a *Aggregator) Values(key StepKey) (any, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.steps[key]
	return st.values, ok
}

// StepValid returns the last validity recorded for key.
func (a *Aggregator) StepValid(key StepKey) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.steps[key].valid
}

// IsReadyToSubmit reports whether every registered step last reported valid.
// An aggregator with no registered steps is never ready: there is nothing
// to build a payload from.
func (a *Aggregator) IsReadyToSubmit() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.registered) == 0 {
		return false
	}
	for _, k := range a.registered {
		if !a.steps[k].valid {
			return false
		}
	}
	return true
}

// Status returns the status of the last successful submission, or "".
func (a *Aggregator) Status() domain.ExamStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// BuildPayload composes the create-exam request from the recorded values.
// The schedule section takes the shape of mode.
func (a *Aggregator) BuildPayload(mode domain.ScheduleMode) (domain.ExamPayload, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buildLocked(mode)
}

func (a *Aggregator) buildLocked(mode domain.ScheduleMode) (domain.ExamPayload, error) {
	basic, err := stepValue[BasicInfo](a.steps, StepBasic)
	if err != nil {
		return domain.ExamPayload{}, err
	}
	audience, err := stepValue[Audience](a.steps, StepAudience)
	if err != nil {
		return domain.ExamPayload{}, err
	}
	schedule, err := stepValue[Schedule](a.steps, StepSchedule)
	if err != nil {
		return domain.ExamPayload{}, err
	}
	if !ScheduleValid(schedule, mode) {
		return domain.ExamPayload{}, fmt.Errorf("%w: %s", ErrInvalidStep, StepSchedule)
	}

	p := domain.ExamPayload{
		Title:           basic.Title,
		Subject:         basic.Subject,
		Description:     basic.Description,
		DurationMinutes: basic.DurationMinutes,
		TotalMarks:      basic.TotalMarks,
		PassingMarks:    basic.PassingMarks,
		ScheduleMode:    mode,
		QuestionMode:    basic.QuestionMode,
		Status:          domain.StatusDraft,
		Audience: domain.AudiencePayload{
			BatchID:   audience.BatchID,
			CourseID:  audience.CourseID,
			BranchID:  audience.BranchID,
			SectionID: audience.SectionID,
		},
	}

	switch mode {
	case domain.ScheduleProctored:
		faculty, err := stepValue[FacultyAssignment](a.steps, StepFaculty)
		if err != nil {
			return domain.ExamPayload{}, err
		}
		p.Schedule = domain.SchedulePayload{
			ExamDate:   schedule.ExamDate,
			StartTime:  schedule.StartTime,
			EndTime:    schedule.EndTime,
			BufferTime: schedule.BufferMinutes,
		}
		p.AssignedFacultyIDs = append([]string(nil), faculty.FacultyIDs...)
	default:
		p.Schedule = domain.SchedulePayload{
			StartDate:  schedule.StartDate,
			EndDate:    schedule.EndDate,
			BufferTime: schedule.BufferMinutes,
		}
	}

	if basic.QuestionMode == domain.QuestionsManual {
		qs, err := stepValue[QuestionSet](a.steps, StepQuestions)
		if err != nil {
			return domain.ExamPayload{}, err
		}
		qs.TotalMarks = basic.TotalMarks
		if !QuestionMarksMatch(qs) {
			return domain.ExamPayload{}, fmt.Errorf("%w: %s", ErrInvalidStep, StepQuestions)
		}
		p.Questions = append([]domain.QuestionItem(nil), qs.Questions...)
	} else {
		st, err := stepValue[Structure](a.steps, StepStructure)
		if err != nil {
			return domain.ExamPayload{}, err
		}
		st.TotalMarks = basic.TotalMarks
		if !StructureMarksMatch(st) {
			return domain.ExamPayload{}, fmt.Errorf("%w: %s", ErrInvalidStep, StepStructure)
		}
		p.Structure = append([]domain.StructureSection(nil), st.Sections...)
	}
	return p, nil
}

func stepValue[T any](steps map[StepKey]stepState, key StepKey) (T, error) {
	var zero T
	st, ok := steps[key]
	if !ok || st.values == nil {
		return zero, fmt.Errorf("%w: %s", ErrMissingStep, key)
	}
	v, ok := st.values.(T)
	if !ok {
		return zero, fmt.Errorf("step %s holds %T, want %T", key, st.values, zero)
	}
	return v, nil
}

// Submit sends the exam with the given status. The creator is called once.
// On success the status is recorded and the platform's message returned. On
// failure the recorded steps are left as they were, and the payload is saved
// as a local draft when a DraftStore is configured.
func (a *Aggregator) Submit(ctx context.Context, creator ExamCreator, status domain.ExamStatus) (string, error) {
	if !a.IsReadyToSubmit() {
		return "", ErrNotReady
	}

	a.mu.Lock()
	mode := domain.ScheduleRange
	if basic, err := stepValue[BasicInfo](a.steps, StepBasic); err == nil {
		mode = basic.ScheduleMode
	}
	payload, err := a.buildLocked(mode)
	a.mu.Unlock()
	if err != nil {
		return "", err
	}
	payload.Status = status

	msg, err := creator.CreateExam(ctx, payload)
	if err != nil {
		a.logger.Warn("exam_submit_failed", "title", payload.Title, "status", string(status), "error", err.Error())
		return "", &SubmitError{Err: err, DraftID: a.saveDraft(ctx, payload, err)}
	}

	a.mu.Lock()
	a.status = status
	a.mu.Unlock()
	a.logger.Info("exam_submitted", "title", payload.Title, "status", string(status))
	return msg, nil
}

func (a *Aggregator) saveDraft(ctx context.Context, payload domain.ExamPayload, cause error) string {
	if a.drafts == nil {
		return ""
	}
	d := &domain.ExamDraft{
		ID:        uuid.NewString(),
		Title:     payload.Title,
		Status:    payload.Status,
		Payload:   payload,
		LastError: cause.Error(),
		SavedAt:   a.now().UTC().Truncate(time.Second),
	}
	if err := a.drafts.Save(context.WithoutCancel(ctx), d); err != nil {
		a.logger.Error("exam_draft_save_failed", "title", payload.Title, "error", err.Error())
		return ""
	}
	return d.ID
}

// Load records every step of f as valid or invalid according to Validate, and
// registers the steps its modes require.
func (a *Aggregator) Load(f File) map[StepKey]FieldErrors {
	keys := StepsFor(f.Basic.ScheduleMode, f.Basic.QuestionMode)
	a.Register(keys...)

	problems := map[StepKey]FieldErrors{}
	for _, key := range keys {
		values := f.stepValues(key)
		errs := ValidateStep(key, values)
		a.RecordStepData(key, values, errs == nil)
		if errs != nil {
			problems[key] = errs
		}
	}
	return problems
}
