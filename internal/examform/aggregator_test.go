package examform_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alexanderramin/examdesk/internal/domain"
	"github.com/alexanderramin/examdesk/internal/examform"
	"github.com/alexanderramin/examdesk/internal/repository"
	"github.com/alexanderramin/examdesk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCreator struct {
	calls    int
	payloads []domain.ExamPayload
	msg      string
	err      error
}

func (f *fakeCreator) CreateExam(_ context.Context, p domain.ExamPayload) (string, error) {
	f.calls++
	f.payloads = append(f.payloads, p)
	return f.msg, f.err
}

func loaded(t *testing.T, f examform.File) *examform.Aggregator {
	t.Helper()
	agg := examform.NewAggregator(nil, nil)
	problems := agg.Load(f)
	require.Empty(t, problems)
	return agg
}

func TestAggregator_ReadyOnlyWhenEveryRegisteredStepValid(t *testing.T) {
	agg := examform.NewAggregator(nil, nil)
	assert.False(t, agg.IsReadyToSubmit(), "nothing registered")

	agg.Register(examform.StepBasic, examform.StepAudience)
	agg.RecordStepData(examform.StepBasic, examform.BasicInfo{Title: "x"}, true)
	assert.False(t, agg.IsReadyToSubmit())

	agg.RecordStepData(examform.StepAudience, examform.Audience{}, false)
	assert.False(t, agg.IsReadyToSubmit())

	agg.RecordStepData(examform.StepAudience, examform.Audience{BatchID: "b"}, true)
	assert.True(t, agg.IsReadyToSubmit())

	// Unregistered steps do not count.
	agg.RecordStepData(examform.StepFaculty, examform.FacultyAssignment{}, false)
	assert.True(t, agg.IsReadyToSubmit())
}

func TestAggregator_RecordStepDataIsIdempotent(t *testing.T) {
	agg := examform.NewAggregator(nil, nil)
	agg.Register(examform.StepAudience)
	a := examform.Audience{BatchID: "b1"}

	agg.RecordStepData(examform.StepAudience, a, true)
	agg.RecordStepData(examform.StepAudience, a, true)

	got, ok := agg.Values(examform.StepAudience)
	require.True(t, ok)
	assert.Equal(t, a, got)
	assert.True(t, agg.IsReadyToSubmit())
}

func TestBuildPayload_RangeSchedule(t *testing.T) {
	agg := loaded(t, testutil.NewTestExam(domain.ScheduleRange, domain.QuestionsAuto))

	p, err := agg.BuildPayload(domain.ScheduleRange)
	require.NoError(t, err)
	assert.Equal(t, domain.SchedulePayload{StartDate: "2026-11-20", EndDate: "2026-11-22", BufferTime: 15}, p.Schedule)
	assert.Empty(t, p.AssignedFacultyIDs)
	assert.Len(t, p.Structure, 2)
	assert.Empty(t, p.Questions)
	assert.Equal(t, domain.AudiencePayload{BatchID: "b1", CourseID: "c1", BranchID: "br1", SectionID: "s1"}, p.Audience)
}

func TestBuildPayload_ProctoredSchedule(t *testing.T) {
	agg := loaded(t, testutil.NewTestExam(domain.ScheduleProctored, domain.QuestionsManual, testutil.WithFaculty("f1", "f2")))

	p, err := agg.BuildPayload(domain.ScheduleProctored)
	require.NoError(t, err)
	assert.Equal(t, domain.SchedulePayload{ExamDate: "2026-11-20", StartTime: "09:30", EndTime: "11:00", BufferTime: 10}, p.Schedule)
	assert.Equal(t, []string{"f1", "f2"}, p.AssignedFacultyIDs)
	assert.Len(t, p.Questions, 2)
	assert.Empty(t, p.Structure)
}

func TestBuildPayload_MissingStep(t *testing.T) {
	agg := examform.NewAggregator(nil, nil)
	f := testutil.NewTestExam(domain.ScheduleProctored, domain.QuestionsAuto)
	agg.RecordStepData(examform.StepBasic, f.Basic, true)
	agg.RecordStepData(examform.StepAudience, f.Audience, true)

	_, err := agg.BuildPayload(domain.ScheduleProctored)
	assert.ErrorIs(t, err, examform.ErrMissingStep)
	assert.ErrorContains(t, err, "schedule")
}

func TestBuildPayload_ProctoredNeedsFaculty(t *testing.T) {
	f := testutil.NewTestExam(domain.ScheduleProctored, domain.QuestionsAuto)
	agg := examform.NewAggregator(nil, nil)
	agg.Load(f)
	agg.RecordStepData(examform.StepFaculty, nil, false)

	_, err := agg.BuildPayload(domain.ScheduleProctored)
	assert.ErrorIs(t, err, examform.ErrMissingStep)
	assert.ErrorContains(t, err, "faculty")
}

func TestBuildPayload_ScheduleShapeMustMatchMode(t *testing.T) {
	agg := loaded(t, testutil.NewTestExam(domain.ScheduleRange, domain.QuestionsAuto))

	_, err := agg.BuildPayload(domain.ScheduleProctored)
	assert.ErrorIs(t, err, examform.ErrInvalidStep)
}

// AUTO exam of 100 marks whose structure adds up to 90: the structure step is
// invalid and publishing is blocked.
func TestSubmit_StructureShortOfTotalBlocksPublish(t *testing.T) {
	f := testutil.NewTestExam(domain.ScheduleRange, domain.QuestionsAuto,
		testutil.WithTotalMarks(100),
		testutil.WithStructure(
			domain.StructureSection{Name: "A", QuestionType: domain.QuestionMCQ, Count: 20, MarksEach: 2},
			domain.StructureSection{Name: "B", QuestionType: domain.QuestionLongAnswer, Count: 5, MarksEach: 10},
		),
	)
	agg := examform.NewAggregator(nil, nil)
	problems := agg.Load(f)

	require.Contains(t, problems, examform.StepStructure)
	assert.Equal(t, "sections must add up to the total marks (100)", problems[examform.StepStructure]["sections"])
	assert.False(t, agg.StepValid(examform.StepStructure))
	assert.False(t, agg.IsReadyToSubmit())

	creator := &fakeCreator{msg: "Exam published"}
	_, err := agg.Submit(context.Background(), creator, domain.StatusPublished)
	assert.ErrorIs(t, err, examform.ErrNotReady)
	assert.Zero(t, creator.calls)

	_, err = agg.BuildPayload(domain.ScheduleRange)
	assert.ErrorIs(t, err, examform.ErrInvalidStep)
}

func TestSubmit_Success(t *testing.T) {
	agg := loaded(t, testutil.NewTestExam(domain.ScheduleRange, domain.QuestionsManual))
	creator := &fakeCreator{msg: "Exam published"}

	msg, err := agg.Submit(context.Background(), creator, domain.StatusPublished)
	require.NoError(t, err)
	assert.Equal(t, "Exam published", msg)
	assert.Equal(t, 1, creator.calls)
	assert.Equal(t, domain.StatusPublished, creator.payloads[0].Status)
	assert.Equal(t, domain.StatusPublished, agg.Status())
}

func TestSubmit_FailureKeepsStateAndSavesDraft(t *testing.T) {
	database := testutil.NewTestDB(t)
	drafts := repository.NewSQLiteDraftRepo(database)
	f := testutil.NewTestExam(domain.ScheduleProctored, domain.QuestionsAuto)
	agg := examform.NewAggregator(drafts, nil)
	require.Empty(t, agg.Load(f))

	unavailable := errors.New("503 service unavailable")
	creator := &fakeCreator{err: unavailable}
	_, err := agg.Submit(context.Background(), creator, domain.StatusPublished)

	var submitErr *examform.SubmitError
	require.ErrorAs(t, err, &submitErr)
	assert.ErrorIs(t, err, unavailable)
	require.NotEmpty(t, submitErr.DraftID)
	assert.Equal(t, 1, creator.calls, "no automatic retry")

	assert.True(t, agg.IsReadyToSubmit())
	assert.Equal(t, domain.ExamStatus(""), agg.Status())
	basic, _ := agg.Values(examform.StepBasic)
	assert.Equal(t, f.Basic, basic)

	saved, err := drafts.GetByID(context.Background(), submitErr.DraftID)
	require.NoError(t, err)
	assert.Equal(t, creator.payloads[0], saved.Payload)
	assert.Equal(t, domain.StatusPublished, saved.Status)
	assert.Equal(t, "503 service unavailable", saved.LastError)

	// Retrying by hand works once the platform recovers.
	creator.err, creator.msg = nil, "Exam published"
	_, err = agg.Submit(context.Background(), creator, domain.StatusPublished)
	require.NoError(t, err)
	assert.Equal(t, 2, creator.calls)
}

func TestSubmit_FailureWithoutDraftStore(t *testing.T) {
	agg := loaded(t, testutil.NewTestExam(domain.ScheduleRange, domain.QuestionsAuto))
	_, err := agg.Submit(context.Background(), &fakeCreator{err: errors.New("boom")}, domain.StatusDraft)

	var submitErr *examform.SubmitError
	require.ErrorAs(t, err, &submitErr)
	assert.Empty(t, submitErr.DraftID)
	assert.Equal(t, "creating exam: boom", err.Error())
}

func TestLoad_RegistersStepsForModes(t *testing.T) {
	agg := loaded(t, testutil.NewTestExam(domain.ScheduleProctored, domain.QuestionsManual))
	assert.Equal(t,
		[]examform.StepKey{examform.StepBasic, examform.StepAudience, examform.StepSchedule, examform.StepQuestions, examform.StepFaculty},
		agg.Registered())
	assert.True(t, agg.IsReadyToSubmit())

	sched, _ := agg.Values(examform.StepSchedule)
	assert.Equal(t, domain.ScheduleProctored, sched.(examform.Schedule).Mode)
}

func TestLoad_ReportsQuestionsShortOfTotal(t *testing.T) {
	f := testutil.NewTestExam(domain.ScheduleRange, domain.QuestionsManual,
		testutil.WithQuestions(domain.ShortAnswer{Text: "Define a B-tree.", Points: 30}))

	agg := examform.NewAggregator(nil, nil)
	problems := agg.Load(f)

	require.Contains(t, problems, examform.StepQuestions)
	assert.Len(t, problems, 1)
	assert.False(t, agg.IsReadyToSubmit())
}
