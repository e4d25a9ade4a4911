package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alexanderramin/examdesk/internal/api"
	"github.com/alexanderramin/examdesk/internal/domain"
	"github.com/alexanderramin/examdesk/internal/examform"
	"github.com/alexanderramin/examdesk/internal/repository"
	"github.com/alexanderramin/examdesk/internal/session"
	"github.com/alexanderramin/examdesk/internal/testutil"
	"github.com/alexanderramin/examdesk/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

// testApp wires an App against a fake platform, an in-memory session store
// and an in-memory draft database.
func testApp(t *testing.T) (*App, *testutil.Platform) {
	t.Helper()
	p := testutil.NewPlatform(t)
	conn := testutil.NewTestDB(t)

	app := &App{
		Now:    func() time.Time { return fixedNow },
		Stderr: new(bytes.Buffer),
	}
	app.Wire(p.URL, 5*time.Second, session.NewMemoryStore(), repository.NewSQLiteDraftRepo(conn))
	return app, p
}

// loggedInApp is testApp after a successful login as the seeded admin.
func loggedInApp(t *testing.T) (*App, *testutil.Platform) {
	t.Helper()
	app, p := testApp(t)
	_, err := app.Auth.Login(context.Background(), testutil.AdminEmail, testutil.AdminPassword)
	require.NoError(t, err)
	return app, p
}

// executeCmd runs a cobra command and captures stdout/stderr.
func executeCmd(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(app)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func writeExamFile(t *testing.T, f examform.File) string {
	t.Helper()
	data, err := json.Marshal(f)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "exam.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// --- auth ---

func TestLoginCmd_SignsIn(t *testing.T) {
	app, _ := testApp(t)

	out, err := executeCmd(t, app, "login", "--email", testutil.AdminEmail, "--password", testutil.AdminPassword)
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as")
	assert.Contains(t, out, "Admin")

	creds, err := app.Store.Credentials(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, creds.AccessToken)
	assert.NotEmpty(t, creds.RefreshToken)
}

func TestLoginCmd_WrongPassword(t *testing.T) {
	app, _ := testApp(t)

	_, err := executeCmd(t, app, "login", "--email", testutil.AdminEmail, "--password", "nope")
	require.Error(t, err)

	creds, err := app.Store.Credentials(context.Background())
	require.NoError(t, err)
	assert.True(t, creds.Empty())
}

func TestLoginCmd_MissingFlagsWithoutTerminal(t *testing.T) {
	app, _ := testApp(t)

	_, err := executeCmd(t, app, "login", "--email", testutil.AdminEmail)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--password")
}

func TestWhoamiCmd_ShowsUserAndToken(t *testing.T) {
	app, _ := loggedInApp(t)
	// Tokens are issued with the wall clock; read them an hour before expiry.
	app.Now = time.Now

	out, err := executeCmd(t, app, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Admin")
	assert.Contains(t, out, testutil.AdminEmail)
	assert.Contains(t, out, "admin")
	assert.Contains(t, out, "expires")
}

func TestWhoamiCmd_ExpiredToken(t *testing.T) {
	app, _ := loggedInApp(t)
	app.Now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	out, err := executeCmd(t, app, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "expired")
}

func TestWhoamiCmd_NotLoggedIn(t *testing.T) {
	app, _ := testApp(t)

	_, err := executeCmd(t, app, "whoami")
	require.ErrorIs(t, err, session.ErrNoSession)
	assert.Equal(t, "not logged in, run `examdesk login` first", Friendly(err))
}

func TestLogoutCmd_ClearsSession(t *testing.T) {
	app, _ := loggedInApp(t)

	out, err := executeCmd(t, app, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out")

	creds, err := app.Store.Credentials(context.Background())
	require.NoError(t, err)
	assert.True(t, creds.Empty())
}

func TestChangePasswordCmd(t *testing.T) {
	app, _ := loggedInApp(t)

	out, err := executeCmd(t, app, "change-password", "--old", testutil.AdminPassword, "--new", "fresh-pass-1")
	require.NoError(t, err)
	assert.Contains(t, out, "✔")

	_, err = app.Auth.Login(context.Background(), testutil.AdminEmail, "fresh-pass-1")
	require.NoError(t, err)
}

func TestChangePasswordCmd_SamePassword(t *testing.T) {
	app, _ := loggedInApp(t)

	_, err := executeCmd(t, app, "change-password", "--old", "same", "--new", "same")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}

func TestSessionExpiry_PrintsHint(t *testing.T) {
	app, p := loggedInApp(t)
	p.ExpireAccessTokens()
	p.RevokeRefreshTokens()

	_, err := executeCmd(t, app, "batch", "list")
	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrSessionExpired)
	assert.Contains(t, Friendly(err), "examdesk login")
	assert.Contains(t, app.Stderr.(*bytes.Buffer).String(), "Session expired")
}

func TestExpiredAccessToken_RefreshedTransparently(t *testing.T) {
	app, p := loggedInApp(t)
	p.SeedBatch(domain.Batch{Name: "2025-2029", StartYear: 2025, EndYear: 2029})
	p.ExpireAccessTokens()

	out, err := executeCmd(t, app, "batch", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "2025-2029")
	assert.Equal(t, int32(1), p.RefreshCalls.Load())
}

// --- entities ---

func TestBatchCmd_AddListRemove(t *testing.T) {
	app, _ := loggedInApp(t)

	out, err := executeCmd(t, app, "batch", "add", "--start-year", "2026", "--end-year", "2030")
	require.NoError(t, err)
	assert.Contains(t, out, "Created batch")
	assert.Contains(t, out, "2026-2030")

	batches, err := app.API.ListBatches(context.Background())
	require.NoError(t, err)
	require.Len(t, batches, 1)

	out, err = executeCmd(t, app, "batch", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "2026–2030")

	out, err = executeCmd(t, app, "batch", "rm", batches[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed batch")

	batches, err = app.API.ListBatches(context.Background())
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestBatchCmd_EndBeforeStart(t *testing.T) {
	app, _ := loggedInApp(t)

	_, err := executeCmd(t, app, "batch", "add", "--start-year", "2030", "--end-year", "2026")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "before")
}

func TestCourseCmd_ListRequiresBatch(t *testing.T) {
	app, _ := loggedInApp(t)

	_, err := executeCmd(t, app, "course", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch")
}

func TestCourseCmd_ListFiltersByBatch(t *testing.T) {
	app, p := loggedInApp(t)
	h := p.SeedHierarchy()
	other := p.SeedBatch(domain.Batch{Name: "2020-2024", StartYear: 2020, EndYear: 2024})
	p.SeedCourse(domain.Course{Name: "M.Tech", Code: "MT", BatchID: other.ID})

	out, err := executeCmd(t, app, "course", "list", "--batch", h.Batch.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "B.Tech")
	assert.NotContains(t, out, "M.Tech")
}

func TestFacultyCmd_AddAndList(t *testing.T) {
	app, _ := loggedInApp(t)

	_, err := executeCmd(t, app, "faculty", "add", "--name", "Dr. Iyer", "--email", "iyer@college.test", "--department", "ECE")
	require.NoError(t, err)

	out, err := executeCmd(t, app, "faculty", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Dr. Iyer")
	assert.Contains(t, out, "ECE")
	assert.Contains(t, out, "--")
}

func TestStudentCmd_List(t *testing.T) {
	app, p := loggedInApp(t)
	p.SeedStudent(domain.Student{Name: "Asha Menon", RollNumber: "CS24-017", Email: "asha@college.test"})

	out, err := executeCmd(t, app, "student", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Asha Menon")
	assert.Contains(t, out, "CS24-017")
}

func TestSectionCmd_RemoveUnknown(t *testing.T) {
	app, _ := loggedInApp(t)

	_, err := executeCmd(t, app, "section", "remove", "missing")
	require.Error(t, err)
}

func TestFacultyCmd_UpdatePatchesSetFieldsOnly(t *testing.T) {
	app, p := loggedInApp(t)
	f := p.SeedFaculty(domain.Faculty{Name: "Dr. Rao", Email: "rao@college.test", Department: "CSE"})

	out, err := executeCmd(t, app, "faculty", "update", f.ID, "--designation", "Professor", "--phone", "555-0101")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated faculty")

	got, err := app.API.GetFaculty(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dr. Rao", got.Name)
	assert.Equal(t, "rao@college.test", got.Email)
	assert.Equal(t, "CSE", got.Department)
	assert.Equal(t, "Professor", got.Designation)
	assert.Equal(t, "555-0101", got.Phone)
}

func TestFacultyCmd_Show(t *testing.T) {
	app, p := loggedInApp(t)
	f := p.SeedFaculty(domain.Faculty{Name: "Dr. Rao", Email: "rao@college.test", Department: "CSE"})

	out, err := executeCmd(t, app, "faculty", "show", f.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "DR. RAO")
	assert.Contains(t, out, "rao@college.test")
	assert.Contains(t, out, "Designation")

	_, err = executeCmd(t, app, "faculty", "show", "missing")
	require.Error(t, err)
}

func TestStudentCmd_UpdateAndShow(t *testing.T) {
	app, p := loggedInApp(t)
	h := p.SeedHierarchy()
	s := p.SeedStudent(domain.Student{Name: "Asha Menon", RollNumber: "CS24-017", Email: "asha@college.test"})

	_, err := executeCmd(t, app, "student", "update", s.ID, "--section", h.Section.ID, "--branch", h.Branch.ID)
	require.NoError(t, err)

	got, err := app.API.GetStudent(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, h.Section.ID, got.SectionID)
	assert.Equal(t, h.Branch.ID, got.BranchID)
	assert.Equal(t, "CS24-017", got.RollNumber)

	out, err := executeCmd(t, app, "student", "show", s.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "ASHA MENON")
	assert.Contains(t, out, "CS24-017")
	assert.Contains(t, out, h.Section.ID)
}

func TestHierarchyCmds_Update(t *testing.T) {
	app, p := loggedInApp(t)
	h := p.SeedHierarchy()
	ctx := context.Background()

	_, err := executeCmd(t, app, "batch", "update", h.Batch.ID, "--end-year", "2029")
	require.NoError(t, err)
	b, err := app.API.GetBatch(ctx, h.Batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 2029, b.EndYear)
	assert.Equal(t, 2024, b.StartYear)
	assert.Equal(t, "2024-2028", b.Name)

	_, err = executeCmd(t, app, "course", "update", h.Course.ID, "--code", "BTECH")
	require.NoError(t, err)
	c, err := app.API.GetCourse(ctx, h.Course.ID)
	require.NoError(t, err)
	assert.Equal(t, "BTECH", c.Code)
	assert.Equal(t, h.Batch.ID, c.BatchID)

	_, err = executeCmd(t, app, "branch", "update", h.Branch.ID, "--name", "Computer Engineering")
	require.NoError(t, err)
	br, err := app.API.GetBranch(ctx, h.Branch.ID)
	require.NoError(t, err)
	assert.Equal(t, "Computer Engineering", br.Name)
	assert.Equal(t, "CSE", br.Code)

	_, err = executeCmd(t, app, "section", "update", h.Section.ID, "--name", "B")
	require.NoError(t, err)
	sec, err := app.API.GetSection(ctx, h.Section.ID)
	require.NoError(t, err)
	assert.Equal(t, "B", sec.Name)
	assert.Equal(t, h.Branch.ID, sec.BranchID)
}

func TestBatchCmd_UpdateRejectsEndBeforeStart(t *testing.T) {
	app, p := loggedInApp(t)
	h := p.SeedHierarchy()

	_, err := executeCmd(t, app, "batch", "update", h.Batch.ID, "--end-year", "2020")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "before")

	b, err := app.API.GetBatch(context.Background(), h.Batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 2028, b.EndYear)
}

func TestUpdateCmd_RequiresAFieldFlag(t *testing.T) {
	app, p := loggedInApp(t)
	h := p.SeedHierarchy()

	_, err := executeCmd(t, app, "section", "update", h.Section.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to update")
}

func TestUpdateCmd_UnknownID(t *testing.T) {
	app, _ := loggedInApp(t)

	_, err := executeCmd(t, app, "course", "update", "missing", "--name", "X")
	require.Error(t, err)
}

// --- exams ---

func TestExamCreateCmd_FromFile(t *testing.T) {
	app, p := loggedInApp(t)
	h := p.SeedHierarchy()
	path := writeExamFile(t, testutil.NewTestExam(domain.ScheduleRange, domain.QuestionsAuto, testutil.WithAudience(h)))

	out, err := executeCmd(t, app, "exam", "create", "--file", path, "--publish")
	require.NoError(t, err)
	assert.Contains(t, out, "Exam published")

	payloads := p.ExamPayloads()
	require.Len(t, payloads, 1)
	assert.Equal(t, domain.StatusPublished, payloads[0].Status)
	assert.Equal(t, h.Section.ID, payloads[0].Audience.SectionID)
	assert.Len(t, payloads[0].Structure, 2)

	out, err = executeCmd(t, app, "exam", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Data Structures Midterm")
	assert.Contains(t, out, "Published")
}

func TestExamCreateCmd_YAMLFile(t *testing.T) {
	app, p := loggedInApp(t)
	doc := `
basic:
  title: Networks Quiz
  subject: Networks
  durationMinutes: 30
  totalMarks: 10
  passingMarks: 4
  scheduleMode: SCHEDULED
  questionMode: MANUAL
audience: {batchId: b1, courseId: c1, branchId: br1, sectionId: s1}
schedule:
  startDate: 2026-11-01
  endDate: 2026-11-02
questions:
  - type: MCQ
    text: Which layer routes packets?
    options: [Link, Network]
    correctIndex: 1
    marks: 10
`
	path := filepath.Join(t.TempDir(), "quiz.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	out, err := executeCmd(t, app, "exam", "create", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Exam saved as draft")

	payloads := p.ExamPayloads()
	require.Len(t, payloads, 1)
	assert.Equal(t, domain.StatusDraft, payloads[0].Status)
	assert.Equal(t, "2026-11-01", payloads[0].Schedule.StartDate)
	require.Len(t, payloads[0].Questions, 1)
}

func TestExamCreateCmd_InvalidFile(t *testing.T) {
	app, p := loggedInApp(t)
	path := writeExamFile(t, testutil.NewTestExam(domain.ScheduleRange, domain.QuestionsAuto, testutil.WithTotalMarks(90)))

	out, err := executeCmd(t, app, "exam", "create", "--file", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 step(s)")
	assert.Contains(t, out, "Exam structure")
	assert.Empty(t, p.ExamPayloads())
}

func TestExamCreateCmd_PublishAndDraftConflict(t *testing.T) {
	app, _ := loggedInApp(t)

	_, err := executeCmd(t, app, "exam", "create", "--file", "x.json", "--publish", "--draft")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestExamCreateCmd_NoFileWithoutTerminal(t *testing.T) {
	app, _ := loggedInApp(t)

	_, err := executeCmd(t, app, "exam", "create")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--file")
}

func TestExamCreateCmd_FailureSavesDraftAndResubmit(t *testing.T) {
	app, p := loggedInApp(t)
	ctx := context.Background()
	path := writeExamFile(t, testutil.NewTestExam(domain.ScheduleProctored, domain.QuestionsManual))
	p.FailNext("POST", "/exams", 500)

	out, err := executeCmd(t, app, "exam", "create", "--file", path)
	require.Error(t, err)
	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 500, apiErr.Status)
	assert.Contains(t, out, "Saved locally as draft")

	drafts, err := app.Drafts.List(ctx)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	id := drafts[0].ID
	assert.Equal(t, "Data Structures Midterm", drafts[0].Title)
	assert.Equal(t, domain.ScheduleProctored, drafts[0].Payload.ScheduleMode)

	out, err = executeCmd(t, app, "exam", "drafts")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "injected failure")

	// Still failing: the draft is kept with the new error.
	_, err = executeCmd(t, app, "exam", "resubmit", id)
	require.Error(t, err)
	drafts, err = app.Drafts.List(ctx)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.True(t, drafts[0].SavedAt.Equal(fixedNow))

	p.FailNext("POST", "/exams", 0)
	out, err = executeCmd(t, app, "exam", "resubmit", id, "--publish")
	require.NoError(t, err)
	assert.Contains(t, out, "Exam published")

	drafts, err = app.Drafts.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, drafts)
	require.Len(t, p.ExamPayloads(), 1)
	assert.Equal(t, []string{"f1"}, p.ExamPayloads()[0].AssignedFacultyIDs)
}

func TestExamDraftsCmd_DiscardUnknown(t *testing.T) {
	app, _ := loggedInApp(t)

	_, err := executeCmd(t, app, "exam", "drafts", "discard", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no local draft "nope"`)
}

func TestExamDraftsCmd_Discard(t *testing.T) {
	app, _ := loggedInApp(t)
	ctx := context.Background()
	require.NoError(t, app.Drafts.Save(ctx, &domain.ExamDraft{
		ID: "d-1", Title: "Saved", Status: domain.StatusDraft, SavedAt: fixedNow,
	}))

	out, err := executeCmd(t, app, "exam", "drafts", "discard", "d-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Discarded draft d-1")

	_, err = app.Drafts.GetByID(ctx, "d-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestExamRemoveCmd(t *testing.T) {
	app, p := loggedInApp(t)
	path := writeExamFile(t, testutil.NewTestExam(domain.ScheduleRange, domain.QuestionsAuto))
	_, err := executeCmd(t, app, "exam", "create", "--file", path)
	require.NoError(t, err)

	exams, err := app.API.ListExams(context.Background())
	require.NoError(t, err)
	require.Len(t, exams, 1)

	_, err = executeCmd(t, app, "exam", "remove", exams[0].ID)
	require.NoError(t, err)

	_, err = executeCmd(t, app, "exam", "remove", exams[0].ID)
	require.Error(t, err)
	assert.Equal(t, 1, len(p.ExamPayloads()))
}

func TestExamShowCmd(t *testing.T) {
	app, _ := loggedInApp(t)
	path := writeExamFile(t, testutil.NewTestExam(domain.ScheduleRange, domain.QuestionsAuto))
	_, err := executeCmd(t, app, "exam", "create", "--file", path, "--publish")
	require.NoError(t, err)

	exams, err := app.API.ListExams(context.Background())
	require.NoError(t, err)
	require.Len(t, exams, 1)

	out, err := executeCmd(t, app, "exam", "show", exams[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "DATA STRUCTURES MIDTERM")
	assert.Contains(t, out, "Published")
	assert.Contains(t, out, "AUTO")

	_, err = executeCmd(t, app, "exam", "show", "missing")
	require.Error(t, err)
}

func TestCreatedLabel(t *testing.T) {
	assert.Equal(t, "3 hours ago", createdLabel(fixedNow.Add(-3*time.Hour).Format(time.RFC3339), fixedNow))
	assert.Equal(t, "yesterday-ish", createdLabel("yesterday-ish", fixedNow))
	assert.Contains(t, createdLabel("", fixedNow), "--")
}

func TestFriendly(t *testing.T) {
	assert.Contains(t, Friendly(transport.ErrSessionExpired), "examdesk login")
	assert.Contains(t, Friendly(session.ErrNoSession), "not logged in")
	assert.Equal(t, "boom", Friendly(errors.New("boom")))
}
