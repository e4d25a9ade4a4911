package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/alexanderramin/examdesk/internal/cascade"
	"github.com/alexanderramin/examdesk/internal/cli/formatter"
	"github.com/alexanderramin/examdesk/internal/domain"
	"github.com/alexanderramin/examdesk/internal/examform"
	"github.com/alexanderramin/examdesk/internal/wizard"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
)

const choiceBack = "back"

// examFields are the raw inputs bound to the huh fields. They outlive the
// forms, so going back to a step shows what was typed before.
type examFields struct {
	title, subject, description          string
	duration, totalMarks, passingMarks   string
	scheduleMode, questionMode           string
	batch, course, branch, section       string
	startDate, endDate                   string
	examDate, startTime, endTime, buffer string
	sections, questions                  string
	faculty                              []string
	choice                               string
}

// Messages produced by the wizard's own commands.
type (
	rootsLoadedMsg struct{ err error }
	levelLoadedMsg struct {
		level cascade.Level
		err   error
	}
	submittedMsg struct {
		message string
		err     error
	}
)

var (
	keyBack = key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back"))
	keyQuit = key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit"))
)

// examWizard is the interactive exam-creation flow. The wizard engine owns
// navigation, the aggregator owns step values, and the cascade chain owns
// the dropdown options. Each step is rendered as a huh form.
type examWizard struct {
	ctx    context.Context
	app    *App
	engine *wizard.Engine
	agg    *examform.Aggregator
	chain  *cascade.Chain
	fields *examFields

	form      *huh.Form
	freshForm bool
	errs      examform.FieldErrors
	notice    string

	// level is the dropdown being filled on the audience step.
	level      cascade.Level
	loading    bool
	confirming bool
	submitting bool

	result    string
	submitErr error
	cancelled bool
	width     int
}

func newExamWizard(ctx context.Context, app *App) (*examWizard, error) {
	w := &examWizard{
		ctx: ctx,
		app: app,
		agg: examform.NewAggregator(app.Drafts, app.logger()),
		fields: &examFields{
			scheduleMode: string(domain.ScheduleRange),
			questionMode: string(domain.QuestionsAuto),
			buffer:       "0",
		},
	}
	w.chain = cascade.New(app.Options, app.logger())

	keys := examform.StepsFor(domain.ScheduleRange, domain.QuestionsAuto)
	w.agg.Register(keys...)
	engine, err := wizard.New(w.wizardSteps(keys), wizard.Options{
		AllowSkip:    app.AllowSkip,
		OnStepChange: w.onStepChange,
		OnComplete:   w.onComplete,
	})
	if err != nil {
		return nil, err
	}
	w.engine = engine
	w.rebuildForm()
	return w, nil
}

func (w *examWizard) wizardSteps(keys []examform.StepKey) []wizard.Step {
	steps := make([]wizard.Step, len(keys))
	for i, k := range keys {
		steps[i] = wizard.Step{ID: string(k), Title: k.Title(), Valid: w.agg.StepValid(k), Component: k}
	}
	return steps
}

func (w *examWizard) currentKey() examform.StepKey {
	return examform.StepKey(w.engine.Current().ID)
}

func (w *examWizard) Init() tea.Cmd {
	w.freshForm = false
	return tea.Batch(w.form.Init(), w.loadRoots())
}

func (w *examWizard) loadRoots() tea.Cmd {
	return func() tea.Msg {
		return rootsLoadedMsg{err: w.chain.LoadRoots(w.ctx)}
	}
}

func (w *examWizard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w.width = msg.Width
		if w.form != nil {
			w.form = w.form.WithWidth(msg.Width)
		}
		return w, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keyQuit):
			w.cancelled = true
			return w, tea.Quit
		case key.Matches(msg, keyBack):
			if w.submitting {
				return w, nil
			}
			if !w.back() {
				w.cancelled = true
				return w, tea.Quit
			}
			return w, w.takeFormInit()
		}
		if w.loading || w.submitting || w.form == nil {
			return w, nil
		}

	case rootsLoadedMsg, levelLoadedMsg, submittedMsg:
		cmds = append(cmds, w.handleMsg(msg))
		if w.result != "" {
			cmds = append(cmds, tea.Quit)
		}
		cmds = append(cmds, w.takeFormInit())
		return w, tea.Batch(cmds...)
	}

	if w.form == nil {
		return w, nil
	}
	form, cmd := w.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		w.form = f
	}
	cmds = append(cmds, cmd)

	if w.form.State == huh.StateCompleted {
		cmds = append(cmds, w.formCompleted())
	}
	cmds = append(cmds, w.takeFormInit())
	return w, tea.Batch(cmds...)
}

func (w *examWizard) takeFormInit() tea.Cmd {
	if !w.freshForm || w.form == nil {
		return nil
	}
	w.freshForm = false
	return w.form.Init()
}

// formCompleted routes a finished form to the action it stands for.
func (w *examWizard) formCompleted() tea.Cmd {
	switch {
	case w.confirming:
		return w.confirm(w.fields.choice)
	case w.currentKey() == examform.StepAudience:
		v := w.levelValue(w.level)
		if v == "" {
			// The "nothing to pick" note was acknowledged.
			w.back()
			return nil
		}
		return w.chooseLevel(w.level, v)
	default:
		return w.commitStep()
	}
}

// handleMsg applies the result of one of the wizard's own commands.
func (w *examWizard) handleMsg(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case rootsLoadedMsg:
		if msg.err != nil {
			w.notice = "Some options could not be loaded: " + msg.err.Error()
		}
		if k := w.currentKey(); k == examform.StepAudience || k == examform.StepFaculty {
			w.rebuildForm()
		}

	case levelLoadedMsg:
		if errors.Is(msg.err, cascade.ErrStale) {
			return nil
		}
		k := w.currentKey()
		if msg.level == cascade.LevelFaculty && k == examform.StepFaculty {
			w.loading = false
			w.rebuildForm()
		}
		if msg.level == w.level && k == examform.StepAudience {
			w.loading = false
			w.rebuildForm()
		}

	case submittedMsg:
		w.submitting = false
		if msg.err != nil {
			w.submitErr = msg.err
			w.rebuildForm()
			return nil
		}
		w.submitErr = nil
		w.result = msg.message
		if w.result == "" {
			w.result = "Exam created"
		}
	}
	return nil
}

// commitStep parses and validates the current step, records it and tries to
// move forward.
func (w *examWizard) commitStep() tea.Cmd {
	k := w.currentKey()
	values, errs := w.parseStep(k)
	if errs == nil {
		errs = examform.ValidateStep(k, values)
	}
	w.record(k, values, errs)

	var cmd tea.Cmd
	if k == examform.StepBasic {
		cmd = w.applyModes()
	}
	w.advance()
	return cmd
}

func (w *examWizard) record(k examform.StepKey, values any, errs examform.FieldErrors) {
	valid := errs == nil
	w.agg.RecordStepData(k, values, valid)
	_ = w.engine.SetValid(string(k), valid)
	w.errs = errs
	w.notice = ""
}

// advance moves past the current step, completes the wizard from the last
// one, or redraws the step with its errors.
func (w *examWizard) advance() {
	if w.engine.Next() || w.confirming {
		return
	}
	if w.engine.IsLast() && w.errs == nil {
		if i := w.firstInvalid(); i >= 0 {
			w.engine.JumpTo(i)
			w.notice = fmt.Sprintf("%s still needs attention.", w.engine.Current().Title)
			return
		}
	}
	w.rebuildForm()
}

func (w *examWizard) firstInvalid() int {
	for i, s := range w.engine.Steps() {
		if !s.Valid {
			return i
		}
	}
	return -1
}

// applyModes reshapes the step list after the basic step changed the
// schedule or question mode, and revalidates steps whose rules depend on it.
func (w *examWizard) applyModes() tea.Cmd {
	basic, ok := w.agg.Values(examform.StepBasic)
	if !ok {
		return nil
	}
	b := basic.(examform.BasicInfo)

	keys := examform.StepsFor(b.ScheduleMode, b.QuestionMode)
	w.agg.Register(keys...)
	w.revalidate(b)
	_ = w.engine.SetSteps(w.wizardSteps(keys))

	proctored := b.ScheduleMode == domain.ScheduleProctored
	if proctored == w.chain.FacultyEnabled() {
		return nil
	}
	fetch := w.chain.SetFacultyEnabled(proctored)
	return func() tea.Msg {
		return levelLoadedMsg{level: cascade.LevelFaculty, err: fetch(w.ctx)}
	}
}

func (w *examWizard) revalidate(b examform.BasicInfo) {
	if v, ok := w.agg.Values(examform.StepSchedule); ok {
		s := v.(examform.Schedule)
		s.Mode = b.ScheduleMode
		w.agg.RecordStepData(examform.StepSchedule, s, examform.ValidateStep(examform.StepSchedule, s) == nil)
	}
	if v, ok := w.agg.Values(examform.StepStructure); ok {
		s := v.(examform.Structure)
		s.TotalMarks = b.TotalMarks
		w.agg.RecordStepData(examform.StepStructure, s, examform.ValidateStep(examform.StepStructure, s) == nil)
	}
	if v, ok := w.agg.Values(examform.StepQuestions); ok {
		q := v.(examform.QuestionSet)
		q.TotalMarks = b.TotalMarks
		w.agg.RecordStepData(examform.StepQuestions, q, examform.ValidateStep(examform.StepQuestions, q) == nil)
	}
}

// chooseLevel applies a dropdown choice on the audience step. Descendant
// selections are cleared at once; the next level's options load in a command.
func (w *examWizard) chooseLevel(level cascade.Level, value string) tea.Cmd {
	fetch := w.chain.Select(level, value)
	for l := level + 1; l <= cascade.LevelSection; l++ {
		*w.levelField(l) = ""
	}
	// Selecting a new value invalidates the recorded audience until the chain
	// is complete again.
	w.recordAudience()

	if level == cascade.LevelSection {
		w.advance()
		return nil
	}

	w.level = level + 1
	w.loading = true
	w.form = nil
	next := w.level
	return func() tea.Msg {
		return levelLoadedMsg{level: next, err: fetch(w.ctx)}
	}
}

func (w *examWizard) recordAudience() {
	a := examform.Audience{
		BatchID:   w.fields.batch,
		CourseID:  w.fields.course,
		BranchID:  w.fields.branch,
		SectionID: w.fields.section,
	}
	errs := examform.ValidateStep(examform.StepAudience, a)
	w.agg.RecordStepData(examform.StepAudience, a, errs == nil)
	_ = w.engine.SetValid(string(examform.StepAudience), errs == nil)
	w.errs = nil
}

func (w *examWizard) levelField(l cascade.Level) *string {
	switch l {
	case cascade.LevelBatch:
		return &w.fields.batch
	case cascade.LevelCourse:
		return &w.fields.course
	case cascade.LevelBranch:
		return &w.fields.branch
	default:
		return &w.fields.section
	}
}

func (w *examWizard) levelValue(l cascade.Level) string {
	return *w.levelField(l)
}

// back handles esc. It reports false when there is nowhere left to go.
func (w *examWizard) back() bool {
	switch {
	case w.confirming:
		w.confirming = false
		w.submitErr = nil
		w.rebuildForm()
		return true
	case w.currentKey() == examform.StepAudience && w.level > cascade.LevelBatch:
		w.level--
		w.loading = false
		w.rebuildForm()
		return true
	}
	if !w.engine.Prev() {
		return false
	}
	return true
}

func (w *examWizard) onStepChange(int) {
	w.errs = nil
	w.loading = false
	if w.currentKey() == examform.StepAudience {
		w.level = cascade.LevelBatch
		if w.fields.section != "" {
			w.level = cascade.LevelSection
		}
	}
	w.rebuildForm()
}

func (w *examWizard) onComplete() {
	w.confirming = true
	w.fields.choice = string(domain.StatusPublished)
	w.rebuildForm()
}

// confirm acts on the final choice: publish, save as draft, or go back.
func (w *examWizard) confirm(choice string) tea.Cmd {
	if choice == choiceBack {
		w.confirming = false
		w.rebuildForm()
		return nil
	}
	return w.startSubmit(domain.ExamStatus(choice))
}

func (w *examWizard) startSubmit(status domain.ExamStatus) tea.Cmd {
	w.submitting = true
	w.form = nil
	return func() tea.Msg {
		msg, err := w.agg.Submit(w.ctx, w.app.API, status)
		return submittedMsg{message: msg, err: err}
	}
}

// parseStep turns the raw inputs of step k into its typed values. Inputs
// that cannot be parsed at all come back as field errors.
func (w *examWizard) parseStep(k examform.StepKey) (any, examform.FieldErrors) {
	f := w.fields
	switch k {
	case examform.StepBasic:
		return examform.BasicInfo{
			Title:           strings.TrimSpace(f.title),
			Subject:         strings.TrimSpace(f.subject),
			Description:     strings.TrimSpace(f.description),
			DurationMinutes: atoi(f.duration),
			TotalMarks:      atoi(f.totalMarks),
			PassingMarks:    atoi(f.passingMarks),
			ScheduleMode:    domain.ScheduleMode(f.scheduleMode),
			QuestionMode:    domain.QuestionMode(f.questionMode),
		}, nil

	case examform.StepAudience:
		return examform.Audience{BatchID: f.batch, CourseID: f.course, BranchID: f.branch, SectionID: f.section}, nil

	case examform.StepSchedule:
		return examform.Schedule{
			Mode:          domain.ScheduleMode(f.scheduleMode),
			StartDate:     strings.TrimSpace(f.startDate),
			EndDate:       strings.TrimSpace(f.endDate),
			ExamDate:      strings.TrimSpace(f.examDate),
			StartTime:     strings.TrimSpace(f.startTime),
			EndTime:       strings.TrimSpace(f.endTime),
			BufferMinutes: atoi(f.buffer),
		}, nil

	case examform.StepStructure:
		sections, err := examform.ParseSections(f.sections)
		st := examform.Structure{TotalMarks: atoi(f.totalMarks), Sections: sections}
		if err != nil {
			return st, examform.FieldErrors{"sections": err.Error()}
		}
		return st, nil

	case examform.StepQuestions:
		qs := examform.QuestionSet{TotalMarks: atoi(f.totalMarks)}
		if strings.TrimSpace(f.questions) == "" {
			return qs, examform.FieldErrors{"questions": "add at least one question"}
		}
		items, err := examform.ParseQuestions([]byte(f.questions))
		qs.Questions = items
		if err != nil {
			return qs, examform.FieldErrors{"questions": err.Error()}
		}
		return qs, nil

	case examform.StepFaculty:
		return examform.FacultyAssignment{FacultyIDs: slices.Clone(f.faculty)}, nil
	}
	return nil, examform.FieldErrors{string(k): "unknown step"}
}

func (w *examWizard) rebuildForm() {
	w.loading = false
	w.form = w.buildForm()
	if w.form != nil && w.width > 0 {
		w.form = w.form.WithWidth(w.width)
	}
	w.freshForm = true
}

func (w *examWizard) buildForm() *huh.Form {
	if w.confirming {
		return w.confirmForm()
	}
	f := w.fields
	switch w.currentKey() {
	case examform.StepBasic:
		return newForm(
			huh.NewGroup(
				huh.NewInput().Title("Title").Value(&f.title),
				huh.NewInput().Title("Subject").Value(&f.subject),
				huh.NewText().Title("Description").Value(&f.description).Lines(3),
			),
			huh.NewGroup(
				huh.NewInput().Title("Duration (minutes)").Value(&f.duration).Validate(validateNonNegativeInt),
				huh.NewInput().Title("Total marks").Value(&f.totalMarks).Validate(validateNonNegativeInt),
				huh.NewInput().Title("Passing marks").Value(&f.passingMarks).Validate(validateNonNegativeInt),
			),
			huh.NewGroup(
				huh.NewSelect[string]().Title("Schedule").Value(&f.scheduleMode).Options(
					huh.NewOption("Date range (students pick a slot)", string(domain.ScheduleRange)),
					huh.NewOption("Proctored sitting", string(domain.ScheduleProctored)),
				),
				huh.NewSelect[string]().Title("Questions").Value(&f.questionMode).Options(
					huh.NewOption("Generate from a structure", string(domain.QuestionsAuto)),
					huh.NewOption("Write them myself", string(domain.QuestionsManual)),
				),
			),
		)

	case examform.StepAudience:
		return w.levelForm(w.level)

	case examform.StepSchedule:
		if domain.ScheduleMode(f.scheduleMode) == domain.ScheduleProctored {
			return newForm(huh.NewGroup(
				huh.NewInput().Title("Exam date").Placeholder(examform.DateLayout).Value(&f.examDate),
				huh.NewInput().Title("Start time").Placeholder("09:30").Value(&f.startTime),
				huh.NewInput().Title("End time").Placeholder("11:00").Value(&f.endTime),
				huh.NewInput().Title("Buffer (minutes)").Value(&f.buffer).Validate(validateNonNegativeInt),
			))
		}
		return newForm(huh.NewGroup(
			huh.NewInput().Title("Opens on").Placeholder(examform.DateLayout).Value(&f.startDate),
			huh.NewInput().Title("Closes on").Placeholder(examform.DateLayout).Value(&f.endDate),
			huh.NewInput().Title("Buffer (minutes)").Value(&f.buffer).Validate(validateNonNegativeInt),
		))

	case examform.StepStructure:
		return newForm(huh.NewGroup(
			huh.NewText().
				Title("Sections").
				Description(fmt.Sprintf("One per line: name, type, count, marks each. Must add up to %s marks.", orQuestion(f.totalMarks))).
				Placeholder("Objective, MCQ, 20, 2").
				Lines(6).
				Value(&f.sections),
		))

	case examform.StepQuestions:
		return newForm(huh.NewGroup(
			huh.NewText().
				Title("Questions (YAML list)").
				Description(fmt.Sprintf("Types: %s. Marks must add up to %s.", questionTypes(), orQuestion(f.totalMarks))).
				Placeholder("- type: MCQ\n  text: ...\n  options: [A, B]\n  correctIndex: 0\n  marks: 2").
				Lines(10).
				Value(&f.questions),
		))

	case examform.StepFaculty:
		st := w.chain.State(cascade.LevelFaculty)
		if st.Loading {
			w.loading = true
			return nil
		}
		if len(st.Options) == 0 {
			return emptyForm("No faculty available to invigilate.")
		}
		return newForm(huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Invigilators").
				Options(huhOptions(st.Options)...).
				Value(&f.faculty),
		))
	}
	return nil
}

func (w *examWizard) levelForm(level cascade.Level) *huh.Form {
	st := w.chain.State(level)
	if st.Loading {
		w.loading = true
		return nil
	}
	if len(st.Options) == 0 {
		msg := fmt.Sprintf("No %s options found.", level)
		if st.Failed {
			msg = fmt.Sprintf("Could not load %s options.", level)
		}
		return emptyForm(msg + " Press esc to go back.")
	}
	title := strings.ToUpper(level.String()[:1]) + level.String()[1:]
	return newForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(title).
			Options(huhOptions(st.Options)...).
			Value(w.levelField(level)),
	))
}

func (w *examWizard) confirmForm() *huh.Form {
	f := w.fields
	return newForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Ready to create the exam").
			Options(
				huh.NewOption("Publish now", string(domain.StatusPublished)),
				huh.NewOption("Save as draft", string(domain.StatusDraft)),
				huh.NewOption("Go back", choiceBack),
			).
			Value(&f.choice),
	))
}

func emptyForm(text string) *huh.Form {
	return newForm(huh.NewGroup(huh.NewNote().Title(text)))
}

func huhOptions(opts []cascade.Option) []huh.Option[string] {
	out := make([]huh.Option[string], len(opts))
	for i, o := range opts {
		out[i] = huh.NewOption(o.Label, o.ID)
	}
	return out
}

func questionTypes() string {
	names := make([]string, 0, len(domain.ValidQuestionTypes))
	for t := range domain.ValidQuestionTypes {
		names = append(names, t)
	}
	slices.Sort(names)
	return strings.Join(names, ", ")
}

func orQuestion(s string) string {
	if _, err := strconv.Atoi(strings.TrimSpace(s)); err != nil {
		return "the total"
	}
	return strings.TrimSpace(s)
}

func (w *examWizard) View() string {
	var b strings.Builder
	b.WriteString(formatter.Header("New exam"))
	b.WriteString("\n")

	steps := w.engine.Steps()
	titles := make([]string, len(steps))
	marks := make([]formatter.StepMark, len(steps))
	valid := 0
	for i, s := range steps {
		titles[i] = s.Title
		switch {
		case i == w.engine.Index() && !w.confirming:
			marks[i] = formatter.MarkCurrent
		case s.Valid:
			marks[i] = formatter.MarkValid
		case w.recorded(s.ID):
			marks[i] = formatter.MarkInvalid
		}
		if s.Valid {
			valid++
		}
	}
	b.WriteString(formatter.RenderSteps(titles, marks))
	b.WriteString("\n")
	b.WriteString(formatter.RenderProgress(valid, len(steps), 20))
	b.WriteString("\n\n")

	if w.notice != "" {
		b.WriteString(formatter.StyleYellow.Render(w.notice))
		b.WriteString("\n")
	}
	if len(w.errs) > 0 {
		for _, line := range strings.Split(w.errs.Error(), "; ") {
			b.WriteString(formatter.StyleRed.Render("• " + line))
			b.WriteString("\n")
		}
	}
	if w.submitErr != nil {
		b.WriteString(formatter.Failure(Friendly(w.submitErr)))
		b.WriteString("\n")
		var se *examform.SubmitError
		if errors.As(w.submitErr, &se) && se.DraftID != "" {
			b.WriteString(formatter.Dim("Saved locally as draft " + se.DraftID + "."))
			b.WriteString("\n")
		}
	}

	switch {
	case w.submitting:
		b.WriteString(formatter.Dim("Submitting…"))
	case w.loading || w.form == nil:
		b.WriteString(formatter.Dim(fmt.Sprintf("Loading %s options…", w.loadingLevel())))
	default:
		b.WriteString(w.form.View())
	}
	b.WriteString("\n")
	b.WriteString(formatter.Dim("esc back · ctrl+c quit"))
	return b.String()
}

func (w *examWizard) recorded(id string) bool {
	_, ok := w.agg.Values(examform.StepKey(id))
	return ok
}

func (w *examWizard) loadingLevel() cascade.Level {
	if w.currentKey() == examform.StepFaculty {
		return cascade.LevelFaculty
	}
	return w.level
}
