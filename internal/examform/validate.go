package examform

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alexanderramin/examdesk/internal/domain"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// MaxBufferMinutes caps the grace period around an exam window.
const MaxBufferMinutes = 120

var (
	validate   *validator.Validate
	translator ut.Translator
)

// custom validation tags
const (
	tagNotBlank     = "notblank"
	tagDate         = "exam_date"
	tagClock        = "exam_clock"
	tagDateOrder    = "date_order"
	tagClockOrder   = "clock_order"
	tagScheduleMode = "schedule_mode"
	tagBuffer       = "buffer"
	tagMarksTotal   = "marks_total"
	tagQuestion     = "question"
	tagQuestionType = "question_type"
)

var customMessages = map[string]string{
	tagNotBlank:     "{0} cannot be blank",
	tagDate:         "{0} must be a date like 2026-05-30",
	tagClock:        "{0} must be a time like 09:30",
	tagDateOrder:    "{0} cannot be before the start date {1}",
	tagClockOrder:   "{0} must be after the start time {1}",
	tagScheduleMode: "{0} must be SCHEDULED or PROCTORED",
	tagBuffer:       "{0} must be between 0 and {1} minutes",
	tagMarksTotal:   "{0} must add up to the total marks ({1})",
	tagQuestion:     "{0} is invalid: {1}",
	tagQuestionType: "{0} must be one of MCQ, TRUE_FALSE, SHORT_ANSWER, LONG_ANSWER",
}

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(tagNotBlank, notBlankValidation)
	validate.RegisterStructValidation(scheduleStructValidation, Schedule{})
	validate.RegisterStructValidation(structureStructValidation, Structure{})
	validate.RegisterStructValidation(sectionStructValidation, domain.StructureSection{})
	validate.RegisterStructValidation(questionSetStructValidation, QuestionSet{})

	for tag, text := range customMessages {
		registerTranslation(tag, text)
	}
}

func registerTranslation(tag, text string) {
	_ = validate.RegisterTranslation(tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, err := t.T(fe.Tag(), fe.Field(), fe.Param())
			if err != nil {
				return fe.Error()
			}
			return msg
		})
}

// FieldErrors maps a field name to its user-facing message. Nested fields
// use the path below the step, e.g. "sections[1].count".
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fe[k]
	}
	return strings.Join(parts, "; ")
}

// Validate checks one step value and returns nil when it is valid.
func Validate(v any) FieldErrors {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"": err.Error()}
	}
	out := FieldErrors{}
	for _, fe := range verrs {
		key := fieldKey(fe)
		if _, seen := out[key]; !seen {
			out[key] = fe.Translate(translator)
		}
	}
	return out
}

// ValidateStep checks that values is the right type for key and validates it.
func ValidateStep(key StepKey, values any) FieldErrors {
	want, ok := stepTypes[key]
	if !ok {
		return FieldErrors{"": fmt.Sprintf("unknown step %q", key)}
	}
	if values == nil || reflect.TypeOf(values) != want {
		return FieldErrors{"": fmt.Sprintf("step %q expects %s, got %T", key, want, values)}
	}
	return Validate(values)
}

var stepTypes = map[StepKey]reflect.Type{
	StepBasic:     reflect.TypeOf(BasicInfo{}),
	StepAudience:  reflect.TypeOf(Audience{}),
	StepSchedule:  reflect.TypeOf(Schedule{}),
	StepStructure: reflect.TypeOf(Structure{}),
	StepQuestions: reflect.TypeOf(QuestionSet{}),
	StepFaculty:   reflect.TypeOf(FacultyAssignment{}),
}

// fieldKey drops the root struct name from the namespace.
func fieldKey(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

type problem struct {
	field string
	tag   string
	param string
}

// ScheduleValid is the one rule deciding whether a schedule is acceptable
// for mode. Step validation and payload building both go through it.
func ScheduleValid(s Schedule, mode domain.ScheduleMode) bool {
	return len(scheduleProblems(s, mode)) == 0
}

func scheduleProblems(s Schedule, mode domain.ScheduleMode) []problem {
	var out []problem
	switch mode {
	case domain.ScheduleRange:
		start, okStart := parseIn(DateLayout, s.StartDate)
		end, okEnd := parseIn(DateLayout, s.EndDate)
		if !okStart {
			out = append(out, problem{field: "startDate", tag: tagDate})
		}
		if !okEnd {
			out = append(out, problem{field: "endDate", tag: tagDate})
		}
		if okStart && okEnd && end.Before(start) {
			out = append(out, problem{field: "endDate", tag: tagDateOrder, param: s.StartDate})
		}
	case domain.ScheduleProctored:
		if _, ok := parseIn(DateLayout, s.ExamDate); !ok {
			out = append(out, problem{field: "examDate", tag: tagDate})
		}
		start, okStart := parseIn(ClockLayout, s.StartTime)
		end, okEnd := parseIn(ClockLayout, s.EndTime)
		if !okStart {
			out = append(out, problem{field: "startTime", tag: tagClock})
		}
		if !okEnd {
			out = append(out, problem{field: "endTime", tag: tagClock})
		}
		if okStart && okEnd && !end.After(start) {
			out = append(out, problem{field: "endTime", tag: tagClockOrder, param: s.StartTime})
		}
	default:
		out = append(out, problem{field: "mode", tag: tagScheduleMode})
	}
	if s.BufferMinutes < 0 || s.BufferMinutes > MaxBufferMinutes {
		out = append(out, problem{field: "bufferTime", tag: tagBuffer, param: strconv.Itoa(MaxBufferMinutes)})
	}
	return out
}

// StructureMarksMatch reports whether the sections add up to the total marks.
func StructureMarksMatch(s Structure) bool {
	return s.Marks() == s.TotalMarks
}

// QuestionMarksMatch reports whether the questions add up to the total marks.
func QuestionMarksMatch(q QuestionSet) bool {
	return domain.TotalQuestionMarks(q.Questions) == q.TotalMarks
}

func parseIn(layout, value string) (time.Time, bool) {
	t, err := time.Parse(layout, strings.TrimSpace(value))
	return t, err == nil
}

// Custom Validators

func notBlankValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

func scheduleStructValidation(sl validator.StructLevel) {
	s, ok := sl.Current().Interface().(Schedule)
	if !ok {
		return
	}
	for _, p := range scheduleProblems(s, s.Mode) {
		sl.ReportError(s, p.field, p.field, p.tag, p.param)
	}
}

func structureStructValidation(sl validator.StructLevel) {
	s, ok := sl.Current().Interface().(Structure)
	if !ok || len(s.Sections) == 0 {
		return
	}
	if !StructureMarksMatch(s) {
		sl.ReportError(s.Sections, "sections", "Sections", tagMarksTotal, strconv.Itoa(s.TotalMarks))
	}
}

func sectionStructValidation(sl validator.StructLevel) {
	sec, ok := sl.Current().Interface().(domain.StructureSection)
	if !ok {
		return
	}
	if strings.TrimSpace(sec.Name) == "" {
		sl.ReportError(sec.Name, "name", "Name", tagNotBlank, "")
	}
	if !domain.ValidQuestionTypes[string(sec.QuestionType)] {
		sl.ReportError(sec.QuestionType, "questionType", "QuestionType", tagQuestionType, "")
	}
	if sec.Count < 1 {
		sl.ReportError(sec.Count, "count", "Count", "min", "1")
	}
	if sec.MarksEach < 1 {
		sl.ReportError(sec.MarksEach, "marksEach", "MarksEach", "min", "1")
	}
}

func questionSetStructValidation(sl validator.StructLevel) {
	qs, ok := sl.Current().Interface().(QuestionSet)
	if !ok || len(qs.Questions) == 0 {
		return
	}
	for i, item := range qs.Questions {
		if err := domain.ValidateQuestion(item.Question); err != nil {
			name := fmt.Sprintf("questions[%d]", i)
			sl.ReportError(item, name, name, tagQuestion, err.Error())
		}
	}
	if !QuestionMarksMatch(qs) {
		sl.ReportError(qs.Questions, "questions", "Questions", tagMarksTotal, strconv.Itoa(qs.TotalMarks))
	}
}
