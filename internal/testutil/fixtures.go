package testutil

import (
	"github.com/alexanderramin/examdesk/internal/domain"
	"github.com/alexanderramin/examdesk/internal/examform"
)

// Exam file options
type ExamOption func(*examform.File)

func WithTotalMarks(total int) ExamOption {
	return func(f *examform.File) {
		f.Basic.TotalMarks = total
	}
}

func WithStructure(sections ...domain.StructureSection) ExamOption {
	return func(f *examform.File) {
		f.Structure = sections
	}
}

func WithQuestions(qs ...domain.Question) ExamOption {
	return func(f *examform.File) {
		f.Questions = make([]domain.QuestionItem, len(qs))
		for i, q := range qs {
			f.Questions[i] = domain.QuestionItem{Question: q}
		}
	}
}

func WithAudience(h Hierarchy) ExamOption {
	return func(f *examform.File) {
		f.Audience = examform.Audience{
			BatchID:   h.Batch.ID,
			CourseID:  h.Course.ID,
			BranchID:  h.Branch.ID,
			SectionID: h.Section.ID,
		}
	}
}

func WithFaculty(ids ...string) ExamOption {
	return func(f *examform.File) {
		f.FacultyIDs = ids
	}
}

// NewTestExam returns a complete, valid exam for the given modes: 100 marks,
// split 40 MCQ + 60 long answer for AUTO, or 10 + 90 for MANUAL.
func NewTestExam(schedule domain.ScheduleMode, questions domain.QuestionMode, opts ...ExamOption) examform.File {
	f := examform.File{
		Status: domain.StatusDraft,
		Basic: examform.BasicInfo{
			Title:           "Data Structures Midterm",
			Subject:         "Data Structures",
			DurationMinutes: 90,
			TotalMarks:      100,
			PassingMarks:    40,
			ScheduleMode:    schedule,
			QuestionMode:    questions,
		},
		Audience: examform.Audience{BatchID: "b1", CourseID: "c1", BranchID: "br1", SectionID: "s1"},
	}

	if schedule == domain.ScheduleProctored {
		f.Schedule = examform.Schedule{ExamDate: "2026-11-20", StartTime: "09:30", EndTime: "11:00", BufferMinutes: 10}
		f.FacultyIDs = []string{"f1"}
	} else {
		f.Schedule = examform.Schedule{StartDate: "2026-11-20", EndDate: "2026-11-22", BufferMinutes: 15}
	}

	if questions == domain.QuestionsManual {
		f.Questions = []domain.QuestionItem{
			{Question: domain.MCQ{Text: "Which structure is LIFO?", Options: []string{"Queue", "Stack"}, CorrectIndex: 1, Points: 10}},
			{Question: domain.LongAnswer{Text: "Explain AVL rotations.", MinWords: 200, Points: 90}},
		}
	} else {
		f.Structure = []domain.StructureSection{
			{Name: "Section A", QuestionType: domain.QuestionMCQ, Count: 20, MarksEach: 2},
			{Name: "Section B", QuestionType: domain.QuestionLongAnswer, Count: 4, MarksEach: 15},
		}
	}

	for _, opt := range opts {
		opt(&f)
	}
	return f
}
