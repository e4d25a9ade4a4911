// Package examform collects the per-step values of the exam-creation flow,
// validates them, and turns them into a single create-exam payload.
package examform

import "github.com/alexanderramin/examdesk/internal/domain"

// StepKey identifies one step of the exam-creation flow.
type StepKey string

const (
	StepBasic     StepKey = "basic"
	StepAudience  StepKey = "audience"
	StepSchedule  StepKey = "schedule"
	StepStructure StepKey = "structure"
	StepQuestions StepKey = "questions"
	StepFaculty   StepKey = "faculty"
)

var stepTitles = map[StepKey]string{
	StepBasic:     "Exam details",
	StepAudience:  "Audience",
	StepSchedule:  "Schedule",
	StepStructure: "Exam structure",
	StepQuestions: "Questions",
	StepFaculty:   "Invigilators",
}

// Title returns the human-readable name of the step.
func (k StepKey) Title() string {
	if t, ok := stepTitles[k]; ok {
		return t
	}
	return string(k)
}

// StepsFor returns the ordered steps of the flow for the given modes. AUTO
// exams get a structure step, MANUAL exams a question list, and only
// proctored exams assign faculty.
func StepsFor(schedule domain.ScheduleMode, questions domain.QuestionMode) []StepKey {
	keys := []StepKey{StepBasic, StepAudience, StepSchedule}
	if questions == domain.QuestionsManual {
		keys = append(keys, StepQuestions)
	} else {
		keys = append(keys, StepStructure)
	}
	if schedule == domain.ScheduleProctored {
		keys = append(keys, StepFaculty)
	}
	return keys
}
