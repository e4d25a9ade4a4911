package domain

// ScheduleMode decides the shape of an exam's schedule.
type ScheduleMode string

const (
	// ScheduleRange opens the exam over a date range.
	ScheduleRange ScheduleMode = "SCHEDULED"
	// ScheduleProctored runs the exam as one invigilated session.
	ScheduleProctored ScheduleMode = "PROCTORED"
)

// QuestionMode decides how the paper is put together.
type QuestionMode string

const (
	// QuestionsAuto draws questions from the bank following an exam structure.
	QuestionsAuto QuestionMode = "AUTO"
	// QuestionsManual uses an explicit list of authored questions.
	QuestionsManual QuestionMode = "MANUAL"
)

type ExamStatus string

const (
	StatusDraft     ExamStatus = "DRAFT"
	StatusPublished ExamStatus = "PUBLISHED"
)

// ValidScheduleModes is the canonical set of schedule mode strings.
var ValidScheduleModes = map[string]bool{
	string(ScheduleRange): true, string(ScheduleProctored): true,
}

// ValidQuestionModes is the canonical set of question mode strings.
var ValidQuestionModes = map[string]bool{
	string(QuestionsAuto): true, string(QuestionsManual): true,
}

// StructureSection is one block of an AUTO exam, e.g. "10 MCQs, 2 marks each".
type StructureSection struct {
	Name         string       `json:"name" yaml:"name"`
	QuestionType QuestionType `json:"questionType" yaml:"questionType"`
	Count        int          `json:"count" yaml:"count"`
	MarksEach    int          `json:"marksEach" yaml:"marksEach"`
}

// Marks returns the section's contribution to the exam total.
func (s StructureSection) Marks() int {
	return s.Count * s.MarksEach
}

// SchedulePayload is the schedule part of a create-exam request. Range
// exams fill StartDate/EndDate; proctored exams fill ExamDate/StartTime/EndTime.
type SchedulePayload struct {
	StartDate  string `json:"startDate,omitempty"`
	EndDate    string `json:"endDate,omitempty"`
	ExamDate   string `json:"examDate,omitempty"`
	StartTime  string `json:"startTime,omitempty"`
	EndTime    string `json:"endTime,omitempty"`
	BufferTime int    `json:"bufferTime"`
}

// AudiencePayload names who sits the exam.
type AudiencePayload struct {
	BatchID   string `json:"batchId"`
	CourseID  string `json:"courseId"`
	BranchID  string `json:"branchId"`
	SectionID string `json:"sectionId"`
}

// ExamPayload is the single request body sent to create an exam.
type ExamPayload struct {
	Title              string             `json:"title"`
	Subject            string             `json:"subject"`
	Description        string             `json:"description,omitempty"`
	DurationMinutes    int                `json:"durationMinutes"`
	TotalMarks         int                `json:"totalMarks"`
	PassingMarks       int                `json:"passingMarks"`
	ScheduleMode       ScheduleMode       `json:"scheduleMode"`
	QuestionMode       QuestionMode       `json:"questionMode"`
	Status             ExamStatus         `json:"status"`
	Audience           AudiencePayload    `json:"audience"`
	Schedule           SchedulePayload    `json:"schedule"`
	Structure          []StructureSection `json:"structure,omitempty"`
	Questions          []QuestionItem     `json:"questions,omitempty"`
	AssignedFacultyIDs []string           `json:"assignedFacultyIds,omitempty"`
}
