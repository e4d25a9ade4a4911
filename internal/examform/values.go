package examform

import "github.com/alexanderramin/examdesk/internal/domain"

// Date and clock layouts accepted in schedule fields.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

type BasicInfo struct {
	Title           string              `json:"title" yaml:"title" validate:"notblank,max=120"`
	Subject         string              `json:"subject" yaml:"subject" validate:"notblank,max=80"`
	Description     string              `json:"description" yaml:"description" validate:"max=1000"`
	DurationMinutes int                 `json:"durationMinutes" yaml:"durationMinutes" validate:"min=1,max=600"`
	TotalMarks      int                 `json:"totalMarks" yaml:"totalMarks" validate:"min=1,max=1000"`
	PassingMarks    int                 `json:"passingMarks" yaml:"passingMarks" validate:"min=0,ltefield=TotalMarks"`
	ScheduleMode    domain.ScheduleMode `json:"scheduleMode" yaml:"scheduleMode" validate:"oneof=SCHEDULED PROCTORED"`
	QuestionMode    domain.QuestionMode `json:"questionMode" yaml:"questionMode" validate:"oneof=AUTO MANUAL"`
}

type Audience struct {
	BatchID   string `json:"batchId" yaml:"batchId" validate:"required"`
	CourseID  string `json:"courseId" yaml:"courseId" validate:"required"`
	BranchID  string `json:"branchId" yaml:"branchId" validate:"required"`
	SectionID string `json:"sectionId" yaml:"sectionId" validate:"required"`
}

// Schedule holds the fields of both schedule shapes. Mode picks which of
// them apply: StartDate/EndDate for SCHEDULED, ExamDate/StartTime/EndTime for
// PROCTORED.
type Schedule struct {
	Mode          domain.ScheduleMode `json:"mode" yaml:"mode"`
	StartDate     string              `json:"startDate" yaml:"startDate"`
	EndDate       string              `json:"endDate" yaml:"endDate"`
	ExamDate      string              `json:"examDate" yaml:"examDate"`
	StartTime     string              `json:"startTime" yaml:"startTime"`
	EndTime       string              `json:"endTime" yaml:"endTime"`
	BufferMinutes int                 `json:"bufferTime" yaml:"bufferTime" validate:"min=0,max=120"`
}

// Structure is the blueprint of an AUTO exam. TotalMarks is copied from the
// basic step so the sections can be checked against it.
type Structure struct {
	TotalMarks int                       `json:"totalMarks" yaml:"totalMarks"`
	Sections   []domain.StructureSection `json:"sections" yaml:"sections" validate:"min=1,dive"`
}

// Marks returns the sum of every section's marks.
func (s Structure) Marks() int {
	total := 0
	for _, sec := range s.Sections {
		total += sec.Marks()
	}
	return total
}

// QuestionSet is the authored paper of a MANUAL exam.
type QuestionSet struct {
	TotalMarks int                   `json:"totalMarks" yaml:"totalMarks"`
	Questions  []domain.QuestionItem `json:"questions" yaml:"questions" validate:"min=1"`
}

type FacultyAssignment struct {
	FacultyIDs []string `json:"facultyIds" yaml:"facultyIds" validate:"min=1,unique,dive,notblank"`
}
