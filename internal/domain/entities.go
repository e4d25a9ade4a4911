package domain

// Faculty is a teaching staff member who can be assigned to invigilate.
type Faculty struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	Department  string `json:"department,omitempty"`
	Designation string `json:"designation,omitempty"`
}

// Student is enrolled in exactly one section of a batch/course/branch.
type Student struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	RollNumber string `json:"rollNumber"`
	BatchID    string `json:"batchId,omitempty"`
	CourseID   string `json:"courseId,omitempty"`
	BranchID   string `json:"branchId,omitempty"`
	SectionID  string `json:"sectionId,omitempty"`
}

// Batch is an intake year group, the root of the audience hierarchy.
type Batch struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	StartYear int    `json:"startYear,omitempty"`
	EndYear   int    `json:"endYear,omitempty"`
}

// Course belongs to a batch.
type Course struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Code    string `json:"code,omitempty"`
	BatchID string `json:"batchId"`
}

// Branch belongs to a course.
type Branch struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Code     string `json:"code,omitempty"`
	CourseID string `json:"courseId"`
}

// Section belongs to a branch.
type Section struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	BranchID string `json:"branchId"`
}

// Exam is the summary the platform returns for listings.
type Exam struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Status       ExamStatus   `json:"status"`
	ScheduleMode ScheduleMode `json:"scheduleMode"`
	QuestionMode QuestionMode `json:"questionMode"`
	TotalMarks   int          `json:"totalMarks"`
	CreatedAt    string       `json:"createdAt,omitempty"`
}
