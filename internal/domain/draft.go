package domain

import "time"

// ExamDraft is an exam payload kept on this machine because the platform did
// not accept it. It can be resubmitted later.
type ExamDraft struct {
	ID        string
	Title     string
	Status    ExamStatus
	Payload   ExamPayload
	LastError string
	SavedAt   time.Time
}
