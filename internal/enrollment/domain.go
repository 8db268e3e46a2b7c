package enrollment

import "time"

// Enrollment links a student to a class section. Rows originate in the
// registration flows; this package reads them for clash detection.
type Enrollment struct {
	ID             int64     `json:"id"`
	StudentID      int64     `json:"studentId"`
	ClassSectionID int64     `json:"classSectionId"`
	EnrolledAt     time.Time `json:"enrolledAt"`
}

// StudentClash identifies a student whose existing exam overlaps a
// proposed exam window.
type StudentClash struct {
	StudentID int64  `json:"studentId"`
	ExamID    int64  `json:"examId"`
	ExamCode  string `json:"examCode"`
}
