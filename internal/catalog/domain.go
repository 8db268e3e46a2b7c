package catalog

import "time"

// Reference records managed outside the scheduling flows. This package only
// reads them.

type Room struct {
	ID        int64     `json:"id"`
	RoomCode  string    `json:"roomCode"`
	Name      string    `json:"name"`
	Building  *string   `json:"building,omitempty"`
	Capacity  int       `json:"capacity"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Teacher struct {
	ID          int64     `json:"id"`
	TeacherCode string    `json:"teacherCode"`
	FullName    string    `json:"fullName"`
	Email       *string   `json:"email,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Subject struct {
	ID          int64     `json:"id"`
	SubjectCode string    `json:"subjectCode"`
	Name        string    `json:"name"`
	Credits     int       `json:"credits"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type ListRoomsRequest struct {
	IsActive    *bool
	MinCapacity *int
	Limit       int
	Offset      int
}
