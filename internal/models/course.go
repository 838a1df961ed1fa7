package models

import "time"

// Course represents a vocational training course.
type Course struct {
	ID          string     `db:"id" json:"id"`
	Code        string     `db:"code" json:"code"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	StartDate   *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate     *time.Time `db:"end_date" json:"end_date,omitempty"`
	Hours       int        `db:"hours" json:"hours"`
	Active      bool       `db:"active" json:"active"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// CourseFilter encapsulates search parameters for listing courses.
type CourseFilter struct {
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// CourseDetail enriches a course with aggregate counts for the workspace view.
type CourseDetail struct {
	Course
	ParticipantCount int `db:"participant_count" json:"participant_count"`
	LessonCount      int `db:"lesson_count" json:"lesson_count"`
	TrainerCount     int `db:"trainer_count" json:"trainer_count"`
}
