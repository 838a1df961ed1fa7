package models

import "time"

// CourseParticipant links a participant to a course. Unlinking removes the
// link only, never the underlying participant record.
type CourseParticipant struct {
	ID            string    `db:"id" json:"id"`
	CourseID      string    `db:"course_id" json:"course_id"`
	ParticipantID string    `db:"participant_id" json:"participant_id"`
	JoinedAt      time.Time `db:"joined_at" json:"joined_at"`
}
