package models

import (
	"time"

	"github.com/google/uuid"
)

type ClassSession struct {
	ID        uuid.UUID `json:"id"`
	TrainerID uuid.UUID `json:"trainer_id"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Status    string    `json:"status"`
	Notes     *string   `json:"notes"`
	Capacity  *int      `json:"capacity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ClassEnrollment struct {
	ID        uuid.UUID `json:"id"`
	ClassID   uuid.UUID `json:"class_id"`
	MemberID  uuid.UUID `json:"member_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionDetail is a ClassSession joined with the names the calendar
// and history views render next to it.
type SessionDetail struct {
	ClassSession
	TrainerName string     `json:"trainer_name,omitempty"`
	MemberID    *uuid.UUID `json:"member_id,omitempty"`
	MemberName  string     `json:"member_name,omitempty"`
}

// SessionConflict describes an already-scheduled session that overlaps a
// candidate slot. MemberNames lists everyone booked into it.
type SessionConflict struct {
	SessionID   uuid.UUID `json:"session_id"`
	Title       string    `json:"title"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	TrainerName string    `json:"trainer_name"`
	MemberNames []string  `json:"member_names"`
}
