package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rks020/ptbodychange/internal/models"
	"github.com/rks020/ptbodychange/internal/repository"
)

// TimeOfDay is a wall-clock time within a day, e.g. 09:00 for a morning slot.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

// ScheduleInput describes a recurrence: every date in [StartDate, EndDate]
// whose weekday appears in Rule yields one candidate slot at that weekday's
// time of day. Dates are interpreted in their own location.
type ScheduleInput struct {
	// OrganizationID is the caller's tenant; the member must belong to it.
	OrganizationID   uuid.UUID
	TrainerID        uuid.UUID
	StartDate        time.Time
	EndDate          time.Time
	Rule             map[time.Weekday]TimeOfDay
	DurationMinutes  int
	RemainingCredits int
	Title            string
	Notes            *string
}

type SessionSlot struct {
	Start time.Time
	End   time.Time
}

type SchedulePlan struct {
	Slots []SessionSlot
	// LimitReached reports that the member's remaining package balance cut
	// the expansion short of the date range.
	LimitReached bool
}

type ScheduleResult struct {
	CreatedCount int  `json:"created_count"`
	LimitReached bool `json:"limit_reached"`
}

// GenerateSchedule expands a recurrence rule over a date range into concrete
// candidate slots. Nothing is persisted; conflicts are checked separately.
func GenerateSchedule(in ScheduleInput) (*SchedulePlan, error) {
	if in.DurationMinutes <= 0 {
		return nil, ErrInvalidInput
	}
	if len(in.Rule) == 0 {
		return nil, ErrInvalidInput
	}
	for _, tod := range in.Rule {
		if !tod.valid() {
			return nil, ErrInvalidInput
		}
	}

	start := truncateToDay(in.StartDate)
	end := truncateToDay(in.EndDate)
	if end.Before(start) {
		return nil, ErrInvalidInput
	}
	if in.RemainingCredits <= 0 {
		return nil, ErrNoCreditsLeft
	}

	duration := time.Duration(in.DurationMinutes) * time.Minute
	plan := &SchedulePlan{Slots: make([]SessionSlot, 0)}

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		tod, ok := in.Rule[day.Weekday()]
		if !ok {
			continue
		}
		if len(plan.Slots) >= in.RemainingCredits {
			plan.LimitReached = true
			break
		}
		slotStart := time.Date(
			day.Year(), day.Month(), day.Day(),
			tod.Hour, tod.Minute, 0, 0,
			day.Location(),
		)
		plan.Slots = append(plan.Slots, SessionSlot{
			Start: slotStart,
			End:   slotStart.Add(duration),
		})
	}

	if len(plan.Slots) == 0 {
		return nil, ErrNoMatchingDays
	}

	return plan, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

type conflictFinder interface {
	ListOverlapping(ctx context.Context, trainerID uuid.UUID, start, end time.Time) ([]models.SessionConflict, error)
}

type scheduleCreator interface {
	CreateBatch(ctx context.Context, input repository.CreateScheduleBatchInput) (int, []models.SessionConflict, error)
}

type memberReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Member, error)
}

type SchedulerService struct {
	sessions conflictFinder
	creator  scheduleCreator
	members  memberReader
}

func NewSchedulerService(
	sessions conflictFinder,
	creator scheduleCreator,
	members memberReader,
) *SchedulerService {
	return &SchedulerService{
		sessions: sessions,
		creator:  creator,
		members:  members,
	}
}

// CheckConflicts runs the overlap query once per candidate and de-duplicates
// the hits by session identity across the whole batch, first-seen order.
func (s *SchedulerService) CheckConflicts(
	ctx context.Context,
	trainerID uuid.UUID,
	slots []SessionSlot,
) ([]models.SessionConflict, error) {
	seen := make(map[uuid.UUID]bool)
	conflicts := make([]models.SessionConflict, 0)

	for _, slot := range slots {
		overlapping, err := s.sessions.ListOverlapping(ctx, trainerID, slot.Start, slot.End)
		if err != nil {
			return nil, err
		}
		for _, conflict := range overlapping {
			if seen[conflict.SessionID] {
				continue
			}
			seen[conflict.SessionID] = true
			conflicts = append(conflicts, conflict)
		}
	}

	return conflicts, nil
}

// CreateSchedule is the two-phase commit: phase 1 expands the rule and
// conflict-checks every candidate before anything is written; conflicts halt
// the routine with the full list unless force is set. Phase 2 commits the
// batch, one session plus one enrollment per slot.
func (s *SchedulerService) CreateSchedule(
	ctx context.Context,
	memberID uuid.UUID,
	in ScheduleInput,
	force bool,
) (*ScheduleResult, error) {
	member, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	// Members of other organizations look absent, as row-level security
	// would make them.
	if member.OrganizationID != in.OrganizationID {
		return nil, ErrNotFound
	}

	in.RemainingCredits = member.RemainingSessions()
	if in.Title == "" {
		in.Title = "Personal Session"
	}

	plan, err := GenerateSchedule(in)
	if err != nil {
		return nil, err
	}

	conflicts, err := s.CheckConflicts(ctx, in.TrainerID, plan.Slots)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 && !force {
		return nil, &ConflictError{Conflicts: conflicts}
	}

	slots := make([]repository.ScheduleSlot, 0, len(plan.Slots))
	for _, slot := range plan.Slots {
		slots = append(slots, repository.ScheduleSlot{Start: slot.Start, End: slot.End})
	}

	created, raceConflicts, err := s.creator.CreateBatch(ctx, repository.CreateScheduleBatchInput{
		TrainerID: in.TrainerID,
		MemberID:  memberID,
		Title:     in.Title,
		Notes:     in.Notes,
		Slots:     slots,
		Force:     force,
	})
	if err != nil {
		if created > 0 {
			return nil, &PartialCreationError{CreatedCount: created, Err: err}
		}
		return nil, err
	}
	if len(raceConflicts) > 0 {
		// A concurrent request won the trainer lock between our check and
		// the commit.
		return nil, &ConflictError{Conflicts: raceConflicts}
	}

	return &ScheduleResult{
		CreatedCount: created,
		LimitReached: plan.LimitReached,
	}, nil
}
