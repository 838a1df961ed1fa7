package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/forma-labs/corsi-admin-api/internal/models"
	appErrors "github.com/forma-labs/corsi-admin-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.CourseDetail, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Deactivate(ctx context.Context, id string) error
}

type lessonRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Lesson, error)
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
	Create(ctx context.Context, lesson *models.Lesson) error
	Update(ctx context.Context, lesson *models.Lesson) error
	Delete(ctx context.Context, id string) error
}

type courseLinkRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.ParticipantDetail, error)
	Exists(ctx context.Context, courseID, participantID string) (bool, error)
	Link(ctx context.Context, link *models.CourseParticipant) error
	Unlink(ctx context.Context, courseID, participantID string) error
}

type courseTrainerRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Trainer, error)
	FindByID(ctx context.Context, id string) (*models.Trainer, error)
	ReplaceForCourse(ctx context.Context, courseID string, trainerIDs []string) error
}

type courseParticipantLookup interface {
	FindByID(ctx context.Context, id string) (*models.ParticipantDetail, error)
}

// CourseRequest holds payload for creating and updating courses.
type CourseRequest struct {
	Code        string     `json:"code" validate:"required"`
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	Hours       int        `json:"hours" validate:"gte=0"`
	Active      bool       `json:"active"`
}

// LessonRequest holds payload for lesson days.
type LessonRequest struct {
	Date      time.Time `json:"date" validate:"required"`
	StartTime string    `json:"start_time" validate:"required"`
	EndTime   string    `json:"end_time" validate:"required"`
	Room      string    `json:"room"`
	Topic     string    `json:"topic"`
}

// AssignTrainersRequest replaces the trainer set of a course.
type AssignTrainersRequest struct {
	TrainerIDs []string `json:"trainer_ids" validate:"required"`
}

// CourseService handles courses together with their lessons, trainer
// assignments, and participant enrollments.
type CourseService struct {
	courses      courseRepository
	lessons      lessonRepository
	links        courseLinkRepository
	trainers     courseTrainerRepository
	participants courseParticipantLookup
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewCourseService constructs the course service.
func NewCourseService(
	courses courseRepository,
	lessons lessonRepository,
	links courseLinkRepository,
	trainers courseTrainerRepository,
	participants courseParticipantLookup,
	validate *validator.Validate,
	logger *zap.Logger,
) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{
		courses:      courses,
		lessons:      lessons,
		links:        links,
		trainers:     trainers,
		participants: participants,
		validator:    validate,
		logger:       logger,
	}
}

// List returns courses and pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return courses, pagination, nil
}

// Get returns a course with aggregate counts.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseDetail, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Create registers a new course.
func (s *CourseService) Create(ctx context.Context, req CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course := &models.Course{
		Code:        req.Code,
		Title:       req.Title,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Hours:       req.Hours,
		Active:      true,
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	return course, nil
}

// Update modifies an existing course.
func (s *CourseService) Update(ctx context.Context, id string, req CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	detail, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	course := detail.Course
	course.Code = req.Code
	course.Title = req.Title
	course.Description = req.Description
	course.StartDate = req.StartDate
	course.EndDate = req.EndDate
	course.Hours = req.Hours
	course.Active = req.Active
	if err := s.courses.Update(ctx, &course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	return &course, nil
}

// Deactivate marks a course inactive while keeping its history.
func (s *CourseService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.courses.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if err := s.courses.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate course")
	}
	return nil
}

// ListLessons returns the ordered lesson days of a course.
func (s *CourseService) ListLessons(ctx context.Context, courseID string) ([]models.Lesson, error) {
	if _, err := s.Get(ctx, courseID); err != nil {
		return nil, err
	}
	lessons, err := s.lessons.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	return lessons, nil
}

// AddLesson schedules a lesson day on a course.
func (s *CourseService) AddLesson(ctx context.Context, courseID string, req LessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}
	if _, err := s.Get(ctx, courseID); err != nil {
		return nil, err
	}
	lesson := &models.Lesson{
		CourseID:  courseID,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Room:      req.Room,
		Topic:     req.Topic,
	}
	if err := s.lessons.Create(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lesson")
	}
	return lesson, nil
}

// UpdateLesson modifies a lesson day belonging to the course.
func (s *CourseService) UpdateLesson(ctx context.Context, courseID, lessonID string, req LessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}
	lesson, err := s.lessons.FindByID(ctx, lessonID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if lesson.CourseID != courseID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
	}
	lesson.Date = req.Date
	lesson.StartTime = req.StartTime
	lesson.EndTime = req.EndTime
	lesson.Room = req.Room
	lesson.Topic = req.Topic
	if err := s.lessons.Update(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson")
	}
	return lesson, nil
}

// DeleteLesson removes a lesson day from the course.
func (s *CourseService) DeleteLesson(ctx context.Context, courseID, lessonID string) error {
	lesson, err := s.lessons.FindByID(ctx, lessonID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if lesson.CourseID != courseID {
		return appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
	}
	if err := s.lessons.Delete(ctx, lessonID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete lesson")
	}
	return nil
}

// ListParticipants returns participants enrolled in a course.
func (s *CourseService) ListParticipants(ctx context.Context, courseID string) ([]models.ParticipantDetail, error) {
	if _, err := s.Get(ctx, courseID); err != nil {
		return nil, err
	}
	participants, err := s.links.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course participants")
	}
	return participants, nil
}

// EnrollParticipant links an existing participant to a course.
func (s *CourseService) EnrollParticipant(ctx context.Context, courseID, participantID string) error {
	if _, err := s.Get(ctx, courseID); err != nil {
		return err
	}
	if _, err := s.participants.FindByID(ctx, participantID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "participant not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load participant")
	}
	linked, err := s.links.Exists(ctx, courseID, participantID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if linked {
		return appErrors.Clone(appErrors.ErrConflict, "participant already enrolled")
	}
	link := &models.CourseParticipant{CourseID: courseID, ParticipantID: participantID}
	if err := s.links.Link(ctx, link); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll participant")
	}
	return nil
}

// RemoveParticipant detaches a participant from a course. The participant
// record itself is untouched.
func (s *CourseService) RemoveParticipant(ctx context.Context, courseID, participantID string) error {
	linked, err := s.links.Exists(ctx, courseID, participantID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !linked {
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	if err := s.links.Unlink(ctx, courseID, participantID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove enrollment")
	}
	return nil
}

// ListTrainers returns the trainers assigned to a course.
func (s *CourseService) ListTrainers(ctx context.Context, courseID string) ([]models.Trainer, error) {
	if _, err := s.Get(ctx, courseID); err != nil {
		return nil, err
	}
	trainers, err := s.trainers.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course trainers")
	}
	return trainers, nil
}

// AssignTrainers replaces the trainer set of a course.
func (s *CourseService) AssignTrainers(ctx context.Context, courseID string, req AssignTrainersRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid trainer assignment payload")
	}
	if _, err := s.Get(ctx, courseID); err != nil {
		return err
	}
	for _, trainerID := range req.TrainerIDs {
		if _, err := s.trainers.FindByID(ctx, trainerID); err != nil {
			if err == sql.ErrNoRows {
				return appErrors.Clone(appErrors.ErrNotFound, "trainer not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load trainer")
		}
	}
	if err := s.trainers.ReplaceForCourse(ctx, courseID, req.TrainerIDs); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign trainers")
	}
	return nil
}
