package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forma-labs/corsi-admin-api/internal/models"
	appErrors "github.com/forma-labs/corsi-admin-api/pkg/errors"
)

type mockCourseRepo struct {
	courses     map[string]*models.CourseDetail
	deactivated []string
}

func (m *mockCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	return nil, 0, nil
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	if c, ok := m.courses[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) error {
	course.ID = "course-new"
	return nil
}

func (m *mockCourseRepo) Update(ctx context.Context, course *models.Course) error {
	return nil
}

func (m *mockCourseRepo) Deactivate(ctx context.Context, id string) error {
	m.deactivated = append(m.deactivated, id)
	return nil
}

type mockLessonRepo struct {
	lessons map[string]*models.Lesson
	created *models.Lesson
	deleted []string
}

func (m *mockLessonRepo) ListByCourse(ctx context.Context, courseID string) ([]models.Lesson, error) {
	var out []models.Lesson
	for _, l := range m.lessons {
		if l.CourseID == courseID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (m *mockLessonRepo) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	if l, ok := m.lessons[id]; ok {
		return l, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockLessonRepo) Create(ctx context.Context, lesson *models.Lesson) error {
	lesson.ID = "lesson-new"
	m.created = lesson
	return nil
}

func (m *mockLessonRepo) Update(ctx context.Context, lesson *models.Lesson) error {
	return nil
}

func (m *mockLessonRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type mockCourseLinkRepo struct {
	linked   map[string]bool
	links    []*models.CourseParticipant
	unlinked []string
}

func (m *mockCourseLinkRepo) ListByCourse(ctx context.Context, courseID string) ([]models.ParticipantDetail, error) {
	return nil, nil
}

func (m *mockCourseLinkRepo) Exists(ctx context.Context, courseID, participantID string) (bool, error) {
	return m.linked[courseID+":"+participantID], nil
}

func (m *mockCourseLinkRepo) Link(ctx context.Context, link *models.CourseParticipant) error {
	m.links = append(m.links, link)
	return nil
}

func (m *mockCourseLinkRepo) Unlink(ctx context.Context, courseID, participantID string) error {
	m.unlinked = append(m.unlinked, courseID+":"+participantID)
	return nil
}

type mockCourseTrainerRepo struct {
	trainers map[string]*models.Trainer
	replaced map[string][]string
}

func (m *mockCourseTrainerRepo) ListByCourse(ctx context.Context, courseID string) ([]models.Trainer, error) {
	return nil, nil
}

func (m *mockCourseTrainerRepo) FindByID(ctx context.Context, id string) (*models.Trainer, error) {
	if tr, ok := m.trainers[id]; ok {
		return tr, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseTrainerRepo) ReplaceForCourse(ctx context.Context, courseID string, trainerIDs []string) error {
	if m.replaced == nil {
		m.replaced = make(map[string][]string)
	}
	m.replaced[courseID] = trainerIDs
	return nil
}

type mockParticipantLookup struct {
	participants map[string]*models.ParticipantDetail
}

func (m *mockParticipantLookup) FindByID(ctx context.Context, id string) (*models.ParticipantDetail, error) {
	if p, ok := m.participants[id]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func courseFixture() map[string]*models.CourseDetail {
	return map[string]*models.CourseDetail{
		"course-1": {Course: models.Course{ID: "course-1", Code: "SB-01", Title: "Sicurezza Base", Active: true}},
	}
}

func newTestCourseService(courses *mockCourseRepo, lessons *mockLessonRepo, links *mockCourseLinkRepo, trainers *mockCourseTrainerRepo, lookup *mockParticipantLookup) *CourseService {
	return NewCourseService(courses, lessons, links, trainers, lookup, nil, nil)
}

func TestCourseCreate(t *testing.T) {
	svc := newTestCourseService(&mockCourseRepo{}, &mockLessonRepo{}, &mockCourseLinkRepo{}, &mockCourseTrainerRepo{}, &mockParticipantLookup{})

	course, err := svc.Create(context.Background(), CourseRequest{Code: "SB-01", Title: "Sicurezza Base", Hours: 8})
	require.NoError(t, err)
	assert.Equal(t, "course-new", course.ID)
	assert.True(t, course.Active, "new courses start active")
}

func TestCourseCreateRequiresCodeAndTitle(t *testing.T) {
	svc := newTestCourseService(&mockCourseRepo{}, &mockLessonRepo{}, &mockCourseLinkRepo{}, &mockCourseTrainerRepo{}, &mockParticipantLookup{})

	_, err := svc.Create(context.Background(), CourseRequest{Hours: 8})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCourseDeactivate(t *testing.T) {
	courses := &mockCourseRepo{courses: courseFixture()}
	svc := newTestCourseService(courses, &mockLessonRepo{}, &mockCourseLinkRepo{}, &mockCourseTrainerRepo{}, &mockParticipantLookup{})

	err := svc.Deactivate(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"course-1"}, courses.deactivated)
}

func TestAddLesson(t *testing.T) {
	lessons := &mockLessonRepo{}
	svc := newTestCourseService(&mockCourseRepo{courses: courseFixture()}, lessons, &mockCourseLinkRepo{}, &mockCourseTrainerRepo{}, &mockParticipantLookup{})

	lesson, err := svc.AddLesson(context.Background(), "course-1", LessonRequest{
		Date:      time.Date(2024, time.May, 6, 0, 0, 0, 0, time.UTC),
		StartTime: "09:00",
		EndTime:   "13:00",
		Room:      "Aula 2",
	})
	require.NoError(t, err)
	assert.Equal(t, "course-1", lesson.CourseID)
	assert.Equal(t, "lesson-new", lesson.ID)
}

func TestUpdateLessonWrongCourseNotFound(t *testing.T) {
	lessons := &mockLessonRepo{lessons: map[string]*models.Lesson{
		"lesson-1": {ID: "lesson-1", CourseID: "course-other"},
	}}
	svc := newTestCourseService(&mockCourseRepo{courses: courseFixture()}, lessons, &mockCourseLinkRepo{}, &mockCourseTrainerRepo{}, &mockParticipantLookup{})

	_, err := svc.UpdateLesson(context.Background(), "course-1", "lesson-1", LessonRequest{
		Date:      time.Now(),
		StartTime: "09:00",
		EndTime:   "13:00",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollParticipant(t *testing.T) {
	links := &mockCourseLinkRepo{linked: map[string]bool{}}
	lookup := &mockParticipantLookup{participants: map[string]*models.ParticipantDetail{
		"p-1": {Participant: models.Participant{ID: "p-1"}},
	}}
	svc := newTestCourseService(&mockCourseRepo{courses: courseFixture()}, &mockLessonRepo{}, links, &mockCourseTrainerRepo{}, lookup)

	err := svc.EnrollParticipant(context.Background(), "course-1", "p-1")
	require.NoError(t, err)
	require.Len(t, links.links, 1)
	assert.Equal(t, "p-1", links.links[0].ParticipantID)
}

func TestEnrollParticipantTwiceConflicts(t *testing.T) {
	links := &mockCourseLinkRepo{linked: map[string]bool{"course-1:p-1": true}}
	lookup := &mockParticipantLookup{participants: map[string]*models.ParticipantDetail{
		"p-1": {Participant: models.Participant{ID: "p-1"}},
	}}
	svc := newTestCourseService(&mockCourseRepo{courses: courseFixture()}, &mockLessonRepo{}, links, &mockCourseTrainerRepo{}, lookup)

	err := svc.EnrollParticipant(context.Background(), "course-1", "p-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, links.links)
}

func TestEnrollUnknownParticipantNotFound(t *testing.T) {
	svc := newTestCourseService(&mockCourseRepo{courses: courseFixture()}, &mockLessonRepo{}, &mockCourseLinkRepo{}, &mockCourseTrainerRepo{}, &mockParticipantLookup{})

	err := svc.EnrollParticipant(context.Background(), "course-1", "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRemoveParticipant(t *testing.T) {
	links := &mockCourseLinkRepo{linked: map[string]bool{"course-1:p-1": true}}
	svc := newTestCourseService(&mockCourseRepo{courses: courseFixture()}, &mockLessonRepo{}, links, &mockCourseTrainerRepo{}, &mockParticipantLookup{})

	err := svc.RemoveParticipant(context.Background(), "course-1", "p-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"course-1:p-1"}, links.unlinked)
}

func TestRemoveParticipantNotEnrolled(t *testing.T) {
	links := &mockCourseLinkRepo{linked: map[string]bool{}}
	svc := newTestCourseService(&mockCourseRepo{courses: courseFixture()}, &mockLessonRepo{}, links, &mockCourseTrainerRepo{}, &mockParticipantLookup{})

	err := svc.RemoveParticipant(context.Background(), "course-1", "p-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAssignTrainersValidatesEachID(t *testing.T) {
	trainers := &mockCourseTrainerRepo{trainers: map[string]*models.Trainer{
		"t-1": {ID: "t-1"},
	}}
	svc := newTestCourseService(&mockCourseRepo{courses: courseFixture()}, &mockLessonRepo{}, &mockCourseLinkRepo{}, trainers, &mockParticipantLookup{})

	err := svc.AssignTrainers(context.Background(), "course-1", AssignTrainersRequest{TrainerIDs: []string{"t-1", "ghost"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, trainers.replaced)
}

func TestAssignTrainers(t *testing.T) {
	trainers := &mockCourseTrainerRepo{trainers: map[string]*models.Trainer{
		"t-1": {ID: "t-1"},
		"t-2": {ID: "t-2"},
	}}
	svc := newTestCourseService(&mockCourseRepo{courses: courseFixture()}, &mockLessonRepo{}, &mockCourseLinkRepo{}, trainers, &mockParticipantLookup{})

	err := svc.AssignTrainers(context.Background(), "course-1", AssignTrainersRequest{TrainerIDs: []string{"t-1", "t-2"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"t-1", "t-2"}, trainers.replaced["course-1"])
}
