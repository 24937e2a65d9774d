package course

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/edusys/core"
	"github.com/trezcool/edusys/core/user"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("course")
	ErrSubjectNotFound    = core.NewNotFoundError("subject")
	ErrSubjectExists      = core.NewConflictError("a subject with this name, grade and category already exists")
	ErrHasTasks           = core.NewConflictError("course has tasks and cannot be deleted")
	ErrStudentNotEnrolled = core.NewValidationError(errors.New("Student not enrolled in this course"))
	ErrProfileForbidden   = core.NewAuthorizationError("You are not authorized to view this profile.")
)

var subjectOrderings = map[string]bool{"name": true, "grade": true, "category": true}

type (
	Repository interface {
		// CreateSubject returns ErrSubjectExists when (name, grade, category) is taken.
		CreateSubject(ctx context.Context, s Subject, exec ...core.DBExecutor) (Subject, error)
		GetSubject(ctx context.Context, id string, exec ...core.DBExecutor) (Subject, error)
		QuerySubjects(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Subject, error)

		CreateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		// GetCourse loads the course along with its subject, teacher name and students.
		GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (Course, error)
		// QueryCourses returns the courses matching every set filter field, ordered by subject name.
		QueryCourses(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Course, error)
		UpdateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error
		HasTasks(ctx context.Context, courseID string, exec ...core.DBExecutor) (bool, error)

		// AddStudent enrolls studentID; enrolling twice is a no-op.
		AddStudent(ctx context.Context, courseID, studentID string, exec ...core.DBExecutor) error
		// RemoveStudent reports whether studentID was enrolled.
		RemoveStudent(ctx context.Context, courseID, studentID string, exec ...core.DBExecutor) (bool, error)

		CreateInvitation(ctx context.Context, inv Invitation, exec ...core.DBExecutor) (Invitation, error)
		// GetPendingInvitation returns ErrInvitationNotFound unless token belongs to an unaccepted invitation.
		GetPendingInvitation(ctx context.Context, token string, exec ...core.DBExecutor) (Invitation, error)
		// AcceptInvitation flags a pending invitation as accepted; ErrInvitationNotFound otherwise.
		AcceptInvitation(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	// UserStore is the part of user.Service courses rely on.
	UserStore interface {
		GetByID(ctx context.Context, id string) (user.User, error)
		GetByIDs(ctx context.Context, ids []string) ([]user.User, error)
		GetOrCreateByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (user.User, bool, error)
	}

	Service struct {
		db      core.DB
		repo    Repository
		users   UserStore
		mailSvc core.EmailService
		events  core.EventPublisher
	}
)

func NewService(db core.DB, repo Repository, users UserStore, mailSvc core.EmailService, events core.EventPublisher) *Service {
	return &Service{db: db, repo: repo, users: users, mailSvc: mailSvc, events: events}
}

func (svc *Service) ListSubjects(ctx context.Context, caller user.User, ordering ...core.DBOrdering) ([]Subject, error) {
	if err := user.Authorize(caller, user.CapManageSubjects); err != nil {
		return nil, err
	}
	ords := make([]core.DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		if subjectOrderings[ord.Field] {
			ords = append(ords, ord)
		}
	}
	if len(ords) == 0 {
		ords = append(ords, core.DBOrdering{Field: "grade", Ascending: true})
	}
	return svc.repo.QuerySubjects(ctx, ords)
}

// CreateSubject stores a new subject; ns is expected to be validated.
func (svc *Service) CreateSubject(ctx context.Context, caller user.User, ns NewSubject) (Subject, error) {
	if err := user.Authorize(caller, user.CapManageSubjects); err != nil {
		return Subject{}, err
	}
	ns.Clean()
	return svc.repo.CreateSubject(ctx, Subject{
		ID:       uuid.NewString(),
		Name:     ns.Name,
		Grade:    ns.Grade,
		Category: ns.Category,
	})
}

// Create stores a new course taught by caller; nc is expected to be validated.
func (svc *Service) Create(ctx context.Context, caller user.User, nc NewCourse) (Course, error) {
	if err := user.Authorize(caller, user.CapCreateCourse); err != nil {
		return Course{}, err
	}
	if _, err := svc.repo.GetSubject(ctx, nc.SubjectID); err != nil {
		return Course{}, err
	}

	nc.Clean()
	now := time.Now().UTC()
	schedule := nc.Schedule
	if schedule.IsZero() {
		schedule = now
	}
	return svc.repo.CreateCourse(ctx, Course{
		ID:          uuid.NewString(),
		SubjectID:   nc.SubjectID,
		TeacherID:   caller.ID,
		Description: nc.Description,
		Schedule:    schedule.UTC(),
		Room:        nc.Room,
		CreatedAt:   now,
	})
}

// ListForUser returns the courses taught by a teacher, or attended by a student.
func (svc *Service) ListForUser(ctx context.Context, caller user.User) ([]Course, error) {
	switch {
	case caller.IsTeacher():
		return svc.repo.QueryCourses(ctx, QueryFilter{TeacherID: caller.ID})
	case caller.IsStudent():
		return svc.repo.QueryCourses(ctx, QueryFilter{StudentID: caller.ID})
	}
	return nil, core.ErrPermissionDenied
}

// Get returns the course if caller is one of its members.
func (svc *Service) Get(ctx context.Context, caller user.User, id string) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !c.HasMember(caller.ID) && !caller.Can(user.CapManageUsers) {
		return Course{}, core.ErrPermissionDenied
	}
	return c, nil
}

// GetOwned returns the course if caller teaches it.
func (svc *Service) GetOwned(ctx context.Context, caller user.User, id string) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !c.IsTeacher(caller.ID) {
		return Course{}, core.ErrPermissionDenied
	}
	return c, nil
}

// Update applies uc to a course taught by caller; uc is expected to be validated.
func (svc *Service) Update(ctx context.Context, caller user.User, id string, uc UpdateCourse) (Course, error) {
	c, err := svc.GetOwned(ctx, caller, id)
	if err != nil {
		return Course{}, err
	}

	if subjectID := core.CleanString(uc.SubjectID); subjectID != "" && subjectID != c.SubjectID {
		if _, err = svc.repo.GetSubject(ctx, subjectID); err != nil {
			return Course{}, err
		}
		c.SubjectID = subjectID
	}
	if desc := core.CleanString(uc.Description); desc != "" {
		c.Description = desc
	}
	if room := core.CleanString(uc.Room); room != "" {
		c.Room = room
	}
	if uc.Schedule != nil {
		c.Schedule = uc.Schedule.UTC()
	}
	return svc.repo.UpdateCourse(ctx, c)
}

// Delete removes a course taught by caller. Courses still holding tasks are kept.
func (svc *Service) Delete(ctx context.Context, caller user.User, id string) error {
	if _, err := svc.GetOwned(ctx, caller, id); err != nil {
		return err
	}
	return core.RunInTx(ctx, svc.db, func(exec core.DBExecutor) error {
		hasTasks, err := svc.repo.HasTasks(ctx, id, exec)
		if err != nil {
			return err
		}
		if hasTasks {
			return ErrHasTasks
		}
		return svc.repo.DeleteCourse(ctx, id, exec)
	})
}

func (svc *Service) Detail(ctx context.Context, caller user.User, id string) (Detail, error) {
	c, err := svc.Get(ctx, caller, id)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Course: c, TeacherName: c.TeacherName, SubjectName: c.Subject.Name}, nil
}

func (svc *Service) Participants(ctx context.Context, caller user.User, id string) (Participants, error) {
	c, err := svc.Get(ctx, caller, id)
	if err != nil {
		return Participants{}, err
	}

	students, err := svc.users.GetByIDs(ctx, c.StudentIDs)
	if err != nil {
		return Participants{}, err
	}
	sort.Slice(students, func(i, j int) bool { return students[i].Name < students[j].Name })

	parts := Participants{
		Teacher:  Participant{ID: c.TeacherID, Name: c.TeacherName},
		Students: make([]Participant, 0, len(students)),
	}
	for _, s := range students {
		parts.Students = append(parts.Students, Participant{ID: s.ID, Name: s.Name})
	}
	return parts, nil
}

// Students returns the enrolled users having the student role.
func (svc *Service) Students(ctx context.Context, c Course) ([]user.User, error) {
	users, err := svc.users.GetByIDs(ctx, c.StudentIDs)
	if err != nil {
		return nil, err
	}
	students := make([]user.User, 0, len(users))
	for _, u := range users {
		if u.IsStudent() {
			students = append(students, u)
		}
	}
	return students, nil
}

func (svc *Service) RemoveStudent(ctx context.Context, caller user.User, courseID, studentID string) error {
	if _, err := svc.GetOwned(ctx, caller, courseID); err != nil {
		return err
	}
	removed, err := svc.repo.RemoveStudent(ctx, courseID, studentID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrStudentNotEnrolled
	}
	return nil
}

func (svc *Service) coursesOf(ctx context.Context, usr user.User) ([]Course, error) {
	if usr.IsStudent() {
		return svc.repo.QueryCourses(ctx, QueryFilter{StudentID: usr.ID})
	}
	return svc.repo.QueryCourses(ctx, QueryFilter{TeacherID: usr.ID})
}

// Profile returns the profile of userID, visible to the user themself and to anyone sharing a course with them.
func (svc *Service) Profile(ctx context.Context, caller user.User, userID string) (Profile, error) {
	owner, err := svc.users.GetByID(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	ownerCourses, err := svc.coursesOf(ctx, owner)
	if err != nil {
		return Profile{}, err
	}

	if caller.ID != owner.ID && !caller.Can(user.CapManageUsers) {
		callerCourses, err := svc.coursesOf(ctx, caller)
		if err != nil {
			return Profile{}, err
		}
		if !shareCourse(callerCourses, ownerCourses) {
			return Profile{}, ErrProfileForbidden
		}
	}

	return Profile{
		ID:       owner.ID,
		FullName: owner.Name,
		Email:    owner.Email,
		Role:     owner.RoleName(),
		Courses:  ownerCourses,
	}, nil
}

func shareCourse(a, b []Course) bool {
	ids := make(map[string]struct{}, len(a))
	for _, c := range a {
		ids[c.ID] = struct{}{}
	}
	for _, c := range b {
		if _, ok := ids[c.ID]; ok {
			return true
		}
	}
	return false
}
