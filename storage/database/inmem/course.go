package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/edusys/core"
	"github.com/trezcool/edusys/core/course"
)

type courseRepository struct {
	db *DB
}

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateSubject(_ context.Context, s course.Subject, _ ...core.DBExecutor) (course.Subject, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, subj := range repo.db.subjects {
		if strings.EqualFold(subj.Name, s.Name) && subj.Grade == s.Grade && strings.EqualFold(subj.Category, s.Category) {
			return course.Subject{}, course.ErrSubjectExists
		}
	}
	repo.db.subjects[s.ID] = s
	return s, nil
}

func (repo *courseRepository) GetSubject(_ context.Context, id string, _ ...core.DBExecutor) (course.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.subjects[id]; ok {
		return s, nil
	}
	return course.Subject{}, course.ErrSubjectNotFound
}

func (repo *courseRepository) QuerySubjects(_ context.Context, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]course.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	subjects := make([]course.Subject, 0, len(repo.db.subjects))
	for _, s := range repo.db.subjects {
		subjects = append(subjects, s)
	}
	sort.SliceStable(subjects, func(i, j int) bool {
		a, b := subjects[i], subjects[j]
		for _, ord := range ordering {
			var less, greater bool
			switch ord.Field {
			case "grade":
				less, greater = a.Grade < b.Grade, a.Grade > b.Grade
			case "category":
				less, greater = a.Category < b.Category, a.Category > b.Category
			default:
				less, greater = a.Name < b.Name, a.Name > b.Name
			}
			if !less && !greater {
				continue
			}
			if ord.Ascending {
				return less
			}
			return greater
		}
		return a.Name < b.Name
	})
	return subjects, nil
}

// load fills the read only fields of c; the lock must be held.
func (repo *courseRepository) load(c course.Course) course.Course {
	c.Subject = repo.db.subjects[c.SubjectID]
	c.TeacherName = repo.db.userName(c.TeacherID)
	c.StudentIDs = append([]string{}, repo.db.enrollments[c.ID]...)
	return c
}

func (repo *courseRepository) CreateCourse(_ context.Context, c course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.subjects[c.SubjectID]; !ok {
		return course.Course{}, course.ErrSubjectNotFound
	}
	c.StudentIDs = nil
	repo.db.courses[c.ID] = c
	return repo.load(c), nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.courses[id]; ok {
		return repo.load(c), nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter course.QueryFilter, _ ...core.DBExecutor) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := make([]course.Course, 0)
	for _, c := range repo.db.courses {
		if filter.TeacherID != "" && c.TeacherID != filter.TeacherID {
			continue
		}
		if filter.StudentID != "" && !contains(repo.db.enrollments[c.ID], filter.StudentID) {
			continue
		}
		courses = append(courses, repo.load(c))
	}
	sort.SliceStable(courses, func(i, j int) bool {
		if courses[i].Subject.Name != courses[j].Subject.Name {
			return courses[i].Subject.Name < courses[j].Subject.Name
		}
		return courses[i].ID < courses[j].ID
	})
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, c course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[c.ID]; !ok {
		return course.Course{}, course.ErrNotFound
	}
	if _, ok := repo.db.subjects[c.SubjectID]; !ok {
		return course.Course{}, course.ErrSubjectNotFound
	}
	c.StudentIDs = nil
	repo.db.courses[c.ID] = c
	return repo.load(c), nil
}

func (repo *courseRepository) DeleteCourse(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return course.ErrNotFound
	}
	delete(repo.db.courses, id)
	delete(repo.db.enrollments, id)
	for invID, inv := range repo.db.invitations {
		if inv.CourseID == id {
			delete(repo.db.invitations, invID)
		}
	}
	for annID, ann := range repo.db.announcements {
		if ann.CourseID == id {
			repo.db.deleteAnnouncement(annID)
		}
	}
	return nil
}

func (repo *courseRepository) HasTasks(_ context.Context, courseID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, t := range repo.db.tasks {
		if t.CourseID == courseID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *courseRepository) AddStudent(_ context.Context, courseID, studentID string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[courseID]; !ok {
		return course.ErrNotFound
	}
	if !contains(repo.db.enrollments[courseID], studentID) {
		repo.db.enrollments[courseID] = append(repo.db.enrollments[courseID], studentID)
	}
	return nil
}

func (repo *courseRepository) RemoveStudent(_ context.Context, courseID, studentID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	students := repo.db.enrollments[courseID]
	for i, id := range students {
		if id == studentID {
			repo.db.enrollments[courseID] = append(students[:i:i], students[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (repo *courseRepository) CreateInvitation(_ context.Context, inv course.Invitation, _ ...core.DBExecutor) (course.Invitation, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[inv.CourseID]; !ok {
		return course.Invitation{}, course.ErrNotFound
	}
	repo.db.invitations[inv.ID] = inv
	return inv, nil
}

func (repo *courseRepository) GetPendingInvitation(_ context.Context, token string, _ ...core.DBExecutor) (course.Invitation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, inv := range repo.db.invitations {
		if inv.Token == token && !inv.Accepted {
			return inv, nil
		}
	}
	return course.Invitation{}, course.ErrInvitationNotFound
}

func (repo *courseRepository) AcceptInvitation(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	inv, ok := repo.db.invitations[id]
	if !ok || inv.Accepted {
		return course.ErrInvitationNotFound
	}
	inv.Accepted = true
	repo.db.invitations[id] = inv
	return nil
}
