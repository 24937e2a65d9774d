package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/edusys/core"
	"github.com/trezcool/edusys/core/course"
)

var subjectColumns = map[string]string{
	"name":     "name",
	"grade":    "grade",
	"category": "category",
}

const courseSelect = `SELECT c.id, c.subject_id, c.teacher_id, c.description, c.schedule, c.room, c.created_at,
		s.name AS subject_name, s.grade AS subject_grade, s.category AS subject_category, u.name AS teacher_name
	FROM courses c
	JOIN subjects s ON s.id = c.subject_id
	JOIN users u ON u.id = c.teacher_id`

type courseRow struct {
	ID              string    `db:"id"`
	SubjectID       string    `db:"subject_id"`
	TeacherID       string    `db:"teacher_id"`
	Description     string    `db:"description"`
	Schedule        time.Time `db:"schedule"`
	Room            string    `db:"room"`
	CreatedAt       time.Time `db:"created_at"`
	SubjectName     string    `db:"subject_name"`
	SubjectGrade    int       `db:"subject_grade"`
	SubjectCategory string    `db:"subject_category"`
	TeacherName     string    `db:"teacher_name"`
}

type courseRepository struct {
	base
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(exec core.DBExecutor) *courseRepository {
	return &courseRepository{base{exec: exec}}
}

func (repo courseRepository) fromRow(row courseRow) course.Course {
	return course.Course{
		ID:          row.ID,
		SubjectID:   row.SubjectID,
		TeacherID:   row.TeacherID,
		Description: row.Description,
		Schedule:    row.Schedule.UTC(),
		Room:        row.Room,
		CreatedAt:   row.CreatedAt.UTC(),
		Subject: course.Subject{
			ID:       row.SubjectID,
			Name:     row.SubjectName,
			Grade:    row.SubjectGrade,
			Category: row.SubjectCategory,
		},
		TeacherName: row.TeacherName,
		StudentIDs:  []string{},
	}
}

func (repo courseRepository) CreateSubject(ctx context.Context, s course.Subject, exec ...core.DBExecutor) (course.Subject, error) {
	q := `INSERT INTO subjects (id, name, grade, category) VALUES (:id, :name, :grade, :category)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, s); err != nil {
		return course.Subject{}, trapPQErr(err, course.ErrSubjectExists, nil, "inserting subject")
	}
	return s, nil
}

func (repo courseRepository) GetSubject(ctx context.Context, id string, exec ...core.DBExecutor) (course.Subject, error) {
	ex := repo.getExec(exec)

	var s course.Subject
	q := ex.Rebind("SELECT id, name, grade, category FROM subjects WHERE id = ?")
	if err := sqlx.GetContext(ctx, ex, &s, q, id); err != nil {
		return course.Subject{}, trapNoRowsErr(err, course.ErrSubjectNotFound, "selecting subject")
	}
	return s, nil
}

func (repo courseRepository) QuerySubjects(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]course.Subject, error) {
	ex := repo.getExec(exec)

	subjects := make([]course.Subject, 0)
	q := "SELECT id, name, grade, category FROM subjects" + orderBy(ordering, subjectColumns, "name ASC, id ASC")
	if err := sqlx.SelectContext(ctx, ex, &subjects, q); err != nil {
		return nil, errors.Wrap(err, "selecting subjects")
	}
	return subjects, nil
}

// loadStudents fills the StudentIDs of courses with one query.
func (repo courseRepository) loadStudents(ctx context.Context, ex core.DBExecutor, courses []course.Course) error {
	if len(courses) == 0 {
		return nil
	}
	ids := make([]string, 0, len(courses))
	index := make(map[string]int, len(courses))
	for i, c := range courses {
		ids = append(ids, c.ID)
		index[c.ID] = i
	}

	var rows []struct {
		CourseID  string `db:"course_id"`
		StudentID string `db:"student_id"`
	}
	q := ex.Rebind("SELECT course_id, student_id FROM course_students WHERE course_id = ANY(?) ORDER BY enrolled_at, student_id")
	if err := sqlx.SelectContext(ctx, ex, &rows, q, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "selecting course students")
	}
	for _, row := range rows {
		i := index[row.CourseID]
		courses[i].StudentIDs = append(courses[i].StudentIDs, row.StudentID)
	}
	return nil
}

func (repo courseRepository) CreateCourse(ctx context.Context, c course.Course, exec ...core.DBExecutor) (course.Course, error) {
	ex := repo.getExec(exec)

	c.Schedule, c.CreatedAt = c.Schedule.UTC(), c.CreatedAt.UTC()
	q := `INSERT INTO courses (id, subject_id, teacher_id, description, schedule, room, created_at)
		VALUES (:id, :subject_id, :teacher_id, :description, :schedule, :room, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, ex, q, courseArgs(c)); err != nil {
		return course.Course{}, trapPQErr(err, nil, course.ErrSubjectNotFound, "inserting course")
	}
	return repo.GetCourse(ctx, c.ID, ex)
}

func courseArgs(c course.Course) map[string]interface{} {
	return map[string]interface{}{
		"id":          c.ID,
		"subject_id":  c.SubjectID,
		"teacher_id":  c.TeacherID,
		"description": c.Description,
		"schedule":    c.Schedule.UTC(),
		"room":        c.Room,
		"created_at":  c.CreatedAt.UTC(),
	}
}

func (repo courseRepository) GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (course.Course, error) {
	ex := repo.getExec(exec)

	var row courseRow
	if err := sqlx.GetContext(ctx, ex, &row, ex.Rebind(courseSelect+" WHERE c.id = ?"), id); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "selecting course")
	}
	courses := []course.Course{repo.fromRow(row)}
	if err := repo.loadStudents(ctx, ex, courses); err != nil {
		return course.Course{}, err
	}
	return courses[0], nil
}

func (repo courseRepository) QueryCourses(ctx context.Context, filter course.QueryFilter, exec ...core.DBExecutor) ([]course.Course, error) {
	ex := repo.getExec(exec)

	var w where
	if filter.TeacherID != "" {
		w.add("c.teacher_id = ?", filter.TeacherID)
	}
	if filter.StudentID != "" {
		w.add("EXISTS (SELECT 1 FROM course_students cs WHERE cs.course_id = c.id AND cs.student_id = ?)", filter.StudentID)
	}

	var rows []courseRow
	q := ex.Rebind(courseSelect + w.String() + " ORDER BY s.name, c.id")
	if err := sqlx.SelectContext(ctx, ex, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting courses")
	}

	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, repo.fromRow(row))
	}
	if err := repo.loadStudents(ctx, ex, courses); err != nil {
		return nil, err
	}
	return courses, nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, c course.Course, exec ...core.DBExecutor) (course.Course, error) {
	ex := repo.getExec(exec)

	q := `UPDATE courses SET subject_id = :subject_id, description = :description, schedule = :schedule, room = :room
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, ex, q, courseArgs(c))
	if err != nil {
		return course.Course{}, trapPQErr(err, nil, course.ErrSubjectNotFound, "updating course")
	}
	if err = mustAffect(res, course.ErrNotFound, "updating course"); err != nil {
		return course.Course{}, err
	}
	return repo.GetCourse(ctx, c.ID, ex)
}

func (repo courseRepository) DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error {
	ex := repo.getExec(exec)

	res, err := ex.ExecContext(ctx, ex.Rebind("DELETE FROM courses WHERE id = ?"), id)
	if err != nil {
		return trapPQErr(err, nil, course.ErrHasTasks, "deleting course")
	}
	return mustAffect(res, course.ErrNotFound, "deleting course")
}

func (repo courseRepository) HasTasks(ctx context.Context, courseID string, exec ...core.DBExecutor) (bool, error) {
	ex := repo.getExec(exec)

	var found bool
	q := ex.Rebind("SELECT EXISTS (SELECT 1 FROM tasks WHERE course_id = ?)")
	if err := sqlx.GetContext(ctx, ex, &found, q, courseID); err != nil {
		return false, errors.Wrap(err, "checking course tasks")
	}
	return found, nil
}

func (repo courseRepository) AddStudent(ctx context.Context, courseID, studentID string, exec ...core.DBExecutor) error {
	ex := repo.getExec(exec)

	q := ex.Rebind(`INSERT INTO course_students (course_id, student_id, enrolled_at) VALUES (?, ?, ?)
		ON CONFLICT (course_id, student_id) DO NOTHING`)
	if _, err := ex.ExecContext(ctx, q, courseID, studentID, time.Now().UTC()); err != nil {
		return trapPQErr(err, nil, course.ErrNotFound, "enrolling student")
	}
	return nil
}

func (repo courseRepository) RemoveStudent(ctx context.Context, courseID, studentID string, exec ...core.DBExecutor) (bool, error) {
	ex := repo.getExec(exec)

	q := ex.Rebind("DELETE FROM course_students WHERE course_id = ? AND student_id = ?")
	res, err := ex.ExecContext(ctx, q, courseID, studentID)
	if err != nil {
		return false, errors.Wrap(err, "removing student")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "removing student")
	}
	return n > 0, nil
}

type invitationRow struct {
	ID        string    `db:"id"`
	Token     string    `db:"token"`
	Email     string    `db:"email"`
	CourseID  string    `db:"course_id"`
	Accepted  bool      `db:"accepted"`
	CreatedAt time.Time `db:"created_at"`
}

func (row invitationRow) invitation() course.Invitation {
	return course.Invitation{
		ID:        row.ID,
		Token:     row.Token,
		Email:     row.Email,
		CourseID:  row.CourseID,
		Accepted:  row.Accepted,
		CreatedAt: row.CreatedAt.UTC(),
	}
}

func (repo courseRepository) CreateInvitation(ctx context.Context, inv course.Invitation, exec ...core.DBExecutor) (course.Invitation, error) {
	row := invitationRow(inv)
	row.CreatedAt = row.CreatedAt.UTC()
	q := `INSERT INTO invitations (id, token, email, course_id, accepted, created_at)
		VALUES (:id, :token, :email, :course_id, :accepted, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, row); err != nil {
		return course.Invitation{}, trapPQErr(err, nil, course.ErrNotFound, "inserting invitation")
	}
	return row.invitation(), nil
}

func (repo courseRepository) GetPendingInvitation(ctx context.Context, token string, exec ...core.DBExecutor) (course.Invitation, error) {
	ex := repo.getExec(exec)

	var row invitationRow
	q := "SELECT id, token, email, course_id, accepted, created_at FROM invitations WHERE token = ? AND NOT accepted"
	if inTx(ex) {
		q += " FOR UPDATE"
	}
	if err := sqlx.GetContext(ctx, ex, &row, ex.Rebind(q), token); err != nil {
		return course.Invitation{}, trapNoRowsErr(err, course.ErrInvitationNotFound, "selecting invitation")
	}
	return row.invitation(), nil
}

func (repo courseRepository) AcceptInvitation(ctx context.Context, id string, exec ...core.DBExecutor) error {
	ex := repo.getExec(exec)

	res, err := ex.ExecContext(ctx, ex.Rebind("UPDATE invitations SET accepted = TRUE WHERE id = ? AND NOT accepted"), id)
	if err != nil {
		return errors.Wrap(err, "accepting invitation")
	}
	return mustAffect(res, course.ErrInvitationNotFound, "accepting invitation")
}
