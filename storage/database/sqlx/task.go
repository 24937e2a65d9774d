package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edusys/core"
	"github.com/trezcool/edusys/core/task"
)

const assignmentSelect = `SELECT a.id, a.task_id, a.student_id, a.status, a.assigned_date, a.personal_notes,
		a.teacher_feedback, a.time_spent, a.is_late, a.late_due_date, a.grade,
		u.name AS student_name, u.username AS student_username, t.title AS task_title
	FROM task_assignments a
	JOIN users u ON u.id = a.student_id
	JOIN tasks t ON t.id = a.task_id`

type taskRow struct {
	ID          string    `db:"id"`
	CourseID    string    `db:"course_id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Deadline    time.Time `db:"deadline"`
	AssignedBy  string    `db:"assigned_by"`
	CreatedAt   time.Time `db:"created_at"`
}

type fileRow struct {
	ID          string    `db:"id"`
	OwnerID     string    `db:"owner_id"`
	Path        string    `db:"path"`
	FileName    string    `db:"file_name"`
	ContentType string    `db:"content_type"`
	Size        int64     `db:"size"`
	UploadDate  time.Time `db:"upload_date"`
}

type assignmentRow struct {
	ID              string      `db:"id"`
	TaskID          string      `db:"task_id"`
	StudentID       string      `db:"student_id"`
	Status          string      `db:"status"`
	AssignedDate    time.Time   `db:"assigned_date"`
	PersonalNotes   string      `db:"personal_notes"`
	TeacherFeedback string      `db:"teacher_feedback"`
	TimeSpent       null.Int64  `db:"time_spent"`
	IsLate          bool        `db:"is_late"`
	LateDueDate     null.Time   `db:"late_due_date"`
	Grade           int         `db:"grade"`
	StudentName     null.String `db:"student_name"`
	StudentUsername null.String `db:"student_username"`
	TaskTitle       null.String `db:"task_title"`
}

type submissionRow struct {
	ID             string    `db:"id"`
	AssignmentID   string    `db:"assignment_id"`
	SubmissionDate time.Time `db:"submission_date"`
	Comments       string    `db:"comments"`
}

type taskRepository struct {
	base
}

var _ task.Repository = (*taskRepository)(nil) // interface compliance check

func NewTaskRepository(exec core.DBExecutor) *taskRepository {
	return &taskRepository{base{exec: exec}}
}

func (repo taskRepository) toTaskRow(t task.Task) taskRow {
	row := taskRow(t)
	row.Deadline, row.CreatedAt = t.Deadline.UTC(), t.CreatedAt.UTC()
	return row
}

func (repo taskRepository) fromTaskRow(row taskRow) task.Task {
	t := task.Task(row)
	t.Deadline, t.CreatedAt = row.Deadline.UTC(), row.CreatedAt.UTC()
	return t
}

func (repo taskRepository) toFileRows(files []task.File) []fileRow {
	rows := make([]fileRow, 0, len(files))
	for _, f := range files {
		row := fileRow(f)
		row.UploadDate = f.UploadDate.UTC()
		rows = append(rows, row)
	}
	return rows
}

func (repo taskRepository) fromFileRow(row fileRow) task.File {
	f := task.File(row)
	f.UploadDate = row.UploadDate.UTC()
	return f
}

func (repo taskRepository) toAssignmentRow(a task.Assignment) assignmentRow {
	row := assignmentRow{
		ID:              a.ID,
		TaskID:          a.TaskID,
		StudentID:       a.StudentID,
		Status:          string(a.Status),
		AssignedDate:    a.AssignedDate.UTC(),
		PersonalNotes:   a.PersonalNotes,
		TeacherFeedback: a.TeacherFeedback,
		TimeSpent:       null.Int64FromPtr(a.TimeSpent),
		IsLate:          a.IsLate,
		Grade:           a.Grade,
	}
	if a.LateDueDate != nil {
		row.LateDueDate = null.TimeFrom(a.LateDueDate.UTC())
	}
	return row
}

func (repo taskRepository) fromAssignmentRow(row assignmentRow) task.Assignment {
	a := task.Assignment{
		ID:              row.ID,
		TaskID:          row.TaskID,
		StudentID:       row.StudentID,
		Status:          task.Status(row.Status),
		AssignedDate:    row.AssignedDate.UTC(),
		PersonalNotes:   row.PersonalNotes,
		TeacherFeedback: row.TeacherFeedback,
		TimeSpent:       row.TimeSpent.Ptr(),
		IsLate:          row.IsLate,
		Grade:           row.Grade,
		StudentName:     row.StudentName.String,
		StudentUsername: row.StudentUsername.String,
		TaskTitle:       row.TaskTitle.String,
	}
	if row.LateDueDate.Valid {
		due := row.LateDueDate.Time.UTC()
		a.LateDueDate = &due
	}
	return a
}

func (repo taskRepository) CreateTask(ctx context.Context, t task.Task, exec ...core.DBExecutor) (task.Task, error) {
	row := repo.toTaskRow(t)
	q := `INSERT INTO tasks (id, course_id, title, description, deadline, assigned_by, created_at)
		VALUES (:id, :course_id, :title, :description, :deadline, :assigned_by, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, row); err != nil {
		return task.Task{}, errors.Wrap(err, "inserting task")
	}
	return repo.fromTaskRow(row), nil
}

func (repo taskRepository) GetTask(ctx context.Context, id string, exec ...core.DBExecutor) (task.Task, error) {
	ex := repo.getExec(exec)

	var row taskRow
	q := ex.Rebind("SELECT id, course_id, title, description, deadline, assigned_by, created_at FROM tasks WHERE id = ?")
	if err := sqlx.GetContext(ctx, ex, &row, q, id); err != nil {
		return task.Task{}, trapNoRowsErr(err, task.ErrNotFound, "selecting task")
	}
	return repo.fromTaskRow(row), nil
}

func (repo taskRepository) QueryTasks(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]task.Task, error) {
	ex := repo.getExec(exec)

	var rows []taskRow
	q := ex.Rebind(`SELECT id, course_id, title, description, deadline, assigned_by, created_at FROM tasks
		WHERE course_id = ? ORDER BY deadline, id`)
	if err := sqlx.SelectContext(ctx, ex, &rows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "selecting tasks")
	}

	tasks := make([]task.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, repo.fromTaskRow(row))
	}
	return tasks, nil
}

func (repo taskRepository) UpdateTask(ctx context.Context, t task.Task, exec ...core.DBExecutor) (task.Task, error) {
	row := repo.toTaskRow(t)
	q := `UPDATE tasks SET title = :title, description = :description, deadline = :deadline WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, row)
	if err != nil {
		return task.Task{}, errors.Wrap(err, "updating task")
	}
	if err = mustAffect(res, task.ErrNotFound, "updating task"); err != nil {
		return task.Task{}, err
	}
	return repo.fromTaskRow(row), nil
}

func (repo taskRepository) DeleteTask(ctx context.Context, id string, exec ...core.DBExecutor) error {
	ex := repo.getExec(exec)

	res, err := ex.ExecContext(ctx, ex.Rebind("DELETE FROM tasks WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting task")
	}
	return mustAffect(res, task.ErrNotFound, "deleting task")
}

func (repo taskRepository) CreateTaskFiles(ctx context.Context, files []task.File, exec ...core.DBExecutor) error {
	if len(files) == 0 {
		return nil
	}
	q := `INSERT INTO task_files (id, task_id, path, file_name, content_type, size, upload_date)
		VALUES (:id, :owner_id, :path, :file_name, :content_type, :size, :upload_date)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, repo.toFileRows(files)); err != nil {
		return trapPQErr(err, nil, task.ErrNotFound, "inserting task files")
	}
	return nil
}

func (repo taskRepository) QueryTaskFiles(ctx context.Context, taskID string, exec ...core.DBExecutor) ([]task.File, error) {
	ex := repo.getExec(exec)

	var rows []fileRow
	q := ex.Rebind(`SELECT id, task_id AS owner_id, path, file_name, content_type, size, upload_date FROM task_files
		WHERE task_id = ? ORDER BY upload_date, file_name`)
	if err := sqlx.SelectContext(ctx, ex, &rows, q, taskID); err != nil {
		return nil, errors.Wrap(err, "selecting task files")
	}

	files := make([]task.File, 0, len(rows))
	for _, row := range rows {
		files = append(files, repo.fromFileRow(row))
	}
	return files, nil
}

func (repo taskRepository) DeleteTaskFiles(ctx context.Context, taskID string, exec ...core.DBExecutor) error {
	ex := repo.getExec(exec)
	if _, err := ex.ExecContext(ctx, ex.Rebind("DELETE FROM task_files WHERE task_id = ?"), taskID); err != nil {
		return errors.Wrap(err, "deleting task files")
	}
	return nil
}

func (repo taskRepository) CreateAssignments(ctx context.Context, assignments []task.Assignment, exec ...core.DBExecutor) error {
	if len(assignments) == 0 {
		return nil
	}
	rows := make([]assignmentRow, 0, len(assignments))
	for _, a := range assignments {
		rows = append(rows, repo.toAssignmentRow(a))
	}
	q := `INSERT INTO task_assignments (id, task_id, student_id, status, assigned_date, personal_notes,
			teacher_feedback, time_spent, is_late, late_due_date, grade)
		VALUES (:id, :task_id, :student_id, :status, :assigned_date, :personal_notes,
			:teacher_feedback, :time_spent, :is_late, :late_due_date, :grade)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, rows); err != nil {
		return trapPQErr(err, task.ErrAlreadyAssigned, nil, "inserting assignments")
	}
	return nil
}

func (repo taskRepository) GetAssignment(ctx context.Context, filter task.AssignmentFilter, exec ...core.DBExecutor) (task.Assignment, error) {
	ex := repo.getExec(exec)

	var w where
	if filter.ID != "" {
		w.add("a.id = ?", filter.ID)
	}
	if filter.TaskID != "" {
		w.add("a.task_id = ?", filter.TaskID)
	}
	if filter.StudentID != "" {
		w.add("a.student_id = ?", filter.StudentID)
	}

	q := assignmentSelect + w.String() + " LIMIT 1"
	if inTx(ex) {
		q += " FOR UPDATE OF a"
	}

	var row assignmentRow
	if err := sqlx.GetContext(ctx, ex, &row, ex.Rebind(q), w.args...); err != nil {
		return task.Assignment{}, trapNoRowsErr(err, task.ErrAssignmentNotFound, "selecting assignment")
	}
	return repo.fromAssignmentRow(row), nil
}

func (repo taskRepository) QueryAssignments(ctx context.Context, query task.AssignmentQuery, exec ...core.DBExecutor) ([]task.Assignment, error) {
	ex := repo.getExec(exec)

	var w where
	if query.TaskID != "" {
		w.add("a.task_id = ?", query.TaskID)
	}
	if query.StudentID != "" {
		w.add("a.student_id = ?", query.StudentID)
	}
	if query.Statuses != nil {
		statuses := make([]string, 0, len(query.Statuses))
		for _, s := range query.Statuses {
			statuses = append(statuses, string(s))
		}
		w.add("a.status = ANY(?)", pq.Array(statuses))
	}

	var rows []assignmentRow
	q := ex.Rebind(assignmentSelect + w.String() + " ORDER BY u.name, a.id")
	if err := sqlx.SelectContext(ctx, ex, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting assignments")
	}

	assignments := make([]task.Assignment, 0, len(rows))
	for _, row := range rows {
		assignments = append(assignments, repo.fromAssignmentRow(row))
	}
	return assignments, nil
}

func (repo taskRepository) UpdateAssignment(ctx context.Context, a task.Assignment, exec ...core.DBExecutor) (task.Assignment, error) {
	ex := repo.getExec(exec)

	q := `UPDATE task_assignments SET status = :status, personal_notes = :personal_notes,
			teacher_feedback = :teacher_feedback, time_spent = :time_spent, is_late = :is_late,
			late_due_date = :late_due_date, grade = :grade
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, ex, q, repo.toAssignmentRow(a))
	if err != nil {
		return task.Assignment{}, errors.Wrap(err, "updating assignment")
	}
	if err = mustAffect(res, task.ErrAssignmentNotFound, "updating assignment"); err != nil {
		return task.Assignment{}, err
	}
	return repo.GetAssignment(ctx, task.AssignmentFilter{ID: a.ID}, ex)
}

func (repo taskRepository) DeleteAssignments(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	ex := repo.getExec(exec)
	if _, err := ex.ExecContext(ctx, ex.Rebind("DELETE FROM task_assignments WHERE id = ANY(?)"), pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting assignments")
	}
	return nil
}

func (repo taskRepository) MarkOverdue(ctx context.Context, now time.Time, exec ...core.DBExecutor) ([]task.Assignment, error) {
	ex := repo.getExec(exec)

	var ids []string
	q := ex.Rebind(`UPDATE task_assignments a SET status = ?
		FROM tasks t
		WHERE t.id = a.task_id AND a.status = ? AND COALESCE(a.late_due_date, t.deadline) < ?
		RETURNING a.id`)
	if err := sqlx.SelectContext(ctx, ex, &ids, q, string(task.StatusOverdue), string(task.StatusPending), now.UTC()); err != nil {
		return nil, errors.Wrap(err, "marking overdue assignments")
	}
	if len(ids) == 0 {
		return []task.Assignment{}, nil
	}

	var rows []assignmentRow
	q = ex.Rebind(assignmentSelect + " WHERE a.id = ANY(?) ORDER BY u.name, a.id")
	if err := sqlx.SelectContext(ctx, ex, &rows, q, pq.Array(ids)); err != nil {
		return nil, errors.Wrap(err, "selecting overdue assignments")
	}

	overdue := make([]task.Assignment, 0, len(rows))
	for _, row := range rows {
		overdue = append(overdue, repo.fromAssignmentRow(row))
	}
	return overdue, nil
}

func (repo taskRepository) CreateSubmission(ctx context.Context, s task.Submission, exec ...core.DBExecutor) (task.Submission, error) {
	ex := repo.getExec(exec)

	s.SubmissionDate = s.SubmissionDate.UTC()
	row := submissionRow{ID: s.ID, AssignmentID: s.AssignmentID, SubmissionDate: s.SubmissionDate, Comments: s.Comments}
	q := `INSERT INTO task_submissions (id, assignment_id, submission_date, comments)
		VALUES (:id, :assignment_id, :submission_date, :comments)`
	if _, err := sqlx.NamedExecContext(ctx, ex, q, row); err != nil {
		return task.Submission{}, trapPQErr(err, task.ErrAlreadySubmitted, task.ErrAssignmentNotFound, "inserting submission")
	}

	files := make([]task.File, 0, len(s.Files))
	for _, f := range s.Files {
		f.OwnerID = s.ID
		files = append(files, f)
	}
	if len(files) > 0 {
		q = `INSERT INTO submission_files (id, submission_id, path, file_name, content_type, size, upload_date)
			VALUES (:id, :owner_id, :path, :file_name, :content_type, :size, :upload_date)`
		if _, err := sqlx.NamedExecContext(ctx, ex, q, repo.toFileRows(files)); err != nil {
			return task.Submission{}, errors.Wrap(err, "inserting submission files")
		}
	}
	s.Files = files
	return s, nil
}

func (repo taskRepository) QuerySubmissions(ctx context.Context, assignmentIDs []string, exec ...core.DBExecutor) ([]task.Submission, error) {
	ex := repo.getExec(exec)

	var rows []submissionRow
	q := ex.Rebind(`SELECT id, assignment_id, submission_date, comments FROM task_submissions
		WHERE assignment_id = ANY(?) ORDER BY submission_date DESC, id`)
	if err := sqlx.SelectContext(ctx, ex, &rows, q, pq.Array(assignmentIDs)); err != nil {
		return nil, errors.Wrap(err, "selecting submissions")
	}

	subs := make([]task.Submission, 0, len(rows))
	if len(rows) == 0 {
		return subs, nil
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	var fileRows []fileRow
	q = ex.Rebind(`SELECT id, submission_id AS owner_id, path, file_name, content_type, size, upload_date
		FROM submission_files WHERE submission_id = ANY(?) ORDER BY upload_date, file_name`)
	if err := sqlx.SelectContext(ctx, ex, &fileRows, q, pq.Array(ids)); err != nil {
		return nil, errors.Wrap(err, "selecting submission files")
	}
	files := make(map[string][]task.File, len(rows))
	for _, fr := range fileRows {
		files[fr.OwnerID] = append(files[fr.OwnerID], repo.fromFileRow(fr))
	}

	for _, row := range rows {
		sub := task.Submission{
			ID:             row.ID,
			AssignmentID:   row.AssignmentID,
			SubmissionDate: row.SubmissionDate.UTC(),
			Comments:       row.Comments,
			Files:          files[row.ID],
		}
		if sub.Files == nil {
			sub.Files = []task.File{}
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func (repo taskRepository) DeleteSubmissions(ctx context.Context, assignmentIDs []string, exec ...core.DBExecutor) error {
	ex := repo.getExec(exec)

	// submission files go with their submission (ON DELETE CASCADE)
	q := ex.Rebind("DELETE FROM task_submissions WHERE assignment_id = ANY(?)")
	if _, err := ex.ExecContext(ctx, q, pq.Array(assignmentIDs)); err != nil {
		return errors.Wrap(err, "deleting submissions")
	}
	return nil
}

type gradeRow struct {
	StudentID       string `db:"student_id"`
	StudentUsername string `db:"student_username"`
	StudentName     string `db:"student_name"`
	CourseID        string `db:"course_id"`
	CourseSubject   string `db:"course_subject"`
	TeacherName     string `db:"teacher_name"`
	TaskTitle       string `db:"task_title"`
	Grade           int    `db:"grade"`
}

func (repo taskRepository) QueryGrades(ctx context.Context, filter task.GradeFilter, exec ...core.DBExecutor) ([]task.GradeEntry, error) {
	ex := repo.getExec(exec)

	var w where
	w.add("a.status = ?", string(task.StatusGraded))
	if filter.StudentID != "" {
		w.add("a.student_id = ?", filter.StudentID)
	}
	if filter.StudentIDs != nil {
		w.add("a.student_id = ANY(?)", pq.Array(filter.StudentIDs))
	}
	if filter.CourseID != "" {
		w.add("t.course_id = ?", filter.CourseID)
	}

	var rows []gradeRow
	q := ex.Rebind(`SELECT u.id AS student_id, u.username AS student_username, u.name AS student_name,
			c.id AS course_id, s.name AS course_subject, tu.name AS teacher_name, t.title AS task_title, a.grade
		FROM task_assignments a
		JOIN tasks t ON t.id = a.task_id
		JOIN courses c ON c.id = t.course_id
		JOIN subjects s ON s.id = c.subject_id
		JOIN users u ON u.id = a.student_id
		JOIN users tu ON tu.id = c.teacher_id` + w.String() + `
		ORDER BY s.name, t.deadline, t.title`)
	if err := sqlx.SelectContext(ctx, ex, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting grades")
	}

	entries := make([]task.GradeEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, task.GradeEntry(row))
	}
	return entries, nil
}
