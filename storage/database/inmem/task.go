package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/edusys/core"
	"github.com/trezcool/edusys/core/task"
)

type taskRepository struct {
	db *DB
}

func NewTaskRepository(db *DB) task.Repository {
	return &taskRepository{db: db}
}

func (repo *taskRepository) CreateTask(_ context.Context, t task.Task, _ ...core.DBExecutor) (task.Task, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.tasks[t.ID] = t
	return t, nil
}

func (repo *taskRepository) GetTask(_ context.Context, id string, _ ...core.DBExecutor) (task.Task, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.tasks[id]; ok {
		return t, nil
	}
	return task.Task{}, task.ErrNotFound
}

func (repo *taskRepository) QueryTasks(_ context.Context, courseID string, _ ...core.DBExecutor) ([]task.Task, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	tasks := make([]task.Task, 0)
	for _, t := range repo.db.tasks {
		if t.CourseID == courseID {
			tasks = append(tasks, t)
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].Deadline.Equal(tasks[j].Deadline) {
			return tasks[i].Deadline.Before(tasks[j].Deadline)
		}
		return tasks[i].ID < tasks[j].ID
	})
	return tasks, nil
}

func (repo *taskRepository) UpdateTask(_ context.Context, t task.Task, _ ...core.DBExecutor) (task.Task, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.tasks[t.ID]; !ok {
		return task.Task{}, task.ErrNotFound
	}
	repo.db.tasks[t.ID] = t
	return t, nil
}

func (repo *taskRepository) DeleteTask(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.tasks[id]; !ok {
		return task.ErrNotFound
	}
	delete(repo.db.tasks, id)
	return nil
}

func (repo *taskRepository) CreateTaskFiles(_ context.Context, files []task.File, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, f := range files {
		repo.db.taskFiles[f.ID] = f
	}
	return nil
}

func (repo *taskRepository) QueryTaskFiles(_ context.Context, taskID string, _ ...core.DBExecutor) ([]task.File, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return filesOf(repo.db.taskFiles, taskID), nil
}

func (repo *taskRepository) DeleteTaskFiles(_ context.Context, taskID string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for id, f := range repo.db.taskFiles {
		if f.OwnerID == taskID {
			delete(repo.db.taskFiles, id)
		}
	}
	return nil
}

func filesOf(table map[string]task.File, ownerID string) []task.File {
	files := make([]task.File, 0)
	for _, f := range table {
		if f.OwnerID == ownerID {
			files = append(files, f)
		}
	}
	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].UploadDate.Equal(files[j].UploadDate) {
			return files[i].UploadDate.Before(files[j].UploadDate)
		}
		return files[i].FileName < files[j].FileName
	})
	return files
}

func (repo *taskRepository) CreateAssignments(_ context.Context, assignments []task.Assignment, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	pairs := make(map[[2]string]bool, len(repo.db.assignments)+len(assignments))
	for _, a := range repo.db.assignments {
		pairs[[2]string{a.TaskID, a.StudentID}] = true
	}
	for _, a := range assignments {
		pair := [2]string{a.TaskID, a.StudentID}
		if pairs[pair] {
			return task.ErrAlreadyAssigned
		}
		pairs[pair] = true
	}
	for _, a := range assignments {
		repo.db.assignments[a.ID] = a
	}
	return nil
}

// load fills the read only fields of a; the lock must be held.
func (repo *taskRepository) load(a task.Assignment) task.Assignment {
	student := repo.db.users[a.StudentID]
	a.StudentName = student.Name
	a.StudentUsername = student.Username
	a.TaskTitle = repo.db.tasks[a.TaskID].Title
	return a
}

func (repo *taskRepository) GetAssignment(_ context.Context, filter task.AssignmentFilter, _ ...core.DBExecutor) (task.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, a := range repo.db.assignments {
		if filter.ID != "" && a.ID != filter.ID {
			continue
		}
		if filter.TaskID != "" && a.TaskID != filter.TaskID {
			continue
		}
		if filter.StudentID != "" && a.StudentID != filter.StudentID {
			continue
		}
		return repo.load(a), nil
	}
	return task.Assignment{}, task.ErrAssignmentNotFound
}

func (repo *taskRepository) QueryAssignments(_ context.Context, query task.AssignmentQuery, _ ...core.DBExecutor) ([]task.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	assignments := make([]task.Assignment, 0)
	for _, a := range repo.db.assignments {
		if query.TaskID != "" && a.TaskID != query.TaskID {
			continue
		}
		if query.StudentID != "" && a.StudentID != query.StudentID {
			continue
		}
		if query.Statuses != nil && !hasStatus(query.Statuses, a.Status) {
			continue
		}
		assignments = append(assignments, repo.load(a))
	}
	sort.SliceStable(assignments, func(i, j int) bool {
		if assignments[i].StudentName != assignments[j].StudentName {
			return assignments[i].StudentName < assignments[j].StudentName
		}
		return assignments[i].ID < assignments[j].ID
	})
	return assignments, nil
}

func hasStatus(statuses []task.Status, s task.Status) bool {
	for _, status := range statuses {
		if status == s {
			return true
		}
	}
	return false
}

func (repo *taskRepository) UpdateAssignment(_ context.Context, a task.Assignment, _ ...core.DBExecutor) (task.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.assignments[a.ID]
	if !ok {
		return task.Assignment{}, task.ErrAssignmentNotFound
	}
	// task, student & assigned date never change
	a.TaskID, a.StudentID, a.AssignedDate = orig.TaskID, orig.StudentID, orig.AssignedDate
	repo.db.assignments[a.ID] = a
	return repo.load(a), nil
}

func (repo *taskRepository) DeleteAssignments(_ context.Context, ids []string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		delete(repo.db.assignments, id)
	}
	return nil
}

func (repo *taskRepository) MarkOverdue(_ context.Context, now time.Time, _ ...core.DBExecutor) ([]task.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	overdue := make([]task.Assignment, 0)
	for id, a := range repo.db.assignments {
		if a.Status != task.StatusPending {
			continue
		}
		t, ok := repo.db.tasks[a.TaskID]
		if !ok || !a.DueDate(t).Before(now) {
			continue
		}
		a.Status = task.StatusOverdue
		repo.db.assignments[id] = a
		overdue = append(overdue, repo.load(a))
	}
	return overdue, nil
}

func (repo *taskRepository) CreateSubmission(_ context.Context, s task.Submission, _ ...core.DBExecutor) (task.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.assignments[s.AssignmentID]; !ok {
		return task.Submission{}, task.ErrAssignmentNotFound
	}
	for _, other := range repo.db.submissions {
		if other.AssignmentID == s.AssignmentID {
			return task.Submission{}, task.ErrAlreadySubmitted
		}
	}
	files := s.Files
	s.Files = nil
	repo.db.submissions[s.ID] = s
	for _, f := range files {
		f.OwnerID = s.ID
		repo.db.submissionFiles[f.ID] = f
	}
	s.Files = filesOf(repo.db.submissionFiles, s.ID)
	return s, nil
}

func (repo *taskRepository) QuerySubmissions(_ context.Context, assignmentIDs []string, _ ...core.DBExecutor) ([]task.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	subs := make([]task.Submission, 0)
	for _, s := range repo.db.submissions {
		if contains(assignmentIDs, s.AssignmentID) {
			s.Files = filesOf(repo.db.submissionFiles, s.ID)
			subs = append(subs, s)
		}
	}
	sort.SliceStable(subs, func(i, j int) bool {
		if !subs[i].SubmissionDate.Equal(subs[j].SubmissionDate) {
			return subs[i].SubmissionDate.After(subs[j].SubmissionDate)
		}
		return subs[i].ID < subs[j].ID
	})
	return subs, nil
}

func (repo *taskRepository) DeleteSubmissions(_ context.Context, assignmentIDs []string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for id, s := range repo.db.submissions {
		if !contains(assignmentIDs, s.AssignmentID) {
			continue
		}
		for fid, f := range repo.db.submissionFiles {
			if f.OwnerID == id {
				delete(repo.db.submissionFiles, fid)
			}
		}
		delete(repo.db.submissions, id)
	}
	return nil
}

func (repo *taskRepository) QueryGrades(_ context.Context, filter task.GradeFilter, _ ...core.DBExecutor) ([]task.GradeEntry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	type row struct {
		entry    task.GradeEntry
		deadline time.Time
	}
	rows := make([]row, 0)
	for _, a := range repo.db.assignments {
		if a.Status != task.StatusGraded {
			continue
		}
		if filter.StudentID != "" && a.StudentID != filter.StudentID {
			continue
		}
		if filter.StudentIDs != nil && !contains(filter.StudentIDs, a.StudentID) {
			continue
		}
		t := repo.db.tasks[a.TaskID]
		if filter.CourseID != "" && t.CourseID != filter.CourseID {
			continue
		}
		c := repo.db.courses[t.CourseID]
		student := repo.db.users[a.StudentID]
		rows = append(rows, row{
			entry: task.GradeEntry{
				StudentID:       student.ID,
				StudentUsername: student.Username,
				StudentName:     student.Name,
				CourseID:        c.ID,
				CourseSubject:   repo.db.subjects[c.SubjectID].Name,
				TeacherName:     repo.db.userName(c.TeacherID),
				TaskTitle:       t.Title,
				Grade:           a.Grade,
			},
			deadline: t.Deadline,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].entry.CourseSubject != rows[j].entry.CourseSubject {
			return rows[i].entry.CourseSubject < rows[j].entry.CourseSubject
		}
		if !rows[i].deadline.Equal(rows[j].deadline) {
			return rows[i].deadline.Before(rows[j].deadline)
		}
		return rows[i].entry.TaskTitle < rows[j].entry.TaskTitle
	})

	entries := make([]task.GradeEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.entry)
	}
	return entries, nil
}
