package task

import (
	"context"
	"fmt"
	"io"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/edusys/core"
	"github.com/trezcool/edusys/core/course"
	"github.com/trezcool/edusys/core/user"
)

var (
	// errors
	ErrNotFound            = core.NewNotFoundError("task")
	ErrAssignmentNotFound  = core.NewNotFoundError("assignment")
	ErrSubmissionNotFound  = core.NewNotFoundError("submission")
	ErrFileNotFound        = core.NewNotFoundError("file")
	ErrAlreadySubmitted    = core.NewConflictError("task already submitted")
	ErrAlreadyAssigned     = core.NewConflictError("task already assigned to this student")
	ErrNoSubmission        = core.NewConflictError("assignment has no submission to grade")
	ErrGradeRequired       = core.NewValidationError(errors.New("Grade and feedback are required."))
	ErrLateDueDateRequired = core.NewValidationError(errors.New("late_due_date is required."))
	ErrInvalidDate         = core.NewValidationError(errors.New("Invalid date format. Use ISO 8601 format (YYYY-MM-DDTHH:MM:SSZ)."))
)

const deadlineLayout = "2006-01-02 15:04 MST"

// isoDateTime is an ISO 8601 date and time with an optional fraction of second and zone, e.g.
// 2021-05-04T13:30:00Z, 2021-05-04 13:30, 2021-05-04T15:30:00.5+0200 or 2021-05-04T15:30+02.
var isoDateTime = regexp.MustCompile(
	`^(\d{4})-(\d{1,2})-(\d{1,2})[T ](\d{1,2}):(\d{1,2})` +
		`(?::(\d{1,2})(?:[.,](\d{1,6})\d{0,6})?)?` +
		`\s*(Z|[+-]\d{2}(?::?\d{2})?)?$`,
)

// ParseTime parses an ISO 8601 date-time, returning ErrInvalidDate when it is not one.
// A date-time without zone is read as UTC.
func ParseTime(raw string) (time.Time, error) {
	m := isoDateTime.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return time.Time{}, ErrInvalidDate
	}

	num := func(s string) int {
		n, _ := strconv.Atoi(s)
		return n
	}
	year, month, day := num(m[1]), num(m[2]), num(m[3])
	hour, minute, sec := num(m[4]), num(m[5]), num(m[6])
	nsec := 0
	if m[7] != "" {
		nsec = num((m[7] + "00000")[:6]) * 1000
	}

	loc := time.UTC
	if zone := m[8]; zone != "" && zone != "Z" {
		digits := strings.ReplaceAll(zone[1:], ":", "")
		offset := num(digits[:2]) * 3600
		if len(digits) == 4 {
			offset += num(digits[2:]) * 60
		}
		if zone[0] == '-' {
			offset = -offset
		}
		loc = time.FixedZone(zone, offset)
	}

	t := time.Date(year, time.Month(month), day, hour, minute, sec, nsec, loc)
	// time.Date normalizes out of range values, e.g. February 30th
	if t.Year() != year || int(t.Month()) != month || t.Day() != day ||
		t.Hour() != hour || t.Minute() != minute || t.Second() != sec {
		return time.Time{}, ErrInvalidDate
	}
	return t.UTC(), nil
}

type (
	Repository interface {
		CreateTask(ctx context.Context, t Task, exec ...core.DBExecutor) (Task, error)
		GetTask(ctx context.Context, id string, exec ...core.DBExecutor) (Task, error)
		// QueryTasks returns the tasks of a course ordered by deadline.
		QueryTasks(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]Task, error)
		UpdateTask(ctx context.Context, t Task, exec ...core.DBExecutor) (Task, error)
		DeleteTask(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateTaskFiles(ctx context.Context, files []File, exec ...core.DBExecutor) error
		QueryTaskFiles(ctx context.Context, taskID string, exec ...core.DBExecutor) ([]File, error)
		DeleteTaskFiles(ctx context.Context, taskID string, exec ...core.DBExecutor) error

		// CreateAssignments inserts every assignment at once. It returns ErrAlreadyAssigned when
		// a (task, student) pair already exists, in which case nothing is inserted.
		CreateAssignments(ctx context.Context, assignments []Assignment, exec ...core.DBExecutor) error
		// GetAssignment matches every set filter field. Inside a transaction the row stays locked until it ends.
		GetAssignment(ctx context.Context, filter AssignmentFilter, exec ...core.DBExecutor) (Assignment, error)
		QueryAssignments(ctx context.Context, query AssignmentQuery, exec ...core.DBExecutor) ([]Assignment, error)
		UpdateAssignment(ctx context.Context, a Assignment, exec ...core.DBExecutor) (Assignment, error)
		DeleteAssignments(ctx context.Context, ids []string, exec ...core.DBExecutor) error
		// MarkOverdue flags the pending assignments whose due date is before now and returns them.
		MarkOverdue(ctx context.Context, now time.Time, exec ...core.DBExecutor) ([]Assignment, error)

		// CreateSubmission inserts the submission along with its files. An assignment holds a single
		// submission: ErrAlreadySubmitted is returned when it has one already.
		CreateSubmission(ctx context.Context, s Submission, exec ...core.DBExecutor) (Submission, error)
		// QuerySubmissions returns the submissions of the given assignments with their files, latest first.
		QuerySubmissions(ctx context.Context, assignmentIDs []string, exec ...core.DBExecutor) ([]Submission, error)
		// DeleteSubmissions removes the submissions of the given assignments along with their files.
		DeleteSubmissions(ctx context.Context, assignmentIDs []string, exec ...core.DBExecutor) error

		QueryGrades(ctx context.Context, filter GradeFilter, exec ...core.DBExecutor) ([]GradeEntry, error)
	}

	// CourseStore is the part of course.Service tasks rely on.
	CourseStore interface {
		Get(ctx context.Context, caller user.User, id string) (course.Course, error)
		GetOwned(ctx context.Context, caller user.User, id string) (course.Course, error)
		Students(ctx context.Context, c course.Course) ([]user.User, error)
	}

	// UserStore is the part of user.Service tasks rely on.
	UserStore interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		db      core.DB
		repo    Repository
		courses CourseStore
		users   UserStore
		files   core.FileStore
		mailSvc core.EmailService
		events  core.EventPublisher
	}
)

func NewService(
	db core.DB,
	repo Repository,
	courses CourseStore,
	users UserStore,
	files core.FileStore,
	mailSvc core.EmailService,
	events core.EventPublisher,
) *Service {
	return &Service{
		db:      db,
		repo:    repo,
		courses: courses,
		users:   users,
		files:   files,
		mailSvc: mailSvc,
		events:  events,
	}
}

type assignmentNotification struct {
	StudentName string
	TeacherName string
	CourseName  string
	TaskTitle   string
	Deadline    string
	Link        string
}

type gradedNotification struct {
	StudentName string
	TaskTitle   string
	CourseName  string
	Grade       int
	Feedback    string
	Link        string
}

func taskLink(taskID string) string {
	return fmt.Sprintf("%s/task/%s", core.Conf.FrontendBaseURL, taskID)
}

// Create stores a task for a course taught by caller along with its files, and assigns it to every
// student enrolled at that moment. nt is expected to be validated.
func (svc *Service) Create(ctx context.Context, caller user.User, courseID string, nt NewTask, uploads []core.Upload) (Task, core.Outcome, error) {
	var outcome core.Outcome

	if err := user.Authorize(caller, user.CapCreateTask); err != nil {
		return Task{}, outcome, err
	}
	c, err := svc.courses.GetOwned(ctx, caller, courseID)
	if err != nil {
		return Task{}, outcome, err
	}
	students, err := svc.courses.Students(ctx, c)
	if err != nil {
		return Task{}, outcome, err
	}

	nt.Clean()
	now := time.Now().UTC()
	t := Task{
		ID:          uuid.NewString(),
		CourseID:    c.ID,
		Title:       nt.Title,
		Description: nt.Description,
		Deadline:    nt.Deadline,
		AssignedBy:  caller.ID,
		CreatedAt:   now,
	}

	var stored []File
	err = core.RunInTx(ctx, svc.db, func(exec core.DBExecutor) error {
		var err error
		if t, err = svc.repo.CreateTask(ctx, t, exec); err != nil {
			return err
		}

		stored, err = svc.storeUploads(ctx, t.ID, uploads, func(f File) string {
			return taskFilePath(t.ID, f)
		})
		if err != nil {
			return err
		}
		if len(stored) > 0 {
			if err = svc.repo.CreateTaskFiles(ctx, stored, exec); err != nil {
				return err
			}
		}

		if len(students) == 0 {
			return nil
		}
		assignments := make([]Assignment, 0, len(students))
		for _, s := range students {
			assignments = append(assignments, Assignment{
				ID:           uuid.NewString(),
				TaskID:       t.ID,
				StudentID:    s.ID,
				Status:       StatusPending,
				AssignedDate: now,
			})
		}
		return svc.repo.CreateAssignments(ctx, assignments, exec)
	})
	if err != nil {
		_ = svc.removeBlobs(ctx, stored)
		return Task{}, outcome, err
	}

	msgs := make([]*core.EmailMessage, 0, len(students))
	for _, s := range students {
		if s.Email == "" {
			continue
		}
		msgs = append(msgs, core.NewEmailMessage(
			mail.Address{Name: s.Name, Address: s.Email},
			fmt.Sprintf("New Assignment: %s in %s", t.Title, c.Name()),
			"assignment_notification",
			assignmentNotification{
				StudentName: s.Name,
				TeacherName: caller.Name,
				CourseName:  c.Name(),
				TaskTitle:   t.Title,
				Deadline:    t.Deadline.Format(deadlineLayout),
				Link:        taskLink(t.ID),
			},
		))
	}
	if len(msgs) > 0 {
		if err = svc.mailSvc.SendMessages(msgs...); err != nil {
			outcome.NotifyErr = core.NewDependencyError("email", err)
		}
	}

	outcome.PublishErr = svc.publish(ctx, core.EventTaskCreated, caller.ID, map[string]interface{}{
		"task_id":     t.ID,
		"course_id":   t.CourseID,
		"assignments": len(students),
	})
	return t, outcome, nil
}

// getOwned returns the task and its course if caller teaches that course.
func (svc *Service) getOwned(ctx context.Context, caller user.User, taskID string) (Task, course.Course, error) {
	t, err := svc.repo.GetTask(ctx, taskID)
	if err != nil {
		return Task{}, course.Course{}, err
	}
	c, err := svc.courses.GetOwned(ctx, caller, t.CourseID)
	if err != nil {
		return Task{}, course.Course{}, err
	}
	return t, c, nil
}

// Get returns a task and its files to any member of its course.
func (svc *Service) Get(ctx context.Context, caller user.User, taskID string) (Task, []File, error) {
	t, err := svc.repo.GetTask(ctx, taskID)
	if err != nil {
		return Task{}, nil, err
	}
	if _, err = svc.courses.Get(ctx, caller, t.CourseID); err != nil {
		return Task{}, nil, err
	}
	files, err := svc.repo.QueryTaskFiles(ctx, t.ID)
	if err != nil {
		return Task{}, nil, err
	}
	return t, files, nil
}

// Update changes the title, description or deadline of a task given by caller.
func (svc *Service) Update(ctx context.Context, caller user.User, taskID string, ut UpdateTask) (Task, error) {
	t, _, err := svc.getOwned(ctx, caller, taskID)
	if err != nil {
		return Task{}, err
	}
	if title := core.CleanString(ut.Title); title != "" {
		t.Title = title
	}
	if desc := core.CleanString(ut.Description); desc != "" {
		t.Description = desc
	}
	if !ut.Deadline.IsZero() {
		t.Deadline = ut.Deadline.UTC()
	}
	return svc.repo.UpdateTask(ctx, t)
}

// Delete removes a task given by caller along with its files, assignments and submissions.
func (svc *Service) Delete(ctx context.Context, caller user.User, taskID string) (core.Outcome, error) {
	var outcome core.Outcome

	t, _, err := svc.getOwned(ctx, caller, taskID)
	if err != nil {
		return outcome, err
	}

	var blobs []File
	err = core.RunInTx(ctx, svc.db, func(exec core.DBExecutor) error {
		assignments, err := svc.repo.QueryAssignments(ctx, AssignmentQuery{TaskID: t.ID}, exec)
		if err != nil {
			return err
		}
		ids := assignmentIDs(assignments)

		if blobs, err = svc.submittedFiles(ctx, ids, exec); err != nil {
			return err
		}
		taskFiles, err := svc.repo.QueryTaskFiles(ctx, t.ID, exec)
		if err != nil {
			return err
		}
		blobs = append(blobs, taskFiles...)

		if len(ids) > 0 {
			if err = svc.repo.DeleteSubmissions(ctx, ids, exec); err != nil {
				return err
			}
			if err = svc.repo.DeleteAssignments(ctx, ids, exec); err != nil {
				return err
			}
		}
		if err = svc.repo.DeleteTaskFiles(ctx, t.ID, exec); err != nil {
			return err
		}
		return svc.repo.DeleteTask(ctx, t.ID, exec)
	})
	if err != nil {
		return outcome, err
	}

	outcome.CleanupErr = svc.removeBlobs(ctx, blobs)
	outcome.PublishErr = svc.publish(ctx, core.EventTaskDeleted, caller.ID, map[string]interface{}{
		"task_id":   t.ID,
		"course_id": t.CourseID,
	})
	return outcome, nil
}

// ListForCourse returns the tasks of a course to its members, ordered by deadline.
func (svc *Service) ListForCourse(ctx context.Context, caller user.User, courseID string) ([]Task, error) {
	if _, err := svc.courses.Get(ctx, caller, courseID); err != nil {
		return nil, err
	}
	return svc.repo.QueryTasks(ctx, courseID)
}

// Detail is the view of a task for the student it is assigned to.
func (svc *Service) Detail(ctx context.Context, caller user.User, taskID string) (StudentView, error) {
	t, taskFiles, err := svc.Get(ctx, caller, taskID)
	if err != nil {
		return StudentView{}, err
	}
	a, err := svc.repo.GetAssignment(ctx, AssignmentFilter{TaskID: t.ID, StudentID: caller.ID})
	if err != nil {
		return StudentView{}, err
	}

	view := StudentView{Task: t, Assignment: a, TaskFiles: taskFiles, SubmittedFiles: []File{}}
	subs, err := svc.repo.QuerySubmissions(ctx, []string{a.ID})
	if err != nil {
		return StudentView{}, err
	}
	if len(subs) > 0 {
		view.Submission = &subs[0]
		view.SubmittedFiles = subs[0].Files
	}
	return view, nil
}

// Submit hands in caller's work for a task. Only one submission is accepted per assignment.
func (svc *Service) Submit(ctx context.Context, caller user.User, taskID, comments string, uploads []core.Upload) (Submission, core.Outcome, error) {
	var outcome core.Outcome

	if err := user.Authorize(caller, user.CapSubmitTask); err != nil {
		return Submission{}, outcome, err
	}
	t, err := svc.repo.GetTask(ctx, taskID)
	if err != nil {
		return Submission{}, outcome, err
	}
	a, err := svc.repo.GetAssignment(ctx, AssignmentFilter{TaskID: t.ID, StudentID: caller.ID})
	if err != nil {
		return Submission{}, outcome, err
	}
	if a.Status.HasSubmission() {
		return Submission{}, outcome, ErrAlreadySubmitted
	}

	var (
		sub    Submission
		stored []File
	)
	err = core.RunInTx(ctx, svc.db, func(exec core.DBExecutor) error {
		a, err := svc.repo.GetAssignment(ctx, AssignmentFilter{ID: a.ID}, exec)
		if err != nil {
			return err
		}
		if a.Status.HasSubmission() {
			return ErrAlreadySubmitted
		}

		now := time.Now().UTC()
		sub = Submission{
			ID:             uuid.NewString(),
			AssignmentID:   a.ID,
			SubmissionDate: now,
			Comments:       core.CleanString(comments),
		}
		stored, err = svc.storeUploads(ctx, sub.ID, uploads, func(f File) string {
			return submissionFilePath(caller.Username, sub.ID, f)
		})
		if err != nil {
			return err
		}
		sub.Files = stored
		if sub, err = svc.repo.CreateSubmission(ctx, sub, exec); err != nil {
			return err
		}

		a.Status = StatusSubmitted
		a.IsLate = now.After(t.Deadline)
		_, err = svc.repo.UpdateAssignment(ctx, a, exec)
		return err
	})
	if err != nil {
		_ = svc.removeBlobs(ctx, stored)
		return Submission{}, outcome, err
	}

	outcome.PublishErr = svc.publish(ctx, core.EventTaskSubmitted, caller.ID, map[string]interface{}{
		"task_id":       t.ID,
		"assignment_id": a.ID,
		"submission_id": sub.ID,
	})
	return sub, outcome, nil
}

// Submissions is the view of a task for the teacher who gave it: every assignment and its status.
func (svc *Service) Submissions(ctx context.Context, caller user.User, taskID string) (TeacherView, error) {
	t, _, err := svc.getOwned(ctx, caller, taskID)
	if err != nil {
		return TeacherView{}, err
	}
	files, err := svc.repo.QueryTaskFiles(ctx, t.ID)
	if err != nil {
		return TeacherView{}, err
	}
	assignments, err := svc.repo.QueryAssignments(ctx, AssignmentQuery{TaskID: t.ID})
	if err != nil {
		return TeacherView{}, err
	}
	return TeacherView{Task: t, TaskFiles: files, Assignments: assignments}, nil
}

// GradingView returns the submission of a student for a task given by caller.
func (svc *Service) GradingView(ctx context.Context, caller user.User, taskID, studentID string) (GradingView, error) {
	t, _, err := svc.getOwned(ctx, caller, taskID)
	if err != nil {
		return GradingView{}, err
	}
	a, err := svc.repo.GetAssignment(ctx, AssignmentFilter{TaskID: t.ID, StudentID: studentID})
	if err != nil {
		return GradingView{}, err
	}
	subs, err := svc.repo.QuerySubmissions(ctx, []string{a.ID})
	if err != nil {
		return GradingView{}, err
	}
	if len(subs) == 0 {
		return GradingView{}, ErrSubmissionNotFound
	}

	sub := subs[0]
	return GradingView{
		StudentName:     a.StudentUsername,
		TaskTitle:       t.Title,
		Status:          a.Status,
		SubmissionDate:  sub.SubmissionDate,
		Comments:        sub.Comments,
		SubmittedFiles:  sub.Files,
		Grade:           a.Grade,
		TeacherFeedback: a.TeacherFeedback,
	}, nil
}

// Grade sets, or replaces, the grade and feedback of a submitted assignment and notifies the student.
func (svc *Service) Grade(ctx context.Context, caller user.User, taskID, studentID string, in GradeInput) (Assignment, core.Outcome, error) {
	var outcome core.Outcome

	if err := user.Authorize(caller, user.CapGrade); err != nil {
		return Assignment{}, outcome, err
	}
	in.Feedback = core.CleanString(in.Feedback)
	if in.Grade <= 0 || in.Feedback == "" {
		return Assignment{}, outcome, ErrGradeRequired
	}

	t, c, err := svc.getOwned(ctx, caller, taskID)
	if err != nil {
		return Assignment{}, outcome, err
	}
	a, err := svc.repo.GetAssignment(ctx, AssignmentFilter{TaskID: t.ID, StudentID: studentID})
	if err != nil {
		return Assignment{}, outcome, err
	}
	if !a.Status.HasSubmission() {
		return Assignment{}, outcome, ErrNoSubmission
	}

	a.Grade = in.Grade
	a.TeacherFeedback = in.Feedback
	a.Status = StatusGraded
	if a, err = svc.repo.UpdateAssignment(ctx, a); err != nil {
		return Assignment{}, outcome, err
	}

	outcome.NotifyErr = svc.notifyGraded(ctx, t, c, a)
	outcome.PublishErr = svc.publish(ctx, core.EventAssignmentGraded, caller.ID, map[string]interface{}{
		"task_id":       t.ID,
		"assignment_id": a.ID,
		"student_id":    a.StudentID,
		"grade":         a.Grade,
	})
	return a, outcome, nil
}

// notifyGraded emails the grade to the student, with the files they handed in attached.
func (svc *Service) notifyGraded(ctx context.Context, t Task, c course.Course, a Assignment) error {
	student, err := svc.users.GetByID(ctx, a.StudentID)
	if err != nil {
		return core.NewDependencyError("users", err)
	}
	if student.Email == "" {
		return nil
	}

	msg := core.NewEmailMessage(
		mail.Address{Name: student.Name, Address: student.Email},
		fmt.Sprintf("Graded: %s in %s", t.Title, c.Name()),
		"graded_notification",
		gradedNotification{
			StudentName: student.Name,
			TaskTitle:   t.Title,
			CourseName:  c.Name(),
			Grade:       a.Grade,
			Feedback:    a.TeacherFeedback,
			Link:        taskLink(t.ID),
		},
	)
	// a file that cannot be attached does not hold back the grade
	attachErr := svc.attachSubmittedFiles(ctx, msg, a.ID)

	if err = svc.mailSvc.SendMessages(msg); err != nil {
		return core.NewDependencyError("email", err)
	}
	return attachErr
}

func (svc *Service) attachSubmittedFiles(ctx context.Context, msg *core.EmailMessage, assignmentID string) error {
	files, err := svc.submittedFiles(ctx, []string{assignmentID}, nil)
	if err != nil {
		return core.NewDependencyError("database", err)
	}

	var failed []string
	for _, f := range files {
		if err = svc.attach(ctx, msg, f); err != nil {
			failed = append(failed, f.FileName)
		}
	}
	if len(failed) > 0 {
		return core.NewDependencyError("file store", errors.Errorf("could not attach %s", strings.Join(failed, ", ")))
	}
	return nil
}

func (svc *Service) attach(ctx context.Context, msg *core.EmailMessage, f File) error {
	rc, err := svc.files.Open(ctx, f.Path)
	if err != nil {
		return err
	}
	defer rc.Close()

	if f.ContentType != "" {
		return msg.Attach(rc, f.FileName, f.ContentType)
	}
	return msg.Attach(rc, f.FileName)
}

// TaskFile opens a file attached to a task, for any member of its course.
func (svc *Service) TaskFile(ctx context.Context, caller user.User, taskID, fileID string) (File, io.ReadCloser, error) {
	_, files, err := svc.Get(ctx, caller, taskID)
	if err != nil {
		return File{}, nil, err
	}
	return svc.openFile(ctx, files, fileID)
}

// SubmissionFile opens a file handed in for an assignment, for the student it is assigned to
// and the teacher who gave the task.
func (svc *Service) SubmissionFile(ctx context.Context, caller user.User, taskID, assignmentID, fileID string) (File, io.ReadCloser, error) {
	t, err := svc.repo.GetTask(ctx, taskID)
	if err != nil {
		return File{}, nil, err
	}
	a, err := svc.repo.GetAssignment(ctx, AssignmentFilter{ID: assignmentID, TaskID: t.ID})
	if err != nil {
		return File{}, nil, err
	}
	if a.StudentID != caller.ID {
		if _, err = svc.courses.GetOwned(ctx, caller, t.CourseID); err != nil {
			return File{}, nil, err
		}
	}

	files, err := svc.submittedFiles(ctx, []string{a.ID}, nil)
	if err != nil {
		return File{}, nil, err
	}
	return svc.openFile(ctx, files, fileID)
}

func (svc *Service) openFile(ctx context.Context, files []File, fileID string) (File, io.ReadCloser, error) {
	for _, f := range files {
		if f.ID != fileID {
			continue
		}
		rc, err := svc.files.Open(ctx, f.Path)
		if err != nil {
			if core.IsNotFound(err) {
				return File{}, nil, ErrFileNotFound
			}
			return File{}, nil, core.NewDependencyError("file store", err)
		}
		return f, rc, nil
	}
	return File{}, nil, ErrFileNotFound
}

// ExtendDueDate grants a late due date to an assignment of a task given by caller.
func (svc *Service) ExtendDueDate(ctx context.Context, caller user.User, taskID, assignmentID, rawDate string) (Assignment, core.Outcome, error) {
	var outcome core.Outcome

	t, _, err := svc.getOwned(ctx, caller, taskID)
	if err != nil {
		return Assignment{}, outcome, err
	}
	if strings.TrimSpace(rawDate) == "" {
		return Assignment{}, outcome, ErrLateDueDateRequired
	}
	due, err := ParseTime(rawDate)
	if err != nil {
		return Assignment{}, outcome, err
	}

	a, err := svc.repo.GetAssignment(ctx, AssignmentFilter{ID: assignmentID, TaskID: t.ID})
	if err != nil {
		return Assignment{}, outcome, err
	}
	a.LateDueDate = &due
	a.IsLate = true
	if a, err = svc.repo.UpdateAssignment(ctx, a); err != nil {
		return Assignment{}, outcome, err
	}

	outcome.PublishErr = svc.publish(ctx, core.EventAssignmentExtended, caller.ID, map[string]interface{}{
		"task_id":       t.ID,
		"assignment_id": a.ID,
		"late_due_date": due,
	})
	return a, outcome, nil
}

// Unassign removes an assignment of a task given by caller, along with its submissions and their files.
func (svc *Service) Unassign(ctx context.Context, caller user.User, taskID, assignmentID string) (core.Outcome, error) {
	var outcome core.Outcome

	t, _, err := svc.getOwned(ctx, caller, taskID)
	if err != nil {
		return outcome, err
	}
	a, err := svc.repo.GetAssignment(ctx, AssignmentFilter{ID: assignmentID, TaskID: t.ID})
	if err != nil {
		return outcome, err
	}

	var blobs []File
	err = core.RunInTx(ctx, svc.db, func(exec core.DBExecutor) error {
		var err error
		if blobs, err = svc.submittedFiles(ctx, []string{a.ID}, exec); err != nil {
			return err
		}
		if err = svc.repo.DeleteSubmissions(ctx, []string{a.ID}, exec); err != nil {
			return err
		}
		return svc.repo.DeleteAssignments(ctx, []string{a.ID}, exec)
	})
	if err != nil {
		return outcome, err
	}

	outcome.CleanupErr = svc.removeBlobs(ctx, blobs)
	outcome.PublishErr = svc.publish(ctx, core.EventAssignmentRemoved, caller.ID, map[string]interface{}{
		"task_id":       t.ID,
		"assignment_id": a.ID,
		"student_id":    a.StudentID,
	})
	return outcome, nil
}

// SweepOverdue flags every pending assignment whose due date passed before now, and returns how many were.
func (svc *Service) SweepOverdue(ctx context.Context, now time.Time) (int, core.Outcome, error) {
	var outcome core.Outcome

	overdue, err := svc.repo.MarkOverdue(ctx, now.UTC())
	if err != nil {
		return 0, outcome, err
	}
	if len(overdue) > 0 {
		outcome.PublishErr = svc.publish(ctx, core.EventAssignmentsOverdue, "", map[string]interface{}{
			"assignment_ids": assignmentIDs(overdue),
		})
	}
	return len(overdue), outcome, nil
}

func (svc *Service) publish(ctx context.Context, typ, actorID string, payload map[string]interface{}) error {
	if err := svc.events.Publish(ctx, core.NewEvent(typ, actorID, payload)); err != nil {
		return core.NewDependencyError("events", err)
	}
	return nil
}

// storeUploads saves uploads in the file store. On failure, the files saved so far are returned along with the error.
func (svc *Service) storeUploads(ctx context.Context, ownerID string, uploads []core.Upload, pathFn func(f File) string) ([]File, error) {
	files := make([]File, 0, len(uploads))
	for _, up := range uploads {
		if up.Content == nil {
			continue
		}
		f := File{
			ID:          uuid.NewString(),
			OwnerID:     ownerID,
			FileName:    cleanFileName(up.Name),
			ContentType: up.ContentType,
			Size:        up.Size,
			UploadDate:  time.Now().UTC(),
		}
		f.Path = pathFn(f)
		if err := svc.files.Save(ctx, f.Path, up.Content, up.Size, up.ContentType); err != nil {
			return files, core.NewDependencyError("file store", err)
		}
		files = append(files, f)
	}
	return files, nil
}

// removeBlobs deletes the stored content of files, going on after a failure.
func (svc *Service) removeBlobs(ctx context.Context, files []File) error {
	var failed []string
	for _, f := range files {
		if err := svc.files.Delete(ctx, f.Path); err != nil {
			failed = append(failed, f.Path)
		}
	}
	if len(failed) > 0 {
		return core.NewDependencyError("file store", errors.Errorf("could not delete %s", strings.Join(failed, ", ")))
	}
	return nil
}

func (svc *Service) submittedFiles(ctx context.Context, assignmentIDs []string, exec core.DBExecutor) ([]File, error) {
	if len(assignmentIDs) == 0 {
		return nil, nil
	}
	subs, err := svc.repo.QuerySubmissions(ctx, assignmentIDs, exec)
	if err != nil {
		return nil, err
	}
	var files []File
	for _, s := range subs {
		files = append(files, s.Files...)
	}
	return files, nil
}

func assignmentIDs(assignments []Assignment) []string {
	ids := make([]string, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.ID)
	}
	return ids
}
