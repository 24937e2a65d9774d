package task

import (
	"time"

	"github.com/trezcool/edusys/core"
)

type Status string

// Assignment statuses
const (
	StatusPending   Status = "Pending"
	StatusSubmitted Status = "Submitted"
	StatusGraded    Status = "Graded"
	StatusOverdue   Status = "Overdue"
)

func (s Status) HasSubmission() bool {
	return s == StatusSubmitted || s == StatusGraded
}

type Task struct {
	ID          string    `json:"id"`
	CourseID    string    `json:"course_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Deadline    time.Time `json:"deadline"`
	AssignedBy  string    `json:"assigned_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type NewTask struct {
	Title       string
	Description string
	Deadline    time.Time
}

func (nt *NewTask) Clean() {
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanString(nt.Description)
	nt.Deadline = nt.Deadline.UTC()
}

// UpdateTask holds the task fields to change; zero values are left untouched.
type UpdateTask struct {
	Title       string
	Description string
	Deadline    time.Time
}

// File is a stored attachment of a task or of a submission.
type File struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"-"`
	Path        string    `json:"file"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadDate  time.Time `json:"upload_date"`
}

// Assignment is the pairing of a task with one student.
type Assignment struct {
	ID              string     `json:"id"`
	TaskID          string     `json:"task_id"`
	StudentID       string     `json:"student_id"`
	Status          Status     `json:"status"`
	AssignedDate    time.Time  `json:"assigned_date"`
	PersonalNotes   string     `json:"personal_notes"`
	TeacherFeedback string     `json:"teacher_feedback"`
	TimeSpent       *int64     `json:"time_spent"` // seconds
	IsLate          bool       `json:"is_late"`
	LateDueDate     *time.Time `json:"late_due_date"`
	Grade           int        `json:"grade"`

	// read only
	StudentName     string `json:"student"`
	StudentUsername string `json:"student_username"`
	TaskTitle       string `json:"task_title"`
}

// DueDate is the late due date when one was granted, the task deadline otherwise.
func (a Assignment) DueDate(t Task) time.Time {
	if a.LateDueDate != nil {
		return *a.LateDueDate
	}
	return t.Deadline
}

type Submission struct {
	ID             string    `json:"id"`
	AssignmentID   string    `json:"assignment_id"`
	SubmissionDate time.Time `json:"submission_date"`
	Comments       string    `json:"comments"`
	Files          []File    `json:"submitted_files"`
}

type GradeInput struct {
	Grade    int    `json:"grade"`
	Feedback string `json:"teacher_feedback"`
}

type AssignmentFilter struct {
	ID        string
	TaskID    string
	StudentID string
}

type AssignmentQuery struct {
	TaskID    string
	StudentID string
	Statuses  []Status
}

// StudentView is what a student sees of a task.
type StudentView struct {
	Task           Task        `json:"task"`
	Assignment     Assignment  `json:"assignment"`
	TaskFiles      []File      `json:"task_files"`
	Submission     *Submission `json:"submission"`
	SubmittedFiles []File      `json:"submitted_files"`
}

// TeacherView is what the owning teacher sees of a task.
type TeacherView struct {
	Task        Task         `json:"task"`
	TaskFiles   []File       `json:"task_files"`
	Assignments []Assignment `json:"assignments"`
}

// GradingView is a student's submission along with its current grade.
type GradingView struct {
	StudentName     string    `json:"student_name"`
	TaskTitle       string    `json:"task_title"`
	Status          Status    `json:"status"`
	SubmissionDate  time.Time `json:"submission_date"`
	Comments        string    `json:"comments"`
	SubmittedFiles  []File    `json:"submitted_files"`
	Grade           int       `json:"grade"`
	TeacherFeedback string    `json:"teacher_feedback"`
}
