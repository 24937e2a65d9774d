package course

import (
	"time"

	"github.com/trezcool/edusys/core"
)

const DefaultDescription = "Write a short description about the course..."

type Subject struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Grade    int    `json:"grade"`
	Category string `json:"category"`
}

type NewSubject struct {
	Name     string `json:"name" validate:"required,max=100"`
	Grade    int    `json:"grade" validate:"required,min=1"`
	Category string `json:"category" validate:"required,max=100"`
}

func (ns *NewSubject) Clean() {
	ns.Name = core.CleanString(ns.Name)
	ns.Category = core.CleanString(ns.Category)
}

type Course struct {
	ID          string    `json:"id"`
	SubjectID   string    `json:"subject_id"`
	TeacherID   string    `json:"teacher_id"`
	Description string    `json:"description"`
	Schedule    time.Time `json:"schedule"`
	Room        string    `json:"room"`
	StudentIDs  []string  `json:"students"`
	CreatedAt   time.Time `json:"created_at"`

	// read only
	Subject     Subject `json:"subject"`
	TeacherName string  `json:"teacher_name"`
}

// Name is the display name of the course: its subject's name.
func (c Course) Name() string { return c.Subject.Name }

func (c Course) IsTeacher(userID string) bool { return c.TeacherID == userID }

func (c Course) HasStudent(userID string) bool {
	for _, id := range c.StudentIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// HasMember reports whether userID teaches or attends the course.
func (c Course) HasMember(userID string) bool {
	return c.IsTeacher(userID) || c.HasStudent(userID)
}

type NewCourse struct {
	SubjectID   string    `json:"subject_id" validate:"required"`
	Description string    `json:"description" validate:"max=500"`
	Schedule    time.Time `json:"schedule"`
	Room        string    `json:"room" validate:"required,max=100"`
}

func (nc *NewCourse) Clean() {
	nc.Description = core.CleanString(nc.Description)
	nc.Room = core.CleanString(nc.Room)
	if nc.Description == "" {
		nc.Description = DefaultDescription
	}
}

type UpdateCourse struct {
	SubjectID   string     `json:"subject_id"`
	Description string     `json:"description" validate:"max=500"`
	Schedule    *time.Time `json:"schedule"`
	Room        string     `json:"room" validate:"max=100"`
}

type QueryFilter struct {
	TeacherID string
	StudentID string
}

// Detail is the course page: the course along with the names it is displayed with.
type Detail struct {
	Course      Course `json:"course"`
	TeacherName string `json:"teacher_name"`
	SubjectName string `json:"subject_name"`
}

type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Participants struct {
	Teacher  Participant   `json:"teacher"`
	Students []Participant `json:"students"`
}

type Profile struct {
	ID       string   `json:"id"`
	FullName string   `json:"fullname"`
	Email    string   `json:"email"`
	Role     string   `json:"role"`
	Courses  []Course `json:"courses"`
}

type Invitation struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	CourseID  string    `json:"course_id"`
	Accepted  bool      `json:"accepted"`
	CreatedAt time.Time `json:"created_at"`
}

type NewInvitation struct {
	Email string `json:"email" validate:"required,email"`
}
