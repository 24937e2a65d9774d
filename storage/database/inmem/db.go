// Package inmemdb keeps every table in memory; it backs the tests and the API when no database is configured.
package inmemdb

import (
	"sync"

	"github.com/trezcool/edusys/core/announcement"
	"github.com/trezcool/edusys/core/course"
	"github.com/trezcool/edusys/core/task"
	"github.com/trezcool/edusys/core/user"
)

// sortableTime formats UTC times so that they sort lexically.
const sortableTime = "2006-01-02T15:04:05.000000000Z"

// DB holds all the tables behind a single lock. It has no transactions: executors are ignored.
type DB struct {
	mutex sync.RWMutex

	users       map[string]user.User
	resetTokens map[string]user.ResetToken // by token

	subjects    map[string]course.Subject
	courses     map[string]course.Course
	enrollments map[string][]string // {course id: student ids}
	invitations map[string]course.Invitation

	tasks           map[string]task.Task
	taskFiles       map[string]task.File
	assignments     map[string]task.Assignment
	submissions     map[string]task.Submission
	submissionFiles map[string]task.File

	announcements map[string]announcement.Announcement
	comments      map[string]announcement.Comment
	reactions     map[string]announcement.Reaction
}

func NewDB() *DB {
	return &DB{
		users:           make(map[string]user.User),
		resetTokens:     make(map[string]user.ResetToken),
		subjects:        make(map[string]course.Subject),
		courses:         make(map[string]course.Course),
		enrollments:     make(map[string][]string),
		invitations:     make(map[string]course.Invitation),
		tasks:           make(map[string]task.Task),
		taskFiles:       make(map[string]task.File),
		assignments:     make(map[string]task.Assignment),
		submissions:     make(map[string]task.Submission),
		submissionFiles: make(map[string]task.File),
		announcements:   make(map[string]announcement.Announcement),
		comments:        make(map[string]announcement.Comment),
		reactions:       make(map[string]announcement.Reaction),
	}
}

func (db *DB) userName(id string) string {
	return db.users[id].Name
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
