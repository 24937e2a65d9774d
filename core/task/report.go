package task

import (
	"context"
	"math"

	"github.com/trezcool/edusys/core/user"
)

// GradeEntry is one graded assignment along with the names it is reported with.
type GradeEntry struct {
	StudentID       string
	StudentUsername string
	StudentName     string
	CourseID        string
	CourseSubject   string
	TeacherName     string
	TaskTitle       string
	Grade           int
}

// GradeFilter selects graded assignments; set fields are ANDed.
type GradeFilter struct {
	StudentID  string
	CourseID   string
	StudentIDs []string
}

type TaskGrade struct {
	TaskTitle string `json:"task_title"`
	Grade     int    `json:"grade"`
}

type CourseGrades struct {
	CourseSubject string      `json:"course_subject"`
	TeacherName   string      `json:"teacher_name"`
	Tasks         []TaskGrade `json:"tasks"`
}

type StudentGrades struct {
	TaskGrades       []CourseGrades `json:"task_grades"`
	AverageTaskGrade *float64       `json:"average_task_grade"`
}

type StudentOverview struct {
	FullName     string      `json:"full_name"`
	Tasks        []TaskGrade `json:"tasks"`
	AverageGrade *float64    `json:"average_grade"`
}

type CourseOverview struct {
	StudentGrades map[string]*StudentOverview `json:"student_grades"` // by username
}

// StudentGrades returns the graded tasks of caller grouped by course, along with their overall average.
func (svc *Service) StudentGrades(ctx context.Context, caller user.User) (StudentGrades, error) {
	if err := user.Authorize(caller, user.CapViewOwnGrades); err != nil {
		return StudentGrades{}, err
	}
	entries, err := svc.repo.QueryGrades(ctx, GradeFilter{StudentID: caller.ID})
	if err != nil {
		return StudentGrades{}, err
	}

	report := StudentGrades{TaskGrades: []CourseGrades{}}
	groups := make(map[string]int) // {subject|teacher: index in report.TaskGrades}
	grades := make([]int, 0, len(entries))
	for _, e := range entries {
		key := e.CourseSubject + "|" + e.TeacherName
		idx, ok := groups[key]
		if !ok {
			idx = len(report.TaskGrades)
			groups[key] = idx
			report.TaskGrades = append(report.TaskGrades, CourseGrades{
				CourseSubject: e.CourseSubject,
				TeacherName:   e.TeacherName,
			})
		}
		report.TaskGrades[idx].Tasks = append(report.TaskGrades[idx].Tasks, TaskGrade{TaskTitle: e.TaskTitle, Grade: e.Grade})
		grades = append(grades, e.Grade)
	}
	report.AverageTaskGrade = average(grades, false)
	return report, nil
}

// CourseOverview returns the graded tasks of every student of a course taught by caller.
func (svc *Service) CourseOverview(ctx context.Context, caller user.User, courseID string) (CourseOverview, error) {
	if err := user.Authorize(caller, user.CapGrade); err != nil {
		return CourseOverview{}, err
	}
	c, err := svc.courses.GetOwned(ctx, caller, courseID)
	if err != nil {
		return CourseOverview{}, err
	}

	overview := CourseOverview{StudentGrades: make(map[string]*StudentOverview)}
	if len(c.StudentIDs) == 0 {
		return overview, nil
	}
	entries, err := svc.repo.QueryGrades(ctx, GradeFilter{CourseID: c.ID, StudentIDs: c.StudentIDs})
	if err != nil {
		return CourseOverview{}, err
	}

	grades := make(map[string][]int)
	for _, e := range entries {
		so, ok := overview.StudentGrades[e.StudentUsername]
		if !ok {
			so = &StudentOverview{FullName: e.StudentName}
			overview.StudentGrades[e.StudentUsername] = so
		}
		so.Tasks = append(so.Tasks, TaskGrade{TaskTitle: e.TaskTitle, Grade: e.Grade})
		grades[e.StudentUsername] = append(grades[e.StudentUsername], e.Grade)
	}
	for uname, so := range overview.StudentGrades {
		so.AverageGrade = average(grades[uname], true)
	}
	return overview, nil
}

func average(grades []int, round bool) *float64 {
	if len(grades) == 0 {
		return nil
	}
	var sum int
	for _, g := range grades {
		sum += g
	}
	avg := float64(sum) / float64(len(grades))
	if round {
		avg = math.Round(avg*100) / 100
	}
	return &avg
}
