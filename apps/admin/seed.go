package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/edusys/core"
	"github.com/trezcool/edusys/core/announcement"
	"github.com/trezcool/edusys/core/course"
	"github.com/trezcool/edusys/core/task"
	"github.com/trezcool/edusys/core/user"
)

var errAlreadySeeded = errors.New("sample data already present (user \"teacher1\" exists)")

type sampleUser struct {
	uname, name string
	role        string
}

var sampleUsers = []sampleUser{
	{uname: "teacher1", name: "Jane Doe", role: user.RoleTeacher},
	{uname: "student1", name: "John Smith", role: user.RoleStudent},
	{uname: "student2", name: "Emily Clark", role: user.RoleStudent},
}

// seed fills an empty database with a small school: one teacher, two students, two courses with a task
// each, a submission, an announcement with its reaction and comment, and a pending invitation.
func (cli *commandLine) seed(pwd string) error {
	ctx := context.Background()
	if _, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: sampleUsers[0].uname}); err == nil {
		return errAlreadySeeded
	} else if !core.IsNotFound(err) {
		return err
	}

	users := make([]user.User, len(sampleUsers))
	for i, su := range sampleUsers {
		now := nowFunc().UTC()
		usr := user.User{
			ID:        uuid.NewString(),
			Name:      su.name,
			Username:  su.uname,
			Email:     su.uname + "@example.com",
			Roles:     []string{su.role},
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := usr.SetPassword(pwd); err != nil {
			return errors.Wrap(err, "setting password")
		}
		usr, err := cli.usrRepo.CreateUser(ctx, usr)
		if err != nil {
			return errors.Wrapf(err, "creating user %q", su.uname)
		}
		users[i] = usr
	}
	teacher, student1, student2 := users[0], users[1], users[2]
	fmt.Fprintf(cli.out, "created users: %s, %s, %s\n", teacher.Username, student1.Username, student2.Username)

	maths, err := cli.sampleCourse(ctx, teacher, course.NewSubject{Name: "Math", Grade: 10, Category: "Science"},
		"Learn advanced mathematics.", "101", student1, student2)
	if err != nil {
		return err
	}
	science, err := cli.sampleCourse(ctx, teacher, course.NewSubject{Name: "Science", Grade: 11, Category: "STEM"},
		"Explore the wonders of science.", "102", student2)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "created courses: Math, Science")

	now := nowFunc().UTC()
	algebra, _, err := cli.taskSvc.Create(ctx, teacher, maths.ID, task.NewTask{
		Title:       "Algebra Homework",
		Description: "Solve all algebra problems in Chapter 3.",
		Deadline:    now.Add(7 * 24 * time.Hour),
	}, nil)
	if err != nil {
		return errors.Wrap(err, "creating task")
	}
	if _, _, err = cli.taskSvc.Create(ctx, teacher, science.ID, task.NewTask{
		Title:       "Science Experiment",
		Description: "Complete the lab report on photosynthesis.",
		Deadline:    now.Add(10 * 24 * time.Hour),
	}, nil); err != nil {
		return errors.Wrap(err, "creating task")
	}
	fmt.Fprintln(cli.out, "created tasks: Algebra Homework, Science Experiment")

	if _, _, err = cli.taskSvc.Submit(ctx, student1, algebra.ID, "Completed with all questions answered.", []core.Upload{{
		Name:        "algebra_homework.txt",
		ContentType: "text/plain",
		Content:     strings.NewReader("x = 42"),
	}}); err != nil {
		return errors.Wrap(err, "submitting task")
	}
	fmt.Fprintf(cli.out, "created submission of %s\n", student1.Username)

	ann, _, err := cli.announcementSvc.Create(ctx, teacher, maths.ID, announcement.NewAnnouncement{
		Title:   "Exam Reminder",
		Content: "The midterm exam is scheduled for next week.",
	})
	if err != nil {
		return errors.Wrap(err, "creating announcement")
	}
	if _, _, err = cli.announcementSvc.React(ctx, student1, ann.ID, announcement.NewReaction{Type: announcement.ReactionLike}); err != nil {
		return errors.Wrap(err, "reacting")
	}
	if _, err = cli.announcementSvc.AddComment(ctx, student2, ann.ID, announcement.NewComment{Content: "Thanks for the reminder!"}); err != nil {
		return errors.Wrap(err, "commenting")
	}
	fmt.Fprintln(cli.out, "created announcement: Exam Reminder")

	if _, _, err = cli.courseSvc.Invite(ctx, teacher, maths.ID, course.NewInvitation{Email: "invitee@example.com"}); err != nil {
		return errors.Wrap(err, "inviting")
	}
	fmt.Fprintln(cli.out, "created invitation for invitee@example.com")

	fmt.Fprintln(cli.out, "sample data inserted")
	return nil
}

func (cli *commandLine) sampleCourse(
	ctx context.Context,
	teacher user.User,
	ns course.NewSubject,
	description, room string,
	students ...user.User,
) (course.Course, error) {
	subj, err := cli.courseSvc.CreateSubject(ctx, teacher, ns)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "creating subject")
	}
	c, err := cli.courseSvc.Create(ctx, teacher, course.NewCourse{SubjectID: subj.ID, Description: description, Room: room})
	if err != nil {
		return course.Course{}, errors.Wrap(err, "creating course")
	}
	for _, s := range students {
		if err = cli.courseRepo.AddStudent(ctx, c.ID, s.ID); err != nil {
			return course.Course{}, errors.Wrap(err, "enrolling student")
		}
	}
	return c, nil
}
