package announcement

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/edusys/core"
	"github.com/trezcool/edusys/core/course"
	"github.com/trezcool/edusys/core/user"
)

var (
	// errors
	ErrNotFound             = core.NewNotFoundError("announcement")
	ErrReactionNotFound     = core.NewNotFoundError("reaction")
	ErrReactionExists       = core.NewConflictError("a reaction from this user already exists")
	ErrTitleContentRequired = core.NewValidationError(errors.New("Title and content are required"))
	ErrInvalidReaction      = core.NewValidationError(errors.New("invalid reaction type"))
	ErrContentRequired      = core.NewValidationError(errors.New("content is required"))
)

type (
	Repository interface {
		CreateAnnouncement(ctx context.Context, a Announcement, exec ...core.DBExecutor) (Announcement, error)
		GetAnnouncement(ctx context.Context, id string, exec ...core.DBExecutor) (Announcement, error)
		// QueryAnnouncements returns the announcements matching every set filter field, newest first.
		QueryAnnouncements(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Announcement, error)

		CreateComment(ctx context.Context, c Comment, exec ...core.DBExecutor) (Comment, error)
		QueryComments(ctx context.Context, announcementIDs []string, exec ...core.DBExecutor) ([]Comment, error)

		// CreateReaction returns ErrReactionExists when the user already reacted to the announcement.
		CreateReaction(ctx context.Context, r Reaction, exec ...core.DBExecutor) (Reaction, error)
		GetReaction(ctx context.Context, announcementID, userID string, exec ...core.DBExecutor) (Reaction, error)
		UpdateReaction(ctx context.Context, r Reaction, exec ...core.DBExecutor) (Reaction, error)
		QueryReactions(ctx context.Context, announcementIDs []string, exec ...core.DBExecutor) ([]Reaction, error)
	}

	// CourseStore is the part of course.Service announcements rely on.
	CourseStore interface {
		Get(ctx context.Context, caller user.User, id string) (course.Course, error)
		Students(ctx context.Context, c course.Course) ([]user.User, error)
	}

	// UserStore is the part of user.Service announcements rely on.
	UserStore interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		repo    Repository
		courses CourseStore
		users   UserStore
		mailSvc core.EmailService
	}
)

func NewService(repo Repository, courses CourseStore, users UserStore, mailSvc core.EmailService) *Service {
	return &Service{repo: repo, courses: courses, users: users, mailSvc: mailSvc}
}

type announcementNotification struct {
	StudentName string
	AuthorName  string
	CourseName  string
	Title       string
	Content     string
	Link        string
}

// ListForCourse returns the announcements of a course, newest first, to its members.
func (svc *Service) ListForCourse(ctx context.Context, caller user.User, courseID string) (Feed, error) {
	if _, err := svc.courses.Get(ctx, caller, courseID); err != nil {
		return Feed{}, err
	}
	return svc.feed(ctx, QueryFilter{CourseID: courseID})
}

// ListForUser returns the announcements written by userID.
func (svc *Service) ListForUser(ctx context.Context, userID string) (Feed, error) {
	if _, err := svc.users.GetByID(ctx, userID); err != nil {
		return Feed{}, err
	}
	return svc.feed(ctx, QueryFilter{UserID: userID})
}

func (svc *Service) feed(ctx context.Context, filter QueryFilter) (Feed, error) {
	anns, err := svc.repo.QueryAnnouncements(ctx, filter)
	if err != nil {
		return Feed{}, err
	}
	ids := make([]string, 0, len(anns))
	for _, a := range anns {
		ids = append(ids, a.ID)
	}

	feed := Feed{Announcements: anns, Comments: []Comment{}, Reactions: []Reaction{}}
	if len(ids) == 0 {
		return feed, nil
	}
	if feed.Comments, err = svc.repo.QueryComments(ctx, ids); err != nil {
		return Feed{}, err
	}
	if feed.Reactions, err = svc.repo.QueryReactions(ctx, ids); err != nil {
		return Feed{}, err
	}
	return feed, nil
}

// Create posts an announcement in a course caller is a member of, and notifies its students.
func (svc *Service) Create(ctx context.Context, caller user.User, courseID string, na NewAnnouncement) (Announcement, core.Outcome, error) {
	var outcome core.Outcome

	c, err := svc.courses.Get(ctx, caller, courseID)
	if err != nil {
		return Announcement{}, outcome, err
	}
	na.Title = core.CleanString(na.Title)
	na.Content = core.CleanString(na.Content)
	if na.Title == "" || na.Content == "" {
		return Announcement{}, outcome, ErrTitleContentRequired
	}

	ann, err := svc.repo.CreateAnnouncement(ctx, Announcement{
		ID:           uuid.NewString(),
		CourseID:     c.ID,
		UserID:       caller.ID,
		UserFullName: caller.Name,
		Title:        na.Title,
		Content:      na.Content,
		Date:         time.Now().UTC(),
	})
	if err != nil {
		return Announcement{}, outcome, err
	}

	students, err := svc.courses.Students(ctx, c)
	if err != nil {
		outcome.NotifyErr = core.NewDependencyError("users", err)
		return ann, outcome, nil
	}
	msgs := make([]*core.EmailMessage, 0, len(students))
	for _, s := range students {
		if s.ID == caller.ID || s.Email == "" {
			continue
		}
		msgs = append(msgs, core.NewEmailMessage(
			mail.Address{Name: s.Name, Address: s.Email},
			fmt.Sprintf("New Announcement in %s: %s", c.Name(), ann.Title),
			"announcement_notification",
			announcementNotification{
				StudentName: s.Name,
				AuthorName:  caller.Name,
				CourseName:  c.Name(),
				Title:       ann.Title,
				Content:     ann.Content,
				Link:        fmt.Sprintf("%s/course/%s", core.Conf.FrontendBaseURL, c.ID),
			},
		))
	}
	if len(msgs) > 0 {
		if err = svc.mailSvc.SendMessages(msgs...); err != nil {
			outcome.NotifyErr = core.NewDependencyError("email", err)
		}
	}
	return ann, outcome, nil
}

// getForMember returns the announcement if caller is a member of its course.
func (svc *Service) getForMember(ctx context.Context, caller user.User, announcementID string) (Announcement, error) {
	ann, err := svc.repo.GetAnnouncement(ctx, announcementID)
	if err != nil {
		return Announcement{}, err
	}
	if _, err = svc.courses.Get(ctx, caller, ann.CourseID); err != nil {
		return Announcement{}, err
	}
	return ann, nil
}

func (svc *Service) Comments(ctx context.Context, caller user.User, announcementID string) ([]Comment, error) {
	ann, err := svc.getForMember(ctx, caller, announcementID)
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryComments(ctx, []string{ann.ID})
}

func (svc *Service) AddComment(ctx context.Context, caller user.User, announcementID string, nc NewComment) (Comment, error) {
	ann, err := svc.getForMember(ctx, caller, announcementID)
	if err != nil {
		return Comment{}, err
	}
	content := core.CleanString(nc.Content)
	if content == "" {
		return Comment{}, ErrContentRequired
	}
	return svc.repo.CreateComment(ctx, Comment{
		ID:             uuid.NewString(),
		AnnouncementID: ann.ID,
		UserID:         caller.ID,
		UserFullName:   caller.Name,
		Content:        content,
		Date:           time.Now().UTC(),
	})
}

func (svc *Service) Reactions(ctx context.Context, caller user.User, announcementID string) ([]Reaction, error) {
	ann, err := svc.getForMember(ctx, caller, announcementID)
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryReactions(ctx, []string{ann.ID})
}

// React sets caller's reaction to an announcement, replacing their previous one.
// The boolean reports whether the reaction was created rather than updated.
func (svc *Service) React(ctx context.Context, caller user.User, announcementID string, nr NewReaction) (Reaction, bool, error) {
	ann, err := svc.getForMember(ctx, caller, announcementID)
	if err != nil {
		return Reaction{}, false, err
	}
	if !nr.Type.IsValid() {
		return Reaction{}, false, ErrInvalidReaction
	}

	now := time.Now().UTC()
	update := func() (Reaction, bool, error) {
		r, err := svc.repo.GetReaction(ctx, ann.ID, caller.ID)
		if err != nil {
			return Reaction{}, false, err
		}
		r.Type = nr.Type
		r.Date = now
		r, err = svc.repo.UpdateReaction(ctx, r)
		return r, false, err
	}

	if r, created, err := update(); !core.IsNotFound(err) {
		return r, created, err
	}
	r, err := svc.repo.CreateReaction(ctx, Reaction{
		ID:             uuid.NewString(),
		AnnouncementID: ann.ID,
		UserID:         caller.ID,
		UserFullName:   caller.Name,
		Type:           nr.Type,
		Date:           now,
	})
	if err == ErrReactionExists {
		// created concurrently
		return update()
	}
	if err != nil {
		return Reaction{}, false, err
	}
	return r, true, nil
}
