package announcement_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edusys/core"
	"github.com/trezcool/edusys/core/announcement"
	"github.com/trezcool/edusys/core/course"
	"github.com/trezcool/edusys/core/user"
	"github.com/trezcool/edusys/services/email"
	inmemdb "github.com/trezcool/edusys/storage/database/inmem"
	"github.com/trezcool/edusys/testutil"
)

func TestService_Create(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	teacher := env.Teacher(t, "teach")
	amy := env.Student(t, "amy")
	bob := env.Student(t, "bob")
	stranger := env.Student(t, "stranger")
	c := env.Course(t, teacher, amy, bob)

	_, _, err := env.AnnouncementSvc.Create(ctx, amy, c.ID, announcement.NewAnnouncement{Title: " ", Content: "hi"})
	assert.Equal(t, announcement.ErrTitleContentRequired, err)
	_, _, err = env.AnnouncementSvc.Create(ctx, stranger, c.ID, announcement.NewAnnouncement{Title: "Hi", Content: "hi"})
	assert.Equal(t, core.ErrPermissionDenied, err)

	t.Run("student author is not notified", func(t *testing.T) {
		emailsvc.ResetSentMessages()
		ann, outcome, err := env.AnnouncementSvc.Create(ctx, amy, c.ID, announcement.NewAnnouncement{Title: " Trip ", Content: "Bring lunch"})
		require.NoError(t, err)
		assert.True(t, outcome.OK())
		assert.Equal(t, "Trip", ann.Title)
		assert.Equal(t, amy.Name, ann.UserFullName)

		sent := emailsvc.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, bob.Email, sent[0].To[0].Address)
		assert.Contains(t, sent[0].Subject, "New Announcement in "+c.Name()+": Trip")
	})

	t.Run("teacher notifies every student", func(t *testing.T) {
		emailsvc.ResetSentMessages()
		_, _, err := env.AnnouncementSvc.Create(ctx, teacher, c.ID, announcement.NewAnnouncement{Title: "Exam", Content: "Friday"})
		require.NoError(t, err)
		assert.Len(t, emailsvc.Sent(), 2)
	})

	t.Run("feed", func(t *testing.T) {
		feed, err := env.AnnouncementSvc.ListForCourse(ctx, bob, c.ID)
		require.NoError(t, err)
		require.Len(t, feed.Announcements, 2)
		assert.False(t, feed.Announcements[0].Date.Before(feed.Announcements[1].Date), "newest first")
		assert.Empty(t, feed.Comments)
		assert.Empty(t, feed.Reactions)

		_, err = env.AnnouncementSvc.ListForCourse(ctx, stranger, c.ID)
		assert.Equal(t, core.ErrPermissionDenied, err)

		feed, err = env.AnnouncementSvc.ListForUser(ctx, amy.ID)
		require.NoError(t, err)
		require.Len(t, feed.Announcements, 1)
		assert.Equal(t, "Trip", feed.Announcements[0].Title)

		_, err = env.AnnouncementSvc.ListForUser(ctx, "nope")
		assert.True(t, core.IsNotFound(err))
	})
}

type studentsUnavailable struct {
	*course.Service
}

func (studentsUnavailable) Students(context.Context, course.Course) ([]user.User, error) {
	return nil, assert.AnError
}

func TestService_Create_studentLookupFailure(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	teacher := env.Teacher(t, "teach")
	c := env.Course(t, teacher, env.Student(t, "amy"))
	svc := announcement.NewService(inmemdb.NewAnnouncementRepository(env.DB), studentsUnavailable{env.CourseSvc}, env.UserSvc, emailsvc.NewConsoleServiceMock())

	ann, outcome, err := svc.Create(ctx, teacher, c.ID, announcement.NewAnnouncement{Title: "Exam", Content: "Friday"})
	require.NoError(t, err)
	assert.Equal(t, "Exam", ann.Title)
	var depErr *core.DependencyError
	require.ErrorAs(t, outcome.NotifyErr, &depErr)
	assert.Equal(t, "users", depErr.Dependency)
	assert.Contains(t, outcome.Warning(), "saved, but")
}

func TestService_commentsAndReactions(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	teacher := env.Teacher(t, "teach")
	amy := env.Student(t, "amy")
	stranger := env.Student(t, "stranger")
	c := env.Course(t, teacher, amy)

	ann, _, err := env.AnnouncementSvc.Create(ctx, teacher, c.ID, announcement.NewAnnouncement{Title: "Exam", Content: "Friday"})
	require.NoError(t, err)

	t.Run("comments", func(t *testing.T) {
		_, err := env.AnnouncementSvc.AddComment(ctx, amy, ann.ID, announcement.NewComment{Content: "  "})
		assert.Equal(t, announcement.ErrContentRequired, err)
		_, err = env.AnnouncementSvc.AddComment(ctx, stranger, ann.ID, announcement.NewComment{Content: "hi"})
		assert.Equal(t, core.ErrPermissionDenied, err)
		_, err = env.AnnouncementSvc.AddComment(ctx, amy, "nope", announcement.NewComment{Content: "hi"})
		assert.Equal(t, announcement.ErrNotFound, err)

		cmt, err := env.AnnouncementSvc.AddComment(ctx, amy, ann.ID, announcement.NewComment{Content: " Which room? "})
		require.NoError(t, err)
		assert.Equal(t, "Which room?", cmt.Content)

		comments, err := env.AnnouncementSvc.Comments(ctx, teacher, ann.ID)
		require.NoError(t, err)
		require.Len(t, comments, 1)
		assert.Equal(t, amy.Name, comments[0].UserFullName)
	})

	t.Run("one reaction per user", func(t *testing.T) {
		_, _, err := env.AnnouncementSvc.React(ctx, amy, ann.ID, announcement.NewReaction{Type: "love"})
		assert.Equal(t, announcement.ErrInvalidReaction, err)

		r, created, err := env.AnnouncementSvc.React(ctx, amy, ann.ID, announcement.NewReaction{Type: announcement.ReactionLike})
		require.NoError(t, err)
		assert.True(t, created)

		updated, created, err := env.AnnouncementSvc.React(ctx, amy, ann.ID, announcement.NewReaction{Type: announcement.ReactionSad})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, r.ID, updated.ID)
		assert.Equal(t, announcement.ReactionSad, updated.Type)

		_, created, err = env.AnnouncementSvc.React(ctx, teacher, ann.ID, announcement.NewReaction{Type: announcement.ReactionHappy})
		require.NoError(t, err)
		assert.True(t, created)

		reactions, err := env.AnnouncementSvc.Reactions(ctx, amy, ann.ID)
		require.NoError(t, err)
		assert.Len(t, reactions, 2)
	})

	t.Run("feed carries comments and reactions", func(t *testing.T) {
		feed, err := env.AnnouncementSvc.ListForCourse(ctx, amy, c.ID)
		require.NoError(t, err)
		assert.Len(t, feed.Announcements, 1)
		assert.Len(t, feed.Comments, 1)
		assert.Len(t, feed.Reactions, 2)
	})
}

func TestNewReaction_Validate(t *testing.T) {
	validate := testutil.NewValidator()

	assert.NoError(t, validate.Struct(announcement.NewReaction{Type: announcement.ReactionAngry}))
	assert.Error(t, validate.Struct(announcement.NewReaction{Type: "love"}))
	assert.Error(t, validate.Struct(announcement.NewReaction{}))
	assert.Error(t, validate.Struct(announcement.NewComment{Content: " \t"}))
}
