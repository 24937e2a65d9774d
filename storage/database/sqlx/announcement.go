package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/edusys/core"
	"github.com/trezcool/edusys/core/announcement"
)

type announcementRow struct {
	ID           string    `db:"id"`
	CourseID     string    `db:"course_id"`
	UserID       string    `db:"user_id"`
	UserFullName string    `db:"user_full_name"`
	Title        string    `db:"title"`
	Content      string    `db:"content"`
	Date         time.Time `db:"date"`
}

type commentRow struct {
	ID             string    `db:"id"`
	AnnouncementID string    `db:"announcement_id"`
	UserID         string    `db:"user_id"`
	UserFullName   string    `db:"user_full_name"`
	Content        string    `db:"content"`
	Date           time.Time `db:"date"`
}

type reactionRow struct {
	ID             string    `db:"id"`
	AnnouncementID string    `db:"announcement_id"`
	UserID         string    `db:"user_id"`
	UserFullName   string    `db:"user_full_name"`
	Type           string    `db:"reaction_type"`
	Date           time.Time `db:"date"`
}

func (row reactionRow) reaction() announcement.Reaction {
	return announcement.Reaction{
		ID:             row.ID,
		AnnouncementID: row.AnnouncementID,
		UserID:         row.UserID,
		UserFullName:   row.UserFullName,
		Type:           announcement.ReactionType(row.Type),
		Date:           row.Date.UTC(),
	}
}

const (
	announcementSelect = `SELECT a.id, a.course_id, a.user_id, u.name AS user_full_name, a.title, a.content, a.date
		FROM announcements a JOIN users u ON u.id = a.user_id`
	reactionSelect = `SELECT r.id, r.announcement_id, r.user_id, u.name AS user_full_name, r.reaction_type, r.date
		FROM reactions r JOIN users u ON u.id = r.user_id`
)

type announcementRepository struct {
	base
}

var _ announcement.Repository = (*announcementRepository)(nil) // interface compliance check

func NewAnnouncementRepository(exec core.DBExecutor) *announcementRepository {
	return &announcementRepository{base{exec: exec}}
}

func (repo announcementRepository) CreateAnnouncement(ctx context.Context, a announcement.Announcement, exec ...core.DBExecutor) (announcement.Announcement, error) {
	ex := repo.getExec(exec)

	row := announcementRow(a)
	row.Date = a.Date.UTC()
	q := `INSERT INTO announcements (id, course_id, user_id, title, content, date)
		VALUES (:id, :course_id, :user_id, :title, :content, :date)`
	if _, err := sqlx.NamedExecContext(ctx, ex, q, row); err != nil {
		return announcement.Announcement{}, errors.Wrap(err, "inserting announcement")
	}
	return repo.GetAnnouncement(ctx, a.ID, ex)
}

func (repo announcementRepository) GetAnnouncement(ctx context.Context, id string, exec ...core.DBExecutor) (announcement.Announcement, error) {
	ex := repo.getExec(exec)

	var row announcementRow
	if err := sqlx.GetContext(ctx, ex, &row, ex.Rebind(announcementSelect+" WHERE a.id = ?"), id); err != nil {
		return announcement.Announcement{}, trapNoRowsErr(err, announcement.ErrNotFound, "selecting announcement")
	}
	a := announcement.Announcement(row)
	a.Date = row.Date.UTC()
	return a, nil
}

func (repo announcementRepository) QueryAnnouncements(ctx context.Context, filter announcement.QueryFilter, exec ...core.DBExecutor) ([]announcement.Announcement, error) {
	ex := repo.getExec(exec)

	var w where
	if filter.CourseID != "" {
		w.add("a.course_id = ?", filter.CourseID)
	}
	if filter.UserID != "" {
		w.add("a.user_id = ?", filter.UserID)
	}

	var rows []announcementRow
	q := ex.Rebind(announcementSelect + w.String() + " ORDER BY a.date DESC, a.id")
	if err := sqlx.SelectContext(ctx, ex, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting announcements")
	}

	anns := make([]announcement.Announcement, 0, len(rows))
	for _, row := range rows {
		a := announcement.Announcement(row)
		a.Date = row.Date.UTC()
		anns = append(anns, a)
	}
	return anns, nil
}

func (repo announcementRepository) CreateComment(ctx context.Context, c announcement.Comment, exec ...core.DBExecutor) (announcement.Comment, error) {
	ex := repo.getExec(exec)

	row := commentRow(c)
	row.Date = c.Date.UTC()
	q := `INSERT INTO comments (id, announcement_id, user_id, content, date)
		VALUES (:id, :announcement_id, :user_id, :content, :date)`
	if _, err := sqlx.NamedExecContext(ctx, ex, q, row); err != nil {
		return announcement.Comment{}, trapPQErr(err, nil, announcement.ErrNotFound, "inserting comment")
	}

	var name string
	if err := sqlx.GetContext(ctx, ex, &name, ex.Rebind("SELECT name FROM users WHERE id = ?"), c.UserID); err != nil {
		return announcement.Comment{}, errors.Wrap(err, "selecting comment author")
	}
	row.UserFullName = name
	return announcement.Comment(row), nil
}

func (repo announcementRepository) QueryComments(ctx context.Context, announcementIDs []string, exec ...core.DBExecutor) ([]announcement.Comment, error) {
	ex := repo.getExec(exec)

	var rows []commentRow
	q := ex.Rebind(`SELECT c.id, c.announcement_id, c.user_id, u.name AS user_full_name, c.content, c.date
		FROM comments c JOIN users u ON u.id = c.user_id
		WHERE c.announcement_id = ANY(?) ORDER BY c.date, c.id`)
	if err := sqlx.SelectContext(ctx, ex, &rows, q, pq.Array(announcementIDs)); err != nil {
		return nil, errors.Wrap(err, "selecting comments")
	}

	comments := make([]announcement.Comment, 0, len(rows))
	for _, row := range rows {
		c := announcement.Comment(row)
		c.Date = row.Date.UTC()
		comments = append(comments, c)
	}
	return comments, nil
}

func (repo announcementRepository) CreateReaction(ctx context.Context, r announcement.Reaction, exec ...core.DBExecutor) (announcement.Reaction, error) {
	ex := repo.getExec(exec)

	row := reactionRow{
		ID:             r.ID,
		AnnouncementID: r.AnnouncementID,
		UserID:         r.UserID,
		Type:           string(r.Type),
		Date:           r.Date.UTC(),
	}
	q := `INSERT INTO reactions (id, announcement_id, user_id, reaction_type, date)
		VALUES (:id, :announcement_id, :user_id, :reaction_type, :date)`
	if _, err := sqlx.NamedExecContext(ctx, ex, q, row); err != nil {
		return announcement.Reaction{}, trapPQErr(err, announcement.ErrReactionExists, announcement.ErrNotFound, "inserting reaction")
	}
	return repo.GetReaction(ctx, r.AnnouncementID, r.UserID, ex)
}

func (repo announcementRepository) GetReaction(ctx context.Context, announcementID, userID string, exec ...core.DBExecutor) (announcement.Reaction, error) {
	ex := repo.getExec(exec)

	var row reactionRow
	q := ex.Rebind(reactionSelect + " WHERE r.announcement_id = ? AND r.user_id = ?")
	if err := sqlx.GetContext(ctx, ex, &row, q, announcementID, userID); err != nil {
		return announcement.Reaction{}, trapNoRowsErr(err, announcement.ErrReactionNotFound, "selecting reaction")
	}
	return row.reaction(), nil
}

func (repo announcementRepository) UpdateReaction(ctx context.Context, r announcement.Reaction, exec ...core.DBExecutor) (announcement.Reaction, error) {
	ex := repo.getExec(exec)

	var row reactionRow
	q := ex.Rebind(`UPDATE reactions r SET reaction_type = ?, date = ?
		FROM users u WHERE u.id = r.user_id AND r.id = ?
		RETURNING r.id, r.announcement_id, r.user_id, u.name AS user_full_name, r.reaction_type, r.date`)
	if err := sqlx.GetContext(ctx, ex, &row, q, string(r.Type), r.Date.UTC(), r.ID); err != nil {
		return announcement.Reaction{}, trapNoRowsErr(err, announcement.ErrReactionNotFound, "updating reaction")
	}
	return row.reaction(), nil
}

func (repo announcementRepository) QueryReactions(ctx context.Context, announcementIDs []string, exec ...core.DBExecutor) ([]announcement.Reaction, error) {
	ex := repo.getExec(exec)

	var rows []reactionRow
	q := ex.Rebind(reactionSelect + " WHERE r.announcement_id = ANY(?) ORDER BY r.date, r.id")
	if err := sqlx.SelectContext(ctx, ex, &rows, q, pq.Array(announcementIDs)); err != nil {
		return nil, errors.Wrap(err, "selecting reactions")
	}

	reactions := make([]announcement.Reaction, 0, len(rows))
	for _, row := range rows {
		reactions = append(reactions, row.reaction())
	}
	return reactions, nil
}
