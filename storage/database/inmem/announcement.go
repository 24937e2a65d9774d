package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/edusys/core"
	"github.com/trezcool/edusys/core/announcement"
)

type announcementRepository struct {
	db *DB
}

func NewAnnouncementRepository(db *DB) announcement.Repository {
	return &announcementRepository{db: db}
}

// deleteAnnouncement removes an announcement along with its comments and reactions; the lock must be held.
func (db *DB) deleteAnnouncement(id string) {
	for cid, c := range db.comments {
		if c.AnnouncementID == id {
			delete(db.comments, cid)
		}
	}
	for rid, r := range db.reactions {
		if r.AnnouncementID == id {
			delete(db.reactions, rid)
		}
	}
	delete(db.announcements, id)
}

func (repo *announcementRepository) CreateAnnouncement(_ context.Context, a announcement.Announcement, _ ...core.DBExecutor) (announcement.Announcement, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.announcements[a.ID] = a
	a.UserFullName = repo.db.userName(a.UserID)
	return a, nil
}

func (repo *announcementRepository) GetAnnouncement(_ context.Context, id string, _ ...core.DBExecutor) (announcement.Announcement, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if a, ok := repo.db.announcements[id]; ok {
		a.UserFullName = repo.db.userName(a.UserID)
		return a, nil
	}
	return announcement.Announcement{}, announcement.ErrNotFound
}

func (repo *announcementRepository) QueryAnnouncements(_ context.Context, filter announcement.QueryFilter, _ ...core.DBExecutor) ([]announcement.Announcement, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	anns := make([]announcement.Announcement, 0)
	for _, a := range repo.db.announcements {
		if filter.CourseID != "" && a.CourseID != filter.CourseID {
			continue
		}
		if filter.UserID != "" && a.UserID != filter.UserID {
			continue
		}
		a.UserFullName = repo.db.userName(a.UserID)
		anns = append(anns, a)
	}
	sort.SliceStable(anns, func(i, j int) bool {
		if !anns[i].Date.Equal(anns[j].Date) {
			return anns[i].Date.After(anns[j].Date)
		}
		return anns[i].ID < anns[j].ID
	})
	return anns, nil
}

func (repo *announcementRepository) CreateComment(_ context.Context, c announcement.Comment, _ ...core.DBExecutor) (announcement.Comment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.announcements[c.AnnouncementID]; !ok {
		return announcement.Comment{}, announcement.ErrNotFound
	}
	repo.db.comments[c.ID] = c
	c.UserFullName = repo.db.userName(c.UserID)
	return c, nil
}

func (repo *announcementRepository) QueryComments(_ context.Context, announcementIDs []string, _ ...core.DBExecutor) ([]announcement.Comment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	comments := make([]announcement.Comment, 0)
	for _, c := range repo.db.comments {
		if contains(announcementIDs, c.AnnouncementID) {
			c.UserFullName = repo.db.userName(c.UserID)
			comments = append(comments, c)
		}
	}
	sort.SliceStable(comments, func(i, j int) bool {
		if !comments[i].Date.Equal(comments[j].Date) {
			return comments[i].Date.Before(comments[j].Date)
		}
		return comments[i].ID < comments[j].ID
	})
	return comments, nil
}

func (repo *announcementRepository) CreateReaction(_ context.Context, r announcement.Reaction, _ ...core.DBExecutor) (announcement.Reaction, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.announcements[r.AnnouncementID]; !ok {
		return announcement.Reaction{}, announcement.ErrNotFound
	}
	for _, existing := range repo.db.reactions {
		if existing.AnnouncementID == r.AnnouncementID && existing.UserID == r.UserID {
			return announcement.Reaction{}, announcement.ErrReactionExists
		}
	}
	repo.db.reactions[r.ID] = r
	r.UserFullName = repo.db.userName(r.UserID)
	return r, nil
}

func (repo *announcementRepository) GetReaction(_ context.Context, announcementID, userID string, _ ...core.DBExecutor) (announcement.Reaction, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, r := range repo.db.reactions {
		if r.AnnouncementID == announcementID && r.UserID == userID {
			r.UserFullName = repo.db.userName(r.UserID)
			return r, nil
		}
	}
	return announcement.Reaction{}, announcement.ErrReactionNotFound
}

func (repo *announcementRepository) UpdateReaction(_ context.Context, r announcement.Reaction, _ ...core.DBExecutor) (announcement.Reaction, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.reactions[r.ID]
	if !ok {
		return announcement.Reaction{}, announcement.ErrReactionNotFound
	}
	orig.Type = r.Type
	orig.Date = r.Date
	repo.db.reactions[r.ID] = orig
	orig.UserFullName = repo.db.userName(orig.UserID)
	return orig, nil
}

func (repo *announcementRepository) QueryReactions(_ context.Context, announcementIDs []string, _ ...core.DBExecutor) ([]announcement.Reaction, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	reactions := make([]announcement.Reaction, 0)
	for _, r := range repo.db.reactions {
		if contains(announcementIDs, r.AnnouncementID) {
			r.UserFullName = repo.db.userName(r.UserID)
			reactions = append(reactions, r)
		}
	}
	sort.SliceStable(reactions, func(i, j int) bool {
		if !reactions[i].Date.Equal(reactions[j].Date) {
			return reactions[i].Date.Before(reactions[j].Date)
		}
		return reactions[i].ID < reactions[j].ID
	})
	return reactions, nil
}
