package announcement

import "time"

type ReactionType string

const (
	ReactionHappy   ReactionType = "happy"
	ReactionSad     ReactionType = "sad"
	ReactionAngry   ReactionType = "angry"
	ReactionLike    ReactionType = "like"
	ReactionDislike ReactionType = "dislike"
)

var ReactionTypes = []ReactionType{ReactionHappy, ReactionSad, ReactionAngry, ReactionLike, ReactionDislike}

func (rt ReactionType) IsValid() bool {
	for _, t := range ReactionTypes {
		if t == rt {
			return true
		}
	}
	return false
}

type Announcement struct {
	ID           string    `json:"id"`
	CourseID     string    `json:"course_id"`
	UserID       string    `json:"user_id"`
	UserFullName string    `json:"user_full_name"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Date         time.Time `json:"date"`
}

type NewAnnouncement struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type Comment struct {
	ID             string    `json:"id"`
	AnnouncementID string    `json:"announcement"`
	UserID         string    `json:"user_id"`
	UserFullName   string    `json:"user_full_name"`
	Content        string    `json:"content"`
	Date           time.Time `json:"date"`
}

type NewComment struct {
	Content string `json:"content" validate:"notblank"`
}

type Reaction struct {
	ID             string       `json:"id"`
	AnnouncementID string       `json:"announcement"`
	UserID         string       `json:"user_id"`
	UserFullName   string       `json:"user_full_name"`
	Type           ReactionType `json:"reaction_type"`
	Date           time.Time    `json:"date"`
}

type NewReaction struct {
	Type ReactionType `json:"reaction_type" validate:"required,reaction"`
}

// Feed is a list of announcements along with their comments and reactions.
type Feed struct {
	Announcements []Announcement `json:"announcements"`
	Comments      []Comment      `json:"comments"`
	Reactions     []Reaction     `json:"reactions"`
}

type QueryFilter struct {
	CourseID string
	UserID   string
}
