package models

import "time"

type Category string

const (
	CategoryFilm    Category = "film"
	CategorySeries  Category = "series"
	CategoryMusic   Category = "music"
	CategoryGaming  Category = "gaming"
	CategoryOTT     Category = "ott"
	CategoryTV      Category = "tv"
	CategoryYouTube Category = "youtube"
	CategoryApps    Category = "apps"
)

type Sort string

const (
	SortRecent  Sort = "recent"
	SortPopular Sort = "popular"
)

type Opinion struct {
	ID               string     `json:"id"`
	UserID           int64      `json:"user_id"`
	AuthorName       string     `json:"author_name,omitempty"`
	Category         Category   `json:"category"`
	Title            string     `json:"title"`
	Content          string     `json:"content"`
	Genre            string     `json:"genre,omitempty"`
	WouldPay         bool       `json:"would_pay"`
	Upvotes          int        `json:"upvotes"`
	IsHidden         bool       `json:"is_hidden"`
	ModerationReason string     `json:"moderation_reason,omitempty"`
	ModeratedBy      *int64     `json:"moderated_by,omitempty"`
	ModeratedAt      *time.Time `json:"moderated_at,omitempty"`
	DeletedAt        *time.Time `json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	UpvotedByMe      bool       `json:"upvoted_by_me"`
}

// Filter selects the feed. Hidden opinions are only listed for moderators.
type Filter struct {
	Category      Category
	Genre         string
	AuthorID      int64
	Search        string
	Sort          Sort
	IncludeHidden bool
	Limit         int
	Offset        int
	// ViewerID fills UpvotedByMe when set
	ViewerID int64
}

type ListQuery struct {
	Category Category `form:"category" binding:"omitempty,oneof=film series music gaming ott tv youtube apps"`
	Genre    string   `form:"genre" binding:"omitempty,max=50"`
	AuthorID int64    `form:"author_id" binding:"omitempty,min=1"`
	Search   string   `form:"q" binding:"omitempty,max=100"`
	Sort     Sort     `form:"sort" binding:"omitempty,oneof=recent popular"`
	Limit    int      `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset   int      `form:"offset" binding:"omitempty,min=0"`
}

type CreateOpinionRequest struct {
	Category Category `json:"category" binding:"required,oneof=film series music gaming ott tv youtube apps" example:"film"`
	Title    string   `json:"title" binding:"required,notblank,max=200" example:"More regional thrillers please"`
	Content  string   `json:"content" binding:"required,notblank,max=5000" example:"Recent regional thrillers outperformed big budget remakes."`
	Genre    string   `json:"genre" binding:"omitempty,max=50" example:"thriller"`
	WouldPay bool     `json:"would_pay" example:"true"`
}

type ModerationRequest struct {
	Reason string `json:"reason" binding:"required,notblank,max=500" example:"Personal attack"`
}

type ErrorResponse struct {
	Error string `json:"error" example:"Opinion not found"`
}

// Viewer identifies who reads the feed. Moderators and authors can see
// hidden opinions.
type Viewer struct {
	ID        int64
	Moderator bool
}

func (v Viewer) CanSee(o *Opinion) bool {
	return !o.IsHidden || v.Moderator || (v.ID != 0 && v.ID == o.UserID)
}
