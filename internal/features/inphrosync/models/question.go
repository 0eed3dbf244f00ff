package models

import "time"

// QuestionType groups daily poll questions on the results page
type QuestionType string

const (
	TypeMood        QuestionType = "mood"
	TypeGenre       QuestionType = "genre"
	TypePlatform    QuestionType = "platform"
	TypeDevice      QuestionType = "device"
	TypeTimeSpent   QuestionType = "time_spent"
	TypeContentType QuestionType = "content_type"
)

// Question is one daily poll question. Date is YYYY-MM-DD in the app timezone.
type Question struct {
	ID        string       `json:"id"`
	Date      string       `json:"date"`
	Type      QuestionType `json:"type"`
	Text      string       `json:"text"`
	Options   []string     `json:"options"`
	IsActive  bool         `json:"is_active"`
	CreatedAt time.Time    `json:"created_at"`
}

// QuestionResult is a question with its aggregated answers
type QuestionResult struct {
	Question
	Counts         []int64   `json:"counts"`
	Percentages    []float64 `json:"percentages"`
	TotalResponses int64     `json:"total_responses"`
	MyAnswer       *int      `json:"my_answer,omitempty"`
}

type DayResult struct {
	Date      string            `json:"date"`
	Questions []*QuestionResult `json:"questions"`
	// Answered is true once the caller answered every question of the day
	Answered bool `json:"answered"`
}

type CreateQuestionRequest struct {
	Date    string       `json:"date" binding:"required,datetime=2006-01-02" example:"2025-03-15"`
	Type    QuestionType `json:"type" binding:"required,oneof=mood genre platform device time_spent content_type" example:"platform"`
	Text    string       `json:"text" binding:"required,notblank,max=280" example:"Where did you watch most yesterday?"`
	Options []string     `json:"options" binding:"required,min=2,max=6,dive,required,max=100" example:"Netflix,Prime Video,YouTube"`
}

type RespondRequest struct {
	Option *int `json:"option" binding:"required,min=0,max=5" example:"1"`
}

type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required" example:"false"`
}

type ErrorResponse struct {
	Error string `json:"error" example:"Question not found"`
}
