package models

import "time"

// Question is the poll a slot winner publishes
type Question struct {
	ID            string     `json:"id"`
	SlotID        string     `json:"slot_id"`
	UserID        int64      `json:"user_id"`
	Text          string     `json:"text"`
	Options       []string   `json:"options"`
	VoteCounts    []int64    `json:"vote_counts"`
	TotalVotes    int64      `json:"total_votes"`
	IsDeleted     bool       `json:"is_deleted"`
	DeletedReason string     `json:"deleted_reason,omitempty"`
	DeletedBy     *int64     `json:"deleted_by,omitempty"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	// MyVote is the caller's option, filled per request
	MyVote *int `json:"my_vote,omitempty"`
}

// Total recomputes TotalVotes from VoteCounts
func (q *Question) Total() int64 {
	var total int64
	for _, n := range q.VoteCounts {
		total += n
	}
	q.TotalVotes = total
	return total
}

type Vote struct {
	QuestionID  string    `json:"question_id"`
	UserID      int64     `json:"user_id"`
	OptionIndex int       `json:"option_index"`
	CreatedAt   time.Time `json:"created_at"`
}

// HistoryEntry is the permanent snapshot of a resolved slot
type HistoryEntry struct {
	SlotID       string     `json:"slot_id"`
	Date         string     `json:"date"`
	SlotNumber   int        `json:"slot_number"`
	FinalStatus  SlotStatus `json:"final_status"`
	WinnerID     *int64     `json:"winner_id,omitempty"`
	AttemptCount int        `json:"attempt_count"`
	QuestionID   string     `json:"question_id,omitempty"`
	QuestionText string     `json:"question_text,omitempty"`
	Options      []string   `json:"options,omitempty"`
	VoteCounts   []int64    `json:"vote_counts,omitempty"`
	ArchivedAt   time.Time  `json:"archived_at"`
}

// SubmitQuestionRequest is sent by the slot winner
type SubmitQuestionRequest struct {
	Text    string   `json:"text" binding:"required,notblank,max=280" example:"Which genre should get more sequels?"`
	Options []string `json:"options" binding:"required,poll_options" example:"Thriller,Comedy,Sci-fi"`
}

type VoteRequest struct {
	Option *int `json:"option" binding:"required,min=0,max=3" example:"1"`
}

type ModerateRequest struct {
	Reason string `json:"reason" binding:"required,notblank,max=500" example:"Spam"`
}

// ErrorResponse documents the error envelope for swagger
type ErrorResponse struct {
	Success bool   `json:"success" example:"false"`
	Error   string `json:"error" example:"Error message"`
}
