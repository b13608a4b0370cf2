package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Question represents a single exam question.
type Question struct {
	ID            uuid.UUID       `json:"id"`
	ExamID        uuid.UUID       `json:"exam_id"`
	QuestionText  string          `json:"question_text"`
	QuestionType  QuestionType    `json:"question_type"`
	Options       json.RawMessage `json:"options"`
	CorrectOption string          `json:"correct_option"`
	OrderNum      int             `json:"order_num"`
	ScoreValue    int             `json:"score_value"`
}

type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeEssay          QuestionType = "ESSAY"
)

// QuestionForPaper is a question without its correct answer.
type QuestionForPaper struct {
	ID           uuid.UUID       `json:"id"`
	QuestionText string          `json:"question_text"`
	QuestionType QuestionType    `json:"question_type"`
	Options      json.RawMessage `json:"options"`
	OrderNum     int             `json:"order_num"`
	ScoreValue   int             `json:"score_value"`
}

// ForPaper strips the answer key.
func (q *Question) ForPaper() QuestionForPaper {
	return QuestionForPaper{
		ID:           q.ID,
		QuestionText: q.QuestionText,
		QuestionType: q.QuestionType,
		Options:      q.Options,
		OrderNum:     q.OrderNum,
		ScoreValue:   q.ScoreValue,
	}
}

// QuestionRequest is the payload for adding or replacing a question.
type QuestionRequest struct {
	QuestionText  string          `json:"question_text" binding:"required,min=1,max=2000"`
	QuestionType  QuestionType    `json:"question_type" binding:"required,oneof=MULTIPLE_CHOICE ESSAY"`
	Options       json.RawMessage `json:"options"`
	CorrectOption string          `json:"correct_option" binding:"max=20"`
	OrderNum      int             `json:"order_num" binding:"min=0"`
	ScoreValue    int             `json:"score_value" binding:"omitempty,min=0,max=1000"`
}

// ReplaceQuestionsRequest is the payload for bulk replacing an exam's questions.
type ReplaceQuestionsRequest struct {
	Questions []QuestionRequest `json:"questions" binding:"required,dive"`
}
