package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/enrolment-backend/internal/model"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByExam retrieves all questions for a given exam, ordered by order_num.
func (r *QuestionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, question_text, question_type, options, correct_option, order_num, score_value
		 FROM questions WHERE exam_id = $1
		 ORDER BY order_num, created_at`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []model.Question{}
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.QuestionText, &q.QuestionType, &q.Options, &q.CorrectOption, &q.OrderNum, &q.ScoreValue); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Create inserts a new question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO questions (id, exam_id, question_text, question_type, options, correct_option, order_num, score_value)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		q.ID, q.ExamID, q.QuestionText, q.QuestionType, q.Options, q.CorrectOption, q.OrderNum, q.ScoreValue,
	)
	return err
}

// ReplaceForExam atomically swaps an exam's question set.
func (r *QuestionRepository) ReplaceForExam(ctx context.Context, examID uuid.UUID, questions []model.Question) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE exam_id = $1`, examID); err != nil {
			return fmt.Errorf("clear questions: %w", err)
		}

		batch := &pgx.Batch{}
		for i := range questions {
			q := &questions[i]
			if q.ID == uuid.Nil {
				q.ID = uuid.New()
			}
			q.ExamID = examID
			batch.Queue(
				`INSERT INTO questions (id, exam_id, question_text, question_type, options, correct_option, order_num, score_value)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				q.ID, q.ExamID, q.QuestionText, q.QuestionType, q.Options, q.CorrectOption, q.OrderNum, q.ScoreValue,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}
