package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizbot/internal/domain"
)

// QuestionBank stores question records in Postgres; the option list lives in
// a JSONB column.
type QuestionBank struct {
	pool *pgxpool.Pool
}

func NewQuestionBank(pool *pgxpool.Pool) *QuestionBank {
	return &QuestionBank{pool: pool}
}

func (b *QuestionBank) GetByID(ctx context.Context, id int64) (domain.QuestionRecord, error) {
	row := b.pool.QueryRow(ctx,
		`SELECT id, text, options, correct_option, category FROM questions WHERE id=$1`, id)
	q, err := scanQuestion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.QuestionRecord{}, domain.ErrQuestionNotFound
		}
		return domain.QuestionRecord{}, fmt.Errorf("load question: %w", err)
	}
	return q, nil
}

func (b *QuestionBank) SampleRandom(ctx context.Context, n int, category string) ([]domain.QuestionRecord, error) {
	rows, err := b.pool.Query(ctx,
		`SELECT id, text, options, correct_option, category FROM questions
		 WHERE ($1 = '' OR category = $1) ORDER BY random() LIMIT $2`, category, n)
	if err != nil {
		return nil, fmt.Errorf("sample questions: %w", err)
	}
	defer rows.Close()
	return collectQuestions(rows)
}

func (b *QuestionBank) ListFrom(ctx context.Context, startID int64, n int) ([]domain.QuestionRecord, error) {
	rows, err := b.pool.Query(ctx,
		`SELECT id, text, options, correct_option, category FROM questions
		 WHERE id >= $1 ORDER BY id LIMIT $2`, startID, n)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()
	return collectQuestions(rows)
}

// Create inserts a record and returns the assigned id.
func (b *QuestionBank) Create(ctx context.Context, q domain.QuestionRecord) (int64, error) {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return 0, fmt.Errorf("marshal options: %w", err)
	}
	var id int64
	err = b.pool.QueryRow(ctx,
		`INSERT INTO questions (text, options, correct_option, category)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		q.Text, options, q.CorrectOption, q.Category).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create question: %w", err)
	}
	return id, nil
}

// Update replaces a record. If the edit shrank the option list below the
// correct index, the index is reset to 0 to keep the record well-formed.
func (b *QuestionBank) Update(ctx context.Context, q domain.QuestionRecord) error {
	if q.CorrectOption < 0 || q.CorrectOption >= len(q.Options) {
		q.CorrectOption = 0
	}
	options, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	tag, err := b.pool.Exec(ctx,
		`UPDATE questions SET text=$2, options=$3, correct_option=$4, category=$5 WHERE id=$1`,
		q.ID, q.Text, options, q.CorrectOption, q.Category)
	if err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

func (b *QuestionBank) Delete(ctx context.Context, id int64) error {
	tag, err := b.pool.Exec(ctx, `DELETE FROM questions WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

// Categories returns the distinct non-empty categories in the bank.
func (b *QuestionBank) Categories(ctx context.Context) ([]string, error) {
	rows, err := b.pool.Query(ctx,
		`SELECT DISTINCT category FROM questions WHERE category <> '' ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQuestion(row rowScanner) (domain.QuestionRecord, error) {
	var q domain.QuestionRecord
	var options []byte
	if err := row.Scan(&q.ID, &q.Text, &options, &q.CorrectOption, &q.Category); err != nil {
		return domain.QuestionRecord{}, err
	}
	if err := json.Unmarshal(options, &q.Options); err != nil {
		return domain.QuestionRecord{}, fmt.Errorf("unmarshal options: %w", err)
	}
	return q, nil
}

func collectQuestions(rows pgx.Rows) ([]domain.QuestionRecord, error) {
	var questions []domain.QuestionRecord
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
