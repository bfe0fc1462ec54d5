package backend

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/victornm/quizsync/internal/domain"
	"github.com/victornm/quizsync/internal/errors"
)

const (
	notifyChannel       = "session_changes"
	codeUniqueViolation = "23505"
)

type Config struct {
	DB  *pgxpool.Pool
	Log zerolog.Logger
}

type Postgres struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

func NewPostgres(c Config) *Postgres {
	return &Postgres{
		db:  c.DB,
		log: c.Log.With().Str("component", "backend.postgres").Logger(),
	}
}

// batcher is satisfied by both the pool and a transaction.
type batcher interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

func (p *Postgres) SessionByCode(ctx context.Context, code string) (*domain.Session, error) {
	return p.session(ctx, "code", code)
}

func (p *Postgres) SaveQuiz(ctx context.Context, q domain.Quiz) error {
	return p.inTx(ctx, func(tx pgx.Tx) error {
		return saveQuiz(ctx, tx, q)
	})
}

func (p *Postgres) CreateSession(ctx context.Context, s *domain.Session) error {
	const stmt = `
INSERT INTO game_sessions (id, quiz_id, code, status, current_question_index, host_id, started_at)
VALUES ($1, $2, $3, $4, $5, $6, $7);`

	return p.inTx(ctx, func(tx pgx.Tx) error {
		if err := saveQuiz(ctx, tx, s.Quiz); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, stmt, s.ID, s.Quiz.ID, s.Code, string(s.Status), s.CurrentQuestionIndex, s.HostID, s.StartedAt)

		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
			return errors.New(errors.CodeAlreadyExists,
				errors.WithMessagef("session code already in use: code=%s", s.Code),
				errors.WithCause(err))
		}
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		return nil
	})
}

func (p *Postgres) UpdateSession(ctx context.Context, s *domain.Session) error {
	const stmt = `
UPDATE game_sessions
SET status = $2,
    current_question_index = $3,
    started_at = COALESCE(started_at, $4),
    finished_at = CASE WHEN $2 = 'finished' THEN COALESCE(finished_at, now()) ELSE finished_at END
WHERE id = $1;`

	tag, err := p.db.Exec(ctx, stmt, s.ID, string(s.Status), s.CurrentQuestionIndex, s.StartedAt)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return errors.NotFound("session not found: id=%s", s.ID)
	}

	return nil
}

func (p *Postgres) JoinGame(ctx context.Context, sessionID string, pl domain.Player) error {
	const stmt = `
INSERT INTO players (id, session_id, nickname, avatar, score)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING;`

	if _, err := p.db.Exec(ctx, stmt, pl.ID, sessionID, pl.Nickname, pl.Avatar, pl.Score); err != nil {
		return fmt.Errorf("insert player: %w", err)
	}

	return nil
}

func (p *Postgres) RemovePlayer(ctx context.Context, playerID string) error {
	if _, err := p.db.Exec(ctx, `DELETE FROM players WHERE id = $1;`, playerID); err != nil {
		return fmt.Errorf("delete player: %w", err)
	}

	return nil
}

func (p *Postgres) UpdatePlayerScore(ctx context.Context, playerID string, score int) error {
	tag, err := p.db.Exec(ctx, `UPDATE players SET score = $2 WHERE id = $1;`, playerID, score)
	if err != nil {
		return fmt.Errorf("update score: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return errors.NotFound("player not found: id=%s", playerID)
	}

	return nil
}

// SubmitAnswer records one answer. A second answer from the same player to
// the same question is ignored.
func (p *Postgres) SubmitAnswer(ctx context.Context, a domain.PlayerAnswer) error {
	const stmt = `
INSERT INTO player_answers (player_id, question_id, answer_id, time_taken, points_earned, is_correct)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (player_id, question_id) DO NOTHING;`

	if _, err := p.db.Exec(ctx, stmt, a.PlayerID, a.QuestionID, a.AnswerID, a.TimeTaken, a.PointsEarned, a.IsCorrect); err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}

	return nil
}

func (p *Postgres) Watch(ctx context.Context, sessionID string, fn func(s *domain.Session)) error {
	conn, err := p.db.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(context.WithoutCancel(ctx), "UNLISTEN *")
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		if n.Payload != sessionID {
			continue
		}

		s, err := p.session(ctx, "id", sessionID)
		if err != nil {
			p.log.Warn().Err(err).Str("session", sessionID).Msg("reload session failed")
			continue
		}

		fn(s)
	}
}

func (p *Postgres) session(ctx context.Context, column, value string) (*domain.Session, error) {
	// column is never user input.
	stmt := `
SELECT id::text, quiz_id, code, status, current_question_index, host_id, started_at
FROM game_sessions
WHERE ` + column + ` = $1;`

	var (
		s      domain.Session
		quizID string
		status string
	)
	err := p.db.QueryRow(ctx, stmt, value).
		Scan(&s.ID, &quizID, &s.Code, &status, &s.CurrentQuestionIndex, &s.HostID, &s.StartedAt)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("game not found: %s=%s", column, value)
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}
	s.Status = domain.Status(status)

	if s.Quiz, err = p.quiz(ctx, quizID); err != nil {
		return nil, err
	}

	if s.Players, err = p.players(ctx, s.ID); err != nil {
		return nil, err
	}

	return &s, nil
}

func (p *Postgres) quiz(ctx context.Context, id string) (domain.Quiz, error) {
	q := domain.Quiz{ID: id}
	err := p.db.QueryRow(ctx, `SELECT title, description FROM quizzes WHERE id = $1;`, id).
		Scan(&q.Title, &q.Description)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("select quiz %s: %w", id, err)
	}

	const questionsStmt = `
SELECT id, question_text, explanation, fun_fact, category, difficulty, time_limit, points, chart_data
FROM questions
WHERE quiz_id = $1
ORDER BY sort_order;`

	rows, err := p.db.Query(ctx, questionsStmt, id)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("select questions: %w", err)
	}

	q.Questions, err = pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Question, error) {
		var (
			qu         domain.Question
			difficulty string
			chart      []byte
		)
		if err := r.Scan(&qu.ID, &qu.Text, &qu.Explanation, &qu.FunFact, &qu.Category, &difficulty, &qu.TimeLimit, &qu.Points, &chart); err != nil {
			return domain.Question{}, err
		}
		qu.Difficulty = domain.Difficulty(difficulty)

		if len(chart) > 0 {
			if err := json.Unmarshal(chart, &qu.ChartData); err != nil {
				return domain.Question{}, fmt.Errorf("decode chart data of %s: %w", qu.ID, err)
			}
		}

		return qu, nil
	})
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("collect questions: %w", err)
	}

	const answersStmt = `
SELECT question_id, id, answer_text, is_correct, color
FROM answers
WHERE quiz_id = $1
ORDER BY sort_order;`

	rows, err = p.db.Query(ctx, answersStmt, id)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("select answers: %w", err)
	}

	type row struct {
		questionID string
		answer     domain.Answer
	}
	answers, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (row, error) {
		var (
			a     row
			color string
		)
		if err := r.Scan(&a.questionID, &a.answer.ID, &a.answer.Text, &a.answer.IsCorrect, &color); err != nil {
			return row{}, err
		}
		a.answer.Color = domain.Color(color)
		return a, nil
	})
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("collect answers: %w", err)
	}

	for _, a := range answers {
		for i := range q.Questions {
			if q.Questions[i].ID == a.questionID {
				q.Questions[i].Answers = append(q.Questions[i].Answers, a.answer)
			}
		}
	}

	return q, nil
}

func (p *Postgres) players(ctx context.Context, sessionID string) ([]domain.Player, error) {
	const stmt = `
SELECT id, nickname, avatar, score
FROM players
WHERE session_id = $1
ORDER BY joined_at, id;`

	rows, err := p.db.Query(ctx, stmt, sessionID)
	if err != nil {
		return nil, fmt.Errorf("select players: %w", err)
	}

	players, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Player, error) {
		var pl domain.Player
		err := r.Scan(&pl.ID, &pl.Nickname, &pl.Avatar, &pl.Score)
		return pl, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect players: %w", err)
	}

	return players, nil
}

func (p *Postgres) inTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// saveQuiz replaces the stored copy of q.
func saveQuiz(ctx context.Context, db batcher, q domain.Quiz) error {
	const (
		upsertQuizStmt = `
INSERT INTO quizzes (id, title, description)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, description = EXCLUDED.description, updated_at = now();`
		deleteQuestionsStmt = `DELETE FROM questions WHERE quiz_id = $1;`
		insQuestionStmt     = `
INSERT INTO questions (quiz_id, id, sort_order, question_text, explanation, fun_fact, category, difficulty, time_limit, points, chart_data)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);`
		insAnswerStmt = `
INSERT INTO answers (quiz_id, question_id, id, sort_order, answer_text, is_correct, color)
VALUES ($1, $2, $3, $4, $5, $6, $7);`
	)

	b := &pgx.Batch{}
	b.Queue(upsertQuizStmt, q.ID, q.Title, q.Description)
	b.Queue(deleteQuestionsStmt, q.ID)

	for i, qu := range q.Questions {
		var chart []byte
		if len(qu.ChartData) > 0 {
			var err error
			if chart, err = json.Marshal(qu.ChartData); err != nil {
				return fmt.Errorf("encode chart data of %s: %w", qu.ID, err)
			}
		}

		b.Queue(insQuestionStmt, q.ID, qu.ID, i, qu.Text, qu.Explanation, qu.FunFact, qu.Category, string(qu.Difficulty), qu.TimeLimit, qu.Points, chart)
		for j, a := range qu.Answers {
			b.Queue(insAnswerStmt, q.ID, qu.ID, a.ID, j, a.Text, a.IsCorrect, string(a.Color))
		}
	}

	if err := db.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("save quiz %s: %w", q.ID, err)
	}

	return nil
}
