package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"booklet-cli/internal/model"
)

type QuestionInput struct {
	Code       string
	Title      string
	Subject    string
	Difficulty model.Difficulty
	Stem       string
}

const candidateSelect = `SELECT v.id, q.id, q.code, v.title, q.subject, q.difficulty, v.stem
	FROM question_versions v JOIN questions q ON q.id = v.question_id`

func scanCandidate(r rowScanner) (model.Candidate, error) {
	var c model.Candidate
	var diff string
	if err := r.Scan(&c.VersionID, &c.QuestionID, &c.Code, &c.Title, &c.Subject, &diff, &c.Stem); err != nil {
		return model.Candidate{}, err
	}
	c.Difficulty = model.Difficulty(diff)
	return c, nil
}

// AddQuestionVersion records a new version of the question identified by Code, creating the
// question on first use. An empty Code gets a generated one.
func (s *Store) AddQuestionVersion(ctx context.Context, in QuestionInput) (model.Candidate, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return model.Candidate{}, fmt.Errorf("%w: question title is empty", ErrInvalid)
	}
	code := strings.TrimSpace(in.Code)
	if code == "" {
		c, err := newQuestionCode()
		if err != nil {
			return model.Candidate{}, err
		}
		code = c
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return model.Candidate{}, err
	}
	defer func() { _ = tx.Rollback() }()

	now := s.nowMs()
	var questionID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM questions WHERE code = ?`, code).Scan(&questionID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx,
			`INSERT INTO questions(code, subject, difficulty, created_at_unixms) VALUES(?, ?, ?, ?)`,
			code, strings.TrimSpace(in.Subject), string(in.Difficulty), now)
		if err != nil {
			return model.Candidate{}, classify(err)
		}
		if questionID, err = res.LastInsertId(); err != nil {
			return model.Candidate{}, err
		}
	case err != nil:
		return model.Candidate{}, err
	}

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM question_versions WHERE question_id = ?`, questionID).Scan(&next); err != nil {
		return model.Candidate{}, err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO question_versions(question_id, version, title, stem, created_at_unixms) VALUES(?, ?, ?, ?, ?)`,
		questionID, next, in.Title, strings.TrimSpace(in.Stem), now)
	if err != nil {
		return model.Candidate{}, classify(err)
	}
	versionID, err := res.LastInsertId()
	if err != nil {
		return model.Candidate{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Candidate{}, err
	}
	return s.GetCandidate(ctx, versionID)
}

func (s *Store) GetCandidate(ctx context.Context, versionID int64) (model.Candidate, error) {
	c, err := scanCandidate(s.db.QueryRowContext(ctx, candidateSelect+` WHERE v.id = ?`, versionID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Candidate{}, NotFoundError{Kind: "question version", ID: versionID}
	}
	return c, err
}

// CandidatesByVersion resolves display data for the given versions. Unknown ids are omitted.
func (s *Store) CandidatesByVersion(ctx context.Context, versionIDs []int64) (map[int64]model.Candidate, error) {
	out := make(map[int64]model.Candidate, len(versionIDs))
	if len(versionIDs) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(versionIDs))
	for _, id := range versionIDs {
		args = append(args, id)
	}
	q := candidateSelect + ` WHERE v.id IN (?` + strings.Repeat(`, ?`, len(versionIDs)-1) + `)`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out[c.VersionID] = c
	}
	return out, rows.Err()
}

// SearchCandidates pages through question-versions matching filter, ordered by question code
// and newest version first.
func (s *Store) SearchCandidates(ctx context.Context, filter model.SearchFilter, page model.Page) (model.SearchResult, error) {
	if page.Number < 1 {
		page.Number = 1
	}
	if page.Size < 1 {
		page.Size = defaultPageSize
	}

	where := []string{"1 = 1"}
	args := []any{}
	if q := strings.TrimSpace(filter.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		where = append(where, `(LOWER(v.title) LIKE ? OR LOWER(q.code) LIKE ? OR LOWER(v.stem) LIKE ?)`)
		args = append(args, like, like, like)
	}
	if subj := strings.TrimSpace(filter.Subject); subj != "" {
		where = append(where, `LOWER(q.subject) = ?`)
		args = append(args, strings.ToLower(subj))
	}
	if d := strings.TrimSpace(string(filter.Difficulty)); d != "" {
		where = append(where, `q.difficulty = ?`)
		args = append(args, d)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM question_versions v JOIN questions q ON q.id = v.question_id WHERE `+cond, args...).Scan(&total); err != nil {
		return model.SearchResult{}, err
	}

	pageArgs := append(append([]any{}, args...), page.Size, page.Offset())
	rows, err := s.db.QueryContext(ctx,
		candidateSelect+` WHERE `+cond+` ORDER BY q.code, v.version DESC, v.id LIMIT ? OFFSET ?`, pageArgs...)
	if err != nil {
		return model.SearchResult{}, err
	}
	defer rows.Close()

	res := model.SearchResult{Results: []model.Candidate{}, Total: total}
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return model.SearchResult{}, err
		}
		res.Results = append(res.Results, c)
	}
	if err := rows.Err(); err != nil {
		return model.SearchResult{}, err
	}
	res.HasPrevious = page.Number > 1
	res.HasNext = page.Offset()+len(res.Results) < total
	return res, nil
}
