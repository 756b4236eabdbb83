package model

import "time"

type Booklet struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Subject   string    `json:"subject,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Item is one persisted booklet entry. Rank is unique per booklet.
type Item struct {
	ID        int64     `json:"id"`
	BookletID int64     `json:"bookletId"`
	VersionID int64     `json:"versionId"`
	Rank      int       `json:"rank"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ItemSpec is the body for create and replace calls.
type ItemSpec struct {
	VersionID int64 `json:"versionId"`
	Rank      int   `json:"rank"`
}

// ItemPatch is the body for update calls. Only Rank is mutable.
type ItemPatch struct {
	Rank *int `json:"rank,omitempty"`
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Candidate is a question-version as returned by the search endpoint.
type Candidate struct {
	VersionID  int64      `json:"versionId"`
	QuestionID int64      `json:"questionId"`
	Code       string     `json:"code,omitempty"`
	Title      string     `json:"title"`
	Subject    string     `json:"subject,omitempty"`
	Difficulty Difficulty `json:"difficulty,omitempty"`
	Stem       string     `json:"stem,omitempty"`
}

type SearchFilter struct {
	Query      string     `json:"q,omitempty"`
	Subject    string     `json:"subject,omitempty"`
	Difficulty Difficulty `json:"difficulty,omitempty"`
}

// Page is 1-based.
type Page struct {
	Number int `json:"page"`
	Size   int `json:"size"`
}

func (p Page) Offset() int {
	n := p.Number
	if n < 1 {
		n = 1
	}
	return (n - 1) * p.Size
}

type SearchResult struct {
	Results     []Candidate `json:"results"`
	HasNext     bool        `json:"hasNext"`
	HasPrevious bool        `json:"hasPrevious"`
	Total       int         `json:"total"`
}
