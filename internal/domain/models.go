package domain

import "time"

// AttemptRecord is one submission of answers by a team for a catalog.
type AttemptRecord struct {
	Team                 string `json:"name"`
	Catalog              string `json:"catalog"`
	Attempt              int    `json:"attempt"`
	CorrectCount         int    `json:"correct"`
	TotalQuestions       int    `json:"total"`
	FinishTimestamp      *int64 `json:"time"`
	DurationSeconds      *int64 `json:"durationSec"`
	PuzzleSolveTimestamp *int64 `json:"puzzleTime"`
}

// QuestionResultRecord is the outcome of a single answered question within an attempt.
type QuestionResultRecord struct {
	Team          string  `json:"name"`
	Catalog       string  `json:"catalog"`
	Attempt       int     `json:"attempt"`
	IsCorrect     bool    `json:"is_correct"`
	PointsAwarded float64 `json:"final_points"`
	Efficiency    float64 `json:"efficiency"` // normalized to [0,1]
}

// Catalog is the metadata used to map opaque catalog keys to display names.
type Catalog struct {
	UID       string `json:"uid"`
	Slug      string `json:"slug"`
	SortOrder string `json:"sortOrder"`
	Name      string `json:"name"`
}

// LeaderboardEntry is one ranked line of a top-3 list.
type LeaderboardEntry struct {
	Place int     `json:"place"`
	Name  string  `json:"name"`
	Value string  `json:"value"`
	Raw   float64 `json:"raw"`
}

// Leaderboards groups the four top-3 lists.
type Leaderboards struct {
	PuzzleTop3   []LeaderboardEntry `json:"puzzleTop3"`
	CatalogTop3  []LeaderboardEntry `json:"catalogTop3"`
	PointsTop3   []LeaderboardEntry `json:"pointsTop3"`
	AccuracyTop3 []LeaderboardEntry `json:"accuracyTop3"`
}

// ScoreboardRow summarizes one team over every attempt it submitted.
type ScoreboardRow struct {
	Name                  string  `json:"name"`
	TotalPoints           float64 `json:"totalPoints"`
	AttemptsCount         int     `json:"attemptsCount"`
	CatalogsPlayed        int     `json:"catalogsPlayed"`
	CatalogsSolved        int     `json:"catalogsSolved"`
	LastActivityTimestamp int64   `json:"lastActivityTimestamp"`
	BestPuzzleTime        *int64  `json:"bestPuzzleTime"`
}

// Standings is the published, derived view of an event's results.
type Standings struct {
	EventID      string          `json:"eventId"`
	CatalogCount int             `json:"catalogCount"`
	Leaderboards Leaderboards    `json:"leaderboards"`
	Scoreboard   []ScoreboardRow `json:"scoreboard"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// AnswerSubmission is a single answered question inside a result submission.
type AnswerSubmission struct {
	Correct    bool     `json:"correct"`
	Points     float64  `json:"points" validate:"gte=0"`
	Efficiency *float64 `json:"efficiency,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// ResultSubmission models a finished catalog run posted by a client.
// Attempt is assigned by the service when zero.
type ResultSubmission struct {
	Team           string             `json:"name" validate:"required,max=200"`
	Catalog        string             `json:"catalog" validate:"required,max=200"`
	Attempt        int                `json:"attempt" validate:"gte=0"`
	CorrectCount   int                `json:"correct" validate:"gte=0"`
	TotalQuestions int                `json:"total" validate:"gte=0"`
	FinishedAt     int64              `json:"time" validate:"gte=0"`
	DurationSec    *int64             `json:"durationSec,omitempty" validate:"omitempty,gte=0"`
	Answers        []AnswerSubmission `json:"answers,omitempty" validate:"dive"`
}
