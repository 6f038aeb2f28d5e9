// Package qa talks to the remote interview service that creates sessions,
// scores answers and summarises attempts.
package qa

import (
	"context"
	"time"
)

// Service is the remote Q&A protocol. Every call is plain request/response.
type Service interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error)
	CurrentQuestion(ctx context.Context, sessionID string) (*Question, error)
	SubmitAnswer(ctx context.Context, sessionID, questionID, answer string) (*SubmitResult, error)
	GenerateFollowUp(ctx context.Context, sessionID, questionID, answer string) (string, error)
	SampleAnswer(ctx context.Context, sessionID, questionID string) (string, error)
	CompleteSession(ctx context.Context, sessionID string) (*Summary, error)
	History(ctx context.Context) (*History, error)
}

// Envelope wraps every remote response.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type CreateSessionRequest struct {
	JobDescription string `json:"jobDescription"`
	QuestionCount  int    `json:"questionCount,omitempty"`
	Difficulty     string `json:"difficulty,omitempty"`
	Language       string `json:"language,omitempty"`
}

type Question struct {
	ID         string   `json:"id" mapstructure:"id"`
	Text       string   `json:"question" mapstructure:"question"`
	Category   string   `json:"category,omitempty" mapstructure:"category"`
	Difficulty string   `json:"difficulty,omitempty" mapstructure:"difficulty"`
	Hints      []string `json:"hints,omitempty" mapstructure:"hints"`
}

type Session struct {
	ID                string     `json:"id" mapstructure:"id"`
	Questions         []Question `json:"questions" mapstructure:"questions"`
	TotalQuestions    int        `json:"totalQuestions" mapstructure:"totalQuestions"`
	AnsweredQuestions int        `json:"answeredQuestions" mapstructure:"answeredQuestions"`
	Difficulty        string     `json:"difficulty,omitempty" mapstructure:"difficulty"`
	Language          string     `json:"language,omitempty" mapstructure:"language"`
	StartedAt         time.Time  `json:"startedAt" mapstructure:"startedAt"`
}

// Total returns the number of questions in the session. The question list may
// be shorter when the service hands questions out one at a time.
func (s *Session) Total() int {
	if s == nil {
		return 0
	}
	if s.TotalQuestions > 0 {
		return s.TotalQuestions
	}
	return len(s.Questions)
}

type Feedback struct {
	QuestionID   string   `json:"questionId" mapstructure:"questionId"`
	Score        float64  `json:"score" mapstructure:"score"`
	Text         string   `json:"feedback" mapstructure:"feedback"`
	Strengths    []string `json:"strengths,omitempty" mapstructure:"strengths"`
	Improvements []string `json:"improvements,omitempty" mapstructure:"improvements"`
}

type SubmitResult struct {
	Feedback              Feedback `json:"feedback" mapstructure:"feedback"`
	NextQuestionAvailable bool     `json:"nextQuestionAvailable" mapstructure:"nextQuestionAvailable"`
}

type Summary struct {
	OverallFeedback   string     `json:"overallFeedback" mapstructure:"overallFeedback"`
	AverageScore      float64    `json:"averageScore" mapstructure:"averageScore"`
	TotalQuestions    int        `json:"totalQuestions" mapstructure:"totalQuestions"`
	AnsweredQuestions int        `json:"answeredQuestions" mapstructure:"answeredQuestions"`
	Feedbacks         []Feedback `json:"feedbacks,omitempty" mapstructure:"feedbacks"`
}

type HistorySession struct {
	ID                string    `json:"id" mapstructure:"id"`
	JobTitle          string    `json:"jobTitle,omitempty" mapstructure:"jobTitle"`
	AverageScore      float64   `json:"averageScore" mapstructure:"averageScore"`
	TotalQuestions    int       `json:"totalQuestions" mapstructure:"totalQuestions"`
	AnsweredQuestions int       `json:"answeredQuestions" mapstructure:"answeredQuestions"`
	CompletedAt       time.Time `json:"completedAt" mapstructure:"completedAt"`
}

type History struct {
	Sessions      []HistorySession `json:"sessions" mapstructure:"sessions"`
	TotalSessions int              `json:"totalSessions" mapstructure:"totalSessions"`
	AverageScore  float64          `json:"averageScore" mapstructure:"averageScore"`
}

const (
	MinScore = 0
	MaxScore = 10
)

// ClampScore keeps a score within [MinScore, MaxScore].
func ClampScore(score float64) float64 {
	switch {
	case score < MinScore:
		return MinScore
	case score > MaxScore:
		return MaxScore
	default:
		return score
	}
}
