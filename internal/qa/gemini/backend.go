// Package gemini implements the interview service on top of a text generation
// model. Sessions live in process memory for the duration of the run.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/hh-interviewer/internal/ai"
	aigemini "github.com/spigell/hh-interviewer/internal/ai/gemini"
	"github.com/spigell/hh-interviewer/internal/qa"
)

const (
	defaultQuestionCount = 5
	maxQuestionCount     = 20
	defaultDifficulty    = "medium"
	defaultLanguage      = "en"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionCompleted = errors.New("session already completed")
	ErrQuestionNotFound = errors.New("question not found")
	ErrNoQuestionsLeft  = errors.New("all questions answered")
)

type session struct {
	data        qa.Session
	title       string
	description string
	answers     map[string]string
	feedbacks   map[string]qa.Feedback
	summary     *qa.Summary
}

// Backend is a qa.Service that asks a Generator for questions, scores and
// summaries.
type Backend struct {
	gen    ai.Generator
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
	history  []qa.HistorySession

	newID func() string
	now   func() time.Time
}

var _ qa.Service = (*Backend)(nil)

func NewBackend(gen ai.Generator, logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{
		gen:      gen,
		logger:   logger,
		sessions: make(map[string]*session),
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

type questionsReply struct {
	Title     string `json:"title"`
	Questions []struct {
		Question   string   `json:"question"`
		Category   string   `json:"category"`
		Difficulty string   `json:"difficulty"`
		Hints      []string `json:"hints"`
	} `json:"questions"`
}

func (b *Backend) CreateSession(ctx context.Context, req qa.CreateSessionRequest) (*qa.Session, error) {
	description := strings.TrimSpace(req.JobDescription)
	if description == "" {
		return nil, errors.New("job description is required")
	}

	count := req.QuestionCount
	if count <= 0 {
		count = defaultQuestionCount
	}
	if count > maxQuestionCount {
		count = maxQuestionCount
	}
	difficulty := strings.TrimSpace(req.Difficulty)
	if difficulty == "" {
		difficulty = defaultDifficulty
	}
	lang := strings.TrimSpace(req.Language)
	if lang == "" {
		lang = defaultLanguage
	}

	var reply questionsReply
	err := b.ask(ctx, lang, promptQuestions, map[string]string{
		"COUNT":           strconv.Itoa(count),
		"DIFFICULTY":      difficulty,
		"JOB_DESCRIPTION": description,
	}, &reply)
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	questions := make([]qa.Question, 0, len(reply.Questions))
	for _, q := range reply.Questions {
		text := strings.TrimSpace(q.Question)
		if text == "" {
			continue
		}
		questions = append(questions, qa.Question{
			ID:         b.newID(),
			Text:       text,
			Category:   q.Category,
			Difficulty: q.Difficulty,
			Hints:      q.Hints,
		})
		if len(questions) == count {
			break
		}
	}
	if len(questions) == 0 {
		return nil, errors.New("model returned no questions")
	}

	s := &session{
		data: qa.Session{
			ID:             b.newID(),
			Questions:      questions,
			TotalQuestions: len(questions),
			Difficulty:     difficulty,
			Language:       lang,
			StartedAt:      b.now(),
		},
		title:       strings.TrimSpace(reply.Title),
		description: description,
		answers:     make(map[string]string),
		feedbacks:   make(map[string]qa.Feedback),
	}

	b.mu.Lock()
	b.sessions[s.data.ID] = s
	b.mu.Unlock()

	b.logger.Info("session created",
		zap.String("session_id", s.data.ID),
		zap.Int("questions", len(questions)),
		zap.String("lang", lang),
	)

	return copySession(&s.data), nil
}

// CurrentQuestion returns the first question without feedback.
func (b *Backend) CurrentQuestion(ctx context.Context, sessionID string) (*qa.Question, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.sessionLocked(sessionID)
	if err != nil {
		return nil, err
	}
	for _, q := range s.data.Questions {
		if _, ok := s.feedbacks[q.ID]; !ok {
			out := q
			return &out, nil
		}
	}
	return nil, ErrNoQuestionsLeft
}

type evaluationReply struct {
	Score        float64  `json:"score"`
	Feedback     string   `json:"feedback"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

func (b *Backend) SubmitAnswer(ctx context.Context, sessionID, questionID, answer string) (*qa.SubmitResult, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, errors.New("answer is required")
	}

	b.mu.Lock()
	s, q, err := b.questionLocked(sessionID, questionID)
	if err == nil && s.summary != nil {
		err = ErrSessionCompleted
	}
	var lang, description string
	if err == nil {
		lang, description = s.data.Language, s.description
	}
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var reply evaluationReply
	err = b.ask(ctx, lang, promptEvaluate, map[string]string{
		"JOB_DESCRIPTION": description,
		"QUESTION":        q.Text,
		"ANSWER":          answer,
	}, &reply)
	if err != nil {
		return nil, fmt.Errorf("evaluate answer: %w", err)
	}

	fb := qa.Feedback{
		QuestionID:   questionID,
		Score:        qa.ClampScore(reply.Score),
		Text:         strings.TrimSpace(reply.Feedback),
		Strengths:    reply.Strengths,
		Improvements: reply.Improvements,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	s.answers[questionID] = answer
	s.feedbacks[questionID] = fb
	s.data.AnsweredQuestions = len(s.feedbacks)

	return &qa.SubmitResult{
		Feedback:              fb,
		NextQuestionAvailable: s.data.AnsweredQuestions < len(s.data.Questions),
	}, nil
}

func (b *Backend) GenerateFollowUp(ctx context.Context, sessionID, questionID, answer string) (string, error) {
	b.mu.Lock()
	s, q, err := b.questionLocked(sessionID, questionID)
	var lang string
	if err == nil {
		lang = s.data.Language
		if strings.TrimSpace(answer) == "" {
			answer = s.answers[questionID]
		}
	}
	b.mu.Unlock()
	if err != nil {
		return "", err
	}

	var reply struct {
		FollowUp string `json:"followUp"`
	}
	err = b.ask(ctx, lang, promptFollowUp, map[string]string{
		"QUESTION": q.Text,
		"ANSWER":   answer,
	}, &reply)
	if err != nil {
		return "", fmt.Errorf("generate follow-up: %w", err)
	}
	return strings.TrimSpace(reply.FollowUp), nil
}

func (b *Backend) SampleAnswer(ctx context.Context, sessionID, questionID string) (string, error) {
	b.mu.Lock()
	s, q, err := b.questionLocked(sessionID, questionID)
	var lang, description string
	if err == nil {
		lang, description = s.data.Language, s.description
	}
	b.mu.Unlock()
	if err != nil {
		return "", err
	}

	var reply struct {
		SampleAnswer string `json:"sampleAnswer"`
	}
	err = b.ask(ctx, lang, promptSampleAnswer, map[string]string{
		"JOB_DESCRIPTION": description,
		"QUESTION":        q.Text,
	}, &reply)
	if err != nil {
		return "", fmt.Errorf("generate sample answer: %w", err)
	}
	return strings.TrimSpace(reply.SampleAnswer), nil
}

// CompleteSession summarises the attempt. The average is computed from the
// stored scores; the model only writes the overall feedback. Completing twice
// returns the first summary.
func (b *Backend) CompleteSession(ctx context.Context, sessionID string) (*qa.Summary, error) {
	b.mu.Lock()
	s, err := b.sessionLocked(sessionID)
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}
	if s.summary != nil {
		out := *s.summary
		b.mu.Unlock()
		return &out, nil
	}

	feedbacks := make([]qa.Feedback, 0, len(s.feedbacks))
	var transcript strings.Builder
	var total float64
	for i, q := range s.data.Questions {
		fb, ok := s.feedbacks[q.ID]
		if !ok {
			continue
		}
		feedbacks = append(feedbacks, fb)
		total += fb.Score
		fmt.Fprintf(&transcript, "%d. Q: %s\n   A: %s\n   Score: %.1f\n", i+1, q.Text, s.answers[q.ID], fb.Score)
	}
	lang, description := s.data.Language, s.description
	totalQuestions := len(s.data.Questions)
	b.mu.Unlock()

	summary := &qa.Summary{
		TotalQuestions:    totalQuestions,
		AnsweredQuestions: len(feedbacks),
		Feedbacks:         feedbacks,
	}
	if len(feedbacks) > 0 {
		summary.AverageScore = qa.ClampScore(total / float64(len(feedbacks)))

		var reply struct {
			OverallFeedback string `json:"overallFeedback"`
		}
		err := b.ask(ctx, lang, promptSummary, map[string]string{
			"JOB_DESCRIPTION": description,
			"TRANSCRIPT":      transcript.String(),
		}, &reply)
		if err != nil {
			return nil, fmt.Errorf("summarise session: %w", err)
		}
		summary.OverallFeedback = strings.TrimSpace(reply.OverallFeedback)
	} else {
		summary.OverallFeedback = "No answers were submitted."
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if s.summary != nil {
		out := *s.summary
		return &out, nil
	}
	s.summary = summary
	b.history = append(b.history, qa.HistorySession{
		ID:                s.data.ID,
		JobTitle:          s.title,
		AverageScore:      summary.AverageScore,
		TotalQuestions:    summary.TotalQuestions,
		AnsweredQuestions: summary.AnsweredQuestions,
		CompletedAt:       b.now(),
	})

	b.logger.Info("session completed",
		zap.String("session_id", sessionID),
		zap.Float64("average_score", summary.AverageScore),
	)

	out := *summary
	return &out, nil
}

// History lists the sessions completed during this run.
func (b *Backend) History(ctx context.Context) (*qa.History, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := &qa.History{
		Sessions:      append([]qa.HistorySession(nil), b.history...),
		TotalSessions: len(b.history),
	}
	if len(b.history) > 0 {
		var total float64
		for _, h := range b.history {
			total += h.AverageScore
		}
		out.AverageScore = total / float64(len(b.history))
	}
	return out, nil
}

func (b *Backend) ask(ctx context.Context, lang, prompt string, values map[string]string, target any) error {
	if b.gen == nil {
		return errors.New("generator is not configured")
	}

	system, err := render(promptSystem, map[string]string{"LANGUAGE": lang})
	if err != nil {
		return err
	}
	message, err := render(prompt, values)
	if err != nil {
		return err
	}

	raw, err := b.gen.GenerateContent(ctx, system, message)
	if err != nil {
		return err
	}

	if err := aigemini.DecodeJSON(raw, target); err != nil {
		b.logger.Debug("unexpected model reply", zap.String("prompt", prompt), zap.Error(err))
		return err
	}
	return nil
}

func (b *Backend) sessionLocked(id string) (*session, error) {
	s, ok := b.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

func (b *Backend) questionLocked(sessionID, questionID string) (*session, qa.Question, error) {
	s, err := b.sessionLocked(sessionID)
	if err != nil {
		return nil, qa.Question{}, err
	}
	for _, q := range s.data.Questions {
		if q.ID == questionID {
			return s, q, nil
		}
	}
	return nil, qa.Question{}, fmt.Errorf("%w: %s", ErrQuestionNotFound, questionID)
}

func copySession(s *qa.Session) *qa.Session {
	out := *s
	out.Questions = append([]qa.Question(nil), s.Questions...)
	return &out
}
