package domain

import "time"

// Role is the capacity in which a user takes part in a presentation.
type Role string

const (
	RoleOrganizer Role = "ORGANIZER"
	RoleSpeaker   Role = "SPEAKER"
	RoleAudience  Role = "AUDIENCE"
)

// CanControl reports whether the role may drive quiz progression.
func (r Role) CanControl() bool {
	return r == RoleOrganizer || r == RoleSpeaker
}

// Identity is the authenticated user behind a connection.
type Identity struct {
	UserID      string `json:"userId"`
	Role        Role   `json:"role"`
	DisplayName string `json:"displayName"`
}

// QuizStatus mirrors the quiz lifecycle owned by the persistence layer.
type QuizStatus string

const (
	QuizDraft     QuizStatus = "DRAFT"
	QuizActive    QuizStatus = "ACTIVE"
	QuizCompleted QuizStatus = "COMPLETED"
	QuizCancelled QuizStatus = "CANCELLED"
)

// Terminal reports whether no further transition is possible.
func (s QuizStatus) Terminal() bool {
	return s == QuizCompleted || s == QuizCancelled
}

// CanTransitionTo enforces DRAFT -> ACTIVE -> {COMPLETED | CANCELLED}.
// A DRAFT quiz may also be cancelled before it ever runs.
func (s QuizStatus) CanTransitionTo(next QuizStatus) bool {
	switch s {
	case QuizDraft:
		return next == QuizActive || next == QuizCancelled
	case QuizActive:
		return next == QuizActive || next == QuizCompleted || next == QuizCancelled
	default:
		return false
	}
}

// Option is one labelled choice (A-D) of a question.
type Option struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Question models an MCQ question with exactly one correct option label.
type Question struct {
	ID            string   `json:"id"`
	QuizID        string   `json:"quizId"`
	Position      int      `json:"position"`
	Text          string   `json:"text"`
	Options       []Option `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}

// HasOption reports whether label names one of the question's options. Labels are case-sensitive.
func (q Question) HasOption(label string) bool {
	for _, option := range q.Options {
		if option.Label == label {
			return true
		}
	}
	return false
}

// Quiz is an ordered collection of questions attached to a presentation.
type Quiz struct {
	ID             string     `json:"id"`
	PresentationID string     `json:"presentationId"`
	Title          string     `json:"title"`
	Status         QuizStatus `json:"status"`
	TimeLimit      int        `json:"timeLimit"` // seconds per question, advisory
	Questions      []Question `json:"questions"`
}

// Question returns the question with the given id, if it belongs to the quiz.
func (q Quiz) Question(questionID string) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == questionID {
			return question, true
		}
	}
	return Question{}, false
}

// PublicQuestion is a question as shown to clients while the quiz is live.
type PublicQuestion struct {
	ID       string   `json:"id"`
	Position int      `json:"position"`
	Text     string   `json:"text"`
	Options  []Option `json:"options"`
}

// PublicQuiz is a quiz without its correct answers.
type PublicQuiz struct {
	ID             string           `json:"id"`
	PresentationID string           `json:"presentationId"`
	Title          string           `json:"title"`
	Status         QuizStatus       `json:"status"`
	TimeLimit      int              `json:"timeLimit"`
	Questions      []PublicQuestion `json:"questions"`
}

// Public strips correct answers so the quiz can be broadcast.
func (q Quiz) Public() PublicQuiz {
	questions := make([]PublicQuestion, 0, len(q.Questions))
	for _, question := range q.Questions {
		questions = append(questions, PublicQuestion{
			ID:       question.ID,
			Position: question.Position,
			Text:     question.Text,
			Options:  question.Options,
		})
	}
	return PublicQuiz{
		ID:             q.ID,
		PresentationID: q.PresentationID,
		Title:          q.Title,
		Status:         q.Status,
		TimeLimit:      q.TimeLimit,
		Questions:      questions,
	}
}

// ProgressionState is the authoritative "which question is live" record of one quiz.
type ProgressionState struct {
	QuizID               string    `json:"quizId"`
	CurrentQuestionIndex int       `json:"currentQuestionIndex"`
	LastUpdated          time.Time `json:"lastUpdated"`
}

// TimeoutAnswer is recorded when a participant let the timer run out.
const TimeoutAnswer = "TIMEOUT"

// AnswerRecord is unique per (QuizID, QuestionID, UserID).
type AnswerRecord struct {
	QuizID      string    `json:"quizId"`
	QuestionID  string    `json:"questionId"`
	UserID      string    `json:"userId"`
	Answer      string    `json:"answer"`
	IsCorrect   bool      `json:"isCorrect"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// IsTimeout reports whether the record holds the timeout sentinel.
func (a AnswerRecord) IsTimeout() bool {
	return a.Answer == TimeoutAnswer
}

// AnswerSubmission is what a participant sends for one question.
type AnswerSubmission struct {
	QuizID         string
	QuestionID     string
	Answer         string
	PresentationID string
}

// OptionCounts holds how many participants picked each option label.
type OptionCounts struct {
	A int `json:"A"`
	B int `json:"B"`
	C int `json:"C"`
	D int `json:"D"`
}

// Total is the number of non-timeout answers.
func (o OptionCounts) Total() int {
	return o.A + o.B + o.C + o.D
}

// QuestionStats aggregates answers for one question.
type QuestionStats struct {
	QuestionID   string       `json:"questionId"`
	OptionCounts OptionCounts `json:"optionCounts"`
	TotalAnswers int          `json:"totalAnswers"`
	CorrectCount int          `json:"correctCount"`
	TimeoutCount int          `json:"timeoutCount"`
	Accuracy     int          `json:"accuracy"`
}

// QuizStats is recomputed from answer records on every submission and never stored.
type QuizStats struct {
	QuizID           string          `json:"quizId"`
	ParticipantCount int             `json:"participantCount"`
	TotalAnswers     int             `json:"totalAnswers"`
	CorrectAnswers   int             `json:"correctAnswers"`
	OverallAccuracy  int             `json:"overallAccuracy"`
	AverageScore     float64         `json:"averageScore"`
	Questions        []QuestionStats `json:"questions"`
}

// FeedbackType enumerates the quick reactions the audience can send.
type FeedbackType string

const (
	FeedbackLike     FeedbackType = "LIKE"
	FeedbackConfused FeedbackType = "CONFUSED"
	FeedbackQuestion FeedbackType = "QUESTION"
	FeedbackTooFast  FeedbackType = "TOO_FAST"
	FeedbackTooSlow  FeedbackType = "TOO_SLOW"
)

// Feedback is a persisted audience reaction.
type Feedback struct {
	ID             string       `json:"id"`
	PresentationID string       `json:"presentationId"`
	UserID         string       `json:"userId"`
	DisplayName    string       `json:"displayName"`
	Type           FeedbackType `json:"type"`
	Message        string       `json:"message,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// DiscussionComment is a persisted comment on a quiz (optionally one question).
type DiscussionComment struct {
	ID          string    `json:"id"`
	QuizID      string    `json:"quizId"`
	QuestionID  string    `json:"questionId,omitempty"`
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
