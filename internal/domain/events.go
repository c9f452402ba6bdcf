package domain

// Wire event names shared by the server and the Go client.
const (
	EventJoinPresentation  = "join-presentation"
	EventLeavePresentation = "leave-presentation"
	EventStartQuiz         = "start-quiz"
	EventQuizStarted       = "quiz-started"
	EventNextQuestion      = "next-question"
	EventEndQuiz           = "end-quiz"
	EventQuizEnded         = "quiz-ended"
	EventGetQuizState      = "get-quiz-state"
	EventSyncQuestionState = "sync-question-state"
	EventSubmitAnswer      = "submit-answer"
	EventAnswerSubmitted   = "answer-submitted"
	EventQuizStatsUpdated  = "quiz-stats-updated"
	EventSubmitFeedback    = "submit-feedback"
	EventFeedbackReceived  = "feedback-received"
	EventCommentAdded      = "discussion-comment-added"
	EventCommentUpdated    = "discussion-comment-updated"
	EventCommentDeleted    = "discussion-comment-deleted"
	EventAck               = "ack"
	EventError             = "error"
	EventPing              = "ping"
	EventPong              = "pong"
)

// Event is one outbound notification fanned out to a room or a single connection.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}
