// Package notify delivers fire-and-forget signals to students when daily
// goals reach their milestones or retention tests come due.
package notify

import "log"

// Sink receives goal-completion signals. Implementations must not block the
// caller; delivery failures are logged and dropped.
type Sink interface {
	HalfCompleted(userID int64, trackID, day string)
	AllCompleted(userID int64, trackID, day string)
	LearningGoalCompleted(userID int64, trackID, day string)
}

// LogSink writes every signal to the process log. It is the default sink
// when no delivery channel is configured.
type LogSink struct{}

// NewLogSink creates a log-only sink.
func NewLogSink() *LogSink {
	return &LogSink{}
}

func (s *LogSink) HalfCompleted(userID int64, trackID, day string) {
	log.Printf("user %d reached half of the daily goals for %s on %s", userID, trackID, day)
}

func (s *LogSink) AllCompleted(userID int64, trackID, day string) {
	log.Printf("user %d completed all daily goals for %s on %s", userID, trackID, day)
}

func (s *LogSink) LearningGoalCompleted(userID int64, trackID, day string) {
	log.Printf("user %d completed the learning goal for %s on %s", userID, trackID, day)
}

func (s *LogSink) SendRetentionReminder(userID int64, count int) error {
	log.Printf("user %d has %d facts due for a retention check", userID, count)
	return nil
}
