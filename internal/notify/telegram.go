package notify

import (
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSink sends completion signals as Telegram messages. User IDs
// double as Telegram chat IDs.
type TelegramSink struct {
	api *tgbotapi.BotAPI
}

// NewTelegramSink creates a sink backed by a Telegram bot token.
func NewTelegramSink(token string) (*TelegramSink, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %v", err)
	}
	return &TelegramSink{api: api}, nil
}

func (s *TelegramSink) HalfCompleted(userID int64, trackID, day string) {
	s.send(userID, fmt.Sprintf("Halfway there! You've finished half of today's %s goals. Keep going!", trackID))
}

func (s *TelegramSink) AllCompleted(userID int64, trackID, day string) {
	s.send(userID, fmt.Sprintf("Amazing! All of today's %s goals are complete. See you tomorrow!", trackID))
}

func (s *TelegramSink) LearningGoalCompleted(userID int64, trackID, day string) {
	s.send(userID, fmt.Sprintf("Nice work! Today's learning goal for %s is done.", trackID))
}

// SendRetentionReminder implements scheduler.Notifier.
func (s *TelegramSink) SendRetentionReminder(userID int64, count int) error {
	factForm := "facts"
	if count == 1 {
		factForm = "fact"
	}
	msg := tgbotapi.NewMessage(userID, fmt.Sprintf("You have %d %s ready for a quick review to keep them sharp!", count, factForm))
	if _, err := s.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send retention reminder: %v", err)
	}
	return nil
}

func (s *TelegramSink) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := s.api.Send(msg); err != nil {
		log.Printf("failed to send telegram message to %d: %v", chatID, err)
	}
}
