package telegram

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"quizbot/internal/domain"
)

// Transport adapts the Telegram Bot API to the engine's transport contract.
// Questions go out as native quiz polls; Telegram assigns the poll id the
// engine correlates answers with. Channel ids are Telegram chat ids rendered
// as decimal strings.
type Transport struct {
	api *tgbotapi.BotAPI
}

func NewTransport(api *tgbotapi.BotAPI) *Transport {
	return &Transport{api: api}
}

func (t *Transport) SendQuestion(_ context.Context, channelID string, q domain.QuestionRecord, index, total int, openFor time.Duration) (string, error) {
	chatID, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("bad channel id %q: %w", channelID, err)
	}

	poll := tgbotapi.NewPoll(chatID, q.Text, q.Options...)
	poll.IsAnonymous = false
	poll.Type = "quiz"
	poll.CorrectOptionID = int64(q.CorrectOption)
	poll.Explanation = fmt.Sprintf("Question %d of %d", index+1, total)
	if openFor > 0 {
		poll.OpenPeriod = int(openFor.Seconds())
	}

	msg, err := t.api.Send(poll)
	if err != nil {
		return "", fmt.Errorf("send poll: %w", err)
	}
	if msg.Poll == nil {
		return "", fmt.Errorf("send poll: no poll in response")
	}
	return msg.Poll.ID, nil
}

func (t *Transport) SendMessage(_ context.Context, channelID, text string) error {
	chatID, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return fmt.Errorf("bad channel id %q: %w", channelID, err)
	}
	if _, err := t.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}
