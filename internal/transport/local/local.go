package local

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"quizbot/internal/domain"
)

// Transport is a loopback transport that logs outgoing questions and messages
// instead of sending them anywhere. It lets the service run without a chat
// token: sessions are driven through the websocket control surface and poll
// ids are generated locally.
type Transport struct {
	log *logrus.Logger
	seq atomic.Int64
}

func NewTransport(log *logrus.Logger) *Transport {
	if log == nil {
		log = logrus.New()
	}
	return &Transport{log: log}
}

func (t *Transport) SendQuestion(_ context.Context, channelID string, q domain.QuestionRecord, index, total int, openFor time.Duration) (string, error) {
	pollID := fmt.Sprintf("local-%d", t.seq.Add(1))
	t.log.WithFields(logrus.Fields{
		"channel":  channelID,
		"poll":     pollID,
		"question": fmt.Sprintf("%d/%d", index+1, total),
		"open_for": openFor.String(),
	}).Info(q.Text)
	return pollID, nil
}

func (t *Transport) SendMessage(_ context.Context, channelID, text string) error {
	t.log.WithField("channel", channelID).Info(text)
	return nil
}
