package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"quizbot/internal/domain"
	"quizbot/internal/engine"
)

// StatsReader exposes the ledger's lifetime aggregates for the /stats command.
type StatsReader interface {
	Stats(ctx context.Context, userID string) (domain.UserStats, error)
}

// Options carries the per-chat quiz defaults the command layer applies.
type Options struct {
	DefaultQuestions int
	MaxQuestions     int
	OpenFor          time.Duration
	Penalty          float64
}

func (o Options) withDefaults() Options {
	if o.DefaultQuestions <= 0 {
		o.DefaultQuestions = 5
	}
	if o.MaxQuestions <= 0 {
		o.MaxQuestions = 10
	}
	return o
}

// Bot drives the Telegram update stream: commands start and stop quiz
// sessions, poll answers feed the engine's answer aggregator.
type Bot struct {
	api    *tgbotapi.BotAPI
	engine *engine.Engine
	stats  StatsReader
	log    *logrus.Logger
	opts   Options

	mu     sync.Mutex
	active map[int64]string // chat id -> running session id
}

func NewBot(api *tgbotapi.BotAPI, eng *engine.Engine, stats StatsReader, log *logrus.Logger, opts Options) *Bot {
	if log == nil {
		log = logrus.New()
	}
	return &Bot{
		api:    api,
		engine: eng,
		stats:  stats,
		log:    log,
		opts:   opts.withDefaults(),
		active: make(map[int64]string),
	}
}

// Run consumes updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "poll_answer"}

	updates := b.api.GetUpdatesChan(u)
	b.log.WithField("account", b.api.Self.UserName).Info("telegram bot listening")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.PollAnswer != nil {
		b.handlePollAnswer(update.PollAnswer)
		return
	}
	if update.Message == nil || !update.Message.IsCommand() {
		return
	}

	msg := update.Message
	switch msg.Command() {
	case "start", "help":
		b.reply(msg.Chat.ID, helpText)
	case "quiz":
		b.handleQuizCommand(ctx, msg)
	case "stop":
		b.handleStopCommand(ctx, msg.Chat.ID)
	case "stats":
		b.handleStatsCommand(ctx, msg)
	default:
		b.reply(msg.Chat.ID, "Unknown command. Try /help.")
	}
}

// handlePollAnswer translates a Telegram poll answer into an engine event.
// An empty option list means the vote was retracted.
func (b *Bot) handlePollAnswer(pa *tgbotapi.PollAnswer) {
	option := -1
	if len(pa.OptionIDs) > 0 {
		option = pa.OptionIDs[0]
	}
	b.engine.RecordAnswer(domain.AnswerEvent{
		PollID:      pa.PollID,
		UserID:      strconv.FormatInt(pa.User.ID, 10),
		DisplayName: pa.User.FirstName,
		Handle:      pa.User.UserName,
		Option:      option,
	})
}

func (b *Bot) handleQuizCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	b.mu.Lock()
	if sid, ok := b.active[chatID]; ok {
		if _, err := b.engine.SessionState(sid); err == nil {
			b.mu.Unlock()
			b.reply(chatID, "A quiz is already running here. Use /stop to end it first.")
			return
		}
		delete(b.active, chatID)
	}
	b.mu.Unlock()

	params := b.paramsFromArgs(msg.CommandArguments())
	params.ChannelID = strconv.FormatInt(chatID, 10)
	if msg.From != nil {
		params.Requester = domain.Participant{
			UserID:      strconv.FormatInt(msg.From.ID, 10),
			DisplayName: msg.From.FirstName,
			Handle:      msg.From.UserName,
		}
		// Final results fall back to the requester's private chat if the
		// group post fails.
		params.FallbackChannelID = strconv.FormatInt(msg.From.ID, 10)
	}

	sessionID, err := b.engine.StartSession(ctx, params)
	if err != nil {
		b.log.WithField("chat", chatID).WithError(err).Warn("starting quiz")
		switch {
		case err == domain.ErrNoQuestions:
			b.reply(chatID, "❌ No questions matched. Add some or loosen the filter.")
		default:
			b.reply(chatID, "❌ The quiz could not be started.")
		}
		return
	}

	b.mu.Lock()
	b.active[chatID] = sessionID
	b.mu.Unlock()
}

func (b *Bot) handleStopCommand(ctx context.Context, chatID int64) {
	b.mu.Lock()
	sessionID, ok := b.active[chatID]
	delete(b.active, chatID)
	b.mu.Unlock()

	if !ok {
		b.reply(chatID, "No quiz is running here.")
		return
	}
	if err := b.engine.CancelSession(ctx, sessionID); err != nil && err != domain.ErrSessionNotFound {
		b.log.WithField("session", sessionID).WithError(err).Warn("cancelling quiz")
	}
}

func (b *Bot) handleStatsCommand(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || b.stats == nil {
		return
	}
	stats, err := b.stats.Stats(ctx, strconv.FormatInt(msg.From.ID, 10))
	if err != nil {
		b.log.WithError(err).Warn("loading user stats")
		b.reply(msg.Chat.ID, "❌ Stats are unavailable right now.")
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf(
		"📊 Stats for %s\n\nQuizzes taken: %d\nAnswers: %d\nCorrect: %d",
		msg.From.FirstName, stats.QuizzesTaken, stats.TotalAnswers, stats.CorrectAnswers))
}

// paramsFromArgs parses the /quiz argument forms: a bare number for the
// question count, id=N for one specific question, start=N to run from that id
// upward, and category=X to filter the random sample.
func (b *Bot) paramsFromArgs(raw string) engine.StartParams {
	params := engine.StartParams{
		NumQuestions: b.opts.DefaultQuestions,
		OpenFor:      b.opts.OpenFor,
		Penalty:      b.opts.Penalty,
	}
	for _, arg := range strings.Fields(raw) {
		switch {
		case strings.HasPrefix(arg, "id="):
			if id, err := strconv.ParseInt(arg[len("id="):], 10, 64); err == nil {
				params.QuestionIDs = []int64{id}
			}
		case strings.HasPrefix(arg, "start="):
			if id, err := strconv.ParseInt(arg[len("start="):], 10, 64); err == nil {
				params.StartID = id
			}
		case strings.HasPrefix(arg, "category="):
			params.Category = arg[len("category="):]
		default:
			if n, err := strconv.Atoi(arg); err == nil && n > 0 {
				if n > b.opts.MaxQuestions {
					n = b.opts.MaxQuestions
				}
				params.NumQuestions = n
			}
		}
	}
	return params
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.WithField("chat", chatID).WithError(err).Warn("sending reply")
	}
}

const helpText = `🎯 Quiz bot commands:

/quiz — start a quiz with random questions
/quiz 3 — pick how many questions (max 10)
/quiz id=7 — run one specific question
/quiz start=7 — run questions from id 7 upward
/quiz category=Science — filter by category
/stop — end the running quiz
/stats — your lifetime stats`
