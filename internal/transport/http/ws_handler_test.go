package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"quizbot/internal/domain"
	"quizbot/internal/engine"
)

type fakeTransport struct {
	seq int64
}

func (t *fakeTransport) SendQuestion(_ context.Context, _ string, _ domain.QuestionRecord, _, _ int, _ time.Duration) (string, error) {
	return fmt.Sprintf("poll-%d", atomic.AddInt64(&t.seq, 1)), nil
}

func (t *fakeTransport) SendMessage(context.Context, string, string) error { return nil }

type fakeBank struct {
	questions []domain.QuestionRecord
}

func (b *fakeBank) GetByID(_ context.Context, id int64) (domain.QuestionRecord, error) {
	for _, q := range b.questions {
		if q.ID == id {
			return q, nil
		}
	}
	return domain.QuestionRecord{}, domain.ErrQuestionNotFound
}

func (b *fakeBank) SampleRandom(_ context.Context, n int, _ string) ([]domain.QuestionRecord, error) {
	if n > len(b.questions) {
		n = len(b.questions)
	}
	return b.questions[:n], nil
}

func (b *fakeBank) ListFrom(_ context.Context, _ int64, n int) ([]domain.QuestionRecord, error) {
	return b.SampleRandom(context.Background(), n, "")
}

type fakeLedger struct{}

func (fakeLedger) RecordSessionCompletion(context.Context, string, int, int) error { return nil }

type wireMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	bank := &fakeBank{questions: []domain.QuestionRecord{
		{ID: 1, Text: "2+2?", Options: []string{"3", "4"}, CorrectOption: 1},
	}}
	return engine.New(&fakeTransport{}, bank, fakeLedger{}, log)
}

func dial(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?sessionId=" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg wireMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestServeWSStreamsLeaderboard(t *testing.T) {
	eng := newTestEngine(t)
	sessionID, err := eng.StartSession(context.Background(), engine.StartParams{
		ChannelID:    "chat",
		NumQuestions: 1,
	})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(NewWSHandler(eng).ServeWS))
	defer srv.Close()
	conn := dial(t, srv, sessionID)

	initial := readMessage(t, conn)
	if initial.Type != "leaderboard" {
		t.Fatalf("expected initial leaderboard, got %q", initial.Type)
	}
	var lb domain.Leaderboard
	if err := json.Unmarshal(initial.Payload, &lb); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	if lb.SessionID != sessionID || len(lb.Entries) != 0 {
		t.Fatalf("unexpected initial snapshot: %+v", lb)
	}

	eng.RecordAnswer(domain.AnswerEvent{
		PollID:      "poll-1",
		UserID:      "u1",
		DisplayName: "Uma",
		Option:      1,
	})

	update := readMessage(t, conn)
	if update.Type != "leaderboard" {
		t.Fatalf("expected leaderboard update, got %q", update.Type)
	}
	if err := json.Unmarshal(update.Payload, &lb); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	if len(lb.Entries) != 1 || lb.Entries[0].UserID != "u1" || lb.Entries[0].Correct != 1 {
		t.Fatalf("unexpected update: %+v", lb)
	}
}

func TestServeWSCloseCommandFinishesSession(t *testing.T) {
	eng := newTestEngine(t)
	sessionID, err := eng.StartSession(context.Background(), engine.StartParams{
		ChannelID:    "chat",
		NumQuestions: 1,
	})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(NewWSHandler(eng).ServeWS))
	defer srv.Close()
	conn := dial(t, srv, sessionID)
	readMessage(t, conn) // initial snapshot

	eng.RecordAnswer(domain.AnswerEvent{PollID: "poll-1", UserID: "u1", DisplayName: "Uma", Option: 1})
	readMessage(t, conn) // answer update

	if err := conn.WriteJSON(map[string]string{"type": "close"}); err != nil {
		t.Fatalf("write close: %v", err)
	}

	final := readMessage(t, conn)
	if final.Type != "leaderboard" {
		t.Fatalf("expected final leaderboard, got %q", final.Type)
	}
	var lb domain.Leaderboard
	if err := json.Unmarshal(final.Payload, &lb); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	if lb.State != "finished" {
		t.Fatalf("expected finished state, got %q", lb.State)
	}

	if _, err := eng.SessionState(sessionID); err != domain.ErrSessionNotFound {
		t.Fatalf("expected session discarded, got %v", err)
	}
}

func TestServeWSUnknownSession(t *testing.T) {
	eng := newTestEngine(t)
	srv := httptest.NewServer(http.HandlerFunc(NewWSHandler(eng).ServeWS))
	defer srv.Close()

	conn := dial(t, srv, "missing")
	msg := readMessage(t, conn)
	if msg.Type != "error" {
		t.Fatalf("expected error message, got %q", msg.Type)
	}
}

func TestServeWSRejectsUnsupportedType(t *testing.T) {
	eng := newTestEngine(t)
	sessionID, err := eng.StartSession(context.Background(), engine.StartParams{
		ChannelID:    "chat",
		NumQuestions: 1,
	})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(NewWSHandler(eng).ServeWS))
	defer srv.Close()
	conn := dial(t, srv, sessionID)
	readMessage(t, conn) // initial snapshot

	if err := conn.WriteJSON(map[string]string{"type": "poke"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg := readMessage(t, conn)
	if msg.Type != "error" {
		t.Fatalf("expected error reply, got %q", msg.Type)
	}
}

func TestServeWSRequiresSessionID(t *testing.T) {
	eng := newTestEngine(t)
	srv := httptest.NewServer(http.HandlerFunc(NewWSHandler(eng).ServeWS))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ws")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
