package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrepeneur4lyf/spark/internal/chat"
	"github.com/entrepeneur4lyf/spark/internal/domain"
	"github.com/entrepeneur4lyf/spark/internal/events"
	"github.com/entrepeneur4lyf/spark/internal/imagegen"
	"github.com/entrepeneur4lyf/spark/internal/llm"
	"github.com/entrepeneur4lyf/spark/internal/logging"
	"github.com/entrepeneur4lyf/spark/internal/response"
	"github.com/entrepeneur4lyf/spark/internal/storage"
)

type noImages struct{}

func (noImages) Generate(context.Context, string, domain.ImageSettings, string) imagegen.Asset {
	return imagegen.Asset{}
}

type testEnv struct {
	server *httptest.Server
	repo   *storage.KVRepository
	orch   *chat.Orchestrator
	broker *events.Broker[events.Notice]
}

func newTestEnv(t *testing.T, backend llm.CompletionFunc) *testEnv {
	t.Helper()
	repo := storage.NewKVRepository(storage.NewMemoryStore())
	broker := events.NewBroker[events.Notice]()
	logger := logging.Discard()
	orch := chat.New(repo, backend, response.NewAssembler(noImages{}, response.WithLogger(logger)),
		chat.WithEvents(broker), chat.WithLogger(logger))

	srv := NewServer(orch, repo, broker, WithLogger(logger), WithShareOrigin("https://spark.example/"))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		broker.Shutdown()
	})
	return &testEnv{server: ts, repo: repo, orch: orch, broker: broker}
}

func echoBackend(text string) llm.CompletionFunc {
	return func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Text: text}, nil
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, echoBackend("x"))
	resp, body := env.do(t, "GET", "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"healthy"`)
}

func TestSendMessageFlow(t *testing.T) {
	env := newTestEnv(t, echoBackend("[THEME:#AE88B5]## Answer\nText"))

	resp, body := env.do(t, "POST", "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created map[string]string
	require.NoError(t, json.Unmarshal(body, &created))
	id := created["sessionId"]
	require.NotEmpty(t, id)

	resp, body = env.do(t, "POST", "/api/v1/sessions/"+id+"/messages", SendMessageRequest{Text: "hi"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var turn TurnResponse
	require.NoError(t, json.Unmarshal(body, &turn))
	assert.Equal(t, "## Answer\nText", turn.Reply.Text)
	assert.Equal(t, "#AE88B5", turn.Reply.ThemeColor)
	require.NotNil(t, turn.UserMessage)
	assert.Equal(t, "hi", turn.UserMessage.Text)

	resp, body = env.do(t, "GET", "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sessions []domain.Session
	require.NoError(t, json.Unmarshal(body, &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, id, sessions[0].ID)

	resp, body = env.do(t, "GET", "/api/v1/sessions/"+id+"/share", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `https://spark.example?session_id=`+id)
}

func TestSendMessageErrors(t *testing.T) {
	env := newTestEnv(t, echoBackend("x"))
	id := env.orch.NewSession()

	resp, _ := env.do(t, "POST", "/api/v1/sessions/"+id+"/messages", SendMessageRequest{Text: "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, "POST", "/api/v1/sessions/"+id+"/messages", SendMessageRequest{Text: "x", ImageSize: "8K"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, "POST", "/api/v1/sessions/"+id+"/regenerate", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = env.do(t, "GET", "/api/v1/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBackendFailureIsReportedInReply(t *testing.T) {
	env := newTestEnv(t, func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return nil, errors.New("upstream down")
	})
	id := env.orch.NewSession()

	resp, body := env.do(t, "POST", "/api/v1/sessions/"+id+"/messages", SendMessageRequest{Text: "hi"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var turn TurnResponse
	require.NoError(t, json.Unmarshal(body, &turn))
	assert.Equal(t, chat.SendErrorText, turn.Reply.Text)
	assert.Contains(t, turn.Error, "upstream down")
}

func TestBookmarkRequiresLoginAndCascades(t *testing.T) {
	env := newTestEnv(t, echoBackend("## Clock\n```html\n<h1>tick</h1>\n```"))
	id := env.orch.NewSession()

	_, body := env.do(t, "POST", "/api/v1/sessions/"+id+"/messages", SendMessageRequest{Text: "make a clock"})
	var turn TurnResponse
	require.NoError(t, json.Unmarshal(body, &turn))
	path := "/api/v1/sessions/" + id + "/messages/" + turn.Reply.ID + "/bookmark"

	resp, _ := env.do(t, "POST", path, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, "POST", "/api/v1/auth", LoginRequest{Provider: "myspace"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, body = env.do(t, "POST", "/api/v1/auth", LoginRequest{Provider: domain.ProviderGoogle})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Alex Chen")

	resp, body = env.do(t, "POST", path, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"bookmarked":true}`, string(body))

	_, body = env.do(t, "GET", "/api/v1/apps", nil)
	var apps []domain.AppItem
	require.NoError(t, json.Unmarshal(body, &apps))
	require.Len(t, apps, 1)
	assert.Equal(t, "Clock", apps[0].Title)

	resp, _ = env.do(t, "GET", "/api/v1/apps/"+turn.Reply.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, body = env.do(t, "GET", "/api/v1/bookmarks", nil)
	var bookmarks []domain.Bookmark
	require.NoError(t, json.Unmarshal(body, &bookmarks))
	require.Len(t, bookmarks, 1)
	assert.Equal(t, "make a clock", bookmarks[0].Question)

	resp, body = env.do(t, "DELETE", "/api/v1/auth", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, string(body), id)
}

func TestBootstrapSharedSession(t *testing.T) {
	env := newTestEnv(t, echoBackend("ok"))
	id := env.orch.NewSession()
	_, err := env.orch.SendTurn(context.Background(), chat.TurnRequest{Text: "shared"})
	require.NoError(t, err)
	env.orch.NewSession()

	resp, body := env.do(t, "GET", "/api/v1/bootstrap?session_id="+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"shared":true`)
	assert.Equal(t, id, env.orch.ActiveSession())
}

func TestDeleteActiveSessionStartsNewOne(t *testing.T) {
	env := newTestEnv(t, echoBackend("ok"))
	id := env.orch.NewSession()
	_, err := env.orch.SendTurn(context.Background(), chat.TurnRequest{Text: "bye"})
	require.NoError(t, err)

	resp, _ := env.do(t, "DELETE", "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEqual(t, id, env.orch.ActiveSession())

	_, err = env.repo.GetSession(context.Background(), id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEventsWebSocket(t *testing.T) {
	env := newTestEnv(t, echoBackend("streamed"))
	id := env.orch.NewSession()

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/v1/ws?session_id=" + id
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(WebSocketMessage{Type: "ping", EventID: "p1"}))
	var pong WebSocketMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "pong", pong.Type)

	_, err = env.orch.SendTurn(context.Background(), chat.TurnRequest{Text: "hi"})
	require.NoError(t, err)

	seen := map[string]bool{}
	for !seen[string(events.TurnCompleted)] {
		var msg WebSocketMessage
		require.NoError(t, conn.ReadJSON(&msg))
		seen[msg.Type] = true
	}
	assert.True(t, seen[string(events.TurnStarted)])
}

func TestEventsSSEResumesAfterLastEventID(t *testing.T) {
	env := newTestEnv(t, echoBackend("x"))
	env.broker.Publish(events.SessionSaved, events.Notice{Detail: "seen"}, events.WithSessionID("s1"))
	last := env.broker.History()[0].ID
	env.broker.Publish(events.SessionSaved, events.Notice{Detail: "missed"}, events.WithSessionID("s1"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", env.server.URL+"/api/v1/events?session_id=s1", nil)
	require.NoError(t, err)
	req.Header.Set("Last-Event-ID", last)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") && strings.Contains(line, `"detail":"missed"`) {
			assert.NotContains(t, line, `"detail":"seen"`)
			return
		}
	}
	t.Fatal("missed event was not replayed")
}

func TestLocalhostOnly(t *testing.T) {
	srv := NewServer(nil, nil, nil, WithLogger(logging.Discard()))
	req := httptest.NewRequest("GET", "/api/v1/sessions", nil)
	req.RemoteAddr = "203.0.113.7:5555"
	req.Header.Set("X-Forwarded-For", "127.0.0.1")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
