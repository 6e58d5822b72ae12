package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/entrepeneur4lyf/spark/internal/chat"
	"github.com/entrepeneur4lyf/spark/internal/config"
	"github.com/entrepeneur4lyf/spark/internal/events"
	"github.com/entrepeneur4lyf/spark/internal/llm"
	"github.com/entrepeneur4lyf/spark/internal/logging"
	"github.com/entrepeneur4lyf/spark/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig(t *testing.T, driver string) *config.Config {
	t.Helper()
	return &config.Config{
		Storage:         config.Storage{Driver: driver, Directory: t.TempDir(), Watch: true},
		LocationTimeout: 50 * time.Millisecond,
		Log:             config.Log{Level: "error"},
	}
}

func fixedBackend(text string) llm.CompletionFunc {
	return func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Text: text}, nil
	}
}

func TestNewApp_WiresChatToStorage(t *testing.T) {
	ctx := context.Background()
	a, err := NewApp(ctx, &AppConfig{
		Config:  testConfig(t, storage.DriverMemory),
		Logger:  logging.Discard(),
		Backend: fixedBackend("## Hello\n[GENERATE_IMAGE: a kite]"),
	})
	require.NoError(t, err)
	defer a.Close()

	id := a.Chat.NewSession()
	res, err := a.Chat.SendTurn(ctx, chat.TurnRequest{Text: "kite"})
	require.NoError(t, err)
	// no image backend: the fallback URL is used
	assert.Contains(t, res.Reply.Text, "![Generated Image](https://image.pollinations.ai/prompt/a%20kite?width=1024&height=1024&nologo=true)")

	session, err := a.Repo.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Len(t, session.Messages, 2)
}

func TestNewApp_RequiresCredentialsWithoutOverride(t *testing.T) {
	_, err := NewApp(context.Background(), &AppConfig{
		Config: testConfig(t, storage.DriverMemory),
		Logger: logging.Discard(),
	})
	assert.ErrorIs(t, err, config.ErrMissingAPIKey)
}

func TestNewApp_ExternalWritesBecomeEvents(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, storage.DriverFile)
	a, err := NewApp(ctx, &AppConfig{
		Config:  cfg,
		Logger:  logging.Discard(),
		Backend: fixedBackend("ok"),
	})
	require.NoError(t, err)
	defer a.Close()

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch := a.Events.Subscribe(subCtx, events.FilterByType(events.StoreChanged))

	fs, ok := a.Store.(*storage.FileStore)
	require.True(t, ok)
	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(fs.Dir(), storage.KeySessions+".json"), []byte("[]"), 0644))

	select {
	case ev := <-ch:
		assert.Equal(t, storage.KeySessions, ev.Payload.Namespace)
	case <-time.After(3 * time.Second):
		t.Fatal("no store.changed event")
	}
}

func TestClose_Idempotent(t *testing.T) {
	a, err := NewApp(context.Background(), &AppConfig{
		Config:  testConfig(t, storage.DriverMemory),
		Logger:  logging.Discard(),
		Backend: fixedBackend("ok"),
	})
	require.NoError(t, err)
	assert.NoError(t, a.Close())
	assert.NoError(t, a.Close())
}
