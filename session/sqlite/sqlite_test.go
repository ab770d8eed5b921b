package sqlite

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/printmind/printmind/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "printmind.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSessionRoundTrip(t *testing.T) {
	store := openTestStore(t)

	sess := core.NewSession("s1", "user-1")
	sess.PrinterModel = "Prusa MK4"
	sess.Material = "PETG"
	sess.SetMeta("locale", "en")

	require.NoError(t, store.CreateSession(sess))

	got, err := store.GetSession("s1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "Prusa MK4", got.PrinterModel)
	assert.Equal(t, "PETG", got.Material)
	locale, ok := got.Meta("locale")
	require.True(t, ok)
	assert.Equal(t, "en", locale)
	assert.Nil(t, got.EndedAt)
	assert.WithinDuration(t, sess.StartedAt, got.StartedAt, time.Second)
}

func TestCreateDuplicateSessionFails(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.CreateSession(core.NewSession("s1", "u")))
	require.Error(t, store.CreateSession(core.NewSession("s1", "u")))
}

func TestGetUnknownSession(t *testing.T) {
	store := openTestStore(t)
	_, err := store.GetSession("missing")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestEndSessionIdempotent(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.CreateSession(core.NewSession("s1", "u")))

	require.NoError(t, store.EndSession("s1"))
	got, err := store.GetSession("s1")
	require.NoError(t, err)
	require.NotNil(t, got.EndedAt)
	first := *got.EndedAt

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, store.EndSession("s1"))
	again, err := store.GetSession("s1")
	require.NoError(t, err)
	assert.Equal(t, first, *again.EndedAt, "second end must not move the timestamp")

	assert.ErrorIs(t, store.EndSession("missing"), core.ErrSessionNotFound)
}

func TestMessagesAppendOnlyAndOrdered(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.CreateSession(core.NewSession("s1", "u")))

	tokens := 128
	first := core.NewUserMessage("how do I fix stringing?")
	second := core.NewAssistantMessage("lower the nozzle temperature")
	second.TokensUsed = &tokens
	third := core.NewToolMessage("call-1", "knowledge_search", `{"found":2}`)

	require.NoError(t, store.AppendMessage("s1", first))
	require.NoError(t, store.AppendMessage("s1", second))
	require.NoError(t, store.AppendMessage("s1", third))

	history, err := store.ReadHistory("s1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, core.RoleUser, history[0].Role)
	assert.Equal(t, core.RoleAssistant, history[1].Role)
	require.NotNil(t, history[1].TokensUsed)
	assert.Equal(t, 128, *history[1].TokensUsed)
	assert.Equal(t, core.RoleTool, history[2].Role)
	assert.Equal(t, "call-1", history[2].CallID)
	assert.Equal(t, "knowledge_search", history[2].Capability)
}

func TestAppendMessageToEndedSession(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.CreateSession(core.NewSession("s1", "u")))
	require.NoError(t, store.EndSession("s1"))

	err := store.AppendMessage("s1", core.NewUserMessage("late"))
	assert.ErrorIs(t, err, core.ErrSessionEnded)
}

func TestInvocationIdempotentOnCallID(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.CreateSession(core.NewSession("s1", "u")))

	res := core.CapabilityResult{
		CallID:    "call-1",
		Name:      "analyze_gcode",
		Output:    map[string]any{"valid": true},
		Success:   true,
		Elapsed:   125 * time.Millisecond,
		Timestamp: time.Now(),
	}
	require.NoError(t, store.AppendInvocation("s1", res))
	require.NoError(t, store.AppendInvocation("s1", res))

	failed := core.CapabilityResult{
		CallID:      "call-2",
		Name:        "printer_status",
		Success:     false,
		ErrorCode:   core.ErrCodeTimeout,
		ErrorDetail: "printer unreachable",
		Timestamp:   time.Now(),
	}
	require.NoError(t, store.AppendInvocation("s1", failed))

	invocations, err := store.ReadInvocations("s1")
	require.NoError(t, err)
	require.Len(t, invocations, 2)

	assert.Equal(t, "call-1", invocations[0].CallID)
	assert.True(t, invocations[0].Success)
	assert.Equal(t, 125*time.Millisecond, invocations[0].Elapsed)
	output, ok := invocations[0].Output.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, output["valid"])

	assert.Equal(t, "call-2", invocations[1].CallID)
	assert.False(t, invocations[1].Success)
	assert.Equal(t, core.ErrCodeTimeout, invocations[1].ErrorCode)
}

func TestReadFromUnknownSession(t *testing.T) {
	store := openTestStore(t)

	_, err := store.ReadHistory("missing")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)

	_, err = store.ReadInvocations("missing")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestConcurrentWritesAcrossSessions(t *testing.T) {
	store := openTestStore(t)

	sessionIDs := []string{"s1", "s2", "s3", "s4"}
	for _, id := range sessionIDs {
		require.NoError(t, store.CreateSession(core.NewSession(id, "u")))
	}

	const perSession = 20
	var wg sync.WaitGroup
	errs := make(chan error, len(sessionIDs)*perSession)
	for _, id := range sessionIDs {
		wg.Add(1)
		go func(sessionID string) {
			defer wg.Done()
			for i := 0; i < perSession; i++ {
				if err := store.AppendMessage(sessionID, core.NewUserMessage(fmt.Sprintf("msg %d", i))); err != nil {
					errs <- err
					return
				}
			}
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	for _, id := range sessionIDs {
		history, err := store.ReadHistory(id)
		require.NoError(t, err)
		require.Len(t, history, perSession)
		for i, msg := range history {
			assert.Equal(t, fmt.Sprintf("msg %d", i), msg.Content, "per-session order must survive concurrent writers")
		}
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "printmind.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.CreateSession(core.NewSession("s1", "u")))
	require.NoError(t, store.AppendMessage("s1", core.NewUserMessage("hello")))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	history, err := reopened.ReadHistory("s1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hello", history[0].Content)
}
