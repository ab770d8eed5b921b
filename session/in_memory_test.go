package session

import (
	"sync"
	"testing"

	"github.com/printmind/printmind/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryCreateAndGet(t *testing.T) {
	store := NewInMemory()
	sess := core.NewSession("s1", "user-1")
	sess.PrinterModel = "Ender 3"

	require.NoError(t, store.CreateSession(sess))

	got, err := store.GetSession("s1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "Ender 3", got.PrinterModel)

	// The store keeps its own copy.
	got.PrinterModel = "changed"
	again, err := store.GetSession("s1")
	require.NoError(t, err)
	assert.Equal(t, "Ender 3", again.PrinterModel)
}

func TestInMemoryDuplicateCreateFails(t *testing.T) {
	store := NewInMemory()
	require.NoError(t, store.CreateSession(core.NewSession("s1", "u")))
	require.Error(t, store.CreateSession(core.NewSession("s1", "u")))
}

func TestInMemoryGetUnknownSession(t *testing.T) {
	store := NewInMemory()
	_, err := store.GetSession("missing")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestInMemoryMessageOrderPreserved(t *testing.T) {
	store := NewInMemory()
	require.NoError(t, store.CreateSession(core.NewSession("s1", "u")))

	require.NoError(t, store.AppendMessage("s1", core.NewUserMessage("first")))
	require.NoError(t, store.AppendMessage("s1", core.NewAssistantMessage("second")))
	require.NoError(t, store.AppendMessage("s1", core.NewUserMessage("third")))

	history, err := store.ReadHistory("s1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "first", history[0].Content)
	assert.Equal(t, "second", history[1].Content)
	assert.Equal(t, "third", history[2].Content)
}

func TestInMemoryEndedSessionRejectsAppends(t *testing.T) {
	store := NewInMemory()
	require.NoError(t, store.CreateSession(core.NewSession("s1", "u")))
	require.NoError(t, store.EndSession("s1"))

	err := store.AppendMessage("s1", core.NewUserMessage("late"))
	assert.ErrorIs(t, err, core.ErrSessionEnded)

	// Ending again is a no-op.
	require.NoError(t, store.EndSession("s1"))

	got, err := store.GetSession("s1")
	require.NoError(t, err)
	assert.NotNil(t, got.EndedAt)
}

func TestInMemoryInvocationIdempotence(t *testing.T) {
	store := NewInMemory()
	require.NoError(t, store.CreateSession(core.NewSession("s1", "u")))

	res := core.CapabilityResult{CallID: "call-1", Name: "knowledge_search", Success: true}
	require.NoError(t, store.AppendInvocation("s1", res))
	require.NoError(t, store.AppendInvocation("s1", res))

	other := core.CapabilityResult{CallID: "call-2", Name: "analyze_gcode", Success: false}
	require.NoError(t, store.AppendInvocation("s1", other))

	invocations, err := store.ReadInvocations("s1")
	require.NoError(t, err)
	require.Len(t, invocations, 2)
	assert.Equal(t, "call-1", invocations[0].CallID)
	assert.Equal(t, "call-2", invocations[1].CallID)
}

func TestInMemoryConcurrentAppends(t *testing.T) {
	store := NewInMemory()
	require.NoError(t, store.CreateSession(core.NewSession("s1", "u")))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.AppendMessage("s1", core.NewUserMessage("m"))
			_ = store.AppendInvocation("s1", core.CapabilityResult{CallID: core.NewID()})
		}()
	}
	wg.Wait()

	history, err := store.ReadHistory("s1")
	require.NoError(t, err)
	assert.Len(t, history, 50)

	invocations, err := store.ReadInvocations("s1")
	require.NoError(t, err)
	assert.Len(t, invocations, 50)
}
