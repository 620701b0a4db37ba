package archive

import (
	"context"
	"encoding/json"
	"errors"
	"filecoder-backend/model"
	"filecoder-backend/service/chat"
	"filecoder-backend/service/workspace"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	messages []model.Message
	fail     bool
	calls    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{sessions: make(map[string]*model.Session)}
}

func (s *memoryStore) SaveTurn(session *model.Session, messages []model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.fail {
		return errors.New("database is down")
	}
	if _, ok := s.sessions[session.SessionID]; !ok {
		s.sessions[session.SessionID] = session
	}
	s.messages = append(s.messages, messages...)
	return nil
}

func turn(sessionID, query string) chat.TurnRecord {
	res := workspace.Result{Op: workspace.OpCreateFolder, Status: workspace.StatusOK, Path: "/w/demo"}
	now := time.Now()
	return chat.TurnRecord{
		SessionID:      sessionID,
		Query:          query,
		Answer:         "Created demo.",
		Rendered:       "✅ Created demo.",
		Outcome:        chat.OutcomeSuccess,
		ImmediateSteps: "Thought: Do I need to use a tool? Yes",
		ToolCalls: []chat.ToolCall{
			{Name: "create_folder", Input: `{"folder_name":"demo"}`, Output: res.String(), Result: &res},
		},
		StartedAt:  now,
		FinishedAt: now.Add(time.Second),
	}
}

func TestArchiver_WritesAllTurns(t *testing.T) {
	store := newMemoryStore()
	a := NewArchiver(store, "/w", 3)
	a.Run(context.Background())

	for i := 0; i < 10; i++ {
		a.RecordTurn(turn("s1", "make demo"))
	}
	a.RecordTurn(turn("s2", "make demo"))
	a.Shutdown()

	assert.Len(t, store.sessions, 2)
	assert.Len(t, store.messages, 22)
	assert.Equal(t, "/w", store.sessions["s1"].Workspace)
}

func TestArchiver_ToModels(t *testing.T) {
	a := NewArchiver(newMemoryStore(), "/w", 1)

	session, messages, err := a.toModels(turn("s1", "make demo"))
	require.NoError(t, err)
	assert.Equal(t, "s1", session.SessionID)

	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "make demo", messages[0].Content)
	assert.Equal(t, "assistant", messages[1].Role)
	assert.Equal(t, "✅ Created demo.", messages[1].Content)
	assert.Equal(t, "success", messages[1].Outcome)

	var results []model.ToolCallResult
	require.NoError(t, json.Unmarshal(messages[1].ToolCallResults, &results))
	require.Len(t, results, 1)
	assert.Equal(t, "create_folder", results[0].Name)
	assert.Equal(t, "ok", results[0].Status)
}

func TestArchiver_StoreFailureDoesNotStopWorkers(t *testing.T) {
	store := newMemoryStore()
	store.fail = true

	a := NewArchiver(store, "/w", 1)
	a.Run(context.Background())
	a.RecordTurn(turn("s1", "one"))

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.calls == 1
	}, time.Second, 10*time.Millisecond)

	store.mu.Lock()
	store.fail = false
	store.mu.Unlock()

	a.RecordTurn(turn("s1", "two"))
	a.Shutdown()

	assert.Len(t, store.messages, 2)
	assert.Equal(t, "two", store.messages[0].Content)
}

func TestArchiver_DropsAfterShutdown(t *testing.T) {
	store := newMemoryStore()
	a := NewArchiver(store, "/w", 1)
	a.Run(context.Background())
	a.Shutdown()

	assert.NotPanics(t, func() {
		a.RecordTurn(turn("s1", "late"))
	})
	a.Shutdown()
	assert.Empty(t, store.messages)
}

type blockingStore struct {
	*memoryStore
	release chan struct{}
}

func (s *blockingStore) SaveTurn(session *model.Session, messages []model.Message) error {
	<-s.release
	return s.memoryStore.SaveTurn(session, messages)
}

func TestArchiver_FullQueueDoesNotBlock(t *testing.T) {
	store := &blockingStore{memoryStore: newMemoryStore(), release: make(chan struct{})}
	a := NewArchiver(store, "/w", 1)
	a.Run(context.Background())

	total := taskChanSize + 20
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < total; i++ {
			a.RecordTurn(turn("s1", "make demo"))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RecordTurn blocked on a full queue")
	}

	close(store.release)
	a.Shutdown()

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.GreaterOrEqual(t, store.calls, taskChanSize)
	assert.Less(t, store.calls, total)
}
