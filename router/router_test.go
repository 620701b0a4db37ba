package router

import (
	"bytes"
	"context"
	"encoding/json"
	"filecoder-backend/controller"
	"filecoder-backend/middleware"
	"filecoder-backend/service/chat"
	"filecoder-backend/service/mcpserver"
	"filecoder-backend/service/workspace"
	"filecoder-backend/utils"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/fake"
)

const (
	trustedOrigin = "http://localhost:5173"
	foreignOrigin = "https://evil.example"
)

type testServer struct {
	engine    *gin.Engine
	store     *chat.Store
	workspace *workspace.Workspace
}

func newTestServer(t *testing.T, responses []string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ws, err := workspace.New(t.TempDir())
	require.NoError(t, err)

	llm := fake.NewFakeLLM(responses)
	orchestrator := chat.NewOrchestrator(ws, chat.WithModelFactory(func(chat.ModelConfig) (llms.Model, error) {
		return llm, nil
	}))

	store := chat.NewStore()
	origins := middleware.NewOriginPolicy([]string{trustedOrigin})
	ctl := controller.New(orchestrator, store, chat.ModelConfig{MaxIterations: 4}, origins.CheckRequest)

	return &testServer{
		engine:    Register(ctl, mcpserver.NewHTTPHandler(mcpserver.New(ws, "test")), origins),
		store:     store,
		workspace: ws,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) createSession(t *testing.T) (string, string) {
	t.Helper()

	w := s.do(t, http.MethodPost, "/api/session", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data struct {
			SessionID string `json:"session_id"`
			Welcome   string `json:"welcome"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data.SessionID, resp.Data.Welcome
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, []string{
		"Thought: Do I need to use a tool? Yes\nAction: create_folder\nAction Input: {\"folder_name\": \"demo\"}",
		"Thought: Do I need to use a tool? No\nAI: Created demo.",
	})

	id, welcome := s.createSession(t)
	require.NotEmpty(t, id)
	assert.Contains(t, welcome, s.workspace.Root())

	w := s.do(t, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id)

	w = s.do(t, http.MethodPost, "/api/chat", map[string]string{"session_id": id, "query": "create demo"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/event-stream"), w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "event:"+utils.EventProcessing)
	assert.Contains(t, body, "event:"+utils.EventToolCallResult)
	assert.Contains(t, body, "event:"+utils.EventFinalAnswer)
	assert.Contains(t, body, "✅ Created demo.")
	assert.True(t, strings.Index(body, "event:"+utils.EventFinalAnswer) < strings.Index(body, "event:"+utils.EventDone))

	info, err := os.Stat(filepath.Join(s.workspace.Root(), "demo"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	w = s.do(t, http.MethodGet, "/api/session/"+id+"/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var msgs struct {
		Data struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs))
	require.Len(t, msgs.Data.Messages, 2)
	assert.Equal(t, "user", msgs.Data.Messages[0].Role)
	assert.Equal(t, "Created demo.", msgs.Data.Messages[1].Content)

	w = s.do(t, http.MethodDelete, "/api/session/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/session/"+id+"/messages", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodDelete, "/api/session/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChat_Errors(t *testing.T) {
	s := newTestServer(t, nil)

	t.Run("unknown session", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/chat", map[string]string{"session_id": "missing", "query": "hi"})
		body := w.Body.String()
		assert.Contains(t, body, "event:"+utils.EventError)
		assert.Contains(t, body, controller.ErrSessionNotFound.Error())
		assert.Contains(t, body, "event:"+utils.EventDone)
	})

	t.Run("bad request", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/chat", map[string]string{"query": "hi"})
		assert.Contains(t, w.Body.String(), controller.ErrParseRequest.Error())
	})

	t.Run("model failure keeps session usable", func(t *testing.T) {
		id, _ := s.createSession(t)

		w := s.do(t, http.MethodPost, "/api/chat", map[string]string{"session_id": id, "query": "hi"})
		body := w.Body.String()
		assert.Contains(t, body, "🔥 Critical Error")
		assert.Contains(t, body, "event:"+utils.EventDone)

		session, err := s.store.Get(id)
		require.NoError(t, err)
		assert.Zero(t, session.History.Len())
		assert.Equal(t, chat.StateIdle, session.State())
	})
}

func TestArchiveDisabled(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/api/archive/session/abc/messages", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), controller.ErrArchiveDisabled.Error())
}

func TestWebSocketChat(t *testing.T) {
	s := newTestServer(t, []string{"Thought: Do I need to use a tool? No\nAI: Hi there."})
	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	type frame struct {
		Event string `json:"event"`
		Data  string `json:"data"`
	}

	var welcome frame
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, utils.EventWelcome, welcome.Event)
	assert.Contains(t, welcome.Data, "Welcome to FileCoder Pro")
	require.Len(t, s.store.List(), 1)

	readTurn := func() []frame {
		var frames []frame
		for {
			var f frame
			require.NoError(t, conn.ReadJSON(&f))
			frames = append(frames, f)
			if f.Event == utils.EventDone {
				return frames
			}
		}
	}

	require.NoError(t, conn.WriteJSON(map[string]string{"content": "hello"}))
	frames := readTurn()
	assert.Equal(t, utils.EventProcessing, frames[0].Event)
	assert.Equal(t, frame{Event: utils.EventFinalAnswer, Data: "Hi there."}, frames[len(frames)-2])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("plain text works too")))
	frames = readTurn()
	assert.Equal(t, utils.EventFinalAnswer, frames[len(frames)-2].Event)

	session := s.store.List()[0]
	assert.Equal(t, 4, session.History.Len())

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	assert.Eventually(t, func() bool {
		return len(s.store.List()) == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestMCPEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	c, err := client.NewStreamableHttpClient(srv.URL + "/mcp")
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "router-test", Version: "test"}
	_, err = c.Initialize(ctx, initReq)
	require.NoError(t, err)

	callReq := mcp.CallToolRequest{}
	callReq.Params.Name = "create_file"
	callReq.Params.Arguments = map[string]any{"file_path": "from_mcp.txt", "content": "hello"}
	res, err := c.CallTool(ctx, callReq)
	require.NoError(t, err)
	assert.False(t, res.IsError)

	data, err := os.ReadFile(filepath.Join(s.workspace.Root(), "from_mcp.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestForeignOriginRejected(t *testing.T) {
	s := newTestServer(t, []string{
		"Thought: Do I need to use a tool? Yes\nAction: create_file\nAction Input: {\"file_path\": \"pwned.txt\", \"content\": \"x\"}",
		"Thought: Do I need to use a tool? No\nAI: Done.",
	})
	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"

	t.Run("websocket", func(t *testing.T) {
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {foreignOrigin}})
		if conn != nil {
			conn.Close()
		}
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Empty(t, s.store.List())
	})

	t.Run("sse chat", func(t *testing.T) {
		id, _ := s.createSession(t)

		data, err := json.Marshal(map[string]string{"session_id": id, "query": "write pwned.txt"})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(data))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Origin", foreignOrigin)
		w := httptest.NewRecorder()
		s.engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("mcp", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/mcp", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Origin", foreignOrigin)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	_, err := os.Stat(filepath.Join(s.workspace.Root(), "pwned.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestTrustedOriginWebSocket(t *testing.T) {
	s := newTestServer(t, nil)
	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	for _, origin := range []string{trustedOrigin, srv.URL} {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {origin}})
		require.NoError(t, err, origin)

		var f struct {
			Event string `json:"event"`
		}
		require.NoError(t, conn.ReadJSON(&f))
		assert.Equal(t, utils.EventWelcome, f.Event)
		conn.Close()
	}
}
