package archive

import (
	"context"
	"encoding/json"
	"filecoder-backend/dao"
	"filecoder-backend/model"
	"filecoder-backend/service/chat"
	"fmt"
	"log/slog"
	"sync"
)

const (
	taskChanSize     = 100
	defaultWorkerNum = 4
)

// Store 对话记录的持久化接口
type Store interface {
	SaveTurn(session *model.Session, messages []model.Message) error
}

type mysqlStore struct{}

func (mysqlStore) SaveTurn(session *model.Session, messages []model.Message) error {
	return dao.SaveTurn(session, messages)
}

// Archiver 异步地将每轮对话写入数据库
type Archiver struct {
	store     Store
	workspace string
	taskChan  chan chat.TurnRecord
	workerNum int

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

var _ chat.Sink = &Archiver{}

func NewArchiver(store Store, workspace string, workerNum int) *Archiver {
	if workerNum <= 0 {
		workerNum = defaultWorkerNum
	}
	return &Archiver{
		store:     store,
		workspace: workspace,
		taskChan:  make(chan chat.TurnRecord, taskChanSize),
		workerNum: workerNum,
	}
}

// NewMySQLArchiver 使用 dao 中已初始化的数据库连接
func NewMySQLArchiver(workspace string, workerNum int) *Archiver {
	return NewArchiver(mysqlStore{}, workspace, workerNum)
}

func (a *Archiver) Run(ctx context.Context) {
	for i := 1; i <= a.workerNum; i++ {
		a.wg.Add(1)
		go a.executeArchive(ctx, i)
	}
}

// RecordTurn 队列已满时丢弃记录，不阻塞对话
func (a *Archiver) RecordTurn(record chat.TurnRecord) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		slog.Warn("archiver is closed, dropping turn", "session_id", record.SessionID)
		return
	}

	select {
	case a.taskChan <- record:
	default:
		slog.Warn("archive queue is full, dropping turn", "session_id", record.SessionID, "queue_size", cap(a.taskChan))
	}
}

// Shutdown 停止接收新任务，等待队列中的记录写完
func (a *Archiver) Shutdown() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.taskChan)
	a.mu.Unlock()

	a.wg.Wait()
}

func (a *Archiver) executeArchive(ctx context.Context, id int) {
	defer a.wg.Done()

	slog.Info("Starting archive worker", "worker_id", id)
	defer slog.Info("Archive worker exit", "worker_id", id)

	for record := range a.taskChan {
		select {
		case <-ctx.Done():
			slog.Info("Archive worker shutting down", "worker_id", id)
			return
		default:
		}

		session, messages, err := a.toModels(record)
		if err != nil {
			slog.Error("Failed to convert turn record", "session_id", record.SessionID, "err", err)
			continue
		}

		if err := a.store.SaveTurn(session, messages); err != nil {
			slog.Error("Failed to archive turn", "session_id", record.SessionID, "err", err)
		}
	}
}

func (a *Archiver) toModels(record chat.TurnRecord) (*model.Session, []model.Message, error) {
	session := &model.Session{
		SessionID: record.SessionID,
		Workspace: a.workspace,
	}

	results := make([]model.ToolCallResult, 0, len(record.ToolCalls))
	for _, call := range record.ToolCalls {
		res := model.ToolCallResult{
			Name:   call.Name,
			Input:  call.Input,
			Result: call.Output,
		}
		if call.Result != nil {
			res.Status = string(call.Result.Status)
		}
		results = append(results, res)
	}

	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal tool call results: %v", err)
	}

	messages := []model.Message{
		{
			SessionID: record.SessionID,
			Role:      string(chat.RoleUser),
			Content:   record.Query,
			CreatedAt: record.StartedAt,
		},
		{
			SessionID:       record.SessionID,
			Role:            string(chat.RoleAssistant),
			Content:         record.Rendered,
			ImmediateSteps:  record.ImmediateSteps,
			ToolCallResults: resultsJSON,
			Outcome:         string(record.Outcome),
			CreatedAt:       record.FinishedAt,
		},
	}

	return session, messages, nil
}
