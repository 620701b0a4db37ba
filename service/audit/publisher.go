package audit

import (
	"context"
	"encoding/json"
	"filecoder-backend/config"
	"filecoder-backend/service/chat"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/apache/rocketmq-client-go/v2/producer"
	"github.com/apache/rocketmq-client-go/v2/rlog"
	"github.com/avast/retry-go/v4"
)

const (
	sendMessageAttempts = 3
	sendTimeout         = 10 * time.Second
	retryDelay          = 100 * time.Millisecond
)

// Producer rocketmq.Producer 中用到的部分
type Producer interface {
	SendSync(ctx context.Context, msgs ...*primitive.Message) (*primitive.SendResult, error)
	Shutdown() error
}

type ToolCallSummary struct {
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
}

// TurnEvent 每轮对话发送到 MQ 的审计事件，不包含文件内容
type TurnEvent struct {
	SessionID  string            `json:"session_id"`
	Query      string            `json:"query"`
	Outcome    string            `json:"outcome"`
	ToolCalls  []ToolCallSummary `json:"tool_calls"`
	Error      string            `json:"error,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	DurationMs int64             `json:"duration_ms"`
}

func NewTurnEvent(record chat.TurnRecord) TurnEvent {
	calls := make([]ToolCallSummary, 0, len(record.ToolCalls))
	for _, call := range record.ToolCalls {
		summary := ToolCallSummary{Name: call.Name}
		if call.Result != nil {
			summary.Status = string(call.Result.Status)
		}
		calls = append(calls, summary)
	}

	return TurnEvent{
		SessionID:  record.SessionID,
		Query:      record.Query,
		Outcome:    string(record.Outcome),
		ToolCalls:  calls,
		Error:      record.Error,
		StartedAt:  record.StartedAt,
		DurationMs: record.FinishedAt.Sub(record.StartedAt).Milliseconds(),
	}
}

// Publisher 将对话事件异步发送到 RocketMQ
type Publisher struct {
	producer Producer
	topic    string
	tag      string
	delay    time.Duration

	wg sync.WaitGroup
}

var _ chat.Sink = &Publisher{}

func NewPublisher(p Producer, topic, tag string) *Publisher {
	return &Publisher{
		producer: p,
		topic:    topic,
		tag:      tag,
		delay:    retryDelay,
	}
}

// NewRocketMQPublisher 创建并启动 RocketMQ 生产者
func NewRocketMQPublisher(cfg config.MQConfig) (*Publisher, error) {
	// 设置RocketMQ客户端（使用rlog）的日志级别
	rlog.SetLogLevel("warn")

	p, err := rocketmq.NewProducer(
		producer.WithNameServer(cfg.NameServer),
		producer.WithRetry(0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %v", err)
	}

	if err := p.Start(); err != nil {
		return nil, fmt.Errorf("failed to start producer: %v", err)
	}

	return NewPublisher(p, cfg.Topic, cfg.Tag), nil
}

func (p *Publisher) RecordTurn(record chat.TurnRecord) {
	event := NewTurnEvent(record)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		if err := p.SendMessage(ctx, event); err != nil {
			slog.Error("Failed to publish turn event", "session_id", event.SessionID, "err", err)
		}
	}()
}

// SendMessage 向MQ发送消息
func (p *Publisher) SendMessage(ctx context.Context, payload any) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %v", err)
	}

	msg := primitive.NewMessage(p.topic, payloadJSON)
	if p.tag != "" {
		msg = msg.WithTag(p.tag)
	}

	err = retry.Do(
		func() error {
			_, err := p.producer.SendSync(ctx, msg)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(sendMessageAttempts),
		retry.Delay(p.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("Retrying to send message",
				"attempt", n+1,
				"topic", msg.Topic,
				"err", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to send message to topic %s after retries: %v", msg.Topic, err)
	}

	return nil
}

// Shutdown 等待发送中的消息完成后关闭生产者
func (p *Publisher) Shutdown() {
	p.wg.Wait()
	if p.producer != nil {
		if err := p.producer.Shutdown(); err != nil {
			slog.Error("Failed to shutdown producer", "err", err)
		}
	}
}
