package llm

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"docroute/internal/domain"
	"docroute/internal/infra/config"
	"docroute/internal/infra/logger"
)

type mockProvider struct {
	name     string
	calls    atomic.Int32
	chatFunc func(context.Context, domain.ChatRequest) (*domain.ChatResponse, error)
}

func (m *mockProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	m.calls.Add(1)
	return m.chatFunc(ctx, req)
}

func (m *mockProvider) Name() string { return m.name }

func okProvider(name, content string) *mockProvider {
	return &mockProvider{name: name, chatFunc: func(context.Context, domain.ChatRequest) (*domain.ChatResponse, error) {
		return &domain.ChatResponse{Message: domain.Message{Role: domain.RoleAssistant, Content: content}}, nil
	}}
}

func failingProvider(name string, err error) *mockProvider {
	return &mockProvider{name: name, chatFunc: func(context.Context, domain.ChatRequest) (*domain.ChatResponse, error) {
		return nil, err
	}}
}

func newTestLogger() *slog.Logger {
	return logger.Discard()
}

func configWithTimeouts(conn, resp time.Duration) config.ProviderConfig {
	return config.ProviderConfig{Name: "t", ConnTimeout: conn, RespTimeout: resp}
}
