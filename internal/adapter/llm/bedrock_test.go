package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docroute/internal/domain"
)

type mockBedrockClient struct {
	converseFunc func(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

func (m *mockBedrockClient) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	return m.converseFunc(ctx, params, optFns...)
}

func TestBedrockChat(t *testing.T) {
	var received *bedrockruntime.ConverseInput
	mock := &mockBedrockClient{converseFunc: func(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
		received = params
		return &bedrockruntime.ConverseOutput{
			Output: &types.ConverseOutputMemberMessage{Value: types.Message{
				Role: types.ConversationRoleAssistant,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: `{"answer":`},
					&types.ContentBlockMemberText{Value: `"hi"}`},
				},
			}},
			Usage: &types.TokenUsage{InputTokens: aws.Int32(10), OutputTokens: aws.Int32(4)},
		}, nil
	}}
	p := newBedrockProviderWithClient("bedrock", "anthropic.claude-3-haiku", mock, newTestLogger())

	resp, err := p.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: "route it"},
			{Role: domain.RoleUser, Content: "hello"},
			{Role: domain.RoleAssistant, Content: "earlier"},
		},
		JSONMode:    true,
		Temperature: 0.2,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"answer":"hi"}`, resp.Message.Content)
	assert.Equal(t, domain.RoleAssistant, resp.Message.Role)
	assert.Equal(t, 14, resp.Usage.TotalTokens)
	assert.Equal(t, "anthropic.claude-3-haiku", resp.Model)

	require.NotNil(t, received)
	assert.Equal(t, "anthropic.claude-3-haiku", aws.ToString(received.ModelId))
	assert.Equal(t, int32(bedrockDefaultMaxTokens), aws.ToInt32(received.InferenceConfig.MaxTokens))
	require.NotNil(t, received.InferenceConfig.Temperature)
	require.Len(t, received.Messages, 2)
	assert.Equal(t, types.ConversationRoleUser, received.Messages[0].Role)
	assert.Equal(t, types.ConversationRoleAssistant, received.Messages[1].Role)

	require.Len(t, received.System, 1)
	sys, ok := received.System[0].(*types.SystemContentBlockMemberText)
	require.True(t, ok)
	assert.Equal(t, "route it\n\n"+bedrockJSONInstruction, sys.Value)
}

func TestBedrockChat_NoSystemWithoutJSONMode(t *testing.T) {
	var received *bedrockruntime.ConverseInput
	mock := &mockBedrockClient{converseFunc: func(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
		received = params
		return &bedrockruntime.ConverseOutput{}, nil
	}}
	p := newBedrockProviderWithClient("bedrock", "m", mock, newTestLogger())

	resp, err := p.Chat(context.Background(), domain.ChatRequest{
		Model:     "override",
		MaxTokens: 64,
		Messages:  []domain.Message{{Role: domain.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Message.Content)
	assert.Empty(t, received.System)
	assert.Nil(t, received.InferenceConfig.Temperature)
	assert.Equal(t, "override", aws.ToString(received.ModelId))
	assert.Equal(t, int32(64), aws.ToInt32(received.InferenceConfig.MaxTokens))
}

func TestMapBedrockError(t *testing.T) {
	tests := []struct {
		code string
		msg  string
		want error
	}{
		{"ThrottlingException", "slow down", domain.ErrRateLimit},
		{"AccessDeniedException", "no", domain.ErrAuthInvalid},
		{"ValidationException", "input is too long", domain.ErrContextOverflow},
		{"ServiceUnavailableException", "later", domain.ErrProviderError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := mapBedrockError(&smithy.GenericAPIError{Code: tt.code, Message: tt.msg})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	plain := errors.New("dial tcp: refused")
	err := mapBedrockError(plain)
	assert.ErrorIs(t, err, plain)
	assert.Contains(t, err.Error(), "bedrock")
	assert.NoError(t, mapBedrockError(nil))
}

func TestBedrockChat_Error(t *testing.T) {
	mock := &mockBedrockClient{converseFunc: func(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
		return nil, &smithy.GenericAPIError{Code: "ThrottlingException", Message: "rate"}
	}}
	p := newBedrockProviderWithClient("bedrock", "m", mock, newTestLogger())

	_, err := p.Chat(context.Background(), domain.ChatRequest{Messages: []domain.Message{{Role: domain.RoleUser, Content: "hi"}}})
	assert.ErrorIs(t, err, domain.ErrRateLimit)
}
