package llm

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/pevans/pagecat/config"
	"github.com/pevans/pagecat/post"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeModel records prompts and replies with a canned answer.
type fakeModel struct {
	reply   string
	err     error
	prompts []string
	opts    llms.CallOptions
}

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, opt := range options {
		opt(&m.opts)
	}
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				m.prompts = append(m.prompts, text.Text)
			}
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

var sampleRecords = []post.Record{
	{Title: "春日穿搭", Author: "小美", Time: "2024-03-15 00:00", Likes: 15000, URL: "https://www.xiaohongshu.com/explore/1", Tags: []string{}},
}

const tableReply = "以下是结果：\n\n| 标题 | 作者 | 时间 | 点赞数 | 链接 |\n|------|------|------|--------|------|\n| 春日穿搭 | 小美 | 2024-03-15 | 15000 | [查看](https://www.xiaohongshu.com/explore/1) |\n"

// TestAsk_PromptCarriesRecordsAndQuery verifies the rendered prompt embeds
// the records as JSON and the user's instruction
func TestAsk_PromptCarriesRecordsAndQuery(t *testing.T) {
	model := &fakeModel{reply: tableReply}
	analyst := NewAnalyst(model, 0, testLogger())

	answer, err := analyst.Ask(context.Background(), sampleRecords, "点赞最多的笔记")
	require.NoError(t, err)

	require.Len(t, model.prompts, 1)
	prompt := model.prompts[0]
	assert.Contains(t, prompt, `"title":"春日穿搭"`)
	assert.Contains(t, prompt, `"likes":15000`)
	assert.Contains(t, prompt, "### 用户指令\n点赞最多的笔记")
	assert.Contains(t, prompt, "| 标题 | 作者 | 时间 | 点赞数 | 链接 |")
	assert.Equal(t, Temperature, model.opts.Temperature)

	require.NotNil(t, answer.Table)
	assert.Equal(t, tableReply, answer.Raw)
	assert.Equal(t, tableReply, answer.Data())
}

func TestAsk_NilRecordsEncodeAsEmptyArray(t *testing.T) {
	model := &fakeModel{reply: "没有数据"}
	_, err := NewAnalyst(model, 0, testLogger()).Ask(context.Background(), nil, "总结")
	require.NoError(t, err)
	assert.Contains(t, model.prompts[0], "### 原始内容\n[]")
}

func TestAsk_ModelError(t *testing.T) {
	boom := errors.New("401 unauthorized")
	model := &fakeModel{err: boom}

	_, err := NewAnalyst(model, 0, testLogger()).Ask(context.Background(), sampleRecords, "总结")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

// TestAsk_RateLimited verifies a second call inside the pacing window gives
// up when the context cannot wait long enough
func TestAsk_RateLimited(t *testing.T) {
	model := &fakeModel{reply: "ok"}
	analyst := NewAnalyst(model, 1, testLogger())

	_, err := analyst.Ask(context.Background(), sampleRecords, "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = analyst.Ask(ctx, sampleRecords, "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
	assert.Len(t, model.prompts, 1)
}

func TestNewAnswer(t *testing.T) {
	t.Run("json array", func(t *testing.T) {
		a := NewAnswer(`[{"title":"a","likes":3}]`)
		require.NotNil(t, a.JSON)
		assert.Nil(t, a.Table)
		assert.Equal(t, []any{map[string]any{"title": "a", "likes": 3.0}}, a.Data())
	})

	t.Run("table", func(t *testing.T) {
		a := NewAnswer(tableReply)
		assert.Nil(t, a.JSON)
		require.NotNil(t, a.Table)
		assert.Len(t, a.Table.Rows, 1)
	})

	t.Run("plain text", func(t *testing.T) {
		a := NewAnswer("没有找到相关内容")
		assert.Nil(t, a.JSON)
		assert.Nil(t, a.Table)
		assert.Equal(t, "没有找到相关内容", a.Data())

		var buf bytes.Buffer
		require.NoError(t, a.Render(&buf))
		assert.Equal(t, "没有找到相关内容\n", buf.String())
	})
}

func TestNewOpenAIModel(t *testing.T) {
	_, err := NewOpenAIModel(config.Settings{BaseURL: "https://api.x.ai/v1"})
	assert.ErrorIs(t, err, config.ErrSettingsMissing)

	model, err := NewOpenAIModel(config.Settings{
		BaseURL:   "https://api.x.ai/v1",
		APIKey:    "xai-test",
		ModelName: "grok-3",
	})
	require.NoError(t, err)
	assert.NotNil(t, model)
}
