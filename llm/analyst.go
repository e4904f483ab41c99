// Package llm sends extracted records and a user instruction to an
// OpenAI-compatible completion API and interprets the answer.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pevans/pagecat/config"
	"github.com/pevans/pagecat/post"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/prompts"
	"golang.org/x/time/rate"
)

// Temperature keeps answers close to the supplied records.
const Temperature = 0.1

const analysisTemplate = `你是一个帮助用户从大量社交媒体原始内容中提取有用信息的助手。请根据用户的指令，分析提供的内容并返回相应的结果。

### 原始内容
{{.records}}

### 用户指令
{{.query}}

### 要求
当需要返回表格数据时，请使用以下格式的 markdown 表格：

| 标题 | 作者 | 时间 | 点赞数 | 链接 |
|------|------|------|--------|------|
| 标题1 | 作者1 | 时间1 | 点赞数1 | [查看](url1) |
| 标题2 | 作者2 | 时间2 | 点赞数2 | [查看](url2) |

### 注意事项：
1. 表格必须包含表头和分隔行（第二行的破折号）
2. 每列之间使用 | 分隔
3. 表头使用中文，如：标题、作者、时间、点赞数、链接
4. 时间格式统一为：YYYY-MM-DD 或 X天前
5. 点赞数使用纯数字，不要带单位
6. 标题中的特殊字符（如emoji）可以保留
7. 链接列使用 markdown 格式 [查看](url)，url 必须是完整的链接地址
8. 作者列显示发布者的账号名称

### 返回结果
请直接返回表格数据，不要包含任何其他内容。
`

// NewAnalysisPrompt returns the prompt template filled with "records" and
// "query".
func NewAnalysisPrompt() prompts.PromptTemplate {
	return prompts.NewPromptTemplate(analysisTemplate, []string{"records", "query"})
}

// NewOpenAIModel builds a client for the chat completions endpoint under
// settings.BaseURL.
func NewOpenAIModel(settings config.Settings) (llms.Model, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	model, err := openai.New(
		openai.WithBaseURL(settings.BaseURL),
		openai.WithToken(settings.APIKey),
		openai.WithModel(settings.ModelName),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize completion client: %w", err)
	}
	return model, nil
}

// Answer is the model's reply. JSON is set when the reply is valid JSON,
// otherwise Table is set when it contains a markdown table.
type Answer struct {
	Raw   string `json:"raw"`
	JSON  any    `json:"json,omitempty"`
	Table *Table `json:"table,omitempty"`
}

// NewAnswer interprets raw model output.
func NewAnswer(raw string) *Answer {
	a := &Answer{Raw: raw}

	var decoded any
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &decoded); err == nil {
		a.JSON = decoded
		return a
	}

	if table, ok := ParseTable(raw); ok {
		a.Table = table
	}
	return a
}

// Data is the value handed back to API callers: decoded JSON if any,
// otherwise the raw text.
func (a *Answer) Data() any {
	if a.JSON != nil {
		return a.JSON
	}
	return a.Raw
}

// Render writes the answer for a terminal: an aligned table when one was
// found, indented JSON, or the raw text.
func (a *Answer) Render(w io.Writer) error {
	switch {
	case a.Table != nil:
		return a.Table.Render(w)
	case a.JSON != nil:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(a.JSON)
	default:
		_, err := fmt.Fprintln(w, a.Raw)
		return err
	}
}

// Analyst asks a model about extracted records. Calls are paced so that a
// burst of requests does not exhaust the provider's quota.
type Analyst struct {
	model   llms.Model
	prompt  prompts.PromptTemplate
	limiter *rate.Limiter
	logger  *logrus.Logger
}

// NewAnalyst creates an analyst allowing requestsPerMinute calls per minute.
// A non-positive rate disables pacing.
func NewAnalyst(model llms.Model, requestsPerMinute int, logger *logrus.Logger) *Analyst {
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(requestsPerMinute))
	}

	return &Analyst{
		model:   model,
		prompt:  NewAnalysisPrompt(),
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Ask sends the records and query to the model and returns its answer.
func (a *Analyst) Ask(ctx context.Context, records []post.Record, query string) (*Answer, error) {
	if records == nil {
		records = []post.Record{}
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to encode records: %w", err)
	}

	prompt, err := a.prompt.Format(map[string]any{
		"records": string(payload),
		"query":   query,
	})
	if err != nil {
		return nil, fmt.Errorf("error formatting analysis prompt: %w", err)
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	a.logger.WithFields(logrus.Fields{
		"count":       len(records),
		"temperature": Temperature,
	}).Debug("Requesting completion")

	raw, err := llms.GenerateFromSinglePrompt(ctx, a.model, prompt, llms.WithTemperature(Temperature))
	if err != nil {
		return nil, fmt.Errorf("failed to generate completion: %w", err)
	}

	return NewAnswer(raw), nil
}
