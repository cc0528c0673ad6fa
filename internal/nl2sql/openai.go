package nl2sql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultModel   = "gpt-5"
	providerName   = "openai-compatible"
	maxErrorBody   = 512
	completionPath = "/v1/chat/completions"
)

type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// OpenAITranslator asks an OpenAI-compatible chat completions endpoint for a
// DuckDB query over the relations described in the request.
type OpenAITranslator struct {
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
}

func NewOpenAITranslator(cfg OpenAIConfig) (*OpenAITranslator, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &OpenAITranslator{
		endpoint:    baseURL + completionPath,
		apiKey:      apiKey,
		model:       model,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (t *OpenAITranslator) Translate(ctx context.Context, req Request) (Result, error) {
	prompt := strings.TrimSpace(req.NaturalLanguage)
	if prompt == "" {
		return Result{}, fmt.Errorf("natural language request is required")
	}

	body, err := json.Marshal(chatRequest{
		Model: t.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(req.Tables, prompt)},
		},
		Temperature: t.temperature,
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshal chat request: %w", err)
	}

	completion, err := t.complete(ctx, body)
	if err != nil {
		return Result{}, err
	}
	if len(completion.Choices) == 0 {
		return Result{}, fmt.Errorf("chat completion returned no choices")
	}
	choice := completion.Choices[0]
	if choice.FinishReason == "length" {
		return Result{}, fmt.Errorf("chat completion was cut off before the query ended")
	}

	sql := extractSQL(choice.Message.Content)
	if sql == "" {
		return Result{}, fmt.Errorf("model returned empty SQL")
	}
	return Result{SQL: sql, Provider: providerName, Model: t.model}, nil
}

func (t *OpenAITranslator) complete(ctx context.Context, body []byte) (chatResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return chatResponse{}, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return chatResponse{}, fmt.Errorf("request chat completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return chatResponse{}, fmt.Errorf("read chat response: %w", err)
	}

	var parsed chatResponse
	decodeErr := json.Unmarshal(raw, &parsed)
	if resp.StatusCode >= 400 {
		detail := strings.TrimSpace(string(raw))
		if decodeErr == nil && parsed.Error != nil && parsed.Error.Message != "" {
			detail = parsed.Error.Message
		}
		if len(detail) > maxErrorBody {
			detail = detail[:maxErrorBody] + "..."
		}
		return chatResponse{}, fmt.Errorf("chat completion failed status=%d: %s", resp.StatusCode, detail)
	}
	if decodeErr != nil {
		return chatResponse{}, fmt.Errorf("decode chat response: %w", decodeErr)
	}
	return parsed, nil
}

const systemPrompt = "You write one read-only DuckDB SQL query answering an analytics question " +
	"about relations loaded from CSV, JSON or Parquet files. " +
	"Reply with the query only: no explanation and no markdown."

// userPrompt lays the relations out as CREATE TABLE statements followed by
// their sample rows, then the question.
func userPrompt(tables []TableContext, question string) string {
	var b strings.Builder
	for _, table := range tables {
		columns := make([]string, 0, len(table.Columns))
		names := make([]string, 0, len(table.Columns))
		for _, column := range table.Columns {
			columns = append(columns, quoteIdent(column.Name)+" "+column.Type)
			names = append(names, column.Name)
		}
		fmt.Fprintf(&b, "CREATE TABLE %s (%s);\n", quoteIdent(table.Relation), strings.Join(columns, ", "))
		if len(table.SampleRows) > 0 {
			fmt.Fprintf(&b, "-- sample rows: %s\n", strings.Join(names, " | "))
			for _, row := range table.SampleRows {
				cells := make([]string, len(row))
				for i, cell := range row {
					if cell == nil {
						cells[i] = "NULL"
						continue
					}
					cells[i] = fmt.Sprint(cell)
				}
				fmt.Fprintf(&b, "-- %s\n", strings.Join(cells, " | "))
			}
		}
		b.WriteString("\n")
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nUse only the relations and columns above and double-quote identifiers that are not plain lowercase words.")
	return b.String()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// extractSQL returns the query from a model reply: the body of the first
// fenced block when there is one, otherwise the whole reply. Trailing
// semicolons are dropped because the engine runs a single statement.
func extractSQL(content string) string {
	sql := strings.TrimSpace(content)
	if start := strings.Index(sql, "```"); start >= 0 {
		block := sql[start+3:]
		if newline := strings.IndexByte(block, '\n'); newline >= 0 && isFenceTag(block[:newline]) {
			block = block[newline+1:]
		}
		if end := strings.Index(block, "```"); end >= 0 {
			block = block[:end]
		}
		sql = strings.TrimSpace(block)
	}
	for strings.HasSuffix(sql, ";") {
		sql = strings.TrimSpace(strings.TrimSuffix(sql, ";"))
	}
	return sql
}

func isFenceTag(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "sql", "duckdb", "postgresql", "postgres":
		return true
	default:
		return false
	}
}
