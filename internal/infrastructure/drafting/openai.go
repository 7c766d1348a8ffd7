package drafting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	grievanceapp "github.com/grievancenet/backend/internal/application/grievance"
	"github.com/grievancenet/backend/internal/infrastructure/config"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// Provider failures. The draft service treats all of them alike and falls
// back to the template.
var (
	ErrNoChoices      = errors.New("ai provider returned no choices")
	ErrMalformedDraft = errors.New("ai provider returned malformed JSON")
	ErrEmptyDraft     = errors.New("ai provider returned an empty draftedMail")
)

const systemPrompt = `You help citizens file civic grievances with the local authority.
Respond ONLY with compact valid JSON. Do not add explanations or markdown.
Use exactly these keys:
{"department":"Electricity / Water / Municipal / Police / Health","summary":"short issue understanding","advice":"next steps for citizen","draftedMail":"formal grievance email"}`

// OpenAIDrafter drafts letters through a chat-completions endpoint
type OpenAIDrafter struct {
	client      openai.Client
	model       string
	timeout     time.Duration
	maxTokens   int64
	temperature float64
	logger      *zap.Logger
}

var _ grievanceapp.Drafter = (*OpenAIDrafter)(nil)

// NewOpenAIDrafter creates a drafter from configuration. extra options are
// appended after the configured ones.
func NewOpenAIDrafter(cfg config.AIConfig, logger *zap.Logger, extra ...option.RequestOption) (*OpenAIDrafter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ai api key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}
	opts = append(opts, extra...)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &OpenAIDrafter{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		timeout:     timeout,
		maxTokens:   int64(cfg.MaxTokens),
		temperature: cfg.Temperature,
		logger:      logger.Named("drafting"),
	}, nil
}

type aiDraft struct {
	Department  string `json:"department"`
	Summary     string `json:"summary"`
	Advice      string `json:"advice"`
	DraftedMail string `json:"draftedMail"`
}

// Draft asks the provider for a letter. The call is bounded by the
// configured timeout regardless of ctx.
func (d *OpenAIDrafter) Draft(ctx context.Context, req grievanceapp.DraftRequest) (*grievanceapp.DraftContent, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: d.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(fmt.Sprintf("Complaint:\n%s\n\nCity:\n%s", req.Problem, req.Location)),
		},
		Temperature: openai.Float(d.temperature),
	}
	if d.maxTokens > 0 {
		params.MaxTokens = openai.Int(d.maxTokens)
	}

	start := time.Now()
	resp, err := d.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("ai provider request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	content, err := parseDraft(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("AI draft received",
		zap.String("model", d.model),
		zap.String("department", content.Department),
		zap.Duration("elapsed", time.Since(start)),
	)
	return content, nil
}

// parseDraft extracts the JSON object from raw, tolerating code fences or
// text around it
func parseDraft(raw string) (*grievanceapp.DraftContent, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, ErrMalformedDraft
	}

	var out aiDraft
	if err := json.Unmarshal([]byte(raw[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDraft, err)
	}
	if strings.TrimSpace(out.DraftedMail) == "" {
		return nil, ErrEmptyDraft
	}

	department := strings.TrimSpace(out.Department)
	if department == "" {
		department = TemplateDepartment
	}
	return &grievanceapp.DraftContent{
		DraftedMail: out.DraftedMail,
		Department:  department,
		Summary:     strings.TrimSpace(out.Summary),
		Advice:      strings.TrimSpace(out.Advice),
	}, nil
}
