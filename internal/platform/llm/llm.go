package llm

import (
	"context"
	"fmt"
	"strings"

	"prodintel/internal/logger"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	gemini "github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"
)

// Config selects the extraction model. Provider is kept open so another
// eino-ext component can slot in without touching callers.
type Config struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
	BaseURL  string `json:"base_url,omitempty"`
	Model    string `json:"model"`
}

// Service wraps the chat model behind two call shapes: template-driven
// generation through eino, and direct bounded generation through the genai
// client when a response-size cap and token accounting are needed.
type Service struct {
	config       Config
	chatModel    model.BaseChatModel
	geminiClient *genai.Client
	log          *logger.Logger
}

// TokenUsage reports prompt/response token counts for one call.
type TokenUsage struct {
	InputTokens  int32 `json:"input_tokens"`
	OutputTokens int32 `json:"output_tokens"`
	TotalTokens  int32 `json:"total_tokens"`
}

func NewService(config Config) (*Service, error) {
	s := &Service{config: config, log: logger.New("LLM")}
	switch strings.ToLower(config.Provider) {
	case "gemini":
		if err := s.initializeGeminiModel(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported provider: %s. Supported: gemini", config.Provider)
	}
	return s, nil
}

// NewServiceWithModel injects a pre-built chat model; tests use this to avoid
// network calls.
func NewServiceWithModel(config Config, chatModel model.BaseChatModel) *Service {
	return &Service{config: config, chatModel: chatModel, log: logger.New("LLM")}
}

func (s *Service) initializeGeminiModel() error {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: s.config.APIKey,
	})
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}
	s.geminiClient = client

	geminiModel, err := gemini.NewChatModel(context.Background(), &gemini.Config{
		Client: client,
		Model:  s.config.Model,
	})
	if err != nil {
		return fmt.Errorf("failed to create Gemini chat model: %w", err)
	}
	s.chatModel = geminiModel
	return nil
}

// Generate renders the chat template with the given variables and returns the
// model's raw reply text.
func (s *Service) Generate(ctx context.Context, tpl prompt.ChatTemplate, vars map[string]any) (string, error) {
	if s.chatModel == nil {
		return "", fmt.Errorf("chat model not initialized")
	}
	messages, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("failed to format chat template: %w", err)
	}
	response, err := s.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("llm generation failed: %w", err)
	}
	return response.Content, nil
}

// GenerateBounded calls the gemini API directly so the response size can be
// capped and accurate token usage read back from UsageMetadata.
func (s *Service) GenerateBounded(ctx context.Context, messages []*schema.Message, maxOutputTokens int32) (string, *TokenUsage, error) {
	if s.geminiClient == nil {
		return "", nil, fmt.Errorf("gemini client not initialized")
	}

	var contents []*genai.Content
	promptChars := 0
	for _, msg := range messages {
		contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		promptChars += len(msg.Content)
	}
	cfg := &genai.GenerateContentConfig{MaxOutputTokens: maxOutputTokens}

	response, err := s.geminiClient.Models.GenerateContent(ctx, s.config.Model, contents, cfg)
	if err != nil {
		return "", nil, fmt.Errorf("gemini api generation failed: %w", err)
	}

	text := ""
	if len(response.Candidates) > 0 && response.Candidates[0].Content != nil && len(response.Candidates[0].Content.Parts) > 0 {
		text = response.Candidates[0].Content.Parts[0].Text
	}

	usage := &TokenUsage{}
	if response.UsageMetadata != nil {
		usage.InputTokens = response.UsageMetadata.PromptTokenCount
		usage.OutputTokens = response.UsageMetadata.CandidatesTokenCount
		usage.TotalTokens = response.UsageMetadata.TotalTokenCount
	}
	if usage.TotalTokens == 0 {
		usage.InputTokens = int32(promptChars / 4)
		usage.OutputTokens = CountTokensInText(text)
		usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	}
	return text, usage, nil
}

// HealthCheck verifies the model wiring without a generation round-trip.
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.chatModel == nil {
		return fmt.Errorf("chat model not initialized")
	}
	if strings.ToLower(s.config.Provider) == "gemini" && s.config.APIKey == "" {
		return fmt.Errorf("gemini api key not configured")
	}
	return nil
}

// CountTokensInText estimates tokens at the documented ~4 chars/token ratio.
func CountTokensInText(text string) int32 {
	return int32(len(text) / 4)
}

// CountPromptTokens asks the Gemini CountTokens API for an exact prompt size.
func (s *Service) CountPromptTokens(ctx context.Context, messages []*schema.Message) (int32, error) {
	if s.geminiClient == nil {
		return 0, fmt.Errorf("gemini client not initialized")
	}
	var contents []*genai.Content
	for _, msg := range messages {
		contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
	}
	countResp, err := s.geminiClient.Models.CountTokens(ctx, s.config.Model, contents, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count tokens: %w", err)
	}
	return countResp.TotalTokens, nil
}

// ExtractJSONArray cleans a model reply down to the JSON array it should
// contain: markdown fences are stripped, and when loose prose surrounds the
// payload the first-'['..last-']' slice is taken.
func ExtractJSONArray(content string) (string, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "[") && strings.HasSuffix(content, "]") {
		return content, nil
	}

	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON array found in model reply")
	}
	return content[start : end+1], nil
}
