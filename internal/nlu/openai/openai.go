// Package openai provides OpenAI-backed implementations of the nlu
// Classifier and Embedder collaborators.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	log "log/slog"
	"net/http"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"github.com/omotayoh/vRvoice/internal/nlu"
)

// Defaults used when no model is configured.
const (
	DefaultChatModel      = string(openai.ChatModelGPT5Nano)
	DefaultEmbeddingModel = string(openai.EmbeddingModelTextEmbedding3Small)
)

// Config selects models and transport for both providers.
type Config struct {
	APIKey         string
	ChatModel      string
	EmbeddingModel string
	Dimensions     int          // embedding dimensionality; 0 selects the model default
	HTTPClient     *http.Client // optional, e.g. a SOCKS-proxied client
}

// Client bundles the OpenAI-backed Classifier and Embedder.
type Client struct {
	api       openai.Client
	chatModel string
	embModel  string
	dims      int
}

var (
	_ nlu.Classifier = (*Client)(nil)
	_ nlu.Embedder   = (*Client)(nil)
)

// New validates cfg and builds the client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key must not be empty")
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = modelDimensions(cfg.EmbeddingModel)
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Client{
		api:       openai.NewClient(opts...),
		chatModel: cfg.ChatModel,
		embModel:  cfg.EmbeddingModel,
		dims:      cfg.Dimensions,
	}, nil
}

const classifierPrompt = `You are the intent classifier of a voice-command bridge.
Classify the utterance into exactly one intent label and output ONLY JSON:
{"label": "<intent label>", "confidence": <0.0-1.0>}
Do not converse. Do not explain. No markdown.
If the utterance matches no known command style, use a low confidence.`

// classification is the strict JSON the chat model must produce.
type classification struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Classify implements nlu.Classifier via a chat completion constrained to a
// strict JSON reply.
func (c *Client) Classify(ctx context.Context, text string) (string, float64, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(classifierPrompt),
			openai.UserMessage(text),
		},
		Model: openai.ChatModel(c.chatModel),
	})
	if err != nil {
		return "", 0, fmt.Errorf("openai: classify: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", 0, fmt.Errorf("openai: classify: no choices in response")
	}

	content := resp.Choices[0].Message.Content
	var out classification
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return "", 0, fmt.Errorf("openai: classify: unmarshal %q: %w", content, err)
	}

	log.Debug("Classified", "text", text, "label", out.Label, "confidence", out.Confidence)
	return out.Label, out.Confidence, nil
}

// Embed implements nlu.Embedder.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.embModel),
		Input: openai.EmbeddingNewParamsInputUnion{OfString: param.NewOpt(text)},
	})
	if err != nil {
		return nil, fmt.Errorf("openai: embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai: embed: empty response")
	}
	return toFloat32(resp.Data[0].Embedding), nil
}

// EmbedBatch implements nlu.Embedder. The result is ordered like texts.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.embModel),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("openai: embed batch: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai: embed batch: expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(texts))
	for _, e := range resp.Data {
		if int(e.Index) >= len(texts) {
			return nil, fmt.Errorf("openai: embed batch: unexpected index %d", e.Index)
		}
		out[e.Index] = toFloat32(e.Embedding)
	}
	return out, nil
}

// Dimensions implements nlu.Embedder.
func (c *Client) Dimensions() int { return c.dims }

func modelDimensions(model string) int {
	switch model {
	case string(openai.EmbeddingModelTextEmbedding3Large):
		return 3072
	default:
		return 1536
	}
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
