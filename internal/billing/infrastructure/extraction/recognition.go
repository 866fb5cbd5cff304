package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	billing "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/domain"
)

const (
	defaultModel        = openai.GPT4o
	defaultMaxTextBytes = 60000
)

// RecognitionConfig configures the recognition service client.
type RecognitionConfig struct {
	APIKey        string      `yaml:"api_key"`
	Model         string      `yaml:"model"`
	BaseURL       string      `yaml:"base_url"`
	RatePerMinute int         `yaml:"rate_per_minute"`
	MaxTextBytes  int         `yaml:"max_text_bytes"`
	Prompts       PromptFiles `yaml:"prompts"`
}

// PromptFiles names the instruction file of each provider.
type PromptFiles struct {
	Endesa string `yaml:"endesa"`
	Enel   string `yaml:"enel"`
}

func (p PromptFiles) byProvider() map[billing.Provider]string {
	return map[billing.Provider]string{
		billing.ProviderEndesa: p.Endesa,
		billing.ProviderEnel:   p.Enel,
	}
}

// InstructionsFromFiles reads the configured prompt files. Providers without
// a file keep the built-in prompt.
func InstructionsFromFiles(files PromptFiles) ([]RecognitionOption, error) {
	var opts []RecognitionOption
	for _, provider := range billing.Providers() {
		path := files.byProvider()[provider]
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("extraction: %s prompt: %w", provider, err)
		}
		opts = append(opts, WithInstructions(provider, string(data)))
	}
	return opts, nil
}

// TextSource returns the text layer of a PDF file.
type TextSource func(path string) (string, error)

// RecognitionOption customizes a RecognitionExtractor.
type RecognitionOption func(*RecognitionExtractor)

// WithTextSource replaces the PDF text reader.
func WithTextSource(source TextSource) RecognitionOption {
	return func(r *RecognitionExtractor) {
		if source != nil {
			r.text = source
		}
	}
}

// WithInstructions sets provider specific instructions prepended to the prompt.
func WithInstructions(provider billing.Provider, text string) RecognitionOption {
	return func(r *RecognitionExtractor) {
		r.instructions[provider] = strings.TrimSpace(text)
	}
}

// RecognitionExtractor asks a chat completion model to read a PDF invoice.
type RecognitionExtractor struct {
	cfg          RecognitionConfig
	client       *openai.Client
	limiter      *rate.Limiter
	text         TextSource
	instructions map[billing.Provider]string
	logger       zerolog.Logger
}

// NewRecognitionExtractor constructs a RecognitionExtractor. A missing API key
// is not an error here; each Extract call reports ErrMissingCredential instead.
func NewRecognitionExtractor(cfg RecognitionConfig, logger zerolog.Logger, opts ...RecognitionOption) *RecognitionExtractor {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTextBytes <= 0 {
		cfg.MaxTextBytes = defaultMaxTextBytes
	}
	limit := rate.Inf
	if cfg.RatePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RatePerMinute))
	}
	r := &RecognitionExtractor{
		cfg:          cfg,
		limiter:      rate.NewLimiter(limit, 1),
		text:         pdfText,
		instructions: make(map[billing.Provider]string),
		logger:       logger.With().Str("component", "recognition_extractor").Logger(),
	}
	if cfg.APIKey != "" {
		clientCfg := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
		r.client = openai.NewClientWithConfig(clientCfg)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Extract reads the PDF text layer and returns the fields recognized by the model.
func (r *RecognitionExtractor) Extract(ctx context.Context, doc billing.Document, schema billing.Schema) (map[string]any, error) {
	if r.client == nil {
		return nil, ErrMissingCredential
	}
	if doc.Kind != billing.DocumentPDF {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDocument, doc.Kind)
	}
	text, err := r.text(doc.Path)
	if err != nil {
		return nil, fmt.Errorf("extraction: read pdf: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrNoText
	}
	text = truncateText(text, r.cfg.MaxTextBytes)
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.cfg.Model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: r.prompt(schema)},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("extraction: recognition request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty recognition response", ErrIncompleteDocument)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimSuffix(strings.TrimPrefix(content, "```"), "```")
	fields := make(map[string]any)
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &fields); err != nil {
		return nil, fmt.Errorf("extraction: decode recognition response: %w", err)
	}

	r.logger.Debug().
		Str("event", "pdf_recognized").
		Str("path", doc.Path).
		Int("fields", len(fields)).
		Int("total_tokens", resp.Usage.TotalTokens).
		Msg("pdf recognized")
	return fields, nil
}

func (r *RecognitionExtractor) prompt(schema billing.Schema) string {
	var b strings.Builder
	if extra := r.instructions[schema.Provider]; extra != "" {
		b.WriteString(extra)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Extrae los datos de esta factura de %s y responde con un objeto JSON con estas claves:\n", schema.Provider.Label())
	for _, field := range schema.Fields() {
		fmt.Fprintf(&b, "- %s (%s)\n", field.Name, kindHint(field.Kind))
	}
	b.WriteString("Usa null para los valores que no aparezcan. Las fechas en formato DD/MM/YYYY. ")
	b.WriteString("Los importes como numeros con punto decimal.")
	return b.String()
}

func kindHint(kind billing.Kind) string {
	switch kind {
	case billing.KindNumber:
		return "numero"
	case billing.KindInteger:
		return "entero"
	default:
		return "texto"
	}
}

func pdfText(path string) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// truncateText cuts text to at most limit bytes without splitting a rune.
func truncateText(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
