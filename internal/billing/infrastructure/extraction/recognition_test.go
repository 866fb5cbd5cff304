package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"

	billing "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/domain"
)

func chatServer(t *testing.T, content string, seen *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		var req struct {
			Model          string `json:"model"`
			ResponseFormat struct {
				Type string `json:"type"`
			} `json:"response_format"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ResponseFormat.Type != "json_object" {
			t.Errorf("response_format = %q", req.ResponseFormat.Type)
		}
		if seen != nil && len(req.Messages) == 2 {
			*seen = req.Messages[0].Content + "\n---\n" + req.Messages[1].Content
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
}

func staticText(text string) TextSource {
	return func(string) (string, error) { return text, nil }
}

func TestRecognitionExtractorDecodesFields(t *testing.T) {
	var seen string
	server := chatServer(t, `{"numero_factura": "F-1", "potencia_p1": 10.5, "tarifa": null}`, &seen)
	defer server.Close()

	extractor := NewRecognitionExtractor(
		RecognitionConfig{APIKey: "test-key", BaseURL: server.URL + "/v1"},
		zerolog.Nop(),
		WithTextSource(staticText("FACTURA F-1 Potencia P1 10,50")),
		WithInstructions(billing.ProviderEndesa, "Factura de comercializadora."),
	)
	fields, err := extractor.Extract(context.Background(), billing.Document{Kind: billing.DocumentPDF, Path: "f.pdf"}, endesaSchema(t))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if fields["numero_factura"] != "F-1" || fields["potencia_p1"] != 10.5 {
		t.Fatalf("unexpected fields %#v", fields)
	}
	if v, ok := fields["tarifa"]; !ok || v != nil {
		t.Fatalf("expected explicit null for tarifa, got %#v", v)
	}
	for _, fragment := range []string{"Factura de comercializadora.", "- potencia_p1 (numero)", "- num_dias (entero)", "FACTURA F-1"} {
		if !strings.Contains(seen, fragment) {
			t.Fatalf("prompt missing %q:\n%s", fragment, seen)
		}
	}
}

func TestRecognitionExtractorMissingCredential(t *testing.T) {
	extractor := NewRecognitionExtractor(RecognitionConfig{}, zerolog.Nop(), WithTextSource(staticText("x")))
	_, err := extractor.Extract(context.Background(), billing.Document{Kind: billing.DocumentPDF, Path: "f.pdf"}, endesaSchema(t))
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
}

func TestRecognitionExtractorEmptyText(t *testing.T) {
	extractor := NewRecognitionExtractor(RecognitionConfig{APIKey: "test-key"}, zerolog.Nop(), WithTextSource(staticText("  \n ")))
	_, err := extractor.Extract(context.Background(), billing.Document{Kind: billing.DocumentPDF, Path: "f.pdf"}, endesaSchema(t))
	if !errors.Is(err, ErrNoText) {
		t.Fatalf("expected ErrNoText, got %v", err)
	}
}

func TestRecognitionExtractorBadJSON(t *testing.T) {
	server := chatServer(t, "not json", nil)
	defer server.Close()

	extractor := NewRecognitionExtractor(
		RecognitionConfig{APIKey: "test-key", BaseURL: server.URL + "/v1"},
		zerolog.Nop(),
		WithTextSource(staticText("FACTURA")),
	)
	if _, err := extractor.Extract(context.Background(), billing.Document{Kind: billing.DocumentPDF, Path: "f.pdf"}, endesaSchema(t)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestTruncateTextKeepsRunes(t *testing.T) {
	text := "Energía"
	// "í" spans bytes 5 and 6.
	got := truncateText(text, 6)
	if got != "Energ" || !utf8.ValidString(got) {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncateText(text, 100); got != text {
		t.Fatalf("short text changed: %q", got)
	}
}

func TestInstructionsFromFiles(t *testing.T) {
	dir := t.TempDir()
	enelPrompt := filepath.Join(dir, "enel.txt")
	if err := os.WriteFile(enelPrompt, []byte("  Factura de distribuidora.\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	opts, err := InstructionsFromFiles(PromptFiles{Enel: enelPrompt})
	if err != nil {
		t.Fatalf("instructions: %v", err)
	}
	extractor := NewRecognitionExtractor(RecognitionConfig{}, zerolog.Nop(), opts...)
	if got := extractor.instructions[billing.ProviderEnel]; got != "Factura de distribuidora." {
		t.Fatalf("enel instructions = %q", got)
	}
	if _, ok := extractor.instructions[billing.ProviderEndesa]; ok {
		t.Fatalf("endesa should keep the built-in prompt")
	}

	if _, err := InstructionsFromFiles(PromptFiles{Endesa: filepath.Join(dir, "missing.txt")}); err == nil {
		t.Fatalf("expected error for a missing prompt file")
	}
}
