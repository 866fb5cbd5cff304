package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// WebhookNotifier posts run summaries as text messages.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

type webhookPayload struct {
	MsgType string      `json:"msgtype"`
	Text    webhookText `json:"text"`
}

type webhookText struct {
	Content string `json:"content"`
}

// NewWebhookNotifier constructs a notifier.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify posts summary to the webhook.
func (n *WebhookNotifier) Notify(ctx context.Context, summary RunSummary) error {
	if n == nil || n.url == "" {
		return errors.New("webhook notifier: empty url")
	}
	body, err := json.Marshal(webhookPayload{
		MsgType: "text",
		Text:    webhookText{Content: formatSummary(summary)},
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook notifier: status %d", resp.StatusCode)
	}
	return nil
}

func formatSummary(s RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[Facturas %s] %s\n", strings.ToUpper(s.Provider), s.Status)
	if s.RunID != "" {
		fmt.Fprintf(&b, "Run: %s\n", s.RunID)
	}
	if s.From != "" || s.To != "" {
		fmt.Fprintf(&b, "Periodo: %s - %s\n", s.From, s.To)
	}
	fmt.Fprintf(&b, "Procesadas: %d  Con error: %d  Omitidas: %d  Sin facturas: %d\n",
		s.Processed, s.Failed, s.Skipped, s.Placeholders)
	if s.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", s.Error)
	}
	if s.ReportPath != "" {
		fmt.Fprintf(&b, "Informe: %s\n", s.ReportPath)
	}
	keys := make([]string, 0, len(s.Meta))
	for k := range s.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, s.Meta[k])
	}
	return strings.TrimSpace(b.String())
}
