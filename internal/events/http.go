package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPPublisher posts updates to a bridge endpoint that relays them to the
// browser.
type HTTPPublisher struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPPublisher(url, apiKey string) *HTTPPublisher {
	return &HTTPPublisher{
		url:    strings.TrimRight(url, "/"),
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (p *HTTPPublisher) Publish(ctx context.Context, u Update) error {
	jsonBody, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("요청 JSON 생성 실패: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("HTTP 요청 생성 실패: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("X-API-Key", p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP 요청 실패: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("bridge 오류: status=%d", resp.StatusCode)
	}
	return nil
}

func (p *HTTPPublisher) Close() error { return nil }
