package llmclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fathom-run/fathom/internal/clock"
	"github.com/fathom-run/fathom/internal/metrics"
	"github.com/fathom-run/fathom/internal/retry"
)

const (
	defaultEndpoint         = "https://api.openai.com/v1/responses"
	defaultModel            = "gpt-5.3-codex"
	defaultReasoningEffort  = "extra_high"
	fallbackReasoningEffort = "high"
	defaultTimeout          = 45 * time.Second
)

// Client streams tool calls out of the Responses-style endpoint,
// retrying transient failures per its retry.Policy and falling back to a
// lower reasoning effort on a specific HTTP 400.
type Client struct {
	HTTP     *http.Client
	Endpoint string
	Model    string
	APIKey   string
	Policy   retry.Policy
	Clock    clock.Clock
	Logger   *slog.Logger

	// Metrics is optional; nil disables request instrumentation.
	Metrics *metrics.Metrics
}

func New(apiKey string) *Client {
	return &Client{
		HTTP:     &http.Client{Timeout: defaultTimeout},
		Endpoint: defaultEndpoint,
		Model:    defaultModel,
		APIKey:   apiKey,
		Policy:   retry.ConservativePolicy(),
		Clock:    clock.System{},
		Logger:   slog.Default(),
	}
}

// StreamToolCalls drives the endpoint with up to Policy.MaxRetries retries
// on 429/5xx, on transport errors, and on a stream-parse or tool-validation
// failure (each retry consumes an attempt), plus a one-time reasoning-effort
// downgrade on a 400 mentioning "reasoning" and "effort" that does not
// consume an attempt.
func (c *Client) StreamToolCalls(prompt string, tools ToolRegistry, onStream func(StreamNote), onTool func(ToolInvocation)) (StreamOutcome, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return StreamOutcome{}, fmt.Errorf("an API key is required but not configured")
	}

	requestStartMs := int64(0)
	if c.Clock != nil {
		requestStartMs = c.Clock.NowMs()
	}

	attempts := 0
	reasoningEffort := defaultReasoningEffort
	maxRetries := c.Policy.MaxRetries
	var lastErr string

	for attempts <= maxRetries {
		onStream(StreamNote{
			Phase:  "llm.request.start",
			Detail: fmt.Sprintf("attempt=%d effort=%s", attempts+1, reasoningEffort),
		})

		body, err := json.Marshal(map[string]any{
			"model":      c.Model,
			"stream":     true,
			"input":      prompt,
			"reasoning":  map[string]any{"effort": reasoningEffort},
			"tools":      tools.Definitions(),
			"tool_choice": "required",
		})
		if err != nil {
			return StreamOutcome{}, fmt.Errorf("failed to marshal request body: %w", err)
		}

		req, err := http.NewRequest(http.MethodPost, c.Endpoint, bytes.NewReader(body))
		if err != nil {
			return StreamOutcome{}, fmt.Errorf("failed to construct request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
		req.Header.Set("X-Request-Id", uuid.NewString())

		resp, err := c.HTTP.Do(req)
		if err != nil {
			lastErr = fmt.Sprintf("transport error: %v", err)
			if shouldRetryTransport(err) && attempts < maxRetries {
				c.sleepBeforeRetry(onStream, attempts, nil, "transport_error")
				attempts++
				continue
			}
			break
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			outcome, parseErr := c.parseStream(resp.Body, tools, onStream, onTool)
			resp.Body.Close()
			if parseErr == nil {
				c.recordRequest("success", requestStartMs)
				return outcome, nil
			}
			lastErr = parseErr.Error()
			if attempts >= maxRetries {
				break
			}
			c.sleepBeforeRetry(onStream, attempts, nil, "stream_parse_error")
			attempts++
			continue
		}

		text, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		retryAfter := parseRetryAfterMs(resp.Header.Get("Retry-After"))
		lastErr = fmt.Sprintf("LLM request failed: status=%d body=%s", resp.StatusCode, truncateForLog(string(text)))

		invalidReasoning := resp.StatusCode == 400 &&
			reasoningEffort == defaultReasoningEffort &&
			strings.Contains(string(text), "reasoning") &&
			strings.Contains(string(text), "effort")
		if invalidReasoning {
			onStream(StreamNote{
				Phase:  "llm.request.fallback",
				Detail: fmt.Sprintf("falling back reasoning effort to `%s`", fallbackReasoningEffort),
			})
			reasoningEffort = fallbackReasoningEffort
			// Does not consume a retry attempt: this is a capability
			// downgrade, not a transient failure.
			continue
		}

		if shouldRetryStatus(resp.StatusCode) && attempts < maxRetries {
			c.sleepBeforeRetry(onStream, attempts, retryAfter, fmt.Sprintf("status=%d", resp.StatusCode))
			attempts++
			continue
		}

		break
	}

	c.recordRequest("error", requestStartMs)
	return StreamOutcome{}, fmt.Errorf("%s", lastErr)
}

func (c *Client) recordRequest(status string, startMs int64) {
	if c.Metrics == nil || c.Clock == nil || startMs == 0 {
		return
	}
	c.Metrics.RecordLLMRequest(status, float64(c.Clock.NowMs()-startMs)/1000)
}

func (c *Client) sleepBeforeRetry(onStream func(StreamNote), attempt int, retryAfterMs *int64, reason string) {
	delay := c.Policy.ComputeDelayMs(attempt, retryAfterMs, c.Clock)
	onStream(StreamNote{
		Phase:  "llm.request.retry",
		Detail: fmt.Sprintf("%s; waiting %dms before retry", reason, delay),
	})
	time.Sleep(time.Duration(delay) * time.Millisecond)
}

func shouldRetryStatus(status int) bool {
	return status == 429 || (status >= 500 && status <= 599)
}

func shouldRetryTransport(err error) bool {
	// net/http surfaces timeouts, connection refusals, and malformed
	// requests as plain errors with no status code attached; any error
	// reaching this point (no response obtained at all) is retryable.
	return err != nil
}

func parseRetryAfterMs(raw string) *int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	ms := seconds * 1000
	return &ms
}

func truncateForLog(value string) string {
	const limit = 400
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
