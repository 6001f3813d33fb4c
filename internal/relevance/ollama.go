package relevance

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

// LLMClient is the model interface the relevance filter consults.
type LLMClient interface {
	// IsAvailable checks whether the model backend is reachable
	IsAvailable(ctx context.Context) (bool, error)

	// CheckRelevance asks the model whether the story is on topic. It returns
	// the decision and the raw model response; an ambiguous response is an error.
	CheckRelevance(ctx context.Context, title, description string) (bool, string, error)

	// Model returns the model identifier recorded in validation logs
	Model() string
}

// ollamaClient implements LLMClient against the Ollama HTTP API
type ollamaClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllamaClient creates a new Ollama relevance client
func NewOllamaClient(baseURL string, model string, timeout time.Duration) LLMClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434" // Default Ollama endpoint
	}
	if model == "" {
		model = "llama3.2:3b" // Default lightweight model
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &ollamaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *ollamaClient) Model() string {
	return c.model
}

// IsAvailable checks if Ollama is running and accessible
func (c *ollamaClient) IsAvailable(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("ollama not accessible: %w", err)
	}
	defer resp.Body.Close()

	return resp.StatusCode == 200, nil
}

// CheckRelevance asks the model for a YES/NO relevance verdict on a story.
func (c *ollamaClient) CheckRelevance(ctx context.Context, title, description string) (bool, string, error) {
	prompt := fmt.Sprintf(`You are filtering news for a San Jose Sharks hockey news site.

Title: %s
Description: %s

Is this story about the San Jose Sharks organization, its players, coaches, prospects, or the Barracuda affiliate? Answer with exactly YES or NO.`, title, truncate(description, 500))

	response, err := c.generateCompletion(ctx, prompt)
	if err != nil {
		return false, "", err
	}

	answer := strings.ToUpper(strings.TrimSpace(response))
	switch {
	case strings.HasPrefix(answer, "YES"):
		return true, response, nil
	case strings.HasPrefix(answer, "NO"):
		return false, response, nil
	default:
		return false, response, fmt.Errorf("ambiguous model response: %q", response)
	}
}

// generateCompletion makes a completion request to Ollama
func (c *ollamaClient) generateCompletion(ctx context.Context, prompt string) (string, error) {
	requestBody := map[string]interface{}{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]interface{}{
			"temperature": 0.1, // Low temperature for a stable verdict
			"num_predict": 10,  // One-word answer expected
		},
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/generate", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama request failed: %d - %s", resp.StatusCode, string(body))
	}

	var response struct {
		Response string `json:"response"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", err
	}

	return response.Response, nil
}

func truncate(content string, maxChars int) string {
	if len(content) <= maxChars {
		return content
	}
	return content[:maxChars] + "..."
}
