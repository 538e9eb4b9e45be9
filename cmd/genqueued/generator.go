package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/parkerroan/genqueue"
)

const maxImageBytes = 32 << 20

// httpGenerator posts prompts to the generation backend and returns the
// response body.
type httpGenerator struct {
	url    string
	client *http.Client
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

func (g *httpGenerator) Generate(ctx context.Context, item genqueue.QueueItem) ([]byte, error) {
	body, err := json.Marshal(generateRequest{Prompt: item.Payload})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call backend: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("read backend response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend returned %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	return data, nil
}
