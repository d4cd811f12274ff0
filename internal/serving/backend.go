// Package serving hosts the quality-estimation endpoint inside the
// model container. A front server speaks the hosting platform's
// ping/invocations contract and delegates scoring to the model process
// running next to it.
package serving

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// Pair is one source/translation pair to score.
type Pair struct {
	Src string `json:"src"`
	MT  string `json:"mt"`
}

// Scorer produces one quality score per pair, in input order.
type Scorer interface {
	Score(ctx context.Context, pairs []Pair) ([]float64, error)
}

// Backend scores pairs against the model process over HTTP.
type Backend struct {
	client *resty.Client
}

// NewBackend creates a Backend talking to the model process at
// baseURL.
func NewBackend(baseURL string) *Backend {
	return &Backend{client: resty.New().SetBaseURL(baseURL)}
}

// Ready reports whether the model process answers its health check.
func (b *Backend) Ready(ctx context.Context) bool {
	resp, err := b.client.R().SetContext(ctx).Get("/ping")
	return err == nil && !resp.IsError()
}

// Score posts the pairs to the model process and returns its scores.
func (b *Backend) Score(ctx context.Context, pairs []Pair) ([]float64, error) {
	resp, err := b.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{"data": pairs}).
		Post("/score")
	if err != nil {
		return nil, fmt.Errorf("failed to call model process: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("model process returned %s: %s", resp.Status(), resp.String())
	}

	raw := gjson.GetBytes(resp.Body(), "scores")
	if !raw.IsArray() {
		return nil, fmt.Errorf("unexpected response shape from model process")
	}
	scores := make([]float64, 0, len(pairs))
	for _, s := range raw.Array() {
		scores = append(scores, s.Float())
	}
	if len(scores) != len(pairs) {
		return nil, fmt.Errorf("model process returned %d scores for %d pairs", len(scores), len(pairs))
	}
	return scores, nil
}
