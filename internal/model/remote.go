package model

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

// RemoteInfo is returned by an inference server's /info endpoint.
type RemoteInfo struct {
	Name         string `json:"name"`
	NFeatures    int    `json:"n_features"`
	PredictProba bool   `json:"predict_proba"`
}

type remoteRequest struct {
	Values [][]float64 `json:"values"`
}

type remoteResponse struct {
	Predictions   []int       `json:"predictions"`
	Probabilities [][]float64 `json:"probabilities"`
}

type remoteClient struct {
	client  *http.Client
	baseURL string
}

// NewRemote asks the inference server at baseURL what it serves and returns
// a Model whose capability matches the advertised one.
func NewRemote(ctx context.Context, baseURL string, timeout time.Duration) (*Model, error) {
	rc := &remoteClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}

	info, err := rc.info(ctx)
	if err != nil {
		return nil, err
	}
	name := info.Name
	if name == "" {
		name = rc.baseURL
	}
	if info.PredictProba {
		return New(name, info.NFeatures, &remoteProbClient{rc}), nil
	}
	return New(name, info.NFeatures, rc), nil
}

func (c *remoteClient) info(ctx context.Context) (RemoteInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/info", nil)
	if err != nil {
		return RemoteInfo{}, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return RemoteInfo{}, fmt.Errorf("failed to get model info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return RemoteInfo{}, fmt.Errorf("inference server returned error: %s", resp.Status)
	}

	var info RemoteInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return RemoteInfo{}, fmt.Errorf("failed to decode model info: %w", err)
	}
	return info, nil
}

func (c *remoteClient) infer(ctx context.Context, rows [][]float64) (*remoteResponse, error) {
	body, err := json.Marshal(remoteRequest{Values: rows})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("inference server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

func (c *remoteClient) Predict(ctx context.Context, rows [][]float64) ([]int, error) {
	out, err := c.infer(ctx, rows)
	if err != nil {
		return nil, err
	}
	return out.Predictions, nil
}

type remoteProbClient struct {
	*remoteClient
}

// PredictWithProba reads the label and the probability from one response.
func (c *remoteProbClient) PredictWithProba(ctx context.Context, rows [][]float64) ([]int, [][]float64, error) {
	out, err := c.infer(ctx, rows)
	if err != nil {
		return nil, nil, err
	}
	return out.Predictions, out.Probabilities, nil
}

func (c *remoteProbClient) PredictProba(ctx context.Context, rows [][]float64) ([][]float64, error) {
	out, err := c.infer(ctx, rows)
	if err != nil {
		return nil, err
	}
	return out.Probabilities, nil
}
