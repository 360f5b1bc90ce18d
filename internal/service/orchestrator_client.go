package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// bronzeLandingFlow is the orchestrator flow that picks up freshly landed
// Bronze rows.
const bronzeLandingFlow = "bronze-landing"

// OrchestratorClient notifies the downstream pipeline orchestrator that a
// landing run has new data to process.
type OrchestratorClient struct {
	baseURL string
	client  *http.Client
}

func NewOrchestratorClient(baseURL string) *OrchestratorClient {
	return &OrchestratorClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type triggerRunRequest struct {
	FlowName       string `json:"flowName"`
	TenantID       string `json:"tenantId"`
	SourceName     string `json:"sourceName"`
	StorageLocator string `json:"storageLocator,omitempty"`
}

// RunStatus describes a pipeline run as reported by the orchestrator.
type RunStatus struct {
	RunID      string     `json:"runId"`
	Status     string     `json:"status"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// TriggerRun asks the orchestrator to start the landing flow and returns the
// run id it assigned. The caller tracks that id but never waits on the run.
func (c *OrchestratorClient) TriggerRun(ctx context.Context, tenantID, source, locator string) (string, error) {
	payload := triggerRunRequest{
		FlowName:       bronzeLandingFlow,
		TenantID:       tenantID,
		SourceName:     source,
		StorageLocator: locator,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode trigger request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/trigger", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build trigger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("orchestrator unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("read trigger response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("orchestrator trigger returned %d", resp.StatusCode)
	}
	var status RunStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return "", fmt.Errorf("decode trigger response: %w", err)
	}
	return status.RunID, nil
}

func (c *OrchestratorClient) GetRun(ctx context.Context, runID string) (*RunStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/runs/"+runID, nil)
	if err != nil {
		return nil, fmt.Errorf("build run status request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("orchestrator unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("orchestrator run lookup returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, fmt.Errorf("read run status response: %w", err)
	}
	var status RunStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("decode run status response: %w", err)
	}
	return &status, nil
}
