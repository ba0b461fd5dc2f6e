// Package store is the HTTP adapter for the remote compliance data store.
//
// Every batch fetch honors the executor contract: one result per input
// element in input order, or a single error for the whole batch. The adapter
// performs no retries; failures propagate unchanged to the access layer.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	pilotsBatchEndpoint  = "/v1/pilots/batch"
	checksBatchEndpoint  = "/v1/certification-checks/batch"
	recordsBatchEndpoint = "/v1/compliance-records/batch"
	summaryEndpoint      = "/v1/compliance/summary"
)

// Client talks to the compliance store's REST API
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  zerolog.Logger
}

// NewClient creates a store client
func NewClient(baseURL, apiKey string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "store").Logger(),
	}
}

// FetchPilots returns one pilot per id, in the order the ids were given
func (c *Client) FetchPilots(ctx context.Context, ids []string) ([]Pilot, error) {
	var fetched []Pilot
	if err := c.post(ctx, pilotsBatchEndpoint, map[string][]string{"ids": ids}, &fetched); err != nil {
		return nil, err
	}

	byID := make(map[string]Pilot, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	pilots := make([]Pilot, len(ids))
	for i, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("pilot %s missing from batch response", id)
		}
		pilots[i] = p
	}
	return pilots, nil
}

// FetchPilotChecks returns each pilot's certification checks, one slice per
// pilot id in input order. A pilot with no checks yields an empty slice.
func (c *Client) FetchPilotChecks(ctx context.Context, pilotIDs []string) ([][]CertificationCheck, error) {
	var fetched []pilotChecks
	if err := c.post(ctx, checksBatchEndpoint, map[string][]string{"pilotIds": pilotIDs}, &fetched); err != nil {
		return nil, err
	}

	byPilot := make(map[string][]CertificationCheck, len(fetched))
	for _, pc := range fetched {
		byPilot[pc.PilotID] = pc.Checks
	}

	checks := make([][]CertificationCheck, len(pilotIDs))
	for i, id := range pilotIDs {
		if cs, ok := byPilot[id]; ok {
			checks[i] = cs
		} else {
			checks[i] = []CertificationCheck{}
		}
	}
	return checks, nil
}

// FetchComplianceRecords returns each pilot's compliance records, one slice
// per pilot id in input order
func (c *Client) FetchComplianceRecords(ctx context.Context, pilotIDs []string) ([][]ComplianceRecord, error) {
	var fetched []pilotRecords
	if err := c.post(ctx, recordsBatchEndpoint, map[string][]string{"pilotIds": pilotIDs}, &fetched); err != nil {
		return nil, err
	}

	byPilot := make(map[string][]ComplianceRecord, len(fetched))
	for _, pr := range fetched {
		byPilot[pr.PilotID] = pr.Records
	}

	records := make([][]ComplianceRecord, len(pilotIDs))
	for i, id := range pilotIDs {
		if rs, ok := byPilot[id]; ok {
			records[i] = rs
		} else {
			records[i] = []ComplianceRecord{}
		}
	}
	return records, nil
}

// FetchComplianceSummary returns the fleet-wide compliance rollup
func (c *Client) FetchComplianceSummary(ctx context.Context) (ComplianceSummary, error) {
	var summary ComplianceSummary
	if err := c.get(ctx, summaryEndpoint, &summary); err != nil {
		return ComplianceSummary{}, err
	}
	return summary, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("store request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Debug().
			Int("status", resp.StatusCode).
			Str("path", req.URL.Path).
			Msg("store request rejected")
		return fmt.Errorf("store returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
