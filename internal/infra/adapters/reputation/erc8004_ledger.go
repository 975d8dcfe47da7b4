package reputation

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pranit-garg/Dispatch/internal/domain/ports/adapter"

	"golang.org/x/crypto/sha3"
)

// agentIDBytes is the ledger's account-id width: 128 bits.
const agentIDBytes = 16

// AgentID derives the ledger-specific account id from a worker pubkey:
// keccak256 of the pubkey truncated to the ledger's id width. One-way
// and deterministic, so both read and write paths land on the same
// account without a directory.
func AgentID(workerPubkey string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(workerPubkey))
	return hex.EncodeToString(h.Sum(nil)[:agentIDBytes])
}

var _ adapter.ReputationLedger = (*ERC8004Ledger)(nil)

// ERC8004Ledger posts job-outcome feedback to and reads aggregate
// scores from the external reputation registry's HTTP gateway.
type ERC8004Ledger struct {
	baseURL string
	client  *http.Client
}

func NewERC8004Ledger(baseURL string) (*ERC8004Ledger, error) {
	if baseURL == "" {
		return nil, errors.New("reputation ledger url empty")
	}
	return &ERC8004Ledger{baseURL: baseURL, client: &http.Client{Timeout: 15 * time.Second}}, nil
}

type summaryResponse struct {
	Count    int64 `json:"count"`
	RawValue int64 `json:"raw_value"`
	Decimals int   `json:"decimals"`
}

func (l *ERC8004Ledger) GetSummary(ctx context.Context, workerPubkey string) (adapter.ReputationSummary, error) {
	u := l.baseURL + "/agents/" + AgentID(workerPubkey) + "/summary"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return adapter.ReputationSummary{}, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return adapter.ReputationSummary{}, fmt.Errorf("reputation read: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return adapter.ReputationSummary{}, nil // no history yet
	}
	if resp.StatusCode != http.StatusOK {
		return adapter.ReputationSummary{}, fmt.Errorf("reputation read: status %d", resp.StatusCode)
	}
	var body summaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return adapter.ReputationSummary{}, fmt.Errorf("reputation read: decode: %w", err)
	}
	return adapter.ReputationSummary{Count: body.Count, RawValue: body.RawValue, Decimals: body.Decimals}, nil
}

type feedbackRequest struct {
	AgentID string `json:"agent_id"`
	Score   int    `json:"score"`
	JobType string `json:"job_type"`
	JobID   string `json:"job_id"`
}

type feedbackResponse struct {
	TxRef string `json:"tx_ref"`
}

func (l *ERC8004Ledger) PostFeedback(ctx context.Context, fb adapter.Feedback) (string, error) {
	b, err := json.Marshal(feedbackRequest{
		AgentID: AgentID(fb.WorkerPubkey),
		Score:   fb.Score,
		JobType: fb.JobType,
		JobID:   fb.JobID,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/feedback", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("reputation post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reputation post: status %d", resp.StatusCode)
	}
	var body feedbackResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("reputation post: decode: %w", err)
	}
	return body.TxRef, nil
}
