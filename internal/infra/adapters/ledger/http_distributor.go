package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/pranit-garg/Dispatch/internal/domain/ports/adapter"
)

var _ adapter.Distributor = (*HTTPDistributor)(nil)

// HTTPDistributor talks to the external distribution service that
// builds, signs and sends the on-ledger transfer transactions. The
// coordinator only ever sees the resulting transaction references.
type HTTPDistributor struct {
	baseURL      string
	treasuryAddr string
	client       *http.Client
}

func NewHTTPDistributor(baseURL, treasuryAddr string) (*HTTPDistributor, error) {
	if baseURL == "" {
		return nil, errors.New("distributor base url empty")
	}
	if treasuryAddr == "" {
		return nil, errors.New("treasury address empty")
	}
	return &HTTPDistributor{
		baseURL:      baseURL,
		treasuryAddr: treasuryAddr,
		client:       &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type transferRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
	Burn   bool   `json:"burn,omitempty"`
}

type transferResponse struct {
	TxRef string `json:"tx_ref"`
}

func (d *HTTPDistributor) TransferPayout(ctx context.Context, workerAddress string, amount sdkmath.Int) (string, error) {
	return d.post(ctx, transferRequest{To: workerAddress, Amount: amount.String()})
}

func (d *HTTPDistributor) BurnFee(ctx context.Context, amount sdkmath.Int) (string, error) {
	return d.post(ctx, transferRequest{To: d.treasuryAddr, Amount: amount.String(), Burn: true})
}

func (d *HTTPDistributor) post(ctx context.Context, tr transferRequest) (string, error) {
	b, err := json.Marshal(tr)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/transfer", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("distribute: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("distribute: status %d", resp.StatusCode)
	}
	var body transferResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("distribute: decode: %w", err)
	}
	if body.TxRef == "" {
		return "", errors.New("distribute: empty tx ref")
	}
	return body.TxRef, nil
}
