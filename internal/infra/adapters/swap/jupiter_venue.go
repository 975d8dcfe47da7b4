package swap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/pranit-garg/Dispatch/internal/domain"
	"github.com/pranit-garg/Dispatch/internal/domain/ports/adapter"
)

var _ adapter.SwapVenue = (*JupiterVenue)(nil)

// JupiterVenue implements adapter.SwapVenue against a Jupiter-style
// quote API: GET {base}/quote?inputMint=&outputMint=&amount=&slippageBps=.
type JupiterVenue struct {
	baseURL     string
	inputMint   string
	outputMint  string
	slippageBps int
	client      *http.Client
}

func NewJupiterVenue(baseURL, inputMint, outputMint string, slippageBps int) (*JupiterVenue, error) {
	if baseURL == "" {
		return nil, errors.New("venue base url empty")
	}
	if inputMint == "" || outputMint == "" {
		return nil, errors.New("swap mints not configured")
	}
	if slippageBps <= 0 {
		slippageBps = 50
	}
	return &JupiterVenue{
		baseURL:     baseURL,
		inputMint:   inputMint,
		outputMint:  outputMint,
		slippageBps: slippageBps,
		client:      &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (v *JupiterVenue) Name() string { return "jupiter" }

type quoteResponse struct {
	OutAmount   string `json:"outAmount"`
	TxSignature string `json:"txSignature"`
}

func (v *JupiterVenue) Swap(ctx context.Context, amount sdkmath.Int) (adapter.SwapQuote, error) {
	u, err := url.Parse(v.baseURL + "/quote")
	if err != nil {
		return adapter.SwapQuote{}, err
	}
	q := u.Query()
	q.Set("inputMint", v.inputMint)
	q.Set("outputMint", v.outputMint)
	q.Set("amount", amount.String())
	q.Set("slippageBps", strconv.Itoa(v.slippageBps))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return adapter.SwapQuote{}, err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return adapter.SwapQuote{}, fmt.Errorf("%w: %v", domain.ErrSettlementVenueUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return adapter.SwapQuote{}, fmt.Errorf("%w: quote status %d", domain.ErrSettlementVenueUnavailable, resp.StatusCode)
	}

	var body quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return adapter.SwapQuote{}, fmt.Errorf("%w: decode quote: %v", domain.ErrSettlementVenueUnavailable, err)
	}
	out := sdkmath.ZeroInt()
	if body.OutAmount != "" {
		parsed, ok := sdkmath.NewIntFromString(body.OutAmount)
		if !ok || parsed.IsNegative() {
			return adapter.SwapQuote{}, fmt.Errorf("%w: bad outAmount %q", domain.ErrSettlementVenueUnavailable, body.OutAmount)
		}
		out = parsed
	}
	return adapter.SwapQuote{InAmount: amount, OutAmount: out, TxRef: body.TxSignature}, nil
}
