// Package solana executes the DAO's token buyback on Solana. The swap route
// is built by a Jupiter-compatible aggregator API; the transaction is signed
// locally and submitted over RPC.
package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// USDCMint is the mainnet USDC mint address.
const USDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

// SwapClient swaps USDC for the DAO token via a Jupiter-compatible API.
type SwapClient struct {
	base   string
	rpc    *rpc.Client
	owner  solana.PrivateKey
	commit rpc.CommitmentType
	http   *http.Client
}

// Quote is the aggregator's route quote for a swap.
type Quote struct {
	InputMint      string  `json:"inputMint"`
	OutputMint     string  `json:"outputMint"`
	InAmount       string  `json:"inAmount"`
	OutAmount      string  `json:"outAmount"`
	OtherAmount    string  `json:"otherAmountThreshold"`
	SlippageBps    int     `json:"slippageBps"`
	RoutePlan      any     `json:"routePlan"`
	PriceImpactPct float64 `json:"priceImpactPct"`
}

// NewSwapClient creates a SwapClient. base is the aggregator API root,
// rpcURL the Solana RPC endpoint, commit one of "processed", "confirmed",
// "finalized" (anything else selects confirmed).
func NewSwapClient(rpcURL, base string, owner solana.PrivateKey, commit string) *SwapClient {
	c := rpc.CommitmentConfirmed
	switch commit {
	case "processed":
		c = rpc.CommitmentProcessed
	case "finalized":
		c = rpc.CommitmentFinalized
	}
	return &SwapClient{
		base:   base,
		rpc:    rpc.New(rpcURL),
		owner:  owner,
		commit: c,
		http:   &http.Client{Timeout: 8 * time.Second},
	}
}

// Owner returns the wallet public key used for swaps.
func (s *SwapClient) Owner() solana.PublicKey {
	return s.owner.PublicKey()
}

// GetQuote fetches a swap route. amount is in the input mint's smallest
// units (1e6 per USDC).
func (s *SwapClient) GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*Quote, error) {
	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", strconv.FormatUint(amount, 10))
	q.Set("slippageBps", strconv.Itoa(slippageBps))
	q.Set("onlyDirectRoutes", "false")
	u := s.base + "/v6/quote?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("solana: create quote request: %w", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("solana: quote request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("solana: quote status %d", resp.StatusCode)
	}

	var out Quote
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("solana: decode quote: %w", err)
	}
	return &out, nil
}

// ExecuteSwap asks the aggregator for a ready-to-sign transaction for the
// quoted route, signs it with the wallet, and submits it over RPC.
func (s *SwapClient) ExecuteSwap(ctx context.Context, quote *Quote) (solana.Signature, error) {
	var sig solana.Signature

	payload := map[string]any{
		"userPublicKey":             s.owner.PublicKey().String(),
		"wrapAndUnwrapSol":          true,
		"asLegacyTransaction":       false,
		"useTokenLedger":            false,
		"prioritizationFeeLamports": 0,
		"quoteResponse":             quote,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return sig, fmt.Errorf("solana: marshal swap payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/v6/swap", bytes.NewReader(body))
	if err != nil {
		return sig, fmt.Errorf("solana: create swap request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return sig, fmt.Errorf("solana: swap request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return sig, fmt.Errorf("solana: swap status %d", resp.StatusCode)
	}

	var sr struct {
		SwapTransaction string `json:"swapTransaction"` // base64-encoded unsigned tx
	}
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return sig, fmt.Errorf("solana: decode swap response: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(sr.SwapTransaction)
	if err != nil {
		return sig, fmt.Errorf("solana: decode tx: %w", err)
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return sig, fmt.Errorf("solana: unmarshal tx: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(s.owner.PublicKey()) {
			return &s.owner
		}
		return nil
	})
	if err != nil {
		return sig, fmt.Errorf("solana: sign tx: %w", err)
	}

	sig, err = s.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: s.commit,
	})
	if err != nil {
		return sig, fmt.Errorf("solana: send tx: %w", err)
	}
	return sig, nil
}
