package solana

import (
	"fmt"

	solana "github.com/gagliardetto/solana-go"

	"github.com/truesightdao/tokenops/internal/crypto"
)

// LoadWallet resolves the buyback wallet's private key from the given secret
// source and parses it from base58.
func LoadWallet(cfg crypto.SecretConfig) (solana.PrivateKey, error) {
	b58, err := crypto.LoadSecret(cfg)
	if err != nil {
		return nil, fmt.Errorf("solana: resolve wallet key: %w", err)
	}
	key, err := solana.PrivateKeyFromBase58(b58)
	if err != nil {
		return nil, fmt.Errorf("solana: parse wallet key: %w", err)
	}
	return key, nil
}
