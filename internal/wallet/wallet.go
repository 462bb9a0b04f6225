package wallet

import (
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"

	"github.com/solwatch/buyops/types"
)

// Provider resolves the default funding wallet from injected configuration.
type Provider struct {
	wallet types.Wallet
}

// New validates the configured wallet and builds the provider.
func New(pubkey, alias, strategy string) (*Provider, error) {
	if pubkey == "" {
		return nil, fmt.Errorf("WALLET_PUBKEY is required")
	}

	decoded, err := base58.Decode(pubkey)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet pubkey %q: %w", pubkey, err)
	}
	if len(decoded) != 32 {
		return nil, fmt.Errorf("wallet pubkey %q decodes to %d bytes, want 32", pubkey, len(decoded))
	}

	if alias == "" {
		alias = "default"
	}

	w := types.Wallet{
		WalletID: pubkey[:8],
		Alias:    alias,
		Pubkey:   pubkey,
		Strategy: strategy,
	}

	log.Info().
		Str("alias", w.Alias).
		Str("pubkey", pubkey[:4]+"…"+pubkey[len(pubkey)-4:]).
		Str("strategy", strategy).
		Msg("💳 Funding wallet resolved")

	return &Provider{wallet: w}, nil
}

// GetDefaultFundingWallet returns the configured funding wallet.
func (p *Provider) GetDefaultFundingWallet() types.Wallet {
	return p.wallet
}
