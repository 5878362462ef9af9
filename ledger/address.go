package ledger

import (
	"fmt"

	solana "github.com/gagliardetto/solana-go"
)

// DefaultProgramID is the registered address of the insurance ledger
// program. Deployments may override it through each component's config.
var DefaultProgramID = solana.MustPublicKeyFromBase58("DMahL9qujZiirzLXKFvJxHhsNxG9uXh1yi1EnUCYgH7w")

// Seed prefixes for program-derived addresses.
var (
	configSeed       = []byte("config")
	providerBondSeed = []byte("provider_bond")
	claimSeed        = []byte("claim")
	vaultSeed        = []byte("vault")
)

// ConfigAddress derives the singleton Config address.
func ConfigAddress(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress([][]byte{configSeed}, programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("failed to derive config address: %w", err)
	}
	return addr, bump, nil
}

// ProviderBondAddress derives the bond address for a provider.
func ProviderBondAddress(programID, provider solana.PublicKey) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress([][]byte{providerBondSeed, provider.Bytes()}, programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("failed to derive provider bond address: %w", err)
	}
	return addr, bump, nil
}

// ClaimAddress derives the claim address for a request commitment.
func ClaimAddress(programID solana.PublicKey, commitment [32]byte) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress([][]byte{claimSeed, commitment[:]}, programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("failed to derive claim address: %w", err)
	}
	return addr, bump, nil
}

// VaultAddress derives the pooled custody vault address.
func VaultAddress(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress([][]byte{vaultSeed}, programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("failed to derive vault address: %w", err)
	}
	return addr, bump, nil
}
