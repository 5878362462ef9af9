package ledger

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	solana "github.com/gagliardetto/solana-go"
)

// AttestationMessage is the domain-tagged payload a provider signs to
// confirm service delivery. Binding the protocol name, operation kind,
// and network into the signed bytes blocks replay of the signature
// against another claim, another operation, or another chain.
func AttestationMessage(network string, commitment [32]byte) []byte {
	return []byte("x402-insurance|confirm_service|" + network + "|" + hex.EncodeToString(commitment[:]))
}

// SignAttestation produces the provider's confirm_service attestation.
func SignAttestation(key solana.PrivateKey, network string, commitment [32]byte) ([64]byte, error) {
	var out [64]byte
	sig, err := key.Sign(AttestationMessage(network, commitment))
	if err != nil {
		return out, fmt.Errorf("failed to sign attestation: %w", err)
	}
	copy(out[:], sig[:])
	return out, nil
}

// VerifyAttestation checks a confirm_service attestation against the
// provider's public key.
func VerifyAttestation(provider solana.PublicKey, network string, commitment [32]byte, attestation [64]byte) bool {
	return ed25519.Verify(ed25519.PublicKey(provider.Bytes()), AttestationMessage(network, commitment), attestation[:])
}
