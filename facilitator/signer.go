package facilitator

import (
	"fmt"

	solana "github.com/gagliardetto/solana-go"
)

// cosignTransaction appends the fee payer's signature to a partially
// signed transaction without disturbing the client's existing
// signatures. Signatures occupy slots in signer order, so the slice is
// grown to cover the fee payer's index before writing.
func cosignTransaction(key solana.PrivateKey, tx *solana.Transaction) error {
	messageBytes, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to serialize message for signing: %w", err)
	}

	signature, err := key.Sign(messageBytes)
	if err != nil {
		return fmt.Errorf("failed to sign message: %w", err)
	}

	index, err := tx.GetAccountIndex(key.PublicKey())
	if err != nil {
		return fmt.Errorf("fee payer %s is not an account of the transaction: %w", key.PublicKey(), err)
	}
	for int(index) >= len(tx.Signatures) {
		tx.Signatures = append(tx.Signatures, solana.Signature{})
	}
	tx.Signatures[index] = signature
	return nil
}
