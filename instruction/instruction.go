// Package instruction defines the binary operation encodings of the
// insurance ledger program: fixed-width little-endian layouts keyed by an
// 8-byte discriminator per operation. Discriminators follow the Anchor
// convention, sha256("global:<operation_name>")[:8], so they are stable
// and non-colliding without a central registry.
package instruction

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"
)

// Opcode is the 8-byte discriminator that selects an operation.
type Opcode [8]byte

func opcode(name string) Opcode {
	h := sha256.Sum256([]byte("global:" + name))
	var op Opcode
	copy(op[:], h[:8])
	return op
}

// Operation discriminators.
var (
	OpInitialize        = opcode("initialize")
	OpDepositBond       = opcode("deposit_bond")
	OpPurchaseInsurance = opcode("purchase_insurance")
	OpConfirmService    = opcode("confirm_service")
	OpClaimInsurance    = opcode("claim_insurance")
	OpWithdrawBond      = opcode("withdraw_bond")
	OpLiquidateProvider = opcode("liquidate_provider")
)

// OperationNames lists the program's operation surface, as advertised in
// the facilitator's capability document.
var OperationNames = []string{
	"initialize",
	"deposit_bond",
	"purchase_insurance",
	"confirm_service",
	"claim_insurance",
	"withdraw_bond",
	"liquidate_provider",
}

// PurchaseInsuranceLen is the minimum byte length of a purchase_insurance
// payload: 8-byte opcode + 32-byte commitment + 8-byte amount + 8-byte
// timeout.
const PurchaseInsuranceLen = 8 + 32 + 8 + 8

// Initialize creates the singleton Config.
type Initialize struct {
	PenaltyRateBps        uint16
	DefaultTimeoutSeconds uint64
	GracePeriodSeconds    uint64
}

// DepositBond moves collateral from the provider into the vault.
type DepositBond struct {
	Amount uint64
}

// PurchaseInsurance pays the provider and locks bond as insurance.
type PurchaseInsurance struct {
	RequestCommitment [32]byte
	PaymentAmount     uint64
	TimeoutMinutes    uint64
}

// ConfirmService releases the locked bond after delivery. Attestation is
// the provider's ed25519 signature over the domain-tagged commitment.
type ConfirmService struct {
	RequestCommitment [32]byte
	Attestation       [64]byte
}

// ClaimInsurance refunds the client from the provider's locked bond after
// the deadline.
type ClaimInsurance struct {
	RequestCommitment [32]byte
}

// WithdrawBond returns unlocked collateral to the provider.
type WithdrawBond struct {
	Amount uint64
}

// LiquidateProvider sweeps an undercollateralized provider's unlocked
// bond to the treasury. Carries no arguments.
type LiquidateProvider struct{}

// Encode serializes an operation: discriminator followed by the Borsh
// encoding of its fields.
func Encode(op interface{}) ([]byte, error) {
	var disc Opcode
	switch op.(type) {
	case Initialize, *Initialize:
		disc = OpInitialize
	case DepositBond, *DepositBond:
		disc = OpDepositBond
	case PurchaseInsurance, *PurchaseInsurance:
		disc = OpPurchaseInsurance
	case ConfirmService, *ConfirmService:
		disc = OpConfirmService
	case ClaimInsurance, *ClaimInsurance:
		disc = OpClaimInsurance
	case WithdrawBond, *WithdrawBond:
		disc = OpWithdrawBond
	case LiquidateProvider, *LiquidateProvider:
		disc = OpLiquidateProvider
	default:
		return nil, fmt.Errorf("unknown operation type %T", op)
	}

	buf := new(bytes.Buffer)
	buf.Write(disc[:])
	if err := bin.NewBorshEncoder(buf).Encode(op); err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", op, err)
	}
	return buf.Bytes(), nil
}

// Decode parses an operation payload. It is strict about the minimum
// length of each layout but tolerant of trailing bytes.
func Decode(data []byte) (interface{}, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("operation data too short: need at least 8 bytes, got %d", len(data))
	}

	var disc Opcode
	copy(disc[:], data[:8])
	dec := bin.NewBorshDecoder(data[8:])

	switch disc {
	case OpInitialize:
		var op Initialize
		if err := dec.Decode(&op); err != nil {
			return nil, fmt.Errorf("malformed initialize payload: %w", err)
		}
		return &op, nil
	case OpDepositBond:
		var op DepositBond
		if err := dec.Decode(&op); err != nil {
			return nil, fmt.Errorf("malformed deposit_bond payload: %w", err)
		}
		return &op, nil
	case OpPurchaseInsurance:
		if len(data) < PurchaseInsuranceLen {
			return nil, fmt.Errorf("malformed purchase_insurance payload: need %d bytes, got %d", PurchaseInsuranceLen, len(data))
		}
		var op PurchaseInsurance
		if err := dec.Decode(&op); err != nil {
			return nil, fmt.Errorf("malformed purchase_insurance payload: %w", err)
		}
		return &op, nil
	case OpConfirmService:
		var op ConfirmService
		if err := dec.Decode(&op); err != nil {
			return nil, fmt.Errorf("malformed confirm_service payload: %w", err)
		}
		return &op, nil
	case OpClaimInsurance:
		var op ClaimInsurance
		if err := dec.Decode(&op); err != nil {
			return nil, fmt.Errorf("malformed claim_insurance payload: %w", err)
		}
		return &op, nil
	case OpWithdrawBond:
		var op WithdrawBond
		if err := dec.Decode(&op); err != nil {
			return nil, fmt.Errorf("malformed withdraw_bond payload: %w", err)
		}
		return &op, nil
	case OpLiquidateProvider:
		return &LiquidateProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown operation discriminator %x", disc)
	}
}

// IsPurchaseInsurance reports whether the payload starts with the
// purchase_insurance discriminator, without decoding the rest.
func IsPurchaseInsurance(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	var disc Opcode
	copy(disc[:], data[:8])
	return disc == OpPurchaseInsurance
}
