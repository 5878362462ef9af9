package ledger

import (
	"math"

	solana "github.com/gagliardetto/solana-go"
)

// BpsDenominator is the basis-point scale used by all rate arithmetic.
const BpsDenominator = 10000

// ClaimStatus is the lifecycle state of an insurance claim. Transitions
// are monotonic and terminal: Pending moves exactly once, to Confirmed or
// Claimed, and never back.
type ClaimStatus uint8

const (
	ClaimPending ClaimStatus = iota
	ClaimConfirmed
	ClaimClaimed
)

func (s ClaimStatus) String() string {
	switch s {
	case ClaimPending:
		return "Pending"
	case ClaimConfirmed:
		return "Confirmed"
	case ClaimClaimed:
		return "Claimed"
	default:
		return "Unknown"
	}
}

// Config is the singleton protocol configuration, immutable after
// initialize.
type Config struct {
	PlatformTreasury      solana.PublicKey
	PenaltyRateBps        uint16
	DefaultTimeoutSeconds uint64
	GracePeriodSeconds    uint64
	Authority             solana.PublicKey
	Bump                  uint8
}

// ProviderBond tracks one provider's collateral. Invariant:
// 0 <= LockedBond <= TotalBond.
type ProviderBond struct {
	Provider   solana.PublicKey
	TotalBond  uint64
	LockedBond uint64
	MinBond    uint64
	// IsLiquidated is terminal: deposits, purchases, and withdrawals are
	// permanently blocked once set.
	IsLiquidated bool
	// UndercollateralizedSince is the unix second the provider dropped
	// below MinBond, or 0 while healthy.
	UndercollateralizedSince int64
	Bump                     uint8
}

// Available returns the unlocked portion of the bond.
func (b *ProviderBond) Available() uint64 {
	return b.TotalBond - b.LockedBond
}

// InsuranceClaim is the permanent audit record of one insured payment,
// keyed uniquely by its request commitment.
type InsuranceClaim struct {
	RequestCommitment [32]byte
	Client            solana.PublicKey
	Provider          solana.PublicKey
	PaymentAmount     uint64
	LockedAmount      uint64
	Deadline          int64 // unix seconds
	Status            ClaimStatus
	Bump              uint8
}

// LockedAmount computes the bond lock for a payment:
// floor(paymentAmount * (10000 + penaltyRateBps) / 10000). All arithmetic
// is integer; overflow is an error, never wraparound.
func LockedAmount(paymentAmount uint64, penaltyRateBps uint16) (uint64, error) {
	multiplier := uint64(BpsDenominator) + uint64(penaltyRateBps)
	if paymentAmount > math.MaxUint64/multiplier {
		return 0, ErrArithmeticOverflow
	}
	return paymentAmount * multiplier / BpsDenominator, nil
}
