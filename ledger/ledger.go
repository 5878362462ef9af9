// Package ledger implements the escrow/insurance state machine: bond
// accounting, payment-locking arithmetic, deadline-gated claims, and
// provider liquidation. The in-memory Ledger doubles as a hermetic
// execution substrate for tests and local development; account layouts
// and addresses match what an on-chain deployment would expose, so the
// facilitator's RPC-backed readers decode the same bytes.
package ledger

import (
	"context"
	"sync"
	"time"

	solana "github.com/gagliardetto/solana-go"
)

// Ledger is the authoritative escrow state machine. A single mutex
// serializes mutations, standing in for the substrate's per-account
// atomic read-modify-write guarantee; no finer-grained locking is
// required for correctness.
type Ledger struct {
	mu        sync.Mutex
	programID solana.PublicKey
	network   string
	now       func() time.Time

	config *Config
	bonds  map[solana.PublicKey]*ProviderBond
	claims map[[32]byte]*InsuranceClaim

	// Token custody: per-owner balances plus the pooled vault. The vault
	// holds all bonded funds; attribution lives in the bond records.
	balances map[solana.PublicKey]uint64
	vault    uint64
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the wall clock, letting tests cross deadlines and
// grace periods without sleeping.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithProgramID overrides the program address used for account
// derivation.
func WithProgramID(programID solana.PublicKey) Option {
	return func(l *Ledger) {
		l.programID = programID
	}
}

// New creates an empty ledger for the given network identifier
// (CAIP-2 form, e.g. "solana:localnet").
func New(network string, opts ...Option) *Ledger {
	l := &Ledger{
		programID: DefaultProgramID,
		network:   network,
		now:       time.Now,
		bonds:     make(map[solana.PublicKey]*ProviderBond),
		claims:    make(map[[32]byte]*InsuranceClaim),
		balances:  make(map[solana.PublicKey]uint64),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ProgramID returns the program address this ledger derives accounts
// under.
func (l *Ledger) ProgramID() solana.PublicKey {
	return l.programID
}

// Network returns the ledger's network identifier.
func (l *Ledger) Network() string {
	return l.network
}

// Credit adds token value to an owner's balance. Used to fund accounts
// in tests and local deployments.
func (l *Ledger) Credit(owner solana.PublicKey, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[owner] += amount
}

// Balance returns an owner's token balance.
func (l *Ledger) Balance(owner solana.PublicKey) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[owner]
}

// VaultBalance returns the pooled custody balance.
func (l *Ledger) VaultBalance() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.vault
}

// Initialize creates the singleton Config. Fails once a config exists.
func (l *Ledger) Initialize(penaltyRateBps uint16, defaultTimeoutSeconds, gracePeriodSeconds uint64, treasury, authority solana.PublicKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.config != nil {
		return ErrAlreadyInitialized
	}
	_, bump, err := ConfigAddress(l.programID)
	if err != nil {
		return err
	}
	l.config = &Config{
		PlatformTreasury:      treasury,
		PenaltyRateBps:        penaltyRateBps,
		DefaultTimeoutSeconds: defaultTimeoutSeconds,
		GracePeriodSeconds:    gracePeriodSeconds,
		Authority:             authority,
		Bump:                  bump,
	}
	return nil
}

// DepositBond moves collateral from the provider's balance into the
// vault, creating the bond record on first deposit. A deposit that
// restores available bond above the minimum clears the
// undercollateralization clock.
func (l *Ledger) DepositBond(provider solana.PublicKey, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.config == nil {
		return ErrNotInitialized
	}
	if amount == 0 {
		return ErrInvalidAmount.withDetail("deposit amount must be positive")
	}

	bond, ok := l.bonds[provider]
	if !ok {
		_, bump, err := ProviderBondAddress(l.programID, provider)
		if err != nil {
			return err
		}
		bond = &ProviderBond{Provider: provider, Bump: bump}
		l.bonds[provider] = bond
	}
	if bond.IsLiquidated {
		return ErrProviderLiquidated
	}
	if l.balances[provider] < amount {
		return ErrInsufficientFunds.withDetail("provider balance %d below deposit %d", l.balances[provider], amount)
	}

	l.balances[provider] -= amount
	l.vault += amount
	bond.TotalBond += amount

	if bond.Available() >= bond.MinBond && bond.UndercollateralizedSince != 0 {
		bond.UndercollateralizedSince = 0
	}
	return nil
}

// PurchaseInsurance pays the provider directly from the client's balance
// and locks lockedAmount of the provider's bond as the insurance
// guarantee. The payment itself is never escrowed.
func (l *Ledger) PurchaseInsurance(client, provider solana.PublicKey, commitment [32]byte, paymentAmount, timeoutMinutes uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.config == nil {
		return ErrNotInitialized
	}
	if paymentAmount == 0 {
		return ErrInvalidAmount.withDetail("payment amount must be positive")
	}
	if _, exists := l.claims[commitment]; exists {
		return ErrDuplicateCommitment
	}

	bond, ok := l.bonds[provider]
	if !ok {
		return ErrBondNotFound.withDetail("provider %s has no bond", provider)
	}
	if bond.IsLiquidated {
		return ErrProviderLiquidated
	}

	locked, err := LockedAmount(paymentAmount, l.config.PenaltyRateBps)
	if err != nil {
		return err
	}
	if bond.Available() < locked {
		return ErrInsufficientBond.withDetail("available %d below required lock %d", bond.Available(), locked)
	}
	if l.balances[client] < paymentAmount {
		return ErrInsufficientFunds.withDetail("client balance %d below payment %d", l.balances[client], paymentAmount)
	}

	_, bump, err := ClaimAddress(l.programID, commitment)
	if err != nil {
		return err
	}

	l.balances[client] -= paymentAmount
	l.balances[provider] += paymentAmount
	bond.LockedBond += locked

	timeoutSeconds := l.config.DefaultTimeoutSeconds
	if timeoutMinutes > 0 {
		timeoutSeconds = timeoutMinutes * 60
	}

	l.claims[commitment] = &InsuranceClaim{
		RequestCommitment: commitment,
		Client:            client,
		Provider:          provider,
		PaymentAmount:     paymentAmount,
		LockedAmount:      locked,
		Deadline:          l.now().Unix() + int64(timeoutSeconds),
		Status:            ClaimPending,
		Bump:              bump,
	}
	return nil
}

// ConfirmService releases the locked bond once the claim's provider
// attests delivery. The attestation must be the provider's ed25519
// signature over the domain-tagged commitment; it is valid exactly once
// per claim.
func (l *Ledger) ConfirmService(caller solana.PublicKey, commitment [32]byte, attestation [64]byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	claim, ok := l.claims[commitment]
	if !ok {
		return ErrClaimNotFound
	}
	if caller != claim.Provider {
		return ErrUnauthorized.withDetail("only the claim's provider may confirm")
	}
	if claim.Status != ClaimPending {
		return ErrNotPending.withDetail("claim is %s", claim.Status)
	}
	if !VerifyAttestation(claim.Provider, l.network, commitment, attestation) {
		return ErrInvalidSignature
	}

	bond := l.bonds[claim.Provider]
	bond.LockedBond -= claim.LockedAmount
	claim.Status = ClaimConfirmed
	return nil
}

// ClaimInsurance pays out after the deadline on an unconfirmed claim:
// the client is refunded paymentAmount and the treasury receives the
// penalty, lockedAmount-paymentAmount, both from the provider's locked
// collateral. Exactly lockedAmount leaves the bond.
func (l *Ledger) ClaimInsurance(caller solana.PublicKey, commitment [32]byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.config == nil {
		return ErrNotInitialized
	}
	claim, ok := l.claims[commitment]
	if !ok {
		return ErrClaimNotFound
	}
	if caller != claim.Client {
		return ErrUnauthorized.withDetail("only the claim's client may claim")
	}
	if claim.Status != ClaimPending {
		return ErrNotPending.withDetail("claim is %s", claim.Status)
	}
	now := l.now().Unix()
	if now < claim.Deadline {
		return ErrDeadlineNotReached.withDetail("deadline %d, now %d", claim.Deadline, now)
	}

	bond := l.bonds[claim.Provider]
	refund := claim.PaymentAmount
	penalty := claim.LockedAmount - refund

	bond.TotalBond -= claim.LockedAmount
	bond.LockedBond -= claim.LockedAmount
	l.vault -= claim.LockedAmount
	l.balances[claim.Client] += refund
	l.balances[l.config.PlatformTreasury] += penalty

	if bond.Available() < bond.MinBond && bond.UndercollateralizedSince == 0 {
		bond.UndercollateralizedSince = now
	}

	claim.Status = ClaimClaimed
	return nil
}

// WithdrawBond returns unlocked collateral to the provider. A withdrawal
// that drops available bond below the minimum starts the
// undercollateralization clock.
func (l *Ledger) WithdrawBond(provider solana.PublicKey, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	bond, ok := l.bonds[provider]
	if !ok {
		return ErrBondNotFound
	}
	if bond.IsLiquidated {
		return ErrProviderLiquidated
	}
	if amount == 0 {
		return ErrInvalidAmount.withDetail("withdrawal amount must be positive")
	}
	if bond.Available() < amount {
		return ErrInsufficientAvailable.withDetail("available %d below withdrawal %d", bond.Available(), amount)
	}

	bond.TotalBond -= amount
	l.vault -= amount
	l.balances[provider] += amount

	if bond.Available() < bond.MinBond && bond.UndercollateralizedSince == 0 {
		bond.UndercollateralizedSince = l.now().Unix()
	}
	return nil
}

// LiquidateProvider sweeps an undercollateralized provider's unlocked
// bond to the treasury after the grace period. Permissionless: any
// caller may trigger it. Locked collateral stays in the vault so pending
// claims remain payable; only deposits, purchases, and withdrawals are
// blocked afterward.
func (l *Ledger) LiquidateProvider(provider solana.PublicKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.config == nil {
		return ErrNotInitialized
	}
	bond, ok := l.bonds[provider]
	if !ok {
		return ErrBondNotFound
	}
	if bond.IsLiquidated {
		return ErrProviderLiquidated
	}

	available := bond.Available()
	if available >= bond.MinBond {
		return ErrNotEligible.withDetail("provider is not undercollateralized")
	}
	if bond.UndercollateralizedSince == 0 {
		return ErrNotEligible.withDetail("undercollateralization clock not started")
	}
	now := l.now().Unix()
	if now-bond.UndercollateralizedSince < int64(l.config.GracePeriodSeconds) {
		return ErrNotEligible.withDetail("grace period not expired")
	}

	if available > 0 {
		l.vault -= available
		l.balances[l.config.PlatformTreasury] += available
	}
	bond.IsLiquidated = true
	bond.TotalBond = bond.LockedBond
	return nil
}

// SetMinBond sets the minimum collateral requirement for a provider.
// Restricted to the config authority.
func (l *Ledger) SetMinBond(caller, provider solana.PublicKey, minBond uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.config == nil {
		return ErrNotInitialized
	}
	if caller != l.config.Authority {
		return ErrUnauthorized.withDetail("only the config authority may set minimum bond")
	}
	bond, ok := l.bonds[provider]
	if !ok {
		return ErrBondNotFound
	}
	bond.MinBond = minBond
	if bond.Available() < bond.MinBond && bond.UndercollateralizedSince == 0 {
		bond.UndercollateralizedSince = l.now().Unix()
	}
	return nil
}

// GetConfig returns a copy of the Config, or ErrNotInitialized.
func (l *Ledger) GetConfig(_ context.Context) (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.config == nil {
		return nil, ErrNotInitialized
	}
	c := *l.config
	return &c, nil
}

// GetProviderBond returns a copy of a provider's bond record.
func (l *Ledger) GetProviderBond(_ context.Context, provider solana.PublicKey) (*ProviderBond, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	bond, ok := l.bonds[provider]
	if !ok {
		return nil, ErrBondNotFound
	}
	b := *bond
	return &b, nil
}

// GetClaim returns a copy of the claim for a commitment.
func (l *Ledger) GetClaim(_ context.Context, commitment [32]byte) (*InsuranceClaim, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	claim, ok := l.claims[commitment]
	if !ok {
		return nil, ErrClaimNotFound
	}
	c := *claim
	return &c, nil
}
