package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	solana "github.com/gagliardetto/solana-go"
)

const (
	testPenaltyRateBps = uint16(200)
	testDefaultTimeout = uint64(1800)
	testGracePeriod    = uint64(86400)
)

type fixture struct {
	ledger   *Ledger
	now      *time.Time
	treasury solana.PublicKey
	auth     solana.PrivateKey
	provider solana.PrivateKey
	client   solana.PrivateKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	start := time.Unix(1_700_000_000, 0)
	now := &start
	f := &fixture{
		now:      now,
		treasury: solana.NewWallet().PublicKey(),
		auth:     solana.NewWallet().PrivateKey,
		provider: solana.NewWallet().PrivateKey,
		client:   solana.NewWallet().PrivateKey,
	}
	f.ledger = New("solana:localnet", WithClock(func() time.Time { return *now }))
	if err := f.ledger.Initialize(testPenaltyRateBps, testDefaultTimeout, testGracePeriod, f.treasury, f.auth.PublicKey()); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	return f
}

func (f *fixture) advance(d time.Duration) {
	*f.now = f.now.Add(d)
}

func (f *fixture) commitment(t *testing.T) [32]byte {
	t.Helper()
	var c [32]byte
	copy(c[:], solana.NewWallet().PublicKey().Bytes())
	return c
}

func (f *fixture) fundAndBond(t *testing.T, bond uint64) {
	t.Helper()
	f.ledger.Credit(f.provider.PublicKey(), bond)
	if err := f.ledger.DepositBond(f.provider.PublicKey(), bond); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
}

func (f *fixture) purchase(t *testing.T, commitment [32]byte, payment, timeoutMinutes uint64) {
	t.Helper()
	f.ledger.Credit(f.client.PublicKey(), payment)
	if err := f.ledger.PurchaseInsurance(f.client.PublicKey(), f.provider.PublicKey(), commitment, payment, timeoutMinutes); err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
}

func (f *fixture) attest(t *testing.T, commitment [32]byte) [64]byte {
	t.Helper()
	att, err := SignAttestation(f.provider, f.ledger.Network(), commitment)
	if err != nil {
		t.Fatalf("attestation signing failed: %v", err)
	}
	return att
}

func TestLockedAmount(t *testing.T) {
	cases := []struct {
		name    string
		payment uint64
		rateBps uint16
		want    uint64
	}{
		{"two percent", 1_000_000, 200, 1_020_000},
		{"floors remainder", 99, 200, 100},
		{"zero rate", 500, 0, 500},
		{"one unit", 1, 200, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := LockedAmount(tc.payment, tc.rateBps)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("LockedAmount(%d, %d) = %d, want %d", tc.payment, tc.rateBps, got, tc.want)
			}
		})
	}

	if _, err := LockedAmount(1<<63, 200); !errors.Is(err, ErrArithmeticOverflow) {
		t.Errorf("expected overflow error, got %v", err)
	}
}

func TestInitializeOnce(t *testing.T) {
	f := newFixture(t)
	err := f.ledger.Initialize(testPenaltyRateBps, testDefaultTimeout, testGracePeriod, f.treasury, f.auth.PublicKey())
	if !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestDepositBondAccumulates(t *testing.T) {
	f := newFixture(t)
	f.ledger.Credit(f.provider.PublicKey(), 5_000_000)

	if err := f.ledger.DepositBond(f.provider.PublicKey(), 2_000_000); err != nil {
		t.Fatalf("first deposit: %v", err)
	}
	if err := f.ledger.DepositBond(f.provider.PublicKey(), 3_000_000); err != nil {
		t.Fatalf("second deposit: %v", err)
	}

	bond, err := f.ledger.GetProviderBond(context.Background(), f.provider.PublicKey())
	if err != nil {
		t.Fatalf("get bond: %v", err)
	}
	if bond.TotalBond != 5_000_000 {
		t.Errorf("total bond = %d, want 5000000", bond.TotalBond)
	}
	if f.ledger.VaultBalance() != 5_000_000 {
		t.Errorf("vault = %d, want 5000000", f.ledger.VaultBalance())
	}
	if f.ledger.Balance(f.provider.PublicKey()) != 0 {
		t.Errorf("provider balance = %d, want 0", f.ledger.Balance(f.provider.PublicKey()))
	}
}

func TestDepositBondRejections(t *testing.T) {
	f := newFixture(t)

	if err := f.ledger.DepositBond(f.provider.PublicKey(), 0); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero deposit: expected ErrInvalidAmount, got %v", err)
	}
	if err := f.ledger.DepositBond(f.provider.PublicKey(), 100); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("unfunded deposit: expected ErrInsufficientFunds, got %v", err)
	}

	bare := New("solana:localnet")
	if err := bare.DepositBond(f.provider.PublicKey(), 100); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("uninitialized ledger: expected ErrNotInitialized, got %v", err)
	}
}

func TestPurchaseInsuranceLocksBond(t *testing.T) {
	f := newFixture(t)
	f.fundAndBond(t, 2_000_000)
	c := f.commitment(t)
	f.purchase(t, c, 1_000_000, 60)

	bond, _ := f.ledger.GetProviderBond(context.Background(), f.provider.PublicKey())
	if bond.LockedBond != 1_020_000 {
		t.Errorf("locked bond = %d, want 1020000", bond.LockedBond)
	}
	if bond.TotalBond != 2_000_000 {
		t.Errorf("total bond = %d, want unchanged 2000000", bond.TotalBond)
	}

	// The payment goes straight to the provider, never into escrow.
	if got := f.ledger.Balance(f.provider.PublicKey()); got != 1_000_000 {
		t.Errorf("provider balance = %d, want 1000000", got)
	}
	if got := f.ledger.Balance(f.client.PublicKey()); got != 0 {
		t.Errorf("client balance = %d, want 0", got)
	}

	claim, err := f.ledger.GetClaim(context.Background(), c)
	if err != nil {
		t.Fatalf("get claim: %v", err)
	}
	if claim.Status != ClaimPending {
		t.Errorf("claim status = %s, want Pending", claim.Status)
	}
	if claim.PaymentAmount != 1_000_000 || claim.LockedAmount != 1_020_000 {
		t.Errorf("claim amounts = %d/%d, want 1000000/1020000", claim.PaymentAmount, claim.LockedAmount)
	}
	wantDeadline := f.now.Unix() + 60*60
	if claim.Deadline != wantDeadline {
		t.Errorf("deadline = %d, want %d", claim.Deadline, wantDeadline)
	}
}

func TestPurchaseInsuranceDefaultTimeout(t *testing.T) {
	f := newFixture(t)
	f.fundAndBond(t, 2_000_000)
	c := f.commitment(t)
	f.purchase(t, c, 1_000_000, 0)

	claim, _ := f.ledger.GetClaim(context.Background(), c)
	wantDeadline := f.now.Unix() + int64(testDefaultTimeout)
	if claim.Deadline != wantDeadline {
		t.Errorf("deadline = %d, want default-timeout %d", claim.Deadline, wantDeadline)
	}
}

func TestPurchaseInsuranceDuplicateCommitment(t *testing.T) {
	f := newFixture(t)
	f.fundAndBond(t, 5_000_000)
	c := f.commitment(t)
	f.purchase(t, c, 1_000_000, 60)

	f.ledger.Credit(f.client.PublicKey(), 1_000_000)
	err := f.ledger.PurchaseInsurance(f.client.PublicKey(), f.provider.PublicKey(), c, 1_000_000, 60)
	if !errors.Is(err, ErrDuplicateCommitment) {
		t.Fatalf("expected ErrDuplicateCommitment, got %v", err)
	}
}

func TestPurchaseInsuranceBondBoundary(t *testing.T) {
	f := newFixture(t)
	f.fundAndBond(t, 1_020_000) // exactly the lock for a 1,000,000 payment at 200 bps

	f.ledger.Credit(f.client.PublicKey(), 2_000_000)
	if err := f.ledger.PurchaseInsurance(f.client.PublicKey(), f.provider.PublicKey(), f.commitment(t), 1_000_000, 0); err != nil {
		t.Fatalf("purchase at exact bond boundary should succeed: %v", err)
	}

	// The bond is now fully locked; any further purchase must fail.
	err := f.ledger.PurchaseInsurance(f.client.PublicKey(), f.provider.PublicKey(), f.commitment(t), 1, 0)
	if !errors.Is(err, ErrInsufficientBond) {
		t.Fatalf("expected ErrInsufficientBond, got %v", err)
	}
}

func TestPurchaseInsuranceOneUnitShort(t *testing.T) {
	f := newFixture(t)
	f.fundAndBond(t, 1_019_999)

	f.ledger.Credit(f.client.PublicKey(), 1_000_000)
	err := f.ledger.PurchaseInsurance(f.client.PublicKey(), f.provider.PublicKey(), f.commitment(t), 1_000_000, 0)
	if !errors.Is(err, ErrInsufficientBond) {
		t.Fatalf("expected ErrInsufficientBond when one unit short, got %v", err)
	}
}

func TestPurchaseInsuranceRequiresBond(t *testing.T) {
	f := newFixture(t)
	f.ledger.Credit(f.client.PublicKey(), 1_000_000)
	err := f.ledger.PurchaseInsurance(f.client.PublicKey(), f.provider.PublicKey(), f.commitment(t), 1_000_000, 0)
	if !errors.Is(err, ErrBondNotFound) {
		t.Fatalf("expected ErrBondNotFound, got %v", err)
	}
}

func TestConfirmServiceReleasesLock(t *testing.T) {
	f := newFixture(t)
	f.fundAndBond(t, 2_000_000)
	c := f.commitment(t)
	f.purchase(t, c, 1_000_000, 60)

	if err := f.ledger.ConfirmService(f.provider.PublicKey(), c, f.attest(t, c)); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	bond, _ := f.ledger.GetProviderBond(context.Background(), f.provider.PublicKey())
	if bond.LockedBond != 0 {
		t.Errorf("locked bond = %d, want 0 after confirm", bond.LockedBond)
	}
	if bond.TotalBond != 2_000_000 {
		t.Errorf("total bond = %d, want intact 2000000", bond.TotalBond)
	}
	claim, _ := f.ledger.GetClaim(context.Background(), c)
	if claim.Status != ClaimConfirmed {
		t.Errorf("claim status = %s, want Confirmed", claim.Status)
	}
}

func TestConfirmServiceExactlyOnce(t *testing.T) {
	f := newFixture(t)
	f.fundAndBond(t, 2_000_000)
	c := f.commitment(t)
	f.purchase(t, c, 1_000_000, 60)
	att := f.attest(t, c)

	if err := f.ledger.ConfirmService(f.provider.PublicKey(), c, att); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if err := f.ledger.ConfirmService(f.provider.PublicKey(), c, att); !errors.Is(err, ErrNotPending) {
		t.Fatalf("second confirm: expected ErrNotPending, got %v", err)
	}

	bond, _ := f.ledger.GetProviderBond(context.Background(), f.provider.PublicKey())
	if bond.LockedBond != 0 {
		t.Errorf("locked bond = %d, replayed confirm must not unlock twice", bond.LockedBond)
	}
}

func TestConfirmServiceRejections(t *testing.T) {
	f := newFixture(t)
	f.fundAndBond(t, 2_000_000)
	c := f.commitment(t)
	f.purchase(t, c, 1_000_000, 60)

	if err := f.ledger.ConfirmService(f.client.PublicKey(), c, f.attest(t, c)); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("non-provider caller: expected ErrUnauthorized, got %v", err)
	}

	var forged [64]byte
	if err := f.ledger.ConfirmService(f.provider.PublicKey(), c, forged); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("forged attestation: expected ErrInvalidSignature, got %v", err)
	}

	// A signature for another network must not transfer.
	other, err := SignAttestation(f.provider, "solana:mainnet", c)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.ledger.ConfirmService(f.provider.PublicKey(), c, other); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("cross-network attestation: expected ErrInvalidSignature, got %v", err)
	}

	if err := f.ledger.ConfirmService(f.provider.PublicKey(), f.commitment(t), f.attest(t, c)); !errors.Is(err, ErrClaimNotFound) {
		t.Errorf("unknown commitment: expected ErrClaimNotFound, got %v", err)
	}
}

func TestClaimInsuranceBeforeDeadline(t *testing.T) {
	f := newFixture(t)
	f.fundAndBond(t, 2_000_000)
	c := f.commitment(t)
	f.purchase(t, c, 1_000_000, 60)

	err := f.ledger.ClaimInsurance(f.client.PublicKey(), c)
	if !errors.Is(err, ErrDeadlineNotReached) {
		t.Fatalf("expected ErrDeadlineNotReached, got %v", err)
	}
}

func TestClaimInsurancePayout(t *testing.T) {
	f := newFixture(t)
	f.fundAndBond(t, 2_000_000)
	c := f.commitment(t)
	f.purchase(t, c, 1_000_000, 60)

	f.advance(61 * time.Minute)
	if err := f.ledger.ClaimInsurance(f.client.PublicKey(), c); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	// Refund equals the payment; the penalty is the remainder of the
	// locked amount, so exactly lockedAmount leaves the bond.
	if got := f.ledger.Balance(f.client.PublicKey()); got != 1_000_000 {
		t.Errorf("client balance = %d, want refund 1000000", got)
	}
	if got := f.ledger.Balance(f.treasury); got != 20_000 {
		t.Errorf("treasury balance = %d, want penalty 20000", got)
	}
	if got := f.ledger.VaultBalance(); got != 2_000_000-1_020_000 {
		t.Errorf("vault = %d, want %d", got, 2_000_000-1_020_000)
	}

	bond, _ := f.ledger.GetProviderBond(context.Background(), f.provider.PublicKey())
	if bond.TotalBond != 980_000 || bond.LockedBond != 0 {
		t.Errorf("bond = %d/%d, want 980000/0", bond.TotalBond, bond.LockedBond)
	}

	claim, _ := f.ledger.GetClaim(context.Background(), c)
	if claim.Status != ClaimClaimed {
		t.Errorf("claim status = %s, want Claimed", claim.Status)
	}
}

func TestClaimInsuranceAtExactDeadline(t *testing.T) {
	f := newFixture(t)
	f.fundAndBond(t, 2_000_000)
	c := f.commitment(t)
	f.purchase(t, c, 1_000_000, 60)

	f.advance(60 * time.Minute)
	if err := f.ledger.ClaimInsurance(f.client.PublicKey(), c); err != nil {
		t.Fatalf("claim at the deadline should succeed: %v", err)
	}
}

func TestClaimInsuranceRejections(t *testing.T) {
	f := newFixture(t)
	f.fundAndBond(t, 2_000_000)
	c := f.commitment(t)
	f.purchase(t, c, 1_000_000, 60)
	f.advance(61 * time.Minute)

	if err := f.ledger.ClaimInsurance(f.provider.PublicKey(), c); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("non-client caller: expected ErrUnauthorized, got %v", err)
	}
	if err := f.ledger.ClaimInsurance(f.client.PublicKey(), f.commitment(t)); !errors.Is(err, ErrClaimNotFound) {
		t.Errorf("unknown commitment: expected ErrClaimNotFound, got %v", err)
	}

	if err := f.ledger.ClaimInsurance(f.client.PublicKey(), c); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if err := f.ledger.ClaimInsurance(f.client.PublicKey(), c); !errors.Is(err, ErrNotPending) {
		t.Errorf("second claim: expected ErrNotPending, got %v", err)
	}
}

func TestClaimAfterConfirmRejected(t *testing.T) {
	f := newFixture(t)
	f.fundAndBond(t, 2_000_000)
	c := f.commitment(t)
	f.purchase(t, c, 1_000_000, 60)

	if err := f.ledger.ConfirmService(f.provider.PublicKey(), c, f.attest(t, c)); err != nil {
		t.Fatal(err)
	}
	f.advance(61 * time.Minute)
	if err := f.ledger.ClaimInsurance(f.client.PublicKey(), c); !errors.Is(err, ErrNotPending) {
		t.Fatalf("claim after confirm: expected ErrNotPending, got %v", err)
	}
}

func TestWithdrawBond(t *testing.T) {
	f := newFixture(t)
	f.fundAndBond(t, 2_000_000)
	c := f.commitment(t)
	f.purchase(t, c, 500_000, 60) // locks 510,000

	if err := f.ledger.WithdrawBond(f.provider.PublicKey(), 1_490_000); err != nil {
		t.Fatalf("withdraw of full available should succeed: %v", err)
	}
	if err := f.ledger.WithdrawBond(f.provider.PublicKey(), 1); !errors.Is(err, ErrInsufficientAvailable) {
		t.Errorf("withdraw into locked bond: expected ErrInsufficientAvailable, got %v", err)
	}

	bond, _ := f.ledger.GetProviderBond(context.Background(), f.provider.PublicKey())
	if bond.TotalBond != 510_000 || bond.LockedBond != 510_000 {
		t.Errorf("bond = %d/%d, want 510000/510000", bond.TotalBond, bond.LockedBond)
	}
	if got := f.ledger.Balance(f.provider.PublicKey()); got != 1_490_000+500_000 {
		t.Errorf("provider balance = %d, want 1990000", got)
	}
}

func TestWithdrawStartsUndercollateralizationClock(t *testing.T) {
	f := newFixture(t)
	f.fundAndBond(t, 2_000_000)
	if err := f.ledger.SetMinBond(f.auth.PublicKey(), f.provider.PublicKey(), 1_000_000); err != nil {
		t.Fatal(err)
	}

	if err := f.ledger.WithdrawBond(f.provider.PublicKey(), 1_500_000); err != nil {
		t.Fatal(err)
	}
	bond, _ := f.ledger.GetProviderBond(context.Background(), f.provider.PublicKey())
	if bond.UndercollateralizedSince != f.now.Unix() {
		t.Errorf("clock = %d, want started at %d", bond.UndercollateralizedSince, f.now.Unix())
	}
}

func TestDepositClearsUndercollateralizationClock(t *testing.T) {
	f := newFixture(t)
	f.fundAndBond(t, 2_000_000)
	if err := f.ledger.SetMinBond(f.auth.PublicKey(), f.provider.PublicKey(), 1_000_000); err != nil {
		t.Fatal(err)
	}
	if err := f.ledger.WithdrawBond(f.provider.PublicKey(), 1_500_000); err != nil {
		t.Fatal(err)
	}

	if err := f.ledger.DepositBond(f.provider.PublicKey(), 1_000_000); err != nil {
		t.Fatal(err)
	}
	bond, _ := f.ledger.GetProviderBond(context.Background(), f.provider.PublicKey())
	if bond.UndercollateralizedSince != 0 {
		t.Errorf("clock = %d, want cleared after restoring deposit", bond.UndercollateralizedSince)
	}
}

func TestSetMinBondAuthorityOnly(t *testing.T) {
	f := newFixture(t)
	f.fundAndBond(t, 1_000_000)
	err := f.ledger.SetMinBond(f.provider.PublicKey(), f.provider.PublicKey(), 1)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestLiquidationEligibility(t *testing.T) {
	f := newFixture(t)
	f.fundAndBond(t, 2_000_000)

	// Healthy provider is never eligible.
	if err := f.ledger.LiquidateProvider(f.provider.PublicKey()); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("healthy provider: expected ErrNotEligible, got %v", err)
	}

	if err := f.ledger.SetMinBond(f.auth.PublicKey(), f.provider.PublicKey(), 1_000_000); err != nil {
		t.Fatal(err)
	}
	if err := f.ledger.WithdrawBond(f.provider.PublicKey(), 1_500_000); err != nil {
		t.Fatal(err)
	}

	// Undercollateralized but inside the grace period.
	f.advance(time.Duration(testGracePeriod-1) * time.Second)
	if err := f.ledger.LiquidateProvider(f.provider.PublicKey()); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("inside grace period: expected ErrNotEligible, got %v", err)
	}

	f.advance(1 * time.Second)
	if err := f.ledger.LiquidateProvider(f.provider.PublicKey()); err != nil {
		t.Fatalf("liquidation after grace period should succeed: %v", err)
	}

	if got := f.ledger.Balance(f.treasury); got != 500_000 {
		t.Errorf("treasury = %d, want swept available 500000", got)
	}
	bond, _ := f.ledger.GetProviderBond(context.Background(), f.provider.PublicKey())
	if !bond.IsLiquidated {
		t.Error("bond not marked liquidated")
	}
	if bond.TotalBond != bond.LockedBond {
		t.Errorf("bond = %d/%d, want total == locked after sweep", bond.TotalBond, bond.LockedBond)
	}

	if err := f.ledger.LiquidateProvider(f.provider.PublicKey()); !errors.Is(err, ErrProviderLiquidated) {
		t.Errorf("repeat liquidation: expected ErrProviderLiquidated, got %v", err)
	}
}

func TestLiquidationBlocksProviderOperations(t *testing.T) {
	f := newFixture(t)
	f.fundAndBond(t, 500_000)
	if err := f.ledger.SetMinBond(f.auth.PublicKey(), f.provider.PublicKey(), 1_000_000); err != nil {
		t.Fatal(err)
	}
	f.advance(time.Duration(testGracePeriod) * time.Second)
	if err := f.ledger.LiquidateProvider(f.provider.PublicKey()); err != nil {
		t.Fatal(err)
	}

	f.ledger.Credit(f.provider.PublicKey(), 100)
	if err := f.ledger.DepositBond(f.provider.PublicKey(), 100); !errors.Is(err, ErrProviderLiquidated) {
		t.Errorf("deposit: expected ErrProviderLiquidated, got %v", err)
	}
	if err := f.ledger.WithdrawBond(f.provider.PublicKey(), 1); !errors.Is(err, ErrProviderLiquidated) {
		t.Errorf("withdraw: expected ErrProviderLiquidated, got %v", err)
	}
	f.ledger.Credit(f.client.PublicKey(), 100)
	err := f.ledger.PurchaseInsurance(f.client.PublicKey(), f.provider.PublicKey(), f.commitment(t), 100, 0)
	if !errors.Is(err, ErrProviderLiquidated) {
		t.Errorf("purchase: expected ErrProviderLiquidated, got %v", err)
	}
}

func TestLiquidationPreservesPendingClaims(t *testing.T) {
	f := newFixture(t)
	f.fundAndBond(t, 2_000_000)
	c := f.commitment(t)
	f.purchase(t, c, 1_000_000, 60) // locks 1,020,000

	if err := f.ledger.SetMinBond(f.auth.PublicKey(), f.provider.PublicKey(), 5_000_000); err != nil {
		t.Fatal(err)
	}
	f.advance(time.Duration(testGracePeriod) * time.Second)
	if err := f.ledger.LiquidateProvider(f.provider.PublicKey()); err != nil {
		t.Fatal(err)
	}

	// Locked collateral survives the sweep so the client can still be
	// made whole after the deadline.
	if err := f.ledger.ClaimInsurance(f.client.PublicKey(), c); err != nil {
		t.Fatalf("claim after liquidation failed: %v", err)
	}
	if got := f.ledger.Balance(f.client.PublicKey()); got != 1_000_000 {
		t.Errorf("client refund = %d, want 1000000", got)
	}
	if got := f.ledger.Balance(f.treasury); got != 980_000+20_000 {
		t.Errorf("treasury = %d, want swept 980000 plus penalty 20000", got)
	}
	if got := f.ledger.VaultBalance(); got != 0 {
		t.Errorf("vault = %d, want fully drained", got)
	}
}

func TestHappyPathLifecycle(t *testing.T) {
	f := newFixture(t)
	f.fundAndBond(t, 2_000_000)
	c := f.commitment(t)
	f.purchase(t, c, 1_000_000, 60)

	if err := f.ledger.ConfirmService(f.provider.PublicKey(), c, f.attest(t, c)); err != nil {
		t.Fatal(err)
	}
	if err := f.ledger.WithdrawBond(f.provider.PublicKey(), 2_000_000); err != nil {
		t.Fatalf("full withdrawal after confirm should succeed: %v", err)
	}

	// Provider ends with the original bond plus the payment; nothing is
	// left in custody.
	if got := f.ledger.Balance(f.provider.PublicKey()); got != 3_000_000 {
		t.Errorf("provider balance = %d, want 3000000", got)
	}
	if got := f.ledger.VaultBalance(); got != 0 {
		t.Errorf("vault = %d, want 0", got)
	}
	if got := f.ledger.Balance(f.treasury); got != 0 {
		t.Errorf("treasury = %d, want 0", got)
	}
}
