// Package facilitator implements the stateless verify/settle/supported
// service that mediates the x402-insurance challenge/response cycle. It
// independently re-validates proposed settlement transactions against
// live ledger state and optionally relays them, including gasless
// (fee-sponsored) submission.
package facilitator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"

	insurance "github.com/x402-foundation/x402-insurance"
	"github.com/x402-foundation/x402-insurance/instruction"
	"github.com/x402-foundation/x402-insurance/ledger"
)

// StateReader supplies the live ledger state verify recomputes against.
// Sourcing the penalty rate here, rather than from a local constant,
// keeps the facilitator's arithmetic from drifting out of sync with what
// the ledger enforces.
type StateReader interface {
	GetConfig(ctx context.Context) (*ledger.Config, error)
	GetProviderBond(ctx context.Context, provider solana.PublicKey) (*ledger.ProviderBond, error)
}

// Broadcaster submits a signed transaction to the execution substrate
// and awaits confirmation.
type Broadcaster interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// FeeRelay is an external fee-sponsorship service the facilitator can
// delegate gasless settlement to.
type FeeRelay interface {
	SignAndSend(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// Config assembles a Facilitator. State and Broadcaster are required;
// FeeRelay and FeePayerKey are the two optional gasless paths, tried in
// that order.
type Config struct {
	ProgramID   solana.PublicKey
	State       StateReader
	Broadcaster Broadcaster

	FeeRelay    FeeRelay
	FeePayerKey solana.PrivateKey

	// AcceptedToken describes the value unit advertised by supported().
	AcceptedToken insurance.TokenInfo

	// SettlementTTL bounds how long a settled response is replayed for
	// duplicate settle calls. Zero means one minute.
	SettlementTTL time.Duration

	// Now overrides the wall clock, for tests.
	Now func() time.Time
}

// Facilitator validates and relays insurance settlement transactions.
// Stateless across requests apart from the settlement idempotency cache.
type Facilitator struct {
	programID   solana.PublicKey
	state       StateReader
	broadcaster Broadcaster
	relay       FeeRelay
	feePayerKey solana.PrivateKey
	token       insurance.TokenInfo
	now         func() time.Time
	cache       *settlementCache
}

// New creates a Facilitator from its configuration.
func New(cfg Config) (*Facilitator, error) {
	if cfg.State == nil {
		return nil, errors.New("facilitator: state reader is required")
	}
	if cfg.Broadcaster == nil {
		return nil, errors.New("facilitator: broadcaster is required")
	}
	if cfg.ProgramID.IsZero() {
		cfg.ProgramID = ledger.DefaultProgramID
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.SettlementTTL == 0 {
		cfg.SettlementTTL = time.Minute
	}
	return &Facilitator{
		programID:   cfg.ProgramID,
		state:       cfg.State,
		broadcaster: cfg.Broadcaster,
		relay:       cfg.FeeRelay,
		feePayerKey: cfg.FeePayerKey,
		token:       cfg.AcceptedToken,
		now:         cfg.Now,
		cache:       newSettlementCache(cfg.SettlementTTL),
	}, nil
}

// GaslessConfigured reports whether either gasless path is available.
func (f *Facilitator) GaslessConfigured() bool {
	return f.relay != nil || f.feePayerKey != nil
}

func decodeTransaction(txBase64 string) (*solana.Transaction, []byte, error) {
	raw, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return nil, nil, fmt.Errorf("transaction is not valid base64: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, nil, fmt.Errorf("transaction does not decode: %w", err)
	}
	return tx, raw, nil
}

func invalid(code, detail string) *insurance.VerifyResponse {
	reason := code
	if detail != "" {
		reason = code + ": " + detail
	}
	return &insurance.VerifyResponse{Valid: false, Reason: reason}
}

// Verify decodes a proposed purchase_insurance transaction and validates
// it against live ledger state without submitting it. A pure
// read-validate step: the returned details let a caller trust the
// transaction before paying any submission cost. Validation failures
// come back as Valid=false with a reason; only reader failures surface
// as errors.
func (f *Facilitator) Verify(ctx context.Context, txBase64 string) (*insurance.VerifyResponse, error) {
	tx, _, err := decodeTransaction(txBase64)
	if err != nil {
		return invalid(insurance.ErrCodeInvalidStructure, err.Error()), nil
	}
	msg := &tx.Message
	if len(msg.Instructions) == 0 {
		return invalid(insurance.ErrCodeInvalidStructure, "transaction has no instructions"), nil
	}

	var purchase *solana.CompiledInstruction
	for i := range msg.Instructions {
		ci := &msg.Instructions[i]
		if int(ci.ProgramIDIndex) < len(msg.AccountKeys) && msg.AccountKeys[ci.ProgramIDIndex].Equals(f.programID) {
			purchase = ci
			break
		}
	}
	if purchase == nil {
		return invalid(insurance.ErrCodeMissingProgramReference, "no insurance program instruction found"), nil
	}

	if len(purchase.Data) < instruction.PurchaseInsuranceLen || !instruction.IsPurchaseInsurance(purchase.Data) {
		return invalid(insurance.ErrCodeInvalidData, fmt.Sprintf("expected purchase_insurance payload of at least %d bytes", instruction.PurchaseInsuranceLen)), nil
	}
	decoded, err := instruction.Decode(purchase.Data)
	if err != nil {
		return invalid(insurance.ErrCodeInvalidData, err.Error()), nil
	}
	args := decoded.(*instruction.PurchaseInsurance)

	if len(purchase.Accounts) < instruction.PurchaseAccountCount {
		return invalid(insurance.ErrCodeInvalidData, "insufficient accounts in instruction"), nil
	}
	keyAt := func(pos int) (solana.PublicKey, bool) {
		idx := int(purchase.Accounts[pos])
		if idx >= len(msg.AccountKeys) {
			return solana.PublicKey{}, false
		}
		return msg.AccountKeys[idx], true
	}
	client, ok := keyAt(instruction.PurchaseClientIndex)
	if !ok {
		return invalid(insurance.ErrCodeInvalidData, "client account index out of range"), nil
	}
	provider, ok := keyAt(instruction.PurchaseProviderIndex)
	if !ok {
		return invalid(insurance.ErrCodeInvalidData, "provider account index out of range"), nil
	}

	if !msg.IsSigner(client) {
		return invalid(insurance.ErrCodeNotSigned, "client account is not marked as a required signer"), nil
	}

	cfg, err := f.state.GetConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger config: %w", err)
	}
	bond, err := f.state.GetProviderBond(ctx, provider)
	if err != nil {
		if errors.Is(err, ledger.ErrBondNotFound) {
			return invalid(insurance.ErrCodeInsufficientBond, "provider bond not found"), nil
		}
		return nil, fmt.Errorf("failed to read provider bond: %w", err)
	}

	locked, err := ledger.LockedAmount(args.PaymentAmount, cfg.PenaltyRateBps)
	if err != nil {
		return invalid(insurance.ErrCodeInvalidData, err.Error()), nil
	}
	if bond.Available() < locked {
		return invalid(insurance.ErrCodeInsufficientBond,
			fmt.Sprintf("available %d, required %d", bond.Available(), locked)), nil
	}

	timeoutSeconds := cfg.DefaultTimeoutSeconds
	if args.TimeoutMinutes > 0 {
		timeoutSeconds = args.TimeoutMinutes * 60
	}

	return &insurance.VerifyResponse{
		Valid: true,
		InsuranceDetails: &insurance.InsuranceDetails{
			RequestCommitment: insurance.EncodeCommitment(args.RequestCommitment),
			Client:            client.String(),
			Provider:          provider.String(),
			PaymentAmount:     args.PaymentAmount,
			LockedAmount:      locked,
			Deadline:          f.now().Unix() + int64(timeoutSeconds),
		},
	}, nil
}

// Settle relays a settlement transaction and awaits confirmation,
// stamping a recent validity reference when the transaction lacks one.
// In standard mode the client's signatures must already be present. In
// gasless mode the facilitator delegates to its fee relay, or
// counter-signs with its own key when it is the designated fee payer;
// with neither configured the call fails rather than silently charging
// the client. Repeated settlement of the same signed transaction returns
// the cached identifier.
func (f *Facilitator) Settle(ctx context.Context, txBase64 string, gasless bool) (*insurance.SettleResponse, error) {
	tx, raw, err := decodeTransaction(txBase64)
	if err != nil {
		return nil, insurance.NewInsuranceError(insurance.ErrCodeInvalidData, err.Error(), nil)
	}

	key := settlementKey(raw)
	status, cached, done := f.cache.checkAndMark(key)
	switch status {
	case settlementCached:
		return cached, nil
	case settlementInFlight:
		result, err := f.cache.waitForResult(ctx, key, done)
		if err != nil {
			return nil, insurance.NewInsuranceError(insurance.ErrCodeSettlementFailed, err.Error(), nil)
		}
		if result != nil {
			return result, nil
		}
		// The in-flight attempt failed without caching; take ownership of
		// a fresh attempt unless yet another caller beat us to it.
		status, cached, done = f.cache.checkAndMark(key)
		switch status {
		case settlementCached:
			return cached, nil
		case settlementInFlight:
			return nil, insurance.NewInsuranceError(insurance.ErrCodeSettlementFailed,
				"a concurrent settlement of this transaction is in flight", nil)
		}
	}

	resp, err := f.settle(ctx, tx, gasless)
	if err != nil {
		f.cache.fail(key, done)
		return nil, err
	}
	f.cache.complete(key, resp, done)
	return resp, nil
}

func (f *Facilitator) settle(ctx context.Context, tx *solana.Transaction, gasless bool) (*insurance.SettleResponse, error) {
	if tx.Message.RecentBlockhash == (solana.Hash{}) {
		blockhash, err := f.broadcaster.LatestBlockhash(ctx)
		if err != nil {
			return nil, insurance.NewInsuranceError(insurance.ErrCodeSettlementFailed,
				fmt.Sprintf("failed to fetch recent blockhash: %v", err), nil)
		}
		tx.Message.RecentBlockhash = blockhash
	}

	var (
		sig solana.Signature
		err error
	)
	if gasless {
		sig, err = f.settleGasless(ctx, tx)
	} else {
		sig, err = f.settleStandard(ctx, tx)
	}
	if err != nil {
		return nil, err
	}

	return &insurance.SettleResponse{
		Signature: sig.String(),
		Success:   true,
	}, nil
}

func (f *Facilitator) settleStandard(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	required := int(tx.Message.Header.NumRequiredSignatures)
	if required == 0 || len(tx.Signatures) < required {
		return solana.Signature{}, insurance.NewInsuranceError(insurance.ErrCodeNotSignedByClient,
			"transaction must be signed by client", nil)
	}
	for _, s := range tx.Signatures[:required] {
		if s == (solana.Signature{}) {
			return solana.Signature{}, insurance.NewInsuranceError(insurance.ErrCodeNotSignedByClient,
				"transaction must be signed by client", nil)
		}
	}

	sig, err := f.broadcaster.SendTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, insurance.NewInsuranceError(insurance.ErrCodeSettlementFailed, err.Error(), nil)
	}
	return sig, nil
}

func (f *Facilitator) settleGasless(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	switch {
	case f.relay != nil:
		sig, err := f.relay.SignAndSend(ctx, tx)
		if err != nil {
			return solana.Signature{}, insurance.NewInsuranceError(insurance.ErrCodeSettlementFailed,
				fmt.Sprintf("fee relay failed: %v", err), nil)
		}
		return sig, nil

	case f.feePayerKey != nil:
		feePayer := f.feePayerKey.PublicKey()
		if len(tx.Message.AccountKeys) == 0 || !tx.Message.AccountKeys[0].Equals(feePayer) {
			return solana.Signature{}, insurance.NewInsuranceError(insurance.ErrCodeSettlementFailed,
				fmt.Sprintf("fee payer must be the facilitator (%s)", feePayer), nil)
		}
		if err := cosignTransaction(f.feePayerKey, tx); err != nil {
			return solana.Signature{}, insurance.NewInsuranceError(insurance.ErrCodeSettlementFailed, err.Error(), nil)
		}
		sig, err := f.broadcaster.SendTransaction(ctx, tx)
		if err != nil {
			return solana.Signature{}, insurance.NewInsuranceError(insurance.ErrCodeSettlementFailed, err.Error(), nil)
		}
		return sig, nil

	default:
		return solana.Signature{}, insurance.NewInsuranceError(insurance.ErrCodeNoFeePayerConfigured,
			"gasless mode requested but no fee relay or facilitator key configured", nil)
	}
}

// Supported returns the facilitator's capability document. It is a
// static read: stable across calls absent configuration change.
func (f *Facilitator) Supported() insurance.SupportedCapabilities {
	return insurance.SupportedCapabilities{
		Version:   insurance.ProtocolVersion,
		Protocols: []string{"x402", insurance.ProtocolName},
		Features: insurance.Features{
			Gasless:   f.GaslessConfigured(),
			Insurance: true,
			Batching:  false,
		},
		Tokens: []insurance.TokenInfo{f.token},
		Programs: []insurance.ProgramInfo{
			{
				ProgramID:    f.programID.String(),
				Name:         "X402 Insurance Protocol",
				Instructions: instruction.OperationNames,
			},
		},
	}
}
