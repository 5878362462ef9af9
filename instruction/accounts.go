package instruction

import (
	solana "github.com/gagliardetto/solana-go"
)

// Account table positions for each operation. The executor and the
// facilitator's verifier both resolve accounts by these indices, so the
// orderings are part of the wire contract.
const (
	// initialize: config, treasury, authority (signer)
	InitializeConfigIndex    = 0
	InitializeTreasuryIndex  = 1
	InitializeAuthorityIndex = 2

	// deposit_bond: providerBond, provider (signer), vault
	DepositProviderBondIndex = 0
	DepositProviderIndex     = 1
	DepositVaultIndex        = 2

	// purchase_insurance: config, providerBond, claim, client (signer),
	// provider, systemProgram
	PurchaseConfigIndex       = 0
	PurchaseProviderBondIndex = 1
	PurchaseClaimIndex        = 2
	PurchaseClientIndex       = 3
	PurchaseProviderIndex     = 4
	PurchaseAccountCount      = 6

	// confirm_service: claim, providerBond, provider (signer), vault
	ConfirmClaimIndex        = 0
	ConfirmProviderBondIndex = 1
	ConfirmProviderIndex     = 2
	ConfirmVaultIndex        = 3

	// claim_insurance: config, claim, providerBond, vault,
	// client (signer), treasury
	ClaimConfigIndex       = 0
	ClaimClaimIndex        = 1
	ClaimProviderBondIndex = 2
	ClaimVaultIndex        = 3
	ClaimClientIndex       = 4
	ClaimTreasuryIndex     = 5

	// withdraw_bond: providerBond, vault, provider (signer)
	WithdrawProviderBondIndex = 0
	WithdrawVaultIndex        = 1
	WithdrawProviderIndex     = 2

	// liquidate_provider: config, providerBond, vault, treasury
	// (permissionless: no signer constraint beyond the fee payer)
	LiquidateConfigIndex       = 0
	LiquidateProviderBondIndex = 1
	LiquidateVaultIndex        = 2
	LiquidateTreasuryIndex     = 3
)

// NewInitializeInstruction builds an initialize instruction.
func NewInitializeInstruction(
	programID, config, treasury, authority solana.PublicKey,
	args Initialize,
) (solana.Instruction, error) {
	data, err := Encode(args)
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.Meta(config).WRITE(),
		solana.Meta(treasury),
		solana.Meta(authority).SIGNER().WRITE(),
	}
	return solana.NewInstruction(programID, accounts, data), nil
}

// NewDepositBondInstruction builds a deposit_bond instruction.
func NewDepositBondInstruction(
	programID, providerBond, provider, vault solana.PublicKey,
	args DepositBond,
) (solana.Instruction, error) {
	data, err := Encode(args)
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.Meta(providerBond).WRITE(),
		solana.Meta(provider).SIGNER().WRITE(),
		solana.Meta(vault).WRITE(),
	}
	return solana.NewInstruction(programID, accounts, data), nil
}

// NewPurchaseInsuranceInstruction builds a purchase_insurance
// instruction with the canonical six-account table.
func NewPurchaseInsuranceInstruction(
	programID, config, providerBond, claim, client, provider solana.PublicKey,
	args PurchaseInsurance,
) (solana.Instruction, error) {
	data, err := Encode(args)
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.Meta(config),
		solana.Meta(providerBond).WRITE(),
		solana.Meta(claim).WRITE(),
		solana.Meta(client).SIGNER().WRITE(),
		solana.Meta(provider),
		solana.Meta(solana.SystemProgramID),
	}
	return solana.NewInstruction(programID, accounts, data), nil
}

// NewConfirmServiceInstruction builds a confirm_service instruction.
func NewConfirmServiceInstruction(
	programID, claim, providerBond, provider, vault solana.PublicKey,
	args ConfirmService,
) (solana.Instruction, error) {
	data, err := Encode(args)
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.Meta(claim).WRITE(),
		solana.Meta(providerBond).WRITE(),
		solana.Meta(provider).SIGNER().WRITE(),
		solana.Meta(vault).WRITE(),
	}
	return solana.NewInstruction(programID, accounts, data), nil
}

// NewClaimInsuranceInstruction builds a claim_insurance instruction.
func NewClaimInsuranceInstruction(
	programID, config, claim, providerBond, vault, client, treasury solana.PublicKey,
	args ClaimInsurance,
) (solana.Instruction, error) {
	data, err := Encode(args)
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.Meta(config),
		solana.Meta(claim).WRITE(),
		solana.Meta(providerBond).WRITE(),
		solana.Meta(vault).WRITE(),
		solana.Meta(client).SIGNER().WRITE(),
		solana.Meta(treasury).WRITE(),
	}
	return solana.NewInstruction(programID, accounts, data), nil
}

// NewWithdrawBondInstruction builds a withdraw_bond instruction.
func NewWithdrawBondInstruction(
	programID, providerBond, vault, provider solana.PublicKey,
	args WithdrawBond,
) (solana.Instruction, error) {
	data, err := Encode(args)
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.Meta(providerBond).WRITE(),
		solana.Meta(vault).WRITE(),
		solana.Meta(provider).SIGNER().WRITE(),
	}
	return solana.NewInstruction(programID, accounts, data), nil
}

// NewLiquidateProviderInstruction builds a liquidate_provider
// instruction. Any fee payer may submit it.
func NewLiquidateProviderInstruction(
	programID, config, providerBond, vault, treasury solana.PublicKey,
) (solana.Instruction, error) {
	data, err := Encode(LiquidateProvider{})
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.Meta(config),
		solana.Meta(providerBond).WRITE(),
		solana.Meta(vault).WRITE(),
		solana.Meta(treasury).WRITE(),
	}
	return solana.NewInstruction(programID, accounts, data), nil
}
