package insurance

// VerifyRequest asks the facilitator to validate a proposed settlement
// transaction without broadcasting it.
type VerifyRequest struct {
	Transaction string `json:"transaction"` // base64-encoded transaction
}

// InsuranceDetails are the decoded parameters of a valid insurance
// purchase, returned by verify so the caller can trust the transaction
// before paying any submission cost.
type InsuranceDetails struct {
	RequestCommitment string `json:"requestCommitment"` // hex-encoded 32 bytes
	Client            string `json:"client"`
	Provider          string `json:"provider"`
	PaymentAmount     uint64 `json:"paymentAmount"`
	LockedAmount      uint64 `json:"lockedAmount"`
	Deadline          int64  `json:"deadline"` // unix seconds
}

// VerifyResponse is the result of a verify call.
type VerifyResponse struct {
	Valid            bool              `json:"valid"`
	Reason           string            `json:"reason,omitempty"`
	InsuranceDetails *InsuranceDetails `json:"insuranceDetails,omitempty"`
}

// SettleRequest asks the facilitator to relay a settlement transaction.
// With Gasless set, the facilitator (or its fee relay) pays network fees.
type SettleRequest struct {
	Transaction string `json:"transaction"`
	Gasless     bool   `json:"gasless,omitempty"`
}

// SettleResponse is the result of a settle call. Signature is the final
// settlement identifier when Success is true.
type SettleResponse struct {
	Signature string `json:"signature,omitempty"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// Features flags the optional capabilities a facilitator offers.
type Features struct {
	Gasless   bool `json:"gasless"`
	Insurance bool `json:"insurance"`
	Batching  bool `json:"batching"`
}

// TokenInfo describes a value unit the facilitator accepts.
type TokenInfo struct {
	Mint     string `json:"mint"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// ProgramInfo describes a ledger program the facilitator understands,
// including its operation surface.
type ProgramInfo struct {
	ProgramID    string   `json:"programId"`
	Name         string   `json:"name"`
	Instructions []string `json:"instructions"`
}

// SupportedCapabilities is the static capability document served by
// GET /supported. Absent configuration change it is stable across calls.
type SupportedCapabilities struct {
	Version   string        `json:"version"`
	Protocols []string      `json:"protocols"`
	Features  Features      `json:"features"`
	Tokens    []TokenInfo   `json:"tokens"`
	Programs  []ProgramInfo `json:"programs"`
}

// ChallengeAccounts are the deterministic addresses a client needs to
// build the purchase transaction.
type ChallengeAccounts struct {
	Config       string `json:"config"`
	ProviderBond string `json:"providerBond"`
	Claim        string `json:"claim"`
}

// ChallengeDetails carry the ledger-level parameters of a challenge.
type ChallengeDetails struct {
	ProgramID         string            `json:"programId"`
	RequestCommitment string            `json:"requestCommitment"`
	Accounts          ChallengeAccounts `json:"accounts"`
	Timeout           uint64            `json:"timeout"` // minutes
}

// PaymentChallenge is the structured 402 body issued by the challenge
// middleware when a request arrives without valid payment proof.
type PaymentChallenge struct {
	Type        string           `json:"type"`
	Amount      uint64           `json:"amount"` // integer minor units
	Currency    string           `json:"currency"`
	Provider    string           `json:"provider"`
	Facilitator string           `json:"facilitator"`
	Details     ChallengeDetails `json:"details"`
}
