package ledger

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"
)

// Account discriminators, sha256("account:<Name>")[:8] per the Anchor
// convention, prefixed to every serialized account so an RPC reader can
// reject accounts of the wrong type.
var (
	configDiscriminator       = accountDiscriminator("InsuranceConfig")
	providerBondDiscriminator = accountDiscriminator("ProviderBond")
	claimDiscriminator        = accountDiscriminator("InsuranceClaim")
)

func accountDiscriminator(name string) [8]byte {
	h := sha256.Sum256([]byte("account:" + name))
	var d [8]byte
	copy(d[:], h[:8])
	return d
}

func marshalAccount(disc [8]byte, v interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(disc[:])
	if err := bin.NewBorshEncoder(buf).Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode account: %w", err)
	}
	return buf.Bytes(), nil
}

func unmarshalAccount(disc [8]byte, data []byte, v interface{}) error {
	if len(data) < 8 {
		return fmt.Errorf("account data too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[:8], disc[:]) {
		return fmt.Errorf("account discriminator mismatch")
	}
	if err := bin.NewBorshDecoder(data[8:]).Decode(v); err != nil {
		return fmt.Errorf("failed to decode account: %w", err)
	}
	return nil
}

// MarshalConfig serializes a Config account.
func MarshalConfig(c *Config) ([]byte, error) {
	return marshalAccount(configDiscriminator, c)
}

// UnmarshalConfig deserializes a Config account.
func UnmarshalConfig(data []byte) (*Config, error) {
	var c Config
	if err := unmarshalAccount(configDiscriminator, data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// MarshalProviderBond serializes a ProviderBond account.
func MarshalProviderBond(b *ProviderBond) ([]byte, error) {
	return marshalAccount(providerBondDiscriminator, b)
}

// UnmarshalProviderBond deserializes a ProviderBond account.
func UnmarshalProviderBond(data []byte) (*ProviderBond, error) {
	var b ProviderBond
	if err := unmarshalAccount(providerBondDiscriminator, data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// MarshalClaim serializes an InsuranceClaim account.
func MarshalClaim(c *InsuranceClaim) ([]byte, error) {
	return marshalAccount(claimDiscriminator, c)
}

// UnmarshalClaim deserializes an InsuranceClaim account.
func UnmarshalClaim(data []byte) (*InsuranceClaim, error) {
	var c InsuranceClaim
	if err := unmarshalAccount(claimDiscriminator, data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
