package hyperliquid

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Signer produces typed-data signatures for the exchange endpoint.
// Authentication is by message signing only; the signing key never leaves
// the process.
type Signer struct {
	key     *ecdsa.PrivateKey
	address string
}

// NewSigner parses a hex-encoded secp256k1 private key.
func NewSigner(privateKeyHex string) (*Signer, error) {
	if len(privateKeyHex) >= 2 && privateKeyHex[:2] == "0x" {
		privateKeyHex = privateKeyHex[2:]
	}
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey).Hex(),
	}, nil
}

// Address returns the checksummed address derived from the signing key.
func (s *Signer) Address() string {
	return s.address
}

// SignAction signs an action payload bound to a nonce. The signed message
// is an agent struct whose connectionId commits to the action body and the
// nonce, so a signature cannot be replayed for a different action or time.
func (s *Signer) SignAction(action orderActionPayload, nonce int64) (signaturePayload, error) {
	connectionID, err := actionHash(action, nonce)
	if err != nil {
		return signaturePayload{}, err
	}

	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Agent": {
				{Name: "source", Type: "string"},
				{Name: "connectionId", Type: "bytes32"},
			},
		},
		PrimaryType: "Agent",
		Domain: apitypes.TypedDataDomain{
			Name:              "Exchange",
			Version:           "1",
			ChainId:           math.NewHexOrDecimal256(1337),
			VerifyingContract: "0x0000000000000000000000000000000000000000",
		},
		Message: apitypes.TypedDataMessage{
			"source":       "a",
			"connectionId": connectionID,
		},
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return signaturePayload{}, fmt.Errorf("failed to hash typed data: %w", err)
	}

	sig, err := crypto.Sign(hash, s.key)
	if err != nil {
		return signaturePayload{}, fmt.Errorf("failed to sign action: %w", err)
	}

	return splitSignature(sig), nil
}

// actionHash commits to the serialized action and the nonce.
func actionHash(action orderActionPayload, nonce int64) ([]byte, error) {
	body, err := json.Marshal(action)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal action: %w", err)
	}

	nonceBytes := make([]byte, 8)
	big.NewInt(nonce).FillBytes(nonceBytes)

	return crypto.Keccak256(body, nonceBytes), nil
}

// splitSignature splits a 65-byte signature into its r, s, v components.
func splitSignature(sig []byte) signaturePayload {
	return signaturePayload{
		R: hexutil.Encode(sig[:32]),
		S: hexutil.Encode(sig[32:64]),
		V: sig[64] + 27,
	}
}
