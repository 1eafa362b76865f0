package login

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/JFJun/kernel/internal/chat"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Auth chain link types.
const (
	LinkSigner       = "SIGNER"
	LinkSignedEntity = "ECDSA_SIGNED_ENTITY"
)

// ErrNoIdentity means no signing key is configured yet.
var ErrNoIdentity = errors.New("login: no identity configured")

// Signer produces auth chains for the local identity.
type Signer interface {
	Address() string
	Sign(payload string) ([]chat.AuthLink, error)
}

// KeySigner signs with a secp256k1 private key, the way a wallet signs a
// personal message.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address string
}

// NewKeySigner parses a hex private key. An empty key yields ErrNoIdentity.
func NewKeySigner(hexKey string) (*KeySigner, error) {
	if hexKey == "" {
		return nil, ErrNoIdentity
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse identity key: %w", err)
	}
	return &KeySigner{
		key:     key,
		address: strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex()),
	}, nil
}

// Address is the lowercase hex address of the key.
func (s *KeySigner) Address() string { return s.address }

func (s *KeySigner) Sign(payload string) ([]chat.AuthLink, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(payload)), s.key)
	if err != nil {
		return nil, fmt.Errorf("sign auth payload: %w", err)
	}
	return []chat.AuthLink{
		{Type: LinkSigner, Payload: s.address},
		{Type: LinkSignedEntity, Payload: payload, Signature: hexutil.Encode(sig)},
	}, nil
}

// Recover returns the address that signed the chain's signed entity.
func Recover(chain []chat.AuthLink) (string, error) {
	for _, link := range chain {
		if link.Type != LinkSignedEntity {
			continue
		}
		sig, err := hexutil.Decode(link.Signature)
		if err != nil {
			return "", fmt.Errorf("decode signature: %w", err)
		}
		pub, err := crypto.SigToPub(accounts.TextHash([]byte(link.Payload)), sig)
		if err != nil {
			return "", fmt.Errorf("recover signer: %w", err)
		}
		return strings.ToLower(crypto.PubkeyToAddress(*pub).Hex()), nil
	}
	return "", errors.New("login: auth chain has no signed entity")
}
