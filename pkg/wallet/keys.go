package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ParsePrivateKey reads a hex private key, with or without 0x.
func ParsePrivateKey(s string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// LoadKeystore decrypts a go-ethereum keystore file.
func LoadKeystore(path, password string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keystore %s: %w", path, err)
	}
	key, err := keystore.DecryptKey(data, password)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore %s: %w", path, err)
	}
	return key.PrivateKey, nil
}

// LoadKeys loads raw hex keys first, then keystore files. Duplicate
// addresses are dropped.
func LoadKeys(hexKeys, keystorePaths []string, password string) ([]*ecdsa.PrivateKey, error) {
	var keys []*ecdsa.PrivateKey
	seen := map[common.Address]bool{}
	add := func(k *ecdsa.PrivateKey) {
		addr := crypto.PubkeyToAddress(k.PublicKey)
		if !seen[addr] {
			seen[addr] = true
			keys = append(keys, k)
		}
	}

	for i, h := range hexKeys {
		k, err := ParsePrivateKey(h)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		add(k)
	}
	for _, p := range keystorePaths {
		k, err := LoadKeystore(p, password)
		if err != nil {
			return nil, err
		}
		add(k)
	}
	return keys, nil
}
