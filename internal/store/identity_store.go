package store

import (
	"errors"
	"os"
	"sync"

	"sealrelay/internal/crypto"
	"sealrelay/internal/domain"
	"sealrelay/internal/util/memzero"
)

// ErrNoIdentity is returned when the keystore file does not exist.
var ErrNoIdentity = errors.New("no identity stored")

// IdentityFileStore persists the local identity key to a single file.
type IdentityFileStore struct {
	path string
	kdf  scryptParams
	mu   sync.Mutex
}

// NewIdentityFileStore returns an IdentityFileStore writing to path.
func NewIdentityFileStore(path string) *IdentityFileStore {
	return &IdentityFileStore{path: path, kdf: defaultScrypt}
}

// SaveIdentity writes the encrypted private key to disk.
func (s *IdentityFileStore) SaveIdentity(passphrase string, id domain.PrivateIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id.PrivateKey == nil {
		return errors.New("identity has no private key")
	}
	der, err := crypto.MarshalPrivateKey(id.PrivateKey)
	if err != nil {
		return err
	}
	defer memzero.Zero(der)

	ct, err := seal(passphrase, der, s.kdf)
	if err != nil {
		return err
	}
	return writeFile(s.path, ct, 0o600)
}

// LoadIdentity reads and decrypts the identity.
func (s *IdentityFileStore) LoadIdentity(passphrase string) (domain.PrivateIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := readFile(s.path)
	if err != nil {
		return domain.PrivateIdentity{}, err
	}
	if b == nil {
		return domain.PrivateIdentity{}, ErrNoIdentity
	}
	der, err := unseal(passphrase, b)
	if err != nil {
		return domain.PrivateIdentity{}, err
	}
	defer memzero.Zero(der)
	return crypto.ParsePrivateKey(der)
}

// Exists reports whether the keystore file is present.
func (s *IdentityFileStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Compile-time assertion that IdentityFileStore implements domain.IdentityStore.
var _ domain.IdentityStore = (*IdentityFileStore)(nil)
