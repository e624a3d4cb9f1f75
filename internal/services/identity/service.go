package identity

import (
	"errors"
	"fmt"
	"unicode"

	"sealrelay/internal/crypto"
	"sealrelay/internal/domain"
)

const (
	// minPassphraseLength defines the minimum number of characters required for a passphrase.
	minPassphraseLength = 12
)

var (
	// ErrWeakPassphrase is returned when the passphrase fails the strength policy.
	ErrWeakPassphrase = fmt.Errorf(
		"passphrase is too weak (must be at least %d characters and include upper, lower, "+
			"number, and symbol)",
		minPassphraseLength,
	)

	// ErrNoKeystore is returned by keystore operations when none is configured.
	ErrNoKeystore = errors.New("no identity keystore configured")
)

// Service creates and loads identity key pairs.
type Service struct {
	store domain.IdentityStore
}

// New returns an identity service. store may be nil when only ephemeral
// identities are needed.
func New(s domain.IdentityStore) *Service { return &Service{store: s} }

// Generate returns a fresh, unsaved identity and its fingerprint.
func (s *Service) Generate() (domain.PrivateIdentity, domain.Fingerprint, error) {
	id, err := crypto.GenerateIdentity()
	if err != nil {
		return domain.PrivateIdentity{}, "", err
	}
	return id, crypto.Fingerprint(id.PublicKey), nil
}

// Create generates a new identity and saves it encrypted with the passphrase.
func (s *Service) Create(passphrase string) (domain.PrivateIdentity, domain.Fingerprint, error) {
	if s.store == nil {
		return domain.PrivateIdentity{}, "", ErrNoKeystore
	}
	if !isSecurePassphrase(passphrase) {
		return domain.PrivateIdentity{}, "", ErrWeakPassphrase
	}
	id, fp, err := s.Generate()
	if err != nil {
		return domain.PrivateIdentity{}, "", err
	}
	if err := s.store.SaveIdentity(passphrase, id); err != nil {
		return domain.PrivateIdentity{}, "", fmt.Errorf("save identity: %w", err)
	}
	return id, fp, nil
}

// Load decrypts and returns the stored identity.
func (s *Service) Load(passphrase string) (domain.PrivateIdentity, error) {
	if s.store == nil {
		return domain.PrivateIdentity{}, ErrNoKeystore
	}
	return s.store.LoadIdentity(passphrase)
}

// Fingerprint returns a short fingerprint of pub after checking it parses as
// an identity key.
func (s *Service) Fingerprint(pub domain.PublicKey) (domain.Fingerprint, error) {
	if _, err := crypto.ImportPublicKey(pub); err != nil {
		return "", err
	}
	return crypto.Fingerprint(pub), nil
}

// isSecurePassphrase enforces a basic strength policy.
func isSecurePassphrase(passphrase string) bool {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len([]rune(passphrase)) < minPassphraseLength {
		return false
	}
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}

// Compile-time assertion that Service implements domain.IdentityService.
var _ domain.IdentityService = (*Service)(nil)
