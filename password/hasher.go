package password

import (
	"errors"
	"strings"
)

var (
	ErrEmptyPassword        = errors.New("password must not be empty")
	ErrPasswordTooLong      = errors.New("password exceeds maximum length")
	ErrMalformedHash        = errors.New("invalid password hash format")
	ErrUnsupportedAlgorithm = errors.New("unsupported password hash algorithm")
)

// Algorithm names a supported hash family.
type Algorithm string

const (
	AlgorithmArgon2id Algorithm = "argon2id"
	AlgorithmBcrypt   Algorithm = "bcrypt"
)

// Config selects the primary algorithm and its cost factors.
type Config struct {
	Algorithm        Algorithm
	Argon2           Argon2Config
	BcryptCost       int
	MaxPasswordBytes int
}

type scheme interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
}

// Hasher hashes with the configured algorithm and verifies any supported
// encoding.
type Hasher struct {
	primary  Algorithm
	maxBytes int
	argon2   *Argon2
	bcrypt   *Bcrypt
}

// New builds a Hasher from cfg.
func New(cfg Config) (*Hasher, error) {
	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgorithmArgon2id
	}
	if cfg.MaxPasswordBytes <= 0 {
		cfg.MaxPasswordBytes = 1024
	}

	h := &Hasher{primary: cfg.Algorithm, maxBytes: cfg.MaxPasswordBytes}

	switch cfg.Algorithm {
	case AlgorithmArgon2id:
		a, err := NewArgon2(cfg.Argon2)
		if err != nil {
			return nil, err
		}
		h.argon2 = a
		// Legacy bcrypt hashes are verified at the default cost.
		h.bcrypt = &Bcrypt{cost: 10}
	case AlgorithmBcrypt:
		b, err := NewBcrypt(cfg.BcryptCost)
		if err != nil {
			return nil, err
		}
		h.bcrypt = b
		if a, err := NewArgon2(cfg.Argon2); err == nil {
			h.argon2 = a
		}
	default:
		return nil, ErrUnsupportedAlgorithm
	}

	return h, nil
}

// Check reports whether Hash would reject password for its length, without
// doing the hashing work.
func (h *Hasher) Check(password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	if len(password) > h.maxBytes {
		return ErrPasswordTooLong
	}
	if h.primary == AlgorithmBcrypt && len(password) > bcryptMaxBytes {
		return ErrPasswordTooLong
	}
	return nil
}

// Hash encodes password with the primary algorithm.
func (h *Hasher) Hash(password string) (string, error) {
	if err := h.Check(password); err != nil {
		return "", err
	}
	return h.schemeFor(h.primary).Hash(password)
}

// Verify reports whether password matches encodedHash, whichever supported
// algorithm produced it.
func (h *Hasher) Verify(password, encodedHash string) (bool, error) {
	if len(password) > h.maxBytes {
		return false, nil
	}
	alg, err := Detect(encodedHash)
	if err != nil {
		return false, err
	}
	s := h.schemeFor(alg)
	if s == nil {
		return false, ErrUnsupportedAlgorithm
	}
	return s.Verify(password, encodedHash)
}

// NeedsUpgrade reports whether encodedHash should be replaced by a fresh
// hash from the primary algorithm.
func (h *Hasher) NeedsUpgrade(encodedHash string) (bool, error) {
	alg, err := Detect(encodedHash)
	if err != nil {
		return false, err
	}
	if alg != h.primary {
		return true, nil
	}
	return h.schemeFor(alg).NeedsUpgrade(encodedHash)
}

// Detect returns the algorithm that produced encodedHash.
func Detect(encodedHash string) (Algorithm, error) {
	switch {
	case strings.HasPrefix(encodedHash, "$argon2id$"):
		return AlgorithmArgon2id, nil
	case strings.HasPrefix(encodedHash, "$2a$"),
		strings.HasPrefix(encodedHash, "$2b$"),
		strings.HasPrefix(encodedHash, "$2y$"):
		return AlgorithmBcrypt, nil
	case strings.HasPrefix(encodedHash, "$"):
		return "", ErrUnsupportedAlgorithm
	default:
		return "", ErrMalformedHash
	}
}

func (h *Hasher) schemeFor(alg Algorithm) scheme {
	switch alg {
	case AlgorithmArgon2id:
		if h.argon2 != nil {
			return h.argon2
		}
	case AlgorithmBcrypt:
		if h.bcrypt != nil {
			return h.bcrypt
		}
	}
	return nil
}
