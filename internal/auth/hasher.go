// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// HashAlgorithm names a supported password hashing scheme.
type HashAlgorithm string

// Supported hashing schemes.
const (
	HashBcrypt   HashAlgorithm = "bcrypt"
	HashArgon2id HashAlgorithm = "argon2id"
)

// DefaultBcryptCost is the bcrypt work factor used when none is configured.
const DefaultBcryptCost = 10

// OWASP-recommended argon2id parameters.
const (
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2SaltLen = 16        // salt length in bytes
	argon2KeyLen  = 32        // output length in bytes
)

// maxArgon2Memory bounds the m= parameter read from stored digests, in KiB.
const maxArgon2Memory = 1 << 20 // 1 GiB

const argon2Prefix = "$argon2id$"

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted one-way digest of the password.
	Hash(password string) (string, error)

	// Verify reports whether the password matches the digest.
	// A malformed digest never matches.
	Verify(password, digest string) bool
}

// Hasher hashes new passwords with one algorithm and verifies digests
// produced by any supported algorithm.
type Hasher struct {
	primary PasswordHasher
	bcrypt  *BcryptHasher
	argon2  *Argon2idHasher
}

// NewHasher creates a Hasher that hashes with algo.
func NewHasher(algo HashAlgorithm, bcryptCost int) (*Hasher, error) {
	bh, err := NewBcryptHasher(bcryptCost)
	if err != nil {
		return nil, err
	}
	h := &Hasher{bcrypt: bh, argon2: NewArgon2idHasher()}

	switch algo {
	case HashBcrypt, "":
		h.primary = h.bcrypt
	case HashArgon2id:
		h.primary = h.argon2
	default:
		return nil, oops.Code(CodeUnsupportedHashAlgo).
			With("algorithm", string(algo)).
			Errorf("unsupported hash algorithm %q", algo)
	}
	return h, nil
}

// Hash produces a digest with the configured algorithm.
func (h *Hasher) Hash(password string) (string, error) {
	return h.primary.Hash(password)
}

// Verify dispatches on the digest prefix.
func (h *Hasher) Verify(password, digest string) bool {
	switch {
	case strings.HasPrefix(digest, argon2Prefix):
		return h.argon2.Verify(password, digest)
	case isBcryptDigest(digest):
		return h.bcrypt.Verify(password, digest)
	default:
		return false
	}
}

// BcryptHasher implements PasswordHasher using bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher with the given work factor.
func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, oops.Code(CodeUnsupportedHashAlgo).
			With("cost", cost).
			Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &BcryptHasher{cost: cost}, nil
}

// Hash produces a bcrypt digest of the password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", oops.Code(CodeHashFailed).With("algorithm", string(HashBcrypt)).Wrap(err)
	}
	return string(digest), nil
}

// Verify checks the password against a bcrypt digest.
func (h *BcryptHasher) Verify(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

func isBcryptDigest(digest string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(digest, prefix) {
			return true
		}
	}
	return false
}

// Argon2idHasher implements PasswordHasher using argon2id.
type Argon2idHasher struct{}

// NewArgon2idHasher creates a new Argon2idHasher.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{}
}

// Hash produces an argon2id digest in PHC string format.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code(CodeHashFailed).With("algorithm", string(HashArgon2id)).Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks the password against an argon2id digest.
func (h *Argon2idHasher) Verify(password, digest string) bool {
	params, err := parseArgon2id(digest)
	if err != nil {
		return false
	}
	computed := argon2.IDKey([]byte(password), params.salt, params.time, params.memory, params.threads, uint32(len(params.key)))
	return subtle.ConstantTimeCompare(computed, params.key) == 1
}

type argon2Params struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func parseArgon2id(digest string) (*argon2Params, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid argon2id digest format")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if version != argon2.Version {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported argon2 version %d", version)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	// threads must fit in uint8 without truncation
	if threads == 0 || threads > 255 || time == 0 || memory == 0 || memory > maxArgon2Memory {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid argon2 parameters m=%d t=%d p=%d", memory, time, threads)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if len(key) == 0 || len(key) > 1024 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid argon2 key length %d", len(key))
	}

	return &argon2Params{
		memory:  memory,
		time:    time,
		threads: uint8(threads),
		salt:    salt,
		key:     key,
	}, nil
}
