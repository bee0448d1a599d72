// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a storable hash of the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on invalid hash.
	Verify(password, hash string) (bool, error)

	// NeedsUpgrade reports whether hash should be replaced by a fresh Hash
	// after the next successful login.
	NeedsUpgrade(hash string) bool
}

// argon2Params are the tunable argon2id costs stored in every hash.
type argon2Params struct {
	memory     uint32 // KiB
	iterations uint32
	threads    uint8
}

// currentParams follow the OWASP argon2id recommendation. Hashes stored
// with other costs are rehashed on login.
var currentParams = argon2Params{memory: 64 * 1024, iterations: 1, threads: 4}

const (
	saltLen = 16
	keyLen  = 32
)

// phcHash is a decoded $argon2id$v=..$m=..,t=..,p=..$salt$key string.
type phcHash struct {
	version int
	params  argon2Params
	salt    []byte
	key     []byte
}

func (p phcHash) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		p.version, p.params.memory, p.params.iterations, p.params.threads,
		base64.RawStdEncoding.EncodeToString(p.salt),
		base64.RawStdEncoding.EncodeToString(p.key),
	)
}

func invalidHash(format string, args ...any) error {
	return oops.Code("AUTH_INVALID_HASH").With("algorithm", "argon2id").Errorf(format, args...)
}

func parsePHC(encoded string) (phcHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return phcHash{}, invalidHash("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return phcHash{}, invalidHash("unsupported hash algorithm: %s", parts[1])
	}

	var p phcHash
	if _, err := fmt.Sscanf(parts[2], "v=%d", &p.version); err != nil {
		return phcHash{}, invalidHash("bad version %q", parts[2])
	}
	var threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.params.memory, &p.params.iterations, &threads); err != nil {
		return phcHash{}, invalidHash("bad parameters %q", parts[3])
	}
	if threads == 0 || threads > 255 {
		return phcHash{}, invalidHash("threads value %d outside 1..255", threads)
	}
	p.params.threads = uint8(threads)

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return phcHash{}, oops.Code("AUTH_INVALID_HASH").With("field", "salt").Wrap(err)
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return phcHash{}, oops.Code("AUTH_INVALID_HASH").With("field", "key").Wrap(err)
	}
	if len(p.key) == 0 || len(p.key) > 1<<10 {
		return phcHash{}, invalidHash("invalid key length: %d", len(p.key))
	}
	return p, nil
}

// Argon2idHasher hashes with argon2id. It also verifies bcrypt hashes
// imported from older systems so they can be upgraded on login.
type Argon2idHasher struct{}

// NewArgon2idHasher creates a new Argon2idHasher.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{}
}

// Hash produces an argon2id PHC string for password.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}
	p := currentParams
	return phcHash{
		version: argon2.Version,
		params:  p,
		salt:    salt,
		key:     argon2.IDKey([]byte(password), salt, p.iterations, p.memory, p.threads, keyLen),
	}.String(), nil
}

// Verify checks password against an argon2id or bcrypt hash.
func (h *Argon2idHasher) Verify(password, encodedHash string) (bool, error) {
	if isBcrypt(encodedHash) {
		return verifyBcrypt(password, encodedHash)
	}

	p, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}
	key := argon2.IDKey([]byte(password), p.salt, p.params.iterations, p.params.memory, p.params.threads, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(key, p.key) == 1, nil
}

// NeedsUpgrade is true for bcrypt hashes and for argon2id hashes made with
// costs other than the current ones.
func (h *Argon2idHasher) NeedsUpgrade(hash string) bool {
	p, err := parsePHC(hash)
	if err != nil {
		return true
	}
	return p.version != argon2.Version || p.params != currentParams
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}

func verifyBcrypt(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, oops.Code("AUTH_INVALID_HASH").With("algorithm", "bcrypt").Wrap(err)
	}
}

var _ PasswordHasher = (*Argon2idHasher)(nil)
