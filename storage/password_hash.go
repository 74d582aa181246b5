package storage

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
)

// Argon2idParams configures the hashing of admin user passwords
type Argon2idParams struct {
	Time        uint32 `yaml:"time"`
	MemoryKiB   uint32 `yaml:"memory_kib"`
	Parallelism uint8  `yaml:"parallelism"`
	KeyLen      uint32 `yaml:"key_len"`
	SaltLen     uint32 `yaml:"salt_len"`
}

func defaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		Time:        1,
		MemoryKiB:   64 * 1024,
		Parallelism: 4,
		KeyLen:      32,
		SaltLen:     16,
	}
}

// passwordHasher produces and checks argon2id hashes in the PHC string
// format, e.g. $argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
type passwordHasher struct {
	params Argon2idParams
}

func newPasswordHasher(params Argon2idParams) passwordHasher {
	if params.Time == 0 {
		params = defaultArgon2idParams()
	}
	return passwordHasher{params: params}
}

func (h passwordHasher) hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.WithStack(err)
	}
	p := h.params
	key := argon2.IDKey([]byte(password), salt, p.Time, p.MemoryKiB, p.Parallelism, p.KeyLen)
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s", argon2.Version, p.MemoryKiB, p.Time, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt), base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// verify checks password against encoded; outdated is true if the hash was
// made with other parameters than the current ones
func (h passwordHasher) verify(encoded, password string) (ok, outdated bool, err error) {
	params, salt, key, err := decodeArgon2id(encoded)
	if err != nil {
		return false, false, err
	}
	computed := argon2.IDKey(
		[]byte(password), salt, params.Time, params.MemoryKiB, params.Parallelism, uint32(len(key)),
	)
	if subtle.ConstantTimeCompare(computed, key) != 1 {
		return false, false, nil
	}
	return true, params != h.params, nil
}

func decodeArgon2id(encoded string) (params Argon2idParams, salt, key []byte, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return params, nil, nil, errors.New("not an argon2id hash")
	}
	var version int
	if _, err = fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return params, nil, nil, errors.Wrap(err, "invalid argon2id version")
	}
	if version != argon2.Version {
		return params, nil, nil, errors.Errorf("unsupported argon2id version %d", version)
	}
	if _, err = fmt.Sscanf(
		parts[3], "m=%d,t=%d,p=%d", &params.MemoryKiB, &params.Time, &params.Parallelism,
	); err != nil {
		return params, nil, nil, errors.Wrap(err, "invalid argon2id parameters")
	}
	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return params, nil, nil, errors.Wrap(err, "invalid argon2id salt")
	}
	if key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return params, nil, nil, errors.Wrap(err, "invalid argon2id key")
	}
	params.SaltLen = uint32(len(salt))
	params.KeyLen = uint32(len(key))
	return params, salt, key, nil
}
