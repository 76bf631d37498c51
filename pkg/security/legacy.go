package security

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// werkzeug's default iteration count when a pbkdf2 method omits it
const legacyPBKDF2Iterations = 260000

// verifyWerkzeug checks "method$salt$hexdigest" hashes such as
// "pbkdf2:sha256:600000$salt$..." or "scrypt:32768:8:1$salt$...". The salt is used
// as its literal bytes.
func verifyWerkzeug(password, encoded string) (bool, error) {
	method, rest, ok := strings.Cut(encoded, "$")
	if !ok {
		return false, ErrInvalidHash
	}
	salt, digestHex, ok := strings.Cut(rest, "$")
	if !ok || salt == "" {
		return false, ErrInvalidHash
	}
	want, err := hex.DecodeString(digestHex)
	if err != nil || len(want) == 0 {
		return false, ErrInvalidHash
	}

	fields := strings.Split(method, ":")
	var got []byte
	switch fields[0] {
	case "pbkdf2":
		got, err = legacyPBKDF2(fields[1:], password, salt, len(want))
	case "scrypt":
		got, err = legacyScrypt(fields[1:], password, salt, len(want))
	default:
		return false, ErrInvalidHash
	}
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(want, got) == 1, nil
}

func legacyPBKDF2(args []string, password, salt string, keyLen int) ([]byte, error) {
	if len(args) == 0 {
		return nil, ErrInvalidHash
	}
	var digest func() hash.Hash
	switch args[0] {
	case "sha1":
		digest = sha1.New
	case "sha256":
		digest = sha256.New
	case "sha512":
		digest = sha512.New
	default:
		return nil, ErrInvalidHash
	}
	iterations := legacyPBKDF2Iterations
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return nil, ErrInvalidHash
		}
		iterations = n
	}
	return pbkdf2.Key([]byte(password), []byte(salt), iterations, keyLen, digest), nil
}

func legacyScrypt(args []string, password, salt string, keyLen int) ([]byte, error) {
	if len(args) != 3 {
		return nil, ErrInvalidHash
	}
	var costs [3]int
	for i, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			return nil, ErrInvalidHash
		}
		costs[i] = n
	}
	key, err := scrypt.Key([]byte(password), []byte(salt), costs[0], costs[1], costs[2], keyLen)
	if err != nil {
		return nil, ErrInvalidHash
	}
	return key, nil
}
