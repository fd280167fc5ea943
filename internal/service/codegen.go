package service

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

// Generated codes draw from an alphanumeric alphabet with the visually
// ambiguous symbols (0/O, 1/l/I) removed. Custom codes are looser: any
// URL-safe alphanumeric plus '-' and '_' decodes unambiguously in a path.
const (
	codeLength  = 7
	codeCharset = "23456789abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ"

	customCodeMinLen = 4
	customCodeMaxLen = 32

	// maxGenerateAttempts bounds the collision-retry loop on random
	// generation. As the table fills, birthday collisions become more
	// likely and an unbounded loop turns into an availability risk.
	maxGenerateAttempts = 5
)

var customCodePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// CodeGenerator produces short codes and validates caller-supplied
// ones. It holds no state and performs no reservation: uniqueness is
// enforced by the store's insert, generation only proposes candidates.
type CodeGenerator interface {
	Generate() (string, error)
	ValidateCustomCode(code string) error
}

type codeGenerator struct{}

func NewCodeGenerator() CodeGenerator {
	return &codeGenerator{}
}

// Generate returns a random code of fixed length from the restricted
// alphabet, using crypto/rand so codes are not guessable in sequence.
func (g *codeGenerator) Generate() (string, error) {
	result := make([]byte, codeLength)
	for i := 0; i < codeLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		result[i] = codeCharset[num.Int64()]
	}
	return string(result), nil
}

// ValidateCustomCode checks format only; whether the code is taken is
// decided by the store at insert time.
func (g *codeGenerator) ValidateCustomCode(code string) error {
	if len(code) < customCodeMinLen || len(code) > customCodeMaxLen {
		return ErrInvalidCode
	}
	if !customCodePattern.MatchString(code) {
		return ErrInvalidCode
	}
	return nil
}
