// Package identity derives panel account usernames and passwords.
package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

const (
	usernamePool = "abcdefghijklmnopqrstuvwxyz0123456789"
	letterPool   = "abcdefghijklmnopqrstuvwxyz"
	passwordPool = "abcdefghijklmnopqrstuvwxyz0123456789!@#$%^&*()"

	minUsernameLength = 5
	padUsernameLength = 8
	maxUsernameLength = 8

	minPasswordFloor   = 5
	maxPasswordCeiling = 14
)

// ErrGenerationExhausted is returned when every username candidate is taken
var ErrGenerationExhausted = errors.New("no free username found")

// AccountChecker reports whether a username is already taken on a panel.
// CentOS WebPanel has no lookup call, so panel implementations test by
// creating and removing a throwaway account.
type AccountChecker interface {
	AccountExists(ctx context.Context, username string) bool
}

// UsernameGenerator derives usernames from domains, avoiding collisions
// when a checker is configured.
type UsernameGenerator struct {
	checker     AccountChecker
	maxAttempts int
}

// NewUsernameGenerator creates a generator. A nil checker skips collision checks.
func NewUsernameGenerator(checker AccountChecker, maxAttempts int) *UsernameGenerator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &UsernameGenerator{checker: checker, maxAttempts: maxAttempts}
}

// Generate returns a username for domain that is free on the panel
func (g *UsernameGenerator) Generate(ctx context.Context, domain string) (string, error) {
	base, err := CandidateUsername(domain)
	if err != nil {
		return "", err
	}

	if g.checker == nil || !g.checker.AccountExists(ctx, base) {
		return base, nil
	}

	// Replace trailing characters with a counter until one is free
	for i := 0; i < g.maxAttempts; i++ {
		suffix := strconv.Itoa(i)
		keep := len(base) - len(suffix)
		if keep < 1 {
			break
		}
		candidate := base[:keep] + suffix
		if candidate == base {
			continue
		}
		if !g.checker.AccountExists(ctx, candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w for domain %s after %d attempts", ErrGenerationExhausted, domain, g.maxAttempts)
}

// CandidateUsername derives the collision-unaware username for domain:
// letters and digits only, no leading digit, padded to 8 characters when
// shorter than 5, and truncated to 8.
func CandidateUsername(domain string) (string, error) {
	var b strings.Builder
	for _, r := range domain {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	username := strings.TrimLeft(b.String(), "0123456789")

	if len(username) < minUsernameLength {
		// The first character must be a letter even when nothing survived stripping
		if username == "" {
			c, err := randomChar(letterPool)
			if err != nil {
				return "", err
			}
			username = string(c)
		}
		for len(username) < padUsernameLength {
			c, err := randomChar(usernamePool)
			if err != nil {
				return "", err
			}
			username += string(c)
		}
	}

	if len(username) > maxUsernameLength {
		username = username[:maxUsernameLength]
	}

	return username, nil
}

// GeneratePassword returns a random password whose length is drawn from
// [minLength, maxLength], clamped to [5, 14]. Characters come from
// a-z, 0-9 and !@#$%^&*(); at least two of those classes are present.
func GeneratePassword(minLength, maxLength int) (string, error) {
	if minLength < minPasswordFloor {
		minLength = minPasswordFloor
	}
	if maxLength > maxPasswordCeiling {
		maxLength = maxPasswordCeiling
	}
	if minLength > maxLength {
		minLength = maxLength
	}

	span, err := rand.Int(rand.Reader, big.NewInt(int64(maxLength-minLength+1)))
	if err != nil {
		return "", fmt.Errorf("draw password length: %w", err)
	}
	length := minLength + int(span.Int64())

	for {
		buf := make([]byte, length)
		for i := range buf {
			c, err := randomChar(passwordPool)
			if err != nil {
				return "", err
			}
			buf[i] = c
		}
		password := string(buf)
		if CharacterClasses(password) >= 2 {
			return password, nil
		}
	}
}

// CharacterClasses counts how many of letters, digits and symbols appear in s
func CharacterClasses(s string) int {
	var letter, digit, symbol bool
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			letter = true
		case r >= '0' && r <= '9':
			digit = true
		case r > ' ':
			symbol = true
		}
	}

	n := 0
	for _, ok := range []bool{letter, digit, symbol} {
		if ok {
			n++
		}
	}
	return n
}

func randomChar(pool string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(pool))))
	if err != nil {
		return 0, fmt.Errorf("draw random character: %w", err)
	}
	return pool[n.Int64()], nil
}
