package utils

import "golang.org/x/crypto/bcrypt"

// dummyHash is a valid bcrypt hash of an unguessable throwaway value.
// When a login targets an email that does not exist we still run one
// bcrypt comparison against it, so "no such user" and "wrong password"
// sit in the same latency class and neither reveals account existence.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// BurnVerify performs a bcrypt comparison that is guaranteed to fail.
// Call it on the no-such-user path so both credential failure modes
// cost the same.
func BurnVerify(plain string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(plain))
}
