package utils // package utils provides helper functions for token creation and hashing

import (
    "crypto/rand"   // secure random number generation
    "crypto/sha256" // SHA-256 hashing for refresh tokens
    "encoding/hex"  // hex encoding functions
    "errors"        // sentinel error for invalid tokens
    "time"          // expiration arithmetic

    "github.com/golang-jwt/jwt/v5" // JWT library for creating and verifying signed tokens
    "github.com/google/uuid"       // token ids so two mints in one second still differ
)

// ErrInvalidAccessToken is returned for any structural, signature or
// expiry failure while parsing an access token. Callers must not leak
// which of the three it was.
var ErrInvalidAccessToken = errors.New("invalid access token")

// AccessToken represents a signed JWT access token along with its expiry.
// Access tokens are short-lived and carried in the Authorization header
// when calling protected endpoints.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// RefreshToken represents a long-lived opaque token used to obtain new
// access tokens. Only a SHA-256 hash of the Raw value is ever stored.
type RefreshToken struct {
    Raw string    // raw token string returned to the client
    Exp time.Time // UTC expiration time
}

// AccessClaims is the verified claim set of an access token. It is the
// complete identity the rest of the system sees on the hot path; no
// store lookup happens during validation.
type AccessClaims struct {
    UserID   uint64 // sub
    Role     string // role
    TenantID string // tid
    TokenID  string // jti
    IssuedAt time.Time
    Expires  time.Time
}

// NewAccessToken builds and signs an HS256 JWT for a user. The claim
// set is {sub, role, tid, jti, iat, exp}. The jti is a fresh UUID, so
// every minted token differs from every prior one even when two mints
// land in the same clock second.
func NewAccessToken(secret string, userID uint64, role, tenantID string, ttlMin int) (AccessToken, error) {
    exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
    claims := jwt.MapClaims{
        "sub":  userID,
        "role": role,
        "tid":  tenantID,
        "jti":  uuid.NewString(),
        "exp":  exp.Unix(),
        "iat":  time.Now().UTC().Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies signature and expiry of a serialized access
// token and returns its claims. It is pure: no I/O, no store access.
// Every failure mode collapses into ErrInvalidAccessToken.
func ParseAccessToken(secret, raw string) (AccessClaims, error) {
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        // Reject any signing method other than HMAC; an attacker must
        // not be able to downgrade to "none" or swap in RSA keys.
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrInvalidAccessToken
        }
        return []byte(secret), nil
    })
    if err != nil || !tok.Valid {
        return AccessClaims{}, ErrInvalidAccessToken
    }
    claims, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return AccessClaims{}, ErrInvalidAccessToken
    }

    out := AccessClaims{}
    switch sub := claims["sub"].(type) {
    case float64:
        out.UserID = uint64(sub)
    default:
        return AccessClaims{}, ErrInvalidAccessToken
    }
    if role, ok := claims["role"].(string); ok && role != "" {
        out.Role = role
    } else {
        return AccessClaims{}, ErrInvalidAccessToken
    }
    if tid, ok := claims["tid"].(string); ok {
        out.TenantID = tid
    }
    if jti, ok := claims["jti"].(string); ok {
        out.TokenID = jti
    }
    if exp, ok := claims["exp"].(float64); ok {
        out.Expires = time.Unix(int64(exp), 0).UTC()
    }
    if iat, ok := claims["iat"].(float64); ok {
        out.IssuedAt = time.Unix(int64(iat), 0).UTC()
    }
    return out, nil
}

// NewRefreshToken returns a cryptographically secure random token (raw)
// and its expiration time. The ttlDays parameter controls how many days
// the refresh token is valid.
func NewRefreshToken(ttlDays int) (RefreshToken, error) {
    raw, err := randomHex(48) // 48 bytes -> 96 hex chars
    if err != nil {
        return RefreshToken{}, err
    }
    return RefreshToken{
        Raw: raw,
        Exp: time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour),
    }, nil
}

// HashRefreshRaw returns the SHA-256 hash of the raw refresh token as a
// hex string. Storing only the hash prevents attackers from using
// stolen database entries to refresh sessions.
func HashRefreshRaw(raw string) string {
    sum := sha256.Sum256([]byte(raw))
    return hex.EncodeToString(sum[:])
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return hex.EncodeToString(buf), nil
}
