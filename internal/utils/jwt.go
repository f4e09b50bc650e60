package utils // package utils provides helpers for principal tokens and slugs

import (
    "errors"  // errors builds sentinel values for token validation
    "fmt"     // fmt renders numeric subjects
    "strconv" // strconv parses string subjects
    "time"    // time computes expirations

    "github.com/golang-jwt/jwt/v5" // JWT library for signing and parsing tokens
)

// ErrInvalidToken is returned for tokens that fail signature, expiry or
// claim checks.
var ErrInvalidToken = errors.New("invalid token")

// AccessToken represents a signed JWT access token along with its expiry.
// Access tokens identify a principal to the API and to the live gateway;
// the user records themselves are managed outside this service.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// Claims is the subset of a parsed access token the server relies on.
type Claims struct {
    UserID uint64 // sub
    Role   string // role (e.g. "USER", "ADMIN")
}

// NewAccessToken builds and signs an HS256 JWT for a user.  The JWT
// includes subject (sub), role, expiration (exp) and issued at (iat).
func NewAccessToken(secret string, userID uint64, role string, ttlMin int) (AccessToken, error) {
    now := time.Now().UTC()
    exp := now.Add(time.Duration(ttlMin) * time.Minute)
    claims := jwt.MapClaims{
        "sub":  strconv.FormatUint(userID, 10), // RFC 7519 wants a string subject
        "role": role,
        "exp":  exp.Unix(),
        "iat":  now.Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken validates raw with secret and extracts its claims.  Only
// HMAC signatures are accepted.  The subject may be a decimal string or a
// JSON number so tokens minted by other tooling keep working.
func ParseAccessToken(secret, raw string) (Claims, error) {
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        // Reject anything but HMAC to avoid algorithm confusion.
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrInvalidToken
        }
        return []byte(secret), nil
    })
    if err != nil || !tok.Valid {
        return Claims{}, ErrInvalidToken
    }
    mc, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return Claims{}, ErrInvalidToken
    }

    var out Claims
    switch sub := mc["sub"].(type) {
    case string:
        id, err := strconv.ParseUint(sub, 10, 64)
        if err != nil {
            return Claims{}, fmt.Errorf("%w: subject %q", ErrInvalidToken, sub)
        }
        out.UserID = id
    case float64:
        if sub < 1 {
            return Claims{}, ErrInvalidToken
        }
        out.UserID = uint64(sub)
    default:
        return Claims{}, ErrInvalidToken
    }
    if out.UserID == 0 {
        return Claims{}, ErrInvalidToken
    }
    out.Role, _ = mc["role"].(string)
    return out, nil
}
