package model

// Token roles.
const (
    RoleUser  = "USER"
    RoleAdmin = "ADMIN" // may edit talkgroups and plans
)

// Principal identifies who is asking.  The zero value is the anonymous
// principal.  Users are managed outside this service; only the id carried
// by a verified access token is known here.
type Principal struct {
    UserID        uint64
    Role          string
    Authenticated bool
}

// Anonymous returns the unauthenticated principal.
func Anonymous() Principal { return Principal{} }

// UserPrincipal returns an authenticated principal for userID.
func UserPrincipal(userID uint64, role string) Principal {
    return Principal{UserID: userID, Role: role, Authenticated: true}
}

// UserIDPtr returns the user id, or nil for anonymous principals.
func (p Principal) UserIDPtr() *uint64 {
    if !p.Authenticated {
        return nil
    }
    id := p.UserID
    return &id
}
