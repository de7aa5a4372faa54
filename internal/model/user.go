package model

// Role is the capability carried in the caller's access token.  Identity
// itself is issued by an external auth service; this service only reads
// the "sub" and "role" claims.
type Role string

const (
    RoleAdmin        Role = "ADMIN"
    RoleVenueManager Role = "VENUE_MANAGER"
    RoleArtist       Role = "ARTIST"
    RoleUser         Role = "USER"
)

// Caller identifies who is invoking an operation.
//
// Fields:
//  ID   – user id from the token subject.
//  Role – capability of the caller.
type Caller struct {
    ID   uint64
    Role Role
}

// Is reports whether the caller holds any of the given roles.
func (c Caller) Is(roles ...Role) bool {
    for _, r := range roles {
        if c.Role == r {
            return true
        }
    }
    return false
}

// ProposerRole tags an entry in an event's negotiation history with the
// side that made the offer.
type ProposerRole string

const (
    ProposerVenueManager ProposerRole = "venueManager"
    ProposerArtist       ProposerRole = "artist"
)

// Counterparty returns the side expected to answer an offer made by p.
func (p ProposerRole) Counterparty() ProposerRole {
    if p == ProposerVenueManager {
        return ProposerArtist
    }
    return ProposerVenueManager
}
