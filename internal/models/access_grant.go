package models

import "time"

// AccessGrant is the authoritative entitlement of a user to a bundle. At most
// one row exists per (user, bundle); revoking deactivates it.
type AccessGrant struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"userId"`
	BundleID  string     `db:"bundle_id" json:"bundleId"`
	GrantedBy string     `db:"granted_by" json:"grantedBy"`
	GrantedAt time.Time  `db:"granted_at" json:"grantedAt"`
	ExpiresAt *time.Time `db:"expires_at" json:"expiresAt"`
	IsActive  bool       `db:"is_active" json:"isActive"`
	Notes     string     `db:"notes" json:"notes"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
}

// IsValidAt reports whether the grant entitles its user at the given instant.
func (g *AccessGrant) IsValidAt(now time.Time) bool {
	if g == nil || !g.IsActive {
		return false
	}
	return g.ExpiresAt == nil || g.ExpiresAt.After(now)
}

// IsExpiredAt reports whether an active grant has run past its expiry.
func (g *AccessGrant) IsExpiredAt(now time.Time) bool {
	return g != nil && g.IsActive && g.ExpiresAt != nil && !g.ExpiresAt.After(now)
}

// AccessGrantDetail is a grant joined with the display fields of its user,
// bundle and granter.
type AccessGrantDetail struct {
	AccessGrant
	UserEmail     string  `db:"user_email" json:"userEmail"`
	Username      string  `db:"username" json:"username"`
	BundleTitle   string  `db:"bundle_title" json:"bundleTitle"`
	BundlePrice   float64 `db:"bundle_price" json:"bundlePrice"`
	GrantedByName *string `db:"granted_by_name" json:"grantedByName,omitempty"`
}

// GrantStats summarises grant state across the store.
type GrantStats struct {
	TotalActive      int               `json:"totalActive"`
	TotalRevoked     int               `json:"totalRevoked"`
	ActiveWithExpiry int               `json:"activeWithExpiry"`
	Expired          int               `json:"expired"`
	TopBundles       []BundleGrantRank `json:"topBundles"`
}

// BundleGrantRank counts active grants for a single bundle.
type BundleGrantRank struct {
	BundleID    string  `db:"bundle_id" json:"bundleId"`
	BundleTitle string  `db:"bundle_title" json:"bundleTitle"`
	BundlePrice float64 `db:"bundle_price" json:"bundlePrice"`
	Count       int     `db:"grant_count" json:"count"`
}
