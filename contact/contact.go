package contact

import (
	"strings"

	"github.com/google/uuid"
)

// Type classifies the outlet a contact represents.
type Type string

const (
	// TypeRadio is a terrestrial or online radio station.
	TypeRadio Type = "radio"
	// TypeBlog is a music blog or webzine.
	TypeBlog Type = "blog"
	// TypePlaylist is a playlist curator.
	TypePlaylist Type = "playlist"
	// TypeMagazine is a print or digital magazine.
	TypeMagazine Type = "magazine"
	// TypeLabel is a record label.
	TypeLabel Type = "label"
	// TypeVenue is a live venue or event series.
	TypeVenue Type = "venue"
	// TypePromoter is a promotion agency or independent promoter.
	TypePromoter Type = "promoter"
)

// Types lists every valid contact type in display order.
var Types = []Type{TypeRadio, TypeBlog, TypePlaylist, TypeMagazine, TypeLabel, TypeVenue, TypePromoter}

// Valid reports whether t is a member of the fixed type enumeration.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// VerificationStatus tracks whether a contact's email address has been
// confirmed as deliverable.
type VerificationStatus string

const (
	// VerificationUnverified is the default state for new contacts.
	VerificationUnverified VerificationStatus = "unverified"
	// VerificationVerifying marks a contact with a probe in flight.
	VerificationVerifying VerificationStatus = "verifying"
	// VerificationVerified marks a confirmed deliverable address.
	VerificationVerified VerificationStatus = "verified"
	// VerificationNotFound marks an address rejected by its mail host.
	VerificationNotFound VerificationStatus = "not_found"
	// VerificationError marks a probe that failed for transient reasons.
	VerificationError VerificationStatus = "error"
)

// Statuses lists every valid verification status.
var Statuses = []VerificationStatus{
	VerificationUnverified,
	VerificationVerifying,
	VerificationVerified,
	VerificationNotFound,
	VerificationError,
}

// Valid reports whether s is a member of the fixed status enumeration.
func (s VerificationStatus) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Rank orders statuses by strength of signal. A merged record keeps the
// highest-ranked status present in its group.
func (s VerificationStatus) Rank() int {
	switch s {
	case VerificationVerified:
		return 4
	case VerificationVerifying:
		return 3
	case VerificationNotFound:
		return 2
	case VerificationError:
		return 1
	default:
		return 0
	}
}

// Platform is a social/streaming platform key with a fixed allow-list.
type Platform string

const (
	// PlatformFacebook is a Facebook page URL.
	PlatformFacebook Platform = "facebook"
	// PlatformInstagram is an Instagram profile URL.
	PlatformInstagram Platform = "instagram"
	// PlatformTwitter is a Twitter/X profile URL.
	PlatformTwitter Platform = "twitter"
	// PlatformYouTube is a YouTube channel URL.
	PlatformYouTube Platform = "youtube"
	// PlatformTikTok is a TikTok profile URL.
	PlatformTikTok Platform = "tiktok"
	// PlatformSoundCloud is a SoundCloud profile URL.
	PlatformSoundCloud Platform = "soundcloud"
	// PlatformSpotify is a Spotify profile URL.
	PlatformSpotify Platform = "spotify"
)

// Platforms lists every valid platform key in display order.
var Platforms = []Platform{
	PlatformFacebook,
	PlatformInstagram,
	PlatformTwitter,
	PlatformYouTube,
	PlatformTikTok,
	PlatformSoundCloud,
	PlatformSpotify,
}

// Valid reports whether p is a member of the fixed platform allow-list.
func (p Platform) Valid() bool {
	for _, known := range Platforms {
		if p == known {
			return true
		}
	}
	return false
}

// Person is one named contact person at an outlet.
type Person struct {
	Name     string `json:"name"`
	Position string `json:"position,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Contact is the canonical contact entity, independent of storage shape.
//
// ID is opaque, globally unique, and immutable once assigned. Genres keep
// insertion order for display; set semantics apply on merge. Socials never
// stores empty URLs: an absent platform key means "no link".
type Contact struct {
	ID                  string              `json:"id"`
	Name                string              `json:"name"`
	Country             string              `json:"country"`
	Type                Type                `json:"type"`
	Email               string              `json:"email,omitempty"`
	Website             string              `json:"website,omitempty"`
	VerificationStatus  VerificationStatus  `json:"verificationStatus,omitempty"`
	VerificationDetails string              `json:"verificationDetails,omitempty"`
	IsFavorite          bool                `json:"isFavorite,omitempty"`
	DoNotContact        bool                `json:"doNotContact,omitempty"`
	Genres              []string            `json:"genres,omitempty"`
	Persons             []Person            `json:"contactPersons,omitempty"`
	Socials             map[Platform]string `json:"socials,omitempty"`
}

// NewID returns a fresh opaque contact id.
func NewID() string {
	return uuid.NewString()
}

// Clone returns a deep copy of c. Relation collections are copied so the
// clone can outlive mutations of the original.
func (c Contact) Clone() Contact {
	out := c
	if c.Genres != nil {
		out.Genres = append([]string(nil), c.Genres...)
	}
	if c.Persons != nil {
		out.Persons = append([]Person(nil), c.Persons...)
	}
	if len(c.Socials) > 0 {
		out.Socials = make(map[Platform]string, len(c.Socials))
		for platform, url := range c.Socials {
			out.Socials[platform] = url
		}
	} else {
		out.Socials = nil
	}
	return out
}

// NormalizeEmail lowercases and trims an email for matching and uniqueness.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeWebsite lowercases, trims, and strips scheme/trailing-slash noise
// so equivalent URLs compare equal.
func NormalizeWebsite(website string) string {
	site := strings.ToLower(strings.TrimSpace(website))
	site = strings.TrimPrefix(site, "https://")
	site = strings.TrimPrefix(site, "http://")
	site = strings.TrimPrefix(site, "www.")
	return strings.TrimSuffix(site, "/")
}
