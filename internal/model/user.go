// Package model defines the data structures used throughout the application.
// Structs carry both `json` tags (API shape) and `db` tags (column names used
// by sqlx when scanning rows).
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// User is one authenticated account together with its music profile.
// Profile fields are empty strings until the user fills them in; a reset
// clears them again.
type User struct {
	ID        string    `json:"id"        db:"id"`
	Subject   string    `json:"-"         db:"subject"` // provider-qualified login id, e.g. "google:1234"
	Email     string    `json:"email"     db:"email"`
	Name      string    `json:"name"      db:"name"`
	Image     string    `json:"image"     db:"image"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	Profile
}

// Profile holds the user-editable MyMuMe fields.
type Profile struct {
	Nickname          string     `json:"nickname"          db:"nickname"`
	VoiceType         VoiceType  `json:"voiceType"         db:"voice_type"`
	MusicalAttributes Attributes `json:"musicalAttributes" db:"musical_attributes"`
	City              string     `json:"city"              db:"city"`
	Country           string     `json:"country"           db:"country"`
	PlaylistText      string     `json:"playlistText"      db:"playlist_text"`
	PlaylistURL       string     `json:"playlistUrl"       db:"playlist_url"`
	SourceType        SourceType `json:"sourceType"        db:"source_type"`
	MusicIdentity     string     `json:"musicIdentity"     db:"music_identity"`
	AvatarSeed        string     `json:"avatarSeed"        db:"avatar_seed"`
}

// ProfileUpdate is a partial update: nil fields are left untouched.
type ProfileUpdate struct {
	Nickname          *string
	VoiceType         *VoiceType
	MusicalAttributes *Attributes
	City              *string
	Country           *string
	PlaylistText      *string
	PlaylistURL       *string
	SourceType        *SourceType
	MusicIdentity     *string
	AvatarSeed        *string
}

// IsEmpty reports whether the update would change nothing.
func (u ProfileUpdate) IsEmpty() bool {
	return u.Nickname == nil && u.VoiceType == nil && u.MusicalAttributes == nil &&
		u.City == nil && u.Country == nil && u.PlaylistText == nil &&
		u.PlaylistURL == nil && u.SourceType == nil && u.MusicIdentity == nil &&
		u.AvatarSeed == nil
}

// PublicProfile is one entry of the discovery feed, annotated with the
// viewer's own connection status toward that profile (nil when untested).
type PublicProfile struct {
	ID                string            `json:"id"                db:"id"`
	Nickname          string            `json:"nickname"          db:"nickname"`
	Image             string            `json:"image"             db:"image"`
	VoiceType         VoiceType         `json:"voiceType"         db:"voice_type"`
	MusicalAttributes Attributes        `json:"musicalAttributes" db:"musical_attributes"`
	MusicIdentity     string            `json:"musicIdentity"     db:"music_identity"`
	City              string            `json:"city"              db:"city"`
	Country           string            `json:"country"           db:"country"`
	AvatarSeed        string            `json:"mumeSeed"          db:"avatar_seed"`
	ConnectionStatus  *ConnectionStatus `json:"connectionStatus"  db:"connection_status"`
}

type VoiceType string

const (
	VoiceMale   VoiceType = "MALE"
	VoiceFemale VoiceType = "FEMALE"
	VoiceAny    VoiceType = "ANY"
)

// Valid reports whether v is one of the three accepted voice types.
func (v VoiceType) Valid() bool {
	switch v {
	case VoiceMale, VoiceFemale, VoiceAny:
		return true
	}
	return false
}

type SourceType string

const (
	SourceTextList   SourceType = "text_list"
	SourceSpotifyURL SourceType = "spotify_url"
)

// RequiredAttributes is how many musical attributes a profile must pick.
const RequiredAttributes = 4

// AttributeVocabulary is the fixed set musical attributes are chosen from.
var AttributeVocabulary = []string{
	"Introverted", "Extroverted", "Sarcastic", "Athletic", "Creative",
	"Bookworm", "Gamer", "Foodie", "Outdoorsy", "Tech-savvy",
	"Chill", "Ambitious", "Practical", "Dreamer", "Organized",
	"Spontaneous", "Reliable", "Friendly", "Competitive", "Artistic",
	"Coffee Lover", "Traveler", "Animal Lover", "Movie Buff", "Night Owl",
}

// IsAttribute reports whether s belongs to AttributeVocabulary.
func IsAttribute(s string) bool {
	for _, a := range AttributeVocabulary {
		if a == s {
			return true
		}
	}
	return false
}

// Attributes is an ordered tag list stored as a JSON array in a TEXT column.
type Attributes []string

// Value implements driver.Valuer.
func (a Attributes) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "", nil
	}
	b, err := json.Marshal([]string(a))
	if err != nil {
		return nil, fmt.Errorf("model: encoding attributes: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner. Older rows may hold a comma separated list
// instead of JSON, so both forms are accepted.
func (a *Attributes) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case nil:
		*a = nil
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("model: cannot scan %T into Attributes", src)
	}

	s = strings.TrimSpace(s)
	if s == "" {
		*a = nil
		return nil
	}
	if strings.HasPrefix(s, "[") {
		var out []string
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return fmt.Errorf("model: decoding attributes: %w", err)
		}
		*a = out
		return nil
	}

	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*a = out
	return nil
}
