// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes the database
//
// Services depend on small interfaces (repository.UserRepository, Ingester,
// Locator, Analyzer) rather than concrete types, so tests pass in fakes and
// main.go decides which implementation runs.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/mymume/internal/apperror"
	"github.com/sakif/mymume/internal/geo"
	"github.com/sakif/mymume/internal/ingest"
	"github.com/sakif/mymume/internal/model"
	"github.com/sakif/mymume/internal/repository"
)

const MaxNicknameLength = 40

// Ingester turns a validated source into a corpus. *ingest.Pipeline implements it.
type Ingester interface {
	Ingest(ctx context.Context, src ingest.Source, progress ingest.ProgressFunc) (string, error)
}

// Locator resolves a client IP to a best-effort location. *geo.Locator implements it.
type Locator interface {
	Locate(ctx context.Context, ip string) geo.Location
}

// ProfileService owns the user-editable profile: nickname, voice, attributes,
// location and the stored playlist corpus.
type ProfileService struct {
	users    repository.UserRepository
	ingester Ingester
	locator  Locator
	logger   *slog.Logger
}

func NewProfileService(users repository.UserRepository, ingester Ingester, locator Locator, logger *slog.Logger) *ProfileService {
	return &ProfileService{
		users:    users,
		ingester: ingester,
		locator:  locator,
		logger:   logger,
	}
}

// ProfileInput is a profile-field update as submitted by the client.
// Nil fields are absent from the request.
type ProfileInput struct {
	Nickname          *string  `json:"nickname"`
	VoiceType         *string  `json:"voiceType"`
	MusicalAttributes []string `json:"musicalAttributes"`
}

// IsEmpty reports whether the input carries no profile field at all.
func (in ProfileInput) IsEmpty() bool {
	return in.Nickname == nil && in.VoiceType == nil && in.MusicalAttributes == nil
}

// PlaylistView is what GET /api/playlist returns.
type PlaylistView struct {
	Nickname           string           `json:"nickname"`
	VoiceType          model.VoiceType  `json:"voiceType"`
	MusicalAttributes  model.Attributes `json:"musicalAttributes"`
	MusicIdentity      string           `json:"musicIdentity"`
	City               string           `json:"city"`
	Country            string           `json:"country"`
	AvatarSeed         string           `json:"mumeSeed"`
	IsSpotifyConnected bool             `json:"isSpotifyConnected"`
	Type               string           `json:"type,omitempty"`
	Content            string           `json:"content,omitempty"`
	URL                string           `json:"url,omitempty"`
}

// GetPlaylist returns the profile with whichever playlist source is stored.
// A text corpus wins over a bare URL.
func (s *ProfileService) GetPlaylist(ctx context.Context, userID string) (*PlaylistView, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/profile: loading %s: %w", userID, err)
	}

	view := &PlaylistView{
		Nickname:          user.Nickname,
		VoiceType:         user.VoiceType,
		MusicalAttributes: user.MusicalAttributes,
		MusicIdentity:     user.MusicIdentity,
		City:              user.City,
		Country:           user.Country,
		AvatarSeed:        seedFor(user.ID, user.AvatarSeed),
	}
	switch {
	case user.SourceType == model.SourceTextList && user.PlaylistText != "":
		view.Type = "text"
		view.Content = user.PlaylistText
	case user.PlaylistURL != "":
		view.Type = "spotify"
		view.URL = user.PlaylistURL
	}
	return view, nil
}

// UpdateProfile validates and stores profile fields. Setting a nickname also
// tries to detect the user's city from clientIP; the detected city (possibly
// empty) is returned.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, in ProfileInput, clientIP string) (string, error) {
	upd, err := validateProfileInput(in)
	if err != nil {
		return "", err
	}

	var city string
	if upd.Nickname != nil && s.locator != nil {
		loc := s.locator.Locate(ctx, clientIP)
		if loc.City != "" {
			city = loc.City
			upd.City = &loc.City
			if loc.Country != "" {
				upd.Country = &loc.Country
			}
		}
	}

	if _, err := s.users.UpdateProfile(ctx, userID, upd); err != nil {
		return "", fmt.Errorf("service/profile: updating %s: %w", userID, err)
	}

	s.logger.Info("profile updated",
		slog.String("userID", userID),
		slog.Bool("nickname", upd.Nickname != nil),
		slog.String("city", city),
	)
	return city, nil
}

func validateProfileInput(in ProfileInput) (model.ProfileUpdate, error) {
	var upd model.ProfileUpdate
	if in.IsEmpty() {
		return upd, apperror.ValidationFailed("nickname", "No profile fields to update")
	}

	if in.Nickname != nil {
		nick := strings.TrimSpace(*in.Nickname)
		if nick == "" {
			return upd, apperror.ValidationFailed("nickname", "Nickname cannot be empty")
		}
		if utf8.RuneCountInString(nick) > MaxNicknameLength {
			return upd, apperror.ValidationFailed("nickname",
				fmt.Sprintf("Nickname must be at most %d characters", MaxNicknameLength))
		}
		upd.Nickname = &nick
	}

	if in.VoiceType != nil {
		vt := model.VoiceType(*in.VoiceType)
		if !vt.Valid() {
			return upd, apperror.ValidationFailed("voiceType", "voiceType must be one of MALE, FEMALE, ANY")
		}
		upd.VoiceType = &vt
	}

	if in.MusicalAttributes != nil {
		attrs, err := validateAttributes(in.MusicalAttributes)
		if err != nil {
			return upd, err
		}
		upd.MusicalAttributes = &attrs
	}
	return upd, nil
}

// validateAttributes requires exactly RequiredAttributes distinct entries
// from the vocabulary. Order is kept as submitted.
func validateAttributes(in []string) (model.Attributes, error) {
	if len(in) != model.RequiredAttributes {
		return nil, apperror.ValidationFailed("musicalAttributes",
			fmt.Sprintf("Choose exactly %d musical attributes", model.RequiredAttributes))
	}
	seen := make(map[string]bool, len(in))
	for _, a := range in {
		if !model.IsAttribute(a) {
			return nil, apperror.ValidationFailed("musicalAttributes", fmt.Sprintf("Unknown musical attribute %q", a))
		}
		if seen[a] {
			return nil, apperror.ValidationFailed("musicalAttributes", fmt.Sprintf("Duplicate musical attribute %q", a))
		}
		seen[a] = true
	}
	return model.Attributes(in), nil
}

// SavePlaylistText stores pasted text verbatim and forgets any stored URL.
func (s *ProfileService) SavePlaylistText(ctx context.Context, userID, text string) error {
	empty := ""
	src := model.SourceTextList
	_, err := s.users.UpdateProfile(ctx, userID, model.ProfileUpdate{
		PlaylistText: &text,
		PlaylistURL:  &empty,
		SourceType:   &src,
	})
	if err != nil {
		return fmt.Errorf("service/profile: saving text playlist for %s: %w", userID, err)
	}
	return nil
}

// IngestPlaylist resolves src into a corpus and stores it. For URL sources
// progress receives running track counts; on failure nothing is stored.
//
// The stored source type is text_list in both cases, because what is kept is
// the corpus; the URL is remembered alongside for display.
func (s *ProfileService) IngestPlaylist(ctx context.Context, userID string, src ingest.Source, progress ingest.ProgressFunc) (string, error) {
	if !src.IsURL() {
		if err := s.SavePlaylistText(ctx, userID, src.Text); err != nil {
			return "", err
		}
		return src.Text, nil
	}

	corpus, err := s.ingester.Ingest(ctx, src, progress)
	if err != nil {
		return "", err
	}

	st := model.SourceTextList
	_, err = s.users.UpdateProfile(ctx, userID, model.ProfileUpdate{
		PlaylistURL:  &src.URL,
		PlaylistText: &corpus,
		SourceType:   &st,
	})
	if err != nil {
		return "", fmt.Errorf("service/profile: saving scraped playlist for %s: %w", userID, err)
	}

	s.logger.Info("playlist ingested",
		slog.String("userID", userID),
		slog.String("playlistID", src.PlaylistID),
		slog.Int("tracks", len(ingest.CorpusLines(corpus))),
	)
	return corpus, nil
}

// LocationResult is the detect-city response. Skipped is set when the stored
// location was already complete and no lookup happened.
type LocationResult struct {
	City    string `json:"city"`
	Country string `json:"country"`
	Skipped bool   `json:"skipped,omitempty"`
}

// DetectLocation fills in city and country from the client IP unless both
// are already known. Lookup failures leave the stored values untouched.
func (s *ProfileService) DetectLocation(ctx context.Context, userID, clientIP string) (*LocationResult, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/profile: loading %s: %w", userID, err)
	}
	if user.City != "" && user.Country != "" {
		return &LocationResult{City: user.City, Country: user.Country, Skipped: true}, nil
	}

	res := &LocationResult{City: user.City, Country: user.Country}
	if s.locator == nil {
		return res, nil
	}

	loc := s.locator.Locate(ctx, clientIP)
	if loc.IsZero() {
		s.logger.Warn("no location for client", slog.String("userID", userID))
		return res, nil
	}

	var upd model.ProfileUpdate
	if loc.City != "" {
		res.City = loc.City
		upd.City = &loc.City
	}
	if loc.Country != "" {
		res.Country = loc.Country
		upd.Country = &loc.Country
	}
	if _, err := s.users.UpdateProfile(ctx, userID, upd); err != nil {
		return nil, fmt.Errorf("service/profile: storing location for %s: %w", userID, err)
	}
	return res, nil
}

// Reset clears the profile so the user can start over. The avatar seed is kept.
func (s *ProfileService) Reset(ctx context.Context, userID string) error {
	if err := s.users.ResetProfile(ctx, userID); err != nil {
		return fmt.Errorf("service/profile: resetting %s: %w", userID, err)
	}
	s.logger.Info("profile reset", slog.String("userID", userID))
	return nil
}

// PublicProfiles returns the discovery feed for viewerID.
func (s *ProfileService) PublicProfiles(ctx context.Context, viewerID string) ([]model.PublicProfile, error) {
	profiles, err := s.users.ListPublicProfiles(ctx, viewerID, repository.PublicFeedLimit)
	if err != nil {
		return nil, fmt.Errorf("service/profile: listing public profiles: %w", err)
	}
	for i := range profiles {
		profiles[i].AvatarSeed = seedFor(profiles[i].ID, profiles[i].AvatarSeed)
	}
	return profiles, nil
}

// seedFor falls back to the user ID so every profile renders a stable avatar.
func seedFor(userID, seed string) string {
	if seed != "" {
		return seed
	}
	return userID
}
