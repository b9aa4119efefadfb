package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/mymume/internal/apperror"
	"github.com/sakif/mymume/internal/geo"
	"github.com/sakif/mymume/internal/ingest"
	"github.com/sakif/mymume/internal/model"
)

func strp(s string) *string { return &s }

func newTestProfileService(store *fakeStore, ing *fakeIngester, loc *fakeLocator) *ProfileService {
	if ing == nil {
		ing = &fakeIngester{}
	}
	if loc == nil {
		loc = &fakeLocator{}
	}
	return NewProfileService(store, ing, loc, testLogger())
}

var fourAttrs = []string{"Chill", "Gamer", "Night Owl", "Foodie"}

// =========================================================================
// UpdateProfile
// =========================================================================

func TestUpdateProfile_NicknameDetectsCity(t *testing.T) {
	store := newFakeStore()
	id := store.addUser("u", model.Profile{})
	loc := &fakeLocator{loc: geo.Location{City: "Porto", Country: "Portugal"}}
	svc := newTestProfileService(store, nil, loc)

	city, err := svc.UpdateProfile(context.Background(), id, ProfileInput{Nickname: strp("  Mumu  ")}, "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, "Porto", city)
	assert.Equal(t, []string{"203.0.113.9"}, loc.ips)

	u, _ := store.GetUserByID(context.Background(), id)
	assert.Equal(t, "Mumu", u.Nickname, "nickname is trimmed")
	assert.Equal(t, "Porto", u.City)
	assert.Equal(t, "Portugal", u.Country)
}

func TestUpdateProfile_NoLookupWithoutNickname(t *testing.T) {
	store := newFakeStore()
	id := store.addUser("u", model.Profile{})
	loc := &fakeLocator{loc: geo.Location{City: "Porto"}}
	svc := newTestProfileService(store, nil, loc)

	city, err := svc.UpdateProfile(context.Background(), id, ProfileInput{
		VoiceType:         strp("FEMALE"),
		MusicalAttributes: fourAttrs,
	}, "203.0.113.9")
	require.NoError(t, err)
	assert.Empty(t, city)
	assert.Empty(t, loc.ips)

	u, _ := store.GetUserByID(context.Background(), id)
	assert.Equal(t, model.VoiceFemale, u.VoiceType)
	assert.Equal(t, model.Attributes(fourAttrs), u.MusicalAttributes)
}

func TestUpdateProfile_UnknownLocationKeepsGoing(t *testing.T) {
	store := newFakeStore()
	id := store.addUser("u", model.Profile{City: "Oslo"})
	svc := newTestProfileService(store, nil, &fakeLocator{})

	city, err := svc.UpdateProfile(context.Background(), id, ProfileInput{Nickname: strp("Nick")}, "")
	require.NoError(t, err)
	assert.Empty(t, city)

	u, _ := store.GetUserByID(context.Background(), id)
	assert.Equal(t, "Oslo", u.City, "an empty lookup does not clear the stored city")
}

func TestUpdateProfile_Validation(t *testing.T) {
	tests := []struct {
		name  string
		in    ProfileInput
		field string
	}{
		{"nothing to update", ProfileInput{}, "nickname"},
		{"blank nickname", ProfileInput{Nickname: strp("   ")}, "nickname"},
		{"long nickname", ProfileInput{Nickname: strp("abcdefghijabcdefghijabcdefghijabcdefghijX")}, "nickname"},
		{"bad voice", ProfileInput{VoiceType: strp("ROBOT")}, "voiceType"},
		{"lowercase voice", ProfileInput{VoiceType: strp("male")}, "voiceType"},
		{"three attributes", ProfileInput{MusicalAttributes: fourAttrs[:3]}, "musicalAttributes"},
		{"five attributes", ProfileInput{MusicalAttributes: append([]string{"Artistic"}, fourAttrs...)}, "musicalAttributes"},
		{"unknown attribute", ProfileInput{MusicalAttributes: []string{"Chill", "Gamer", "Night Owl", "Skater"}}, "musicalAttributes"},
		{"duplicate attribute", ProfileInput{MusicalAttributes: []string{"Chill", "Chill", "Gamer", "Foodie"}}, "musicalAttributes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			id := store.addUser("u", model.Profile{})
			svc := newTestProfileService(store, nil, nil)

			_, err := svc.UpdateProfile(context.Background(), id, tt.in, "")
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrValidation))

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.field, appErr.Field)
			assert.Empty(t, store.updates, "nothing is written when validation fails")
		})
	}
}

// =========================================================================
// Playlist
// =========================================================================

func TestIngestPlaylist_TextReplacesURL(t *testing.T) {
	store := newFakeStore()
	id := store.addUser("u", model.Profile{PlaylistURL: "https://open.spotify.com/playlist/old"})
	ing := &fakeIngester{}
	svc := newTestProfileService(store, ing, nil)

	src, err := ingest.ParseSource("A - B\nC - D", "")
	require.NoError(t, err)

	corpus, err := svc.IngestPlaylist(context.Background(), id, src, nil)
	require.NoError(t, err)
	assert.Equal(t, "A - B\nC - D", corpus)
	assert.Zero(t, ing.calls, "text never reaches the pipeline")

	u, _ := store.GetUserByID(context.Background(), id)
	assert.Equal(t, "A - B\nC - D", u.PlaylistText)
	assert.Empty(t, u.PlaylistURL)
	assert.Equal(t, model.SourceTextList, u.SourceType)
}

func TestIngestPlaylist_URLStoresCorpus(t *testing.T) {
	store := newFakeStore()
	id := store.addUser("u", model.Profile{})
	ing := &fakeIngester{
		corpus: "Artist A - Song One\nArtist B - Song Two\nArtist C - Song Three",
		counts: []int{1, 3},
	}
	svc := newTestProfileService(store, ing, nil)

	url := "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=x"
	src, err := ingest.ParseSource("", url)
	require.NoError(t, err)

	var seen []int
	corpus, err := svc.IngestPlaylist(context.Background(), id, src, func(n int) { seen = append(seen, n) })
	require.NoError(t, err)
	assert.Equal(t, ing.corpus, corpus)
	assert.Equal(t, []int{1, 3}, seen)

	u, _ := store.GetUserByID(context.Background(), id)
	assert.Equal(t, url, u.PlaylistURL)
	assert.Equal(t, ing.corpus, u.PlaylistText)
	assert.Equal(t, model.SourceTextList, u.SourceType)
}

func TestIngestPlaylist_FailureStoresNothing(t *testing.T) {
	store := newFakeStore()
	id := store.addUser("u", model.Profile{PlaylistText: "keep me"})
	ing := &fakeIngester{counts: []int{5}, err: apperror.Upstream("Failed to scrape playlist", errors.New("boom"))}
	svc := newTestProfileService(store, ing, nil)

	src, _ := ingest.ParseSource("", "https://open.spotify.com/playlist/abc")
	_, err := svc.IngestPlaylist(context.Background(), id, src, nil)
	assert.True(t, errors.Is(err, apperror.ErrUpstream))

	u, _ := store.GetUserByID(context.Background(), id)
	assert.Equal(t, "keep me", u.PlaylistText)
	assert.Empty(t, store.updates)
}

func TestGetPlaylist(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestProfileService(store, nil, nil)

	textID := store.addUser("text", model.Profile{
		Nickname:     "T",
		SourceType:   model.SourceTextList,
		PlaylistText: "A - B",
		PlaylistURL:  "https://open.spotify.com/playlist/x",
		AvatarSeed:   "seed",
	})
	urlID := store.addUser("url", model.Profile{
		SourceType:  model.SourceSpotifyURL,
		PlaylistURL: "https://open.spotify.com/playlist/y",
	})
	emptyID := store.addUser("empty", model.Profile{})

	v, err := svc.GetPlaylist(ctx, textID)
	require.NoError(t, err)
	assert.Equal(t, "text", v.Type)
	assert.Equal(t, "A - B", v.Content)
	assert.Empty(t, v.URL)
	assert.Equal(t, "seed", v.AvatarSeed)
	assert.False(t, v.IsSpotifyConnected)

	v, err = svc.GetPlaylist(ctx, urlID)
	require.NoError(t, err)
	assert.Equal(t, "spotify", v.Type)
	assert.Equal(t, "https://open.spotify.com/playlist/y", v.URL)
	assert.Equal(t, urlID, v.AvatarSeed, "missing seed falls back to the user id")

	v, err = svc.GetPlaylist(ctx, emptyID)
	require.NoError(t, err)
	assert.Empty(t, v.Type)

	_, err = svc.GetPlaylist(ctx, "ghost")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

// =========================================================================
// DetectLocation / Reset / PublicProfiles
// =========================================================================

func TestDetectLocation_SkipsWhenKnown(t *testing.T) {
	store := newFakeStore()
	id := store.addUser("u", model.Profile{City: "Oslo", Country: "Norway"})
	loc := &fakeLocator{loc: geo.Location{City: "Bergen", Country: "Norway"}}
	svc := newTestProfileService(store, nil, loc)

	res, err := svc.DetectLocation(context.Background(), id, "203.0.113.1")
	require.NoError(t, err)
	assert.Equal(t, &LocationResult{City: "Oslo", Country: "Norway", Skipped: true}, res)
	assert.Empty(t, loc.ips)
}

func TestDetectLocation_FillsMissingFields(t *testing.T) {
	store := newFakeStore()
	id := store.addUser("u", model.Profile{City: "Oslo"})
	svc := newTestProfileService(store, nil, &fakeLocator{loc: geo.Location{Country: "Norway"}})

	res, err := svc.DetectLocation(context.Background(), id, "203.0.113.1")
	require.NoError(t, err)
	assert.Equal(t, &LocationResult{City: "Oslo", Country: "Norway"}, res)

	u, _ := store.GetUserByID(context.Background(), id)
	assert.Equal(t, "Oslo", u.City)
	assert.Equal(t, "Norway", u.Country)
}

func TestDetectLocation_UnknownIsNotAnError(t *testing.T) {
	store := newFakeStore()
	id := store.addUser("u", model.Profile{})
	svc := newTestProfileService(store, nil, &fakeLocator{})

	res, err := svc.DetectLocation(context.Background(), id, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, &LocationResult{}, res)
	assert.Empty(t, store.updates)
}

func TestReset(t *testing.T) {
	store := newFakeStore()
	id := store.addUser("u", model.Profile{Nickname: "N", MusicIdentity: "I", AvatarSeed: "s"})
	svc := newTestProfileService(store, nil, nil)

	require.NoError(t, svc.Reset(context.Background(), id))

	u, _ := store.GetUserByID(context.Background(), id)
	assert.Empty(t, u.Nickname)
	assert.Empty(t, u.MusicIdentity)
	assert.Equal(t, "s", u.AvatarSeed)
	assert.Equal(t, model.SourceSpotifyURL, u.SourceType)
}

func TestPublicProfiles(t *testing.T) {
	store := newFakeStore()
	viewer := store.addUser("viewer", model.Profile{MusicIdentity: "me"})
	other := store.addUser("other", model.Profile{MusicIdentity: "them"})
	store.addUser("blank", model.Profile{})
	svc := newTestProfileService(store, nil, nil)

	profiles, err := svc.PublicProfiles(context.Background(), viewer)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, other, profiles[0].ID)
	assert.Equal(t, other, profiles[0].AvatarSeed)
	assert.Nil(t, profiles[0].ConnectionStatus)
}
