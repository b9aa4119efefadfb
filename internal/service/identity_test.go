package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/mymume/internal/analyzer"
	"github.com/sakif/mymume/internal/apperror"
	"github.com/sakif/mymume/internal/model"
)

func TestAnalyzeIdentity_OverwritesStoredIdentity(t *testing.T) {
	store := newFakeStore()
	id := store.addUser("u", model.Profile{PlaylistText: "A - B\nC - D", MusicIdentity: "old identity"})
	a := &fakeAnalyzer{result: &analyzer.Result{Text: "A nocturnal synth romantic.", Prompt: "p"}}
	svc := NewIdentityService(store, a, testLogger())

	res, err := svc.AnalyzeIdentity(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "A nocturnal synth romantic.", res.Text)
	assert.Equal(t, "A - B\nC - D", a.got)

	u, _ := store.GetUserByID(context.Background(), id)
	assert.Equal(t, "A nocturnal synth romantic.", u.MusicIdentity)
}

func TestAnalyzeIdentity_NoPlaylist(t *testing.T) {
	store := newFakeStore()
	id := store.addUser("u", model.Profile{PlaylistText: "  "})
	a := &fakeAnalyzer{}
	svc := NewIdentityService(store, a, testLogger())

	_, err := svc.AnalyzeIdentity(context.Background(), id)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	assert.Equal(t, "No text playlist found", err.Error())
	assert.Empty(t, a.got, "analyzer is not called")
}

func TestAnalyzeIdentity_RejectionKeepsOldIdentity(t *testing.T) {
	store := newFakeStore()
	id := store.addUser("u", model.Profile{PlaylistText: "short", MusicIdentity: "old identity"})
	svc := NewIdentityService(store, &fakeAnalyzer{err: apperror.NotAPlaylist("nope")}, testLogger())

	_, err := svc.AnalyzeIdentity(context.Background(), id)
	assert.True(t, errors.Is(err, apperror.ErrNotAPlaylist))

	u, _ := store.GetUserByID(context.Background(), id)
	assert.Equal(t, "old identity", u.MusicIdentity)
}
