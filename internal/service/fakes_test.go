package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/mymume/internal/analyzer"
	"github.com/sakif/mymume/internal/apperror"
	"github.com/sakif/mymume/internal/geo"
	"github.com/sakif/mymume/internal/ingest"
	"github.com/sakif/mymume/internal/model"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeStore is an in-memory UserRepository and ConnectionRepository.
// Using a fake (not a mock framework) keeps the behaviour visible in one place.
type fakeStore struct {
	mu          sync.Mutex
	users       map[string]*model.User // keyed by internal ID
	bySubject   map[string]string      // subject → ID
	connections map[[2]string]*model.Connection
	nextID      int

	// set to a non-nil error to simulate a database failure
	upsertErr error
	updateErr error
	updates   []model.ProfileUpdate
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       make(map[string]*model.User),
		bySubject:   make(map[string]string),
		connections: make(map[[2]string]*model.Connection),
		nextID:      1,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (f *fakeStore) Upsert(ctx context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if id, ok := f.bySubject[user.Subject]; ok {
		existing := f.users[id]
		existing.Email = user.Email
		existing.Name = user.Name
		existing.Image = user.Image
		*user = *existing
		return nil
	}
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	f.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	user.SourceType = model.SourceSpotifyURL
	stored := *user
	f.users[user.ID] = &stored
	f.bySubject[user.Subject] = user.ID
	return nil
}

// addUser stores a user with the given profile and returns its ID.
func (f *fakeStore) addUser(subject string, p model.Profile) string {
	u := &model.User{Subject: subject}
	if err := f.Upsert(context.Background(), u); err != nil {
		panic(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID].Profile = p
	return u.ID
}

func (f *fakeStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) UpdateProfile(ctx context.Context, id string, upd model.ProfileUpdate) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	f.updates = append(f.updates, upd)

	p := &u.Profile
	if upd.Nickname != nil {
		p.Nickname = *upd.Nickname
	}
	if upd.VoiceType != nil {
		p.VoiceType = *upd.VoiceType
	}
	if upd.MusicalAttributes != nil {
		p.MusicalAttributes = *upd.MusicalAttributes
	}
	if upd.City != nil {
		p.City = *upd.City
	}
	if upd.Country != nil {
		p.Country = *upd.Country
	}
	if upd.PlaylistText != nil {
		p.PlaylistText = *upd.PlaylistText
	}
	if upd.PlaylistURL != nil {
		p.PlaylistURL = *upd.PlaylistURL
	}
	if upd.SourceType != nil {
		p.SourceType = *upd.SourceType
	}
	if upd.MusicIdentity != nil {
		p.MusicIdentity = *upd.MusicIdentity
	}
	if upd.AvatarSeed != nil {
		p.AvatarSeed = *upd.AvatarSeed
	}
	u.UpdatedAt = time.Now()
	cp := *u
	return &cp, nil
}

func (f *fakeStore) ResetProfile(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.Profile = model.Profile{SourceType: model.SourceSpotifyURL, AvatarSeed: u.AvatarSeed}
	return nil
}

func (f *fakeStore) ListPublicProfiles(ctx context.Context, viewerID string, limit int) ([]model.PublicProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.PublicProfile
	for id, u := range f.users {
		if id == viewerID || u.MusicIdentity == "" {
			continue
		}
		p := model.PublicProfile{ID: id, Nickname: u.Nickname, MusicIdentity: u.MusicIdentity, AvatarSeed: u.AvatarSeed}
		if c, ok := f.connections[[2]string{viewerID, id}]; ok {
			st := c.Status
			p.ConnectionStatus = &st
		}
		out = append(out, p)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) UpsertConnection(ctx context.Context, senderID, receiverID string, status model.ConnectionStatus) (*model.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]string{senderID, receiverID}
	c, ok := f.connections[key]
	if !ok {
		c = &model.Connection{ID: fmt.Sprintf("conn-%d", len(f.connections)+1), SenderID: senderID, ReceiverID: receiverID}
		f.connections[key] = c
	}
	c.Status = status
	cp := *c
	return &cp, nil
}

func (f *fakeStore) GetConnection(ctx context.Context, senderID, receiverID string) (*model.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.connections[[2]string{senderID, receiverID}]
	if !ok {
		return nil, apperror.NotFound("connection", senderID+"->"+receiverID)
	}
	cp := *c
	return &cp, nil
}

// fakeIngester returns a fixed corpus after reporting the given counts.
type fakeIngester struct {
	corpus string
	counts []int
	err    error
	calls  int
}

func (f *fakeIngester) Ingest(ctx context.Context, src ingest.Source, progress ingest.ProgressFunc) (string, error) {
	f.calls++
	for _, n := range f.counts {
		if progress != nil {
			progress(n)
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.corpus, nil
}

// fakeLocator answers every IP with loc and records what it was asked.
type fakeLocator struct {
	loc geo.Location
	ips []string
}

func (f *fakeLocator) Locate(ctx context.Context, ip string) geo.Location {
	f.ips = append(f.ips, ip)
	return f.loc
}

type fakeAnalyzer struct {
	result *analyzer.Result
	err    error
	got    string
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, corpus string) (*analyzer.Result, error) {
	f.got = corpus
	return f.result, f.err
}
