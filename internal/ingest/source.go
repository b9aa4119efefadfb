// Package ingest turns a playlist source, pasted text or a playlist URL,
// into a corpus: one "<artists> - <title>" line per track.
package ingest

import (
	"regexp"
	"strings"

	"github.com/sakif/mymume/internal/apperror"
	"github.com/sakif/mymume/internal/model"
)

var playlistIDPattern = regexp.MustCompile(`playlist/([a-zA-Z0-9]+)`)

// UnknownArtist replaces a missing artist so one bad row never fails a batch.
const UnknownArtist = "Unknown Artist"

// Source is a validated ingestion request. Exactly one of Text or
// PlaylistID is meaningful; IsURL tells which.
type Source struct {
	Text       string
	URL        string
	PlaylistID string
}

func (s Source) IsURL() bool {
	return s.PlaylistID != ""
}

// ParseSource validates the request before any network call happens.
// Text wins when both are supplied.
func ParseSource(text, url string) (Source, error) {
	if strings.TrimSpace(text) != "" {
		return Source{Text: text}, nil
	}
	if strings.TrimSpace(url) == "" {
		return Source{}, apperror.ValidationFailed("url", "URL or Text is required")
	}

	id, err := ExtractPlaylistID(url)
	if err != nil {
		return Source{}, err
	}
	return Source{URL: url, PlaylistID: id}, nil
}

// ExtractPlaylistID pulls the id out of any URL containing "playlist/<id>".
func ExtractPlaylistID(url string) (string, error) {
	m := playlistIDPattern.FindStringSubmatch(url)
	if m == nil {
		return "", apperror.ValidationFailed("url", "Invalid Spotify Playlist URL")
	}
	return m[1], nil
}

// FormatCorpus renders tracks in their original order.
func FormatCorpus(tracks []model.Track) string {
	var b strings.Builder
	for i, t := range tracks {
		if i > 0 {
			b.WriteByte('\n')
		}
		artists := strings.TrimSpace(t.Artists)
		if artists == "" {
			artists = UnknownArtist
		}
		b.WriteString(artists)
		b.WriteString(" - ")
		b.WriteString(strings.TrimSpace(t.Title))
	}
	return b.String()
}

// CorpusLines splits a stored corpus into its non-empty lines.
func CorpusLines(corpus string) []string {
	raw := strings.Split(corpus, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
