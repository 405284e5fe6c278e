package scan

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dhowden/tag"

	"smj-library/internal/model"
)

// ReadTrack parses the tags of the media file at path. The URI and
// modification time are filled in by the scanner.
func ReadTrack(path string) (model.Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Track{}, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return model.Track{}, err
	}
	return fromMetadata(m, path), nil
}

func fromMetadata(m tag.Metadata, path string) model.Track {
	title := m.Title()
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	trackNo, numTracks := m.Track()
	discNo, numDiscs := m.Disc()

	var date string
	if y := m.Year(); y > 0 {
		date = strconv.Itoa(y)
	}

	t := model.Track{
		Name:      title,
		Artists:   artists(m.Artist()),
		Composers: artists(m.Composer()),
		Genre:     strings.TrimSpace(m.Genre()),
		TrackNo:   trackNo,
		DiscNo:    discNo,
		Date:      date,
		Comment:   strings.TrimSpace(m.Comment()),
	}
	if album := strings.TrimSpace(m.Album()); album != "" {
		t.Album = &model.Album{
			Name:      album,
			Artists:   artists(m.AlbumArtist()),
			NumTracks: numTracks,
			NumDiscs:  numDiscs,
			Date:      date,
		}
	}
	return t
}

// artists turns a tag value into artists. Multiple names are separated by
// ';' as written by most taggers.
func artists(value string) []model.Artist {
	var out []model.Artist
	for _, name := range strings.Split(value, ";") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, model.Artist{Name: name})
		}
	}
	return out
}
