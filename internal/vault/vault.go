// Package vault orders, filters and formats vault items for display
package vault

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/allone-dev/allone/internal/api"
)

// AlbumSort is an album ordering offered by the album list
type AlbumSort string

const (
	SortByDateCreated AlbumSort = "Date created"
	SortByName        AlbumSort = "Name"
)

// ParseAlbumSort maps a user supplied label to an AlbumSort, defaulting to SortByDateCreated
func ParseAlbumSort(s string) AlbumSort {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "name", "title":
		return SortByName
	default:
		return SortByDateCreated
	}
}

// SortNotes returns notes with pinned notes first, each group newest first
func SortNotes(notes []api.Note) []api.Note {
	out := slices.Clone(notes)
	slices.SortStableFunc(out, func(a, b api.Note) int {
		if a.IsPinned != b.IsPinned {
			if a.IsPinned {
				return -1
			}
			return 1
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// SortAlbums returns albums ordered by the given sort. Date created is newest
// first, Name is case-insensitive ascending.
func SortAlbums(albums []api.Album, by AlbumSort) []api.Album {
	out := slices.Clone(albums)
	switch by {
	case SortByName:
		slices.SortStableFunc(out, func(a, b api.Album) int {
			return cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		})
	default:
		slices.SortStableFunc(out, func(a, b api.Album) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		})
	}
	return out
}

// ParseDate reads a backend date, either a plain day or a timestamp
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// SortDates returns dates in chronological order. Entries whose date cannot
// be parsed keep their relative order at the end.
func SortDates(dates []api.ImportantDate) []api.ImportantDate {
	out := slices.Clone(dates)
	slices.SortStableFunc(out, func(a, b api.ImportantDate) int {
		ta, errA := ParseDate(a.Date)
		tb, errB := ParseDate(b.Date)
		switch {
		case errA != nil && errB != nil:
			return 0
		case errA != nil:
			return 1
		case errB != nil:
			return -1
		}
		return ta.Compare(tb)
	})
	return out
}

// Upcoming returns the dates falling on or after the day of now, in chronological order
func Upcoming(dates []api.ImportantDate, now time.Time) []api.ImportantDate {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	var out []api.ImportantDate
	for _, date := range SortDates(dates) {
		t, err := ParseDate(date.Date)
		if err != nil {
			continue
		}
		ty, tm, td := t.Date()
		if !time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC).Before(today) {
			out = append(out, date)
		}
	}
	return out
}

// Search keeps the items whose text fields contain query, ignoring case.
// An empty query keeps everything.
func Search[T any](items []T, query string, fields func(T) []string) []T {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return items
	}

	var out []T
	for _, item := range items {
		for _, f := range fields(item) {
			if strings.Contains(strings.ToLower(f), query) {
				out = append(out, item)
				break
			}
		}
	}
	return out
}

// NoteFields are the searchable fields of a note
func NoteFields(n api.Note) []string { return []string{n.Title, n.Content} }

// CategoryFields are the searchable fields of a category
func CategoryFields(c api.Category) []string { return []string{c.Name, c.Description} }

// DateFields are the searchable fields of an important date
func DateFields(d api.ImportantDate) []string { return []string{d.Title, d.Description} }

// DocumentFields are the searchable fields of a document
func DocumentFields(d api.Document) []string { return []string{d.Title, d.FileType} }

// AlbumFields are the searchable fields of an album
func AlbumFields(a api.Album) []string { return []string{a.Title} }

// FormatFileSize renders a byte count as B, KB or MB
func FormatFileSize(bytes int64) string {
	switch {
	case bytes < 1024:
		return fmt.Sprintf("%d B", bytes)
	case bytes < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	}
}

// FormatLongDate renders a backend date as "Monday, January 2, 2006".
// Unparseable input is returned unchanged.
func FormatLongDate(s string) string {
	t, err := ParseDate(s)
	if err != nil {
		return s
	}
	return t.Format("Monday, January 2, 2006")
}

// FormatShortDate renders t as "Jan 2, 2006", or "" for the zero time
func FormatShortDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}

// FileKind labels a document by its MIME type
func FileKind(fileType string) string {
	ft := strings.ToLower(fileType)
	switch {
	case strings.Contains(ft, "pdf"):
		return "pdf"
	case strings.Contains(ft, "word"), strings.Contains(ft, "document"):
		return "document"
	case strings.Contains(ft, "sheet"), strings.Contains(ft, "excel"):
		return "spreadsheet"
	case strings.Contains(ft, "image"):
		return "image"
	default:
		return "file"
	}
}
