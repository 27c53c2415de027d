package database

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/kozaktomas/punch-kiosk/internal/gallery"
)

// Problem describes an identity row that could not be turned into a gallery entry.
type Problem struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// BuildGallery decodes identity rows into gallery entries. Rows without an
// encoding or with an encoding of the wrong size are reported, not returned.
func BuildGallery(rows []Identity, dim int) ([]gallery.Entry, []Problem) {
	entries := make([]gallery.Entry, 0, len(rows))
	var problems []Problem

	for _, row := range rows {
		if !row.HasEncoding() {
			problems = append(problems, Problem{ID: row.ID, Name: row.Name, Reason: "no encoding"})
			continue
		}

		embedding := row.Embedding
		if len(embedding) == 0 {
			decoded, err := gallery.DecodeEmbedding(row.Encoding, dim)
			if err != nil {
				problems = append(problems, Problem{ID: row.ID, Name: row.Name, Reason: err.Error()})
				continue
			}
			embedding = decoded
		} else if len(embedding) != dim {
			reason := fmt.Sprintf("%v: got %d values, want %d", gallery.ErrDimensionMismatch, len(embedding), dim)
			problems = append(problems, Problem{ID: row.ID, Name: row.Name, Reason: reason})
			continue
		}

		entries = append(entries, gallery.Entry{
			ID:          row.ID,
			Name:        row.Name,
			Designation: row.Designation,
			Embedding:   embedding,
			Threshold:   row.Threshold,
		})
	}

	return entries, problems
}

// GalleryLoader adapts an IdentityReader into a gallery.Source.
type GalleryLoader struct {
	Reader IdentityReader
	Dim    int
}

// FetchGallery reads every identity and decodes the usable ones.
func (l *GalleryLoader) FetchGallery(ctx context.Context) ([]gallery.Entry, error) {
	if l.Reader == nil {
		return nil, errors.New("gallery loader has no identity reader")
	}

	rows, err := l.Reader.ListIdentities(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing identities: %w", err)
	}

	entries, problems := BuildGallery(rows, l.Dim)
	for _, p := range problems {
		if p.Reason == "no encoding" {
			continue
		}
		log.Printf("gallery: skipping identity %d: %s", p.ID, p.Reason)
	}
	return entries, nil
}
