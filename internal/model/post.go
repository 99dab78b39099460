// Package model defines the entity records shared between the local store,
// the remote document adapter, and the sync services.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Rating bounds. Half-star values are allowed, so the field is a float.
const (
	RatingMin = 0.0
	RatingMax = 5.0
)

// ErrInvalid wraps all record validation failures so callers can map them to
// a 400-class response without string matching.
var ErrInvalid = errors.New("invalid record")

// Post is a book review record. The same struct is persisted in the local
// SQLite mirror and in the remote "posts" document collection, keyed by ID in
// both.
type Post struct {
	// ID is a caller-generated UUID, globally unique across devices.
	ID string `bson:"_id" json:"id"`

	// OwnerID is the identity-provider user ID of the author.
	OwnerID string `bson:"ownerId" json:"ownerId"`

	// OwnerName is a snapshot of the author's display name taken at creation.
	// It is not kept in sync with later profile edits.
	OwnerName string `bson:"ownerName" json:"ownerName"`

	Title  string   `bson:"title" json:"title"`
	Author string   `bson:"author" json:"author"`
	Review string   `bson:"review" json:"review"`
	Rating float64  `bson:"rating" json:"rating"`
	Image  ImageRef `bson:"image" json:"image"`

	// CreatedAt is epoch milliseconds, assigned once at creation.
	CreatedAt int64 `bson:"createdAt" json:"createdAt"`
}

// Validate checks caller-supplied fields before a post reaches the sync
// layer. ID and CreatedAt are stamped by the service and not checked here.
func (p *Post) Validate() error {
	if strings.TrimSpace(p.OwnerID) == "" {
		return fmt.Errorf("%w: owner ID is required", ErrInvalid)
	}
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if strings.TrimSpace(p.Author) == "" {
		return fmt.Errorf("%w: author is required", ErrInvalid)
	}
	if strings.TrimSpace(p.Review) == "" {
		return fmt.Errorf("%w: review is required", ErrInvalid)
	}
	if p.Rating < RatingMin || p.Rating > RatingMax {
		return fmt.Errorf("%w: rating %.1f outside %.0f..%.0f", ErrInvalid, p.Rating, RatingMin, RatingMax)
	}
	return nil
}

// MatchesQuery reports whether the post's title or author contains q,
// case-insensitively. An empty query matches everything.
func (p *Post) MatchesQuery(q string) bool {
	if q == "" {
		return true
	}
	q = strings.ToLower(q)
	return strings.Contains(strings.ToLower(p.Title), q) ||
		strings.Contains(strings.ToLower(p.Author), q)
}

// NowMillis returns the current time as epoch milliseconds, the timestamp
// unit both stores use.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
