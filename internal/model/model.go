// Package model defines the editorial records shared by the store, the
// archive and the publish protocol: authors, articles and archived articles.
//
// Identity is a canonical string everywhere. Callers may hold ids that were
// originally numeric; NormalizeID is applied once at the store boundary so
// comparisons never need to coerce at lookup time.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Category is the closed set of article sections.
type Category string

const (
	CategoryActualidad  Category = "Actualidad"
	CategoryCronicas    Category = "Crónicas"
	CategoryEntrevistas Category = "Entrevistas"
	CategoryOpinion     Category = "Opinión"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryActualidad, CategoryCronicas, CategoryEntrevistas, CategoryOpinion:
		return true
	}
	return false
}

// Categories returns all categories in display order.
func Categories() []Category {
	return []Category{CategoryActualidad, CategoryCronicas, CategoryEntrevistas, CategoryOpinion}
}

// SystemRole is an author's permission level.
type SystemRole string

const (
	RoleAdmin  SystemRole = "ADMIN"
	RoleEditor SystemRole = "EDITOR"
)

// Author is a member of the editorial team. The visible Role label
// ("Director", "Redacción") is independent of the SystemRole permission.
type Author struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Role       string     `json:"role"`
	ImageURL   string     `json:"imageUrl,omitempty"`
	SystemRole SystemRole `json:"systemRole"`
}

// Validate checks required author fields.
func (a *Author) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("id is required")
	}
	if a.Name == "" {
		return fmt.Errorf("name is required")
	}
	if a.SystemRole != RoleAdmin && a.SystemRole != RoleEditor {
		return fmt.Errorf("systemRole must be ADMIN or EDITOR (got %q)", a.SystemRole)
	}
	return nil
}

// ChronicleResult is one participant/outcome pair of a chronicle
// ("Diego Urdiales" / "una oreja"). Order is meaningful.
type ChronicleResult struct {
	Bullfighter string `json:"bullfighter"`
	Result      string `json:"result"`
}

// Article is an editorial piece. Content is an opaque rich-text blob and may
// embed images as data URIs, so it can be arbitrarily large and is never
// interpreted here.
//
// The Bullfight* fields are only meaningful when Category is Crónicas. They
// keep the original wire names so published documents stay compatible with
// the static site that consumes them.
type Article struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Summary       string   `json:"summary"`
	Content       string   `json:"content"`
	ImageURL      string   `json:"imageUrl"`
	ContentImages []string `json:"contentImages"`
	Category      Category `json:"category"`
	AuthorID      string   `json:"authorId"`
	Date          string   `json:"date"`
	IsPublished   bool     `json:"isPublished"`

	BullfightLocation string            `json:"bullfightLocation,omitempty"`
	BullfightCattle   string            `json:"bullfightCattle,omitempty"`
	BullfightSummary  string            `json:"bullfightSummary,omitempty"`
	BullfightResults  []ChronicleResult `json:"bullfightResults,omitempty"`
}

// Validate checks required article fields.
func (a *Article) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("id is required")
	}
	if a.Title == "" {
		return fmt.Errorf("title is required")
	}
	if !a.Category.Valid() {
		return fmt.Errorf("unknown category %q", a.Category)
	}
	if a.AuthorID == "" {
		return fmt.Errorf("authorId is required")
	}
	return nil
}

// ArchivedArticle is an article as it stood when it was removed from the
// active set. Archived records are immutable; restore removes them wholesale.
type ArchivedArticle struct {
	Article

	ArchivedAt string `json:"archivedAt"`
	ArchivedBy string `json:"archivedBy"`
}

// SystemActor is the ArchivedBy sentinel for system-initiated archival.
const SystemActor = "system"

// NormalizeID canonicalizes an identifier to its trimmed string form.
// Applied once on ingestion so the store never compares mixed-type ids.
func NormalizeID(id string) string {
	return strings.TrimSpace(id)
}

// SameID reports whether two ids are equal after normalization.
func SameID(a, b string) bool {
	return NormalizeID(a) == NormalizeID(b)
}

// CanEditAuthor reports whether actor may modify target. Admins may edit any
// author; a non-admin may only edit their own record, and only the image
// field (imageOnly indicates the pending change touches nothing else).
// This is the whole authorization surface of the core; policy beyond this
// predicate belongs to the caller.
func CanEditAuthor(actor Author, target Author, imageOnly bool) bool {
	if actor.SystemRole == RoleAdmin {
		return true
	}
	return SameID(actor.ID, target.ID) && imageOnly
}

// PlaceholderAuthor is the display fallback for a dangling AuthorID (author
// deleted after the article was written). Never persisted.
func PlaceholderAuthor(id string) Author {
	return Author{
		ID:         NormalizeID(id),
		Name:       "Autor desconocido",
		Role:       "Redacción",
		SystemRole: RoleEditor,
	}
}

// Timestamp renders t in the format used throughout the published document.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
