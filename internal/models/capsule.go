package models

import "time"

// Visibility governs who may resolve a capsule at all, independent of its
// lock state.
type Visibility string

const (
	VisibilityPrivate   Visibility = "private"
	VisibilityPublic    Visibility = "public"
	VisibilityShareable Visibility = "shareable"
)

// Valid reports whether v is one of the three recognised visibility modes.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPrivate, VisibilityPublic, VisibilityShareable:
		return true
	default:
		return false
	}
}

// Capsule is a persisted time capsule record. All fields are immutable after
// creation; there is no edit flow. UnlockedHint is an advisory denormalised
// flag used only as a pre-filter for list rendering; the authoritative lock
// state is always recomputed from UnlockAt against a supplied instant.
type Capsule struct {
	ID           string     `db:"id" json:"id"`
	Slug         *string    `db:"slug" json:"slug,omitempty"`
	OwnerID      string     `db:"owner_id" json:"ownerId"`
	Title        string     `db:"title" json:"title"`
	Message      string     `db:"message" json:"message"`
	UnlockAt     time.Time  `db:"unlock_at" json:"unlockAt"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	Visibility   Visibility `db:"visibility" json:"visibility"`
	MediaRef     *string    `db:"media_ref" json:"mediaRef,omitempty"`
	UnlockedHint bool       `db:"is_unlocked" json:"-"`
}

// CapsuleDraft carries the author-supplied fields for a new capsule before
// validation.
type CapsuleDraft struct {
	Title      string
	Message    string
	UnlockAt   time.Time
	Visibility Visibility
	Media      *MediaDraft
}

// MediaDraft describes the optional single attachment of a draft.
type MediaDraft struct {
	FileName  string
	MimeType  string
	SizeBytes int64
}

// Viewer is the requesting party: a resolved identity (empty when anonymous)
// plus whether the request arrived through a share link.
type Viewer struct {
	Identity string
	HasSlug  bool
}

// Anonymous reports whether the viewer carries no identity.
func (v Viewer) Anonymous() bool {
	return v.Identity == ""
}

// ViewState is the evaluated lifecycle state of a capsule for a viewer.
type ViewState string

const (
	// StateNotFound covers both true absence and an unauthorized viewer; the
	// two must stay indistinguishable.
	StateNotFound ViewState = "not_found"
	StateLocked   ViewState = "locked"
	StateUnlocked ViewState = "unlocked"
)

// CountdownParts is the whole-unit breakdown of remaining time, floored so a
// live display never shows zero prematurely.
type CountdownParts struct {
	Days    int64 `json:"days"`
	Hours   int64 `json:"hours"`
	Minutes int64 `json:"minutes"`
	Seconds int64 `json:"seconds"`
}

// CapsuleView is the projection of a capsule safe to expose for a given state
// and viewer. Message and MediaRef are never populated while locked.
type CapsuleView struct {
	State            ViewState       `json:"state"`
	ID               string          `json:"id,omitempty"`
	Slug             *string         `json:"slug,omitempty"`
	Title            string          `json:"title,omitempty"`
	Message          string          `json:"message,omitempty"`
	MediaRef         *string         `json:"mediaRef,omitempty"`
	MediaURL         string          `json:"mediaUrl,omitempty"`
	Visibility       Visibility      `json:"visibility,omitempty"`
	CreatedAt        time.Time       `json:"createdAt,omitempty"`
	UnlockAt         time.Time       `json:"unlockAt,omitempty"`
	SecondsRemaining int64           `json:"secondsRemaining"`
	Countdown        *CountdownParts `json:"countdown,omitempty"`
	IsOwner          bool            `json:"isOwner,omitempty"`
}

// Pagination describes list paging metadata in responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}
