package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/dearfuture/capsule-api/internal/models"
	appErrors "github.com/dearfuture/capsule-api/pkg/errors"
)

// The access evaluator is the single place deciding what a capsule's state is
// and which fields a viewer may see. It is a set of pure functions: no clock
// reads, no I/O, every decision derives from the supplied instant, so retried
// or repeated evaluations are always safe and bit-identical.

// Evaluate computes the visibility state and field projection of a capsule
// record for a viewer at the given instant.
//
// Authorization runs first: an absent record, or a private capsule evaluated
// by anyone but its owner, yields a NotFound view so that existence is not
// observable. A shareable capsule resolves for its owner and for anyone who
// reached it directly by id or slug, but is excluded from listings elsewhere.
//
// The lock state is a pure function of unlockAt versus now. The boundary is
// inclusive of unlock: now == unlockAt is Unlocked. A stored unlocked hint is
// never consulted here.
func Evaluate(record *models.Capsule, viewer models.Viewer, now time.Time) models.CapsuleView {
	if record == nil {
		return models.CapsuleView{State: models.StateNotFound}
	}
	isOwner := !viewer.Anonymous() && viewer.Identity == record.OwnerID
	if record.Visibility == models.VisibilityPrivate && !isOwner {
		return models.CapsuleView{State: models.StateNotFound}
	}

	view := models.CapsuleView{
		ID:         record.ID,
		Title:      record.Title,
		Visibility: record.Visibility,
		CreatedAt:  record.CreatedAt,
		UnlockAt:   record.UnlockAt,
		IsOwner:    isOwner,
	}
	if isOwner {
		view.Slug = record.Slug
	}

	if now.Before(record.UnlockAt) {
		view.State = models.StateLocked
		view.SecondsRemaining = secondsUntil(record.UnlockAt, now)
		parts := Countdown(record.UnlockAt, now)
		view.Countdown = &parts
		return view
	}

	view.State = models.StateUnlocked
	view.Message = record.Message
	view.MediaRef = record.MediaRef
	view.SecondsRemaining = 0
	return view
}

// Countdown returns the whole-unit breakdown of time remaining until
// unlockAt. Units are floored, never rounded, so a live display only reaches
// zero once the capsule is actually unlockable; past instants clamp to zero.
func Countdown(unlockAt, now time.Time) models.CountdownParts {
	total := secondsUntil(unlockAt, now)
	return models.CountdownParts{
		Days:    total / 86400,
		Hours:   (total % 86400) / 3600,
		Minutes: (total % 3600) / 60,
		Seconds: total % 60,
	}
}

func secondsUntil(unlockAt, now time.Time) int64 {
	remaining := unlockAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int64(remaining / time.Second)
}

// Draft validation limits. Media limits match the upload form: one file of at
// most 50 MiB, images or videos only.
const (
	MaxMediaSizeBytes = 50 * 1024 * 1024
)

var allowedMediaPrefixes = []string{"image/", "video/"}

// ValidateDraft checks every draft field and reports all violations at once,
// one error per field, rather than failing fast on the first.
func ValidateDraft(draft models.CapsuleDraft, now time.Time) []appErrors.FieldError {
	var errs []appErrors.FieldError

	if strings.TrimSpace(draft.Title) == "" {
		errs = append(errs, appErrors.FieldError{Field: "title", Message: "title is required"})
	}
	if strings.TrimSpace(draft.Message) == "" {
		errs = append(errs, appErrors.FieldError{Field: "message", Message: "message is required"})
	}
	switch {
	case draft.UnlockAt.IsZero():
		errs = append(errs, appErrors.FieldError{Field: "unlockAt", Message: "unlock date is required"})
	case !draft.UnlockAt.After(now):
		errs = append(errs, appErrors.FieldError{Field: "unlockAt", Message: "unlock date must be in the future"})
	}
	if !draft.Visibility.Valid() {
		errs = append(errs, appErrors.FieldError{Field: "visibility", Message: "visibility must be private, public or shareable"})
	}
	if draft.Media != nil {
		if draft.Media.SizeBytes > MaxMediaSizeBytes {
			errs = append(errs, appErrors.FieldError{Field: "media", Message: fmt.Sprintf("media exceeds %d bytes limit", MaxMediaSizeBytes)})
		}
		if !allowedMediaType(draft.Media.MimeType) {
			errs = append(errs, appErrors.FieldError{Field: "media", Message: "media must be an image or a video"})
		}
	}

	return errs
}

func allowedMediaType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	for _, prefix := range allowedMediaPrefixes {
		if strings.HasPrefix(mimeType, prefix) {
			return true
		}
	}
	return false
}
