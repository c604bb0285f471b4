package models

import "time"

// MediaObject is the metadata row for a stored media blob. A capsule holds at
// most one; the blob itself lives in the filesystem store under FilePath.
type MediaObject struct {
	ID        string    `db:"id" json:"id"`
	OwnerID   string    `db:"owner_id" json:"ownerId"`
	FileName  string    `db:"file_name" json:"fileName"`
	MimeType  string    `db:"mime_type" json:"mimeType"`
	SizeBytes int64     `db:"size_bytes" json:"sizeBytes"`
	FilePath  string    `db:"file_path" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
