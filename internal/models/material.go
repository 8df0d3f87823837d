package models

import "time"

// Material is an uploaded learning resource.
type Material struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Category    string    `db:"category" json:"category"`
	Subject     *string   `db:"subject" json:"subject,omitempty"`
	Grade       *string   `db:"grade" json:"grade,omitempty"`
	Bucket      string    `db:"bucket" json:"-"`
	Path        string    `db:"path" json:"-"`
	FileName    string    `db:"file_name" json:"file_name"`
	ContentType string    `db:"content_type" json:"content_type"`
	SizeBytes   int64     `db:"size_bytes" json:"size_bytes"`
	UploadedBy  string    `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	URL         string    `db:"-" json:"url"`
}

// MaterialFilter narrows material listings.
type MaterialFilter struct {
	Category string
	Subject  string
	Grade    string
}
