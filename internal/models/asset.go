package models

import "time"

// AssetInfo represents metadata about a stored drawing.
type AssetInfo struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	URL         string    `json:"url"`
	UploadedAt  time.Time `json:"uploadedAt"`
}
