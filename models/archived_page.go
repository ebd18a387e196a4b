package models

import (
	"time"
)

// ArchivedPage represents one archived web page in the database.
// The business key is URL; ID is assigned by the store and never changes.
type ArchivedPage struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	URL      string    `gorm:"column:web_url;index;not null" json:"web_url"` // protocol-stripped domain + path
	Title    string    `gorm:"column:title;not null" json:"title"`
	FilePath string    `gorm:"column:file_path;not null" json:"file_path"` // absolute path of the stored artifact
	Created  time.Time `gorm:"column:created;not null" json:"created"`     // first insert, refreshed on re-archive
}

// TableName keeps the historical table name.
func (ArchivedPage) TableName() string {
	return "websites"
}

// PageListing is an ArchivedPage annotated with the result of an on-disk
// existence probe. FilePath may differ from the stored row when the probe
// resolved a directory to the file inside it.
type PageListing struct {
	ArchivedPage
	Exists bool `json:"exists"`
}
