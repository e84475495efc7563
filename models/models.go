package models

import (
	"time"

	"gorm.io/datatypes"
)

// Run is one invocation of an editor over a file scope
type Run struct {
	ID     string `gorm:"primaryKey;type:varchar(36)"`
	Editor string `gorm:"type:varchar(100);not null"`
	Root   string `gorm:"type:text"`

	// Editor arguments (path expression, value)
	Params datatypes.JSON `gorm:"type:jsonb"`

	// Dry runs leave files untouched
	Committed bool `gorm:"default:false"`

	// Statistics
	FilesScanned  int `gorm:"default:0"`
	FilesModified int `gorm:"default:0"`
	FilesFailed   int `gorm:"default:0"`

	StartedAt time.Time `gorm:"autoCreateTime;index"`
	EndedAt   *time.Time

	// Relationships
	Edits []Edit `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
}

// Edit is the change a run made, or would make, to one file
type Edit struct {
	ID    string `gorm:"primaryKey;type:varchar(36)"`
	RunID string `gorm:"type:varchar(36);index;not null"`
	File  string `gorm:"type:text;not null"`

	// Checksums for validation
	BaseDigest  string `gorm:"type:varchar(64)"` // SHA256 of original
	AfterDigest string `gorm:"type:varchar(64)"` // SHA256 of modified

	Diff string `gorm:"type:text"`

	// Matched nodes as reported by the editor
	Matches datatypes.JSON `gorm:"type:jsonb"`

	Applied    bool   `gorm:"default:false"`
	BackupPath string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName customizations for cleaner names
func (Run) TableName() string  { return "runs" }
func (Edit) TableName() string { return "edits" }
