package models

import (
	"time"

	"gorm.io/datatypes"
)

// Proposal is an accepted project proposal kept as part of the comparison corpus.
type Proposal struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Title           string         `gorm:"size:255;not null;index" json:"title"`
	AbstractText    string         `gorm:"type:text;not null" json:"abstract_text"`
	StudentUsername string         `gorm:"size:128;index" json:"student_username"`
	Fingerprint     datatypes.JSON `gorm:"type:json" json:"fingerprint"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
