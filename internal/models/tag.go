package models

// Tag is a free-form label attached to events.
type Tag struct {
	BaseModel

	Name   string  `gorm:"size:50;uniqueIndex;not null" json:"name"`
	Events []Event `gorm:"many2many:event_tags" json:"-"`
}
