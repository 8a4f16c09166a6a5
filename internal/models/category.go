package models

// Category groups events under a single label.
type Category struct {
	BaseModel

	Name   string  `gorm:"size:50;uniqueIndex;not null" json:"name"`
	Events []Event `gorm:"foreignKey:CategoryID" json:"-"`
}
