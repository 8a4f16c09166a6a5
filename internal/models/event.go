package models

import "time"

// Event is a bookable happening with a date, venue, and ticket price.
type Event struct {
	BaseModel

	Name        string    `gorm:"size:100;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	EventDate   time.Time `gorm:"index;not null" json:"event_date"`
	ImageURL    string    `gorm:"size:255" json:"image_url"`
	Price       float64   `gorm:"type:decimal(10,2);not null" json:"price"`
	Venue       string    `gorm:"size:100;not null" json:"venue"`

	CategoryID *string   `gorm:"type:uuid;index" json:"category_id"`
	Category   *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Tags       []Tag     `gorm:"many2many:event_tags" json:"tags,omitempty"`

	Bookings []Booking `gorm:"foreignKey:EventID" json:"-"`
}

// IsUpcoming reports whether the event has not yet taken place.
func (e *Event) IsUpcoming(now time.Time) bool {
	return e.EventDate.After(now)
}
