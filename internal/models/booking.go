package models

// Booking links a user to an event. The composite unique index enforces at
// most one booking per user per event at the database level.
type Booking struct {
	BaseModel

	UserID string `gorm:"type:uuid;not null;uniqueIndex:idx_bookings_user_event" json:"user_id"`
	User   *User  `gorm:"foreignKey:UserID" json:"-"`

	EventID string `gorm:"type:uuid;not null;uniqueIndex:idx_bookings_user_event" json:"event_id"`
	Event   *Event `gorm:"foreignKey:EventID" json:"event,omitempty"`
}
