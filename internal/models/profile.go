package models

import "time"

// Profile is the user-facing record kept in the profile directory.
// ID always equals the owning Identity's ID.
type Profile struct {
	ID          string    `bson:"_id" json:"id"`
	DisplayName string    `bson:"username" json:"username"`
	Email       string    `bson:"email" json:"email"`
	AvatarURL   string    `bson:"profile_image_url" json:"profile_image_url"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}
