package models

import "time"

// User is a record in users.json. The map key is the username.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"isAdmin"`
}

// UserView is a user as shown to administrators; the password is never included.
type UserView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"isAdmin"`
}

// UserSettings is the per-user settings.json document.
type UserSettings struct {
	Theme  string `json:"theme,omitempty"`
	Design string `json:"design,omitempty"`
}

// DefaultUserSettings returns the settings written for new users.
func DefaultUserSettings() UserSettings {
	return UserSettings{Theme: "light", Design: "default"}
}

// StandardProfilePicture is the picture assigned to new profiles.
const StandardProfilePicture = "static/img/standard_profile_picture.png"

// Profile is the per-user profile.json document. Keys match the stored data format.
type Profile struct {
	Picture  string `json:"profilbild"`
	Age      int    `json:"alter"`
	City     string `json:"wohnort"`
	Country  string `json:"land"`
	PostCode string `json:"plz"`
	AboutMe  string `json:"aboutme"`
}

// DefaultProfile returns the profile written for new users.
func DefaultProfile() Profile {
	return Profile{Picture: StandardProfilePicture}
}

// ActivityEntry is one line of a user's logs.json.
type ActivityEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
}
