package domain

// User represents the authenticated identity received from the backend.
// The subsystem treats it as immutable except for LastNavigationPath,
// which the surrounding application updates as the user moves around.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role"`
	Status       string `json:"status,omitempty"`
	ProfileImage string `json:"profile_image,omitempty"`

	// Legacy payload variants still emitted by older backend versions.
	Avatar   string `json:"avatar,omitempty"`
	ImageURL string `json:"image_url,omitempty"`

	LastNavigationPath string `json:"last_navigation_path,omitempty"`
}

// Normalize folds the legacy avatar fields into the canonical ProfileImage
// field. First non-empty value wins; the legacy fields are cleared so only
// one representation is ever persisted.
func (u *User) Normalize() {
	if u == nil {
		return
	}
	if u.ProfileImage == "" {
		if u.Avatar != "" {
			u.ProfileImage = u.Avatar
		} else if u.ImageURL != "" {
			u.ProfileImage = u.ImageURL
		}
	}
	u.Avatar = ""
	u.ImageURL = ""
}

func (u *User) IsActive() bool {
	return u != nil && (u.Status == "" || u.Status == "active")
}
