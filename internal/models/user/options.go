package models

import "strings"

func WithFullName(name string) UserOption {
	return func(u *User) { u.FullName = strings.TrimSpace(name) }
}

func WithPhoto(url string) UserOption {
	return func(u *User) { u.Photo = strings.TrimSpace(url) }
}

func WithDescription(desc string) UserOption {
	return func(u *User) { u.Description = desc }
}

// WithProfile applies the non-nil profile fields.
func WithProfile(name, photo, desc *string) UserOption {
	return func(u *User) {
		if name != nil {
			WithFullName(*name)(u)
		}
		if photo != nil {
			WithPhoto(*photo)(u)
		}
		if desc != nil {
			WithDescription(*desc)(u)
		}
	}
}
