package models

import (
	posts "github.com/mnuddindev/resourcebase/internal/models/posts"
	user "github.com/mnuddindev/resourcebase/internal/models/user"
)

// RegisterModels lists every table the API migrates.
func RegisterModels() []interface{} {
	return []interface{}{
		&user.User{},
		&user.TagPreference{},
		&user.Notification{},
		&user.UserBadge{},
		&user.NewsletterSubscriber{},
		&posts.Category{},
		&posts.Post{},
		&posts.Resource{},
		&posts.PostResource{},
		&posts.Tag{},
		&posts.PostTag{},
		&posts.Vote{},
		&posts.Bookmark{},
		&posts.Comment{},
		&posts.PostView{},
	}
}

type (
	User         = user.User
	Notification = user.Notification
	Post         = posts.Post
	Resource     = posts.Resource
	Tag          = posts.Tag
)
