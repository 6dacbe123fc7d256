// Package smolblog contains the types shared by the blog's storage, ingestion
// and rendering layers.
package smolblog

import (
	"time"
)

// Post is a single persisted blog post. Posts are never changed once created.
type Post struct {
	ID         int64     `json:"id"          db:"id"`
	Username   string    `json:"username"    db:"username"`
	Content    string    `json:"content"     db:"content"`
	CreatedAt  time.Time `json:"created_at"  db:"created_at"`
	ImagePath  *string   `json:"image_path"  db:"image_path"`
	AvatarPath *string   `json:"avatar_path" db:"avatar_path"`
}

// PostView is the display form of a post. Absent paths are empty strings, so
// templates only ever have to check for emptiness.
type PostView struct {
	ID         int64
	Username   string
	Content    string
	CreatedAt  time.Time
	ImagePath  string
	AvatarPath string
}

// View converts the post into its display form.
func (p Post) View() PostView {
	return PostView{
		ID:         p.ID,
		Username:   p.Username,
		Content:    p.Content,
		CreatedAt:  p.CreatedAt,
		ImagePath:  deref(p.ImagePath),
		AvatarPath: deref(p.AvatarPath),
	}
}

// Views converts a list of posts into their display forms while keeping the
// order.
func Views(posts []Post) []PostView {
	var views = make([]PostView, len(posts))
	for i, post := range posts {
		views[i] = post.View()
	}
	return views
}

// Anchor returns the fragment ID used to locate the post in the feed.
func (v PostView) Anchor() string {
	return PostAnchor(v.ID)
}

// StoredAsset is a file that was written into the upload directory.
type StoredAsset struct {
	// Name is the generated file name, which is unique.
	Name string
	// Size is the number of bytes written.
	Size int64
	// Ref is the reference to the file that is stored in a post. It is the
	// serving path joined with the name.
	Ref string
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func strptr(s string) *string {
	cpy := s
	return &cpy
}
