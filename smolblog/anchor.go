package smolblog

import "strconv"

// FeedPath is the path that the feed is served on and redirected to after
// posting.
const FeedPath = "/home"

// PostAnchor returns the HTML element ID of a post in the feed.
func PostAnchor(id int64) string {
	return "post-" + strconv.FormatInt(id, 10)
}

// PostURL returns the feed URL that jumps to the given post.
func PostURL(id int64) string {
	return FeedPath + "#" + PostAnchor(id)
}
