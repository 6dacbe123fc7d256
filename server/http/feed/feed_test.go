package feed

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/diamondburned/smolblog/smolblog"
)

func TestRender(t *testing.T) {
	now := time.Now()

	var posts = []smolblog.PostView{{
		ID:        2,
		Username:  "bob",
		Content:   "<script>alert(1)</script>",
		CreatedAt: now.Add(-3 * time.Minute),
		ImagePath: "/app/uploads/cat.png",
	}, {
		ID:         1,
		Username:   "alice",
		Content:    "hello",
		CreatedAt:  now.Add(-time.Hour),
		AvatarPath: "/app/uploads/alice.gif",
	}}

	var b bytes.Buffer
	if err := Render(&b, posts); err != nil {
		t.Fatal("Failed to render:", err)
	}

	html := b.String()

	for _, s := range []string{"post-1", "post-2", "alice", "bob", "3 minutes ago",
		"/app/uploads/cat.png", "/app/uploads/alice.gif", "post_content"} {

		if !strings.Contains(html, s) {
			t.Errorf("Missing %q in the rendered feed", s)
		}
	}

	if strings.Contains(html, "<script>alert") {
		t.Error("Post content is not escaped")
	}

	if strings.Index(html, "post-2") > strings.Index(html, "post-1") {
		t.Error("Posts are not rendered in the given order")
	}

	// Only one post has an image and one an avatar.
	if n := strings.Count(html, "/app/uploads/"); n != 2 {
		t.Error("Unexpected number of file references:", n)
	}
}

func TestRenderEmpty(t *testing.T) {
	var b bytes.Buffer
	if err := Render(&b, nil); err != nil {
		t.Fatal("Failed to render:", err)
	}

	if !strings.Contains(b.String(), "No posts yet.") {
		t.Fatal("Empty feed has no placeholder")
	}
}
