package db

import (
	"context"

	"github.com/diamondburned/smolblog/smolblog"
)

const insertPost = `
	INSERT INTO blog_posts (username, content, image_path, avatar_path)
	VALUES (?, ?, ?, ?)
	RETURNING id`

// SavePost validates the draft and inserts it as a new post with a single
// statement. The database assigns the ID and creation time; only the ID is
// returned back. Files referenced by the draft must already be written.
func (d *Database) SavePost(ctx context.Context, draft smolblog.Draft) (*smolblog.Post, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	var post = smolblog.Post{
		Username:   *draft.Username,
		Content:    *draft.Content,
		ImagePath:  draft.ImagePath,
		AvatarPath: draft.AvatarPath,
	}

	err := d.QueryRowxContext(ctx, d.Rebind(insertPost),
		post.Username, post.Content, post.ImagePath, post.AvatarPath,
	).Scan(&post.ID)

	if err != nil {
		return nil, smolblog.Wrap(smolblog.Persistence, err, "Failed to save post")
	}

	return &post, nil
}

// Posts returns all posts, latest first. Posts created at the same time are
// ordered by descending ID.
func (d *Database) Posts(ctx context.Context) ([]smolblog.Post, error) {
	var posts = []smolblog.Post{}

	err := d.SelectContext(ctx, &posts, `
		SELECT id, username, content, created_at, image_path, avatar_path
		FROM   blog_posts
		ORDER  BY created_at DESC, id DESC`,
	)

	if err != nil {
		return nil, smolblog.Wrap(smolblog.Persistence, err, "Failed to query posts")
	}

	return posts, nil
}

// AssetRefs returns every image and avatar reference that a post holds.
func (d *Database) AssetRefs(ctx context.Context) ([]string, error) {
	var refs []string

	err := d.SelectContext(ctx, &refs, `
		SELECT image_path  FROM blog_posts WHERE image_path  IS NOT NULL
		UNION
		SELECT avatar_path FROM blog_posts WHERE avatar_path IS NOT NULL`,
	)

	if err != nil {
		return nil, smolblog.Wrap(smolblog.Persistence, err, "Failed to query asset references")
	}

	return refs, nil
}
