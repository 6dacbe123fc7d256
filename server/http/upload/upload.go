// Package upload turns a streamed multipart submission into a post draft,
// storing attached and fetched files as their parts arrive.
package upload

import (
	"context"
	"io"
	"io/ioutil"
	"mime/multipart"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/c2h5oh/datasize"
	"github.com/diamondburned/smolblog/server/assets"
	"github.com/diamondburned/smolblog/smolblog"
)

// Field names of the submission form.
const (
	FieldUsername  = "username"
	FieldContent   = "post_content"
	FieldAvatarURL = "avatar_url"
	FieldImage     = "post_image"
)

// ImageSuffix is the file name suffix that post images must have. Parts with
// any other file name are skipped.
const ImageSuffix = ".png"

type UploadConfig struct {
	MaxTextSize datasize.ByteSize `toml:"maxTextSize"`
}

func NewConfig() UploadConfig {
	return UploadConfig{
		MaxTextSize: 1 * datasize.MB,
	}
}

// Storer stores a stream under a new name.
type Storer interface {
	Store(r io.Reader, ext string) (smolblog.StoredAsset, error)
}

// AvatarFetcher downloads an avatar and stores it.
type AvatarFetcher interface {
	FetchAndStore(ctx context.Context, url string) (smolblog.StoredAsset, error)
}

// Demuxer dispatches the parts of a submission into a draft.
type Demuxer struct {
	Store  Storer
	Avatar AvatarFetcher

	MaxTextSize int64
	MaxFileSize int64
}

// Demux reads all parts in arrival order and returns the resulting draft. The
// draft is returned even on error so that the caller knows which files were
// already written.
func (d Demuxer) Demux(ctx context.Context, mr *multipart.Reader) (smolblog.Draft, error) {
	var draft smolblog.Draft

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return draft, nil
		}
		if err != nil {
			return draft, smolblog.Wrap(smolblog.FormDecode, err, "Failed to read form")
		}

		err = d.demuxPart(ctx, &draft, part)
		part.Close()

		if err != nil {
			return draft, err
		}
	}
}

func (d Demuxer) demuxPart(ctx context.Context, draft *smolblog.Draft, part *multipart.Part) error {
	switch name := part.FormName(); name {
	case "":
		return smolblog.Errorf(smolblog.FormDecode, "form part is missing a field name")

	case FieldUsername:
		s, err := d.readText(part, name)
		if err != nil {
			return err
		}
		draft.SetUsername(s)

	case FieldContent:
		s, err := d.readText(part, name)
		if err != nil {
			return err
		}
		draft.SetContent(s)

	case FieldAvatarURL:
		s, err := d.readText(part, name)
		if err != nil {
			return err
		}

		a, ok, err := d.fetchAvatar(ctx, s)
		if err != nil {
			return err
		}
		if ok {
			draft.SetAvatar(a)
		}

	case FieldImage:
		a, ok, err := d.storeImage(part)
		if err != nil {
			return err
		}
		if ok {
			draft.SetImage(a)
		}
	}

	// Unknown fields are skipped. NextPart drains whatever we didn't read.
	return nil
}

func (d Demuxer) readText(part *multipart.Part, name string) (string, error) {
	b, err := ioutil.ReadAll(assets.NewLimitedReader(part, d.MaxTextSize))
	if err != nil {
		return "", smolblog.Wrapf(smolblog.FormDecode, err, "Failed to read %s", name)
	}

	if !utf8.Valid(b) {
		return "", smolblog.Errorf(smolblog.FormDecode, "%s is not valid UTF-8", name)
	}

	return string(b), nil
}

func (d Demuxer) fetchAvatar(ctx context.Context, avatarURL string) (smolblog.StoredAsset, bool, error) {
	// Only an empty value means no avatar. Anything else has to be a URL.
	if avatarURL == "" {
		return smolblog.StoredAsset{}, false, nil
	}

	u, err := url.Parse(strings.TrimSpace(avatarURL))
	if err != nil {
		return smolblog.StoredAsset{}, false, smolblog.Wrap(
			smolblog.Validation, err, "Invalid avatar_url",
		)
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return smolblog.StoredAsset{}, false, smolblog.Errorf(
			smolblog.Validation, "avatar_url must be an absolute http(s) URL",
		)
	}

	a, err := d.Avatar.FetchAndStore(ctx, u.String())
	if err != nil {
		if smolblog.KindOf(err) == smolblog.KindUnknown {
			err = smolblog.Wrap(smolblog.AvatarNetwork, err, "Failed to fetch avatar")
		}
		return smolblog.StoredAsset{}, false, err
	}

	return a, true, nil
}

func (d Demuxer) storeImage(part *multipart.Part) (smolblog.StoredAsset, bool, error) {
	if !strings.HasSuffix(part.FileName(), ImageSuffix) {
		return smolblog.StoredAsset{}, false, nil
	}

	r, err := assets.Sniff(part, d.MaxFileSize)
	if err != nil {
		return smolblog.StoredAsset{}, false, smolblog.Wrap(
			smolblog.FormDecode, err, "Failed to read post_image",
		)
	}

	if r.Empty() {
		return smolblog.StoredAsset{}, false, nil
	}

	// The file name is only a hint; the content has to agree with it.
	if ctype := r.ContentType(); ctype != "image/png" {
		return smolblog.StoredAsset{}, false, smolblog.Wrap(
			smolblog.Validation, assets.ErrUnsupportedType{ContentType: ctype}, "Invalid post_image",
		)
	}

	a, err := d.Store.Store(r, "png")
	if err != nil {
		if smolblog.KindOf(err) == smolblog.KindUnknown {
			err = smolblog.Wrap(smolblog.FormDecode, err, "Failed to read post_image")
		}
		return smolblog.StoredAsset{}, false, err
	}

	return a, true, nil
}
