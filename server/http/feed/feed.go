// Package feed renders the post feed.
package feed

import (
	"bytes"
	_ "embed"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/diamondburned/smolblog/server/http/internal/handler"
	"github.com/diamondburned/smolblog/server/http/upload"
	"github.com/diamondburned/smolblog/smolblog"
	"github.com/dustin/go-humanize"
	"github.com/tdewolff/minify"
	"github.com/tdewolff/minify/css"
	"github.com/tdewolff/minify/html"
)

//go:embed feed.html
var feedHTML string

// runtime minifier
var minifier = func() (minifier *minify.M) {
	minifier = minify.New()
	minifier.AddFunc("text/css", css.Minify)
	minifier.AddFunc("text/html", html.Minify)
	return
}()

var tmpl = template.Must(
	template.New("feed").
		Funcs(template.FuncMap{
			// htmlTime formats the time for the datetime attribute.
			"htmlTime": func(t time.Time) string {
				return t.UTC().Format(time.RFC3339)
			},
			"humanizeTime": humanize.Time,
		}).
		Parse(feedHTML),
)

type renderCtx struct {
	Posts  []smolblog.PostView
	Fields fields
}

type fields struct {
	Username  string
	Content   string
	AvatarURL string
	Image     string
}

var formFields = fields{
	Username:  upload.FieldUsername,
	Content:   upload.FieldContent,
	AvatarURL: upload.FieldAvatarURL,
	Image:     upload.FieldImage,
}

// Render renders the feed page with the given posts, in the given order, into
// minified HTML. Errors are of kind Render.
func Render(w io.Writer, posts []smolblog.PostView) error {
	var b bytes.Buffer

	if err := tmpl.Execute(&b, renderCtx{posts, formFields}); err != nil {
		return smolblog.Wrap(smolblog.Render, err, "Failed to render feed")
	}

	if err := minifier.Minify("text/html", w, &b); err != nil {
		return smolblog.Wrap(smolblog.Render, err, "Failed to minify feed")
	}

	return nil
}

// Home renders all posts, latest first.
func Home(r handler.Request) (handler.Renderer, error) {
	posts, err := r.Posts.Posts(r.Context())
	if err != nil {
		return nil, err
	}

	// Render fully before writing anything, so a failure can still be sent as
	// an error response.
	var b bytes.Buffer

	if err := Render(&b, smolblog.Views(posts)); err != nil {
		return nil, err
	}

	return func(w http.ResponseWriter) error {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)

		_, err := b.WriteTo(w)
		return err
	}, nil
}
