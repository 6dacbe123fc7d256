package post

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/diamondburned/smolblog/server/http/internal/handler"
	"github.com/diamondburned/smolblog/server/http/internal/middleware"
	"github.com/diamondburned/smolblog/smolblog"
	"github.com/go-chi/chi"
)

// Mount mounts the submission endpoint. rateLimit is the number of
// submissions allowed per second per client.
func Mount(m handler.Middlewarer, rateLimit float64) http.Handler {
	mux := chi.NewMux()
	mux.With(middleware.RateLimit(rateLimit)).Post("/", m(CreatePost))

	return mux
}

// CreatePost parses the multipart submission, saves it as a new post and
// redirects to the post in the feed. Any failure discards the whole
// submission.
func CreatePost(r handler.Request) (handler.Renderer, error) {
	start := time.Now()

	p, err := createPost(r)
	r.Observer.RecordSubmission(time.Since(start), err)

	if err != nil {
		return nil, err
	}

	return r.Redirect(smolblog.PostURL(p.ID), http.StatusSeeOther), nil
}

func createPost(r handler.Request) (*smolblog.Post, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, smolblog.Wrap(smolblog.FormDecode, err, "Failed to read multipart form")
	}

	draft, err := r.Demuxer.Demux(r.Context(), mr)
	if err != nil {
		logOrphans(draft, err)
		return nil, err
	}

	p, err := r.Posts.SavePost(r.Context(), draft)
	if err != nil {
		logOrphans(draft, err)
		return nil, err
	}

	if replaced := draft.Replaced(); len(replaced) > 0 {
		log.Printf("Post %d replaced %d repeated file(s), orphaned\n", p.ID, len(replaced))
	}

	return p, nil
}

// logOrphans logs the files that were written for a submission that failed.
// They are left in place for the sweep to collect.
func logOrphans(draft smolblog.Draft, err error) {
	if len(draft.Assets) == 0 {
		return
	}

	log.Printf(
		"Submission failed after writing %d file(s), orphaned: %s (%v)\n",
		len(draft.Assets), strings.Join(draft.AssetNames(), ", "), err,
	)
}
