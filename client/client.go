// Package client submits posts to a smolblog server.
package client

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/diamondburned/smolblog/server/http/upload"
	"github.com/pkg/errors"
)

// StatusCoder is an interface that ErrUnexpectedStatusCode implements.
type StatusCoder interface {
	StatusCode() int
}

// ErrGetStatusCode gets the status code from error, or returns orCode if it
// can't get any.
func ErrGetStatusCode(err error, orCode int) int {
	var scode StatusCoder
	if errors.As(err, &scode) {
		return scode.StatusCode()
	}
	return orCode
}

type ErrUnexpectedStatusCode struct {
	Code int
	Body string
}

func (err ErrUnexpectedStatusCode) StatusCode() int {
	return err.Code
}

func (err ErrUnexpectedStatusCode) Error() string {
	var errstr = fmt.Sprintf("Unexpected status code %d", err.Code)
	if err.Body != "" {
		errstr += ": " + err.Body
	}

	return errstr
}

// Client submits posts to a single host. Redirects are not followed, since the
// redirect after a submission is the result.
type Client struct {
	http.Client
	host  *url.URL
	agent string
}

// NewClient makes a new client for the given host URL.
func NewClient(host string) (*Client, error) {
	u, err := url.Parse(host)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to parse host URL")
	}

	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("host %q is not an absolute URL", host)
	}

	var client = &Client{
		Client: http.Client{
			Timeout: time.Minute,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		host: u,
	}

	return client, nil
}

func (c *Client) SetUserAgent(userAgent string) {
	c.agent = userAgent
}

// Host returns the stringified URL.
func (c *Client) Host() string {
	return c.host.String()
}

// Endpoint returns the absolute URL of the given path.
func (c *Client) Endpoint(path string) string {
	return strings.TrimSuffix(c.Host(), "/") + path
}

// Do sends the request and returns an ErrUnexpectedStatusCode for responses
// that are neither 2xx nor 3xx.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	// Override the UserAgent if we have one.
	if c.agent != "" {
		req.Header.Set("User-Agent", c.agent)
	}

	r, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}

	if r.StatusCode < 200 || r.StatusCode > 399 {
		// Start reading the body for the error.
		defer r.Body.Close()

		var unexp = ErrUnexpectedStatusCode{Code: r.StatusCode}

		b, err := ioutil.ReadAll(io.LimitReader(r.Body, 1024))
		if err == nil {
			body := strings.TrimSpace(string(b))
			if len(body) > 100 {
				body = body[:97] + "..."
			}
			unexp.Body = body
		}

		return nil, unexp
	}

	return r, nil
}

// Submission is a post to submit. Only Username and Content are required, and
// empty fields are not sent at all.
type Submission struct {
	Username  string
	Content   string
	AvatarURL string
	// ImageName is the file name of Image. It must end with .png for the
	// server to accept the image.
	ImageName string
	Image     io.Reader
}

// Submit streams the submission to the server and returns the location of the
// new post.
func (c *Client) Submit(ctx context.Context, s Submission) (string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeSubmission(mw, s))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint("/post"), pr)
	if err != nil {
		pr.Close()
		return "", errors.Wrap(err, "Failed to create request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	r, err := c.Do(req)
	// Unblock the writer if the request ended before the body was consumed.
	pr.Close()

	if err != nil {
		return "", err
	}
	defer r.Body.Close()

	if r.StatusCode != http.StatusSeeOther {
		return "", ErrUnexpectedStatusCode{Code: r.StatusCode}
	}

	loc, err := r.Location()
	if err != nil {
		return "", errors.Wrap(err, "Failed to get post location")
	}

	return loc.String(), nil
}

func writeSubmission(mw *multipart.Writer, s Submission) error {
	var fields = [][2]string{
		{upload.FieldUsername, s.Username},
		{upload.FieldContent, s.Content},
		{upload.FieldAvatarURL, s.AvatarURL},
	}

	for _, field := range fields {
		// Empty fields are left out.
		if field[1] == "" {
			continue
		}

		if err := mw.WriteField(field[0], field[1]); err != nil {
			return errors.Wrapf(err, "Failed to write %s", field[0])
		}
	}

	if s.Image != nil {
		w, err := mw.CreateFormFile(upload.FieldImage, s.ImageName)
		if err != nil {
			return errors.Wrap(err, "Failed to create image part")
		}

		if _, err := io.Copy(w, s.Image); err != nil {
			return errors.Wrap(err, "Failed to write image")
		}
	}

	return mw.Close()
}
