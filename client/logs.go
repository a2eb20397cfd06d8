package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"strconv"
	"time"

	transport "github.com/echotrace/echotrace-go/transport/http"
)

// Attachment is a file uploaded alongside a log entry.
type Attachment struct {
	Filename string
	Content  io.Reader
}

// CreateLog creates a journal entry, optionally with file attachments.
func (c *Client) CreateLog(ctx context.Context, entry LogEntry, files ...Attachment) (*LogEntry, error) {
	body, contentType, err := logForm(&entry, files)
	if err != nil {
		return nil, err
	}

	var created LogEntry
	resp, err := c.gateway.Post("/logs", body,
		withCtx(ctx),
		transport.WithContentType(contentType),
		transport.WithResponse(&created))
	if err != nil {
		return nil, done(resp, err)
	}
	return &created, nil
}

// LogByID fetches a single entry.
func (c *Client) LogByID(ctx context.Context, id string) (*LogEntry, error) {
	var entry LogEntry
	resp, err := c.gateway.Get("/logs/id/"+url.PathEscape(id), withCtx(ctx), transport.WithResponse(&entry))
	if err != nil {
		return nil, done(resp, err)
	}
	return &entry, nil
}

// Logs lists entries one page at a time. sort takes the service's
// "field,direction" form, e.g. "createdAt,desc".
func (c *Client) Logs(ctx context.Context, page, size int, sort string) (*LogPage, error) {
	if sort == "" {
		sort = "createdAt,desc"
	}

	var result LogPage
	resp, err := c.gateway.Get("/logs",
		withCtx(ctx),
		transport.WithQuery(map[string]string{
			"page": strconv.Itoa(page),
			"size": strconv.Itoa(size),
			"sort": sort,
		}),
		transport.WithResponse(&result))
	if err != nil {
		return nil, done(resp, err)
	}
	return &result, nil
}

// UpdateLog patches an entry. A nil entry updates attachments only.
func (c *Client) UpdateLog(ctx context.Context, id string, entry *LogEntry, files ...Attachment) (*LogEntry, error) {
	body, contentType, err := logForm(entry, files)
	if err != nil {
		return nil, err
	}

	var updated LogEntry
	resp, err := c.gateway.Patch("/logs/"+url.PathEscape(id), body,
		withCtx(ctx),
		transport.WithContentType(contentType),
		transport.WithResponse(&updated))
	if err != nil {
		return nil, done(resp, err)
	}
	return &updated, nil
}

// DeleteLog removes an entry.
func (c *Client) DeleteLog(ctx context.Context, id string) error {
	return done(c.gateway.Delete("/logs/"+url.PathEscape(id), withCtx(ctx)))
}

// FilterParams narrows a log search. Zero values are omitted.
type FilterParams struct {
	Keyword      string
	Tag          string
	BeforeDate   time.Time
	AfterDate    time.Time
	BetweenStart time.Time
	BetweenEnd   time.Time
	Page         int
	Size         int
	Sort         string
}

func (p FilterParams) query() map[string]string {
	q := map[string]string{
		"page": strconv.Itoa(p.Page),
	}
	size := p.Size
	if size <= 0 {
		size = 10
	}
	q["size"] = strconv.Itoa(size)
	if p.Sort != "" {
		q["sort"] = p.Sort
	}
	if p.Keyword != "" {
		q["keyword"] = p.Keyword
	}
	if p.Tag != "" {
		q["tag"] = p.Tag
	}
	setTime := func(key string, t time.Time) {
		if !t.IsZero() {
			q[key] = t.Format(localTimeLayout)
		}
	}
	setTime("beforeDate", p.BeforeDate)
	setTime("afterDate", p.AfterDate)
	setTime("betweenStart", p.BetweenStart)
	setTime("betweenEnd", p.BetweenEnd)
	return q
}

// FilterLogs searches entries by keyword, tag and date ranges.
func (c *Client) FilterLogs(ctx context.Context, params FilterParams) (*LogPage, error) {
	var result LogPage
	resp, err := c.gateway.Get("/logs/filter",
		withCtx(ctx),
		transport.WithQuery(params.query()),
		transport.WithResponse(&result))
	if err != nil {
		return nil, done(resp, err)
	}
	return &result, nil
}

// logForm builds the multipart form the log endpoints accept: a JSON part
// named "log" plus one "files" part per attachment.
func logForm(entry *LogEntry, files []Attachment) (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	if entry != nil {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="log"`)
		header.Set("Content-Type", "application/json")
		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		if err := json.NewEncoder(part).Encode(entry); err != nil {
			return nil, "", err
		}
	}

	for _, f := range files {
		part, err := w.CreateFormFile("files", f.Filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
