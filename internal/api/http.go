package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const (
	defaultTimeout  = 30 * time.Second
	etapiTimeLayout = "2006-01-02 15:04:05.000Z07:00"
)

// HTTPClient talks to a Trilium-compatible ETAPI server.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewHTTPClient validates the server url and returns a client for it.
func NewHTTPClient(serverURL, token string) (*HTTPClient, error) {
	serverURL = strings.TrimSpace(serverURL)
	if serverURL == "" {
		return nil, &ValidationError{Field: "server_url", Msg: "must not be empty"}
	}
	u, err := url.Parse(serverURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &ValidationError{Field: "server_url", Msg: fmt.Sprintf("%q is not an absolute url", serverURL)}
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(u.String(), "/") + "/etapi",
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
	}, nil
}

type etapiNote struct {
	NoteID          string   `json:"noteId"`
	Title           string   `json:"title"`
	Type            string   `json:"type"`
	Mime            string   `json:"mime"`
	IsProtected     bool     `json:"isProtected"`
	ParentNoteIDs   []string `json:"parentNoteIds"`
	ChildNoteIDs    []string `json:"childNoteIds"`
	ParentBranchIDs []string `json:"parentBranchIds"`
	ChildBranchIDs  []string `json:"childBranchIds"`
	UTCDateCreated  string   `json:"utcDateCreated"`
	UTCDateModified string   `json:"utcDateModified"`
}

type etapiError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (n etapiNote) toNote() Note {
	return Note{
		ID:              n.NoteID,
		Title:           n.Title,
		Type:            n.Type,
		Mime:            n.Mime,
		IsProtected:     n.IsProtected,
		ParentIDs:       n.ParentNoteIDs,
		ChildIDs:        n.ChildNoteIDs,
		ParentBranchIDs: n.ParentBranchIDs,
		ChildBranchIDs:  n.ChildBranchIDs,
		Created:         parseTimestamp(n.UTCDateCreated),
		Modified:        parseTimestamp(n.UTCDateModified),
	}
}

// parseTimestamp accepts the server's "2006-01-02 15:04:05.000Z" style dates
// and anything else dateparse understands. Unparseable values become zero.
func parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse(etapiTimeLayout, raw); err == nil {
		return t.UTC()
	}
	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func (c *HTTPClient) GetNote(ctx context.Context, id string) (Note, error) {
	var raw etapiNote
	if err := c.do(ctx, "get note", "note", id, http.MethodGet, "/notes/"+url.PathEscape(id), nil, "", &raw); err != nil {
		return Note{}, err
	}
	return raw.toNote(), nil
}

// GetChildNotes resolves the parent's child ids one by one, preserving the
// server's branch order. Children deleted in between are skipped.
func (c *HTTPClient) GetChildNotes(ctx context.Context, parentID string) ([]Note, error) {
	parent, err := c.GetNote(ctx, parentID)
	if err != nil {
		return nil, err
	}

	children := make([]Note, 0, len(parent.ChildIDs))
	for _, id := range parent.ChildIDs {
		child, err := c.GetNote(ctx, id)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

func (c *HTTPClient) SearchNotes(ctx context.Context, params SearchParams) ([]SearchHit, error) {
	if strings.TrimSpace(params.Query) == "" {
		return nil, &ValidationError{Field: "query", Msg: "must not be empty"}
	}

	q := url.Values{}
	q.Set("search", params.Query)
	q.Set("fastSearch", strconv.FormatBool(params.FastSearch))
	q.Set("includeArchivedNotes", strconv.FormatBool(params.IncludeArchived))
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}

	var resp struct {
		Results []etapiNote `json:"results"`
	}
	if err := c.do(ctx, "search notes", "search", params.Query, http.MethodGet, "/notes?"+q.Encode(), nil, "", &resp); err != nil {
		return nil, err
	}

	hits := make([]SearchHit, 0, len(resp.Results))
	for _, n := range resp.Results {
		hits = append(hits, SearchHit{NoteID: n.NoteID})
	}
	return hits, nil
}

func (c *HTTPClient) GetNoteContent(ctx context.Context, id string) (string, error) {
	var buf bytes.Buffer
	if err := c.do(ctx, "get note content", "note", id, http.MethodGet, "/notes/"+url.PathEscape(id)+"/content", nil, "", &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (c *HTTPClient) UpdateNoteContent(ctx context.Context, id, content string) error {
	body := strings.NewReader(content)
	return c.do(ctx, "update note content", "note", id, http.MethodPut, "/notes/"+url.PathEscape(id)+"/content", body, "text/plain", nil)
}

func (c *HTTPClient) UpdateBranch(ctx context.Context, branchID string, patch BranchPatch) error {
	data, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encode branch patch: %w", err)
	}
	return c.do(ctx, "update branch", "branch", branchID, http.MethodPatch, "/branches/"+url.PathEscape(branchID), bytes.NewReader(data), "application/json", nil)
}

// do performs one request and maps the outcome onto the error taxonomy.
// out may be nil, a *bytes.Buffer for raw bodies, or a JSON target.
func (c *HTTPClient) do(
	ctx context.Context,
	op, kind, id, method, path string,
	body io.Reader,
	contentType string,
	out any,
) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &ValidationError{Field: "request", Msg: err.Error()}
	}
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return decodeBody(op, resp.Body, out)
	}

	apiErr := readError(resp.Body)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &NotFoundError{Kind: kind, ID: id}
	case resp.StatusCode == http.StatusBadRequest:
		return &ValidationError{Field: kind, Msg: apiErr.Message}
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return &ValidationError{Field: "api_token", Msg: "rejected by server"}
	default:
		// 429, 5xx and anything unexpected are worth another attempt.
		return &NetworkError{Op: op, Status: resp.StatusCode, Err: messageErr(apiErr)}
	}
}

func decodeBody(op string, r io.Reader, out any) error {
	switch target := out.(type) {
	case nil:
		_, _ = io.Copy(io.Discard, r)
		return nil
	case *bytes.Buffer:
		if _, err := target.ReadFrom(r); err != nil {
			return &NetworkError{Op: op, Err: err}
		}
		return nil
	default:
		if err := json.NewDecoder(r).Decode(target); err != nil {
			return &NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	}
}

func readError(r io.Reader) etapiError {
	var e etapiError
	data, err := io.ReadAll(io.LimitReader(r, 64*1024))
	if err != nil || len(data) == 0 {
		return e
	}
	if json.Unmarshal(data, &e) != nil {
		e.Message = strings.TrimSpace(string(data))
	}
	return e
}

func messageErr(e etapiError) error {
	if e.Message == "" {
		return nil
	}
	return errors.New(e.Message)
}
