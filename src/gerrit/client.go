// Package gerrit provides a client for the Gerrit REST API.
package gerrit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"gerrit-verifier/src/review"
)

const (
	// DefaultLabel is the label verification votes are cast on.
	DefaultLabel = "Verified"

	// xssiPrefix precedes every JSON body Gerrit returns.
	xssiPrefix = ")]}'"

	// timeLayout is Gerrit's timestamp format (UTC).
	timeLayout = "2006-01-02 15:04:05.000000000"
)

// ErrAuthFailed is returned when Gerrit rejects the configured credentials.
var ErrAuthFailed = errors.New("gerrit authentication failed")

// ErrNoCurrentPatchSet is returned when a change's current revision is missing from its revisions.
var ErrNoCurrentPatchSet = errors.New("change has no current patch set")

// Client is a Gerrit REST API client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	username   string
	password   string
	label      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithCredentials sets HTTP basic auth credentials. Authenticated requests use the /a/ prefix.
func WithCredentials(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithLabel overrides the label votes are cast on.
func WithLabel(label string) Option {
	return func(c *Client) {
		if label != "" {
			c.label = label
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new Gerrit client for the server at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		label:   DefaultLabel,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// changeInfo is the subset of Gerrit's ChangeInfo the verifier reads.
type changeInfo struct {
	ID              string                  `json:"id"`
	ChangeID        string                  `json:"change_id"`
	Number          int                     `json:"_number"`
	Project         string                  `json:"project"`
	Branch          string                  `json:"branch"`
	Subject         string                  `json:"subject"`
	Status          string                  `json:"status"`
	Updated         string                  `json:"updated"`
	CurrentRevision string                  `json:"current_revision"`
	Revisions       map[string]revisionInfo `json:"revisions"`
}

type revisionInfo struct {
	Number int    `json:"_number"`
	Ref    string `json:"ref"`
}

type reviewInput struct {
	Message string         `json:"message"`
	Labels  map[string]int `json:"labels"`
}

// ChangeByRevision returns the most recently updated change containing revision.
// It returns review.ErrChangeNotFound when no change has a patch set at exactly that revision.
func (c *Client) ChangeByRevision(ctx context.Context, revision string) (*review.Change, error) {
	if revision == "" {
		return nil, fmt.Errorf("revision is required")
	}

	q := url.Values{}
	q.Set("q", "commit:"+revision)
	q.Add("o", "ALL_REVISIONS")

	var infos []changeInfo
	if err := c.do(ctx, http.MethodGet, "/changes/?"+q.Encode(), nil, &infos); err != nil {
		return nil, fmt.Errorf("failed to query changes for %s: %w", revision, err)
	}

	matches := make([]changeInfo, 0, len(infos))
	for _, info := range infos {
		if _, ok := info.Revisions[revision]; ok {
			matches = append(matches, info)
		}
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: revision %s", review.ErrChangeNotFound, revision)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return parseTime(matches[i].Updated).After(parseTime(matches[j].Updated))
	})

	change, err := c.toChange(matches[0])
	if err != nil {
		return nil, err
	}
	return &change, nil
}

// VerifyChange casts a +1/-1 vote with message on a change's patch set.
func (c *Client) VerifyChange(ctx context.Context, positive bool, changeNumber, patchSet int, message string) error {
	value := -1
	if positive {
		value = 1
	}

	input := reviewInput{
		Message: message,
		Labels:  map[string]int{c.label: value},
	}
	body, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to marshal review: %w", err)
	}

	path := fmt.Sprintf("/changes/%d/revisions/%d/review", changeNumber, patchSet)
	if err := c.do(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("failed to review change %d/%d: %w", changeNumber, patchSet, err)
	}
	return nil
}

func (c *Client) toChange(info changeInfo) (review.Change, error) {
	change := review.Change{
		ID:      info.ChangeID,
		Number:  info.Number,
		Project: info.Project,
		Branch:  info.Branch,
		Subject: info.Subject,
		Status:  info.Status,
		Merged:  info.Status == "MERGED",
		URL:     fmt.Sprintf("%s/c/%s/+/%d", c.baseURL, info.Project, info.Number),
	}
	if change.ID == "" {
		change.ID = info.ID
	}

	rev, ok := info.Revisions[info.CurrentRevision]
	if !ok || rev.Number <= 0 {
		return review.Change{}, fmt.Errorf("%w: change %d, current revision %q", ErrNoCurrentPatchSet, info.Number, info.CurrentRevision)
	}
	change.CurrentPatchSet = review.PatchSet{
		Number:   rev.Number,
		Revision: info.CurrentRevision,
		Ref:      rev.Ref,
	}
	return change, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	if c.username != "" {
		path = "/a" + path
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", review.ErrChangeNotFound, strings.TrimSpace(string(data)))
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}

	data = bytes.TrimPrefix(data, []byte(xssiPrefix))
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
