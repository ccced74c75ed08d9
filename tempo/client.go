// Package tempo talks to the remote time-tracking API.
package tempo

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

	"golang.org/x/oauth2"

	"recap/internal/timeutil"
	"recap/issue"
	"recap/workitem"
)

// Client defines the remote operations the reconciler and resolver need.
type Client interface {
	// Ping verifies connectivity and credentials against the current user
	// endpoint.
	Ping(ctx context.Context) (Myself, error)
	ValidateIssue(ctx context.Context, issueKey string) (issue.Validation, error)
	// SubmitWorklog uploads one entry and returns the remote worklog.
	SubmitWorklog(ctx context.Context, entry workitem.SyncEntry) (Worklog, error)
	ListWorklogs(ctx context.Context, from, to time.Time) ([]Worklog, error)
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type ClientConfig struct {
	BaseURL string
	// APIToken is exchanged for a bearer header on every request.
	APIToken string
	// SessionCookies carries a captured browser session for SSO-fronted
	// instances where no API token is available.
	SessionCookies string
	UserAgent      string
	HTTPClient     httpDoer
}

type HTTPClient struct {
	baseURL        string
	tokenSource    oauth2.TokenSource
	sessionCookies string
	userAgent      string
	httpClient     httpDoer
}

func NewClient(cfg ClientConfig) (*HTTPClient, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}
	baseURL = strings.TrimRight(baseURL, "/")

	parsedBase, err := url.Parse(baseURL)
	if err != nil || parsedBase.Scheme == "" || parsedBase.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}

	token := strings.TrimSpace(cfg.APIToken)
	cookies := strings.TrimSpace(cfg.SessionCookies)
	if token == "" && cookies == "" {
		return nil, errors.New("either an API token or session cookies are required")
	}

	var tokenSource oauth2.TokenSource
	if token != "" {
		tokenSource = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	}

	doer := cfg.HTTPClient
	if doer == nil {
		doer = &http.Client{Timeout: 30 * time.Second}
	}

	return &HTTPClient{
		baseURL:        baseURL,
		tokenSource:    tokenSource,
		sessionCookies: cookies,
		userAgent:      strings.TrimSpace(cfg.UserAgent),
		httpClient:     doer,
	}, nil
}

// Myself identifies the authenticated user.
type Myself struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"emailAddress"`
}

// Worklog is one remote worklog entry.
type Worklog struct {
	ID               WorklogID `json:"id"`
	IssueKey         string    `json:"issueKey"`
	Date             string    `json:"date"`
	TimeSpentMinutes int       `json:"timeSpentMinutes"`
	Description      string    `json:"description"`
}

// WorklogID tolerates servers that return worklog ids as numbers or strings.
type WorklogID string

func (id *WorklogID) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	switch text {
	case "", "null":
		*id = ""
		return nil
	}

	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*id = WorklogID(strings.TrimSpace(asString))
		return nil
	}

	var asNumber int64
	if err := json.Unmarshal(data, &asNumber); err == nil {
		*id = WorklogID(strconv.FormatInt(asNumber, 10))
		return nil
	}

	return fmt.Errorf("unsupported worklog id value %q", text)
}

func (id WorklogID) String() string {
	return string(id)
}

type validateIssueResponse struct {
	Valid   bool   `json:"valid"`
	Summary string `json:"summary"`
	Message string `json:"message"`
}

type submitWorklogRequest struct {
	IssueKey         string `json:"issueKey"`
	Date             string `json:"date"`
	TimeSpentMinutes int    `json:"timeSpentMinutes"`
	Description      string `json:"description"`
}

type listWorklogsResponse struct {
	Worklogs []Worklog `json:"worklogs"`
}

func (c *HTTPClient) Ping(ctx context.Context) (Myself, error) {
	var out Myself
	if err := c.doJSON(ctx, http.MethodGet, "/myself", nil, &out); err != nil {
		return Myself{}, err
	}
	if out.AccountID == "" {
		return Myself{}, errors.New("myself response has no account id; credentials may be expired")
	}
	return out, nil
}

func (c *HTTPClient) ValidateIssue(ctx context.Context, issueKey string) (issue.Validation, error) {
	issueKey = strings.TrimSpace(issueKey)
	if issueKey == "" {
		return issue.Validation{}, errors.New("issue key is required")
	}

	path := "/issue/" + url.PathEscape(issueKey) + "/validate"
	var out validateIssueResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return issue.Validation{}, err
	}
	return issue.Validation{
		Valid:   out.Valid,
		Summary: out.Summary,
		Message: out.Message,
	}, nil
}

func (c *HTTPClient) SubmitWorklog(ctx context.Context, entry workitem.SyncEntry) (Worklog, error) {
	if strings.TrimSpace(entry.IssueKey) == "" {
		return Worklog{}, errors.New("sync entry has no issue key")
	}
	if entry.Minutes <= 0 {
		return Worklog{}, fmt.Errorf("sync entry for %s has no time to log", entry.Target.String())
	}

	body := submitWorklogRequest{
		IssueKey:         entry.IssueKey,
		Date:             timeutil.DayKey(entry.Date),
		TimeSpentMinutes: entry.Minutes,
		Description:      entry.Description,
	}
	var out Worklog
	if err := c.doJSON(ctx, http.MethodPost, "/worklogs", body, &out); err != nil {
		return Worklog{}, err
	}
	if out.ID == "" {
		return Worklog{}, errors.New("worklog response has no id")
	}
	return out, nil
}

func (c *HTTPClient) ListWorklogs(ctx context.Context, from, to time.Time) ([]Worklog, error) {
	path := fmt.Sprintf("/worklogs?from=%s&to=%s", timeutil.DayKey(from), timeutil.DayKey(to))
	var out listWorklogsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Worklogs, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, endpointPath string, body any, out any) error {
	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	url := c.baseURL + endpointPath
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("create request %s %s: %w", method, endpointPath, err)
	}

	req.Header.Set("Accept", "application/json")
	if c.tokenSource != nil {
		token, err := c.tokenSource.Token()
		if err != nil {
			return fmt.Errorf("resolve API token: %w", err)
		}
		token.SetAuthHeader(req)
	}
	if c.sessionCookies != "" {
		req.Header.Set("Cookie", c.sessionCookies)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, endpointPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf(
			"request %s %s failed with status %d: %s",
			method,
			endpointPath,
			resp.StatusCode,
			strings.TrimSpace(string(responseBody)),
		)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode response %s %s: %w", method, endpointPath, err)
	}
	return nil
}
