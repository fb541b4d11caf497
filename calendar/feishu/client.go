// Package feishu implements the source calendar provider on top of the
// Feishu (Lark) open platform calendar v4 REST API.
package feishu

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"

	"github.com/larksync/larksync/internal"
)

const (
	defaultBaseURL = "https://open.feishu.cn/open-apis"
	authURL        = "https://open.feishu.cn/open-apis/authen/v1/authorize"
	tokenURL       = "https://open.feishu.cn/open-apis/authen/v2/oauth/token"

	pageSize = 500
)

// Scopes required on the Feishu side; read-only, Feishu is never written to.
var Scopes = []string{
	"calendar:calendar:readonly",
	"calendar:calendar:read",
	"calendar:calendar.event:read",
}

// OAuthConfig builds the oauth2 configuration used to refresh Feishu user
// access tokens.
func OAuthConfig(app internal.FeishuAppInfo) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     app.AppID,
		ClientSecret: app.AppSecret,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   authURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// TokenSource hands out a valid access token for a role, refreshing it when
// needed. Satisfied by *token.Store.
type TokenSource interface {
	Token(ctx context.Context, role internal.ProviderRole) (internal.Credential, error)
}

type Client struct {
	tokens     TokenSource
	httpClient *http.Client
	baseURL    string

	// Horizon bounds how far into the future recurring series are
	// expanded. Non-recurring events beyond it are still listed.
	Horizon time.Duration

	Verbose bool
	Output  io.Writer
}

func NewClient(tokens TokenSource) *Client {
	return &Client{
		tokens:     tokens,
		httpClient: http.DefaultClient,
		baseURL:    defaultBaseURL,
		Horizon:    365 * 24 * time.Hour,
		Output:     os.Stdout,
	}
}

// SetBaseURL points the client at a different API host, for tests.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

type calendarListResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		HasMore      bool   `json:"has_more"`
		PageToken    string `json:"page_token"`
		CalendarList []struct {
			CalendarID string `json:"calendar_id"`
			Summary    string `json:"summary"`
			Type       string `json:"type"`
		} `json:"calendar_list"`
	} `json:"data"`
}

func (c *Client) ListCalendars(ctx context.Context) ([]internal.CalendarRef, error) {
	var (
		refs      []internal.CalendarRef
		pageToken string
	)
	for {
		query := url.Values{}
		if pageToken != "" {
			query.Set("page_token", pageToken)
		}

		var res calendarListResponse
		err := c.get(ctx, "/calendar/v4/calendars", query, &res)
		if err != nil {
			return nil, err
		}
		if res.Code != 0 {
			return nil, fmt.Errorf("feishu: listing calendars: code %d: %s", res.Code, res.Msg)
		}

		for _, cal := range res.Data.CalendarList {
			refs = append(refs, internal.CalendarRef{
				ID:      cal.CalendarID,
				Name:    cal.Summary,
				Primary: cal.Type == "primary",
			})
		}
		if !res.Data.HasMore || res.Data.PageToken == "" {
			break
		}
		pageToken = res.Data.PageToken
	}
	return refs, nil
}

type eventListResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		HasMore   bool          `json:"has_more"`
		PageToken string        `json:"page_token"`
		Items     []feishuEvent `json:"items"`
	} `json:"data"`
}

func (c *Client) Events(ctx context.Context, calendarID string, from time.Time) (internal.Iterator, error) {
	it := newEventIterator()
	go c.events(ctx, calendarID, from, it.events)
	return it, nil
}

func (c *Client) events(ctx context.Context, calendarID string, from time.Time, eventCh chan eventOrError) {
	defer close(eventCh)

	c.logf("checking %s for events from %s", calendarID, from.UTC().Format(time.RFC3339))

	var pageToken string
	for {
		query := url.Values{}
		query.Set("start_time", strconv.FormatInt(from.Unix(), 10))
		query.Set("page_size", strconv.Itoa(pageSize))
		if pageToken != "" {
			query.Set("page_token", pageToken)
		}

		var res eventListResponse
		err := c.get(ctx, "/calendar/v4/calendars/"+url.PathEscape(calendarID)+"/events", query, &res)
		if err == nil && res.Code != 0 {
			err = fmt.Errorf("feishu: listing events: code %d: %s", res.Code, res.Msg)
		}
		if err != nil {
			send(ctx, eventCh, eventOrError{err: err})
			return
		}

		for i := range res.Data.Items {
			occurrences, err := expand(&res.Data.Items[i], from, from.Add(c.Horizon))
			if err != nil {
				send(ctx, eventCh, eventOrError{err: err})
				return
			}
			for _, e := range occurrences {
				// The start_time filter is by event, not occurrence, and
				// expansion can emit occurrences right at the window edge.
				if e.StartsAt.Before(from) {
					continue
				}
				if !send(ctx, eventCh, eventOrError{e: e}) {
					return
				}
			}
		}
		if !res.Data.HasMore || res.Data.PageToken == "" {
			return
		}
		pageToken = res.Data.PageToken
	}
}

type createEventRequest struct {
	Summary   string         `json:"summary"`
	StartTime feishuDateTime `json:"start_time"`
	EndTime   feishuDateTime `json:"end_time"`
	Location  *feishuPlace   `json:"location,omitempty"`
}

type createEventResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Event feishuEvent `json:"event"`
	} `json:"data"`
}

func (c *Client) CreateEvent(ctx context.Context, calendarID string, event *internal.Event) (string, error) {
	req := createEventRequest{
		Summary:   event.Title,
		StartTime: feishuDateTime{Timestamp: strconv.FormatInt(event.StartsAt.Unix(), 10)},
		EndTime:   feishuDateTime{Timestamp: strconv.FormatInt(event.EndsAt.Unix(), 10)},
	}
	if event.Location != "" {
		req.Location = &feishuPlace{Name: event.Location}
	}

	var res createEventResponse
	err := c.do(ctx, http.MethodPost, "/calendar/v4/calendars/"+url.PathEscape(calendarID)+"/events", nil, req, &res)
	if err != nil {
		return "", err
	}
	if res.Code != 0 {
		return "", fmt.Errorf("feishu: creating event: code %d: %s", res.Code, res.Msg)
	}
	c.logf("created event %q on %s", event.Title, calendarID)
	return res.Data.Event.EventID, nil
}

type deleteEventResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (c *Client) DeleteEvent(ctx context.Context, calendarID, providerID string) error {
	path := "/calendar/v4/calendars/" + url.PathEscape(calendarID) + "/events/" + url.PathEscape(providerID)

	var res deleteEventResponse
	err := c.do(ctx, http.MethodDelete, path, nil, nil, &res)
	if err != nil {
		return err
	}
	if res.Code != 0 {
		return fmt.Errorf("feishu: deleting event %s: code %d: %s", providerID, res.Code, res.Msg)
	}
	c.logf("deleted event %s on %s", providerID, calendarID)
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("feishu: encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("feishu: building request: %w", err)
	}
	cred, err := c.tokens.Token(ctx, internal.RoleFeishu)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &internal.NetworkError{Provider: internal.RoleFeishu, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &internal.RateLimitError{
			Provider:   internal.RoleFeishu,
			RetryAfter: retryAfter(resp),
		}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return internal.NewReauthRequired(internal.RoleFeishu, fmt.Errorf("http %d", resp.StatusCode))
	case resp.StatusCode >= 500:
		return &internal.NetworkError{
			Provider: internal.RoleFeishu,
			Err:      fmt.Errorf("http %d", resp.StatusCode),
		}
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("feishu: %s %s: http %d", method, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("feishu: decoding response: %w", err)
	}
	return nil
}

func retryAfter(resp *http.Response) time.Duration {
	seconds, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func (c *Client) logf(format string, a ...any) {
	if c.Verbose {
		internal.Logf(c.Output, "feishu:", "", format, a...)
	}
}
