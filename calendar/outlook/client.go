// Package outlook implements the destination calendar provider on top of
// the Microsoft Graph REST API.
package outlook

import (
	"bytes"
	"context"
	"errors"
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
	defaultBaseURL = "https://graph.microsoft.com/v1.0"

	graphTimeFormat = "2006-01-02T15:04:05"
	pageSize        = 50
)

// Scopes requested from the Microsoft identity platform. offline_access is
// what makes refresh tokens show up in the first place.
var Scopes = []string{
	"https://graph.microsoft.com/Calendars.ReadWrite",
	"offline_access",
}

// OAuthConfig builds the oauth2 configuration for an Azure AD application
// in the given tenant.
func OAuthConfig(app internal.OutlookAppInfo) *oauth2.Config {
	base := "https://login.microsoftonline.com/" + app.TenantID + "/oauth2/v2.0"
	return &oauth2.Config{
		ClientID:     app.ClientID,
		ClientSecret: app.ClientSecret,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  base + "/authorize",
			TokenURL: base + "/token",
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

	// Horizon bounds the calendarView window; Graph requires an explicit
	// end date on occurrence-expanded listings.
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
	NextLink string `json:"@odata.nextLink"`
	Value    []struct {
		ID                string `json:"id"`
		Name              string `json:"name"`
		IsDefaultCalendar bool   `json:"isDefaultCalendar"`
	} `json:"value"`
}

func (c *Client) ListCalendars(ctx context.Context) ([]internal.CalendarRef, error) {
	var refs []internal.CalendarRef

	next := c.baseURL + "/me/calendars"
	for next != "" {
		var res calendarListResponse
		if err := c.do(ctx, http.MethodGet, next, nil, &res); err != nil {
			return nil, err
		}
		for _, cal := range res.Value {
			refs = append(refs, internal.CalendarRef{
				ID:      cal.ID,
				Name:    cal.Name,
				Primary: cal.IsDefaultCalendar,
			})
		}
		next = res.NextLink
	}
	return refs, nil
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphLocation struct {
	DisplayName string `json:"displayName"`
}

type graphOnlineMeeting struct {
	JoinURL string `json:"joinUrl"`
}

type graphEvent struct {
	ID            string              `json:"id"`
	Subject       string              `json:"subject"`
	Type          string              `json:"type"`
	IsCancelled   bool                `json:"isCancelled"`
	Start         graphDateTime       `json:"start"`
	End           graphDateTime       `json:"end"`
	Location      *graphLocation      `json:"location"`
	OnlineMeeting *graphOnlineMeeting `json:"onlineMeeting"`
}

type eventListResponse struct {
	NextLink string       `json:"@odata.nextLink"`
	Value    []graphEvent `json:"value"`
}

// Events lists the calendarView between from and from+Horizon. Graph
// expands recurring series into individual occurrences on this endpoint, so
// the engine only ever sees concrete events.
func (c *Client) Events(ctx context.Context, calendarID string, from time.Time) (internal.Iterator, error) {
	it := newEventIterator()
	go c.events(ctx, calendarID, from, it.events)
	return it, nil
}

func (c *Client) events(ctx context.Context, calendarID string, from time.Time, eventCh chan eventOrError) {
	defer close(eventCh)

	c.logf("checking %s for events from %s", calendarID, from.UTC().Format(time.RFC3339))

	query := url.Values{}
	query.Set("startDateTime", from.UTC().Format(graphTimeFormat))
	query.Set("endDateTime", from.UTC().Add(c.Horizon).Format(graphTimeFormat))
	query.Set("$top", strconv.Itoa(pageSize))

	next := c.baseURL + "/me/calendars/" + url.PathEscape(calendarID) + "/calendarView?" + query.Encode()
	for next != "" {
		var res eventListResponse
		if err := c.do(ctx, http.MethodGet, next, nil, &res); err != nil {
			send(ctx, eventCh, eventOrError{err: err})
			return
		}

		for i := range res.Value {
			e, err := newEvent(&res.Value[i])
			if err != nil {
				send(ctx, eventCh, eventOrError{err: err})
				return
			}
			if e == nil || e.StartsAt.Before(from) {
				continue
			}
			if !send(ctx, eventCh, eventOrError{e: e}) {
				return
			}
		}
		next = res.NextLink
	}
}

func newEvent(raw *graphEvent) (*internal.Event, error) {
	if raw.IsCancelled {
		return nil, nil
	}
	startsAt, err := parseGraphTime(raw.Start.DateTime, raw.Start.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("outlook: event %s: %w", raw.ID, err)
	}
	endsAt, err := parseGraphTime(raw.End.DateTime, raw.End.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("outlook: event %s: %w", raw.ID, err)
	}

	e := &internal.Event{
		ProviderID: raw.ID,
		Title:      raw.Subject,
		StartsAt:   startsAt,
		EndsAt:     endsAt,
		Recurring:  raw.Type == "occurrence" || raw.Type == "exception",
	}
	if raw.Location != nil {
		e.Location = raw.Location.DisplayName
	}
	if raw.OnlineMeeting != nil {
		e.MeetingURL = raw.OnlineMeeting.JoinURL
	}
	return e, nil
}

type createEventRequest struct {
	Subject  string         `json:"subject"`
	Start    graphDateTime  `json:"start"`
	End      graphDateTime  `json:"end"`
	Location *graphLocation `json:"location,omitempty"`
	Body     *graphBody     `json:"body,omitempty"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

func (c *Client) CreateEvent(ctx context.Context, calendarID string, event *internal.Event) (string, error) {
	req := createEventRequest{
		Subject: event.Title,
		Start:   graphDateTime{DateTime: event.StartsAt.UTC().Format(graphTimeFormat), TimeZone: "UTC"},
		End:     graphDateTime{DateTime: event.EndsAt.UTC().Format(graphTimeFormat), TimeZone: "UTC"},
	}
	if event.Location != "" {
		req.Location = &graphLocation{DisplayName: event.Location}
	}
	if event.MeetingURL != "" {
		req.Body = &graphBody{ContentType: "text", Content: "Join: " + event.MeetingURL}
	}

	var res graphEvent
	err := c.do(ctx, http.MethodPost, c.baseURL+"/me/calendars/"+url.PathEscape(calendarID)+"/events", req, &res)
	if err != nil {
		return "", err
	}
	c.logf("created event %q on %s", event.Title, calendarID)
	return res.ID, nil
}

func (c *Client) DeleteEvent(ctx context.Context, calendarID, providerID string) error {
	u := c.baseURL + "/me/calendars/" + url.PathEscape(calendarID) + "/events/" + url.PathEscape(providerID)

	err := c.do(ctx, http.MethodDelete, u, nil, nil)
	if err != nil && !alreadyDeleted(err) {
		return err
	}
	c.logf("deleted event %s on %s", providerID, calendarID)
	return nil
}

// notFoundError marks a delete against an event that is already gone, which
// is treated as success.
type notFoundError struct{ url string }

func (e *notFoundError) Error() string {
	return fmt.Sprintf("outlook: %s: not found", e.url)
}

func alreadyDeleted(err error) bool {
	var nf *notFoundError
	return errors.As(err, &nf)
}

func (c *Client) do(ctx context.Context, method, u string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("outlook: encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("outlook: building request: %w", err)
	}
	cred, err := c.tokens.Token(ctx, internal.RoleOutlook)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &internal.NetworkError{Provider: internal.RoleOutlook, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &internal.RateLimitError{
			Provider:   internal.RoleOutlook,
			RetryAfter: retryAfter(resp),
		}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return internal.NewReauthRequired(internal.RoleOutlook, fmt.Errorf("http %d", resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		return &notFoundError{url: u}
	case resp.StatusCode >= 500:
		return &internal.NetworkError{
			Provider: internal.RoleOutlook,
			Err:      fmt.Errorf("http %d", resp.StatusCode),
		}
	case resp.StatusCode >= 300:
		return fmt.Errorf("outlook: %s %s: http %d", method, u, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("outlook: decoding response: %w", err)
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
		internal.Logf(c.Output, "outlook:", "", format, a...)
	}
}
