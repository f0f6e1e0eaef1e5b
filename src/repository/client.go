package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	app "silkyroad/src/app"
	cfg "silkyroad/src/configuration"

	"github.com/sirupsen/logrus"
)

const maxResponseBytes = 8 << 20

type keyTier int

const (
	// publicKey is the restricted anon key; serviceKey bypasses row-level security.
	publicKey keyTier = iota
	serviceKey
)

// Client is the handle to the backend REST, auth and storage APIs. It is built
// once and handed to every repository and handler.
type Client struct {
	url        string
	anonKey    string
	serviceKey string
	httpClient *http.Client
	log        logrus.FieldLogger
}

func NewClient(config cfg.BackendProperties, log logrus.FieldLogger) (*Client, error) {
	if config.URL == "" {
		return nil, &app.ConfigurationError{Missing: []string{"SUPABASE_URL"}}
	}
	if config.ServiceKey == "" {
		return nil, &app.ConfigurationError{Missing: []string{"SUPABASE_SERVICE_ROLE_KEY"}}
	}
	parsed, err := url.Parse(config.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("SUPABASE_URL must be an absolute URL: %q", config.URL)
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		url:        strings.TrimRight(config.URL, "/"),
		anonKey:    config.AnonKey,
		serviceKey: config.ServiceKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}, nil
}

// URL is the backend project root.
func (c *Client) URL() string {
	return c.url
}

type call struct {
	method  string
	path    string
	query   url.Values
	body    any
	headers map[string]string
	key     keyTier
	// bearer overrides the Authorization header with a user access token.
	bearer string
}

func (c *Client) do(ctx context.Context, op string, req call) ([]byte, error) {
	target := c.url + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var reader io.Reader
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s body: %w", op, err)
		}
		reader = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", op, err)
	}

	key := c.serviceKey
	if req.key == publicKey && c.anonKey != "" {
		key = c.anonKey
	}
	httpReq.Header.Set("apikey", key)
	if req.bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.bearer)
	} else {
		httpReq.Header.Set("Authorization", "Bearer "+key)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &app.BackendError{Op: op, Err: fmt.Errorf("%s: %w", op, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &app.BackendError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("read %s response: %w", op, err)}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseError(op, resp.StatusCode, body)
	}
	c.log.WithFields(logrus.Fields{"op": op, "status": resp.StatusCode}).Debug("backend call")
	return body, nil
}

// errorBody covers the error shapes of the REST and auth APIs.
type errorBody struct {
	Code             any    `json:"code"`
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Details          any    `json:"details"`
	Hint             string `json:"hint"`
}

func parseError(op string, status int, body []byte) error {
	var parsed errorBody
	var details any
	var code string
	message := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &parsed); err == nil {
		_ = json.Unmarshal(body, &details)
		for _, m := range []string{parsed.Message, parsed.Msg, parsed.ErrorDescription, parsed.Error} {
			if m != "" {
				message = m
				break
			}
		}
		// unique_violation surfaces as 409 from the REST API but some proxies pass 400.
		code, _ = parsed.Code.(string)
		if code == "23505" {
			status = http.StatusConflict
		}
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &app.BackendError{
		Op:      op,
		Status:  status,
		Code:    code,
		Details: details,
		Err:     fmt.Errorf("%s: %s", op, message),
	}
}

// Query builds a PostgREST query string.
type Query struct {
	values url.Values
}

func NewQuery() *Query {
	return &Query{values: url.Values{}}
}

func (q *Query) Select(columns string) *Query {
	q.values.Set("select", columns)
	return q
}

// Eq adds a column=eq.value filter.
func (q *Query) Eq(column, value string) *Query {
	q.values.Add(column, "eq."+value)
	return q
}

func (q *Query) Order(column string, ascending bool) *Query {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	q.values.Set("order", column+"."+dir)
	return q
}

func (q *Query) Limit(n int) *Query {
	q.values.Set("limit", fmt.Sprint(n))
	return q
}

func (q *Query) Values() url.Values {
	return q.values
}

func tablePath(table string) string {
	return "/rest/v1/" + url.PathEscape(table)
}

// selectRows runs a GET on a table and decodes the row array into out.
func (c *Client) selectRows(ctx context.Context, table string, q *Query, out any) error {
	body, err := c.do(ctx, "select "+table, call{
		method: http.MethodGet,
		path:   tablePath(table),
		query:  q.Values(),
		key:    serviceKey,
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &app.BackendError{Op: "select " + table, Err: fmt.Errorf("decode %s rows: %w", table, err)}
	}
	return nil
}

// insertRows posts one row and decodes the returned representation into out.
func (c *Client) insertRows(ctx context.Context, table string, row any, prefer string, out any) error {
	if prefer == "" {
		prefer = "return=representation"
	}
	body, err := c.do(ctx, "insert "+table, call{
		method:  http.MethodPost,
		path:    tablePath(table),
		body:    row,
		headers: map[string]string{"Prefer": prefer},
		key:     serviceKey,
	})
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &app.BackendError{Op: "insert " + table, Err: fmt.Errorf("decode %s rows: %w", table, err)}
	}
	return nil
}

// deleteRows deletes every row matching the filters. A query without filters
// is refused so that a missing id never wipes a table.
func (c *Client) deleteRows(ctx context.Context, table string, q *Query) error {
	if len(q.Values()) == 0 {
		return &app.ValidationError{Message: "refusing unfiltered delete on " + table}
	}
	_, err := c.do(ctx, "delete "+table, call{
		method:  http.MethodDelete,
		path:    tablePath(table),
		query:   q.Values(),
		headers: map[string]string{"Prefer": "return=minimal"},
		key:     serviceKey,
	})
	return err
}
