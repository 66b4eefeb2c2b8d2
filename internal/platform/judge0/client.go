// Package judge0 is a client for the Judge0 CE batch submission API.
package judge0

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// Status ids below this value mean the judge has not finished (1 In Queue, 2 Processing).
const firstTerminalStatus = 3

const resultFields = "token,status,time,memory,stdout,stderr,message,compile_output"

type Client struct {
	baseURL string
	http    *fasthttp.Client
	apiKey  string
	apiHost string

	defaultTimeout time.Duration
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

// WithRapidAPI sets the X-RapidAPI-Key / X-RapidAPI-Host headers used by the hosted judge.
func WithRapidAPI(key, host string) Option {
	return func(c *Client) {
		c.apiKey = key
		c.apiHost = host
	}
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 15 * time.Second, WriteTimeout: 15 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Submission struct {
	SourceCode     string  `json:"source_code"`
	LanguageID     int     `json:"language_id"`
	Stdin          string  `json:"stdin"`
	ExpectedOutput string  `json:"expected_output"`
	CPUTimeLimit   float64 `json:"cpu_time_limit,omitempty"` // seconds
	MemoryLimit    int     `json:"memory_limit,omitempty"`   // KB
}

type Status struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

type Result struct {
	Token         string   `json:"token"`
	Status        Status   `json:"status"`
	Time          *string  `json:"time"` // seconds, as a decimal string
	Memory        *float64 `json:"memory"`
	Stdout        *string  `json:"stdout"`
	Stderr        *string  `json:"stderr"`
	Message       *string  `json:"message"`
	CompileOutput *string  `json:"compile_output"`
}

// Done reports whether the judge has produced a final verdict.
func (r Result) Done() bool { return r.Status.ID >= firstTerminalStatus }

// RuntimeMs converts the judge's "time" field to milliseconds; missing values are 0.
func (r Result) RuntimeMs() float64 {
	if r.Time == nil {
		return 0
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(*r.Time), 64)
	if err != nil {
		return 0
	}
	return secs * 1000
}

func (r Result) MemoryKb() float64 {
	if r.Memory == nil {
		return 0
	}
	return *r.Memory
}

type tokenResponse struct {
	Token string          `json:"token"`
	Error json.RawMessage `json:"error,omitempty"`
}

type batchRequest struct {
	Submissions []Submission `json:"submissions"`
}

type batchResponse struct {
	Submissions []Result `json:"submissions"`
}

// SubmitBatch posts all submissions in one request and returns their tokens in order.
func (c *Client) SubmitBatch(ctx context.Context, subs []Submission) ([]string, error) {
	if len(subs) == 0 {
		return nil, errors.New("judge0: empty batch")
	}
	var resp []tokenResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/submissions/batch?base64_encoded=false", batchRequest{Submissions: subs}, &resp); err != nil {
		return nil, err
	}
	if len(resp) != len(subs) {
		return nil, fmt.Errorf("judge0: got %d tokens for %d submissions", len(resp), len(subs))
	}
	tokens := make([]string, len(resp))
	for i, tr := range resp {
		if tr.Token == "" {
			return nil, fmt.Errorf("judge0: submission %d rejected: %s", i, truncate(string(tr.Error), 256))
		}
		tokens[i] = tr.Token
	}
	return tokens, nil
}

// GetBatch fetches the current state of every token, in token order.
func (c *Client) GetBatch(ctx context.Context, tokens []string) ([]Result, error) {
	q := url.Values{}
	q.Set("tokens", strings.Join(tokens, ","))
	q.Set("base64_encoded", "false")
	q.Set("fields", resultFields)

	var resp batchResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/submissions/batch?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Submissions) != len(tokens) {
		return nil, fmt.Errorf("judge0: got %d results for %d tokens", len(resp.Submissions), len(tokens))
	}
	return resp.Submissions, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if c.apiKey != "" {
		req.Header.Set("X-RapidAPI-Key", c.apiKey)
	}
	if c.apiHost != "" {
		req.Header.Set("X-RapidAPI-Host", c.apiHost)
	}

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
		return fmt.Errorf("judge0 request failed: %w", err)
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		return fmt.Errorf("judge0 api error: status=%d body=%s", status, truncate(string(resp.Body()), 512))
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
