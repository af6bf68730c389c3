package tweetscout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/follow-scope/fscope/internal/overlap"
)

const (
	defaultBaseURLString         = "https://api.tweetscout.io"
	followsPathString            = "/v2/follows"
	linkQueryParameterName       = "link"
	acceptHeaderName             = "Accept"
	acceptHeaderValue            = "application/json"
	apiKeyHeaderName             = "ApiKey"
	retryAfterHeaderName         = "Retry-After"
	errMessageUnexpectedStatus   = "follows request returned unexpected status code"
	errMessageDecodeResponse     = "decode follows response"
	errMessageParseBaseURL       = "parse base url"
	maxResponseBodyBytes         = 16 * 1024 * 1024
	defaultRateLimitWait         = 30 * time.Second
	defaultDialTimeout           = 5 * time.Second
	defaultTLSHandshakeTimeout   = 5 * time.Second
	defaultResponseHeaderTimeout = 10 * time.Second
	defaultHTTPTimeout           = 30 * time.Second
)

// Config customizes a Client instance. APIKey is treated as an opaque credential
// and forwarded verbatim on every request.
type Config struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// Client fetches follow lists from the TweetScout follows endpoint.
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	apiKey      string
	flightGroup singleflight.Group
}

type followedUser struct {
	ID           json.Number `json:"id"`
	Name         string      `json:"name"`
	RegisterDate string      `json:"register_date"`
}

// NewClient constructs a Client with sensible defaults for HTTP timeouts.
func NewClient(configuration Config) (*Client, error) {
	baseURLString := configuration.BaseURL
	if strings.TrimSpace(baseURLString) == "" {
		baseURLString = defaultBaseURLString
	}
	parsedBaseURL, err := url.Parse(baseURLString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errMessageParseBaseURL, err)
	}

	httpClient := configuration.Client
	if httpClient == nil {
		httpClient = newHTTPClient()
	}
	if httpClient.Timeout == 0 {
		httpClient.Timeout = defaultHTTPTimeout
	}

	client := &Client{
		httpClient: httpClient,
		baseURL:    parsedBaseURL,
		apiKey:     configuration.APIKey,
	}
	return client, nil
}

// FetchFollowing returns the accounts followed by the supplied seed link. An
// account that follows nobody yields an empty slice. Concurrent requests for the
// same seed link are collapsed into a single upstream call.
func (client *Client) FetchFollowing(ctx context.Context, seedLink string) ([]overlap.Account, error) {
	resultChannel := client.flightGroup.DoChan(seedLink, func() (interface{}, error) {
		return client.fetchFollowing(ctx, seedLink)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-resultChannel:
		if result.Err != nil {
			return nil, result.Err
		}
		accounts, _ := result.Val.([]overlap.Account)
		return accounts, nil
	}
}

func (client *Client) fetchFollowing(ctx context.Context, seedLink string) ([]overlap.Account, error) {
	requestURL := client.followsURL(seedLink)

	httpResponse, err := client.requestFollows(ctx, requestURL)
	if err != nil {
		return nil, err
	}
	if httpResponse.StatusCode == http.StatusTooManyRequests {
		retryAfter := httpResponse.Header.Get(retryAfterHeaderName)
		drainAndClose(httpResponse.Body)
		if waitErr := waitForDuration(ctx, backoffFromRetryAfter(retryAfter)); waitErr != nil {
			return nil, waitErr
		}
		httpResponse, err = client.requestFollows(ctx, requestURL)
		if err != nil {
			return nil, err
		}
	}
	defer drainAndClose(httpResponse.Body)

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode >= 300 {
		return nil, fmt.Errorf("%s: %d", errMessageUnexpectedStatus, httpResponse.StatusCode)
	}

	limitedReader := io.LimitReader(httpResponse.Body, maxResponseBodyBytes)
	var users []followedUser
	if decodeErr := json.NewDecoder(limitedReader).Decode(&users); decodeErr != nil {
		return nil, fmt.Errorf("%s: %w", errMessageDecodeResponse, decodeErr)
	}

	accounts := make([]overlap.Account, 0, len(users))
	for _, user := range users {
		accountID := user.ID.String()
		if strings.TrimSpace(accountID) == "" || strings.TrimSpace(user.Name) == "" {
			continue
		}
		accounts = append(accounts, overlap.Account{
			ID:           accountID,
			Name:         user.Name,
			RegisterDate: user.RegisterDate,
		})
	}
	return accounts, nil
}

func (client *Client) requestFollows(ctx context.Context, requestURL string) (*http.Response, error) {
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}
	httpRequest.Header.Set(acceptHeaderName, acceptHeaderValue)
	httpRequest.Header.Set(apiKeyHeaderName, client.apiKey)
	return client.httpClient.Do(httpRequest)
}

func (client *Client) followsURL(seedLink string) string {
	queryValues := url.Values{}
	queryValues.Set(linkQueryParameterName, seedLink)
	followsURL := client.baseURL.ResolveReference(&url.URL{Path: followsPathString})
	followsURL.RawQuery = queryValues.Encode()
	return followsURL.String()
}

func backoffFromRetryAfter(retryAfter string) time.Duration {
	if retryAfter == "" {
		return defaultRateLimitWait
	}
	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultRateLimitWait
}

func waitForDuration(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return nil
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func drainAndClose(body io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(body, 1024))
	body.Close()
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout:   defaultHTTPTimeout,
		Transport: defaultTransport(),
	}
}

func defaultTransport() http.RoundTripper {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxConnsPerHost:       100,
		ResponseHeaderTimeout: defaultResponseHeaderTimeout,
	}
}
