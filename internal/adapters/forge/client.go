// Package forge implements the GraphQL-over-HTTP client used to discover
// and re-check issues on the upstream code forge. It mirrors the retry and
// status-handling shape of the platform's REST clients, adapted to a single
// POST endpoint carrying {query, variables} bodies instead of per-path REST
// calls.
package forge

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"discoveryd/internal/platform/logger"
	"discoveryd/internal/platform/ratelimit"
	"discoveryd/internal/services/discovery/domain"

	perr "discoveryd/internal/platform/errors"
)

const (
	defaultBaseURL = "https://api.github.com/graphql"
	defaultTimeout = 30 * time.Second
	defaultUA      = "discoveryd"
	defaultRetries = 3
)

// Options configures a Client
type Options struct {
	BaseURL string
	// Token is the bearer credential. Caller resolves FORGE_TOKEN/API_TOKEN
	// precedence at config-load time; the client itself takes one string.
	Token string

	UserAgent      string
	Timeout        time.Duration
	MaxRetries     int
	MaxConcurrent  int
}

// Client executes GraphQL queries against the forge with rate limiting,
// retries, and bounded concurrency.
type Client struct {
	http  *http.Client
	opts  Options
	rl    *ratelimit.Limiter
	sem   chan struct{}
	log   logger.Logger
	now   func() time.Time
	sleep func(time.Duration)
}

// NewClient builds a Client with sane defaults
func NewClient(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = defaultBaseURL
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultRetries
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 5
	}
	return &Client{
		http:  &http.Client{Timeout: o.Timeout},
		opts:  o,
		rl:    ratelimit.New(ratelimit.Options{}),
		sem:   make(chan struct{}, o.MaxConcurrent),
		log:   *logger.Named("forge"),
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// StatusError wraps a non-2xx/3xx response or an exhausted page
type StatusError struct {
	Status int
	Body   string
	Err    error
}

func (e *StatusError) Error() string   { return e.Err.Error() }
func (e *StatusError) Unwrap() error   { return e.Err }
func (e *StatusError) HTTPStatus() int { return e.Status }

type graphQLRequest struct {
	Query     string `json:"query"`
	Variables any    `json:"variables"`
}

// execute runs one page's worth of query with the request-level retry policy
// from spec.md §4.2: HTTP 200 success, 403 backoff-and-retry, 5xx/timeout
// retry, other 4xx fails the page without retry.
func (c *Client) execute(ctx context.Context, query string, variables any) (json.RawMessage, error) {
	c.rl.WaitIfNeeded()

	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "forge marshal request")
	}

	for attempt := 0; ; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL, bytes.NewReader(body))
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "forge new request")
		}
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", c.opts.UserAgent)

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt >= c.opts.MaxRetries {
				return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "forge transport error")
			}
			wait := time.Duration(5*(attempt+1)) * time.Second
			c.log.Warn().Dur("retry_in", wait).Int("attempt", attempt).Msg("forge transport error retrying")
			c.sleep(wait)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			defer resp.Body.Close()
			var env graphQLEnvelope
			if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
				return nil, perr.Wrapf(err, perr.ErrorCodeJSON, "forge decode response")
			}
			if len(env.Errors) > 0 {
				msgs := make([]string, len(env.Errors))
				for i, e := range env.Errors {
					msgs[i] = e.Message
				}
				c.log.Warn().Strs("errors", msgs).Msg("forge graphql errors")
			}
			c.updateRateLimitFromEnvelope(env.Data)
			c.rl.ResetBackoff()
			return env.Data, nil

		case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
			c.rl.IncreaseBackoff()
			body := readSmall(resp.Body)
			_ = resp.Body.Close()
			if attempt >= c.opts.MaxRetries {
				return nil, &StatusError{Status: resp.StatusCode, Body: body,
					Err: perr.Newf(perr.ErrorCodeTooManyRequests, "forge rate limited")}
			}
			wait := time.Duration(60*(attempt+1)) * time.Second
			c.log.Warn().Dur("sleep", wait).Msg("forge rate limited backing off")
			c.sleep(wait)
			continue

		case resp.StatusCode >= 500:
			body := readSmall(resp.Body)
			_ = resp.Body.Close()
			if attempt >= c.opts.MaxRetries {
				return nil, &StatusError{Status: resp.StatusCode, Body: body,
					Err: perr.Newf(perr.ErrorCodeUnavailable, "forge transient server error")}
			}
			wait := time.Duration(5*(attempt+1)) * time.Second
			c.log.Warn().Dur("retry_in", wait).Int("attempt", attempt).Msg("forge transient error retrying")
			c.sleep(wait)
			continue

		default:
			body := readSmall(resp.Body)
			_ = resp.Body.Close()
			return nil, &StatusError{Status: resp.StatusCode, Body: body,
				Err: perr.Newf(mapPerrCode(resp.StatusCode), "forge unexpected status %d", resp.StatusCode)}
		}
	}
}

func (c *Client) updateRateLimitFromEnvelope(data json.RawMessage) {
	var probe struct {
		RateLimit *rateLimitPayload `json:"rateLimit"`
	}
	if err := json.Unmarshal(data, &probe); err != nil || probe.RateLimit == nil {
		return
	}
	c.rl.UpdateFromHeaders(probe.RateLimit.Remaining, probe.RateLimit.ResetAt)
}

func mapPerrCode(status int) perr.ErrorCode {
	switch status {
	case http.StatusNotFound, http.StatusGone:
		return perr.ErrorCodeNotFound
	case http.StatusUnauthorized:
		return perr.ErrorCodeUnauthorized
	case http.StatusForbidden:
		return perr.ErrorCodeForbidden
	default:
		return perr.ErrorCodeUnknown
	}
}

func readSmall(rc io.ReadCloser) string {
	b, _ := io.ReadAll(io.LimitReader(rc, 2048))
	s := strings.TrimSpace(string(b))
	return strings.ReplaceAll(s, "\n", " ")
}

// SearchIssues paginates a search query and delivers each normalized Issue to
// yield. It stops when the forge has no more pages, when maxResults is
// reached, or when yield returns false. maxResults < 0 means unbounded;
// maxResults == 0 yields nothing and sends no request.
//
// This is the Go realization of the source's async generator: range-over-func
// lets callers write `for issue := range client.SearchIssues(ctx, q, cap) { ... }`.
func (c *Client) SearchIssues(ctx context.Context, query string, maxResults int) func(yield func(domain.Issue) bool) {
	return func(yield func(domain.Issue) bool) {
		if maxResults == 0 {
			return
		}
		var cursor string
		count := 0
		pageSize := 100
		if maxResults > 0 && maxResults < pageSize {
			pageSize = maxResults
		}

		for {
			vars := map[string]any{"query": query, "first": pageSize}
			if cursor != "" {
				vars["after"] = cursor
			}
			raw, err := c.execute(ctx, searchIssuesQuery, vars)
			if err != nil {
				c.log.Warn().Err(err).Str("query", query).Msg("forge search_issues page failed, stopping")
				return
			}

			var data searchIssuesData
			if err := json.Unmarshal(raw, &data); err != nil {
				c.log.Warn().Err(err).Msg("forge search_issues decode failed, stopping")
				return
			}

			if len(data.Search.Edges) == 0 {
				return
			}

			for _, edge := range data.Search.Edges {
				issue := parseIssueNode(edge.Node)
				if !yield(issue) {
					return
				}
				count++
				if maxResults > 0 && count >= maxResults {
					return
				}
			}

			if !data.Search.PageInfo.HasNextPage {
				return
			}
			cursor = data.Search.PageInfo.EndCursor
		}
	}
}

// CheckIssueStatus looks up a single issue's current state, for the
// Staleness Checker.
func (c *Client) CheckIssueStatus(ctx context.Context, owner, repo string, number int) (IssueStatus, error) {
	raw, err := c.execute(ctx, checkIssueStatusQuery, map[string]any{
		"owner": owner, "repo": repo, "number": number,
	})
	if err != nil {
		return IssueStatus{}, err
	}
	var data checkIssueStatusData
	if err := json.Unmarshal(raw, &data); err != nil {
		return IssueStatus{}, perr.Wrapf(err, perr.ErrorCodeJSON, "forge decode check_issue_status")
	}
	iss := data.Repository.Issue
	return IssueStatus{
		State:       strings.ToLower(iss.State),
		StateReason: iss.StateReason,
		ClosedAt:    iss.ClosedAt,
	}, nil
}

// GetRepoMetadata fetches repository-level metadata
func (c *Client) GetRepoMetadata(ctx context.Context, owner, name string) (RepoMetadata, error) {
	raw, err := c.execute(ctx, getRepoMetadataQuery, map[string]any{"owner": owner, "name": name})
	if err != nil {
		return RepoMetadata{}, err
	}
	var data repoMetadataData
	if err := json.Unmarshal(raw, &data); err != nil {
		return RepoMetadata{}, perr.Wrapf(err, perr.ErrorCodeJSON, "forge decode get_repo_metadata")
	}
	if data.Repository == nil {
		return RepoMetadata{}, nil
	}
	r := data.Repository

	langs := make(map[string]int, len(r.Languages.Edges))
	for _, e := range r.Languages.Edges {
		langs[e.Node.Name] = e.Size
	}
	topics := make([]string, 0, len(r.RepositoryTopics.Nodes))
	for _, t := range r.RepositoryTopics.Nodes {
		topics = append(topics, t.Topic.Name)
	}
	primary := ""
	if r.PrimaryLanguage != nil {
		primary = r.PrimaryLanguage.Name
	}

	return RepoMetadata{
		NameWithOwner:    r.NameWithOwner,
		Stars:            r.StargazerCount,
		Forks:            r.ForkCount,
		PrimaryLanguage:  primary,
		Languages:        langs,
		Topics:           topics,
		LastPush:         r.PushedAt,
		ContributorCount: r.MentionableUsers.TotalCount,
	}, nil
}

// parseIssueNode maps a GraphQL issue node to the standardized domain.Issue,
// defaulting missing nested fields to empty collections rather than nils.
func parseIssueNode(n issueNode) domain.Issue {
	labels := make([]string, 0, len(n.Labels.Nodes))
	for _, l := range n.Labels.Nodes {
		if l.Name != "" {
			labels = append(labels, l.Name)
		}
	}
	topics := make([]string, 0, len(n.Repository.RepositoryTopics.Nodes))
	for _, t := range n.Repository.RepositoryTopics.Nodes {
		topics = append(topics, t.Topic.Name)
	}
	lang := ""
	if n.Repository.PrimaryLanguage != nil {
		lang = n.Repository.PrimaryLanguage.Name
	}

	return domain.Issue{
		ForgeID:      n.ID,
		Number:       n.Number,
		Title:        n.Title,
		Body:         n.Body,
		URL:          n.URL,
		State:        domain.NormalizeState(n.State),
		CreatedAt:    n.CreatedAt,
		UpdatedAt:    n.UpdatedAt,
		ClosedAt:     n.ClosedAt,
		Labels:       labels,
		RepoOwner:    n.Repository.Owner.Login,
		RepoName:     n.Repository.Name,
		RepoURL:      n.Repository.URL,
		RepoStars:    n.Repository.StargazerCount,
		RepoForks:    n.Repository.ForkCount,
		RepoLanguage: lang,
		RepoTopics:   topics,
		RepoLastPush: n.Repository.PushedAt,
	}
}
