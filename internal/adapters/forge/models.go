package forge

import (
	"encoding/json"
	"time"
)

// graphQLEnvelope is the top-level shape every query response shares
type graphQLEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type rateLimitPayload struct {
	Limit     int       `json:"limit"`
	Cost      int       `json:"cost"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// search_issues response shapes

type searchIssuesData struct {
	RateLimit *rateLimitPayload `json:"rateLimit"`
	Search    searchResult      `json:"search"`
}

type searchResult struct {
	IssueCount int            `json:"issueCount"`
	PageInfo   pageInfo       `json:"pageInfo"`
	Edges      []issueEdge    `json:"edges"`
}

type pageInfo struct {
	EndCursor   string `json:"endCursor"`
	HasNextPage bool   `json:"hasNextPage"`
}

type issueEdge struct {
	Node issueNode `json:"node"`
}

type issueNode struct {
	ID         string        `json:"id"`
	Number     int           `json:"number"`
	Title      string        `json:"title"`
	Body       string        `json:"body"`
	URL        string        `json:"url"`
	State      string        `json:"state"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
	ClosedAt   *time.Time    `json:"closedAt"`
	Labels     labelConn     `json:"labels"`
	Repository repositoryRef `json:"repository"`
}

type labelConn struct {
	Nodes []namedNode `json:"nodes"`
}

type namedNode struct {
	Name string `json:"name"`
}

type repositoryRef struct {
	NameWithOwner     string            `json:"nameWithOwner"`
	Owner             loginRef          `json:"owner"`
	Name              string            `json:"name"`
	URL               string            `json:"url"`
	StargazerCount    int               `json:"stargazerCount"`
	ForkCount         int               `json:"forkCount"`
	PrimaryLanguage   *namedNode        `json:"primaryLanguage"`
	RepositoryTopics  topicConn         `json:"repositoryTopics"`
	PushedAt          *time.Time        `json:"pushedAt"`
}

type loginRef struct {
	Login string `json:"login"`
}

type topicConn struct {
	Nodes []topicNode `json:"nodes"`
}

type topicNode struct {
	Topic namedNode `json:"topic"`
}

// check_issue_status response shape

type checkIssueStatusData struct {
	Repository struct {
		Issue struct {
			State      string     `json:"state"`
			StateReason string    `json:"stateReason"`
			ClosedAt   *time.Time `json:"closedAt"`
		} `json:"issue"`
	} `json:"repository"`
}

// IssueStatus is the result of CheckIssueStatus
type IssueStatus struct {
	State       string
	StateReason string
	ClosedAt    *time.Time
}

// get_repo_metadata response shape

type repoMetadataData struct {
	RateLimit  *rateLimitPayload `json:"rateLimit"`
	Repository *struct {
		NameWithOwner    string         `json:"nameWithOwner"`
		StargazerCount   int            `json:"stargazerCount"`
		ForkCount        int            `json:"forkCount"`
		PushedAt         *time.Time     `json:"pushedAt"`
		PrimaryLanguage  *namedNode     `json:"primaryLanguage"`
		Languages        languageConn   `json:"languages"`
		RepositoryTopics topicConn      `json:"repositoryTopics"`
		MentionableUsers struct {
			TotalCount int `json:"totalCount"`
		} `json:"mentionableUsers"`
	} `json:"repository"`
}

type languageConn struct {
	Edges []languageEdge `json:"edges"`
}

type languageEdge struct {
	Size int       `json:"size"`
	Node namedNode `json:"node"`
}

// RepoMetadata is the result of GetRepoMetadata
type RepoMetadata struct {
	NameWithOwner      string
	Stars              int
	Forks              int
	PrimaryLanguage    string
	Languages          map[string]int
	Topics             []string
	LastPush           *time.Time
	ContributorCount   int
}
