package forge

// GraphQL query bodies, carried over field-for-field from the upstream
// discovery service this client descends from. Kept as verbatim string
// constants rather than a query builder since they never vary at runtime -
// only the variables map does.

const searchIssuesQuery = `
query SearchIssues($query: String!, $first: Int!, $after: String) {
  rateLimit {
    limit
    cost
    remaining
    resetAt
  }
  search(query: $query, type: ISSUE, first: $first, after: $after) {
    issueCount
    pageInfo {
      endCursor
      hasNextPage
    }
    edges {
      node {
        ... on Issue {
          id
          number
          title
          body
          url
          state
          createdAt
          updatedAt
          closedAt
          labels(first: 10) {
            nodes {
              name
            }
          }
          repository {
            nameWithOwner
            owner {
              login
            }
            name
            url
            stargazerCount
            forkCount
            primaryLanguage {
              name
            }
            repositoryTopics(first: 10) {
              nodes {
                topic {
                  name
                }
              }
            }
            pushedAt
          }
        }
      }
    }
  }
}
`

const getIssueDetailsQuery = `
query GetIssueDetails($owner: String!, $repo: String!, $number: Int!) {
  repository(owner: $owner, name: $repo) {
    issue(number: $number) {
      id
      number
      title
      body
      url
      state
      stateReason
      createdAt
      updatedAt
      closedAt
      labels(first: 20) {
        nodes {
          name
        }
      }
      assignees(first: 5) {
        totalCount
      }
      comments(first: 1) {
        totalCount
      }
      timelineItems(first: 1, itemTypes: [REFERENCED_EVENT]) {
        totalCount
      }
    }
  }
  rateLimit {
    remaining
    resetAt
  }
}
`

const checkIssueStatusQuery = `
query CheckIssueStatus($owner: String!, $repo: String!, $number: Int!) {
  repository(owner: $owner, name: $repo) {
    issue(number: $number) {
      state
      stateReason
      closedAt
    }
  }
}
`

const getRepoMetadataQuery = `
query GetRepoMetadata($owner: String!, $name: String!) {
  repository(owner: $owner, name: $name) {
    nameWithOwner
    stargazerCount
    forkCount
    pushedAt
    primaryLanguage {
      name
    }
    languages(first: 10, orderBy: {field: SIZE, direction: DESC}) {
      edges {
        size
        node {
          name
        }
      }
    }
    repositoryTopics(first: 20) {
      nodes {
        topic {
          name
        }
      }
    }
    mentionableUsers {
      totalCount
    }
  }
  rateLimit {
    remaining
    resetAt
  }
}
`
