package githubapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultGitHubAPIBaseURL = "https://api.github.com/"

// firstPageSize is the provider page size for commit queries. Only the first
// page is consulted; repositories with more qualifying raw entries in the
// window undercount.
const firstPageSize = 100

// ownedRepoFetchCap bounds how many of the user's own repositories are
// fetched, most recently updated first.
const ownedRepoFetchCap = 30

// EndpointStatus represents a normalized GitHub API endpoint outcome.
type EndpointStatus string

const (
	// EndpointStatusOK indicates a successful response.
	EndpointStatusOK EndpointStatus = "ok"
	// EndpointStatusForbidden indicates authorization failure or exhausted rate limits.
	EndpointStatusForbidden EndpointStatus = "forbidden"
	// EndpointStatusNotFound indicates the resource does not exist or is hidden.
	EndpointStatusNotFound EndpointStatus = "not_found"
	// EndpointStatusUnavailable indicates a temporary service-side failure.
	EndpointStatusUnavailable EndpointStatus = "unavailable"
	// EndpointStatusUnknown indicates an unclassified non-success status.
	EndpointStatusUnknown EndpointStatus = "unknown"
)

// Repository is one repository descriptor from the provider.
type Repository struct {
	Name      string
	Owner     string
	UpdatedAt time.Time
}

// Organization is one organization the monitored user belongs to.
type Organization struct {
	Login string
}

// Commit is one commit entry from the commit list endpoint. Any of the
// identity fields may be absent.
type Commit struct {
	SHA         string
	Login       string
	AuthorName  string
	AuthorEmail string
	Parents     int
}

// UserReposResult is the typed result for listing a user's own repositories.
type UserReposResult struct {
	Status   EndpointStatus
	Repos    []Repository
	Metadata CallMetadata
}

// UserOrgsResult is the typed result for listing a user's organizations.
type UserOrgsResult struct {
	Status   EndpointStatus
	Orgs     []Organization
	Metadata CallMetadata
}

// OrgReposResult is the typed result for listing an organization's public
// repositories.
type OrgReposResult struct {
	Status   EndpointStatus
	Repos    []Repository
	Metadata CallMetadata
}

// CommitListResult is the typed result for listing repository commits by one
// author since an instant.
type CommitListResult struct {
	Status   EndpointStatus
	Commits  []Commit
	Metadata CallMetadata
}

// RequestObserver records one provider call outcome, keyed by endpoint name.
type RequestObserver func(endpoint string, status EndpointStatus)

// DataClient is a typed GitHub REST data client for the activity endpoints.
type DataClient struct {
	baseURL       *url.URL
	requestClient *Client
	observe       RequestObserver
}

// NewDataClient creates a typed data client over the generic retry/rate-limit
// request client.
func NewDataClient(baseURL string, requestClient *Client, observe RequestObserver) (*DataClient, error) {
	if requestClient == nil {
		return nil, fmt.Errorf("request client is required")
	}

	parsed, err := parseAPIBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	return &DataClient{
		baseURL:       parsed,
		requestClient: requestClient,
		observe:       observe,
	}, nil
}

// ListUserRepos lists the user's own repositories, most recently updated
// first. Only the first page is fetched.
func (c *DataClient) ListUserRepos(ctx context.Context, user string) (UserReposResult, error) {
	trimmedUser := strings.TrimSpace(user)
	if trimmedUser == "" {
		return UserReposResult{}, fmt.Errorf("user is required")
	}

	reqURL := c.cloneBaseURL()
	reqURL.Path = joinURLPath(reqURL.Path, "users", url.PathEscape(trimmedUser), "repos")
	query := reqURL.Query()
	query.Set("per_page", strconv.Itoa(ownedRepoFetchCap))
	query.Set("sort", "updated")
	query.Set("type", "owner")
	reqURL.RawQuery = query.Encode()

	resp, metadata, err := c.get(ctx, "list_user_repos", reqURL)
	if err != nil {
		return UserReposResult{}, fmt.Errorf("list user repos request failed: %w", err)
	}

	result := UserReposResult{
		Status:   endpointStatusFromHTTP(resp.StatusCode),
		Metadata: metadata,
	}
	if result.Status != EndpointStatusOK {
		_ = resp.Body.Close()
		return result, nil
	}

	var payload []repositoryPayload
	if err := decodeJSONAndClose(resp, &payload); err != nil {
		return UserReposResult{}, fmt.Errorf("decode list user repos response: %w", err)
	}
	for _, repo := range payload {
		result.Repos = append(result.Repos, repo.toRepository())
	}
	return result, nil
}

// ListUserOrgs lists the organizations the user publicly belongs to.
func (c *DataClient) ListUserOrgs(ctx context.Context, user string) (UserOrgsResult, error) {
	trimmedUser := strings.TrimSpace(user)
	if trimmedUser == "" {
		return UserOrgsResult{}, fmt.Errorf("user is required")
	}

	reqURL := c.cloneBaseURL()
	reqURL.Path = joinURLPath(reqURL.Path, "users", url.PathEscape(trimmedUser), "orgs")
	query := reqURL.Query()
	query.Set("per_page", strconv.Itoa(firstPageSize))
	reqURL.RawQuery = query.Encode()

	resp, metadata, err := c.get(ctx, "list_user_orgs", reqURL)
	if err != nil {
		return UserOrgsResult{}, fmt.Errorf("list user orgs request failed: %w", err)
	}

	result := UserOrgsResult{
		Status:   endpointStatusFromHTTP(resp.StatusCode),
		Metadata: metadata,
	}
	if result.Status != EndpointStatusOK {
		_ = resp.Body.Close()
		return result, nil
	}

	var payload []organizationPayload
	if err := decodeJSONAndClose(resp, &payload); err != nil {
		return UserOrgsResult{}, fmt.Errorf("decode list user orgs response: %w", err)
	}
	for _, org := range payload {
		if org.Login == "" {
			continue
		}
		result.Orgs = append(result.Orgs, Organization{Login: org.Login})
	}
	return result, nil
}

// ListOrgRepos lists an organization's public repositories by recent push,
// capped at limit. Only the first page is fetched.
func (c *DataClient) ListOrgRepos(ctx context.Context, org string, limit int) (OrgReposResult, error) {
	trimmedOrg := strings.TrimSpace(org)
	if trimmedOrg == "" {
		return OrgReposResult{}, fmt.Errorf("organization is required")
	}
	if limit <= 0 {
		return OrgReposResult{Status: EndpointStatusOK}, nil
	}
	pageSize := limit
	if pageSize > firstPageSize {
		pageSize = firstPageSize
	}

	reqURL := c.cloneBaseURL()
	reqURL.Path = joinURLPath(reqURL.Path, "orgs", url.PathEscape(trimmedOrg), "repos")
	query := reqURL.Query()
	query.Set("per_page", strconv.Itoa(pageSize))
	query.Set("sort", "pushed")
	query.Set("type", "public")
	reqURL.RawQuery = query.Encode()

	resp, metadata, err := c.get(ctx, "list_org_repos", reqURL)
	if err != nil {
		return OrgReposResult{}, fmt.Errorf("list org repos request failed: %w", err)
	}

	result := OrgReposResult{
		Status:   endpointStatusFromHTTP(resp.StatusCode),
		Metadata: metadata,
	}
	if result.Status != EndpointStatusOK {
		_ = resp.Body.Close()
		return result, nil
	}

	var payload []repositoryPayload
	if err := decodeJSONAndClose(resp, &payload); err != nil {
		return OrgReposResult{}, fmt.Errorf("decode list org repos response: %w", err)
	}
	for _, repo := range payload {
		if len(result.Repos) >= limit {
			break
		}
		result.Repos = append(result.Repos, repo.toRepository())
	}
	return result, nil
}

// ListUserCommits lists commits authored by one user in a repository no
// earlier than since. Only the first page (up to 100 entries) is consulted.
func (c *DataClient) ListUserCommits(ctx context.Context, owner, repo, author string, since time.Time) (CommitListResult, error) {
	trimmedOwner := strings.TrimSpace(owner)
	trimmedRepo := strings.TrimSpace(repo)
	trimmedAuthor := strings.TrimSpace(author)
	if trimmedOwner == "" {
		return CommitListResult{}, fmt.Errorf("owner is required")
	}
	if trimmedRepo == "" {
		return CommitListResult{}, fmt.Errorf("repo is required")
	}
	if trimmedAuthor == "" {
		return CommitListResult{}, fmt.Errorf("author is required")
	}

	reqURL := c.cloneBaseURL()
	reqURL.Path = joinURLPath(reqURL.Path, "repos", url.PathEscape(trimmedOwner), url.PathEscape(trimmedRepo), "commits")
	query := reqURL.Query()
	query.Set("author", trimmedAuthor)
	query.Set("per_page", strconv.Itoa(firstPageSize))
	if !since.IsZero() {
		query.Set("since", since.UTC().Format(time.RFC3339))
	}
	reqURL.RawQuery = query.Encode()

	resp, metadata, err := c.get(ctx, "list_user_commits", reqURL)
	if err != nil {
		return CommitListResult{}, fmt.Errorf("list user commits request failed: %w", err)
	}

	result := CommitListResult{
		Status:   endpointStatusFromHTTP(resp.StatusCode),
		Metadata: metadata,
	}
	if result.Status != EndpointStatusOK {
		_ = resp.Body.Close()
		return result, nil
	}

	var payload []commitListPayload
	if err := decodeJSONAndClose(resp, &payload); err != nil {
		return CommitListResult{}, fmt.Errorf("decode list user commits response: %w", err)
	}
	for _, commit := range payload {
		typed := Commit{
			SHA:         commit.SHA,
			AuthorName:  commit.Commit.Author.Name,
			AuthorEmail: commit.Commit.Author.Email,
			Parents:     len(commit.Parents),
		}
		if commit.Author != nil {
			typed.Login = commit.Author.Login
		}
		result.Commits = append(result.Commits, typed)
	}
	return result, nil
}

func (c *DataClient) get(ctx context.Context, endpoint string, reqURL *url.URL) (*http.Response, CallMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, CallMetadata{}, fmt.Errorf("build %s request: %w", endpoint, err)
	}

	resp, metadata, err := c.requestClient.Do(req)
	if err != nil {
		c.record(endpoint, EndpointStatusUnavailable)
		return nil, metadata, err
	}
	if resp == nil {
		c.record(endpoint, EndpointStatusUnavailable)
		return nil, metadata, fmt.Errorf("%s request failed: nil response", endpoint)
	}
	c.record(endpoint, endpointStatusFromHTTP(resp.StatusCode))
	return resp, metadata, nil
}

func (c *DataClient) record(endpoint string, status EndpointStatus) {
	if c.observe == nil {
		return
	}
	c.observe(endpoint, status)
}

func parseAPIBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultGitHubAPIBaseURL
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse github api base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("parse github api base url: missing scheme or host")
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	return parsed, nil
}

func (c *DataClient) cloneBaseURL() *url.URL {
	cloned := *c.baseURL
	return &cloned
}

func joinURLPath(base string, segments ...string) string {
	trimmedBase := strings.TrimSuffix(base, "/")
	builder := strings.Builder{}
	builder.WriteString(trimmedBase)
	for _, segment := range segments {
		builder.WriteString("/")
		builder.WriteString(strings.TrimPrefix(segment, "/"))
	}
	return builder.String()
}

func endpointStatusFromHTTP(statusCode int) EndpointStatus {
	switch statusCode {
	case http.StatusForbidden, http.StatusTooManyRequests:
		return EndpointStatusForbidden
	case http.StatusNotFound:
		return EndpointStatusNotFound
	}
	if statusCode >= 200 && statusCode <= 299 {
		return EndpointStatusOK
	}
	if statusCode >= 500 {
		return EndpointStatusUnavailable
	}
	return EndpointStatusUnknown
}

func decodeJSONAndClose(resp *http.Response, target any) error {
	defer resp.Body.Close()
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(target); err != nil {
		return err
	}
	return nil
}

func parseRFC3339(raw string) time.Time {
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}

type repositoryPayload struct {
	Name      string       `json:"name"`
	Owner     *userPayload `json:"owner"`
	PushedAt  string       `json:"pushed_at"`
	UpdatedAt string       `json:"updated_at"`
}

func (p repositoryPayload) toRepository() Repository {
	repo := Repository{
		Name:      p.Name,
		UpdatedAt: parseRFC3339(p.PushedAt),
	}
	if repo.UpdatedAt.IsZero() {
		repo.UpdatedAt = parseRFC3339(p.UpdatedAt)
	}
	if p.Owner != nil {
		repo.Owner = p.Owner.Login
	}
	return repo
}

type organizationPayload struct {
	Login string `json:"login"`
}

type commitListPayload struct {
	SHA     string          `json:"sha"`
	Author  *userPayload    `json:"author"`
	Commit  commitCoreBlock `json:"commit"`
	Parents []parentPayload `json:"parents"`
}

type commitCoreBlock struct {
	Author commitAuthorBlock `json:"author"`
}

type commitAuthorBlock struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type parentPayload struct {
	SHA string `json:"sha"`
}

type userPayload struct {
	Login string `json:"login"`
}
