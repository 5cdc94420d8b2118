package githubapi

import (
	"context"
	"net/http"
	"testing"
	"time"
)

type capturingDoer struct {
	responses []*http.Response
	requests  []*http.Request
}

func (d *capturingDoer) Do(req *http.Request) (*http.Response, error) {
	idx := len(d.requests)
	d.requests = append(d.requests, req)
	if idx < len(d.responses) {
		return d.responses[idx], nil
	}
	return newResponse(http.StatusOK, map[string]string{"X-RateLimit-Remaining": "4999"}, "[]"), nil
}

func newTestDataClient(t *testing.T, doer HTTPDoer, observe RequestObserver) *DataClient {
	t.Helper()

	requestClient := NewClient(doer, RetryConfig{MaxAttempts: 1}, testRatePolicy(time.Unix(1739836800, 0)))
	dataClient, err := NewDataClient("https://api.github.com", requestClient, observe)
	if err != nil {
		t.Fatalf("build data client: %v", err)
	}
	return dataClient
}

func okJSON(body string) *http.Response {
	return newResponse(http.StatusOK, map[string]string{"X-RateLimit-Remaining": "4999"}, body)
}

func TestListUserRepos(t *testing.T) {
	t.Parallel()

	doer := &capturingDoer{
		responses: []*http.Response{
			okJSON(`[
				{"name":"alpha","owner":{"login":"octocat"},"pushed_at":"2026-02-10T12:00:00Z"},
				{"name":"beta","owner":{"login":"octocat"},"pushed_at":"","updated_at":"2026-02-01T00:00:00Z"}
			]`),
		},
	}
	client := newTestDataClient(t, doer, nil)

	result, err := client.ListUserRepos(context.Background(), "octocat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != EndpointStatusOK {
		t.Fatalf("status = %q, want ok", result.Status)
	}
	if len(result.Repos) != 2 {
		t.Fatalf("repos = %d, want 2", len(result.Repos))
	}
	if result.Repos[0].Owner != "octocat" || result.Repos[0].Name != "alpha" {
		t.Fatalf("unexpected first repo: %+v", result.Repos[0])
	}
	if result.Repos[0].UpdatedAt != time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC) {
		t.Fatalf("unexpected pushed_at parse: %v", result.Repos[0].UpdatedAt)
	}
	// Missing pushed_at falls back to updated_at.
	if result.Repos[1].UpdatedAt != time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("unexpected updated_at fallback: %v", result.Repos[1].UpdatedAt)
	}

	requestURL := doer.requests[0].URL
	if requestURL.Path != "/users/octocat/repos" {
		t.Fatalf("path = %q", requestURL.Path)
	}
	query := requestURL.Query()
	if query.Get("per_page") != "30" || query.Get("sort") != "updated" || query.Get("type") != "owner" {
		t.Fatalf("unexpected query: %q", requestURL.RawQuery)
	}
}

func TestListUserReposNonSuccessStatus(t *testing.T) {
	t.Parallel()

	var observed []EndpointStatus
	doer := &capturingDoer{
		responses: []*http.Response{
			newResponse(http.StatusNotFound, map[string]string{"X-RateLimit-Remaining": "4999"}, "missing"),
		},
	}
	client := newTestDataClient(t, doer, func(_ string, status EndpointStatus) {
		observed = append(observed, status)
	})

	result, err := client.ListUserRepos(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != EndpointStatusNotFound {
		t.Fatalf("status = %q, want not_found", result.Status)
	}
	if len(result.Repos) != 0 {
		t.Fatalf("repos = %d, want 0", len(result.Repos))
	}
	if len(observed) != 1 || observed[0] != EndpointStatusNotFound {
		t.Fatalf("observed = %v", observed)
	}
}

func TestListUserOrgsSkipsEmptyLogins(t *testing.T) {
	t.Parallel()

	doer := &capturingDoer{
		responses: []*http.Response{
			okJSON(`[{"login":"acme"},{"login":""},{"login":"widgets"}]`),
		},
	}
	client := newTestDataClient(t, doer, nil)

	result, err := client.ListUserOrgs(context.Background(), "octocat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Orgs) != 2 {
		t.Fatalf("orgs = %d, want 2", len(result.Orgs))
	}
	if result.Orgs[0].Login != "acme" || result.Orgs[1].Login != "widgets" {
		t.Fatalf("unexpected orgs: %+v", result.Orgs)
	}
}

func TestListOrgRepos(t *testing.T) {
	t.Parallel()

	doer := &capturingDoer{
		responses: []*http.Response{
			okJSON(`[
				{"name":"one","owner":{"login":"acme"},"pushed_at":"2026-02-10T12:00:00Z"},
				{"name":"two","owner":{"login":"acme"},"pushed_at":"2026-02-09T12:00:00Z"},
				{"name":"three","owner":{"login":"acme"},"pushed_at":"2026-02-08T12:00:00Z"}
			]`),
		},
	}
	client := newTestDataClient(t, doer, nil)

	result, err := client.ListOrgRepos(context.Background(), "acme", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Repos) != 2 {
		t.Fatalf("repos = %d, want 2", len(result.Repos))
	}

	query := doer.requests[0].URL.Query()
	if query.Get("per_page") != "2" || query.Get("sort") != "pushed" || query.Get("type") != "public" {
		t.Fatalf("unexpected query: %q", doer.requests[0].URL.RawQuery)
	}
}

func TestListOrgReposZeroLimitSkipsRequest(t *testing.T) {
	t.Parallel()

	doer := &capturingDoer{}
	client := newTestDataClient(t, doer, nil)

	result, err := client.ListOrgRepos(context.Background(), "acme", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != EndpointStatusOK || len(result.Repos) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(doer.requests) != 0 {
		t.Fatalf("requests = %d, want 0", len(doer.requests))
	}
}

func TestListUserCommits(t *testing.T) {
	t.Parallel()

	doer := &capturingDoer{
		responses: []*http.Response{
			okJSON(`[
				{
					"sha":"aaa",
					"author":{"login":"octocat"},
					"commit":{"author":{"name":"Octo Cat","email":"octo@users.noreply.github.com"}},
					"parents":[{"sha":"p1"}]
				},
				{
					"sha":"bbb",
					"author":null,
					"commit":{"author":{"name":"Mystery","email":"mystery@example.com"}},
					"parents":[{"sha":"p1"},{"sha":"p2"}]
				}
			]`),
		},
	}
	client := newTestDataClient(t, doer, nil)

	since := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	result, err := client.ListUserCommits(context.Background(), "octocat", "alpha", "octocat", since)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Commits) != 2 {
		t.Fatalf("commits = %d, want 2", len(result.Commits))
	}

	first := result.Commits[0]
	if first.SHA != "aaa" || first.Login != "octocat" || first.Parents != 1 {
		t.Fatalf("unexpected first commit: %+v", first)
	}
	second := result.Commits[1]
	if second.Login != "" || second.Parents != 2 || second.AuthorName != "Mystery" {
		t.Fatalf("unexpected second commit: %+v", second)
	}

	requestURL := doer.requests[0].URL
	if requestURL.Path != "/repos/octocat/alpha/commits" {
		t.Fatalf("path = %q", requestURL.Path)
	}
	query := requestURL.Query()
	if query.Get("author") != "octocat" {
		t.Fatalf("author = %q", query.Get("author"))
	}
	if query.Get("since") != "2026-01-15T00:00:00Z" {
		t.Fatalf("since = %q", query.Get("since"))
	}
	if query.Get("per_page") != "100" {
		t.Fatalf("per_page = %q", query.Get("per_page"))
	}
}

func TestEndpointStatusFromHTTP(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		statusCode int
		want       EndpointStatus
	}{
		{statusCode: http.StatusOK, want: EndpointStatusOK},
		{statusCode: http.StatusCreated, want: EndpointStatusOK},
		{statusCode: http.StatusForbidden, want: EndpointStatusForbidden},
		{statusCode: http.StatusTooManyRequests, want: EndpointStatusForbidden},
		{statusCode: http.StatusNotFound, want: EndpointStatusNotFound},
		{statusCode: http.StatusBadGateway, want: EndpointStatusUnavailable},
		{statusCode: http.StatusConflict, want: EndpointStatusUnknown},
	}
	for _, testCase := range testCases {
		got := endpointStatusFromHTTP(testCase.statusCode)
		if got != testCase.want {
			t.Fatalf("endpointStatusFromHTTP(%d) = %q, want %q", testCase.statusCode, got, testCase.want)
		}
	}
}
