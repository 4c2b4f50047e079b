package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/Sujin1135/mangonaut/internal/apperr"
	"github.com/Sujin1135/mangonaut/internal/domain"
)

var testRepo = domain.RepoID{Owner: "acme", Repo: "backend"}

func newTestClient(t *testing.T, handler http.Handler) (*Client, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "ghs_test"})
	client, err := NewClient(ts, srv.URL, nil)
	require.NoError(t, err)
	return client, srv.Close
}

func TestGetFileContent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/backend/contents/src/Main.kt", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "main", r.URL.Query().Get("ref"))
		assert.Equal(t, "Bearer ghs_test", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"type":     "file",
			"name":     "Main.kt",
			"path":     "src/Main.kt",
			"sha":      "abc123",
			"encoding": "base64",
			"content":  base64.StdEncoding.EncodeToString([]byte("fun main() {}\n")),
		})
	})

	client, done := newTestClient(t, mux)
	defer done()

	content, err := client.GetFileContent(context.Background(), testRepo, "src/Main.kt", "main")
	require.NoError(t, err)
	assert.Equal(t, "fun main() {}\n", content)
}

func TestGetFileContentNotFound(t *testing.T) {
	client, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Not Found"}`, http.StatusNotFound)
	}))
	defer done()

	_, err := client.GetFileContent(context.Background(), testRepo, "missing.kt", "main")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeGitHubAPI, apperr.CodeOf(err))
}

func TestResolveFilePaths(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/backend/git/trees/main", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("recursive"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sha": "tree123",
			"tree": []map[string]any{
				{"path": "src", "type": "tree"},
				{"path": "src/io/contents/Runner.kt", "type": "blob"},
				{"path": "src/io/contents/Helper.kt", "type": "blob"},
			},
		})
	})

	client, done := newTestClient(t, mux)
	defer done()

	resolved, err := client.ResolveFilePaths(context.Background(), testRepo,
		[]string{"io/contents/Runner.kt", "Nowhere.kt"}, "main")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"io/contents/Runner.kt": "src/io/contents/Runner.kt",
	}, resolved)
}

func TestCreateBranch(t *testing.T) {
	var createdRef map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/backend/git/ref/heads/main", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ref":    "refs/heads/main",
			"object": map[string]any{"sha": "base-sha", "type": "commit"},
		})
	})
	mux.HandleFunc("/repos/acme/backend/git/refs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&createdRef))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"ref": "refs/heads/fix/mangonaut-issue-123"})
	})

	client, done := newTestClient(t, mux)
	defer done()

	err := client.CreateBranch(context.Background(), testRepo, "main", "fix/mangonaut-issue-123")
	require.NoError(t, err)
	assert.Equal(t, "refs/heads/fix/mangonaut-issue-123", createdRef["ref"])
	assert.Equal(t, "base-sha", createdRef["sha"])
}

func TestCommitFilesUpdatesExistingAndCreatesNew(t *testing.T) {
	puts := map[string]map[string]any{}
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/backend/contents/", func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path[len("/repos/acme/backend/contents/"):]
		switch r.Method {
		case http.MethodGet:
			if path == "existing.kt" {
				_ = json.NewEncoder(w).Encode(map[string]any{
					"type": "file", "path": path, "sha": "old-sha",
					"encoding": "base64", "content": "",
				})
				return
			}
			http.Error(w, `{"message": "Not Found"}`, http.StatusNotFound)
		case http.MethodPut:
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			puts[path] = body
			_ = json.NewEncoder(w).Encode(map[string]any{"content": map[string]any{"path": path}})
		}
	})

	client, done := newTestClient(t, mux)
	defer done()

	changes := []domain.FileChange{
		{File: "existing.kt", Modified: "updated"},
		{File: "brand/new.kt", Modified: "created"},
	}
	err := client.CommitFiles(context.Background(), testRepo, "fix/branch", changes, "fix: handle nil")
	require.NoError(t, err)

	require.Len(t, puts, 2)
	assert.Equal(t, "old-sha", puts["existing.kt"]["sha"])
	assert.Equal(t, "fix: handle nil", puts["existing.kt"]["message"])
	assert.Equal(t, "fix/branch", puts["existing.kt"]["branch"])
	assert.NotContains(t, puts["brand/new.kt"], "sha")
	decoded, err := base64.StdEncoding.DecodeString(puts["brand/new.kt"]["content"].(string))
	require.NoError(t, err)
	assert.Equal(t, "created", string(decoded))
}

func TestCreatePullRequest(t *testing.T) {
	var labels []string
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/backend/pulls", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "fix: NPE in Runner", body["title"])
		assert.Equal(t, "fix/mangonaut-issue-123", body["head"])
		assert.Equal(t, "main", body["base"])
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"number":   7,
			"url":      "https://api.github.com/repos/acme/backend/pulls/7",
			"html_url": "https://github.com/acme/backend/pull/7",
			"state":    "open",
		})
	})
	mux.HandleFunc("/repos/acme/backend/issues/7/labels", func(w http.ResponseWriter, r *http.Request) {
		var body []string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		labels = body
		_ = json.NewEncoder(w).Encode([]map[string]any{})
	})

	client, done := newTestClient(t, mux)
	defer done()

	result, err := client.CreatePullRequest(context.Background(), testRepo, domain.PrParams{
		Title:      "fix: NPE in Runner",
		Body:       "automated fix",
		BaseBranch: "main",
		HeadBranch: "fix/mangonaut-issue-123",
		Labels:     []string{"auto-fix", "ai-generated"},
	})
	require.NoError(t, err)

	assert.Equal(t, 7, result.Number)
	assert.Equal(t, "https://github.com/acme/backend/pull/7", result.HTMLURL)
	assert.Equal(t, "open", result.State)
	assert.Equal(t, []string{"auto-fix", "ai-generated"}, labels)
}

func TestCreatePullRequestLabelFailureIsNotFatal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/backend/pulls", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"number": 8, "state": "open"})
	})
	mux.HandleFunc("/repos/acme/backend/issues/8/labels", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "boom"}`, http.StatusInternalServerError)
	})

	client, done := newTestClient(t, mux)
	defer done()

	result, err := client.CreatePullRequest(context.Background(), testRepo, domain.PrParams{
		Labels: []string{"auto-fix"},
	})
	require.NoError(t, err)
	assert.Equal(t, 8, result.Number)
}

func TestHasOpenPR(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/backend/pulls", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "acme:fix/mangonaut-issue-123", r.URL.Query().Get("head"))
		assert.Equal(t, "open", r.URL.Query().Get("state"))
		_ = json.NewEncoder(w).Encode([]map[string]any{{"number": 7, "state": "open"}})
	})

	client, done := newTestClient(t, mux)
	defer done()

	assert.True(t, client.HasOpenPR(context.Background(), testRepo, "fix/mangonaut-issue-123"))
}

func TestHasOpenPRFailuresMeanNoDuplicate(t *testing.T) {
	client, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "boom"}`, http.StatusBadGateway)
	}))
	defer done()

	assert.False(t, client.HasOpenPR(context.Background(), testRepo, "fix/any"))
}

func TestHealthCheck(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/zen", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`"Keep it logically awesome."`))
	})

	client, done := newTestClient(t, mux)
	defer done()

	assert.True(t, client.HealthCheck(context.Background()))
}
