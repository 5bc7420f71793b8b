package cmd

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Update(t *testing.T) {
	// Arrange: a fake GitHub with one source repository, one fork and one
	// repository whose statistics are never ready.
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"viewer":{"login":"me"}}}`)
	})
	mux.HandleFunc("/user/repos", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		if r.URL.Query().Get("page") != "1" {
			fmt.Fprint(w, `[]`)
			return
		}
		fmt.Fprint(w, `[
			{"name":"app","full_name":"me/app","fork":false,"owner":{"login":"me"}},
			{"name":"slow","full_name":"me/slow","fork":false,"owner":{"login":"me"}},
			{"name":"copy","full_name":"me/copy","fork":true,"owner":{"login":"me"}}
		]`)
	})
	mux.HandleFunc("/repos/me/app/stats/code_frequency", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[[1700000000, 120, -30], [1700604800, 40, -10]]`)
	})
	mux.HandleFunc("/repos/me/slow/stats/code_frequency", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, `{}`)
	})
	mux.HandleFunc("/repos/me/slow/languages", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"X": 1000, "Y": 530}`)
	})
	mux.HandleFunc("/repos/me/copy/", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("fork repository must not be queried: %s", r.URL.Path)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	t.Setenv("GH_TOKEN", "test-token")
	statsFile := filepath.Join(t.TempDir(), "stats.json")
	require.NoError(t, os.WriteFile(statsFile, []byte(`[{"date":"2000-01-01","total_lines":1}]`), 0o644))

	var stderr bytes.Buffer
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{
		"--no-color",
		"--stats-file", statsFile,
		"--api-url", server.URL,
		"--retry-attempts", "2",
		"--retry-delay", "1ms",
	})

	// Act
	err := rootCmd.Execute()

	// Assert
	require.NoError(t, err, stderr.String())
	data, err := os.ReadFile(statsFile)
	require.NoError(t, err)
	today := time.Now().UTC().Format("2006-01-02")
	expected := fmt.Sprintf(`[
  {
    "date": "2000-01-01",
    "total_lines": 1
  },
  {
    "date": %q,
    "total_lines": 230
  }
]
`, today)
	assert.Equal(t, expected, string(data))
	assert.Contains(t, stderr.String(), "Measuring repositories of me")
}
