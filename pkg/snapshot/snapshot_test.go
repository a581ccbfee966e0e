package snapshot

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/CompassSecurity/custompatterns/internal/githubmock"
	"github.com/CompassSecurity/custompatterns/pkg/httpclient"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commit(path string, line int) Location {
	return Location{Type: "commit", Path: path, Commit: "abc123", StartLine: line, EndLine: line, StartColumn: 5, EndColumn: 20}
}

func tokenAlerts() []Alert {
	return []Alert{
		{
			Number: 2, SecretType: "token", DisplayName: "Token",
			Locations: []Location{commit("src/b.py", 3), commit("src/a.py", 7), commit("src/a.py", 7)},
		},
		{
			Number: 1, SecretType: "token", DisplayName: "Token",
			Locations: []Location{
				commit("src/a.py", 1),
				commit(".venv/lib/site.py", 1),
				{Type: "issue_title"},
			},
		},
	}
}

func TestRows(t *testing.T) {
	rows := Rows(tokenAlerts())

	require.Len(t, rows, 3)
	assert.Equal(t, Row{SecretType: "token", DisplayName: "Token", Commit: "abc123", Path: "src/a.py", StartLine: 1, EndLine: 1, StartColumn: 5, EndColumn: 20}, rows[0])
	assert.Equal(t, "src/a.py", rows[1].Path)
	assert.Equal(t, 7, rows[1].StartLine)
	assert.Equal(t, "src/b.py", rows[2].Path)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []Row{{SecretType: "token", DisplayName: "Token, legacy", Commit: "abc", Path: "a.py", StartLine: 1, EndLine: 2, StartColumn: 3, EndColumn: 4}}))

	assert.Equal(t, "secret_type,secret_type_display_name,commit,path,start_line,end_line,start_column,end_column\n"+
		"token,\"Token, legacy\",abc,a.py,1,2,3,4\n", buf.String())

	rows, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Token, legacy", rows[0].DisplayName)
	assert.Equal(t, 4, rows[0].EndColumn)
}

func TestReadCSVErrors(t *testing.T) {
	header := strings.Join(Header, ",") + "\n"
	tests := []struct {
		name   string
		input  string
		errMsg string
	}{
		{name: "wrong header", input: "a,b,c,d,e,f,g,h\n", errMsg: "unexpected snapshot header"},
		{name: "short record", input: header + "token,Token,abc\n", errMsg: "failed to read snapshot"},
		{name: "bad number", input: header + "token,Token,abc,a.py,1,x,3,4\n", errMsg: "invalid end_line on line 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	rows, err := ReadCSV(strings.NewReader(""))
	assert.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCompare(t *testing.T) {
	expected := Rows(tokenAlerts())

	d, err := Compare(expected, expected)
	require.NoError(t, err)
	assert.True(t, d.Empty())
	assert.Empty(t, d.Unified)

	current := append([]Row{{SecretType: "token", DisplayName: "Token", Commit: "def", Path: "src/c.py", StartLine: 9, EndLine: 9}}, expected[1:]...)
	d, err = Compare(expected, current)
	require.NoError(t, err)
	assert.False(t, d.Empty())
	require.Len(t, d.Added, 1)
	assert.Equal(t, "src/c.py", d.Added[0].Path)
	require.Len(t, d.Removed, 1)
	assert.Equal(t, 1, d.Removed[0].StartLine)
	assert.Contains(t, d.Unified, "--- expected")
	assert.Contains(t, d.Unified, "+++ current")
	assert.Contains(t, d.Unified, "-token,Token,abc123,src/a.py,1,1,5,20")
	assert.Contains(t, d.Unified, "+token,Token,def,src/c.py,9,9,0,0")
}

type staticSource struct {
	alerts []Alert
	err    error
	calls  []string
}

func (s *staticSource) Alerts(_ context.Context, secretType string) ([]Alert, error) {
	s.calls = append(s.calls, secretType)
	return s.alerts, s.err
}

func TestManager(t *testing.T) {
	fsys := afero.NewMemMapFs()
	source := &staticSource{alerts: tokenAlerts()}
	m := &Manager{Fs: fsys, Dir: "/patterns/tokens", Source: source}

	_, err := m.Check(context.Background(), "token")
	require.ErrorIs(t, err, ErrNoSnapshot)

	rows, err := m.Update(context.Background(), "token")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	exists, err := afero.Exists(fsys, "/patterns/tokens/__snapshots__/token.csv")
	require.NoError(t, err)
	assert.True(t, exists)

	d, err := m.Check(context.Background(), "token")
	require.NoError(t, err)
	assert.True(t, d.Empty())
	exists, _ = afero.Exists(fsys, m.CurrentPath("token"))
	assert.False(t, exists)

	source.alerts = tokenAlerts()[:1]
	d, err = m.Check(context.Background(), "token")
	require.NoError(t, err)
	assert.Len(t, d.Removed, 1)
	assert.Empty(t, d.Added)
	current, err := afero.ReadFile(fsys, "/patterns/tokens/__snapshots__/token-current.csv")
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(current), "\n"))

	source.alerts = tokenAlerts()
	d, err = m.Check(context.Background(), "token")
	require.NoError(t, err)
	assert.True(t, d.Empty())
	exists, _ = afero.Exists(fsys, m.CurrentPath("token"))
	assert.False(t, exists, "current snapshot is removed once it matches again")

	assert.Equal(t, []string{"token", "token", "token", "token"}, source.calls)
}

func TestManagerSourceError(t *testing.T) {
	m := &Manager{Fs: afero.NewMemMapFs(), Dir: "/p", Source: &staticSource{err: errors.New("boom")}}
	_, err := m.Update(context.Background(), "token")
	assert.EqualError(t, err, "boom")
}

func TestGitHubSource(t *testing.T) {
	server := githubmock.NewServer(
		githubmock.Alert{Number: 1, SecretType: "token", DisplayName: "Token", Locations: []githubmock.Location{
			{Path: "src/a.py", Commit: "abc123", StartLine: 1, EndLine: 1, StartColumn: 5, EndColumn: 20},
			{Type: "issue_title"},
		}},
		githubmock.Alert{Number: 2, SecretType: "token", DisplayName: "Token", Locations: []githubmock.Location{
			{Path: "src/b.py", Commit: "def456", StartLine: 3, EndLine: 4, StartColumn: 1, EndColumn: 2},
		}},
		githubmock.Alert{Number: 3, SecretType: "token", Resolved: true},
		githubmock.Alert{Number: 4, SecretType: "key"},
	)
	server.PageSize = 1
	defer server.Close()

	client, err := NewGitHubClient("ghp_test", server.BaseURL(), httpclient.Options{})
	require.NoError(t, err)

	alerts, err := NewGitHubSource(client, "octo", "patterns").Alerts(context.Background(), "token")
	require.NoError(t, err)

	require.Len(t, alerts, 2)
	assert.Equal(t, int64(1), alerts[0].Number)
	assert.Equal(t, "Token", alerts[0].DisplayName)
	require.Len(t, alerts[0].Locations, 2)
	assert.Equal(t, Location{Type: "commit", Path: "src/a.py", Commit: "abc123", StartLine: 1, EndLine: 1, StartColumn: 5, EndColumn: 20}, alerts[0].Locations[0])
	assert.Equal(t, "issue_title", alerts[0].Locations[1].Type)

	rows := Rows(alerts)
	require.Len(t, rows, 2)
	assert.Equal(t, "def456", rows[1].Commit)

	requests := server.Requests()
	assert.Contains(t, requests[0], "/api/v3/repos/octo/patterns/secret-scanning/alerts?")
	assert.Contains(t, requests[0], "state=open")
	assert.Contains(t, requests[0], "secret_type=token")
}

func TestGitHubSourceError(t *testing.T) {
	server := githubmock.NewServer()
	server.Repositories = []string{"octo/patterns"}
	defer server.Close()

	client, err := NewGitHubClient("", server.BaseURL(), httpclient.Options{})
	require.NoError(t, err)

	alerts, err := NewGitHubSource(client, "octo", "patterns").Alerts(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, alerts)

	_, err = NewGitHubSource(client, "octo", "missing").Alerts(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list secret scanning alerts")
}
