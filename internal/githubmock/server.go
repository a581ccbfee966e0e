// Package githubmock serves the secret scanning endpoints of the GitHub API
// from memory.
package githubmock

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

type Location struct {
	// Type defaults to "commit".
	Type        string
	Path        string
	Commit      string
	StartLine   int
	EndLine     int
	StartColumn int
	EndColumn   int
}

type Alert struct {
	Number      int
	SecretType  string
	DisplayName string
	// Resolved alerts are not listed for state=open.
	Resolved  bool
	Locations []Location
}

// Server is an httptest server answering under /api/v3 like GitHub
// Enterprise Server does.
type Server struct {
	*httptest.Server

	// PageSize bounds the alerts and locations per page.
	PageSize int
	// Repositories lists the owner/repo names that exist. Empty means all.
	Repositories []string

	mu       sync.Mutex
	alerts   []Alert
	requests []string
}

func NewServer(alerts ...Alert) *Server {
	s := &Server{PageSize: 100, alerts: alerts}

	h := http.NewServeMux()
	h.HandleFunc("GET /api/v3/repos/{owner}/{repo}/secret-scanning/alerts", s.listAlerts)
	h.HandleFunc("GET /api/v3/repos/{owner}/{repo}/secret-scanning/alerts/{number}/locations", s.listLocations)
	h.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
	})

	s.Server = httptest.NewServer(h)
	return s
}

// BaseURL is the URL to pass as GitHub URL.
func (s *Server) BaseURL() string {
	return s.URL + "/"
}

func (s *Server) SetAlerts(alerts ...Alert) {
	s.mu.Lock()
	s.alerts = alerts
	s.mu.Unlock()
}

// Requests returns the paths and queries received so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

func (s *Server) record(r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.URL.RequestURI())
	s.mu.Unlock()
	log.Trace().Str("method", r.Method).Str("uri", r.URL.RequestURI()).Msg("Mock server received request")
}

func (s *Server) exists(w http.ResponseWriter, r *http.Request) bool {
	repo := r.PathValue("owner") + "/" + r.PathValue("repo")
	if len(s.Repositories) == 0 || slices.Contains(s.Repositories, repo) {
		return true
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
	return false
}

func (s *Server) listAlerts(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	if !s.exists(w, r) {
		return
	}

	query := r.URL.Query()
	var types []string
	if t := query.Get("secret_type"); t != "" {
		types = strings.Split(t, ",")
	}

	s.mu.Lock()
	var items []map[string]any
	for _, a := range s.alerts {
		if query.Get("state") == "open" && a.Resolved {
			continue
		}
		if len(types) > 0 && !slices.Contains(types, a.SecretType) {
			continue
		}
		state := "open"
		if a.Resolved {
			state = "resolved"
		}
		items = append(items, map[string]any{
			"number":                   a.Number,
			"state":                    state,
			"secret_type":              a.SecretType,
			"secret_type_display_name": a.DisplayName,
		})
	}
	s.mu.Unlock()

	s.writePage(w, r, items)
}

func (s *Server) listLocations(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	if !s.exists(w, r) {
		return
	}

	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid alert number"})
		return
	}

	s.mu.Lock()
	idx := slices.IndexFunc(s.alerts, func(a Alert) bool { return a.Number == number })
	if idx < 0 {
		s.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	var items []map[string]any
	for _, l := range s.alerts[idx].Locations {
		kind := l.Type
		if kind == "" {
			kind = "commit"
		}
		items = append(items, map[string]any{
			"type": kind,
			"details": map[string]any{
				"path":         l.Path,
				"commit_sha":   l.Commit,
				"start_line":   l.StartLine,
				"end_line":     l.EndLine,
				"start_column": l.StartColumn,
				"end_column":   l.EndColumn,
			},
		})
	}
	s.mu.Unlock()

	s.writePage(w, r, items)
}

// writePage writes one page of items and a Link header pointing to the next.
func (s *Server) writePage(w http.ResponseWriter, r *http.Request, items []map[string]any) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	size := s.PageSize
	if size < 1 {
		size = 100
	}

	start := min((page-1)*size, len(items))
	end := min(start+size, len(items))
	if end < len(items) {
		next := *r.URL
		q := next.Query()
		q.Set("page", strconv.Itoa(page+1))
		next.RawQuery = q.Encode()
		w.Header().Set("Link", fmt.Sprintf(`<http://%s%s>; rel="next"`, r.Host, next.RequestURI()))
	}

	body := items[start:end]
	if body == nil {
		body = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
