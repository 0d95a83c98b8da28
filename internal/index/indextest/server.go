// Package indextest provides an in-memory index service for tests. It speaks
// enough of the select, stats, facet and core-admin API to exercise the client
// end to end, evaluating filters against a fixed document set.
package indextest

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/arkilian/spatialbench/internal/query/filter"
	"github.com/arkilian/spatialbench/pkg/types"
)

// Server is a fake index hosting a single core.
type Server struct {
	*httptest.Server

	Core string

	mu       sync.Mutex
	docs     []types.Document
	requests []*http.Request
	failures map[string]*failure
}

type failure struct {
	status int
	skip   int
}

// NewServer starts a fake index serving docs under core.
func NewServer(core string, docs []types.Document) *Server {
	s := &Server{
		Core:     core,
		docs:     docs,
		failures: make(map[string]*failure),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/"+core+"/select", s.handleSelect)
	mux.HandleFunc("/admin/cores", s.handleCores)
	s.Server = httptest.NewServer(mux)
	return s
}

// FailWith makes every subsequent request whose path or unescaped query
// string contains substr answer with status.
func (s *Server) FailWith(substr string, status int) {
	s.FailAfter(substr, 0, status)
}

// FailAfter lets the first n requests whose path or query string contains substr
// through and answers every later one with status.
func (s *Server) FailAfter(substr string, n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[substr] = &failure{status: status, skip: n}
}

// Requests returns the query parameters of every request received so far.
func (s *Server) Requests() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]url.Values, len(s.requests))
	for i, r := range s.requests {
		out[i] = r.URL.Query()
	}
	return out
}

// Headers returns the headers of every request received so far.
func (s *Server) Headers() []http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]http.Header, len(s.requests))
	for i, r := range s.requests {
		out[i] = r.Header.Clone()
	}
	return out
}

// Reset clears recorded requests.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

func (s *Server) record(r *http.Request) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r)
	raw, _ := url.QueryUnescape(r.URL.RawQuery)
	raw = r.URL.Path + "?" + raw
	for substr, f := range s.failures {
		if !strings.Contains(raw, substr) {
			continue
		}
		if f.skip > 0 {
			f.skip--
			continue
		}
		return f.status, true
	}
	return 0, false
}

func (s *Server) handleCores(w http.ResponseWriter, r *http.Request) {
	if status, fail := s.record(r); fail {
		http.Error(w, "injected failure", status)
		return
	}
	writeJSON(w, map[string]interface{}{
		"responseHeader": map[string]interface{}{"status": 0, "QTime": 0},
		"status": map[string]interface{}{
			s.Core: map[string]interface{}{"name": s.Core},
		},
	})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	if status, fail := s.record(r); fail {
		http.Error(w, "injected failure", status)
		return
	}

	params := r.URL.Query()
	predicates := append([]string{params.Get("q")}, params["fq"]...)

	var matched []types.Document
	for _, doc := range s.docs {
		ok := true
		for _, p := range predicates {
			m, err := matches(doc, p)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if !m {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, doc)
		}
	}

	out := map[string]interface{}{
		"responseHeader": map[string]interface{}{"status": 0, "QTime": 1},
	}

	start, _ := strconv.Atoi(params.Get("start"))
	rows := 10
	if v := params.Get("rows"); v != "" {
		rows, _ = strconv.Atoi(v)
	}
	page := []types.Document{}
	if start < len(matched) {
		end := start + rows
		if end > len(matched) {
			end = len(matched)
		}
		page = matched[start:end]
	}
	out["response"] = map[string]interface{}{
		"numFound": len(matched),
		"start":    start,
		"docs":     page,
	}

	if params.Get("stats") == "true" {
		fields := map[string]interface{}{}
		for _, f := range params["stats.field"] {
			fields[f] = statsFor(matched, f)
		}
		out["stats"] = map[string]interface{}{"stats_fields": fields}
	}

	if params.Get("facet") == "true" {
		fields := map[string]interface{}{}
		for _, f := range params["facet.field"] {
			fields[f] = facetFor(matched, f)
		}
		out["facet_counts"] = map[string]interface{}{"facet_fields": fields}
	}

	writeJSON(w, out)
}

func statsFor(docs []types.Document, field string) map[string]interface{} {
	dim := -1
	for d := 0; d < types.MaxDimensions; d++ {
		if types.CoordinateField(d) == field {
			dim = d
		}
	}
	count := 0
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, doc := range docs {
		p := doc.Coordinates()
		if dim < 0 || dim >= len(p) {
			continue
		}
		count++
		lo = math.Min(lo, p[dim])
		hi = math.Max(hi, p[dim])
	}
	if count == 0 {
		return map[string]interface{}{"min": nil, "max": nil, "count": 0, "missing": len(docs)}
	}
	return map[string]interface{}{"min": lo, "max": hi, "count": count, "missing": len(docs) - count}
}

func facetFor(docs []types.Document, field string) []interface{} {
	counts := map[string]int{}
	var order []string
	for _, doc := range docs {
		var v string
		switch {
		case field == types.FieldID:
			v = string(doc.ID())
		case strings.HasPrefix(field, types.FieldReferenceSpace):
			v = string(doc.Space())
		}
		if v == "" {
			continue
		}
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	out := make([]interface{}, 0, 2*len(order))
	for _, v := range order {
		out = append(out, v, counts[v])
	}
	return out
}

// matches evaluates a disjunction of conjunctions of field:value terms.
func matches(doc types.Document, predicate string) (bool, error) {
	predicate = strings.TrimSpace(predicate)
	if predicate == "" || predicate == "*:*" {
		return true, nil
	}
	for _, disjunct := range strings.Split(predicate, " OR ") {
		all := true
		for _, term := range strings.Split(strings.Trim(disjunct, "()"), " AND ") {
			ok, err := matchTerm(doc, strings.Trim(strings.TrimSpace(term), "()"))
			if err != nil {
				return false, err
			}
			if !ok {
				all = false
				break
			}
		}
		if all {
			return true, nil
		}
	}
	return false, nil
}

func matchTerm(doc types.Document, term string) (bool, error) {
	field, value, ok := cutUnescaped(term, ':')
	if !ok {
		return false, fmt.Errorf("malformed term %q", term)
	}

	if strings.HasPrefix(value, "[") || strings.HasPrefix(value, "{") {
		r, err := filter.ParseRange(filter.Filter(term))
		if err != nil {
			return false, err
		}
		return r.Box.Contains(doc.Coordinates(), r.Boundary == filter.Inclusive), nil
	}

	switch {
	case field == types.FieldID:
		return string(doc.ID()) == filter.Unescape(value), nil
	case strings.HasPrefix(field, types.FieldReferenceSpace):
		return string(doc.Space()) == filter.Unescape(value), nil
	}
	for d := 0; d < types.MaxDimensions; d++ {
		if types.CoordinateField(d) != field {
			continue
		}
		want, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return false, err
		}
		p := doc.Coordinates()
		return d < len(p) && math.Abs(p[d]-want) <= 5e-7, nil
	}
	return false, nil
}

func cutUnescaped(s string, sep byte) (string, string, bool) {
	escaped := false
	for i := 0; i < len(s); i++ {
		switch {
		case escaped:
			escaped = false
		case s[i] == '\\':
			escaped = true
		case s[i] == sep:
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
