package healthcheck

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"crmcheck/internal/api"
	"crmcheck/internal/realtime"
	"crmcheck/internal/session"
)

var fakeRequiredOnCreate = map[string][]string{
	EntityEscrows:      {"propertyAddress"},
	EntityListings:     {"propertyAddress"},
	EntityClients:      {"firstName", "lastName", "email"},
	EntityAppointments: {"title", "appointmentDate"},
	EntityLeads:        {"firstName", "lastName"},
}

// fakeCRM is an in-memory backend that enforces archive-before-delete and
// publishes data:update events on an optional hub.
type fakeCRM struct {
	mu       sync.Mutex
	nextID   int
	records  map[string]map[string]map[string]any
	archived map[string]bool
	requests []string

	hub *realtime.Hub
	// dropField is omitted from published event payloads.
	dropField string
	// allowDirectDelete lets DELETE succeed on records that are not archived.
	allowDirectDelete bool
	// ignoreBatchDelete acknowledges batch deletes without removing anything.
	ignoreBatchDelete bool
}

func newFakeCRM(hub *realtime.Hub) *fakeCRM {
	return &fakeCRM{
		records:  make(map[string]map[string]map[string]any),
		archived: make(map[string]bool),
		hub:      hub,
	}
}

func (f *fakeCRM) start(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakeCRM) client(srv *httptest.Server) *api.Client {
	return api.NewClient(srv.URL, session.New(session.WithToken("test-token")))
}

func (f *fakeCRM) count(entity string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records[entity])
}

func (f *fakeCRM) requestLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func writeEnvelope(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func writeFailure(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   map[string]any{"code": code, "message": message},
	})
}

func (f *fakeCRM) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.RequestURI())
	f.mu.Unlock()

	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1"), "/"), "/")
	entity := parts[0]
	spec, err := LookupEntity(entity)
	if err != nil {
		writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
		return
	}
	rest := parts[1:]

	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		f.list(w, entity)
	case len(rest) == 0 && r.Method == http.MethodPost:
		f.create(w, r, spec)
	case len(rest) == 1 && rest[0] == "batch-delete" && r.Method == http.MethodPost:
		f.batchDelete(w, r, entity)
	case len(rest) == 1:
		f.record(w, r, spec, rest[0])
	case len(rest) == 2 && rest[1] == "archive" && (r.Method == http.MethodPatch || r.Method == http.MethodPut):
		f.archive(w, entity, rest[0])
	case len(rest) == 2 && r.Method == http.MethodGet:
		if _, ok := f.lookup(entity, rest[0]); !ok {
			writeFailure(w, http.StatusNotFound, "NOT_FOUND", spec.Title+" not found")
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]any{"section": rest[1]})
	default:
		writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
	}
}

func (f *fakeCRM) lookup(entity, id string) (map[string]any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[entity][id]
	return rec, ok
}

func (f *fakeCRM) list(w http.ResponseWriter, entity string) {
	f.mu.Lock()
	items := make([]map[string]any, 0, len(f.records[entity]))
	for _, rec := range f.records[entity] {
		items = append(items, rec)
	}
	f.mu.Unlock()
	writeEnvelope(w, http.StatusOK, items)
}

func (f *fakeCRM) create(w http.ResponseWriter, r *http.Request, spec EntitySpec) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFailure(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid body")
		return
	}
	for _, field := range fakeRequiredOnCreate[spec.Name] {
		if _, ok := body[field]; !ok {
			writeFailure(w, http.StatusBadRequest, "VALIDATION_ERROR", field+" is required")
			return
		}
	}

	f.mu.Lock()
	f.nextID++
	id := fmt.Sprintf("%s-%d", spec.EventType, f.nextID)
	rec := map[string]any{"id": id}
	for k, v := range body {
		rec[k] = v
	}
	if f.records[spec.Name] == nil {
		f.records[spec.Name] = make(map[string]map[string]any)
	}
	f.records[spec.Name][id] = rec
	f.mu.Unlock()

	f.publish(spec, id, realtime.ActionCreated, rec)
	writeEnvelope(w, http.StatusCreated, rec)
}

func (f *fakeCRM) record(w http.ResponseWriter, r *http.Request, spec EntitySpec, id string) {
	rec, ok := f.lookup(spec.Name, id)
	if !ok {
		writeFailure(w, http.StatusNotFound, "NOT_FOUND", spec.Title+" not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeEnvelope(w, http.StatusOK, rec)
	case http.MethodPut:
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		for k, v := range body {
			rec[k] = v
		}
		f.mu.Unlock()
		f.publish(spec, id, realtime.ActionUpdated, rec)
		writeEnvelope(w, http.StatusOK, rec)
	case http.MethodDelete:
		key := spec.Name + "/" + id
		f.mu.Lock()
		if !f.archived[key] && !f.allowDirectDelete {
			f.mu.Unlock()
			writeFailure(w, http.StatusBadRequest, "NOT_ARCHIVED", "archive the record before deleting it")
			return
		}
		delete(f.records[spec.Name], id)
		f.mu.Unlock()
		writeEnvelope(w, http.StatusOK, map[string]any{"id": id})
	default:
		writeFailure(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	}
}

func (f *fakeCRM) archive(w http.ResponseWriter, entity, id string) {
	if _, ok := f.lookup(entity, id); !ok {
		writeFailure(w, http.StatusNotFound, "NOT_FOUND", "record not found")
		return
	}
	f.mu.Lock()
	f.archived[entity+"/"+id] = true
	f.mu.Unlock()
	writeEnvelope(w, http.StatusOK, map[string]any{"id": id, "archived": true})
}

func (f *fakeCRM) batchDelete(w http.ResponseWriter, r *http.Request, entity string) {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.IDs) == 0 {
		writeFailure(w, http.StatusBadRequest, "VALIDATION_ERROR", "ids are required")
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range body.IDs {
		if !f.archived[entity+"/"+id] {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": map[string]any{"code": "NOT_ARCHIVED", "message": id + " is not archived"}})
			return
		}
	}
	if !f.ignoreBatchDelete {
		for _, id := range body.IDs {
			delete(f.records[entity], id)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": map[string]any{"deleted": len(body.IDs)}})
}

// publish sends a data:update event whose payload carries every detailed field.
func (f *fakeCRM) publish(spec EntitySpec, id, action string, rec map[string]any) {
	if f.hub == nil {
		return
	}
	f.mu.Lock()
	data := make(map[string]any, len(rec))
	for k, v := range rec {
		data[k] = v
	}
	for _, field := range spec.RequiredFields(ViewDetailed) {
		if _, ok := data[field]; !ok {
			data[field] = ""
		}
	}
	delete(data, f.dropField)
	f.mu.Unlock()

	f.hub.Dispatch(realtime.EventDataUpdate, realtime.Event{
		EntityType: spec.EventType,
		EntityID:   id,
		Action:     action,
		Data:       data,
	})
}

func newEnvelopeServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newPlainClient(url string) *api.Client {
	return api.NewClient(url, session.New())
}
