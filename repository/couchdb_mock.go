package repository

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"sync"

	"github.com/jarcoal/httpmock"
)

// MockCouchDB keeps documents in memory behind httpmock responders,
// so repositories created with mock=true behave like a real database in tests.
type MockCouchDB struct {
	mu   sync.Mutex
	docs map[string]map[string]interface{}
	revs map[string]int
}

// RegisterMockCouchDB registers responders for dbName at url on the httpmock default transport
func RegisterMockCouchDB(url string, dbName string) *MockCouchDB {
	m := &MockCouchDB{docs: map[string]map[string]interface{}{}, revs: map[string]int{}}
	dbURL := fmt.Sprintf("%s/%s", url, dbName)
	docURL := "=~^" + regexp.QuoteMeta(dbURL) + `/[^/?]+(\?.*)?$`

	httpmock.RegisterResponder("HEAD", dbURL, httpmock.NewStringResponder(200, ""))
	httpmock.RegisterResponder("PUT", docURL, m.put)
	httpmock.RegisterResponder("GET", docURL, m.get)
	httpmock.RegisterResponder("DELETE", docURL, m.delete)
	return m
}

// Count returns the number of stored documents
func (m *MockCouchDB) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

// Raw returns a copy of the stored document
func (m *MockCouchDB) Raw(id string) map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil
	}
	out := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// Remove drops a field from a stored document (simulates partial records)
func (m *MockCouchDB) Remove(id, field string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc, ok := m.docs[id]; ok {
		delete(doc, field)
	}
}

func notFound() (*http.Response, error) {
	return httpmock.NewJsonResponse(404, map[string]string{"error": "not_found", "reason": "missing"})
}

func (m *MockCouchDB) put(req *http.Request) (*http.Response, error) {
	id := path.Base(req.URL.Path)
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return httpmock.NewJsonResponse(400, map[string]string{"error": "bad_request", "reason": err.Error()})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.docs[id]; ok {
		if doc["_rev"] != existing["_rev"] {
			return httpmock.NewJsonResponse(409, map[string]string{"error": "conflict", "reason": "Document update conflict."})
		}
	}
	m.revs[id]++
	rev := fmt.Sprintf("%d-mock", m.revs[id])
	doc["_id"] = id
	doc["_rev"] = rev
	m.docs[id] = doc
	return httpmock.NewJsonResponse(201, map[string]interface{}{"ok": true, "id": id, "rev": rev})
}

func (m *MockCouchDB) get(req *http.Request) (*http.Response, error) {
	id := path.Base(req.URL.Path)
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return notFound()
	}
	return httpmock.NewJsonResponse(200, doc)
}

func (m *MockCouchDB) delete(req *http.Request) (*http.Response, error) {
	id := path.Base(req.URL.Path)
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return notFound()
	}
	if req.URL.Query().Get("rev") != doc["_rev"] {
		return httpmock.NewJsonResponse(409, map[string]string{"error": "conflict", "reason": "Document update conflict."})
	}
	delete(m.docs, id)
	return httpmock.NewJsonResponse(200, map[string]interface{}{"ok": true, "id": id})
}
