package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sharelist/api/internal/store"
)

// fakeStoreForHealth extends fakeStore with ping functionality
type fakeStoreForHealth struct {
	fakeStore
	pingFn func(context.Context) error
}

func (f *fakeStoreForHealth) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

type fakeCodesForHealth struct {
	fakeCodes
	pingFn func(context.Context) error
}

func (f *fakeCodesForHealth) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func newTestServer(fs *fakeStore, fc *fakeCodes) *HTTPServer {
	return NewHTTPServer(newTestService(fs, fc), "*")
}

func doRequest(t *testing.T, server *HTTPServer, method, path, body string, asUser string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if asUser != "" {
		req.Header.Set("X-User-Id", asUser)
		req.Header.Set("X-User-Name", strings.TrimPrefix(asUser, "user-"))
	}
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeCodes{})

	rr := doRequest(t, server, http.MethodGet, "/api/health", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if ok, exists := response["ok"]; !exists || ok != true {
		t.Errorf("expected ok=true, got %v", ok)
	}
}

func TestReadyEndpointRedisFailure(t *testing.T) {
	fs := &fakeStoreForHealth{}
	fc := &fakeCodesForHealth{
		pingFn: func(context.Context) error {
			return errors.New("connection refused")
		},
	}
	svc := &Service{store: fs, codes: fc}
	server := NewHTTPServer(svc, "*")

	rr := doRequest(t, server, http.MethodGet, "/api/ready", "", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}

	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["status"] != "not_ready" {
		t.Errorf("expected status=not_ready, got %v", response["status"])
	}
	checks := response["checks"].(map[string]any)
	redisCheck := checks["redis"].(map[string]any)
	if redisCheck["status"] != "error" {
		t.Errorf("expected redis status=error, got %v", redisCheck["status"])
	}
	dbCheck := checks["database"].(map[string]any)
	if dbCheck["status"] != "ok" {
		t.Errorf("expected database status=ok, got %v", dbCheck["status"])
	}
}

func TestMissingIdentityIsUnauthorized(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeCodes{})

	rr := doRequest(t, server, http.MethodGet, "/api/lists", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}

	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["code"] != "UNAUTHORIZED" {
		t.Errorf("expected code UNAUTHORIZED, got %v", response["code"])
	}
}

func TestCreateListEndpoint(t *testing.T) {
	fs := &fakeStore{
		createListFn: func(_ context.Context, list store.SharedList) (store.SharedList, error) {
			if list.OwnerID != "user-owner" {
				t.Fatalf("expected owner from header, got %q", list.OwnerID)
			}
			list.Version = 1
			return list, nil
		},
	}
	server := newTestServer(fs, &fakeCodes{})

	rr := doRequest(t, server, http.MethodPost, "/api/lists", `{"name":"Groceries","description":"Weekly shop","taskIds":["t1","t2"]}`, "user-owner")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["name"] != "Groceries" {
		t.Errorf("expected name Groceries, got %v", response["name"])
	}
	if response["isPublic"] != false {
		t.Errorf("expected isPublic=false, got %v", response["isPublic"])
	}
	taskIDs, _ := response["taskIds"].([]any)
	if len(taskIDs) != 2 || taskIDs[0] != "t1" || taskIDs[1] != "t2" {
		t.Errorf("expected taskIds [t1 t2], got %v", response["taskIds"])
	}
}

func TestCreateListEndpointValidation(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeCodes{})

	rr := doRequest(t, server, http.MethodPost, "/api/lists", `{"name":"  "}`, "user-owner")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}

	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["code"] != "VALIDATION_ERROR" {
		t.Errorf("expected code VALIDATION_ERROR, got %v", response["code"])
	}
}

func TestJoinEndpointRequiresCode(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeCodes{})

	rr := doRequest(t, server, http.MethodPost, "/api/join", `{}`, "user-new")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
}

func TestGetListEndpointNotFound(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeCodes{})

	rr := doRequest(t, server, http.MethodGet, "/api/lists/list-missing", "", "user-owner")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}

	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["code"] != "NOT_FOUND" {
		t.Errorf("expected code NOT_FOUND, got %v", response["code"])
	}
}

func TestExportEndpointRejectsUnknownFormat(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeCodes{})

	rr := doRequest(t, server, http.MethodGet, "/api/lists/list-1/export?format=docx", "", "user-owner")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
}

func TestExportEndpointReturnsAttachment(t *testing.T) {
	fs := &fakeStore{
		getListFn: func(context.Context, string) (store.SharedList, error) { return testList(), nil },
	}
	server := newTestServer(fs, &fakeCodes{})

	rr := doRequest(t, server, http.MethodGet, "/api/lists/list-1/export?format=json", "", "user-viewer")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "list-1.json") {
		t.Errorf("expected attachment filename, got %q", cd)
	}

	var snapshot map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("failed to parse snapshot: %v", err)
	}
	if snapshot["id"] != "list-1" {
		t.Errorf("expected snapshot id list-1, got %v", snapshot["id"])
	}
}

func TestCollaboratorPermissionEndpoint(t *testing.T) {
	fs := &fakeStore{
		getListFn: func(context.Context, string) (store.SharedList, error) { return testList(), nil },
	}
	server := newTestServer(fs, &fakeCodes{})

	rr := doRequest(t, server, http.MethodPatch, "/api/lists/list-1/collaborators/user-viewer", `{"permission":"edit"}`, "user-owner")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, server, http.MethodPatch, "/api/lists/list-1/collaborators/user-viewer", `{"permission":"edit"}`, "user-editor")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 for non-admin, got %d", rr.Code)
	}
}

func TestTaskEventRoutes(t *testing.T) {
	fs := &fakeStore{
		getListFn: func(context.Context, string) (store.SharedList, error) { return testList(), nil },
	}
	server := newTestServer(fs, &fakeCodes{})

	rr := doRequest(t, server, http.MethodPost, "/api/lists/list-1/tasks/task-1/completed", "", "user-editor")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, server, http.MethodPost, "/api/lists/list-1/tasks/task-1/archived", "", "user-editor")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for unknown task event, got %d", rr.Code)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeCodes{})

	rr := doRequest(t, server, http.MethodGet, "/api/unknown", "", "user-owner")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}
