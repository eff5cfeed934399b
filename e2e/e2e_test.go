//go:build e2e
// +build e2e

package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"family-tree-go/internal/config"
	"family-tree-go/internal/db"
	profiledomain "family-tree-go/internal/domain/profile"
	treedomain "family-tree-go/internal/domain/tree"
	"family-tree-go/internal/repository/inmemory"
	profilerepo "family-tree-go/internal/repository/postgres/profile"
	"family-tree-go/internal/transport/httpserver"
	"family-tree-go/internal/transport/httpserver/handler"
	"family-tree-go/pkg/logger"
	"gorm.io/gorm"
)

type testEnv struct {
	server     *httptest.Server
	authServer *httptest.Server
	db         *gorm.DB
}

func setupE2E(t *testing.T) *testEnv {
	t.Helper()

	dsn := os.Getenv("E2E_DB_DSN")
	if dsn == "" {
		t.Skip("E2E_DB_DSN not set; skipping e2e tests")
	}

	authServer := newAuthServer(t)
	log := logger.NewNop()

	cfg := config.Config{
		HTTP: config.HTTPConfig{RequestTimeout: 10 * time.Second},
		DB:   config.DBConfig{DSN: dsn},
		Auth: config.AuthConfig{
			URL:            authServer.URL,
			PublishableKey: "test-key",
			Timeout:        2 * time.Second,
		},
		CORS: config.CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}},
	}

	dbConn, err := db.NewPostgres(cfg.DB, log)
	if err != nil {
		t.Fatalf("db connect: %v", err)
	}

	if err := db.Migrate(dbConn, log); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if err := cleanDB(dbConn); err != nil {
		t.Fatalf("clean db: %v", err)
	}

	repo := profilerepo.NewPostgres(dbConn)
	cache := inmemory.NewInMemoryProfileCache()
	profiles := profiledomain.NewService(repo, profiledomain.NewIndex(repo, cache), cache, time.Minute)
	trees := treedomain.NewBuilder(profiles, treedomain.DefaultConfig(), treedomain.LogDiagnostics(log))
	handlers := handler.New(profiles, trees, log)

	router := httpserver.NewRouter(cfg, handlers, log)
	server := httptest.NewServer(router)

	return &testEnv{server: server, authServer: authServer, db: dbConn}
}

func (e *testEnv) Close() {
	e.server.Close()
	e.authServer.Close()
	sqlDB, err := e.db.DB()
	if err == nil {
		_ = sqlDB.Close()
	}
}

func newAuthServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if token == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		payload := map[string]interface{}{
			"id":    token,
			"email": token + "@example.com",
			"user_metadata": map[string]interface{}{
				"name": "User " + token,
			},
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	}))
}

func cleanDB(dbConn *gorm.DB) error {
	return dbConn.WithContext(context.Background()).Exec("TRUNCATE TABLE profiles").Error
}

func requestJSON(t *testing.T, client *http.Client, method, url, token string, payload interface{}) (*http.Response, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}

	return resp, respBody
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

type profileResponse struct {
	ID            string   `json:"id"`
	UserID        string   `json:"user_id"`
	FullName      string   `json:"full_name"`
	FatherID      string   `json:"father_id"`
	MotherID      string   `json:"mother_id"`
	SpouseID      string   `json:"spouse_id"`
	MaritalStatus string   `json:"marital_status"`
	ChildrenIDs   []string `json:"children_ids"`
}

type treeResponse struct {
	RootID string          `json:"root_id"`
	Tree   treedomain.Node `json:"tree"`
}

func createProfile(t *testing.T, client *http.Client, env *testEnv, user string, payload map[string]any) profileResponse {
	t.Helper()
	resp, body := requestJSON(t, client, http.MethodPost, env.server.URL+"/api/profiles", user, payload)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, string(body))
	}
	var p profileResponse
	if err := json.Unmarshal(body, &p); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	return p
}

func getProfile(t *testing.T, client *http.Client, env *testEnv, user, id string) profileResponse {
	t.Helper()
	resp, body := requestJSON(t, client, http.MethodGet, env.server.URL+"/api/profiles/"+id, user, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, string(body))
	}
	var p profileResponse
	if err := json.Unmarshal(body, &p); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	return p
}

func contains(ids []string, id string) bool {
	for _, item := range ids {
		if item == id {
			return true
		}
	}
	return false
}

func TestE2EHealthAndAuth(t *testing.T) {
	env := setupE2E(t)
	defer env.Close()

	client := &http.Client{Timeout: 5 * time.Second}

	resp, body := requestJSON(t, client, http.MethodGet, env.server.URL+"/api/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, string(body))
	}

	resp, body = requestJSON(t, client, http.MethodGet, env.server.URL+"/api/profiles/me", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", resp.StatusCode, string(body))
	}
	var errResp errorEnvelope
	if err := json.Unmarshal(body, &errResp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if errResp.Error.Code != "invalid_token" {
		t.Fatalf("expected invalid_token, got %q", errResp.Error.Code)
	}

	resp, body = requestJSON(t, client, http.MethodGet, env.server.URL+"/api/profiles/me", "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 before profile exists, got %d: %s", resp.StatusCode, string(body))
	}
}

func TestE2EFamilyGraphFlow(t *testing.T) {
	env := setupE2E(t)
	defer env.Close()

	client := &http.Client{Timeout: 5 * time.Second}

	grandpaUser := "11111111-1111-1111-1111-111111111111"
	dadUser := "22222222-2222-2222-2222-222222222222"
	momUser := "33333333-3333-3333-3333-333333333333"
	kidUser := "44444444-4444-4444-4444-444444444444"

	grandpa := createProfile(t, client, env, grandpaUser, map[string]any{"full_name": "Grandpa Ivanov", "gender": "male"})
	dad := createProfile(t, client, env, dadUser, map[string]any{"full_name": "Dad Ivanov", "gender": "male", "father_id": grandpa.ID})
	mom := createProfile(t, client, env, momUser, map[string]any{"full_name": "Mom Petrova", "gender": "female", "spouse_id": dad.ID})
	kid := createProfile(t, client, env, kidUser, map[string]any{
		"full_name": "Kid Ivanov",
		"gender":    "other",
		"father_id": dad.ID,
		"mother_id": mom.ID,
	})

	if got := getProfile(t, client, env, kidUser, dad.ID); got.SpouseID != mom.ID || !contains(got.ChildrenIDs, kid.ID) {
		t.Fatalf("expected dad married to mom with kid, got %+v", got)
	}
	if got := getProfile(t, client, env, kidUser, grandpa.ID); !contains(got.ChildrenIDs, dad.ID) {
		t.Fatalf("expected grandpa to list dad, got %+v", got)
	}

	resp, body := requestJSON(t, client, http.MethodGet, env.server.URL+"/api/tree/"+kid.ID, kidUser, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, string(body))
	}
	var tree treeResponse
	if err := json.Unmarshal(body, &tree); err != nil {
		t.Fatalf("decode tree: %v", err)
	}
	if tree.RootID != grandpa.ID {
		t.Fatalf("expected tree rooted at grandpa, got %s", tree.RootID)
	}
	if len(tree.Tree.Children) != 1 || tree.Tree.Children[0].Spouse == nil || tree.Tree.Children[0].Spouse.ProfileID != mom.ID {
		t.Fatalf("expected dad with mom attached, got %+v", tree.Tree.Children)
	}
	if len(tree.Tree.Children[0].Children) != 1 || tree.Tree.Children[0].Children[0].ProfileID != kid.ID {
		t.Fatalf("expected kid under dad, got %+v", tree.Tree.Children[0].Children)
	}

	resp, body = requestJSON(t, client, http.MethodPut, env.server.URL+"/api/profiles/"+kid.ID+"/spouse", kidUser, map[string]string{"spouse_id": kid.ID})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", resp.StatusCode, string(body))
	}

	resp, body = requestJSON(t, client, http.MethodPatch, env.server.URL+"/api/profiles/"+kid.ID, kidUser, map[string]any{"mother_id": ""})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, string(body))
	}
	if got := getProfile(t, client, env, kidUser, mom.ID); contains(got.ChildrenIDs, kid.ID) {
		t.Fatalf("expected mom to drop kid, got %+v", got)
	}

	resp, body = requestJSON(t, client, http.MethodDelete, env.server.URL+"/api/profiles/"+dad.ID+"/spouse", dadUser, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, string(body))
	}
	if got := getProfile(t, client, env, dadUser, mom.ID); got.SpouseID != "" || got.MaritalStatus != "unmarried" {
		t.Fatalf("expected mom unmarried, got %+v", got)
	}

	resp, body = requestJSON(t, client, http.MethodGet, env.server.URL+"/api/profiles/search?q=ivan", kidUser, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, string(body))
	}
	var list struct {
		Items []profileResponse `json:"items"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode search: %v", err)
	}
	if len(list.Items) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(list.Items))
	}
}

func TestE2ETreeSkipsFreeTextChildIDs(t *testing.T) {
	env := setupE2E(t)
	defer env.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	dadUser := "55555555-5555-5555-5555-555555555555"
	kidUser := "66666666-6666-6666-6666-666666666666"

	dad := createProfile(t, client, env, dadUser, map[string]any{"full_name": "Dad Legacy", "gender": "male"})
	kid := createProfile(t, client, env, kidUser, map[string]any{"full_name": "Kid Legacy", "gender": "female", "father_id": dad.ID})

	err := env.db.Exec(`UPDATE profiles SET children_ids = children_ids || '["legacy-7"]'::jsonb WHERE id = ?`, dad.ID).Error
	if err != nil {
		t.Fatalf("append legacy child: %v", err)
	}

	// fresh service so the write above is not hidden by the request cache
	repo := profilerepo.NewPostgres(env.db)
	cache := inmemory.NewInMemoryProfileCache()
	profiles := profiledomain.NewService(repo, profiledomain.NewIndex(repo, cache), cache, time.Minute)

	var diags []treedomain.Diagnostic
	builder := treedomain.NewBuilder(profiles, treedomain.DefaultConfig(), func(_ context.Context, d treedomain.Diagnostic) {
		diags = append(diags, d)
	})

	root, err := builder.Build(context.Background(), kid.ID)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	if root.ProfileID != dad.ID || len(root.Children) != 1 || root.Children[0].ProfileID != kid.ID {
		t.Fatalf("expected dad with only kid, got %+v", root)
	}
	found := false
	for _, d := range diags {
		if d.Kind == treedomain.DanglingChild && d.RefID == "legacy-7" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected dangling child diagnostic, got %+v", diags)
	}
}

func TestE2ESearchOrdersByBytes(t *testing.T) {
	env := setupE2E(t)
	defer env.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	lower := createProfile(t, client, env, "77777777-7777-7777-7777-777777777777", map[string]any{"full_name": "adam Lowe", "gender": "male"})
	upper := createProfile(t, client, env, "88888888-8888-8888-8888-888888888888", map[string]any{"full_name": "Bob Lowe", "gender": "male"})

	resp, body := requestJSON(t, client, http.MethodGet, env.server.URL+"/api/profiles/search?q=lowe", "77777777-7777-7777-7777-777777777777", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, string(body))
	}
	var list struct {
		Items []profileResponse `json:"items"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode search: %v", err)
	}
	if len(list.Items) != 2 || list.Items[0].ID != upper.ID || list.Items[1].ID != lower.ID {
		t.Fatalf("expected Bob before adam, got %+v", list.Items)
	}
}
