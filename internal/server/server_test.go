package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"secret-friend/internal/config"
	"secret-friend/internal/handler"
	"secret-friend/internal/pkg/lock"
	"secret-friend/internal/repository"
	"secret-friend/internal/service"
)

const adminPassword = "s3cret"

func newTestServer(t *testing.T, mutate func(*config.Config)) (http.Handler, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Mode = "test"
	cfg.Database.Driver = config.DriverMemory
	cfg.Game.BcryptCost = bcrypt.MinCost
	cfg.Server.FrontendOrigins = []string{"http://localhost:5173"}
	if mutate != nil {
		mutate(cfg)
	}

	store := repository.NewMemoryStore()
	locks := lock.NewKeyLock()
	srv, err := New(&Dependencies{
		Config:        cfg,
		GameService:   service.NewGameService(store, store.People(), locks, cfg),
		RevealService: service.NewRevealService(store, locks),
		PeopleService: service.NewPeopleService(store.People(), cfg),
		AdminService:  service.NewAdminService(store, store.People(), cfg),
	})
	require.NoError(t, err)
	return srv.Handler(), cfg
}

func do(t *testing.T, h http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func admin() map[string]string {
	return map[string]string{handler.HeaderAdminPassword: adminPassword}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[handler.ErrorBody](t, rec).Detail.Code
}

func createGame(t *testing.T, h http.Handler, names ...string) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/games", map[string]any{
		"title":          "Office party",
		"admin_password": adminPassword,
		"participants":   names,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[service.CreateGameResult](t, rec).GameID
}

func tokens(t *testing.T, h http.Handler, gameID string) map[string]string {
	t.Helper()
	rec := do(t, h, http.MethodGet, "/api/games/"+gameID+"/links", nil, admin())
	require.Equal(t, http.StatusOK, rec.Code)
	out := map[string]string{}
	for _, l := range decode[[]service.Link](t, rec) {
		out[l.Name] = l.Token
	}
	return out
}

func TestServer_Scenario(t *testing.T) {
	h, _ := newTestServer(t, nil)
	id := createGame(t, h, "Ana", "Beto", "Caro")
	tok := tokens(t, h, id)

	rec := do(t, h, http.MethodPost, "/api/games/"+id+"/draw", nil, admin())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[service.DrawResult](t, rec).AssignmentVersion)

	rec = do(t, h, http.MethodGet, "/api/games/"+id+"/"+tok["Caro"], nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	preview := decode[service.Preview](t, rec)
	assert.True(t, preview.CanReveal)
	assert.NotContains(t, rec.Body.String(), "assigned")

	rec = do(t, h, http.MethodPost, "/api/games/"+id+"/"+tok["Caro"]+"/reveal", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, []string{"Ana", "Beto"}, decode[service.Revelation](t, rec).AssignedTo)

	rec = do(t, h, http.MethodPost, "/api/games/"+id+"/"+tok["Caro"]+"/reveal", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "assignment_already_viewed", errorCode(t, rec))

	rec = do(t, h, http.MethodPost, "/api/games/"+id+"/draw", map[string]bool{"force": false}, admin())
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "game_reveal_conflict", errorCode(t, rec))

	rec = do(t, h, http.MethodPost, "/api/games/"+id+"/draw", map[string]bool{"force": true}, admin())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[service.DrawResult](t, rec).AssignmentVersion)

	rec = do(t, h, http.MethodGet, "/api/games/"+id, nil, admin())
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[service.GameStatus](t, rec)
	assert.False(t, status.AnyRevealed)
	for _, p := range status.Participants {
		assert.False(t, p.Viewed)
	}
}

func TestServer_ErrorEnvelope(t *testing.T) {
	h, _ := newTestServer(t, nil)
	id := createGame(t, h, "Ana", "Beto", "Caro")

	tests := []struct {
		name    string
		method  string
		path    string
		body    any
		headers map[string]string
		status  int
		code    string
	}{
		{"missing admin password", http.MethodGet, "/api/games/" + id, nil, nil, http.StatusUnauthorized, "missing_admin_password"},
		{"wrong admin password", http.MethodGet, "/api/games/" + id, nil, map[string]string{handler.HeaderAdminPassword: "nope"}, http.StatusUnauthorized, "invalid_admin_password"},
		{"unknown game", http.MethodGet, "/api/games/ZZZZZZ", nil, admin(), http.StatusNotFound, "game_not_found"},
		{"unknown link", http.MethodGet, "/api/games/" + id + "/unknown-token", nil, nil, http.StatusNotFound, "link_not_found"},
		{"reveal in unknown game", http.MethodPost, "/api/games/ZZZZZZ/unknown/reveal", nil, nil, http.StatusNotFound, "link_not_found"},
		{"too few", http.MethodPost, "/api/games", map[string]any{"title": "t", "admin_password": adminPassword, "participants": []string{"A", "B"}}, nil, http.StatusBadRequest, "game_min_participants"},
		{"duplicates", http.MethodPost, "/api/games", map[string]any{"title": "t", "admin_password": adminPassword, "participants": []string{"A", "a", "B"}}, nil, http.StatusBadRequest, "duplicate_participant_names"},
		{"bad title", http.MethodPost, "/api/games", map[string]any{"title": "", "admin_password": adminPassword, "participants": []string{"A", "B", "C"}}, nil, http.StatusBadRequest, "validation_error"},
		{"bad body", http.MethodPost, "/api/games", "not an object", nil, http.StatusBadRequest, handler.CodeInvalidRequestBody},
		{"unknown participant", http.MethodDelete, "/api/games/" + id + "/participants/missing", nil, admin(), http.StatusNotFound, "participant_not_found"},
		{"unknown token", http.MethodPost, "/api/games/" + id + "/missing/deactivate", nil, admin(), http.StatusNotFound, "token_not_found"},
		{"empty add", http.MethodPost, "/api/games/" + id + "/participants", map[string]any{"participants": []string{}}, admin(), http.StatusBadRequest, "no_participants_to_add"},
		{"no route", http.MethodGet, "/nowhere", nil, nil, http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body, tt.headers)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestServer_RevealNotReady(t *testing.T) {
	h, _ := newTestServer(t, nil)
	id := createGame(t, h, "Ana", "Beto", "Caro")
	tok := tokens(t, h, id)

	rec := do(t, h, http.MethodPost, "/api/games/"+id+"/"+tok["Ana"]+"/reveal", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "assignment_not_ready", errorCode(t, rec))
}

func TestServer_ParticipantManagement(t *testing.T) {
	h, _ := newTestServer(t, nil)
	id := createGame(t, h, "Ana", "Beto", "Caro")

	rec := do(t, h, http.MethodPost, "/api/games/"+id+"/participants", map[string]any{"participants": []string{"Dani"}}, admin())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	added := decode[struct {
		Participants []service.ParticipantStatus `json:"participants"`
	}](t, rec).Participants
	require.Len(t, added, 1)

	rec = do(t, h, http.MethodPatch, "/api/games/"+id+"/participants/"+added[0].ID, map[string]string{"name": "Daniela"}, admin())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Daniela", decode[service.ParticipantStatus](t, rec).Name)

	rec = do(t, h, http.MethodPost, "/api/games/"+id+"/"+added[0].Token+"/deactivate", nil, admin())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[service.ParticipantStatus](t, rec).Active)

	rec = do(t, h, http.MethodGet, "/api/games/"+id+"/"+added[0].Token, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/games/"+id+"/"+added[0].Token+"/reactivate", nil, admin())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/games/"+id+"/participants/"+added[0].ID, nil, admin())
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, tokens(t, h, id), 3)
}

func TestServer_GameLifecycle(t *testing.T) {
	h, _ := newTestServer(t, nil)
	id := createGame(t, h, "Ana", "Beto", "Caro")

	rec := do(t, h, http.MethodPatch, "/api/games/"+id, map[string]string{"title": "Family"}, admin())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Family", decode[service.GameStatus](t, rec).Title)

	rec = do(t, h, http.MethodPost, "/api/games/"+id+"/deactivate_game", nil, admin())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[service.GameStatus](t, rec).Active)

	rec = do(t, h, http.MethodPost, "/api/games/"+id+"/draw?force=true", nil, admin())
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "game_inactive", errorCode(t, rec))

	rec = do(t, h, http.MethodPost, "/api/games/"+id+"/reactivate_game", nil, admin())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/games", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	rec = do(t, h, http.MethodDelete, "/api/games/"+id, nil, admin())
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/games/"+id, nil, admin())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_PeopleAndExport(t *testing.T) {
	h, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.Admin.MasterPassword = "master"
	})
	master := map[string]string{handler.HeaderMasterPassword: "master"}

	rec := do(t, h, http.MethodPost, "/api/people", map[string]any{"names": []string{"Ana", "Beto", "Caro"}}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing_master_password", errorCode(t, rec))

	rec = do(t, h, http.MethodPost, "/api/people", map[string]any{"names": []string{"Ana", "Beto", "Caro"}}, master)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	people := decode[[]struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}](t, rec)
	require.Len(t, people, 3)

	ids := make([]string, 0, len(people))
	for _, p := range people {
		ids = append(ids, p.ID)
	}
	rec = do(t, h, http.MethodPost, "/api/games", map[string]any{
		"title":          "From directory",
		"admin_password": adminPassword,
		"person_ids":     ids,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/people/"+people[0].ID+"/deactivate", nil, master)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/people", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 2)

	rec = do(t, h, http.MethodGet, "/api/games", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/admin/export", nil, master)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "attachment; filename=backup.json", rec.Header().Get("Content-Disposition"))
	backup := decode[service.Backup](t, rec)
	assert.Len(t, backup.Games, 1)
	assert.Len(t, backup.People, 3)
}

func TestServer_NoStoreAndCORS(t *testing.T) {
	h, _ := newTestServer(t, nil)

	rec := do(t, h, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	req := httptest.NewRequest(http.MethodOptions, "/api/games", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", handler.HeaderAdminPassword)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_HealthReportsDependencyFailure(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Mode = "test"
	store := repository.NewMemoryStore()
	locks := lock.NewKeyLock()
	srv, err := New(&Dependencies{
		Config:        cfg,
		GameService:   service.NewGameService(store, store.People(), locks, cfg),
		RevealService: service.NewRevealService(store, locks),
		PeopleService: service.NewPeopleService(store.People(), cfg),
		AdminService:  service.NewAdminService(store, store.People(), cfg),
		Health:        func(context.Context) error { return errors.New("down") },
	})
	require.NoError(t, err)

	rec := do(t, srv.Handler(), http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	h, _ := newTestServer(t, nil)
	createGame(t, h, "Ana", "Beto", "Caro")

	rec := do(t, h, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "secretfriend_http_requests_total")
	assert.Contains(t, rec.Body.String(), "secretfriend_games_created_total")
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(&Dependencies{})
	assert.Error(t, err)
}
