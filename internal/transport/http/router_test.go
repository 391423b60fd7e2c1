package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-rankings-service/internal/app"
	"quiz-rankings-service/internal/domain"
	"quiz-rankings-service/internal/infra/memory"
	"quiz-rankings-service/internal/logger"
	"quiz-rankings-service/internal/metrics"
	"quiz-rankings-service/internal/ranking"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T, opts RouterOptions) *httptest.Server {
	t.Helper()
	catalogs := memory.NewCatalogRepository(memory.NewStaticCatalogLoader(map[string][]domain.Catalog{
		"e1": {
			{UID: "c1", Slug: "warmup", SortOrder: "1", Name: "Warm-up"},
			{UID: "c2", Slug: "final", SortOrder: "2", Name: "Final"},
		},
	}), time.Minute)
	agg := ranking.Aggregator{Location: time.UTC}
	service := app.NewResultsService(memory.NewResultStore(), catalogs, memory.NewBoardStore(),
		app.WithPuzzleWord("secret"),
		app.WithAggregator(agg),
		app.WithLogger(logger.Discard()),
	)
	opts.Aggregator = agg
	opts.Logger = logger.Discard()
	server := httptest.NewServer(NewRouter(service, opts))
	t.Cleanup(server.Close)
	return server
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestSubmitAndReadBack(t *testing.T) {
	server := newTestServer(t, RouterOptions{})

	resp := post(t, server.URL+"/events/e1/results", `{"name":"Owls","catalog":"c1","correct":2,"total":2,"time":1700000000,
		"answers":[{"correct":true,"points":5},{"correct":true,"points":3}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	standings := decode[domain.Standings](t, resp)
	assert.Equal(t, "e1", standings.EventID)
	require.Len(t, standings.Scoreboard, 1)

	resp, err := http.Get(server.URL + "/events/e1/results.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	attempts := decode[[]domain.AttemptRecord](t, resp)
	require.Len(t, attempts, 1)
	assert.Equal(t, "Warm-up", attempts[0].Catalog)
	assert.Equal(t, 1, attempts[0].Attempt)

	resp, err = http.Get(server.URL + "/events/e1/question-results.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Len(t, decode[[]domain.QuestionResultRecord](t, resp), 2)

	resp, err = http.Get(server.URL + "/events/e1/rankings.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	boards := decode[domain.Leaderboards](t, resp)
	require.Len(t, boards.PointsTop3, 1)
	assert.Equal(t, "Owls", boards.PointsTop3[0].Name)
	assert.Equal(t, 8.0, boards.PointsTop3[0].Raw)

	resp, err = http.Get(server.URL + "/events/e1/scoreboard.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	rows := decode[[]domain.ScoreboardRow](t, resp)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].CatalogsSolved)
}

func TestErrorEnvelope(t *testing.T) {
	server := newTestServer(t, RouterOptions{})

	resp := post(t, server.URL+"/events/e1/results", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[errorBody](t, resp)
	assert.Equal(t, "invalid_json", body.Error.Code)
	assert.NotEmpty(t, body.Error.RequestID)
	assert.Equal(t, body.Error.RequestID, resp.Header.Get(RequestIDHeader))

	resp = post(t, server.URL+"/events/e1/results", `{"name":"  ","catalog":"c1"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_submission", decode[errorBody](t, resp).Error.Code)
}

func TestPuzzleSolve(t *testing.T) {
	server := newTestServer(t, RouterOptions{})

	resp := post(t, server.URL+"/events/e1/results", `{"name":"Owls","catalog":"c1","puzzleTime":1700000100,"puzzleAnswer":"secret"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	post(t, server.URL+"/events/e1/results", `{"name":"Owls","catalog":"c1","correct":1,"total":1,"time":1700000000}`)

	resp = post(t, server.URL+"/events/e1/results", `{"name":"Owls","catalog":"c1","puzzleTime":1700000100,"puzzleAnswer":"nope"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "puzzle_mismatch", decode[errorBody](t, resp).Error.Code)

	resp = post(t, server.URL+"/events/e1/results", `{"name":"Owls","catalog":"c1","puzzleTime":"1700000100","puzzleAnswer":"SECRET"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	standings := decode[domain.Standings](t, resp)
	require.Len(t, standings.Leaderboards.PuzzleTop3, 1)
	assert.Equal(t, "2023-11-14 22:15", standings.Leaderboards.PuzzleTop3[0].Value)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	server := newTestServer(t, RouterOptions{JWTSecret: testSecret})
	post(t, server.URL+"/events/e1/results", `{"name":"Owls","catalog":"c1","correct":1,"total":1,"time":1700000000}`)

	del := func(token string) *http.Response {
		req, err := http.NewRequest(http.MethodDelete, server.URL+"/events/e1/results", nil)
		require.NoError(t, err)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	assert.Equal(t, http.StatusUnauthorized, del("").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, del("garbage").StatusCode)

	wrongKey, err := IssueAdminToken("other-secret", "ops", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, del(wrongKey).StatusCode)

	token, err := IssueAdminToken(testSecret, "ops", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, del(token).StatusCode)

	resp, err := http.Get(server.URL + "/events/e1/results.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Empty(t, decode[[]domain.AttemptRecord](t, resp))
}

func TestDownloadCSV(t *testing.T) {
	server := newTestServer(t, RouterOptions{})
	post(t, server.URL+"/events/e1/results", `{"name":"Owls","catalog":"c1","correct":2,"total":3,"time":1700000000}`)

	resp, err := http.Get(server.URL + "/events/e1/results/download")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv; charset=UTF-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename="e1-results.csv"`)

	raw := new(strings.Builder)
	_, err = io.Copy(raw, resp.Body)
	require.NoError(t, err)
	assert.Equal(t,
		utf8BOM+"Name;Versuch;Katalog;Richtige;Gesamt;Zeit;Rätselwort;Beweisfoto\n"+
			"Owls;1;Warm-up;2;3;2023-11-14 22:13;;\n",
		raw.String())
}

func TestSubmitRateLimit(t *testing.T) {
	server := newTestServer(t, RouterOptions{SubmitRate: 0.001, SubmitBurst: 1})

	first := post(t, server.URL+"/events/e1/results", `{"name":"Owls","catalog":"c1","correct":1,"total":1}`)
	assert.Equal(t, http.StatusOK, first.StatusCode)
	second := post(t, server.URL+"/events/e1/results", `{"name":"Owls","catalog":"c1","correct":1,"total":1}`)
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	assert.Equal(t, "rate_limited", decode[errorBody](t, second).Error.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	collector := metrics.New()
	server := newTestServer(t, RouterOptions{Metrics: collector})
	post(t, server.URL+"/events/e1/results", `{"name":"Owls","catalog":"c1","correct":1,"total":1}`)

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw := new(strings.Builder)
	_, err = io.Copy(raw, resp.Body)
	require.NoError(t, err)
	assert.Contains(t, raw.String(), "rankings_computations_total")
}

func TestWebSocketStreamsStandings(t *testing.T) {
	server := newTestServer(t, RouterOptions{})

	u := "ws" + server.URL[len("http"):] + "/events/e1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer conn.Close()

	initial := readStandings(t, conn)
	assert.Empty(t, initial.Scoreboard)

	post(t, server.URL+"/events/e1/results", `{"name":"Owls","catalog":"c1","correct":1,"total":1}`)

	update := readStandings(t, conn)
	require.Len(t, update.Scoreboard, 1)
	assert.Equal(t, "Owls", update.Scoreboard[0].Name)
}

func readStandings(t *testing.T, conn *websocket.Conn) domain.Standings {
	t.Helper()
	var msg struct {
		Type    string           `json:"type"`
		Payload domain.Standings `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "standings", msg.Type)
	return msg.Payload
}
