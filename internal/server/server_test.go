package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"astar-navgraph/internal/config"
	"astar-navgraph/internal/geometry"
	"astar-navgraph/internal/metrics"
	"astar-navgraph/internal/navgraph"
	"astar-navgraph/internal/server"
	"astar-navgraph/internal/session"
)

type fixture struct {
	sess    *session.Session
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Generator.Nodes = 60
	cfg.Generator.Links = 120
	cfg.Generator.Seed = 17

	collector := metrics.NewCollector("navgraph")
	logger := zaptest.NewLogger(t)
	sess, err := session.New(cfg, session.WithLogger(logger), session.WithRecorder(collector))
	require.NoError(t, err)

	srv := server.New(sess, logger, server.WithMetrics(collector.Handler()))
	return &fixture{sess: sess, handler: srv.Handler()}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

// linkedPair returns the endpoints of the first link of the served graph
func (f *fixture) linkedPair(t *testing.T) (a, b navgraph.Handle, pa, pb geometry.Position) {
	t.Helper()
	f.sess.View(func(g *navgraph.Graph, _ uuid.UUID) {
		links := g.Links()
		require.NotEmpty(t, links)
		a, b = links[0].A, links[0].B
		pa, pb = g.Position(a), g.Position(b)
	})
	return a, b, pa, pb
}

func point(p geometry.Position) map[string]float64 {
	return map[string]float64{"x": p.X, "y": p.Y}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, float64(60), body["nodes"])
	assert.Equal(t, f.sess.Info().GraphID.String(), body["graph_id"])
}

func TestGetGraph(t *testing.T) {
	f := newFixture(t)
	info := f.sess.Info()

	w := f.do(t, http.MethodGet, "/graph", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/geo+json", w.Header().Get("Content-Type"))

	fc, err := geojson.UnmarshalFeatureCollection(w.Body.Bytes())
	require.NoError(t, err)
	assert.Len(t, fc.Features, info.Nodes+info.Links)
	assert.Equal(t, info.GraphID.String(), fc.ExtraMembers["graph_id"])
}

func TestGetGraph_Trim(t *testing.T) {
	f := newFixture(t)
	_, _, pa, pb := f.linkedPair(t)

	firstLink := func(path string) orb.LineString {
		w := f.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code)
		fc, err := geojson.UnmarshalFeatureCollection(w.Body.Bytes())
		require.NoError(t, err)
		for _, feature := range fc.Features {
			if feature.Properties["kind"] == "link" {
				return feature.Geometry.(orb.LineString)
			}
		}
		t.Fatal("no link feature")
		return nil
	}

	length := func(ls orb.LineString) float64 {
		return geometry.NewPosition(ls[0][0], ls[0][1]).DistanceTo(geometry.NewPosition(ls[1][0], ls[1][1]))
	}

	full := firstLink("/graph")
	trimmed := firstLink("/graph?trim=1")
	assert.InDelta(t, pa.DistanceTo(pb), length(full), 1e-12)
	assert.InDelta(t, length(full)-2*f.sess.PickRadius(), length(trimmed), 1e-9)
}

func TestGetInfo(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/graph/info", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var info session.Info
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, f.sess.Info().GraphID, info.GraphID)
	assert.Equal(t, 60, info.Stats.PointTarget)
	assert.Equal(t, 0.015, info.PickRadius)
}

func TestRegenerate(t *testing.T) {
	f := newFixture(t)
	before := f.sess.Info().GraphID

	w := f.do(t, http.MethodPost, "/graph/regenerate", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var info session.Info
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.NotEqual(t, before, info.GraphID)
	assert.Equal(t, info.GraphID, f.sess.Info().GraphID)
}

func TestPick(t *testing.T) {
	f := newFixture(t)
	a, _, pa, _ := f.linkedPair(t)

	t.Run("Should pick the node under the pointer", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/pick", point(pa.Add(geometry.NewPosition(0, 0.005))))
		require.Equal(t, http.StatusOK, w.Code)

		var resp server.PickResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, a, resp.Handle)
		assert.Equal(t, pa, resp.Position)
	})

	t.Run("Should answer 404 on a miss", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/pick", point(geometry.NewPosition(7, 7)))
		assert.Equal(t, http.StatusNotFound, w.Code)

		body := decodeBody(t, w)
		assert.Equal(t, true, body["error"])
		assert.Equal(t, float64(http.StatusNotFound), body["code"])
		assert.NotEmpty(t, body["request_id"])
	})
}

func TestHover(t *testing.T) {
	f := newFixture(t)
	a, b, pa, pb := f.linkedPair(t)

	w := f.do(t, http.MethodPost, "/hover", point(pb))
	assert.Equal(t, http.StatusConflict, w.Code, "hover needs a picked node")

	w = f.do(t, http.MethodPost, "/pick", point(pa))
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/hover", point(pb))
	require.Equal(t, http.StatusOK, w.Code)

	var resp server.RouteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, a, resp.Path[0])
	assert.Equal(t, b, resp.Path[len(resp.Path)-1])
	assert.Len(t, resp.Points, len(resp.Path))
	assert.Positive(t, resp.Cost)
}

func TestRoute(t *testing.T) {
	f := newFixture(t)
	a, b, pa, pb := f.linkedPair(t)

	w := f.do(t, http.MethodPost, "/route", map[string]any{"start": point(pa), "end": point(pb)})
	require.Equal(t, http.StatusOK, w.Code)

	var resp server.RouteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Message)
	assert.Equal(t, a, resp.Path[0])
	assert.Equal(t, b, resp.Path[len(resp.Path)-1])
	assert.Nil(t, f.sess.Info().Selected, "routes do not pick")

	w = f.do(t, http.MethodPost, "/route", map[string]any{"start": point(pa), "end": point(geometry.NewPosition(7, 7))})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decodeBody(t, w)["message"], "end")
}

func TestRoute_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"malformed", `{"start":`, "Invalid request body"},
		{"unknown field", `{"start":{"x":0,"y":0},"end":{"x":0,"y":0},"via":1}`, "Invalid request body"},
		{"missing end", `{"start":{"x":0,"y":0}}`, "end is required"},
		{"missing coordinate", `{"start":{"x":0},"end":{"x":0,"y":0}}`, "start.y is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/route", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decodeBody(t, w)["message"], tt.message)
		})
	}
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	_, _, pa, pb := f.linkedPair(t)

	f.do(t, http.MethodPost, "/route", map[string]any{"start": point(pa), "end": point(pb)})

	w := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `navgraph_searches_total{outcome="found"} 1`)
	assert.Contains(t, body, "navgraph_graph_nodes 60")
}

func TestRequestID(t *testing.T) {
	f := newFixture(t)

	t.Run("Should generate request ID when not provided", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/health", nil)
		_, err := uuid.Parse(w.Header().Get(server.RequestIDHeader))
		assert.NoError(t, err)
	})

	t.Run("Should echo provided request ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/pick", strings.NewReader(`{"x":7,"y":7}`))
		req.Header.Set(server.RequestIDHeader, "test-request-id")
		w := httptest.NewRecorder()
		f.handler.ServeHTTP(w, req)

		assert.Equal(t, "test-request-id", w.Header().Get(server.RequestIDHeader))
		assert.Equal(t, "test-request-id", decodeBody(t, w)["request_id"])
	})
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/route", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func ExampleServer_Handler() {
	cfg := config.Default()
	cfg.Generator.Seed = 1
	sess, err := session.New(cfg)
	if err != nil {
		fmt.Println(err)
		return
	}

	req := httptest.NewRequest(http.MethodPost, "/hover", strings.NewReader(`{"x":0.5,"y":0.5}`))
	w := httptest.NewRecorder()
	server.New(sess, zap.NewNop()).Handler().ServeHTTP(w, req)
	fmt.Println(w.Code)
	// Output: 409
}
