package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/san11tools/memscope/pkg/catalog"
	"github.com/san11tools/memscope/pkg/declaration"
	"github.com/san11tools/memscope/pkg/description"
	"github.com/san11tools/memscope/pkg/layout"
	objtestutil "github.com/san11tools/memscope/pkg/objstore/testutil"
)

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	ctx := context.Background()
	bkt := objtestutil.NewMemBucket(t, map[string]string{
		"descriptions/v1/Memory/70.txt": "push ebp",
	})
	w := declaration.NewWorkbook()
	w.Structs = []layout.StructDecl{{Type: "Point", Name: "point", Description: "a 2D point", Size: "8"}}
	w.Sheets["Point"] = []layout.Row{
		{Address: "0", Type: "Integer", Name: "x", UnitSize: "4"},
		{Address: "4", Type: "Integer", Name: "y", UnitSize: "4"},
	}
	w.Sheets["Memory"] = []layout.Row{
		{Address: "10", Type: "Point", Name: "origin"},
		{Address: "50", Type: "Point", Name: "points", ArrayLen: "4"},
		{Address: "70", Type: "Code", Name: "routine", UnitSize: "16"},
		{Address: "90", Type: "Missing", Name: "ghost"},
	}
	require.NoError(t, declaration.Write(ctx, bkt, "v1", declaration.FormatYAML, w))
	require.NoError(t, declaration.Write(ctx, bkt, "v2", declaration.FormatCSV, w))

	cfg := catalog.Config{Versions: []catalog.VersionConfig{
		{Name: "v1", Root: catalog.RootConfig{Size: "0x100"}},
		{Name: "v2", Root: catalog.RootConfig{Size: "0x100", Base: "1000"}},
	}}
	c := catalog.New(cfg, description.Config{Prefix: "descriptions", CacheSize: 8}, bkt, log.NewNopLogger(), prometheus.NewRegistry())
	require.NoError(t, c.Reload(ctx))
	return c
}

func newTestController(t *testing.T) (*Controller, *httptest.Server) {
	t.Helper()
	ctrl, err := New(ControllerConfig{
		Config:     Config{ListenAddress: ":0"},
		Catalog:    newTestCatalog(t),
		Logger:     log.NewNopLogger(),
		Registerer: prometheus.NewRegistry(),
		ConfigYAML: func() ([]byte, error) { return []byte("server:\n  listen_address: :0\n"), nil },
	})
	require.NoError(t, err)
	h, err := ctrl.getHandler()
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return ctrl, srv
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestController_Versions(t *testing.T) {
	_, srv := newTestController(t)
	resp, body := get(t, srv.URL+"/api/v1/versions")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, `"name":"v1","default":true,"root":"Memory","base":"0x0","size":256,"structs":1,"diagnostics":1`)
	assert.Contains(t, body, `"name":"v2","default":false,"root":"Memory","base":"0x1000"`)
}

func TestController_Address(t *testing.T) {
	_, srv := newTestController(t)

	for _, tc := range []struct {
		name     string
		path     string
		code     int
		contains []string
	}{
		{
			name: "nested field",
			path: "/api/v1/versions/v1/address/0x66",
			code: http.StatusOK,
			contains: []string{
				`"version":"v1"`, `"target":"0x66"`, `"found":true`,
				`"name":"point","kind":"Point","size":8,"description":"a 2D point","index":2`,
				`"leftover":2`,
			},
		},
		{
			name:     "extended description",
			path:     "/api/v1/versions/v1/address/71",
			code:     http.StatusOK,
			contains: []string{`"kind":"Code"`, `"extended":"push ebp"`},
		},
		{
			name:     "based version",
			path:     "/api/v1/versions/v2/address/1014",
			code:     http.StatusOK,
			contains: []string{`"address":"0x1014"`, `"name":"y"`},
		},
		{
			name:     "gap",
			path:     "/api/v1/versions/v1/address/19",
			code:     http.StatusNotFound,
			contains: []string{`"found":false`},
		},
		{
			name:     "unparsable address",
			path:     "/api/v1/versions/v1/address/zz",
			code:     http.StatusBadRequest,
			contains: []string{`"error":"invalid parameter`},
		},
		{
			name:     "unknown version",
			path:     "/api/v1/versions/v9/address/14",
			code:     http.StatusNotFound,
			contains: []string{"unknown version"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := get(t, srv.URL+tc.path)
			assert.Equal(t, tc.code, resp.StatusCode, body)
			for _, s := range tc.contains {
				assert.Contains(t, body, s)
			}
		})
	}
}

func TestController_Search(t *testing.T) {
	_, srv := newTestController(t)

	resp, body := get(t, srv.URL+"/api/v1/versions/v1/search?name=y")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"version":"v1","name":"y","matches":[
		{"address":"0x0","name":"Memory","kind":"Memory","path":""},
		{"address":"0x14","name":"y","kind":"Integer","path":"origin.y"},
		{"address":"0x54","name":"y","kind":"Integer","path":"points[0].y"}
	]}`, body)

	resp, _ = get(t, srv.URL+"/api/v1/versions/v1/search")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = get(t, srv.URL+"/api/v1/versions/v9/search?name=y")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestController_Diagnostics(t *testing.T) {
	_, srv := newTestController(t)
	resp, body := get(t, srv.URL+"/api/v1/versions/v1/diagnostics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"struct":"Memory","row":4,"offset":"0x90","kind":"unknown_type","fatal":false`)
}

func TestController_Config(t *testing.T) {
	_, srv := newTestController(t)
	resp, body := get(t, srv.URL+"/api/v1/config")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"yaml":"server:\n  listen_address: :0\n"}`, body)
}

func TestController_Index(t *testing.T) {
	_, srv := newTestController(t)

	resp, body := get(t, srv.URL+"/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Find("#version option").Length())
	assert.Equal(t, "v1", doc.Find("#version option[selected]").Text())
	assert.Equal(t, 0, doc.Find("#result").Length())

	resp, body = get(t, srv.URL+"/search?version=v2&address=1014")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc, err = goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "v2", doc.Find("#version option[selected]").Text())
	val, _ := doc.Find("#address").Attr("value")
	assert.Equal(t, "1014", val)
	assert.Equal(t, "target address: 0x1014\n"+
		" -> [0x1000] Memory Memory\n"+
		" -> [0x1010] Point origin\n"+
		" -> [0x1014] Integer y\n"+
		" +0x0\n", doc.Find("pre#result").Text())

	_, body = get(t, srv.URL+"/search?version=v1&address=19")
	doc, err = goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "no result", doc.Find("#result").Text())

	resp, body = get(t, srv.URL+"/search?version=v9&address=19")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	doc, err = goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	assert.Contains(t, doc.Find("#error").Text(), "unknown version")
}

func TestController_Drain(t *testing.T) {
	ctrl, srv := newTestController(t)
	ctrl.Drain()

	resp, _ := get(t, srv.URL+"/api/v1/versions")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, body := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "server is ready", body)
}

func TestController_RequestID(t *testing.T) {
	_, srv := newTestController(t)

	resp, _ := get(t, srv.URL+"/api/v1/versions")
	assert.Len(t, resp.Header.Get(requestIDHeader), 36)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/versions", nil)
	require.NoError(t, err)
	req.Header.Set(requestIDHeader, "3b241101-e2bb-4255-8caf-4136c566a962")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, "3b241101-e2bb-4255-8caf-4136c566a962", resp.Header.Get(requestIDHeader))
}

func TestController_Metrics(t *testing.T) {
	ctrl, srv := newTestController(t)
	get(t, srv.URL+"/api/v1/versions")
	get(t, srv.URL+"/api/v1/versions/v1/address/14")

	assert.Equal(t, 2, testutil.CollectAndCount(ctrl.metrics.requestDuration))

	resp, body := get(t, srv.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "go_goroutines")
}

func TestController_Gzip(t *testing.T) {
	_, srv := newTestController(t)
	client := &http.Client{Transport: &http.Transport{DisableCompression: true}}
	defer client.CloseIdleConnections()

	for path, compressed := range map[string]bool{
		"/metrics": true,
		"/healthz": false,
	} {
		req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
		require.NoError(t, err)
		req.Header.Set("Accept-Encoding", "gzip")
		resp, err := client.Do(req)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		assert.Equal(t, compressed, resp.Header.Get("Content-Encoding") == "gzip", path)
	}
}

func TestController_NoLeaks(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	_, srv := newTestController(t)
	client := &http.Client{Transport: &http.Transport{}}
	resp, err := client.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	client.CloseIdleConnections()
	srv.Close()
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, (&Config{ListenAddress: ":4040"}).Validate())
	assert.Error(t, (&Config{ListenAddress: "4040"}).Validate())
}
