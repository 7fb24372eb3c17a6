package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serve runs one request through e and returns the recorder.
func serve(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, target, http.NoBody))
	return rec
}

func TestRouteGroupAddNormalizesPaths(t *testing.T) {
	tests := []struct {
		name     string
		register string
		request  string
	}{
		{name: "relative path", register: "/movies", request: "/api/movies"},
		{name: "already prefixed", register: "/api/genres", request: "/api/genres"},
		{name: "group root", register: "/", request: "/api"},
		{name: "missing slash", register: "search", request: "/api/search"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rg := newRouteGroup(e.Group("/api"), "/api")
			rg.Add(http.MethodGet, tt.register, func(c echo.Context) error {
				return c.String(http.StatusOK, tt.name)
			})

			rec := serve(e, http.MethodGet, tt.request)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.name, rec.Body.String())
		})
	}
}

func TestRouteGroupGroupReturnsRegistrar(t *testing.T) {
	e := echo.New()
	var root RouteRegistrar = newRouteGroup(e.Group("/api"), "/api")

	v1 := root.Group("/v1/")
	require.NotNil(t, v1)
	assert.Equal(t, "/api/v1", v1.FullPath(""))
	assert.Equal(t, "/api/v1/movie/550", v1.FullPath("/movie/550"))
	assert.Equal(t, "/api/v1/movie/550", v1.FullPath("/api/v1/movie/550"))

	tmdb := v1.Group("tmdb")
	assert.Equal(t, "/api/v1/tmdb/trending", tmdb.FullPath("trending"))

	tmdb.GET("/trending", func(c echo.Context) error {
		return c.String(http.StatusOK, "trending")
	})
	v1.GET("/api/v1/popular", func(c echo.Context) error {
		return c.String(http.StatusOK, "popular")
	})

	rec := serve(e, http.MethodGet, "/api/v1/tmdb/trending")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "trending", rec.Body.String())

	rec = serve(e, http.MethodGet, "/api/v1/popular")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "popular", rec.Body.String())
}

func TestRouteGroupGroupScopesMiddleware(t *testing.T) {
	e := echo.New()
	root := newRouteGroup(e.Group("/api"), "/api")

	tagged := root.Group("/admin", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("X-Scope", "admin")
			return next(c)
		}
	})
	tagged.GET("/stats", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	root.GET("/movies", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	rec := serve(e, http.MethodGet, "/api/admin/stats")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "admin", rec.Header().Get("X-Scope"))

	rec = serve(e, http.MethodGet, "/api/movies")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Scope"))
}

func TestRouteGroupUseAppliesMiddleware(t *testing.T) {
	e := echo.New()
	base := newRouteGroup(e.Group(""), "")
	rg := base.(*routeGroup)

	var called bool
	rg.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			called = true
			return next(c)
		}
	})

	rg.Add(http.MethodGet, "/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestRouteGroupFullPathAndRelative(t *testing.T) {
	rg := &routeGroup{prefix: "/api"}

	assert.Equal(t, "/api/child", rg.FullPath("/child"))
	assert.Equal(t, "/api", rg.FullPath("/"))
	assert.Equal(t, "/api", rg.FullPath(""))
	assert.Equal(t, "/child", (&routeGroup{}).FullPath("/child"))

	assert.Equal(t, "", rg.relativePath("/"))
	assert.Equal(t, "", rg.relativePath("/api"))
	assert.Equal(t, "/child", rg.relativePath("/api/child"))
	assert.Equal(t, "/child", rg.relativePath("child"))
	assert.Equal(t, "/apples", rg.relativePath("/apples"))

	assert.Equal(t, "/api", rg.combinePrefix(""))
	assert.Equal(t, "/api/v1", rg.combinePrefix("/v1"))
	assert.Equal(t, "/v1", (&routeGroup{}).combinePrefix("/v1"))
}

func TestEnsureLeadingSlash(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "/"},
		{"test", "/test"},
		{"/already", "/already"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ensureLeadingSlash(tt.input))
	}
}

func TestNormalizePrefix(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"/", ""},
		{"v1", "/v1"},
		{"/v1/", "/v1"},
		{"/api/tmdb///", "/api/tmdb"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, normalizePrefix(tt.input))
	}
}

func TestRouteGroupGET(t *testing.T) {
	e := echo.New()
	var rg RouteRegistrar = newRouteGroup(e.Group("/api"), "/api")

	var seen []string
	route := rg.GET("/movies/:id", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Param("id"))
	}, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			seen = append(seen, c.Path())
			return next(c)
		}
	})

	require.NotNil(t, route)
	assert.Equal(t, http.MethodGet, route.Method)
	assert.Equal(t, "/api/movies/:id", route.Path)

	rec := serve(e, http.MethodGet, "/api/movies/550")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "550", rec.Body.String())
	assert.Equal(t, []string{"/api/movies/:id"}, seen)

	rec = serve(e, http.MethodPost, "/api/movies/550")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Len(t, seen, 1)
}

func TestStripPathPrefix(t *testing.T) {
	tests := []struct {
		path            string
		prefix          string
		expectedTail    string
		expectedMatched bool
	}{
		{"/movies", "", "/movies", false},
		{"/movies", "/api", "/movies", false},
		{"/api", "/api", "", true},
		{"/api/movies", "/api", "/movies", true},
		{"/apiusers", "/api", "/apiusers", false},
	}

	for _, tt := range tests {
		tail, matched := stripPathPrefix(tt.path, tt.prefix)
		assert.Equal(t, tt.expectedTail, tail)
		assert.Equal(t, tt.expectedMatched, matched)
	}
}
