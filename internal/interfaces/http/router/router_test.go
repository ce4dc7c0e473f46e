package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewRouter(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	assert.NotNil(t, r)
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)
}

func TestRouterWithAPIVersion(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v2"))

	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterRegister(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	group := NewDomainGroup("guard", "/guard")
	r.Register(group)

	assert.Len(t, r.registrars, 1)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v1"))

	group := NewDomainGroup("guard", "/guard")
	group.POST("/check", func(c *gin.Context) {
		c.String(http.StatusOK, "allowed")
	})

	r.Register(group)
	r.Setup()

	req := httptest.NewRequest("POST", "/api/v1/guard/check", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "allowed", w.Body.String())
}

func TestRegistrarFunc(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	r.Register(RegistrarFunc(func(rg *gin.RouterGroup) {
		sub := rg.Group("", func(c *gin.Context) {
			c.Header("X-Chain", "applied")
			c.Next()
		})
		sub.GET("/usage/me", func(c *gin.Context) {
			c.String(http.StatusOK, "standing")
		})
	}))
	r.Setup()

	req := httptest.NewRequest("GET", "/api/v1/usage/me", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "standing", w.Body.String())
	assert.Equal(t, "applied", w.Header().Get("X-Chain"))
}

func TestDomainGroup(t *testing.T) {
	t.Run("creates group with name and prefix", func(t *testing.T) {
		g := NewDomainGroup("admin", "/admin")
		assert.Equal(t, "admin", g.Name())
		assert.Equal(t, "/admin", g.Prefix())
	})

	t.Run("registers GET route", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("admin", "/admin")
		g.GET("/accounts", func(c *gin.Context) {
			c.String(http.StatusOK, "accounts")
		})

		api := engine.Group("/api/v1")
		g.RegisterRoutes(api)

		req := httptest.NewRequest("GET", "/api/v1/admin/accounts", nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("registers POST route", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("admin", "/admin")
		g.POST("/usage/reset", func(c *gin.Context) {
			c.String(http.StatusOK, "reset")
		})

		api := engine.Group("/api/v1")
		g.RegisterRoutes(api)

		req := httptest.NewRequest("POST", "/api/v1/admin/usage/reset", nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("registers PUT, PATCH and DELETE routes", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("admin", "/admin")
		g.PUT("/plans/:id", func(c *gin.Context) { c.String(http.StatusOK, "put") }).
			PATCH("/plans/:id", func(c *gin.Context) { c.String(http.StatusOK, "patch") }).
			DELETE("/plans/:id", func(c *gin.Context) { c.String(http.StatusNoContent, "") })

		api := engine.Group("/api/v1")
		g.RegisterRoutes(api)

		for _, tt := range []struct {
			method string
			status int
		}{
			{"PUT", http.StatusOK},
			{"PATCH", http.StatusOK},
			{"DELETE", http.StatusNoContent},
		} {
			req := httptest.NewRequest(tt.method, "/api/v1/admin/plans/123", nil)
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code, "method %s", tt.method)
		}
	})

	t.Run("applies middleware", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("guard", "/guard")

		g.Use(func(c *gin.Context) {
			c.Header("X-Test-Middleware", "applied")
			c.Next()
		})

		g.POST("/check", func(c *gin.Context) {
			c.String(http.StatusOK, "ok")
		})

		api := engine.Group("/api/v1")
		g.RegisterRoutes(api)

		req := httptest.NewRequest("POST", "/api/v1/guard/check", nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, "applied", w.Header().Get("X-Test-Middleware"))
	})

	t.Run("creates subgroups", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("admin", "/admin")

		usage := g.Group("usage", "/usage")
		usage.GET("/today", func(c *gin.Context) {
			c.String(http.StatusOK, "today totals")
		})

		plans := g.Group("plans", "/plans")
		plans.GET("", func(c *gin.Context) {
			c.String(http.StatusOK, "plan list")
		})

		api := engine.Group("/api/v1")
		g.RegisterRoutes(api)

		req1 := httptest.NewRequest("GET", "/api/v1/admin/usage/today", nil)
		w1 := httptest.NewRecorder()
		engine.ServeHTTP(w1, req1)
		assert.Equal(t, http.StatusOK, w1.Code)
		assert.Equal(t, "today totals", w1.Body.String())

		req2 := httptest.NewRequest("GET", "/api/v1/admin/plans", nil)
		w2 := httptest.NewRecorder()
		engine.ServeHTTP(w2, req2)
		assert.Equal(t, http.StatusOK, w2.Code)
		assert.Equal(t, "plan list", w2.Body.String())
	})
}

func TestMultipleDomainGroups(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	guard := NewDomainGroup("guard", "/guard")
	guard.POST("/check", func(c *gin.Context) {
		c.String(http.StatusOK, "verdict")
	})

	usage := NewDomainGroup("usage", "/usage")
	usage.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, "standing")
	})

	r.Register(guard).Register(usage)
	r.Setup()

	req1 := httptest.NewRequest("POST", "/api/v1/guard/check", nil)
	w1 := httptest.NewRecorder()
	engine.ServeHTTP(w1, req1)
	assert.Equal(t, http.StatusOK, w1.Code)
	assert.Equal(t, "verdict", w1.Body.String())

	req2 := httptest.NewRequest("GET", "/api/v1/usage/me", nil)
	w2 := httptest.NewRecorder()
	engine.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusOK, w2.Code)
	assert.Equal(t, "standing", w2.Body.String())
}
