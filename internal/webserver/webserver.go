package webserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/MHassaanT/motomind-backend/internal/app"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v4"
	jsoniter "github.com/json-iterator/go"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

var server *WebServer

// WebServer wraps the echo instance and the authenticated /api group.
type WebServer struct {
	root   *echo.Echo
	api    *echo.Group
	appCtx app.AppContext
}

// Init builds the global web server. Route registrations via ApiGET and
// friends must happen after Init and before Start.
func Init(appCtx app.AppContext) *WebServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = &jsonSerializer{}
	e.Validator = &payloadValidator{validate: validator.New()}

	e.Use(middleware.Recover())
	e.Use(ZapLoggerMiddleware())

	cfg := appCtx.Config()
	api := e.Group("/api")
	api.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(cfg.Web.JwtSecret),
	}))
	// per-request application context for handlers
	api.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("appctx", appCtx)
			return next(c)
		}
	})

	e.POST("/auth/token", issueToken(appCtx))
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{"status": "ok"})
	})

	server = &WebServer{root: e, api: api, appCtx: appCtx}
	return server
}

// Start blocks serving HTTP until the listener fails or is shut down.
func (s *WebServer) Start() error {
	cfg := s.appCtx.Config()
	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	zap.S().Infof("starting web server on %s", addr)
	return s.root.Start(addr)
}

func (s *WebServer) Echo() *echo.Echo {
	return s.root
}

// ApiGET registers an authenticated GET route under /api.
func ApiGET(path string, h echo.HandlerFunc) {
	server.api.GET(path, h)
}

// ApiPOST registers an authenticated POST route under /api.
func ApiPOST(path string, h echo.HandlerFunc) {
	server.api.POST(path, h)
}

// ApiPUT registers an authenticated PUT route under /api.
func ApiPUT(path string, h echo.HandlerFunc) {
	server.api.PUT(path, h)
}

// ApiDELETE registers an authenticated DELETE route under /api.
func ApiDELETE(path string, h echo.HandlerFunc) {
	server.api.DELETE(path, h)
}

// issueToken exchanges the configured API secret for a signed JWT.
func issueToken(appCtx app.AppContext) echo.HandlerFunc {
	return func(c echo.Context) error {
		var payload struct {
			Appid  string `json:"appid"`
			Secret string `json:"secret"`
		}
		if err := c.Bind(&payload); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{"code": 1, "msg": "unable to parse request"})
		}
		cfg := appCtx.Config()
		if payload.Secret != cfg.Web.JwtSecret {
			return c.JSON(http.StatusUnauthorized, map[string]interface{}{"code": 1, "msg": "invalid credentials"})
		}

		claims := jwt.MapClaims{
			"aud": payload.Appid,
			"exp": time.Now().Add(24 * time.Hour).Unix(),
			"iat": time.Now().Unix(),
		}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString([]byte(cfg.Web.JwtSecret))
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]interface{}{"code": 1, "msg": "token signing failed"})
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"code": 0, "token": signed})
	}
}

// ZapLoggerMiddleware logs each request through the global zap logger.
func ZapLoggerMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			req := c.Request()
			res := c.Response()
			zap.L().Info("http request",
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", res.Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("remote_ip", c.RealIP()),
			)
			return err
		}
	}
}

type jsonSerializer struct{}

func (jsonSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := jsoniter.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (jsonSerializer) Deserialize(c echo.Context, i interface{}) error {
	return jsoniter.NewDecoder(c.Request().Body).Decode(i)
}

type payloadValidator struct {
	validate *validator.Validate
}

func (v *payloadValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}
