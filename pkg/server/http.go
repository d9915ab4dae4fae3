package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/config"
	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ProvideHTTPServer = fx.Module("http.server",
	fx.Provide(NewRouter, NewHttpServer),
	fx.Invoke(Run),
)

type Server struct {
	server *http.Server
}

// Mount is a route served by net/http directly instead of gin. Handlers
// that hijack the connection need it: gin refuses to hijack a response
// whose header it has already flushed.
type Mount struct {
	Pattern string
	Handler http.Handler
}

// AsMount annotates a constructor so its Mount joins the server's mounts.
func AsMount(f any) any {
	return fx.Annotate(f, fx.ResultTags(`group:"http.mounts"`))
}

// NewMux routes every mount pattern to its handler and everything else to
// the gin engine.
func NewMux(engine http.Handler, mounts ...Mount) http.Handler {
	if len(mounts) == 0 {
		return engine
	}
	mux := http.NewServeMux()
	for _, m := range mounts {
		mux.Handle(m.Pattern, m.Handler)
	}
	mux.Handle("/", engine)
	return mux
}

// NewRouter builds the gin engine every service registers its routes on.
func NewRouter(cfg *config.Config) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(), middleware.Error())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

type Params struct {
	fx.In
	Config  *config.Config
	Handler *gin.Engine
	Mounts  []Mount `group:"http.mounts"`
}

func NewHttpServer(p Params) *Server {
	cfg := p.Config
	return &Server{
		server: &http.Server{
			Addr:        listenAddr(cfg.Server.Addr),
			Handler:     otelhttp.NewHandler(NewMux(p.Handler, p.Mounts...), cfg.AppName),
			ReadTimeout: cfg.Server.ReadTimeout,
			// WriteTimeout stays zero unless configured: it would cut streaming connections.
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
	}
}

// listenAddr accepts either a bare port ("8080") or a host:port.
func listenAddr(addr string) string {
	if addr == "" {
		return ":8080"
	}
	if strings.Contains(addr, ":") {
		return addr
	}
	return fmt.Sprintf(":%s", addr)
}

func Run(lc fx.Lifecycle, srv *Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.server.Addr)
			if err != nil {
				return err
			}
			zap.L().Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					zap.L().Error("HTTP server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			zap.L().Info("Shutting down HTTP server gracefully...")
			return srv.server.Shutdown(ctx)
		},
	})
}
