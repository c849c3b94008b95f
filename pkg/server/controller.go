package server

import (
	"compress/gzip"
	"context"
	"errors"
	"flag"
	"fmt"
	"html/template"
	golog "log"
	"net"
	"net/http"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/atomic"

	"github.com/san11tools/memscope/pkg/catalog"
	"github.com/san11tools/memscope/pkg/resolver"
	"github.com/san11tools/memscope/pkg/server/httputils"
	"github.com/san11tools/memscope/pkg/util"
)

const gzHTTPCompressionThreshold = 2000

type Config struct {
	ListenAddress   string        `yaml:"listen_address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&cfg.ListenAddress, "server.listen-address", ":4040", "Address the HTTP server listens on.")
	f.DurationVar(&cfg.ReadTimeout, "server.read-timeout", 10*time.Second, "Read timeout of the HTTP server.")
	f.DurationVar(&cfg.WriteTimeout, "server.write-timeout", 15*time.Second, "Write timeout of the HTTP server.")
	f.DurationVar(&cfg.IdleTimeout, "server.idle-timeout", 30*time.Second, "Idle timeout of the HTTP server.")
	f.DurationVar(&cfg.ShutdownTimeout, "server.shutdown-timeout", 5*time.Second, "Time allowed for in-flight requests at shutdown.")
}

func (cfg *Config) Validate() error {
	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", cfg.ListenAddress, err)
	}
	return nil
}

// Catalog is the query surface the server exposes.
type Catalog interface {
	Versions() []string
	DefaultVersion() string
	Version(name string) (*catalog.Version, error)
	ResolveAddress(version string, address uint64) (*resolver.Path, bool, error)
	ResolveName(version, needle string) ([]resolver.NameMatch, error)
}

type Controller struct {
	drained atomic.Bool

	config     Config
	catalog    Catalog
	logger     log.Logger
	httpServer *http.Server
	httpUtils  httputils.ErrorUtils
	metrics    *httpMetrics
	gatherer   prometheus.Gatherer
	index      *template.Template
	// configYAML is served at /api/v1/config.
	configYAML func() ([]byte, error)
}

type ControllerConfig struct {
	Config  Config
	Catalog Catalog
	Logger  log.Logger

	// The registerer is used for exposing server metrics; the gatherer
	// backs /metrics.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	ConfigYAML func() ([]byte, error)
}

func New(c ControllerConfig) (*Controller, error) {
	index, err := getTemplate(templates, "templates/index.html")
	if err != nil {
		return nil, err
	}
	ctrl := Controller{
		config:     c.Config,
		catalog:    c.Catalog,
		logger:     c.Logger,
		httpUtils:  httputils.NewLogKitErrorUtils(c.Logger),
		metrics:    newHTTPMetrics(c.Registerer),
		gatherer:   c.Gatherer,
		index:      index,
		configYAML: c.ConfigYAML,
	}
	if ctrl.gatherer == nil {
		ctrl.gatherer = prometheus.DefaultGatherer
	}
	return &ctrl, nil
}

func (ctrl *Controller) serverMux() http.Handler {
	r := mux.NewRouter()
	r.Use(util.RecoveryHTTPMiddleware)

	// Drained at shutdown.
	ctrl.addRoutes(r, []route{
		{http.MethodGet, "/api/v1/versions", ctrl.versionsHandler},
		{http.MethodGet, "/api/v1/versions/{version}/address/{address}", ctrl.addressHandler},
		{http.MethodGet, "/api/v1/versions/{version}/search", ctrl.searchHandler},
		{http.MethodGet, "/api/v1/versions/{version}/diagnostics", ctrl.diagnosticsHandler},
		{http.MethodGet, "/api/v1/config", ctrl.configHandler},
		{http.MethodGet, "/", ctrl.indexHandler},
		{http.MethodGet, "/search", ctrl.indexHandler},
	}, ctrl.drainMiddleware, ctrl.requestIDMiddleware)

	// Diagnostic routes: not drained.
	ctrl.addRoutes(r, []route{
		{http.MethodGet, "/metrics", promhttp.HandlerFor(ctrl.gatherer, promhttp.HandlerOpts{}).ServeHTTP},
		{http.MethodGet, "/healthz", ctrl.healthz},
	})

	return r
}

func (ctrl *Controller) getHandler() (http.Handler, error) {
	gzhttpMiddleware, err := gzhttp.NewWrapper(gzhttp.MinSize(gzHTTPCompressionThreshold), gzhttp.CompressionLevel(gzip.BestSpeed))
	if err != nil {
		return nil, err
	}
	return gzhttpMiddleware(ctrl.serverMux()), nil
}

// Start serves until Stop is called.
func (ctrl *Controller) Start() error {
	handler, err := ctrl.getHandler()
	if err != nil {
		return err
	}
	ctrl.httpServer = &http.Server{
		Addr:           ctrl.config.ListenAddress,
		Handler:        handler,
		ReadTimeout:    ctrl.config.ReadTimeout,
		WriteTimeout:   ctrl.config.WriteTimeout,
		IdleTimeout:    ctrl.config.IdleTimeout,
		MaxHeaderBytes: 1 << 20,
		ErrorLog:       golog.New(log.NewStdlibAdapter(level.Warn(ctrl.logger)), "", 0),
	}
	_ = level.Info(ctrl.logger).Log("msg", "starting http server", "addr", ctrl.config.ListenAddress)

	err = ctrl.httpServer.ListenAndServe()
	// ListenAndServe always returns a non-nil error. After Shutdown or Close,
	// the returned error is ErrServerClosed.
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (ctrl *Controller) Stop() error {
	if ctrl.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), ctrl.config.ShutdownTimeout)
	defer cancel()
	return ctrl.httpServer.Shutdown(ctx)
}

// Drain makes every drained route answer 503; diagnostic routes keep working.
func (ctrl *Controller) Drain() {
	ctrl.drained.Store(true)
}

func (ctrl *Controller) drainMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ctrl.drained.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	}
}
