package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/san11tools/memscope/pkg/catalog"
	"github.com/san11tools/memscope/pkg/objstore/client"
	"github.com/san11tools/memscope/pkg/server"
	"github.com/san11tools/memscope/pkg/util"
	memcontext "github.com/san11tools/memscope/pkg/util/context"
)

func serve(ctx context.Context) error {
	c := config(ctx)
	if err := c.ValidateServer(); err != nil {
		return err
	}
	logger := memcontext.Logger(ctx)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		util.PanicCollector(),
	)
	ctx = memcontext.WithRegistry(ctx, reg)

	cat, err := loadCatalog(ctx, reg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.Catalog.Watch {
		w, err := newWatcher(ctx, cat, c.Storage)
		if err != nil {
			return err
		}
		if err := services.StartAndAwaitRunning(ctx, w); err != nil {
			return errors.Wrap(err, "starting workbook watcher")
		}
		defer func() {
			if err := services.StopAndAwaitTerminated(context.Background(), w); err != nil {
				level.Warn(logger).Log("msg", "stopping workbook watcher", "err", err)
			}
		}()
	}

	ctrl, err := server.New(server.ControllerConfig{
		Config:     c.Server,
		Catalog:    cat,
		Logger:     logger,
		Registerer: reg,
		Gatherer:   reg,
		ConfigYAML: c.YAMLBytes,
	})
	if err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() { errc <- ctrl.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	level.Info(logger).Log("msg", "shutting down")
	ctrl.Drain()
	if err := ctrl.Stop(); err != nil {
		return err
	}
	return <-errc
}

// newWatcher watches the workbook directories. Only the filesystem backend
// can be watched.
func newWatcher(ctx context.Context, cat *catalog.Catalog, storage client.Config) (*catalog.Watcher, error) {
	if storage.Backend != client.Filesystem {
		return nil, errors.Errorf("watching workbooks requires the %s storage backend, got %s", client.Filesystem, storage.Backend)
	}
	root := filepath.Join(storage.Filesystem.Directory, storage.StoragePrefix)
	return catalog.NewWatcher(cat, root, memcontext.Logger(ctx)), nil
}
