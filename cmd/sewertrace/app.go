package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"

	"github.com/dd0wney/sewertrace/pkg/config"
	"github.com/dd0wney/sewertrace/pkg/events"
	"github.com/dd0wney/sewertrace/pkg/logging"
	"github.com/dd0wney/sewertrace/pkg/metrics"
	"github.com/dd0wney/sewertrace/pkg/network"
	"github.com/dd0wney/sewertrace/pkg/pgsource"
	"github.com/dd0wney/sewertrace/pkg/redisselect"
	"github.com/dd0wney/sewertrace/pkg/session"
	"github.com/dd0wney/sewertrace/pkg/sessionstore"
)

// app holds everything one command invocation works with
type app struct {
	cfg     *config.Config
	logger  logging.Logger
	metrics *metrics.Registry

	source  *network.MemorySource
	pg      *pgsource.Store
	redis   *redis.Client
	store   *sessionstore.Store
	session *session.Session
	name    string

	closers []io.Closer
}

// openApp loads the configuration, the network and the named session.
// A session that was never saved starts empty.
func openApp(ctx context.Context, cfgPath, name string) (*app, error) {
	var opts []config.LoaderOption
	if cfgPath != "" {
		opts = append(opts, config.WithFile(cfgPath))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if name == "" {
		name = cfg.Session.Name
	}

	logger, closer, err := logging.New(cfg.LogOutput())
	if err != nil {
		return nil, fmt.Errorf("open log output: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, name: name, closers: []io.Closer{closer}}
	logging.SetDefaultLogger(logger)

	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewNamespacedRegistry(cfg.Metrics.Namespace)
	}

	if err := a.openNetwork(ctx); err != nil {
		a.Close()
		return nil, err
	}
	sel, err := a.openSelections(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.store, err = sessionstore.Open(sessionstore.Config{
		Path:     cfg.Session.Dir,
		InMemory: cfg.Session.InMemory,
		Logger:   logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open session store: %w", err)
	}
	a.closers = append(a.closers, a.store)

	sopts := []session.Option{session.WithID(name), session.WithLogger(logger)}
	if a.metrics != nil {
		sopts = append(sopts, session.WithMetrics(a.metrics))
	}
	if cfg.Events.Enabled {
		if bus := a.openFeed(ctx); bus != nil {
			sopts = append(sopts, session.WithEvents(bus))
		}
	}
	a.session = session.New(a.source, sel, sopts...)

	err = a.session.Load(ctx, a.store, name)
	switch {
	case err == nil:
		logger.Debug("session loaded", logging.Session(name))
	case errors.Is(err, sessionstore.ErrNotFound):
		logger.Info("starting new session", logging.Session(name))
	default:
		a.Close()
		return nil, fmt.Errorf("load session %s: %w", name, err)
	}
	return a, nil
}

func (a *app) openNetwork(ctx context.Context) error {
	switch a.cfg.Network.Source {
	case config.SourcePostgres:
		pg, err := pgsource.Open(ctx, a.cfg.Network.DSN, a.cfg.Network.Schema, a.logger)
		if err != nil {
			return err
		}
		a.pg = pg
		a.closers = append(a.closers, pg)
		if a.cfg.Network.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				return err
			}
		}
		a.source, err = pg.Load(ctx)
		return err
	default:
		src, err := network.LoadYAML(a.cfg.Network.Path)
		if err != nil {
			return err
		}
		a.source = src
		return nil
	}
}

func (a *app) openSelections(ctx context.Context) (network.Selections, error) {
	if a.cfg.Selection.Backend != config.BackendRedis {
		return network.NewMemorySelections(), nil
	}
	rc := a.cfg.Selection.Redis
	client, err := redisselect.Connect(ctx, redisselect.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
		Prefix:   rc.Prefix,
	})
	if err != nil {
		return network.Selections{}, err
	}
	a.redis = client
	a.closers = append(a.closers, client)
	return redisselect.Selections(client, rc.Prefix, a.name), nil
}

// feed forwards bus events to the publisher until closed
type feed struct {
	bus       *events.Bus
	publisher *events.Publisher
	done      chan struct{}
}

func (f *feed) Close() error {
	f.bus.Shutdown()
	<-f.done
	return f.publisher.Stop()
}

// openFeed connects the event publisher. Events are best effort: when no
// collector is reachable the command runs without them.
func (a *app) openFeed(ctx context.Context) *events.Bus {
	pub, err := events.NewPublisher(events.NewNNGSocketFactory(), events.PublisherConfig{
		Address: a.cfg.Events.Addr,
		Logger:  a.logger,
	})
	if err == nil {
		err = pub.Start()
	}
	if err != nil {
		a.logger.Warn("event feed unavailable", logging.Error(err))
		return nil
	}

	bus := events.NewBus()
	sub, err := bus.Subscribe(ctx, events.TopicAll)
	if err != nil {
		pub.Stop()
		return nil
	}
	f := &feed{bus: bus, publisher: pub, done: make(chan struct{})}
	go func() {
		defer close(f.done)
		pub.Forward(sub)
	}()
	a.closers = append(a.closers, f)
	return bus
}

// reload replaces the network in place and drops the adjacency caches
func (a *app) reload(ctx context.Context) error {
	var (
		next *network.MemorySource
		err  error
	)
	if a.pg != nil {
		next, err = a.pg.Load(ctx)
	} else {
		next, err = network.LoadYAML(a.cfg.Network.Path)
	}
	if err != nil {
		return err
	}
	a.source.ReplaceWith(next)
	a.session.InvalidateCaches()
	return nil
}

// save persists the session under its name
func (a *app) save(ctx context.Context) error {
	if err := a.session.Save(ctx, a.store, a.name); err != nil {
		return fmt.Errorf("save session %s: %w", a.name, err)
	}
	return nil
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
