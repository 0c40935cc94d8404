// Command diamondd serves a token router over gRPC.
//
// On first start against an empty state backend it deploys the standard
// router owned by the configured key. Later starts locate that router.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/ipfs/go-cid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"xdao.co/diamond/deploy"
	"xdao.co/diamond/diamond"
	"xdao.co/diamond/internal/config"
	"xdao.co/diamond/internal/logging"
	"xdao.co/diamond/internal/telemetry"
	"xdao.co/diamond/keys"
	"xdao.co/diamond/model"
	"xdao.co/diamond/rpc"
	"xdao.co/diamond/state"
	"xdao.co/diamond/storage"
	"xdao.co/diamond/storage/ipfs"
	"xdao.co/diamond/storage/localfs"

	_ "xdao.co/diamond/state/memstore"
	_ "xdao.co/diamond/state/sqlitestore"
)

const serviceName = "xdao.diamond.rpc.v1.Router"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("diamondd", flag.ContinueOnError)
	fs.SetOutput(errOut)
	configPath := fs.String("config", "", "TOML or YAML config file")
	restore := fs.String("restore", "", "Snapshot CID to load into an empty state backend")
	listBackends := fs.Bool("list-backends", false, "List supported state backends and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *listBackends {
		for _, d := range state.Drivers(state.UsageDaemon) {
			_, _ = fmt.Fprintf(out, "%s\t%s\n", d.Name, d.Description)
		}
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	logger, err := logging.New("diamondd", logging.Runtime, logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Out: errOut})
	if err != nil {
		fmt.Fprintf(errOut, "logging: %v\n", err)
		return 2
	}
	shutdown, err := telemetry.Setup(ctx, "diamondd", cfg.OTLPEndpoint)
	if err != nil {
		logger.Error().Err(err).Msg("telemetry setup failed")
		return 1
	}
	defer func() { _ = shutdown(context.Background()) }()

	if err := serve(ctx, cfg, *restore, logger); err != nil {
		logger.Error().Err(err).Msg("diamondd stopped")
		return 1
	}
	return 0
}

func serve(ctx context.Context, cfg config.Config, restore string, logger zerolog.Logger) error {
	backend, closeFn, err := state.Open(cfg.State.Driver, cfg.State.DSN, state.UsageDaemon)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	cas, err := snapshotStore(cfg)
	if err != nil {
		return err
	}
	if restore != "" {
		if cas == nil {
			return errors.New("-restore needs snapshot_dir or ipfs.enabled")
		}
		id, err := cid.Decode(restore)
		if err != nil {
			return fmt.Errorf("-restore: %w", err)
		}
		if err := state.RestoreSnapshot(cas, id, backend); err != nil {
			return fmt.Errorf("restore %s: %w", id, err)
		}
		logger.Info().Str("cid", id.String()).Msg("state restored")
	}

	owner, err := ownerAddress(cfg)
	if err != nil {
		return err
	}
	h := diamond.NewHost(backend, diamond.WithLogger(logger), diamond.WithFacets(deploy.Library()...))
	d, err := bootstrap(ctx, h, backend, owner, cfg)
	if err != nil {
		return err
	}
	logger.Info().
		Str("router", d.Router.String()).
		Str("owner", owner.String()).
		Str("backend", cfg.State.Driver).
		Msg("router ready")

	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Listen, err)
	}
	s := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	rpc.RegisterRouterServer(s, &rpc.Server{Host: h, CAS: cas, Log: logger})
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, hs)
	hs.SetServingStatus(serviceName, grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() { serveErr <- s.Serve(lis) }()
	logger.Info().Str("listen", lis.Addr().String()).Msg("diamondd listening")

	select {
	case <-ctx.Done():
		hs.Shutdown()
		s.GracefulStop()
		return nil
	case err := <-serveErr:
		return err
	}
}

// snapshotStore opens the configured snapshot stores. With both localfs and
// ipfs configured, writes go to both and reads prefer localfs.
func snapshotStore(cfg config.Config) (storage.CAS, error) {
	var stores []storage.NamedCAS
	if cfg.SnapshotDir != "" {
		fsCAS, err := localfs.New(cfg.SnapshotDir)
		if err != nil {
			return nil, fmt.Errorf("snapshot dir: %w", err)
		}
		stores = append(stores, storage.NamedCAS{Name: "localfs", CAS: fsCAS})
	}
	if cfg.IPFS.Enabled {
		c := ipfs.New(ipfs.Options{Bin: cfg.IPFS.Bin, Repo: cfg.IPFS.Repo, Pin: cfg.IPFS.Pin})
		if !c.Available() {
			return nil, fmt.Errorf("ipfs enabled but binary %q not found", cfg.IPFS.Bin)
		}
		stores = append(stores, storage.NamedCAS{Name: "ipfs", CAS: c})
	}
	switch len(stores) {
	case 0:
		return nil, nil
	case 1:
		return stores[0].CAS, nil
	default:
		return storage.ReplicatingCAS{Stores: stores}, nil
	}
}

func ownerAddress(cfg config.Config) (model.Address, error) {
	seed, err := cfg.OwnerSeed()
	if err != nil {
		return model.Address{}, err
	}
	scheme, err := keys.ParseScheme(cfg.Owner.Scheme)
	if err != nil {
		return model.Address{}, err
	}
	signer, err := keys.NewSigner(scheme, seed)
	if err != nil {
		return model.Address{}, err
	}
	return signer.Address(), nil
}

// bootstrap deploys the standard router into an empty backend, or locates
// the one already there.
func bootstrap(ctx context.Context, h *diamond.Host, backend state.Backend, owner model.Address, cfg config.Config) (deploy.Deployment, error) {
	empty, err := state.IsEmpty(backend)
	if err != nil {
		return deploy.Deployment{}, err
	}
	if !empty {
		return deploy.Locate(ctx, h, owner)
	}
	return deploy.Standard(ctx, h, owner, deploy.Options{
		Name:     cfg.Token.Name,
		Symbol:   cfg.Token.Symbol,
		Supply:   cfg.Supply(),
		BurnRate: cfg.Token.BurnRate,
	})
}
