package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cornjacket/pdv-terminal/internal/client/authority"
	"github.com/cornjacket/pdv-terminal/internal/client/relay"
	"github.com/cornjacket/pdv-terminal/internal/services/checkout"
	"github.com/cornjacket/pdv-terminal/internal/services/checkout/worker"
	"github.com/cornjacket/pdv-terminal/internal/shared/config"
	"github.com/cornjacket/pdv-terminal/internal/shared/domain/fiscal"
	"github.com/cornjacket/pdv-terminal/internal/shared/infra/netprobe"
	"github.com/cornjacket/pdv-terminal/internal/shared/infra/postgres"
	"github.com/cornjacket/pdv-terminal/internal/shared/infra/redpanda"
	"github.com/cornjacket/pdv-terminal/internal/shared/infra/sqlite"
)

// terminalStore is a checkout.Store that also accepts manual escalation.
type terminalStore interface {
	checkout.Store
	MarkFailedPermanent(ctx context.Context, id int64, reason string) error
}

var (
	_ terminalStore = (*sqlite.Store)(nil)
	_ terminalStore = (*postgres.Store)(nil)
)

// openStore opens the configured store with its schema migrated.
// The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (terminalStore, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		if err := postgres.RunMigrations(cfg.DatabaseURL, logger); err != nil {
			return nil, nil, err
		}
		client, err := postgres.NewClient(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewStore(client.Pool(), logger), client.Close, nil

	default:
		store, err := sqlite.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Error("failed to close store", "error", err)
			}
		}, nil
	}
}

func newBuilder(cfg *config.Config) (*fiscal.Builder, error) {
	signer, err := fiscal.NewHMACSigner([]byte(cfg.SigningKey), cfg.CertificateID)
	if err != nil {
		return nil, fmt.Errorf("failed to create signer: %w", err)
	}

	return fiscal.NewBuilder(fiscal.Issuer{
		CNPJ:       cfg.IssuerCNPJ,
		Name:       cfg.IssuerName,
		UF:         cfg.IssuerUF,
		Series:     cfg.DocumentSeries,
		Production: cfg.Env == config.EnvProduction,
	}, signer), nil
}

// newTransmitter returns the configured upstream and a func that releases it.
func newTransmitter(cfg *config.Config, logger *slog.Logger) (worker.Transmitter, func(), error) {
	switch cfg.Transport {
	case config.TransportHTTP:
		// Per-call deadlines come from the worker's transmit timeout.
		return authority.New(cfg.AuthorityURL, &http.Client{}, logger), func() {}, nil

	default:
		producer, err := redpanda.NewProducer(splitList(cfg.RedpandaBrokers), logger)
		if err != nil {
			return nil, nil, err
		}
		return relay.New(producer, cfg.RelayTopic, cfg.TerminalID, logger), producer.Close, nil
	}
}

func newProber(cfg *config.Config, logger *slog.Logger) (*netprobe.Prober, error) {
	return netprobe.New(cfg.ProbeTargets, logger)
}

func workerConfig(cfg *config.Config) worker.Config {
	return worker.Config{
		Interval:        cfg.SyncInterval,
		BatchSize:       cfg.SyncBatchSize,
		ProbeTimeout:    cfg.ProbeTimeout,
		TransmitTimeout: cfg.TransmitTimeout,
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
