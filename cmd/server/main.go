package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"claimrails/internal/claimmeta"
	"claimrails/internal/config"
	"claimrails/internal/escrow"
	"claimrails/internal/idempotency"
	"claimrails/internal/logging"
	"claimrails/internal/server"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.Init("claimrails", true)
		bootLog.Fatal().Err(err).Msg("load config")
	}

	log := logging.Init("claimrails", cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("connect redis")
		}
		defer redisClient.Close()
	}

	metaStore := buildMetaStore(cfg, redisClient, log)
	idemStore := buildIdempotencyStore(ctx, cfg, log)

	escrowClient, cleanup, err := buildEscrowClient(ctx, cfg, redisClient, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build escrow client")
	}
	defer cleanup()

	srv := server.NewServer(cfg, escrowClient, idemStore, metaStore, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}
}

func buildMetaStore(cfg *config.Config, redisClient *redis.Client, log zerolog.Logger) claimmeta.Store {
	if redisClient != nil {
		return claimmeta.NewRedisStore(redisClient, cfg.ClaimMetaTTL)
	}
	log.Warn().Msg("REDIS_ADDR not set, claim metadata is in-memory only")
	return claimmeta.NewMemoryStore()
}

func buildIdempotencyStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) idempotency.Store {
	if cfg.PostgresDSN != "" {
		store, err := idempotency.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("connect postgres idempotency store")
		}
		return store
	}
	if cfg.IdempotencyStorePath != "" {
		store, err := idempotency.NewFileStore(cfg.IdempotencyStorePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.IdempotencyStorePath).Msg("open idempotency file store")
		}
		return store
	}
	log.Warn().Msg("idempotency records are in-memory only")
	return idempotency.NewMemoryStore()
}

// buildEscrowClient assembles the mode-appropriate client. The returned
// cleanup closes whatever the client opened.
func buildEscrowClient(ctx context.Context, cfg *config.Config, redisClient *redis.Client, log zerolog.Logger) (escrow.Client, func(), error) {
	if cfg.Mode == config.ModeChain {
		cli, err := escrow.NewEthClient(ctx, escrow.EthClientConfig{
			RPCURL:         cfg.Chain.RPCURL,
			PrivateKeyHex:  cfg.Chain.PrivateKey,
			EscrowAddress:  cfg.Deployment.Contracts.CrushEscrow,
			TokenAddress:   cfg.Deployment.Contracts.MonToken,
			ReceiptTimeout: cfg.Chain.ReceiptTimeout,
			Log:            log,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info().
			Str("escrow", cfg.Deployment.Contracts.CrushEscrow).
			Str("token", cfg.Deployment.Contracts.MonToken).
			Int64("chainId", cfg.Deployment.ChainID).
			Msg("chain mode")
		return cli, func() {}, nil
	}

	if cfg.OwnerAddress == "" || !common.IsHexAddress(cfg.OwnerAddress) {
		return nil, nil, errors.New("ESCROW_OWNER_ADDRESS is required in engine mode")
	}
	owner := common.HexToAddress(cfg.OwnerAddress)

	// Deterministic in-process addresses for the custody account and the
	// token handle the sweep endpoint names.
	escrowAccount := deriveAddress("claimrails/escrow")
	tokenAddr := deriveAddress("claimrails/token")

	ledger := escrow.NewMemoryLedger(escrowAccount)
	ledger.AutoFund = cfg.EngineAutoFund

	var store escrow.ClaimStore
	var cleanup = func() {}
	sinks := escrow.MultiSink{escrow.LogSink{Log: log}}

	if cfg.PostgresDSN != "" {
		pg, err := escrow.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		store = pg
		cleanup = pg.Close

		audit, err := escrow.NewPostgresAuditLog(ctx, pg.Pool(), log)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, audit)
	} else {
		log.Warn().Msg("POSTGRES_DSN not set, claims are in-memory only")
		store = escrow.NewMemoryStore()
	}

	if redisClient != nil {
		sinks = append(sinks, &escrow.RedisSink{
			Client:  redisClient,
			Channel: cfg.EventChannel,
			Log:     log,
		})
	}

	engine := escrow.NewProtocol(store, ledger, owner, sinks)
	log.Info().
		Str("owner", owner.Hex()).
		Str("token", tokenAddr.Hex()).
		Bool("autofund", cfg.EngineAutoFund).
		Msg("engine mode")

	return escrow.NewLocalClient(engine, map[common.Address]escrow.Ledger{
		tokenAddr: ledger,
	}), cleanup, nil
}

func deriveAddress(label string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(label))[12:])
}
