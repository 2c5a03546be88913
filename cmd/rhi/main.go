package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/rad-roots-labs/rhi/params"
	"github.com/rad-roots-labs/rhi/pkg/diag"
	"github.com/rad-roots-labs/rhi/pkg/dispatch"
	"github.com/rad-roots-labs/rhi/pkg/identity"
	"github.com/rad-roots-labs/rhi/pkg/state"
	"github.com/rad-roots-labs/rhi/pkg/supervisor"
	"github.com/rad-roots-labs/rhi/pkg/transport/wsrelay"
	"github.com/rad-roots-labs/rhi/pkg/util"
	"github.com/rad-roots-labs/rhi/pkg/validator"
)

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.LogFile)

	var keys *identity.KeyPair
	if cfg.DaemonPrivHex != "" {
		keys, err = identity.FromHex(cfg.DaemonPrivHex)
	} else {
		keys, err = identity.Generate()
	}
	if err != nil {
		sugar.Fatalw("identity_init_failed", "err", err)
	}
	sugar.Infow("identity_ready", "pubkey", keys.PublicKeyHex)

	tr := wsrelay.New(keys, sugar)
	for _, relay := range cfg.Relays {
		if err := tr.AddRelay(relay); err != nil {
			sugar.Fatalw("add_relay_failed", "relay", relay, "err", err)
		}
	}

	st := state.NewTradeListingState()

	deps := dispatch.Deps{
		State:        st,
		Transport:    tr,
		Validator:    validator.ReferenceValidator{},
		Identity:     keys,
		FetchTimeout: cfg.FetchTimeout,
		Log:          sugar,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DiagAddr != "" {
		diagServer := diag.NewServer(st)
		go func() {
			sugar.Infow("diag_server_starting", "addr", cfg.DiagAddr)
			if err := diagServer.Start(cfg.DiagAddr); err != nil {
				sugar.Errorw("diag_server_failed", "err", err)
			}
		}()
	}

	backoffCfg := supervisor.BackoffConfig{
		Min:    cfg.Backoff.Min,
		Max:    cfg.Backoff.Max,
		Factor: cfg.Backoff.Factor,
		Jitter: cfg.Backoff.Jitter,
	}
	handle := supervisor.Start(ctx, deps, backoffCfg, util.RealClock{}, sugar)

	sugar.Infow("rhi_starting", "relays", cfg.Relays)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			handle.Stop()
			handle.Stopped()
			sugar.Info("rhi_stopped")
			return
		case <-ticker.C:
			sugar.Infow("rhi_progress",
				"validated_listings", st.ValidatedListingCount(),
				"orders", len(st.OrderSnapshot()))
		}
	}
}
