package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"aibridge.io/internal/cache"
	"aibridge.io/internal/config"
	"aibridge.io/internal/dashboard"
	"aibridge.io/internal/store/pg"
)

type globalFlags struct {
	configPath string
	dsn        string
	redisAddr  string
	timeout    time.Duration
}

func newRootCommand() *cobra.Command {
	var flags globalFlags
	root := &cobra.Command{
		Use:           "bridgectl",
		Short:         "Administer the aibridge gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to config.yaml")
	pf.StringVar(&flags.dsn, "dsn", "", "PostgreSQL DSN (overrides config)")
	pf.StringVar(&flags.redisAddr, "redis-addr", "", "Redis address of the dashboard cache (overrides config)")
	pf.DurationVar(&flags.timeout, "timeout", 30*time.Second, "overall command timeout")

	root.AddCommand(
		newMigrateCommand(&flags),
		newPrincipalCommand(&flags),
		newOrganizationCommand(&flags),
		newAuditCommand(&flags),
		newHashSecretCommand(),
	)
	return root
}

// openStore resolves the DSN from the flag, then the config layers.
func openStore(flags *globalFlags) (*pg.Store, error) {
	dsn := flags.dsn
	if dsn == "" {
		cfg, err := config.Load(flags.configPath)
		if err != nil {
			return nil, err
		}
		dsn = cfg.Database.DSN
	}
	if dsn == "" {
		return nil, errors.New("missing DSN: provide --dsn, database.dsn or AIBRIDGE_PG_DSN")
	}
	return pg.Open(dsn, pg.PoolConfig{MaxOpenConns: 2, MaxIdleConns: 2, ConnMaxLifetime: time.Minute})
}

func commandContext(cmd *cobra.Command, flags *globalFlags) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), flags.timeout)
}

// dropCachedStats clears the organization's cached dashboard entry so the
// gateway recomputes it. Without a Redis address there is nothing shared to
// clear and the gateway's in-process cache expires on its own.
func dropCachedStats(cmd *cobra.Command, flags *globalFlags, orgID string) {
	opts := &redis.Options{Addr: flags.redisAddr}
	if opts.Addr == "" {
		cfg, err := config.Load(flags.configPath)
		if err != nil || cfg.Redis.Addr == "" {
			return
		}
		opts = &redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	}
	client := redis.NewClient(opts)
	defer client.Close()

	ctx, cancel := commandContext(cmd, flags)
	defer cancel()
	stats := dashboard.New(nil, nil, cache.NewRedis(client), 0)
	if err := stats.Invalidate(ctx, orgID); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: dashboard cache for %s not cleared: %v\n", orgID, err)
	}
}
