package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/restrobook/internal/booking"
	"github.com/example/restrobook/internal/events"
	"github.com/example/restrobook/internal/migrate"
	"github.com/example/restrobook/internal/store"
	"github.com/example/restrobook/internal/web"
)

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the booking HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			if migrateUp {
				if err := migrate.Up(ctx, e.db, e.logger.Named("migrate")); err != nil {
					return err
				}
			}

			locks, closeLocks, err := e.locker(ctx)
			if err != nil {
				return err
			}
			defer closeLocks()

			opts := []booking.Option{booking.WithLockWait(e.cfg.LockWait)}
			if e.cfg.NATSURL != "" {
				pub, err := events.NewNATSPublisher(e.cfg.NATSURL, e.logger.Named("nats"))
				if err != nil {
					return err
				}
				defer pub.Close()
				opts = append(opts, booking.WithPublisher(pub))
			}

			repo := store.NewRepo(e.db)
			coord := booking.NewCoordinator(repo, locks, e.logger.Named("booking"), opts...)

			limits := web.NewClientLimiter(e.cfg.BookingRPS, e.cfg.BookingBurst)

			e.logger.Info("starting", "version", Version, "lock_backend", e.cfg.LockBackend, "events", e.cfg.NATSURL != "")
			ws := &web.Server{Catalog: repo, Booker: coord, Logger: e.logger.Named("http"), Limits: limits}
			return web.Start(ctx, e.cfg.ListenAddr, ws.Routes(), e.logger.Named("http"))
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")

	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}
