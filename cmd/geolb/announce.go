package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"geo-lb/config"
	"geo-lb/message"
	"geo-lb/registry"
)

type announceFlags struct {
	id, addr, country, state, city string
}

// newAnnounceCommand publishes one client in etcd and keeps its lease alive
// until interrupted. Every geolb server mirroring the same prefix picks it up.
func newAnnounceCommand() *cobra.Command {
	var f announceFlags
	cmd := &cobra.Command{
		Use:   "announce",
		Short: "Announce a client in etcd until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnnounce(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.id, "id", "", "client ID; generated when empty")
	cmd.Flags().StringVar(&f.addr, "client-addr", "", "address of the announced client")
	cmd.Flags().StringVar(&f.country, "country", "", "client country")
	cmd.Flags().StringVar(&f.state, "state", "", "client state")
	cmd.Flags().StringVar(&f.city, "city", "", "client city")
	return cmd
}

func runAnnounce(cmd *cobra.Command, f announceFlags) error {
	cfg, err := config.Load(cmd)
	if err != nil {
		return err
	}
	if len(cfg.EtcdEndpoints) == 0 {
		return errors.New("announce requires --etcd-endpoints")
	}

	req := message.RegisterRequest{ID: f.id, Addr: f.addr, Country: f.country, State: f.state, City: f.city}
	if err := req.Validate(); err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	etcd, err := registry.NewEtcdRegistry(cfg.EtcdEndpoints, cfg.EtcdPrefix)
	if err != nil {
		return err
	}
	defer etcd.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := req.Client()
	if err := etcd.Announce(ctx, c, cfg.EtcdTTL); err != nil {
		return err
	}
	log.Info("client announced", zap.String("client_id", c.ID), zap.Int64("ttl", cfg.EtcdTTL))

	<-ctx.Done()

	wctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := etcd.Withdraw(wctx, c.ID); err != nil {
		log.Warn("withdraw failed; entry expires with its lease", zap.Error(err))
	}
	return nil
}
