package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"whatsapp-autoresponder/internal/gemini"
	"whatsapp-autoresponder/internal/membership"
	"whatsapp-autoresponder/internal/responder"
	"whatsapp-autoresponder/internal/web"
)

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Answer messages posted to POST /api/webhook",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger(cfg, "webhook")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		gen, err := gemini.New(ctx, cfg.APIKey, gemini.Options{
			Model:    cfg.Model,
			Preamble: cfg.Preamble,
			Timeout:  cfg.GenerationTimeout,
		}, log)
		if err != nil {
			return err
		}

		gate := membership.NewGate(cfg.AllowedNumbers, cfg.AdminNumbers)
		r := responder.New(gate, membership.NewSeenSet(), gen, responder.Discard{}, responder.Options{}, log)
		d := responder.NewDispatcher(r, cfg.QueueSize, log)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return d.Run(gctx) })
		g.Go(func() error {
			err := web.Serve(gctx, cfg.WebhookAddr, web.NewRouter(log, web.NewWebhook(d, log)), log)
			stop()
			return err
		})
		return g.Wait()
	},
}
