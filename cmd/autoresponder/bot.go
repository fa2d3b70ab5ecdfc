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
	"whatsapp-autoresponder/internal/whatsapp"
)

var botKeepAlive bool

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the WhatsApp session and answer incoming messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger(cfg, "bot")

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

		log.Info().Msg("Initializing WhatsApp client")
		wa, err := whatsapp.Open(ctx, cfg.StoreDSN, cfg.BotName, log)
		if err != nil {
			return err
		}

		gate := membership.NewGate(cfg.AllowedNumbers, cfg.AdminNumbers)
		r := responder.New(gate, membership.NewSeenSet(), gen, wa, responder.Options{ShowTyping: cfg.ShowTyping}, log)
		d := responder.NewDispatcher(r, cfg.QueueSize, log)

		log.Info().
			Str("bot", cfg.BotName).
			Str("prefix", cfg.CommandPrefix).
			Str("model", cfg.Model).
			Int("allowed", len(cfg.AllowedNumbers)).
			Int("admins", len(cfg.AdminNumbers)).
			Msg("Starting WhatsApp AI bot")

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return d.Run(gctx) })
		g.Go(func() error {
			err := wa.Run(gctx, d)
			stop()
			return err
		})
		if botKeepAlive {
			g.Go(func() error { return web.Serve(gctx, cfg.KeepAliveAddr, web.NewRouter(log, nil), log) })
		}
		return g.Wait()
	},
}

func init() {
	botCmd.Flags().BoolVar(&botKeepAlive, "keepalive", false, "also serve the liveness endpoint on KEEPALIVE_ADDR")
}
