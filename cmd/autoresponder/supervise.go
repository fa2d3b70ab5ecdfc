package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"whatsapp-autoresponder/internal/config"
	"whatsapp-autoresponder/internal/supervisor"
	"whatsapp-autoresponder/internal/web"
)

var superviseNoKeepAlive bool

var superviseCmd = &cobra.Command{
	Use:   "supervise [subcommand args...]",
	Short: "Run the bot as a child process and restart it when it crashes",
	Long: `Run "autoresponder bot" (or the given subcommand) as a child process.
A crashed child is restarted after 1s, 2s, 4s, 8s and 16s; a sixth crash
starts a 5 minute cooldown after which the count resets. A clean exit
(status 0) is not restarted. SIGINT and SIGTERM are forwarded to the child.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadWithoutKey()
		if err != nil {
			return err
		}
		log := newLogger(cfg, "supervisor")

		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("cannot find executable: %w", err)
		}
		if len(args) == 0 {
			args = []string{"bot"}
		}

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigs)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		if !superviseNoKeepAlive {
			go func() {
				if err := web.Serve(ctx, cfg.KeepAliveAddr, web.NewRouter(log, nil), log); err != nil {
					log.Error().Err(err).Msg("Keep-alive server failed")
				}
			}()
		}

		child := supervisor.Command{
			Path:   exe,
			Args:   args,
			Stdin:  os.Stdin,
			Stdout: os.Stdout,
			Stderr: os.Stderr,
		}
		return supervisor.New(child.Spawn, supervisor.DefaultPolicy(), nil, log).Run(ctx, sigs)
	},
}

func init() {
	// Everything after the subcommand name belongs to the child.
	superviseCmd.Flags().SetInterspersed(false)
	superviseCmd.Flags().BoolVar(&superviseNoKeepAlive, "no-keepalive", false, "do not serve the liveness endpoint")
}
