package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"nova-strike/server"
	"nova-strike/server/internal/app"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "nova-strike-server",
		Short:         "Authoritative match server for Nova Strike",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(serveCmd())
	return cmd
}

// serveCmd runs the server. Every flag can also be set through the
// environment with the NOVA_ prefix, e.g. NOVA_TCP_ADDR.
func serveCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the match server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := server.Config{
				TCPAddr:      v.GetString("tcp-addr"),
				UDPAddr:      v.GetString("udp-addr"),
				HTTPAddr:     v.GetString("http-addr"),
				MaxPlayers:   v.GetInt("max-players"),
				MinPlayers:   v.GetInt("min-players"),
				TickInterval: v.GetDuration("tick-interval"),
				IdleTimeout:  v.GetDuration("idle-timeout"),
				LogFile:      v.GetString("log-file"),
				Debug:        v.GetBool("debug"),
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.Run(ctx, cfg)
		},
	}

	defaults := server.DefaultConfig()
	flags := cmd.Flags()
	flags.String("tcp-addr", defaults.TCPAddr, "reliable channel listen address")
	flags.String("udp-addr", defaults.UDPAddr, "unreliable channel listen address")
	flags.String("http-addr", defaults.HTTPAddr, "metrics/diagnostics/websocket listen address")
	flags.Int("max-players", defaults.MaxPlayers, "lobby capacity (1-255)")
	flags.Int("min-players", defaults.MinPlayers, "players required to start a match")
	flags.Duration("tick-interval", defaults.TickInterval, "simulation step period")
	flags.Duration("idle-timeout", defaults.IdleTimeout, "drop sessions silent for this long (0 disables)")
	flags.String("log-file", "", "rolling log file path (console only when empty)")
	flags.Bool("debug", false, "enable debug logging")

	v.SetEnvPrefix("NOVA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(flags)

	return cmd
}
