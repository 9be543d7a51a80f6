package cmd

import (
	"context"
	"log"
	"strings"

	"github.com/curaious/teamboard/internal/api"
	"github.com/curaious/teamboard/internal/api/authenticator"
	"github.com/curaious/teamboard/internal/config"
	"github.com/curaious/teamboard/internal/realtime"
	"github.com/curaious/teamboard/internal/services"
	"github.com/curaious/teamboard/internal/telemetry"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the REST and realtime servers",
	Run: func(cmd *cobra.Command, args []string) {
		conf := config.ReadConfig()

		shutdownTelemetry := telemetry.NewProvider("teamboard", conf.OTEL_EXPORTER_OTLP_ENDPOINT)
		defer shutdownTelemetry()

		svc := services.NewServices(conf)
		defer svc.Close()

		auth, err := authenticator.New(conf)
		if err != nil {
			log.Fatalln("Unable to create authenticator", err)
		}

		var events realtime.EventSource
		if svc.Events != nil {
			events = svc.Events
		}

		rt := realtime.NewServer(conf.REALTIME_ADDR, strings.Split(conf.ALLOWED_ORIGINS, ","), auth, svc.Resolver, events)
		if err := rt.Start(); err != nil {
			log.Fatalln("Unable to start realtime server", err)
		}

		s, err := api.New(conf, svc)
		if err != nil {
			log.Fatalln("Unable to create REST server", err)
		}
		s.Start(func(ctx context.Context) {
			rt.Shutdown(ctx)
		})
	},
}

// Register the "server" command
func init() {
	rootCmd.AddCommand(serverCmd)
}
