package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dd0wney/sewertrace/pkg/config"
	"github.com/dd0wney/sewertrace/pkg/events"
	"github.com/dd0wney/sewertrace/pkg/logging"
)

var (
	followAddr  string
	followKinds []string
)

var followCmd = &cobra.Command{
	Use:   "follow",
	Short: "Print selection changes published by other sewertrace commands",
	Long: `Listen on events.addr (or --addr) and print every selection change that
commands run with events.enabled publish. Stop with Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts []config.LoaderOption
		if cfgPath != "" {
			opts = append(opts, config.WithFile(cfgPath))
		}
		cfg, err := config.Load(opts...)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		addr := followAddr
		if addr == "" {
			addr = cfg.Events.Addr
		}

		logger, closer, err := logging.New(cfg.LogOutput())
		if err != nil {
			return err
		}
		defer closer.Close()

		kinds := make([]events.Kind, 0, len(followKinds))
		for _, k := range followKinds {
			kinds = append(kinds, events.Kind(strings.ToLower(k)))
		}
		sub, err := events.NewSubscriber(events.NewNNGSocketFactory(), events.SubscriberConfig{
			Address: addr,
			Kinds:   kinds,
			Logger:  logger,
		})
		if err != nil {
			return err
		}
		if err := sub.Listen(); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "📡 Listening for events on %s\n", addr)
		return sub.Run(cmd.Context(), func(e events.Event) {
			fmt.Fprintln(out, formatEvent(e))
		})
	},
}

func init() {
	followCmd.Flags().StringVar(&followAddr, "addr", "", "Listen address (default: events.addr from config)")
	followCmd.Flags().StringSliceVar(&followKinds, "kind", nil, "Only print these event kinds")
	rootCmd.AddCommand(followCmd)
}

func formatEvent(e events.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %-9s", e.At.Local().Format("15:04:05"), e.Session, e.Kind)
	switch e.Kind {
	case events.KindTrace:
		fmt.Fprintf(&b, " %s from %s: %d edges", e.Direction, e.Node, e.Edges)
	case events.KindVisit:
		fmt.Fprintf(&b, " %s pollution=%t kept=%d removed=%d", e.Node, e.Pollution, e.Kept, e.Removed)
	case events.KindDesignate:
		fmt.Fprintf(&b, " %s: %d edges", e.Entity, e.Edges)
	}
	if len(e.Entities) > 0 {
		fmt.Fprintf(&b, " entities=%s", joinIDs(e.Entities))
	}
	return b.String()
}
