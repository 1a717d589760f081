// Command sewertrace traces pollution through a sewer network and narrows
// the set of industries that may be responsible, one field visit at a time.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	cfgPath     string
	sessionName string

	rootCmd = &cobra.Command{
		Use:   "sewertrace",
		Short: "Trace pollution through a sewer network",
		Long: `sewertrace selects the conduits upstream of a pollution report and the
industries discharging into them, then narrows that selection as field
visits rule branches in or out.`,
		SilenceUsage: true,
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to the configuration file (default: sewertrace.yaml or $SEWERTRACE_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&sessionName, "session", "s", "", "Session name (default: session.name from config)")

	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(branchesCmd)
	rootCmd.AddCommand(visitCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(designateCmd)
	rootCmd.AddCommand(diagnoseCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(noteCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(watchCmd)
}

// withApp opens the app for one command, runs fn and saves the session when
// persist is set
func withApp(cmd *cobra.Command, persist bool, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, cfgPath, sessionName)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := fn(ctx, a); err != nil {
		return err
	}
	if persist {
		return a.save(ctx)
	}
	return nil
}
