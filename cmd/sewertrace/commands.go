package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dd0wney/sewertrace/pkg/network"
	"github.com/dd0wney/sewertrace/pkg/trace"
	"github.com/dd0wney/sewertrace/pkg/validation"
)

var (
	traceDirection string
	traceCategory  string
	traceFunction  string

	visitPollution bool
	visitKeep      []string

	designateNetwork string
)

var traceCmd = &cobra.Command{
	Use:   "trace <node>",
	Short: "Select the network reached from a node and the industries along it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &validation.TraceRequest{
			Start:     args[0],
			Direction: traceDirection,
			Category:  traceCategory,
			Function:  traceFunction,
		}
		if err := validation.ValidateTraceRequest(req); err != nil {
			return err
		}
		dir, err := trace.ParseDirection(req.Direction)
		if err != nil {
			return err
		}
		filters := trace.Filters{
			Category: network.ParseCode(req.Category),
			Function: network.ParseCode(req.Function),
		}

		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			start := network.NodeID(req.Start)
			if dir == trace.Upstream {
				res, entities, err := a.session.TraceForEntities(ctx, start, filters)
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), res)
				printEntities(cmd.OutOrStdout(), entities)
				return nil
			}
			res, err := a.session.Trace(ctx, start, dir, filters)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		})
	},
}

var branchesCmd = &cobra.Command{
	Use:   "branches <node>",
	Short: "List the branches a visit at a node would decide on",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, false, func(ctx context.Context, a *app) error {
			branches, err := a.session.Branches(network.NodeID(args[0]))
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "BRANCH\tFROM")
			for _, b := range branches {
				from := b.Upstream.String()
				if b.Kind == network.BranchLiaison {
					from = string(b.Entity)
				}
				fmt.Fprintf(w, "%s\t%s\n", b.BranchID(), from)
			}
			return w.Flush()
		})
	},
}

var visitCmd = &cobra.Command{
	Use:   "visit <node>",
	Short: "Record a field visit and narrow the selection",
	Long: `Record a field visit at a node. With --pollution the selection is narrowed
to what can reach the node through the kept branches; a node with a single
branch keeps it automatically. Without --pollution every branch is ruled out.

Branches are given as kind:id, for example conduit:12 or liaison:7.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &validation.VisitRequest{Node: args[0], Pollution: visitPollution, Keep: visitKeep}
		if err := validation.ValidateVisitRequest(req); err != nil {
			return err
		}
		keep := make(network.Set[network.BranchID])
		for _, raw := range req.Keep {
			id, err := network.ParseBranchID(raw)
			if err != nil {
				return err
			}
			keep.Add(id)
		}

		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			out, err := a.session.Visit(ctx, network.NodeID(req.Node), req.Pollution, keep)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Visited %s (pollution: %t)\n", out.Node, out.Pollution)
			fmt.Fprintf(w, "  kept branches:    %s\n", joinBranches(out.Kept))
			fmt.Fprintf(w, "  removed edges:    %d\n", out.RemovedEdges.Len())
			fmt.Fprintf(w, "  removed entities: %s\n", joinIDs(network.Sorted(out.RemovedEntities)))
			return nil
		})
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [node...]",
	Short: "Select the industries discharging at nodes (default: nodes of the last trace)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			nodes := a.session.LastNodes()
			if len(args) > 0 {
				nodes = make(network.Set[network.NodeID])
				for _, n := range args {
					nodes.Add(network.NodeID(n))
				}
			}
			entities, err := a.session.ResolveEntities(ctx, nodes)
			if err != nil {
				return err
			}
			printEntities(cmd.OutOrStdout(), entities)
			return nil
		})
	},
}

var designateCmd = &cobra.Command{
	Use:   "designate <entity>",
	Short: "Select an industry and the network downstream of its discharge points",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &validation.DesignateRequest{Entity: args[0], Network: designateNetwork}
		if err := validation.ValidateDesignateRequest(req); err != nil {
			return err
		}
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			d, err := a.session.DesignateEntity(ctx, network.EntityID(req.Entity), network.ParseCode(req.Network))
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Entity %s discharges at %s\n", d.Entity, joinIDs(network.Sorted(d.Starts)))
			printResult(w, d.Result)
			return nil
		})
	},
}

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Check the selected conduits for flow inversions and diameter reductions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, false, func(ctx context.Context, a *app) error {
			report, err := a.session.Diagnose(ctx)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if report.Empty() {
				fmt.Fprintln(w, "No anomaly found in the selected conduits")
				return nil
			}
			for _, inv := range report.Inversions {
				fmt.Fprintf(w, "⚠️  %s\n", inv)
			}
			for _, r := range report.Reductions {
				fmt.Fprintf(w, "⚠️  conduit %d: %s\n", r.Conduit, r)
			}
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current selection and the visits made so far",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, false, func(ctx context.Context, a *app) error {
			snap, err := a.session.Snapshot(ctx)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Session %s\n", snap.ID)
			if snap.Start != "" {
				fmt.Fprintf(w, "  trace:     %s from %s\n", snap.Direction, snap.Start)
			}
			if snap.DesignatedEntity != "" {
				fmt.Fprintf(w, "  designated: %s\n", snap.DesignatedEntity)
			}
			fmt.Fprintf(w, "  conduits:  %d\n", len(snap.SelectedConduits))
			fmt.Fprintf(w, "  channels:  %d\n", len(snap.SelectedChannels))
			fmt.Fprintf(w, "  liaisons:  %d\n", len(snap.SelectedLiaisons))
			fmt.Fprintf(w, "  entities:  %s\n", joinIDs(snap.SelectedEntities))
			for i, v := range snap.Visits {
				fmt.Fprintf(w, "  visit %d:   %s pollution=%t at %s\n", i+1, v.Node, v.Pollution, v.At.Format("2006-01-02 15:04"))
			}
			if snap.Note != "" {
				fmt.Fprintf(w, "  note:      %s\n", snap.Note)
			}
			return nil
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the selection and the recorded visits",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			if err := a.session.Reset(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s reset\n", a.name)
			return nil
		})
	},
}

var noteCmd = &cobra.Command{
	Use:   "note <text>",
	Short: "Attach a note to the session",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			a.session.SetNote(strings.Join(args, " "))
			return nil
		})
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List saved sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, false, func(ctx context.Context, a *app) error {
			names, err := a.store.List()
			if err != nil {
				return err
			}
			for _, n := range names {
				marker := " "
				if n == a.name {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, n)
			}
			return nil
		})
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a saved session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, false, func(ctx context.Context, a *app) error {
			return a.store.Delete(args[0])
		})
	},
}

func init() {
	traceCmd.Flags().StringVarP(&traceDirection, "direction", "d", "upstream", "Walk direction: upstream or downstream")
	traceCmd.Flags().StringVar(&traceCategory, "category", "", "Only follow edges of this category code")
	traceCmd.Flags().StringVar(&traceFunction, "function", "", "Only follow edges of this function code")

	visitCmd.Flags().BoolVarP(&visitPollution, "pollution", "p", false, "Pollution was found at the node")
	visitCmd.Flags().StringSliceVarP(&visitKeep, "keep", "k", nil, "Branches still carrying pollution (kind:id)")

	designateCmd.Flags().StringVar(&designateNetwork, "network", "", "Only start from structures of this network type (01, 02, 03)")

	sessionsCmd.AddCommand(sessionsDeleteCmd)
}

func printResult(w io.Writer, res *trace.Result) {
	fmt.Fprintf(w, "Reached %d edges over %.1f m", res.Count(), res.TotalLength)
	if labels := res.FlowLabels(); len(labels) > 0 {
		fmt.Fprintf(w, " (%s)", strings.Join(labels, ", "))
	}
	fmt.Fprintln(w)
	for _, c := range network.Collections {
		if ids := res.Edges.Of(c); len(ids) > 0 {
			fmt.Fprintf(w, "  %s: %s\n", c, joinIDs(network.Sorted(ids)))
		}
	}
}

func printEntities(w io.Writer, entities []network.Entity) {
	if len(entities) == 0 {
		fmt.Fprintln(w, "No entity found")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTITY\tNAME")
	for _, e := range entities {
		fmt.Fprintf(tw, "%s\t%s\n", e.ID, e.Attributes["name"])
	}
	tw.Flush()
}

func joinBranches(ids network.Set[network.BranchID]) string {
	parts := make([]string, 0, len(ids))
	for id := range ids {
		parts = append(parts, id.String())
	}
	if len(parts) == 0 {
		return "-"
	}
	slices.Sort(parts)
	return strings.Join(parts, ", ")
}

func joinIDs[K any](ids []K) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ", ")
}
