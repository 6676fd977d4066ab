package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/urfave/cli/v3"

	"github.com/randalmurphal/wiregraph/pkg/wiregraph"
	"github.com/randalmurphal/wiregraph/pkg/wiregraph/run"
)

func workflowFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "workflow",
		Aliases:  []string{"w"},
		Usage:    "Workflow document (.yaml, .yml or .json)",
		Required: true,
	}
}

func storeFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "store",
		Usage:   "SQLite output cache; overrides the settings file",
		Sources: cli.EnvVars("WIREGRAPH_STORE"),
	}
}

// withApp wraps a subcommand action with settings, logging and telemetry
// setup and teardown.
func withApp(fn func(ctx context.Context, cmd *cli.Command, a *app) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		a, err := setup(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.close(context.WithoutCancel(ctx))
		return fn(ctx, cmd, a)
	}
}

func newValidateCommand() *cli.Command {
	return &cli.Command{
		Name:   "validate",
		Usage:  "Check a workflow's structure and every node's config",
		Flags:  []cli.Flag{workflowFlag()},
		Action: withApp(validateAction),
	}
}

func validateAction(_ context.Context, cmd *cli.Command, a *app) error {
	wf, err := wiregraph.LoadWorkflow(cmd.String("workflow"))
	if err != nil {
		return err
	}

	scope := wiregraph.WithCrossScope(a.settings.Connect.CrossScope)
	errs := []error{wiregraph.ValidateGraph(wf.Graph(), a.registry, scope)}
	for _, n := range wf.Nodes {
		ts, err := a.registry.Lookup(n.Type)
		if err != nil {
			// Unknown types are already reported by ValidateGraph.
			continue
		}
		if err := ts.ValidateConfig(n.Config); err != nil {
			errs = append(errs, fmt.Errorf("node %s: %w", n.ID, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	_, err = fmt.Fprintf(a.out, "%s: %d nodes, %d edges ok\n", wf.ID, len(wf.Nodes), len(wf.Edges))
	return err
}

func newPortsCommand() *cli.Command {
	return &cli.Command{
		Name:  "ports",
		Usage: "Print a node's derived ports",
		Flags: []cli.Flag{
			workflowFlag(),
			&cli.StringFlag{Name: "node", Aliases: []string{"n"}, Usage: "Node id", Required: true},
			&cli.StringFlag{Name: "pending-source", Usage: "Source node of an uncommitted connection"},
			&cli.StringFlag{Name: "pending-handle", Usage: "Source handle of the uncommitted connection"},
		},
		Action: withApp(portsAction),
	}
}

func portsAction(_ context.Context, cmd *cli.Command, a *app) error {
	wf, err := wiregraph.LoadWorkflow(cmd.String("workflow"))
	if err != nil {
		return err
	}

	nodeID := cmd.String("node")
	var pending *wiregraph.Connection
	if src := cmd.String("pending-source"); src != "" {
		pending = &wiregraph.Connection{Source: src, SourceHandle: cmd.String("pending-handle"), Target: nodeID}
	}

	ports, err := a.editor(wf).Ports(nodeID, pending)
	if err != nil {
		return err
	}
	return a.printJSON(ports)
}

func connectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "source", Usage: "Source node id", Required: true},
		&cli.StringFlag{Name: "source-handle", Usage: "Source output port"},
		&cli.StringFlag{Name: "target", Usage: "Target node id", Required: true},
		&cli.StringFlag{Name: "target-handle", Usage: "Target input port"},
	}
}

func newConnectCommand() *cli.Command {
	return &cli.Command{
		Name:  "connect",
		Usage: "Check a connection and optionally add it to the workflow",
		Flags: append([]cli.Flag{
			workflowFlag(),
			&cli.BoolFlag{Name: "write", Usage: "Add the edge and save the workflow"},
		}, connectionFlags()...),
		Action: withApp(connectAction),
	}
}

func connectAction(ctx context.Context, cmd *cli.Command, a *app) error {
	path := cmd.String("workflow")
	wf, err := wiregraph.LoadWorkflow(path)
	if err != nil {
		return err
	}

	c := wiregraph.Connection{
		Source:       cmd.String("source"),
		SourceHandle: cmd.String("source-handle"),
		Target:       cmd.String("target"),
		TargetHandle: cmd.String("target-handle"),
	}
	e := a.editor(wf)

	if !cmd.Bool("write") {
		if err := e.CheckConnection(ctx, c); err != nil {
			return err
		}
		_, err := fmt.Fprintln(a.out, "ok")
		return err
	}

	edge, err := e.Connect(ctx, c)
	if err != nil {
		return err
	}
	if err := saveGraph(path, wf, e.Snapshot()); err != nil {
		return err
	}
	return a.printJSON(edge)
}

func newLayoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "layout",
		Usage: "Lay out a workflow and save the positions",
		Flags: []cli.Flag{
			workflowFlag(),
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file; defaults to rewriting the workflow"},
			&cli.StringFlag{Name: "direction", Usage: "top_to_bottom or left_to_right; overrides the settings file"},
		},
		Action: withApp(layoutAction),
	}
}

func layoutAction(ctx context.Context, cmd *cli.Command, a *app) error {
	path := cmd.String("workflow")
	wf, err := wiregraph.LoadWorkflow(path)
	if err != nil {
		return err
	}
	if d := cmd.String("direction"); d != "" {
		a.settings.Layout.Direction = d
	}

	e := a.editor(wf)
	res := e.AutoLayout(ctx)

	out := cmd.String("out")
	if out == "" {
		out = path
	}
	if err := saveGraph(out, wf, e.Snapshot()); err != nil {
		return err
	}
	a.logger.Info("layout saved", "path", out, "nodes", len(res.Positions))
	return nil
}

func newPlanCommand() *cli.Command {
	return &cli.Command{
		Name:  "plan",
		Usage: "Print the partial-run request for a node",
		Flags: []cli.Flag{
			workflowFlag(),
			storeFlag(),
			&cli.StringFlag{Name: "node", Aliases: []string{"n"}, Usage: "Target node id", Required: true},
			&cli.BoolFlag{Name: "rerun", Usage: "Re-run every predecessor instead of using cached outputs"},
		},
		Action: withApp(planAction),
	}
}

func planAction(ctx context.Context, cmd *cli.Command, a *app) error {
	wf, err := wiregraph.LoadWorkflow(cmd.String("workflow"))
	if err != nil {
		return err
	}
	store, err := a.store(cmd.String("store"))
	if err != nil {
		return err
	}
	defer store.Close()

	wfID := a.workflowID(wf)
	known, err := store.Known(wfID)
	if err != nil {
		return fmt.Errorf("load cached outputs: %w", err)
	}

	e := a.editor(wf)
	maps.Copy(known, e.KnownOutputs())

	req, err := e.BuildRunRequest(ctx, wfID, cmd.String("node"), known, cmd.Bool("rerun"))
	if err != nil {
		return err
	}
	return a.printJSON(req)
}

func newMergeCommand() *cli.Command {
	return &cli.Command{
		Name:  "merge",
		Usage: "Apply a saved backend response to a workflow",
		Flags: []cli.Flag{
			workflowFlag(),
			storeFlag(),
			&cli.StringFlag{Name: "node", Aliases: []string{"n"}, Usage: "Target node id of the run", Required: true},
			&cli.StringFlag{Name: "response", Usage: "Run response body"},
			&cli.StringFlag{Name: "status", Usage: "Status report body of an asynchronous run"},
		},
		Action: withApp(mergeAction),
	}
}

func mergeAction(_ context.Context, cmd *cli.Command, a *app) error {
	path := cmd.String("workflow")
	wf, err := wiregraph.LoadWorkflow(path)
	if err != nil {
		return err
	}
	respPath, statusPath := cmd.String("response"), cmd.String("status")
	if (respPath == "") == (statusPath == "") {
		return errors.New("exactly one of --response or --status is required")
	}

	store, err := a.store(cmd.String("store"))
	if err != nil {
		return err
	}
	defer store.Close()

	e := a.editor(wf)
	nodeID := cmd.String("node")

	var merged []string
	if respPath != "" {
		merged, err = mergeResponse(e, nodeID, respPath)
	} else {
		merged, err = mergeStatus(e, statusPath)
	}
	if err != nil {
		return err
	}

	wfID := a.workflowID(wf)
	for _, id := range merged {
		n, ok := e.Node(id)
		if !ok || n.Output == nil {
			continue
		}
		if err := store.Save(wfID, id, n.Output); err != nil {
			a.logger.Warn("failed to cache output", "node_id", id, "error", err)
		}
	}

	if err := saveGraph(path, wf, e.Snapshot()); err != nil {
		return err
	}
	a.logger.Info("response merged", "node_id", nodeID, "nodes", len(merged))
	return nil
}

func mergeResponse(e *wiregraph.Editor, nodeID, path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	resp := run.DecodeResponse(data)
	switch {
	case resp.Failed():
		var re *wiregraph.RunError
		if errors.As(resp.Err(nodeID), &re) {
			if err := e.FailRun(nodeID, re.Message); err != nil {
				return nil, err
			}
		}
		return nil, nil
	case resp.Pending():
		e.Logger().Info("run still in progress; merge its status report", "run_id", resp.RunID)
		return nil, nil
	}

	skipped := e.MergeOutputs(resp.Outputs)
	merged := slices.DeleteFunc(slices.Sorted(maps.Keys(resp.Outputs)), func(id string) bool {
		return slices.Contains(skipped, id)
	})
	return merged, nil
}

func mergeStatus(e *wiregraph.Editor, path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}
	st, err := run.DecodeStatus(data)
	if err != nil {
		return nil, err
	}

	var merged []string
	for _, id := range slices.Sorted(maps.Keys(st.Outputs)) {
		ns := st.Outputs[id]
		status, err := wiregraph.ParseStatus(ns.Status)
		if err != nil {
			e.Logger().Warn("ignoring unknown status", "node_id", id, "status", ns.Status)
			continue
		}
		if err := e.ApplyNodeStatus(id, status, ns.Output); err != nil {
			e.Logger().Debug("status not applied", "node_id", id, "error", err)
			continue
		}
		if status == wiregraph.StatusCompleted {
			merged = append(merged, id)
		}
	}
	return merged, nil
}

func newOutputsCommand() *cli.Command {
	return &cli.Command{
		Name:  "outputs",
		Usage: "List or clear a workflow's cached outputs",
		Flags: []cli.Flag{
			storeFlag(),
			&cli.StringFlag{Name: "workflow-id", Usage: "Workflow id; overrides the settings file"},
			&cli.BoolFlag{Name: "clear", Usage: "Delete every cached output of the workflow"},
		},
		Action: withApp(outputsAction),
	}
}

func outputsAction(_ context.Context, cmd *cli.Command, a *app) error {
	wfID := cmd.String("workflow-id")
	if wfID == "" {
		wfID = a.settings.Runs.WorkflowID
	}
	if wfID == "" {
		return errors.New("--workflow-id is required when the settings file names no workflow")
	}

	store, err := a.store(cmd.String("store"))
	if err != nil {
		return err
	}
	defer store.Close()

	if cmd.Bool("clear") {
		if err := store.DeleteWorkflow(wfID); err != nil {
			return err
		}
		a.logger.Info("cached outputs cleared", "workflow_id", wfID)
		return nil
	}

	infos, err := store.List(wfID)
	if err != nil {
		return err
	}
	return a.printJSON(infos)
}
