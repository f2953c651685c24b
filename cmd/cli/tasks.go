package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/geoscraper/tile-service/internal/tasks"
	"github.com/geoscraper/tile-service/internal/types"
)

var showJSON bool

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Inspect tasks",
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks, newest first",
	Args:  cobra.NoArgs,
	RunE:  runTasksList,
}

var tasksShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show one task and the operations it allows",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksShow,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.AddCommand(tasksListCmd, tasksShowCmd)

	tasksShowCmd.Flags().BoolVar(&showJSON, "json", false, "Print the task as JSON")
}

func runTasksList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	list, err := a.Store.ListTasks(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tMAP TYPE\tSTATUS\tPROGRESS\tTILES\tVERIFICATION\tMISSING")
	for _, t := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d%%\t%d/%d\t%s\t%d\n",
			t.ID, t.Name, t.MapType, t.Status, t.Progress, t.CompletedTiles, t.TotalTiles, t.VerificationStatus, t.MissingTiles)
	}
	return w.Flush()
}

func runTasksShow(cmd *cobra.Command, args []string) error {
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	t, err := a.Machine.Get(ctx, id)
	if err != nil {
		return err
	}

	if showJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	}
	printTask(cmd.OutOrStdout(), t)
	return nil
}

func printTask(out io.Writer, t *types.Task) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%d\n", t.ID)
	fmt.Fprintf(w, "Name:\t%s\n", t.Name)
	if t.Description != "" {
		fmt.Fprintf(w, "Description:\t%s\n", t.Description)
	}
	fmt.Fprintf(w, "Map type:\t%s\n", t.MapType)
	fmt.Fprintf(w, "Bounds:\t%.5f,%.5f - %.5f,%.5f\n", t.Bounds.SW.Lat, t.Bounds.SW.Lng, t.Bounds.NE.Lat, t.Bounds.NE.Lng)
	fmt.Fprintf(w, "Zoom levels:\t%v\n", t.ZoomLevels)
	fmt.Fprintf(w, "Concurrency:\t%d (delay %.2fs)\n", t.Concurrency, t.DownloadDelay)
	fmt.Fprintf(w, "Status:\t%s %d%% (%d/%d tiles)\n", t.Status, t.Progress, t.CompletedTiles, t.TotalTiles)
	fmt.Fprintf(w, "Verification:\t%s %d%% (%d verified, %d missing)\n",
		t.VerificationStatus, t.VerificationProgress, t.VerifiedTiles, t.MissingTiles)
	fmt.Fprintf(w, "Allowed ops:\t%v\n", tasks.AvailableOps(t))
	fmt.Fprintf(w, "Updated:\t%s\n", t.UpdatedAt.Format("2006-01-02 15:04:05"))
	w.Flush()
}

func parseTaskID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}
