package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/lngraph/internal/model"
)

var snapshotCmd = &cobra.Command{
	Use:     "snapshot",
	Short:   "Manage snapshots stored on the server",
	GroupID: "remote",
}

var snapshotCreateCmd = &cobra.Command{
	Use:   "create <src>",
	Short: "Upload a graph document as a new snapshot",
	Long: `Upload a graph document as a new snapshot.

The document is read locally and uploaded. With --remote the server fetches
<src> itself, which must then be an http(s):// or s3:// URI and the server
must run with --allow-remote-sources.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		remote, _ := cmd.Flags().GetBool("remote")
		c := newClient()
		defer c.Close()

		var (
			snap *model.Snapshot
			err  error
		)
		if remote {
			snap, err = c.CreateSnapshotFromSource(cmd.Context(), args[0])
		} else {
			src, oerr := openSource(cmd.Context(), args[0])
			if oerr != nil {
				return oerr
			}
			data, ferr := src.Fetch(cmd.Context())
			if ferr != nil {
				return ferr
			}
			snap, err = c.CreateSnapshot(cmd.Context(), data)
		}
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(os.Stdout, snap)
		}
		fmt.Printf("Created snapshot %s\n", snap.ID)
		return nil
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		c := newClient()
		defer c.Close()

		snaps, err := c.ListSnapshots(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(os.Stdout, snaps)
		}
		printSnapshotList(os.Stdout, snaps)
		return nil
	},
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a snapshot's record and statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		defer c.Close()

		snap, err := c.GetSnapshot(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(os.Stdout, snap)
		}
		printSnapshot(os.Stdout, snap)
		return nil
	},
}

var snapshotGraphCmd = &cobra.Command{
	Use:   "graph <id>",
	Short: "Print the stored graph of a snapshot as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		defer c.Close()

		g, err := c.GetSnapshotGraph(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		data, err := model.Encode(g)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	},
}

var snapshotDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		defer c.Close()

		if err := c.DeleteSnapshot(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted snapshot %s\n", args[0])
		return nil
	},
}

func init() {
	snapshotCreateCmd.Flags().Bool("remote", false, "have the server fetch the source")
	snapshotListCmd.Flags().Int("limit", 0, "maximum number of snapshots (0 = server default)")

	snapshotCmd.AddCommand(snapshotCreateCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotShowCmd)
	snapshotCmd.AddCommand(snapshotGraphCmd)
	snapshotCmd.AddCommand(snapshotDeleteCmd)
}
