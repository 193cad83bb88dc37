package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/alfredjeanlab/lngraph/internal/model"
	"github.com/alfredjeanlab/lngraph/internal/ui"
)

const timeFormat = "2006-01-02 15:04:05"

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printGraphSummary(w io.Writer, g *model.Graph) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PUBKEY\tALIAS\tADDRESSES\tCOLOR")
	width := ui.TerminalWidth(120)
	for _, n := range g.Nodes {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n",
			ui.Truncate(n.PubKey, width/3), ui.Truncate(n.Alias, 32), len(n.Addresses), n.Color)
	}
	tw.Flush()
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s nodes, %s channels\n",
		ui.RenderAccent(fmt.Sprint(len(g.Nodes))), ui.RenderAccent(fmt.Sprint(len(g.Edges))))
}

func printStats(w io.Writer, s *model.Stats) {
	fmt.Fprintf(w, "Nodes:          %d\n", s.NumNodes)
	fmt.Fprintf(w, "Channels:       %d\n", s.NumChannels)
	fmt.Fprintf(w, "Addresses:      %d\n", s.NumAddresses)
	fmt.Fprintf(w, "Policies:       %d (%d disabled)\n", s.NumPolicies, s.NumDisabled)
	fmt.Fprintf(w, "Total capacity: %d sat\n", s.TotalCapacity)
	if s.NumChannels > 0 {
		fmt.Fprintf(w, "Channel size:   min %d, median %d, max %d sat\n",
			s.MinChanSize, s.MedianChanSize, s.MaxChanSize)
	}
	if s.NumUnknownPeers > 0 {
		fmt.Fprintf(w, "Unknown peers:  %s\n", ui.RenderWarn(fmt.Sprint(s.NumUnknownPeers)))
	}
}

func printSnapshot(w io.Writer, snap *model.Snapshot) {
	fmt.Fprintf(w, "ID:             %s\n", ui.RenderAccent(snap.ID))
	fmt.Fprintf(w, "Source:         %s\n", snap.Source)
	fmt.Fprintf(w, "Created At:     %s\n", snap.CreatedAt.Format(timeFormat))
	printStats(w, &snap.Stats)
}

func printSnapshotList(w io.Writer, snaps []*model.Snapshot) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tNODES\tCHANNELS\tCAPACITY\tSOURCE")
	for _, s := range snaps {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
			s.ID,
			s.CreatedAt.Format(timeFormat),
			s.Stats.NumNodes,
			s.Stats.NumChannels,
			s.Stats.TotalCapacity,
			ui.Truncate(s.Source, 48),
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d snapshots\n", len(snaps))
}
