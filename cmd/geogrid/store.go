package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kass/go-geogrid/pkg/geogrid"
	"github.com/kass/go-geogrid/pkg/store"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Save and load grid snapshots in SQLite or PostGIS",
	Long: `Snapshots live in the database configured by store.driver and store.dsn
(GEOGRID_STORE_DRIVER / GEOGRID_STORE_DSN).`,
}

var storeSaveCmd = &cobra.Command{
	Use:   "save <grid.gob>",
	Short: "Save a grid file as a new snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runStoreSave,
}

var storeLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Write a stored snapshot to a grid file",
	Args:  cobra.NoArgs,
	RunE:  runStoreLoad,
}

var storeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots",
	Args:  cobra.NoArgs,
	RunE:  runStoreList,
}

var (
	snapshotName string
	snapshotID   string
	storeOut     string
)

func init() {
	storeSaveCmd.Flags().StringVarP(&snapshotName, "name", "n", "", "Snapshot name")
	storeSaveCmd.MarkFlagRequired("name")

	storeLoadCmd.Flags().StringVar(&snapshotID, "id", "", "Snapshot ID")
	storeLoadCmd.Flags().StringVarP(&snapshotName, "name", "n", "", "Latest snapshot with this name")
	storeLoadCmd.Flags().StringVarP(&storeOut, "out", "o", "grid.gob", "Output grid file")
	storeLoadCmd.MarkFlagsMutuallyExclusive("id", "name")
	storeLoadCmd.MarkFlagsOneRequired("id", "name")

	storeCmd.AddCommand(storeSaveCmd, storeLoadCmd, storeListCmd)
}

func openStore(ctx context.Context) (*store.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	s, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, err
	}
	if err := s.InitSchema(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func runStoreSave(cmd *cobra.Command, args []string) error {
	g, err := loadGrid(args[0])
	if err != nil {
		return err
	}

	s, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := s.SaveGrid(cmd.Context(), snapshotName, g)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved snapshot %s (%d tiles)\n", id, g.Len())
	return nil
}

func runStoreLoad(cmd *cobra.Command, args []string) error {
	s, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	var g *geogrid.Grid
	if snapshotID != "" {
		id, err := uuid.Parse(snapshotID)
		if err != nil {
			return fmt.Errorf("invalid snapshot id: %w", err)
		}
		if g, err = s.LoadGrid(cmd.Context(), id); err != nil {
			return err
		}
	} else {
		if _, g, err = s.LatestGrid(cmd.Context(), snapshotName); err != nil {
			return err
		}
	}
	return saveGrid(cmd, g, storeOut)
}

func runStoreList(cmd *cobra.Command, args []string) error {
	s, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	snapshots, err := s.ListSnapshots(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCREATED\tTILES")
	for _, snap := range snapshots {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", snap.ID, snap.Name, snap.CreatedAt.Format(time.RFC3339), snap.TileCount)
	}
	return w.Flush()
}
