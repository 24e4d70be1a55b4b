package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var (
	flagNotesLimit int
	flagResetForce bool
)

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Manage stored notes",
}

var notesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored notes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runNotesList(cmd.Context())
	},
}

var notesDeleteCmd = &cobra.Command{
	Use:   "delete <note-id>",
	Short: "Delete a note and all its chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNotesDelete(cmd.Context(), args[0])
	},
}

var notesStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show collection statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runNotesStats(cmd.Context())
	},
}

var notesResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every stored chunk",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runNotesReset(cmd.Context())
	},
}

func init() {
	notesListCmd.Flags().IntVar(&flagNotesLimit, "limit", 20, "maximum notes to list")
	notesResetCmd.Flags().BoolVar(&flagResetForce, "force", false, "skip confirmation")

	notesCmd.AddCommand(notesListCmd, notesDeleteCmd, notesStatsCmd, notesResetCmd)
	rootCmd.AddCommand(notesCmd)
}

func runNotesList(ctx context.Context) error {
	logger := newLogger()
	a, _, err := setupApp(ctx, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	notes, err := a.Service.List(ctx, flagNotesLimit)
	if err != nil {
		return fmt.Errorf("listing notes: %w", err)
	}

	if len(notes) == 0 {
		fmt.Println("No notes stored.")
		return nil
	}

	for _, n := range notes {
		fmt.Printf("%s  %s\n", n.NoteID, n.CreatedAt.Format("2006-01-02 15:04"))
		if len(n.Metadata) > 0 {
			keys := make([]string, 0, len(n.Metadata))
			for k := range n.Metadata {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("    %s: %s\n", k, n.Metadata[k])
			}
		}
	}
	return nil
}

func runNotesDelete(ctx context.Context, noteID string) error {
	logger := newLogger()
	a, _, err := setupApp(ctx, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	result, err := a.Service.Delete(ctx, noteID)
	if err != nil {
		return fmt.Errorf("deleting note: %w", err)
	}

	if !result.Found {
		fmt.Printf("Note %s not found.\n", noteID)
		return nil
	}

	fmt.Printf("Deleted note %s (%d chunks).\n", noteID, result.ChunksDeleted)
	return nil
}

func runNotesStats(ctx context.Context) error {
	logger := newLogger()
	a, _, err := setupApp(ctx, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	stats, err := a.Service.Stats(ctx)
	if err != nil {
		return fmt.Errorf("collecting stats: %w", err)
	}

	fmt.Printf("Collection: %s\n", stats.CollectionName)
	fmt.Printf("Chunks:     %d\n", stats.TotalChunks)
	if stats.EmbeddingDimension > 0 {
		fmt.Printf("Dimension:  %d\n", stats.EmbeddingDimension)
	}
	return nil
}

func runNotesReset(ctx context.Context) error {
	if !flagResetForce {
		return fmt.Errorf("reset deletes every stored chunk; rerun with --force to confirm")
	}

	logger := newLogger()
	a, _, err := setupApp(ctx, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.Service.Reset(ctx); err != nil {
		return fmt.Errorf("resetting store: %w", err)
	}

	fmt.Println("Knowledge base reset.")
	return nil
}
