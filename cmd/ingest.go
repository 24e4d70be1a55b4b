package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var flagIngestMeta []string

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Ingest a note from a file or stdin",
	Long: `Ingest a note into the knowledge base.

The note text is read from the given file, or from stdin when no file
is provided (or when the file is "-"). Metadata key=value pairs are
attached to every chunk and can be used as search filters.`,
	Example: `  recall ingest meeting-notes.md --meta subject=planning
  cat todo.txt | recall ingest --meta subject=todo`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd.Context(), args)
	},
}

func init() {
	ingestCmd.Flags().StringArrayVar(&flagIngestMeta, "meta", nil, "metadata as key=value (repeatable)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(ctx context.Context, args []string) error {
	text, err := readNoteText(args)
	if err != nil {
		return err
	}

	metadata, err := parseKeyValues(flagIngestMeta)
	if err != nil {
		return err
	}

	logger := newLogger()
	a, _, err := setupApp(ctx, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	result, err := a.Service.Ingest(ctx, text, metadata)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	fmt.Printf("Note %s ingested\n", result.NoteID)
	fmt.Printf("  Chunks: %d/%d stored (%.0f%%)\n",
		result.ChunksCreated, result.TotalChunks, result.SuccessRate)
	fmt.Printf("  Characters: %d\n", result.TotalCharacters)
	if result.ChunksFailed > 0 {
		fmt.Printf("  Failed chunks: %d\n", result.ChunksFailed)
	}
	return nil
}

func readNoteText(args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", args[0], err)
	}
	return string(data), nil
}
