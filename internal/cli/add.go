package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var addPipelinePath string

var addCmd = &cobra.Command{
	Use:   "add <src-dir> <fileset-dir>",
	Short: "Ingest a directory into a fileset descriptor",
	Args:  cobra.ExactArgs(2),
	RunE:  runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addPipelinePath, "pipeline", "", "path to a YAML pipeline manifest (include/exclude/meta)")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	srcDir, filesetDir := args[0], args[1]

	opts, err := loadPipeline(addPipelinePath)
	if err != nil {
		return fmt.Errorf("loading pipeline manifest: %w", err)
	}

	env, err := openEnvironment(filesetDir)
	if err != nil {
		return err
	}
	defer env.Close()

	// The loaded and derived filesets are deliberately never Close()d here:
	// this process exits right after saving the descriptor, and Close would
	// release — and at refcount zero, unlink — blobs the next invocation
	// still needs. Refcounts are an in-process bookkeeping device; the CLI's
	// durability unit is the descriptor plus the blob directory on disk.
	fs, err := loadFileset(env, filesetDir)
	if err != nil {
		return err
	}

	next, err := fs.AddDirectory(srcDir, opts)
	if err != nil {
		return fmt.Errorf("adding %q: %w", srcDir, err)
	}

	if err := saveFileset(next, filesetDir); err != nil {
		return fmt.Errorf("saving fileset descriptor: %w", err)
	}

	fmt.Printf("added %d entries to %s\n", next.Len(), filesetDir)
	return nil
}
