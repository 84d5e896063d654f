package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"contentset"
)

var commitLockPath string

var commitCmd = &cobra.Command{
	Use:   "commit <fileset-dir> <target-dir>",
	Short: "Materialize a fileset onto disk via hard links",
	Args:  cobra.ExactArgs(2),
	RunE:  runCommit,
}

func init() {
	commitCmd.Flags().StringVar(&commitLockPath, "lock", "", "path to a cross-process lock file guarding the target directory")
	rootCmd.AddCommand(commitCmd)
}

func runCommit(cmd *cobra.Command, args []string) error {
	filesetDir, targetDir := args[0], args[1]

	env, err := openEnvironment(filesetDir)
	if err != nil {
		return err
	}
	defer env.Close()

	fs, err := loadFileset(env, filesetDir)
	if err != nil {
		return err
	}

	var commitOpts []contentset.CommitOption
	if commitLockPath != "" {
		commitOpts = append(commitOpts, contentset.WithProcessLock(commitLockPath))
	}

	committed, err := env.Commit(fs, targetDir, commitOpts...)
	if err != nil {
		return fmt.Errorf("committing to %q: %w", targetDir, err)
	}

	if committed.Len() != fs.Len() {
		if err := saveFileset(committed, filesetDir); err != nil {
			return fmt.Errorf("saving fileset descriptor after merge conflicts: %w", err)
		}
	}

	fmt.Printf("committed %d entries to %s\n", committed.Len(), targetDir)
	return nil
}
