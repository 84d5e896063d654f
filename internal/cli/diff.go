package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"contentset"
)

var diffCmd = &cobra.Command{
	Use:   "diff <fileset-dir> <other-fileset-dir>",
	Short: "Show added, removed, and changed paths between two filesets",
	Args:  cobra.ExactArgs(2),
	RunE:  runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	beforeDir, afterDir := args[0], args[1]

	beforeEnv, err := openEnvironment(beforeDir)
	if err != nil {
		return err
	}
	defer beforeEnv.Close()

	before, err := loadFileset(beforeEnv, beforeDir)
	if err != nil {
		return err
	}

	afterEnv, err := openEnvironment(afterDir)
	if err != nil {
		return err
	}
	defer afterEnv.Close()

	after, err := loadFileset(afterEnv, afterDir)
	if err != nil {
		return err
	}

	result := contentset.Diff(before, after)

	for _, p := range result.Added.Ls() {
		fmt.Printf("+ %s\n", p)
	}
	for _, p := range result.Removed.Ls() {
		fmt.Printf("- %s\n", p)
	}
	for _, p := range result.Changed.Ls() {
		fmt.Printf("~ %s\n", p)
	}
	return nil
}
