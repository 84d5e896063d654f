package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checksumTimestamps bool

var checksumCmd = &cobra.Command{
	Use:   "checksum <fileset-dir>",
	Short: "Print the fileset's content checksum",
	Args:  cobra.ExactArgs(1),
	RunE:  runChecksum,
}

func init() {
	checksumCmd.Flags().BoolVar(&checksumTimestamps, "timestamps", false, "include captured modification times in the checksum")
	rootCmd.AddCommand(checksumCmd)
}

func runChecksum(cmd *cobra.Command, args []string) error {
	filesetDir := args[0]

	env, err := openEnvironment(filesetDir)
	if err != nil {
		return err
	}
	defer env.Close()

	fs, err := loadFileset(env, filesetDir)
	if err != nil {
		return err
	}

	fmt.Println(fs.Checksum(checksumTimestamps))
	return nil
}
