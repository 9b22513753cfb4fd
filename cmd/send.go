package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sf/internal/app"
	"sf/internal/file"
	"sf/internal/logging"
	"sf/internal/ui"
)

type SendFlags struct {
	Excludes []string
}

var sendFlags SendFlags

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send <IP|auto> FILE...",
	Short: "Send files and directories to a receiver",
	Long: `Send files to a receiver. This will:

1. Expand every directory argument into the files below it
2. Connect to the given receiver IP, or with "auto" wait for the first
   receiver broadcasting on the local network
3. Send the file list followed by the contents of every file

Use --exclude to skip files or directories matching a glob pattern, by
path or by base name. The flag may be repeated.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSenderApp(args[0], args[1:], &sendFlags)
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringArrayVarP(&sendFlags.Excludes, "exclude", "x", nil, "glob pattern of files to skip (repeatable)")
	sendCmd.Flags().Duration("timeout", time.Minute, "how long auto mode waits for a receiver, 0 waits forever")

	viper.BindPFlag("discovery.timeout", sendCmd.Flags().Lookup("timeout"))
}

// runSenderApp creates and runs the sender application
func runSenderApp(target string, paths []string, flags *SendFlags) error {
	ctx, cancel := createContext()
	defer cancel()

	logger := logging.L()
	logConfigSource(logger)

	opts := &app.SenderOptions{
		Target:   target,
		Paths:    paths,
		Excludes: flags.Excludes,
	}

	senderApp := app.NewSenderApp(cfg, file.NewOsService(), ui.NewConsoleUI("Sending"), logger)
	return senderApp.Run(ctx, opts)
}
