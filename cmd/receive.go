package cmd

import (
	"github.com/spf13/cobra"

	"sf/internal/app"
	"sf/internal/logging"
	"sf/internal/ui"
)

type ReceiveFlags struct {
	StripPrefix bool
	Dir         string
	Bind        string
}

var receiveFlags ReceiveFlags

// receiveCmd represents the receive command
var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Wait for a sender and save its files",
	Long: `Receive files from a sender. This will:

1. Listen on a local interface address
2. Broadcast that address on the subnet until a sender connects
3. Save every announced file below the destination directory

With --strip-prefix the directory prefix shared by all incoming paths is
dropped, so "send auto ~/photos" lands as individual files instead of the
whole sender-side path.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReceiverApp(&receiveFlags)
	},
}

func init() {
	rootCmd.AddCommand(receiveCmd)

	receiveCmd.Flags().BoolVarP(&receiveFlags.StripPrefix, "strip-prefix", "s", false, "drop the directory prefix shared by all received paths")
	receiveCmd.Flags().StringVarP(&receiveFlags.Dir, "dir", "d", ".", "destination directory")
	receiveCmd.Flags().StringVarP(&receiveFlags.Bind, "bind", "b", "", "local IP address to listen on (default: first IPv4 interface)")
}

// runReceiverApp creates and runs the receiver application
func runReceiverApp(flags *ReceiveFlags) error {
	ctx, cancel := createContext()
	defer cancel()

	logger := logging.L()
	logConfigSource(logger)

	opts := &app.ReceiverOptions{
		Dir:         flags.Dir,
		Bind:        flags.Bind,
		StripPrefix: flags.StripPrefix,
	}

	receiverApp := app.NewReceiverApp(cfg, ui.NewConsoleUI("Receiving"), logger)
	return receiverApp.Run(ctx, opts)
}
