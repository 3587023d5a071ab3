// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"io"

	"shoutnode/internal/audio"
	"shoutnode/internal/tui"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var interactive bool

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if interactive {
				return tui.StartDeviceListUI(audio.GetDevices)
			}
			devices, err := audio.GetDevices()
			if err != nil {
				return err
			}
			return printDevices(cmd.OutOrStdout(), devices)
		},
	}
	listCmd.Flags().BoolVarP(&interactive, "tui", "t", false,
		"Browse devices interactively and print a config snippet")
	return listCmd
}

func printDevices(w io.Writer, devices []audio.Device) error {
	if _, err := fmt.Fprintf(w, "\nAvailable Audio Devices\n\n"); err != nil {
		return err
	}
	for _, d := range devices {
		if _, err := fmt.Fprintln(w, tui.FormatDevice(d)); err != nil {
			return err
		}
	}
	return nil
}
