package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/smazurov/camdisplay/internal/camera"
	"github.com/spf13/cobra"
)

// CreateCamerasCmd creates the cameras command.
func CreateCamerasCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "cameras",
		Short: "List V4L2 capture devices",
		Long:  `Lists V4L2 capture devices with their pixel formats and whether they can feed the display directly in RGB565.`,
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			devices, err := camera.List()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to list cameras: %v\n", err)
				os.Exit(1)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(devices); err != nil {
					fmt.Fprintf(os.Stderr, "Failed to encode devices: %v\n", err)
					os.Exit(1)
				}
				return
			}

			if len(devices) == 0 {
				fmt.Println("No capture devices found")
				return
			}
			for _, d := range devices {
				marker := " "
				if d.RGB565 {
					marker = "*"
				}
				fmt.Printf("%s %-14s %-24s %-12s %s\n", marker, d.Path, d.Card, d.Driver, strings.Join(d.Formats, ","))
			}
			fmt.Println("\n* delivers RGB565")
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print devices as JSON")
	return cmd
}
