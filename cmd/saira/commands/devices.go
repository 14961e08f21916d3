package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var devicesJSON bool

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List input and output devices",
	Long: `List every input and output device of the audio host.

The ID column is what --device and SAIRA_DEVICE_ID expect. A '*' marks the
system default of each direction. An empty list means the host could not be
enumerated.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		devices := engine.ListDevices()
		if devicesJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(devices)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DEFAULT\tDIRECTION\tID\tNAME")
		for _, d := range devices {
			mark := ""
			if d.IsSystemDefault {
				mark = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", mark, d.Direction, d.ID, d.DisplayName)
		}
		return w.Flush()
	},
}

func init() {
	devicesCmd.Flags().BoolVar(&devicesJSON, "json", false, "print JSON")
}
