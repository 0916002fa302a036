package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func capabilitiesCmd(resolve func(*cobra.Command) (settings, error)) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "capabilities",
		Short: "Show the bridge's device capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := resolve(cmd)
			if err != nil {
				return err
			}

			client, err := newClient(cmd, s)
			if err != nil {
				return err
			}
			defer func() { _ = client.Disconnect() }()

			caps, err := client.GetCapabilities(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				return printJSONValue(caps)
			}

			fmt.Printf("vendor: %s\n", caps.Vendor)
			fmt.Printf("model:  %s\n", caps.Model)
			if caps.Barcode != nil && caps.Barcode.Supported {
				fmt.Printf("barcode: %s\n", strings.Join(caps.Barcode.Symbologies, ", "))
			}
			if caps.Rfid != nil && caps.Rfid.Supported {
				fmt.Printf("rfid: power %.1f..%.1f dBm\n", caps.Rfid.PowerMin, caps.Rfid.PowerMax)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the capabilities payload as JSON")

	return cmd
}
