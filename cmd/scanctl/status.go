package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func statusCmd(resolve func(*cobra.Command) (settings, error)) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the bridge's device status",
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

			status, err := client.GetStatus(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(status.Raw)
			}

			fmt.Printf("connected: %v\n", status.Connected)
			if status.Device != "" {
				fmt.Printf("device:    %s\n", status.Device)
			}
			if status.Firmware != "" {
				fmt.Printf("firmware:  %s\n", status.Firmware)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw status payload as JSON")

	return cmd
}

// printJSON re-indents a raw payload onto stdout.
func printJSON(raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}

	return printJSONValue(v)
}

func printJSONValue(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
