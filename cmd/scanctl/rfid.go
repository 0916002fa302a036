package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func rfidCmd(resolve func(*cobra.Command) (settings, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rfid",
		Short: "Control the bridge's RFID inventory",
	}

	cmd.AddCommand(
		rfidStartCmd(resolve),
		rfidStopCmd(resolve),
		rfidTagsCmd(resolve),
	)

	return cmd
}

func rfidStartCmd(resolve func(*cobra.Command) (settings, error)) *cobra.Command {
	var options string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a continuous RFID inventory round",
		Long: `Send a start_rfid_inventory command. --options carries a device-specific
JSON object forwarded to the bridge verbatim.

Examples:
  scanctl rfid start
  scanctl rfid start --options '{"power":27.5}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := resolve(cmd)
			if err != nil {
				return err
			}

			var raw json.RawMessage
			if options != "" {
				if !json.Valid([]byte(options)) {
					return fmt.Errorf("--options is not valid JSON: %s", options)
				}
				raw = json.RawMessage(options)
			}

			client, err := newClient(cmd, s)
			if err != nil {
				return err
			}
			defer func() { _ = client.Disconnect() }()

			if err := client.StartRfidInventory(raw); err != nil {
				return err
			}
			fmt.Println("rfid inventory started")

			return nil
		},
	}

	cmd.Flags().StringVarP(&options, "options", "o", "", "Device-specific inventory options as a JSON object")

	return cmd
}

func rfidStopCmd(resolve func(*cobra.Command) (settings, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running RFID inventory round",
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

			if err := client.StopRfidInventory(); err != nil {
				return err
			}
			fmt.Println("rfid inventory stopped")

			return nil
		},
	}
}

func rfidTagsCmd(resolve func(*cobra.Command) (settings, error)) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List the tags observed by the running inventory",
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

			tags, err := client.GetRfidTags(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				return printJSONValue(tags)
			}

			if len(tags) == 0 {
				fmt.Println("no tags observed")
				return nil
			}
			for _, tag := range tags {
				line := fmt.Sprintf("%s  rssi=%.1f  count=%d", tag.EPC, tag.RSSI, tag.Count)
				if !tag.LastSeen.IsZero() {
					line += "  last_seen=" + tag.LastSeen.Format(time.RFC3339)
				}
				fmt.Println(line)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the tag list as JSON")

	return cmd
}
