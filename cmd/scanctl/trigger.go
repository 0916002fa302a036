package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/scanbridge/go-scanbridge/protocol"
)

func triggerCmd(resolve func(*cobra.Command) (settings, error)) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Trigger a single barcode read",
		Long: `Send a trigger_scan command to the bridge. With --wait, block until the
resulting scan event arrives and print it.

Examples:
  scanctl trigger
  scanctl trigger --wait 5s`,
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

			var scans chan *protocol.ScanEvent
			if wait > 0 {
				scans = make(chan *protocol.ScanEvent, 1)
				client.OnScan(func(ev *protocol.ScanEvent) {
					select {
					case scans <- ev:
					default:
					}
				})
			}

			if err := client.TriggerScan(); err != nil {
				return err
			}
			if wait <= 0 {
				fmt.Println("scan triggered")
				return nil
			}

			select {
			case ev := <-scans:
				fmt.Printf("%s  %s  %s\n", ev.Timestamp.Format(time.RFC3339), ev.Symbology, ev.Data)
				return nil
			case <-time.After(wait):
				return fmt.Errorf("no scan event within %s", wait)
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			}
		},
	}

	cmd.Flags().DurationVarP(&wait, "wait", "w", 0, "Wait this long for the scan event (0 = fire and forget)")

	return cmd
}
