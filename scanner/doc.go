// Package scanner provides the high-level client for the scanner bridge
// service: typed commands and queries, a capabilities cache, and republication
// of hardware events as typed notifications.
//
// A Client owns one transport connection. With auto-connect enabled (the
// default) the initial open is scheduled asynchronously during construction,
// so callers can attach subscribers before the first frame arrives:
//
//	client, err := scanner.New()
//	if err != nil { ... }
//	client.OnScan(func(ev *protocol.ScanEvent) {
//		fmt.Println(ev.Data, ev.Symbology)
//	})
//
// Processes with several independent consumers of one physical device can use
// Shared to hold a reference-counted process-wide instance.
package scanner
