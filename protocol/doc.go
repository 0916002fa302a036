// Package protocol defines the JSON text frames exchanged with the scanner
// bridge service, the correlation identifier generator, and the typed hardware
// event payloads.
//
// Every frame is one JSON object carrying a "type" discriminator. Frames sent
// to the bridge are commands, queries and keepalive pings; frames received
// from the bridge are hardware events (scan, rfid), capability pushes,
// correlated query responses, server errors and keepalive pongs.
//
// The package does not interpret hardware payloads beyond the discriminator
// and timestamp normalization; unknown fields survive round trips through the
// preserved raw frame.
package protocol
