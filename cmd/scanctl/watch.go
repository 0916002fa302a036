package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/scanbridge/go-scanbridge/protocol"
	"github.com/scanbridge/go-scanbridge/scanner"
	"github.com/scanbridge/go-scanbridge/transport"
)

func watchCmd(resolve func(*cobra.Command) (settings, error)) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream scanner events to stdout",
		Long: `Connect to the bridge and print every barcode and RFID observation as it
arrives, together with connection lifecycle changes. Runs until interrupted.

Examples:
  scanctl watch
  scanctl watch --endpoint ws://192.168.1.50:8585
  scanctl watch --metrics-addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := resolve(cmd)
			if err != nil {
				return err
			}

			return runWatch(cmd.Context(), s, metricsAddr)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	return cmd
}

func runWatch(ctx context.Context, s settings, metricsAddr string) error {
	client, err := scanner.New(s.clientOptions()...)
	if err != nil {
		return err
	}
	defer func() { _ = client.Disconnect() }()

	client.OnScan(func(ev *protocol.ScanEvent) {
		fmt.Printf("%s  scan  %s  %s\n", ev.Timestamp.Format(time.RFC3339), ev.Symbology, ev.Data)
	})
	client.OnRfid(func(ev *protocol.RfidEvent) {
		fmt.Printf("%s  rfid  %s  rssi=%.1f\n", ev.Timestamp.Format(time.RFC3339), ev.EPC, ev.RSSI)
	})
	client.OnCapabilities(func(caps *protocol.Capabilities) {
		fmt.Printf("device: %s %s\n", caps.Vendor, caps.Model)
	})
	client.OnConnect(func() {
		fmt.Println("connected")
	})
	client.OnDisconnect(func() {
		fmt.Println("disconnected")
	})
	client.OnReconnecting(func(attempt uint32, delay time.Duration) {
		fmt.Printf("reconnecting: attempt %d in %s\n", attempt, delay)
	})
	client.OnError(func(err error) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	})

	var metricsSrv *http.Server
	if metricsAddr != "" {
		metricsSrv = startMetricsServer(metricsAddr, client)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect to %s: %w", s.Endpoint, err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	return nil
}

// startMetricsServer serves /metrics and /healthz on addr.
func startMetricsServer(addr string, client *scanner.Client) *http.Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(transport.NewCollector(client.Conn()))

	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: addr, Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
		}
	}()

	return srv
}
