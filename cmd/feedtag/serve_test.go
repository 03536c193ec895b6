package main

import (
	"context"
	"fmt"
	"net"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// newServeCommand builds a detached serve command so tests do not share
// the root command's context.
func newServeCommand(t *testing.T, ctx context.Context, port int) *cobra.Command {
	t.Helper()
	cfg := strings.Replace(testConfig, "port: 8080", fmt.Sprintf("port: %d", port), 1)
	path := writeFile(t, t.TempDir(), "serve.yaml", cfg)

	cmd := &cobra.Command{Use: "serve", RunE: runServe}
	cmd.Flags().String("env", "local", "")
	cmd.Flags().String("config", path, "")
	cmd.SetContext(ctx)
	return cmd
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatal(err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	_ = l.Close()
	return port
}

func TestServe_PortInUseFails(t *testing.T) {
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	port := l.Addr().(*net.TCPAddr).Port

	err = runServe(newServeCommand(t, context.Background(), port), nil)
	if err == nil {
		t.Fatal("expected error when the port is taken")
	}
	if !strings.Contains(err.Error(), "http server") {
		t.Errorf("err = %v, want http server error", err)
	}
}

func TestServe_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := runServe(newServeCommand(t, ctx, freePort(t)), nil); err != nil {
		t.Errorf("runServe = %v, want graceful stop", err)
	}
}

func TestServe_InvalidConfig(t *testing.T) {
	cmd := &cobra.Command{Use: "serve", RunE: runServe}
	cmd.Flags().String("env", "local", "")
	cmd.Flags().String("config", writeFile(t, t.TempDir(), "bad.yaml", "http:\n  port: 70000\n"), "")
	cmd.SetContext(context.Background())

	if err := runServe(cmd, nil); err == nil {
		t.Error("expected config error")
	}
}
