// Package main generates a development Certificate Authority and a server
// certificate signed by it, writing them under the output directory:
//
//	ca.crt, ca.key          pass ca.crt to the client with -ca
//	server.crt, server.key  pass to the server with -tls-cert and -tls-key
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atinyakov/FeedbackTracker/internal/certgen"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("certgen", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dir := fs.String("dir", "certs", "output directory")
	hosts := fs.String("hosts", "localhost,127.0.0.1", "comma-separated server host names and IPs")
	days := fs.Int("days", 365, "server certificate validity in days")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	if err := os.MkdirAll(*dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", *dir, err)
	}

	ca, err := certgen.GenerateCA("Feedback Tracker Dev CA", 10*365*24*time.Hour)
	if err != nil {
		return err
	}
	if err := writeBundle(*dir, "ca", ca); err != nil {
		return err
	}

	caCert, caKey, err := certgen.ParseCACredentials(ca.CertPEM, ca.KeyPEM)
	if err != nil {
		return err
	}
	server, err := certgen.GenerateServerCertificate(splitHosts(*hosts), time.Duration(*days)*24*time.Hour, caCert, caKey)
	if err != nil {
		return err
	}
	if err := writeBundle(*dir, "server", server); err != nil {
		return err
	}

	fmt.Fprintf(out, "Certificates generated into %s\n", *dir)
	return nil
}

func splitHosts(s string) []string {
	var hosts []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

// writeBundle writes name.crt and name.key; the key is readable by the owner only.
func writeBundle(dir, name string, b certgen.Bundle) error {
	if err := os.WriteFile(filepath.Join(dir, name+".crt"), b.CertPEM, 0o644); err != nil {
		return fmt.Errorf("write %s cert: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name+".key"), b.KeyPEM, 0o600); err != nil {
		return fmt.Errorf("write %s key: %w", name, err)
	}
	return nil
}
