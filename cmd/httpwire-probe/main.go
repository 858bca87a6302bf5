// Command httpwire-probe sends one raw request through pkg/client (via
// pkg/client.NewRequestBuilder) and prints the parsed status line,
// headers, and timing metrics — an end-to-end smoke test of the
// client stack, adapted from the teacher's cmd/protocol_test.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	rawhttp "github.com/WhileEndless/httpwire"
	"github.com/WhileEndless/httpwire/pkg/client"
)

func main() {
	host := flag.String("host", "example.com", "target host")
	port := flag.Int("port", 443, "target port")
	scheme := flag.String("scheme", "https", "scheme (http or https)")
	method := flag.String("method", "GET", "request method")
	path := flag.String("path", "/", "request target")
	insecure := flag.Bool("insecure", false, "skip TLS certificate verification")
	timeout := flag.Duration("timeout", 10*time.Second, "connect/read timeout")
	flag.Parse()

	builder := client.NewRequestBuilder(*method, *path)
	req, err := builder.Build(client.Options{Scheme: *scheme, Host: *host, Port: *port})
	if err != nil {
		fmt.Fprintf(os.Stderr, "build request: %v\n", err)
		os.Exit(1)
	}

	sender := rawhttp.NewSender()
	opts := rawhttp.Options{
		Scheme:      *scheme,
		Host:        *host,
		Port:        *port,
		InsecureTLS: *insecure,
		ConnTimeout: *timeout,
		ReadTimeout: *timeout,
	}

	resp, err := sender.Do(context.Background(), req, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	defer resp.Raw.Close()

	fmt.Println(resp.StatusLine)
	names := make([]string, 0, len(resp.Headers))
	for name := range resp.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, value := range resp.Headers[name] {
			fmt.Printf("%s: %s\n", name, value)
		}
	}

	fmt.Println()
	fmt.Printf("ttfb:       %s\n", resp.TTFB)
	fmt.Printf("total_time: %s\n", resp.Total)
}
