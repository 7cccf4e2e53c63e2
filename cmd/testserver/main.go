// Command testserver runs the local check-in site used to try out captures.
//
// Usage:
//
//	testserver [flags]
//
// Flags:
//
//	-port    Port to listen on (default: 8080)
//	-host    Host to bind to (default: localhost)
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"checkin/testserver"
)

func main() {
	port := flag.Int("port", 8080, "port to listen on")
	host := flag.String("host", "localhost", "host to bind to")
	flag.Parse()

	server := testserver.NewServer()
	addr := fmt.Sprintf("%s:%d", *host, *port)

	fmt.Println("Check-in Test Server")
	fmt.Println("====================")
	fmt.Printf("Listening on http://%s\n\n", addr)
	fmt.Println("Endpoints:")
	fmt.Println("  GET  /health                  - Health check")
	fmt.Println("  POST /auth/login              - Start a session ({\"user\":...} or form user=)")
	fmt.Println("  POST /checkin                 - Check in (session cookie required)")
	fmt.Println("  GET  /profile                 - Session check")
	fmt.Println("  GET  /redirect                - Redirect chain (?n=3&to=/profile&code=302&cookie=name)")
	fmt.Println("  GET  /redirect-loop           - Endless redirect")
	fmt.Println("  GET  /redirect-nolocation     - 302 without Location")
	fmt.Println("  GET  /status/{code}           - Return specific status code")
	fmt.Println("  GET  /delay/{ms}              - Delay response by milliseconds")
	fmt.Println("  GET  /flaky                   - Fail first n requests per key (?key=a&fail=2)")
	fmt.Println("  POST /echo                    - Echo request body")
	fmt.Println("  GET  /headers                 - Echo request headers as JSON")
	fmt.Println()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		os.Exit(0)
	}()

	log.Fatal(http.ListenAndServe(addr, server.Handler()))
}
