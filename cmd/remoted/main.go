// Command remoted is a small flag-driven harness for exercising remotenet
// from the command line: either side of a connection in one binary,
// switched by -mode.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pacemaker-go/remotenet"
)

// lineCodec treats each message as a single JSON string, NUL-terminated per
// the wire contract. It exists so this CLI has no dependency on the test
// package's codec.
type lineCodec struct{}

func (lineCodec) Marshal(tree any) ([]byte, error) {
	b, err := json.Marshal(tree)
	if err != nil {
		return nil, err
	}
	return append(b, 0), nil
}

func (lineCodec) Unmarshal(data []byte) (any, error) {
	for len(data) > 0 && data[len(data)-1] == 0 {
		data = data[:len(data)-1]
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s, nil
}

func main() {
	modeFlag := flag.String("mode", "listen", "listen or dial")
	addrFlag := flag.String("addr", "127.0.0.1:8765", "listen address (listen mode)")
	hostFlag := flag.String("host", "127.0.0.1", "remote host (dial mode)")
	portFlag := flag.Int("port", 8765, "remote port (dial mode)")
	anonFlag := flag.Bool("anon", false, "use anonymous Diffie-Hellman")
	pskFlag := flag.String("psk", "", "32-byte pre-shared key, hex-independent raw string padded/truncated to 32 bytes")
	watchdogFlag := flag.Duration("watchdog", 0, "external watchdog timeout; TCP_USER_TIMEOUT is set to half this (listen mode)")

	flag.Usage = printUsage
	flag.Parse()

	opts := credentialOptions(*anonFlag, *pskFlag)

	switch *modeFlag {
	case "listen":
		runListen(*addrFlag, *watchdogFlag, opts)
	case "dial":
		runDial(*hostFlag, *portFlag, opts)
	default:
		log.Fatalf("unknown -mode %q, want listen or dial", *modeFlag)
	}
}

func credentialOptions(anon bool, psk string) []remotenet.Option {
	var opts []remotenet.Option
	switch {
	case psk != "":
		key := make([]byte, 32)
		copy(key, psk)
		opts = append(opts, remotenet.WithPSK(key))
	case anon:
		opts = append(opts, remotenet.WithAnonDH())
	}
	return opts
}

func runListen(addr string, watchdog time.Duration, opts []remotenet.Option) {
	ln, err := remotenet.Listen("tcp", addr, lineCodec{}, opts...)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	if watchdog > 0 {
		ln.WithWatchdogTimeout(func() time.Duration { return watchdog })
	}

	fmt.Printf("listening on %s\n", ln.Addr())
	for {
		session, err := ln.Accept()
		if err != nil {
			log.Printf("accept: %v", err)
			continue
		}
		go serve(session)
	}
}

func serve(session *remotenet.Session) {
	defer session.Close()
	fmt.Printf("peer connected: %s\n", session.RemoteAddr())
	for {
		msg, err := session.ReceiveMessage(0)
		if err != nil {
			fmt.Printf("peer %s disconnected: %v\n", session.RemoteAddr(), err)
			return
		}
		if msg == nil {
			continue
		}
		fmt.Printf("[%s] %v\n", session.RemoteAddr(), msg)
	}
}

func runDial(host string, port int, opts []remotenet.Option) {
	session, err := remotenet.Dial(host, port, lineCodec{}, opts...)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer session.Close()

	fmt.Printf("connected to %s, type lines to send\n", session.RemoteAddr())
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if err := session.SendMessage(scanner.Text()); err != nil {
			log.Fatalf("send: %v", err)
		}
	}
}

func printUsage() {
	fmt.Println("remoted - remotenet exercise harness")
	fmt.Println("Usage:")
	fmt.Println("  remoted -mode listen [-addr host:port] [-anon] [-psk secret] [-watchdog 20s]")
	fmt.Println("  remoted -mode dial -host host -port 8765 [-anon] [-psk secret]")
}
