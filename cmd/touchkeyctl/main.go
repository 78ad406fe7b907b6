// Command touchkeyctl sends a control line to touchkeyd and prints the
// reply.
//
//	touchkeyctl get led_mode
//	touchkeyctl set timeout 3
//	touchkeyctl suspend
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"
)

var (
	socketPath = flag.String("socket", "/run/touchkeyd.sock", "control socket path")
	timeout    = flag.Duration("timeout", 5*time.Second, "reply timeout")
)

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "usage: touchkeyctl [flags] <command> [args...]\n")
		flag.PrintDefaults()
		os.Exit(2)
	}
	reply, err := send(*socketPath, strings.Join(flag.Args(), " "), *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "touchkeyctl: %v\n", err)
		os.Exit(1)
	}
	if reply != "" {
		fmt.Println(reply)
	}
}

// send runs line on the daemon listening at path and returns the
// reply value.
func send(path, line string, timeout time.Duration) (string, error) {
	c, err := net.DialTimeout("unix", path, timeout)
	if err != nil {
		return "", err
	}
	defer c.Close()
	c.SetDeadline(time.Now().Add(timeout))
	if _, err := io.WriteString(c, line+"\n"); err != nil {
		return "", err
	}
	reply, err := bufio.NewReader(c).ReadString('\n')
	if err != nil {
		return "", err
	}
	return parseReply(reply)
}

func parseReply(reply string) (string, error) {
	reply = strings.TrimSuffix(reply, "\n")
	status, val, _ := strings.Cut(reply, " ")
	switch status {
	case "ok":
		return val, nil
	case "err":
		return "", errors.New(val)
	}
	return "", fmt.Errorf("malformed reply %q", reply)
}
