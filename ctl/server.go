package ctl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"

	"touchkey.dev/driver/cptk"
)

// Command is a control command taking an optional argument. A non-empty
// result is sent back to the client.
type Command func(arg string) (string, error)

// Handler executes control lines against a Device.
//
//	get <attribute>
//	set <attribute> <value>
//	<command> [argument]
//
// Every line is answered with "ok [value]" or "err <message>".
type Handler struct {
	dev *cptk.Device
	log *log.Logger

	mu   sync.Mutex
	cmds map[string]Command
	// stored is called after every successful set.
	stored func(name string)
}

// NewHandler returns a Handler with the lifecycle commands of dev:
// suspend, resume and touchscreen <0|1>. A nil logger selects
// log.Default.
func NewHandler(dev *cptk.Device, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	h := &Handler{
		dev: dev,
		log: logger,
	}
	h.cmds = map[string]Command{
		"suspend": func(string) (string, error) {
			dev.Suspend()
			return "", nil
		},
		"resume": func(string) (string, error) {
			dev.Resume()
			return "", nil
		},
		"touchscreen": func(arg string) (string, error) {
			v, err := strconv.Atoi(arg)
			if err != nil {
				return "", fmt.Errorf("ctl: touchscreen: invalid activity %q", arg)
			}
			dev.TouchscreenActivity(v > 0)
			return "", nil
		},
		"state": func(string) (string, error) {
			return dev.State().String(), nil
		},
		"list": func(string) (string, error) {
			names := make([]string, len(Attrs))
			for i, a := range Attrs {
				names[i] = a.Name
			}
			return strings.Join(names, " "), nil
		},
	}
	return h
}

// Handle registers an additional command.
func (h *Handler) Handle(name string, c Command) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cmds[name] = c
}

// OnStore sets a function called with the attribute name after every
// successful set.
func (h *Handler) OnStore(f func(name string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stored = f
}

// Commands returns the registered command names.
func (h *Handler) Commands() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var names []string
	for n := range h.cmds {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Exec runs a single control line and returns its result.
func (h *Handler) Exec(line string) (string, error) {
	verb, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)
	switch verb {
	case "":
		return "", errors.New("ctl: empty command")
	case "get":
		return Show(h.dev, rest)
	case "set":
		name, val, ok := strings.Cut(rest, " ")
		if !ok {
			return "", errors.New("ctl: set: missing value")
		}
		if err := Store(h.dev, name, val); err != nil {
			return "", err
		}
		h.mu.Lock()
		stored := h.stored
		h.mu.Unlock()
		if stored != nil {
			stored(name)
		}
		return "", nil
	}
	h.mu.Lock()
	c, ok := h.cmds[verb]
	h.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("ctl: unknown command %q", verb)
	}
	return c(rest)
}

// Reply formats the result of Exec as a protocol line.
func Reply(res string, err error) string {
	switch {
	case err != nil:
		msg := strings.ReplaceAll(err.Error(), "\n", " ")
		return "err " + msg
	case res == "":
		return "ok"
	default:
		return "ok " + res
	}
}

// Serve accepts connections on l and serves the line protocol on each
// until l is closed.
func (h *Handler) Serve(l net.Listener) error {
	for {
		c, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("ctl: %w", err)
		}
		go func() {
			defer c.Close()
			if err := h.ServeConn(c); err != nil {
				h.log.Printf("ctl: %v", err)
			}
		}()
	}
}

// ServeConn serves the line protocol on a single connection until the
// client closes it.
func (h *Handler) ServeConn(rw io.ReadWriter) error {
	r := bufio.NewReader(rw)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		reply := Reply(h.Exec(line))
		if _, err := io.WriteString(rw, reply+"\n"); err != nil {
			return err
		}
	}
}
