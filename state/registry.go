package state

import (
	"fmt"
	"sort"
	"sync"
)

// Usage restricts which programs should accept a given backend.
//
// Backends are linked at build time: a backend package registers itself via
// init(), and is enabled in a binary by importing it (often as a blank import).
type Usage uint8

const (
	// UsageCLI marks backends usable from diamondctl.
	UsageCLI Usage = 1 << iota
	// UsageDaemon marks backends usable from diamondd.
	UsageDaemon
)

func (u Usage) allows(want Usage) bool { return u&want != 0 }

// Driver opens a Backend by DSN.
//
// Drivers typically register themselves in init():
//
//	state.MustRegister(state.Driver{ ... })
type Driver struct {
	Name        string
	Description string
	Usage       Usage

	// Open constructs the backend. dsn is driver specific and may be empty.
	// It returns an optional close function.
	Open func(dsn string) (Backend, func() error, error)
}

var (
	mu      sync.RWMutex
	drivers = map[string]Driver{}
)

// Register registers a driver.
func Register(d Driver) error {
	if d.Name == "" {
		return fmt.Errorf("state: driver name is required")
	}
	if d.Open == nil {
		return fmt.Errorf("state: driver %q missing Open", d.Name)
	}
	if d.Usage == 0 {
		return fmt.Errorf("state: driver %q missing Usage", d.Name)
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := drivers[d.Name]; exists {
		return fmt.Errorf("state: driver %q already registered", d.Name)
	}
	drivers[d.Name] = d
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister(d Driver) {
	if err := Register(d); err != nil {
		panic(err)
	}
}

// Drivers returns drivers matching usage, sorted by name.
func Drivers(usage Usage) []Driver {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Driver, 0, len(drivers))
	for _, d := range drivers {
		if d.Usage.allows(usage) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns driver names matching usage, sorted.
func Names(usage Usage) []string {
	ds := Drivers(usage)
	n := make([]string, 0, len(ds))
	for _, d := range ds {
		n = append(n, d.Name)
	}
	return n
}

// Open opens the named driver if it exists and matches usage.
func Open(name, dsn string, usage Usage) (Backend, func() error, error) {
	mu.RLock()
	d, ok := drivers[name]
	mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("unknown state backend %q", name)
	}
	if !d.Usage.allows(usage) {
		return nil, nil, fmt.Errorf("state backend %q not supported in this binary", name)
	}
	return d.Open(dsn)
}
