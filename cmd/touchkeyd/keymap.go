package main

import (
	"fmt"
	"strings"

	"touchkey.dev/input"
)

// parseKeymap parses a comma separated list of keys, one for each key
// index reported by the controller.
func parseKeymap(s string) ([]input.Key, error) {
	var keys []input.Key
	for _, name := range strings.Split(s, ",") {
		k, err := input.ParseKey(name)
		if err != nil {
			return nil, fmt.Errorf("-keymap: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, nil
}
