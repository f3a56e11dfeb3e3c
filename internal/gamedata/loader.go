package gamedata

import (
	"bytes"
	"embed"
	"fmt"
	"slices"
	"sync"
)

//go:embed data
var dataFS embed.FS

var (
	mu       sync.Mutex
	versions = map[string]func() (*Blocks, error){
		"pc-1.8": builtin("pc-1.8"),
	}
)

// builtin returns a factory decoding the embedded blocks.json of version.
func builtin(version string) func() (*Blocks, error) {
	return sync.OnceValues(func() (*Blocks, error) {
		raw, err := dataFS.ReadFile("data/" + version + "/blocks.json")
		if err != nil {
			return nil, err
		}
		return DecodeBlocks(bytes.NewReader(raw))
	})
}

// Register makes a block registry available under name.
func Register(name string, factory func() (*Blocks, error)) {
	mu.Lock()
	defer mu.Unlock()
	versions[name] = factory
}

// Load returns the block registry registered under name.
func Load(name string) (*Blocks, error) {
	mu.Lock()
	f, ok := versions[name]
	mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown version: %s", name)
	}
	return f()
}

// RegisteredVersions returns the registered version names, sorted.
func RegisteredVersions() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(versions))
	for name := range versions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
