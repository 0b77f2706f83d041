//go:build ignore

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ormasoftchile/itemforge/pkg/schema"
	"github.com/ormasoftchile/itemforge/pkg/widgets"
)

func main() {
	if err := os.MkdirAll("schemas", 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir: %v\n", err)
		os.Exit(1)
	}
	for _, kind := range schema.Kinds {
		data, err := schema.Export(kind, widgets.Default())
		if err != nil {
			fmt.Fprintf(os.Stderr, "error generating %s schema: %v\n", kind, err)
			os.Exit(1)
		}
		path := filepath.Join("schemas", kind+".json")
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("wrote " + path)
	}
}
