// ninmem serves a nature area and taxon knowledge graph from memory.
//
// ninmem imports a directory of input documents into a local database,
// builds the graph with its spatial and text indexes at startup, and
// answers code search, bounding box and statistics queries from the CLI
// or over MCP.
package main

import (
	"os"

	"github.com/fatih/color"

	"github.com/Benny93/ninmem-go/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
