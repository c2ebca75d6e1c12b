package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/composed-go/composed"
	"github.com/composed-go/composed/manifest"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run dispatches the subcommand and returns the process exit status:
// 0 on success, 1 on a decode failure, 2 on a usage or manifest error.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return 2
	}
	switch args[0] {
	case "inspect":
		return runInspect(args[1:], stdout, stderr)
	case "resolve":
		return runResolve(args[1:], stdin, stdout, stderr)
	default:
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "composed CLI\n\nUsage:\n  composed inspect -manifest schemas.yaml\n  composed resolve -manifest schemas.yaml -schema Name [-input value.json]\n\nNotes:\n  - resolve reads the input document from stdin unless -input is given.\n  - candidates are bound generically from their declared field lists.")
}

func runInspect(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var path string
	fs.StringVar(&path, "manifest", "", "manifest file (YAML or JSON)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if path == "" {
		fs.Usage()
		return 2
	}
	m, err := loadManifest(path)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	for _, s := range m.Schemas {
		line := s.Name + ": " + s.Kind
		if s.Nullable {
			line += ", nullable"
		}
		fmt.Fprintln(stdout, line)
		for _, c := range s.Candidates {
			mode := "permissive"
			if c.Strict {
				mode = "strict"
			}
			fmt.Fprintf(stdout, "  - %s (%s)\n", c.Name, mode)
		}
		if d := s.Discriminator; d != nil {
			fmt.Fprintf(stdout, "  discriminator %q\n", d.Property)
			for _, tag := range sortedKeys(d.Mapping) {
				fmt.Fprintf(stdout, "    %s -> %s\n", tag, d.Mapping[tag])
			}
		}
	}
	return 0
}

func runResolve(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var path, schema, input string
	fs.StringVar(&path, "manifest", "", "manifest file (YAML or JSON)")
	fs.StringVar(&schema, "schema", "", "composed schema name to resolve against")
	fs.StringVar(&input, "input", "", "input JSON file (default: stdin)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if path == "" || schema == "" {
		fs.Usage()
		return 2
	}
	m, err := loadManifest(path)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	reg := composed.NewRegistry()
	diag, err := m.Bind(reg, nil, manifest.Options{OnUnbound: manifest.WarnUnbound})
	if err != nil {
		fmt.Fprintln(stderr, "bind:", err)
		return 2
	}
	for _, w := range diag.Warnings() {
		fmt.Fprintln(stderr, "warning:", w)
	}
	reg.Freeze()

	data, err := readInput(stdin, input)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	v, err := reg.Decode(context.Background(), schema, data)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if v.IsNull() {
		fmt.Fprintln(stdout, "null")
		return 0
	}
	fmt.Fprintln(stdout, v.TypeName())
	return 0
}

func loadManifest(path string) (*manifest.Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return manifest.Load(b)
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return b, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return b, nil
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
