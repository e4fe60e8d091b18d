// Command replayschema emits the JSON Schema for persisted death replays so
// external viewers can validate exported replay documents.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"github.com/dadbodgeoff/1v1bro-sub009/internal/telemetry"
)

func main() {
	out := flag.String("out", "replay.schema.json", "output path for the schema")
	flag.Parse()

	reflector := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := reflector.Reflect(&telemetry.DeathReplay{})
	schema.Title = "DeathReplay"
	schema.Description = "Self-contained slice of telemetry frames leading up to a kill."

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal schema: %v\n", err)
		os.Exit(1)
	}
	data = append(data, '\n')

	if err := writeAtomic(*out, data); err != nil {
		fmt.Fprintf(os.Stderr, "write schema: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s (%d bytes)\n", *out, len(data))
}

// writeAtomic stages the file next to the target and renames it into place so
// a crash never leaves a truncated schema behind.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".replayschema-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
