// Package main implements the fieldtables command line tool.
// It creates and alters typed data tables, inserts and lists rows, edits
// color rules and moves table definitions to and from archive storage.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/fieldtables/fieldtables/internal/app"
	"github.com/fieldtables/fieldtables/internal/config"
	ftErrors "github.com/fieldtables/fieldtables/internal/errors"
)

var (
	version = "dev"
	commit  = "unknown"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, m *app.Manager, args []string) error
}

var commands = []command{
	{"tables", "List tables", runTables},
	{"create", "Create a table: -table ID -columns FILE", runCreate},
	{"add-columns", "Add columns to a table: -table ID -columns FILE", runAddColumns},
	{"describe", "Print a table's data model: -table ID", runDescribe},
	{"drop", "Drop a table and its metadata: -table ID", runDrop},
	{"insert", "Insert a row: -table ID -row JSON", runInsert},
	{"rows", "List rows with colors: -table ID [-scope SCOPE] [-column KEY]", runRows},
	{"places", "List geopoint locations: -table ID -column KEY", runPlaces},
	{"rules", "List color rules: -table ID -scope SCOPE [-column KEY]", runRules},
	{"add-rule", "Append a color rule: -table ID -scope SCOPE -element KEY -op OP -value V", runAddRule},
	{"remove-rule", "Remove a color rule: -table ID -scope SCOPE -id ID", runRemoveRule},
	{"restore-rules", "Restore the built-in rules: -table ID -scope SCOPE", runRestoreRules},
	{"export", "Export a table definition: -table ID", runExport},
	{"import", "Import a table definition: -table ID", runImport},
	{"archived", "List exported table definitions", runArchived},
}

func main() {
	var (
		configFile  string
		dataDir     string
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "fieldtables - typed data tables for field data collection\n\n")
		fmt.Fprintf(os.Stderr, "Usage: fieldtables [options] <command> [command options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nCommands:\n")
		for _, c := range commands {
			fmt.Fprintf(os.Stderr, "  %-14s %s\n", c.name, c.usage)
		}
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  fieldtables create -table household -columns household.yaml\n")
		fmt.Fprintf(os.Stderr, "  fieldtables add-rule -table household -scope COLUMN -column members -element members -op '>' -value 6 -bg '#C62828'\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  FIELDTABLES_DATA_DIR       Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  FIELDTABLES_CREATOR        savepoint_creator of inserted rows\n")
		fmt.Fprintf(os.Stderr, "  FIELDTABLES_ARCHIVE_TYPE   Archive storage type (local, s3)\n")
		fmt.Fprintf(os.Stderr, "  FIELDTABLES_S3_BUCKET      Archive bucket (s3)\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if showVersion {
		fmt.Printf("fieldtables version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == args[0] {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(configFile, dataDir)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	m, err := app.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", cfg.DataDir, err)
	}

	runErr := cmd.run(ctx, m, args[1:])
	if err := m.Close(); err != nil {
		log.Printf("Close error: %v", err)
	}
	if runErr != nil {
		log.Printf("%s: %s", cmd.name, describeError(runErr))
		os.Exit(exitCode(runErr))
	}
}

// describeError renders a command failure for the user. Storage failures
// during a schema change read as the table not being updated.
func describeError(err error) string {
	msg := err.Error()
	if ftErrors.HasCode(err, ftErrors.ErrCategorySchema, ftErrors.CodeStorageFailure) {
		msg = "could not update table: " + msg
	}
	if ftErrors.IsRetryable(err) {
		msg += " (retrying may succeed)"
	}
	return msg
}

// exitCode returns 2 for schema and rule errors, which the user fixes by
// changing their input, and 1 for everything else.
func exitCode(err error) int {
	if ftErrors.HasCode(err, ftErrors.ErrCategorySchema, ftErrors.CodeStorageFailure) {
		return 1
	}
	if ftErrors.IsSchemaError(err) || ftErrors.IsRuleError(err) {
		return 2
	}
	return 1
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig(configFile, dataDir string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	// Start with defaults or load from file
	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	// Apply environment variables
	config.LoadFromEnv(cfg)

	// Apply command line flags (highest priority)
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	return cfg, nil
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
