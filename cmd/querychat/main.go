/*-------------------------------------------------------------------------
 *
 * QueryChat Natural Language SQL Agent
 *
 * Copyright (c) 2025, the QueryChat authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"querychat/internal/config"
)

// Version is set at build time via -ldflags
var Version = "dev"

var (
	configFile   string
	listenAddr   string
	backend      string
	sqlitePath   string
	remoteDriver string
	databaseURL  string
	llmProvider  string
	llmModel     string
)

var rootCmd = &cobra.Command{
	Use:   "querychat",
	Short: "QueryChat - ask questions about your database in plain language",
	Long: `QueryChat answers natural-language questions about a relational database
by letting a language model write and run read-only SQL queries.

Every query passes through a lexical safety gate before execution: only
single SELECT or WITH statements are accepted, and the database
connection itself is opened read-only where the backend supports it.

Backends: a local SQLite file, an in-memory database seeded from
configured datasets, or a remote PostgreSQL or MySQL server.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("querychat %s\n", Version)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "querychat.yaml", "Path to configuration file")
	pf.StringVar(&backend, "backend", "", "Database backend: sqlite, memory, or remote")
	pf.StringVar(&sqlitePath, "sqlite-path", "", "Path to SQLite database file")
	pf.StringVar(&remoteDriver, "driver", "", "Remote database driver: postgres or mysql")
	pf.StringVar(&databaseURL, "url", "", "Remote database connection string")
	pf.StringVar(&llmProvider, "provider", "", "LLM provider: anthropic or ollama")
	pf.StringVar(&llmModel, "model", "", "LLM model name")

	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "HTTP listen address")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(versionCmd)
}

// cliFlags converts cobra flag state into the config layer's overrides
func cliFlags(cmd *cobra.Command) config.CLIFlags {
	changed := func(name string) bool {
		if f := cmd.Flags().Lookup(name); f != nil {
			return f.Changed
		}
		return false
	}

	return config.CLIFlags{
		ConfigFile:    configFile,
		ConfigFileSet: changed("config"),
		Address:       listenAddr,
		AddressSet:    changed("listen"),
		Backend:       backend,
		BackendSet:    changed("backend"),
		SQLitePath:    sqlitePath,
		SQLitePathSet: changed("sqlite-path"),
		Driver:        remoteDriver,
		DriverSet:     changed("driver"),
		URL:           databaseURL,
		URLSet:        changed("url"),
		Provider:      llmProvider,
		ProviderSet:   changed("provider"),
		Model:         llmModel,
		ModelSet:      changed("model"),
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
