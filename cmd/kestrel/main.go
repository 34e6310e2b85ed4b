// Command kestrel is a small operator CLI for KestrelDB: run a query, check
// the server version, or execute a transaction from the shell. Connection
// settings come from flags or KESTREL_* environment variables (optionally
// loaded from a .env file).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kestreldb/kestrel-go/client"
)

var (
	flagEnvFile  string
	flagEndpoint string
	flagDatabase string
	flagUsername string
	flagPassword string
	flagTimeout  time.Duration
	flagVerbose  bool
)

func main() {
	root := &cobra.Command{
		Use:           "kestrel",
		Short:         "KestrelDB command line client",
		Version:       client.DriverVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().AddFlagSet(connectionFlags())
	root.AddCommand(versionCmd(), queryCmd(), txCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "kestrel:", err)
		os.Exit(1)
	}
}

// connectionFlags holds the settings shared by every subcommand.
func connectionFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("connection", pflag.ContinueOnError)
	flags.StringVar(&flagEnvFile, "env-file", "", "dotenv file with KESTREL_* settings")
	flags.StringVar(&flagEndpoint, "endpoint", "", "server endpoint (default $KESTREL_ENDPOINT)")
	flags.StringVar(&flagDatabase, "database", "", "database name (default $KESTREL_DATABASE)")
	flags.StringVar(&flagUsername, "username", "", "basic auth username")
	flags.StringVar(&flagPassword, "password", "", "basic auth password")
	flags.DurationVar(&flagTimeout, "timeout", 0, "per-request timeout")
	flags.BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	return flags
}

func connect(ctx context.Context) (*client.Client, error) {
	opts, err := client.OptionsFromEnv(flagEnvFile)
	if err != nil {
		return nil, err
	}
	if flagEndpoint != "" {
		opts.Endpoint = flagEndpoint
	}
	if flagDatabase != "" {
		opts.Database = flagDatabase
	}
	if flagUsername != "" {
		opts.Username = flagUsername
	}
	if flagPassword != "" {
		opts.Password = flagPassword
	}
	if flagTimeout > 0 {
		opts.DefaultTimeout = flagTimeout
	}
	if flagVerbose {
		opts.LogLevel = "DEBUG"
	} else {
		opts.Logger = client.NewNoopLogger()
	}
	return client.NewClient(ctx, opts)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			version, err := c.Version(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(version)
			return nil
		},
	}
}

func queryCmd() *cobra.Command {
	var batchSize int
	var count bool

	cmd := &cobra.Command{
		Use:   "query <query>",
		Short: "Execute a query and print the results as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			cursor, err := c.Query(cmd.Context(), args[0], &client.QueryOptions{
				BatchSize: batchSize,
				Count:     count,
			})
			if err != nil {
				return err
			}
			defer cursor.Close(cmd.Context())

			out := json.NewEncoder(os.Stdout)
			for cursor.Next(cmd.Context()) {
				var doc interface{}
				if err := cursor.Decode(&doc); err != nil {
					return err
				}
				if err := out.Encode(doc); err != nil {
					return err
				}
			}
			if err := cursor.Err(); err != nil {
				return err
			}
			if count {
				fmt.Fprintf(os.Stderr, "count: %d\n", cursor.Count())
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "documents per round trip")
	cmd.Flags().BoolVar(&count, "count", false, "print the full result count")
	return cmd
}

func txCmd() *cobra.Command {
	var read, write []string
	var waitForSync bool

	cmd := &cobra.Command{
		Use:   "tx <action>",
		Short: "Execute a server-side transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			result, err := c.ExecuteTransaction(cmd.Context(), &client.Transaction{
				Action:           args[0],
				ReadCollections:  read,
				WriteCollections: write,
				WaitForSync:      waitForSync,
			})
			if err != nil {
				return err
			}

			encoded, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(strings.TrimSpace(string(encoded)))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&read, "read", nil, "collections the transaction reads")
	cmd.Flags().StringSliceVar(&write, "write", nil, "collections the transaction writes")
	cmd.Flags().BoolVar(&waitForSync, "wait-for-sync", false, "wait for the transaction to sync to disk")
	return cmd
}
