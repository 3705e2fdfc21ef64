// Vectord is the gRPC front end of a vector database.
//
// The serve command starts the VectorService gRPC listener and, unless
// disabled, the HTTP health and metrics endpoints. The remaining commands
// talk to a running server or print local information.
//
// Usage:
//
//	# Start with defaults (~/.config/vectord/config.yaml if present)
//	vectord serve
//
//	# Configure via environment
//	VECTORD_SERVER_GRPC_PORT=29530 VECTORD_ENGINE_PROVIDER=qdrant vectord serve
//
//	# List in-flight requests of a running server
//	vectord requests --addr localhost:19530
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vectord",
		Short: "gRPC front end for a vector database",
		Long: `vectord accepts VectorService calls over gRPC and forwards them to a
storage engine: the built-in memory engine or a Qdrant server.`,
		Version:      version,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newVersionCmd(),
		newConfigCmd(),
		newRequestsCmd(),
		newCmdCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "vectord by Fyrsmith Labs\n")
	fmt.Fprintf(w, "Version:    %s\n", version)
	fmt.Fprintf(w, "Commit:     %s\n", gitCommit)
	fmt.Fprintf(w, "Build Date: %s\n", buildDate)
}
