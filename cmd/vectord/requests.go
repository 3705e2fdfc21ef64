package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/fyrsmithlabs/vectord/internal/grpcapi"
	apiv1 "github.com/fyrsmithlabs/vectord/pkg/api/v1"
)

// clientFlags are shared by commands that call a running server.
type clientFlags struct {
	addr    string
	timeout time.Duration
}

func (f *clientFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.addr, "addr", "localhost:19530", "vectord gRPC address")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 10*time.Second, "call timeout")
}

// call sends a Cmd to the server and returns the reply string. An
// embedded failure status is returned as a *apiv1.StatusError.
func (f *clientFlags) call(ctx context.Context, command string) (string, error) {
	conn, err := grpc.NewClient(f.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return "", fmt.Errorf("connect to %s: %w", f.addr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	reply, err := apiv1.NewClient(conn).Cmd(ctx, &apiv1.Command{Cmd: command})
	if err != nil {
		return "", fmt.Errorf("cmd %q: %w", command, err)
	}
	if err := reply.Status.Err(); err != nil {
		return "", err
	}
	return reply.StringReply, nil
}

func newRequestsCmd() *cobra.Command {
	var flags clientFlags

	cmd := &cobra.Command{
		Use:   "requests",
		Short: "List in-flight requests of a running server",
		Long: `List the requests a running vectord is currently serving, one per line,
as <Kind>-<request id>. The listing call itself is not included.

Examples:
  vectord requests
  vectord requests --addr db-1:19530`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reply, err := flags.call(cmd.Context(), grpcapi.CmdRequests)
			if err != nil {
				return err
			}
			return printRequests(cmd.OutOrStdout(), reply)
		},
	}
	flags.register(cmd)
	return cmd
}

// printRequests writes the entries of a "requests" reply one per line.
func printRequests(w io.Writer, reply string) error {
	var out struct {
		Requests []string `json:"requests"`
	}
	if err := json.Unmarshal([]byte(reply), &out); err != nil {
		return fmt.Errorf("decode requests reply: %w", err)
	}
	if len(out.Requests) == 0 {
		fmt.Fprintln(w, "no requests in flight")
		return nil
	}
	for _, r := range out.Requests {
		fmt.Fprintln(w, r)
	}
	return nil
}

func newCmdCmd() *cobra.Command {
	var flags clientFlags

	cmd := &cobra.Command{
		Use:   "cmd <command>",
		Short: "Send a command string to a running server",
		Long: `Send a free-form command to a running vectord and print the reply.

Examples:
  vectord cmd version
  vectord cmd status
  vectord cmd mode`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := flags.call(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
