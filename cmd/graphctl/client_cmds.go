package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/danmuck/graphctl/internal/client"
	"github.com/danmuck/graphctl/internal/config"
	"github.com/danmuck/graphctl/internal/protocol"
	"github.com/danmuck/graphctl/internal/registry"
	"github.com/spf13/cobra"
)

func newPingCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that a bridge is answering",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := sendOnce(cmd.Context(), addr, "ping", nil)
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", protocol.DefaultAddr, "bridge address")
	return cmd
}

func newSendCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "send <action> [params-json]",
		Short: "Send one command and print the response",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var params map[string]any
			if len(args) == 2 {
				p, err := parseParams(args[1])
				if err != nil {
					return err
				}
				params = p
			}
			resp, err := sendOnce(cmd.Context(), addr, args[0], params)
			if err != nil {
				return err
			}
			if err := printResponse(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
			if !resp.IsOK() {
				return fmt.Errorf("%s failed: %s", args[0], resp.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", protocol.DefaultAddr, "bridge address")
	return cmd
}

func newClassesCmd() *cobra.Command {
	var aliasFile string
	cmd := &cobra.Command{
		Use:   "classes [filter]",
		Short: "List friendly node names and their classes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := registry.BuiltinSource
			if strings.TrimSpace(aliasFile) != "" {
				src = registry.FileSource{Path: aliasFile, Overlay: true}
			}
			reg := registry.New(src)
			if err := reg.LoadError(); err != nil {
				return err
			}
			filter := ""
			if len(args) == 1 {
				filter = args[0]
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, a := range reg.Aliases(filter) {
				fmt.Fprintf(tw, "%s\t%s\n", a.Name, a.Class)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&aliasFile, "alias-file", "", "alias overlay file (toml or yaml)")
	return cmd
}

func newInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a sample service config",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "graphctl.toml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteTemplate(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func parseParams(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, fmt.Errorf("params must be a JSON object: %w", err)
	}
	return params, nil
}

func sendOnce(ctx context.Context, addr, action string, params map[string]any) (protocol.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := client.Dial(ctx, addr, client.DefaultOptions())
	if err != nil {
		return protocol.Response{}, err
	}
	defer c.Close()
	return c.Send(ctx, action, params)
}

func printResponse(w io.Writer, resp protocol.Response) error {
	raw, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(raw))
	return err
}
