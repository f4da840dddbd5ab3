// Package main is pterminal-cli, a command-line client for the pterminal
// control socket.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/dshills/pterminal/internal/config"
	"github.com/dshills/pterminal/internal/control"
)

// cli holds the global flags shared by every subcommand.
type cli struct {
	socket  string
	timeout time.Duration
	output  string
	query   string

	stdout io.Writer
	tty    bool
}

func main() {
	c := &cli{stdout: os.Stdout, tty: term.IsTerminal(int(os.Stdout.Fd()))}
	if err := c.rootCmd().Execute(); err != nil {
		var rpcErr *control.Error
		if errors.As(err, &rpcErr) {
			fmt.Fprintf(os.Stderr, "error %d: %s\n", rpcErr.Code, rpcErr.Message)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pterminal-cli",
		Short: "Control a running pterminal session",
		Long: "pterminal-cli sends JSON-RPC requests to a pterminal session over its\n" +
			"control socket and prints the result.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch c.output {
			case "json", "yaml":
				return nil
			default:
				return fmt.Errorf("invalid output %q (must be json or yaml)", c.output)
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(c.stdout)

	pf := root.PersistentFlags()
	pf.StringVar(&c.socket, "socket", "", "control socket path (default $"+config.EnvSocket+" or the config dir)")
	pf.DurationVar(&c.timeout, "timeout", control.DefaultTimeout, "per-call timeout")
	pf.StringVarP(&c.output, "output", "o", "json", "output format: json or yaml")
	pf.StringVarP(&c.query, "query", "q", "", "print only the value at this gjson path")

	c.addCommands(root)
	return root
}

// socketPath resolves the socket: flag, then environment and config file.
func (c *cli) socketPath() string {
	if c.socket != "" {
		return c.socket
	}
	cfg, err := config.Load(os.Getenv(config.EnvConfig))
	if err != nil {
		cfg = config.Default()
		config.ApplyEnv(cfg, os.LookupEnv)
	}
	return cfg.SocketPath()
}

// call sends one request and prints its result.
func (c *cli) call(ctx context.Context, method string, params any) error {
	raw, err := c.callRaw(ctx, method, params)
	if err != nil {
		return err
	}
	return c.print(raw)
}

func (c *cli) callRaw(ctx context.Context, method string, params any) (json.RawMessage, error) {
	client, err := control.Dial(c.socketPath(), control.WithTimeout(c.timeout))
	if err != nil {
		return nil, err
	}
	defer client.Close()
	return client.CallRaw(ctx, method, params)
}

// print writes a result in the selected format. Interactive terminals get
// indented JSON; pipes get one compact line.
func (c *cli) print(raw json.RawMessage) error {
	data := []byte(raw)
	if len(data) == 0 {
		data = []byte("null")
	}
	if c.query != "" {
		res := gjson.GetBytes(data, c.query)
		if !res.Exists() {
			return fmt.Errorf("query %q matched nothing", c.query)
		}
		if res.Type == gjson.String {
			_, err := fmt.Fprintln(c.stdout, res.String())
			return err
		}
		data = []byte(res.Raw)
	}

	switch c.output {
	case "yaml":
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
		out, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = c.stdout.Write(out)
		return err
	default:
		var buf bytes.Buffer
		var err error
		if c.tty {
			err = json.Indent(&buf, data, "", "  ")
		} else {
			err = json.Compact(&buf, data)
		}
		if err != nil {
			return fmt.Errorf("format result: %w", err)
		}
		buf.WriteByte('\n')
		_, err = c.stdout.Write(buf.Bytes())
		return err
	}
}
