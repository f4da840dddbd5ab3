package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"
)

func (c *cli) addCommands(root *cobra.Command) {
	root.AddCommand(
		c.simpleCmd("ping", "Check that the session is alive", "system.ping"),
		c.simpleCmd("capabilities", "List the methods the session supports", "system.capabilities"),
		c.simpleCmd("identify", "Show session, socket and frame statistics", "system.identify"),
		c.simpleCmd("schema", "Print the JSON Schema of every method's params", "system.schema"),
		c.simpleCmd("list-workspaces", "List workspaces in order", "workspace.list"),
		c.simpleCmd("list-notifications", "List stored notifications", "notification.list"),
		c.simpleCmd("clear-notifications", "Remove all notifications", "notification.clear"),
		c.newWorkspaceCmd(),
		c.closeWorkspaceCmd(),
		c.selectWorkspaceCmd(),
		c.reorderWorkspaceCmd(),
		c.renameWorkspaceCmd(),
		c.listPanesCmd(),
		c.splitCmd(),
		c.closePaneCmd(),
		c.resizePaneCmd(),
		c.focusCmd(),
		c.sendCmd(),
		c.sendKeysCmd(),
		c.readScreenCmd(),
		c.notifyCmd(),
		c.rpcCmd(),
	)
}

// simpleCmd calls a method that takes no params.
func (c *cli) simpleCmd(use, short, method string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.call(cmd.Context(), method, nil)
		},
	}
}

// params collects request fields, leaving out the ones not given.
type params map[string]any

func (p params) setString(key, val string) {
	if val != "" {
		p[key] = val
	}
}

func (c *cli) newWorkspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new-workspace",
		Short: "Create a workspace with one pane and select it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			p := params{}
			p.setString("name", name)
			return c.call(cmd.Context(), "workspace.new", p)
		},
	}
	cmd.Flags().String("name", "", "workspace name")
	return cmd
}

func (c *cli) closeWorkspaceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close-workspace [id]",
		Short: "Close a workspace (default: the active one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := params{}
			if len(args) == 1 {
				p["id"] = args[0]
			}
			return c.call(cmd.Context(), "workspace.close", p)
		},
	}
}

func (c *cli) selectWorkspaceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select-workspace <id|index>",
		Short: "Select a workspace by id (w2) or by index (0)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := workspaceSelector(args[0])
			if err != nil {
				return err
			}
			return c.call(cmd.Context(), "workspace.select", p)
		},
	}
}

// workspaceSelector reads "w2" as an id and "2" as an index.
func workspaceSelector(arg string) (params, error) {
	if strings.HasPrefix(arg, "w") {
		return params{"id": arg}, nil
	}
	idx, err := strconv.Atoi(arg)
	if err != nil {
		return nil, fmt.Errorf("invalid workspace %q: want an id like w1 or an index", arg)
	}
	return params{"index": idx}, nil
}

func (c *cli) reorderWorkspaceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reorder-workspace <id> <index>",
		Short: "Move a workspace to a new position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[1])
			}
			return c.call(cmd.Context(), "workspace.reorder", params{"id": args[0], "index": idx})
		},
	}
}

func (c *cli) renameWorkspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rename-workspace <name>",
		Short: "Rename a workspace (default: the active one)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")
			p := params{"name": args[0]}
			p.setString("id", id)
			return c.call(cmd.Context(), "workspace.rename", p)
		},
	}
	cmd.Flags().String("id", "", "workspace id")
	return cmd
}

func (c *cli) listPanesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list-panes",
		Short: "List the panes of a workspace (default: the active one)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, _ := cmd.Flags().GetString("workspace")
			p := params{}
			p.setString("workspace_id", ws)
			return c.call(cmd.Context(), "pane.list", p)
		},
	}
	cmd.Flags().StringP("workspace", "w", "", "workspace id")
	return cmd
}

func (c *cli) splitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split [horizontal|vertical]",
		Short: "Split a pane and start a shell in the new half",
		Long: "Split a pane. horizontal (h, right) places the new pane to the right;\n" +
			"vertical (v, down) places it below. The default is horizontal.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pane, _ := cmd.Flags().GetString("pane")
			ratio, _ := cmd.Flags().GetFloat64("ratio")
			dir := "horizontal"
			if len(args) == 1 {
				dir = args[0]
			}
			p := params{"direction": dir}
			p.setString("pane_id", pane)
			if ratio != 0 {
				p["ratio"] = ratio
			}
			return c.call(cmd.Context(), "pane.split", p)
		},
	}
	cmd.Flags().StringP("pane", "p", "", "pane to split (default: the focused pane)")
	cmd.Flags().Float64("ratio", 0, "share of the space kept by the original pane")
	return cmd
}

func (c *cli) closePaneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close-pane [pane]",
		Short: "Close a pane (default: the focused pane)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := params{}
			if len(args) == 1 {
				p["pane_id"] = args[0]
			}
			return c.call(cmd.Context(), "pane.close", p)
		},
	}
}

func (c *cli) resizePaneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resize-pane",
		Short: "Set the ratio of a split",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pane, _ := cmd.Flags().GetString("pane")
			splitID, _ := cmd.Flags().GetString("split")
			p := params{}
			if cmd.Flags().Changed("delta") {
				p["delta"], _ = cmd.Flags().GetFloat64("delta")
			} else {
				p["ratio"], _ = cmd.Flags().GetFloat64("ratio")
			}
			p.setString("pane_id", pane)
			p.setString("split_id", splitID)
			return c.call(cmd.Context(), "pane.resize", p)
		},
	}
	cmd.Flags().StringP("pane", "p", "", "resize the split containing this pane")
	cmd.Flags().String("split", "", "split id")
	cmd.Flags().Float64("ratio", 0.5, "new ratio, between 0 and 1")
	cmd.Flags().Float64("delta", 0, "move the pane's divider by this much instead")
	cmd.MarkFlagsOneRequired("ratio", "delta")
	cmd.MarkFlagsMutuallyExclusive("ratio", "delta")
	return cmd
}

func (c *cli) focusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "focus [pane]",
		Short: "Focus a pane, or cycle with --next/--prev",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			next, _ := cmd.Flags().GetBool("next")
			prev, _ := cmd.Flags().GetBool("prev")
			switch {
			case next || prev:
				return c.call(cmd.Context(), "pane.focus_next", params{"reverse": prev})
			case len(args) == 1:
				return c.call(cmd.Context(), "pane.focus", params{"pane_id": args[0]})
			default:
				return fmt.Errorf("a pane id or --next/--prev is required")
			}
		},
	}
	cmd.Flags().Bool("next", false, "focus the next pane")
	cmd.Flags().Bool("prev", false, "focus the previous pane")
	cmd.MarkFlagsMutuallyExclusive("next", "prev")
	return cmd
}

func (c *cli) sendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send [text...]",
		Short: `Write text to a pane; "-" reads stdin`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pane, _ := cmd.Flags().GetString("pane")
			paste, _ := cmd.Flags().GetBool("paste")
			enter, _ := cmd.Flags().GetBool("enter")
			p := params{}
			p.setString("pane_id", pane)
			if paste {
				p["paste"] = true
			}
			if len(args) == 1 && args[0] == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				if enter {
					data = append(data, '\r')
				}
				p["bytes_b64"] = data
			} else {
				text := strings.Join(args, " ")
				if enter {
					text += "\r"
				}
				p["text"] = text
			}
			return c.call(cmd.Context(), "pane.send", p)
		},
	}
	cmd.Flags().StringP("pane", "p", "", "target pane (default: the focused pane)")
	cmd.Flags().Bool("paste", false, "wrap in bracketed paste markers when the pane asked for them")
	cmd.Flags().BoolP("enter", "e", false, "append a carriage return")
	return cmd
}

func (c *cli) sendKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send-keys <key>...",
		Short: "Send named keys such as Enter, C-c or F5",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pane, _ := cmd.Flags().GetString("pane")
			p := params{"keys": args}
			p.setString("pane_id", pane)
			return c.call(cmd.Context(), "pane.send_keys", p)
		},
	}
	cmd.Flags().StringP("pane", "p", "", "target pane (default: the focused pane)")
	return cmd
}

func (c *cli) readScreenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "read-screen",
		Aliases: []string{"capture-pane"},
		Short:   "Print the visible text of a pane",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pane, _ := cmd.Flags().GetString("pane")
			scrollback, _ := cmd.Flags().GetBool("scrollback")
			lines, _ := cmd.Flags().GetInt("lines")
			textOnly, _ := cmd.Flags().GetBool("text")
			p := params{}
			p.setString("pane_id", pane)
			if scrollback {
				p["scrollback"] = true
			}
			if lines > 0 {
				p["lines"] = lines
			}
			if !textOnly {
				return c.call(cmd.Context(), "pane.capture", p)
			}
			raw, err := c.callRaw(cmd.Context(), "pane.capture", p)
			if err != nil {
				return err
			}
			var res struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(raw, &res); err != nil {
				return fmt.Errorf("decode result: %w", err)
			}
			_, err = fmt.Fprintln(c.stdout, res.Text)
			return err
		},
	}
	cmd.Flags().StringP("pane", "p", "", "target pane (default: the focused pane)")
	cmd.Flags().BoolP("scrollback", "S", false, "include scrollback history")
	cmd.Flags().IntP("lines", "n", 0, "only the last n lines")
	cmd.Flags().BoolP("text", "t", false, "print only the captured text")
	return cmd
}

func (c *cli) notifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify [message...]",
		Short: "Post a notification to the session",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			title, _ := cmd.Flags().GetString("title")
			body, _ := cmd.Flags().GetString("body")
			p := params{}
			p.setString("title", title)
			p.setString("body", body)
			p.setString("message", strings.Join(args, " "))
			if len(p) == 0 {
				return fmt.Errorf("a message, --title or --body is required")
			}
			return c.call(cmd.Context(), "notification.send", p)
		},
	}
	cmd.Flags().String("title", "", "notification title")
	cmd.Flags().String("body", "", "notification body")
	return cmd
}

func (c *cli) rpcCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rpc <method>",
		Short: "Call any method with raw params",
		Example: "  pterminal-cli rpc pane.split --set direction=vertical --set ratio=0.3\n" +
			"  pterminal-cli rpc pane.send --params '{\"text\":\"ls\\r\"}'",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, _ := cmd.Flags().GetString("params")
			sets, _ := cmd.Flags().GetStringArray("set")
			if base == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				base = string(data)
			}
			p, err := buildParams(base, sets)
			if err != nil {
				return err
			}
			return c.call(cmd.Context(), args[0], p)
		},
	}
	cmd.Flags().String("params", "", `params as a JSON object ("-" reads stdin)`)
	cmd.Flags().StringArray("set", nil, "set a param by gjson path, e.g. --set keys.0=Enter (repeatable)")
	return cmd
}

// buildParams applies path=value edits to a JSON object. Values that parse
// as JSON are set raw, anything else as a string.
func buildParams(base string, sets []string) (json.RawMessage, error) {
	data := []byte(strings.TrimSpace(base))
	if len(data) == 0 {
		data = []byte("{}")
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("--params is not valid JSON")
	}
	for _, kv := range sets {
		path, value, ok := strings.Cut(kv, "=")
		if !ok || path == "" {
			return nil, fmt.Errorf("invalid --set %q: want path=value", kv)
		}
		var err error
		if json.Valid([]byte(value)) {
			data, err = sjson.SetRawBytes(data, path, []byte(value))
		} else {
			data, err = sjson.SetBytes(data, path, value)
		}
		if err != nil {
			return nil, fmt.Errorf("--set %s: %w", path, err)
		}
	}
	return data, nil
}
