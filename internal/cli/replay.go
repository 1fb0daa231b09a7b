package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tOgg1/livedesk/internal/replay"
)

func newReplayCmd(root *rootOptions) *cobra.Command {
	var (
		realtime bool
		format   string
	)
	cmd := &cobra.Command{
		Use:   "replay <script.yaml>",
		Short: "Play a scripted conversation through a session",
		Long: `Replay loads a YAML script of timed inbound events and plays it through a
fresh session. By default the clock is virtual and the replay finishes
instantly; --realtime follows the wall clock.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := replay.Play(cmd.Context(), args[0], realtime,
				replay.WithSessionConfig(root.cfg.Session))
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), res, format)
		},
	}
	cmd.Flags().BoolVar(&realtime, "realtime", false, "follow the wall clock instead of a virtual one")
	cmd.Flags().StringVarP(&format, "output", "o", "table", "output format (table, yaml, json)")
	return cmd
}

func writeResult(out io.Writer, res *replay.Result, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		return writeResultTable(out, res)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func writeResultTable(out io.Writer, res *replay.Result) error {
	rows := make([][]string, 0, len(res.Events))
	for _, ev := range res.Events {
		rows = append(rows, []string{
			"+" + ev.Timestamp.Sub(res.Start).String(),
			string(ev.Type),
			ev.Subject,
			ev.Detail,
			formatMetadata(ev.Metadata),
		})
	}
	if err := writeTable(out, []string{"AT", "EVENT", "SUBJECT", "DETAIL", "META"}, rows); err != nil {
		return err
	}

	f := res.Final
	fmt.Fprintln(out)
	return writeTable(out, nil, [][]string{
		{"connection", f.Connection},
		{"mode", string(f.Mode)},
		{"draft", f.Draft},
		{"can send", formatYesNo(f.CanSend)},
		{"typing", f.TypingText},
		{"notifications", fmt.Sprint(len(f.Notifications))},
		{"reply", f.ReplyPreview},
		{"visible", fmt.Sprintf("%d/%d", f.Visible, f.Messages)},
		{"deliveries", fmt.Sprint(len(res.Deliveries))},
		{"leaked timers", fmt.Sprint(res.LeakedTimers)},
	})
}

func formatMetadata(meta map[string]string) string {
	if len(meta) == 0 {
		return ""
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+meta[k])
	}
	return strings.Join(parts, " ")
}
