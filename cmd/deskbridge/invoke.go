package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/waabox/deskbridge/internal/app"
	"github.com/waabox/deskbridge/internal/bridge"
)

var (
	invokeArgs []string
	invokeJSON string
)

func init() {
	rootCmd.AddCommand(cmdInvoke)

	cmdInvoke.Flags().StringArrayVar(&invokeArgs, "arg", nil, "Argument as key=value; JSON values are decoded, anything else is a string (repeatable)")
	cmdInvoke.Flags().StringVar(&invokeJSON, "json", "", "Arguments as a JSON object; --arg entries are applied on top")
}

var cmdInvoke = &cobra.Command{
	Use:   "invoke <command>",
	Short: "Dispatch one command and print the response",
	Long:  "Runs a single command through the same router the bridge uses and prints the response as JSON. Events published while the command runs are printed first.",
	Example: `  deskbridge invoke path_kind --arg path=/tmp
  deskbridge invoke plugin:sql|select --json '{"db":"sqlite:app.db","query":"SELECT 1"}'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := buildArgs(invokeJSON, invokeArgs)
		if err != nil {
			return err
		}

		a, err := app.New(cfg, logger, app.Options{Version: version})
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		unsubscribe := a.Hub().Subscribe(func(ev bridge.Event) {
			_ = printJSON(out, ev)
		})
		defer unsubscribe()

		resp := a.Router().Dispatch(cmd.Context(), bridge.Request{ID: uuid.NewString(), Cmd: args[0], Args: raw})
		if err := printJSON(out, resp); err != nil {
			return err
		}
		if !resp.OK {
			return errors.New(resp.Error)
		}
		return nil
	},
}

// buildArgs merges a JSON object with key=value pairs into one args object.
func buildArgs(base string, pairs []string) (json.RawMessage, error) {
	args := map[string]any{}
	if strings.TrimSpace(base) != "" {
		if err := json.Unmarshal([]byte(base), &args); err != nil {
			return nil, fmt.Errorf("--json must be a JSON object: %w", err)
		}
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --arg %q: want key=value", pair)
		}
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err == nil {
			args[key] = decoded
		} else {
			args[key] = value
		}
	}
	if len(args) == 0 {
		return nil, nil
	}
	return json.Marshal(args)
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
