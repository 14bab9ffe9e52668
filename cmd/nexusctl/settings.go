package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	settingsCmd := &cobra.Command{Use: "settings", Short: "Operator settings"}

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Show effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet("/api/settings")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	settingsCmd.AddCommand(getCmd)

	setCmd := &cobra.Command{
		Use:   "set KEY=VALUE [KEY=VALUE...]",
		Short: "Update settings fields (e.g. provider=openai modelName=gpt-4o)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Fetch, patch, save: the API replaces the whole settings object.
			data, err := doGet("/api/settings")
			if err != nil {
				return err
			}
			var current map[string]any
			if err := json.Unmarshal(data, &current); err != nil {
				return err
			}
			for _, arg := range args {
				key, value, err := splitAssignment(arg)
				if err != nil {
					return err
				}
				current[key] = coerceValue(value)
			}
			out, err := doPostJSON("/api/settings", current)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(out))
			return nil
		},
	}
	settingsCmd.AddCommand(setCmd)

	rootCmd.AddCommand(settingsCmd)
}

func splitAssignment(arg string) (string, string, error) {
	for i := 0; i < len(arg); i++ {
		if arg[i] == '=' {
			if i == 0 {
				break
			}
			return arg[:i], arg[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("expected KEY=VALUE, got %q", arg)
}

// coerceValue keeps booleans and numbers typed so the JSON body matches the
// settings schema.
func coerceValue(v string) any {
	switch v {
	case "true":
		return true
	case "false":
		return false
	}
	var n float64
	if err := json.Unmarshal([]byte(v), &n); err == nil {
		return n
	}
	return v
}
