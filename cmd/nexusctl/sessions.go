package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	sessionsCmd := &cobra.Command{Use: "sessions", Short: "Session operations"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recently updated first",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet("/api/sessions")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	sessionsCmd.AddCommand(listCmd)

	getCmd := &cobra.Command{
		Use:   "get SESSION_ID",
		Short: "Get a session by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet("/api/sessions/" + args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	sessionsCmd.AddCommand(getCmd)

	var name, genre, setting, style string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]string{}
			if name != "" {
				payload["name"] = name
			}
			if genre != "" {
				payload["genre"] = genre
			}
			if setting != "" {
				payload["setting"] = setting
			}
			if style != "" {
				payload["style"] = style
			}
			data, err := doPostJSON("/api/sessions", payload)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	createCmd.Flags().StringVarP(&name, "name", "n", "", "Session name")
	createCmd.Flags().StringVarP(&genre, "genre", "g", "", "Genre")
	createCmd.Flags().StringVarP(&setting, "setting", "s", "", "Setting")
	createCmd.Flags().StringVar(&style, "style", "", "Narrative style")
	sessionsCmd.AddCommand(createCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete SESSION_ID",
		Short: "Delete a session permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doDelete("/api/sessions/" + args[0])
		},
	}
	sessionsCmd.AddCommand(deleteCmd)

	var outFile string
	exportCmd := &cobra.Command{
		Use:   "export SESSION_ID",
		Short: "Export the session chronicle as markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet("/api/sessions/" + args[0] + "/export")
			if err != nil {
				return err
			}
			if outFile != "" {
				return os.WriteFile(outFile, data, 0o644)
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	exportCmd.Flags().StringVarP(&outFile, "out", "o", "", "Write to file instead of stdout")
	sessionsCmd.AddCommand(exportCmd)

	rootCmd.AddCommand(sessionsCmd)
}
