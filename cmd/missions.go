package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"bepro/internal/mission"
	"bepro/internal/model"

	"github.com/spf13/cobra"
)

// missionsCmd generates and stores missions for a user.
var missionsCmd = &cobra.Command{
	Use:   "missions <user> <goal>",
	Short: "Generate, save and print learning missions for a user",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		u, err := a.resolveUser(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		goal := strings.Join(args[1:], " ")
		ms, err := a.feed.GenerateMissions(cmd.Context(), u.ID, goal)
		if err != nil {
			return err
		}
		printMissions(cmd.OutOrStdout(), ms)
		return nil
	},
}

// missionsParseCmd runs the mission parser over a saved model reply.
var missionsParseCmd = &cobra.Command{
	Use:   "parse <file|->",
	Short: "Parse tag-delimited mission text offline (debug)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			b   []byte
			err error
		)
		if args[0] == "-" {
			b, err = io.ReadAll(cmd.InOrStdin())
		} else {
			b, err = os.ReadFile(args[0])
		}
		if err != nil {
			return err
		}
		ms := mission.Parse(string(b))
		fmt.Fprintf(cmd.OutOrStdout(), "parsed %d missions\n", len(ms))
		printMissions(cmd.OutOrStdout(), ms)
		return nil
	},
}

func printMissions(w io.Writer, ms []model.Mission) {
	for i, m := range ms {
		fmt.Fprintf(w, "\n%d. %s [%s, %d XP]\n", i+1, m.Title, m.Difficulty, m.XP)
		if m.Description != "" {
			fmt.Fprintf(w, "   %s\n", m.Description)
		}
		if len(m.Tags) > 0 {
			fmt.Fprintf(w, "   tags: %s\n", strings.Join(m.Tags, ", "))
		}
	}
}

func init() {
	missionsCmd.AddCommand(missionsParseCmd)
	rootCmd.AddCommand(missionsCmd)
}
