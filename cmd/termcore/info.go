package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/termcore/internal/config"
	"github.com/dshills/termcore/internal/pty"
	"github.com/dshills/termcore/internal/session"
	"github.com/dshills/termcore/internal/theme"
)

func newShellsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "shells",
		Short: "List shells available on this host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			caps := pty.HostCapabilities()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), caps)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tPATH\tDESCRIPTION")
			for _, s := range caps.Shells {
				name := s.Name
				if s.Default {
					name += " *"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", name, s.Path, s.Description)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nresize=%t job-control=%t max=%dx%d\n",
				caps.Resize, caps.JobControl, caps.MaxCols, caps.MaxRows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func newSessionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect saved sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved sessions, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			sums, err := store.List()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCREATED\tSTATE\tCOMMANDS")
			for _, s := range sums {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", s.ID, s.Name, s.CreatedAt.Local().Format(time.DateTime), s.State, s.Commands)
			}
			return tw.Flush()
		},
	}

	var asJSON bool
	show := &cobra.Command{
		Use:   "show <id|file>",
		Short: "Show a saved session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			s, err := store.Load(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), s)
			}
			return printSession(cmd.OutOrStdout(), s)
		},
	}
	show.Flags().BoolVar(&asJSON, "json", false, "Print the stored document")

	cmd.AddCommand(list, show)
	return cmd
}

func (a *app) openStore() (session.Store, func(), error) {
	store, err := session.OpenStore(a.cfg.Session, a.cfg.SessionDir())
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() {}
	if c, ok := store.(io.Closer); ok {
		closeStore = func() { _ = c.Close() }
	}
	return store, closeStore, nil
}

func printSession(w io.Writer, s *session.Session) error {
	st := s.Statistics
	fmt.Fprintf(w, "%s  %s\n", s.ID, s.Name)
	fmt.Fprintf(w, "state:     %s\n", s.State)
	fmt.Fprintf(w, "created:   %s\n", s.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "duration:  %s\n", s.Duration.Round(time.Second))
	fmt.Fprintf(w, "directory: %s\n", s.WorkingDirectory)
	fmt.Fprintf(w, "commands:  %d (%d ok, %d failed, avg %s)\n", st.Executed, st.Successful, st.Failed, st.AvgDuration.Round(time.Millisecond))
	if top := st.TopCommands(5); len(top) > 0 {
		fmt.Fprintf(w, "top:       %s\n", strings.Join(top, ", "))
	}

	if len(s.Commands) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tEXIT\tDURATION\tCOMMAND")
		for i, c := range s.Commands {
			exit := "-"
			if c.ExitCode != nil {
				exit = fmt.Sprint(*c.ExitCode)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i, exit, c.Duration.Round(time.Millisecond), c.Text)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(s.Bookmarks) > 0 {
		fmt.Fprintln(w, "\nbookmarks:")
		for _, b := range s.Bookmarks {
			fmt.Fprintf(w, "  [%d] %s", b.CommandIndex, b.Name)
			if len(b.Tags) > 0 {
				fmt.Fprintf(w, " (%s)", strings.Join(b.Tags, ", "))
			}
			fmt.Fprintln(w)
		}
	}
	return nil
}

func newThemesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "themes",
		Short: "List color themes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			current, err := resolveTheme(a.cfg.Theme, "")
			if err != nil {
				return err
			}
			for _, name := range theme.Names() {
				marker := " "
				if name == current.Name {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, name)
			}
			return nil
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := config.Encode(a.cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", a.settingsPath())
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
