package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kjstillabower/project-tracker-service/internal/structure"
)

var errAborted = errors.New("aborted")

func structureCmd(g *globals) *cobra.Command {
	c := &cobra.Command{
		Use:   "structure",
		Short: "Check the project layout against its manifest",
	}
	c.AddCommand(structureCheckCmd(g))
	c.AddCommand(structureGenerateCmd(g))
	c.AddCommand(structureBackupsCmd(g))
	c.AddCommand(structureRestoreCmd(g))
	c.AddCommand(structureReportCmd(g))
	return c
}

func printLog(out io.Writer, log *structure.Log) {
	fmt.Fprint(out, log.String())
}

func structureCheckCmd(g *globals) *cobra.Command {
	var fix, yes bool

	c := &cobra.Command{
		Use:   "check",
		Short: "Report missing and undeclared entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			tool, err := g.tool()
			if err != nil {
				return err
			}
			log := tool.NewLog()
			report, err := tool.Check(log)
			printLog(out, log)
			if err != nil {
				return err
			}
			if !fix || report.Clean() {
				return nil
			}

			n := len(report.Actions())
			if !yes && !confirm(cmd.InOrStdin(), out, fmt.Sprintf("Apply %d change(s)? Orphans are backed up first. [y/N] ", n), "y", true) {
				fmt.Fprintln(out, "No changes made.")
				return nil
			}
			fixLog := tool.NewLog()
			res, err := tool.Apply(fixLog, report)
			printLog(out, fixLog)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Created %d, removed %d, failed %d (backup %s)\n", res.Created, res.Removed, res.Failed, res.Backup)
			if res.Failed > 0 {
				return fmt.Errorf("%d repair action(s) failed", res.Failed)
			}
			return nil
		},
	}

	c.Flags().BoolVar(&fix, "fix", false, "repair the drift after the check")
	c.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return c
}

func structureGenerateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Write the manifest from the current layout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tool, err := g.tool()
			if err != nil {
				return err
			}
			log := tool.NewLog()
			_, err = tool.Generate(log)
			printLog(cmd.OutOrStdout(), log)
			return err
		},
	}
}

func structureBackupsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "List backup sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			tool, err := g.tool()
			if err != nil {
				return err
			}
			names, err := tool.ListBackups()
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintln(out, "No backups found.")
				return nil
			}
			for _, n := range names {
				fmt.Fprintln(out, n)
			}
			return nil
		},
	}
}

func structureRestoreCmd(g *globals) *cobra.Command {
	var files string

	c := &cobra.Command{
		Use:   "restore <backup>",
		Short: "Copy files from a backup session back into place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			tool, err := g.tool()
			if err != nil {
				return err
			}
			sel, err := structure.ParseSelection(files)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("files") {
				listed, err := tool.BackupFiles(args[0])
				if err != nil {
					return err
				}
				for _, f := range listed {
					fmt.Fprintf(out, "%d. %s\n", f.Index, f.Original)
				}
			}
			log := tool.NewLog()
			n, err := tool.Restore(log, args[0], sel)
			printLog(out, log)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d file(s) restored\n", n)
			return nil
		},
	}

	c.Flags().StringVar(&files, "files", "all", `files to restore: "all" or 1-based numbers such as 1,3`)
	return c
}

func structureReportCmd(g *globals) *cobra.Command {
	var tree bool

	c := &cobra.Command{
		Use:   "report",
		Short: "Summarize folders, file types and JSON documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			tool, err := g.tool()
			if err != nil {
				return err
			}
			log := tool.NewLog()
			a, err := tool.Report(log)
			printLog(out, log)
			if err != nil {
				return err
			}
			fmt.Fprint(out, a.Summary())
			if tree {
				fmt.Fprint(out, structure.FormatTree(a.Structure))
			}
			return nil
		},
	}

	c.Flags().BoolVar(&tree, "tree", false, "append the scanned layout")
	return c
}
