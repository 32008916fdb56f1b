package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/mdq/internal/document"
	"github.com/Norgate-AV/mdq/internal/engine"
)

func newBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build [files...]",
		Short: "Resolve queries of markdown pages",
		Long: `Resolve the queries of the given pages, or of every page in the pages
directory when no files are given, and update the query cache.`,
		RunE:         runBuild,
		SilenceUsage: true,
	}
}

func runBuild(cmd *cobra.Command, args []string) error {
	for _, file := range args {
		if !document.IsDocument(file) {
			return fmt.Errorf("file must have %s extension: %s", document.Extension, file)
		}
	}

	s, err := openSession(cmd, args, true)
	if err != nil {
		return err
	}
	defer s.Close()

	var results []*engine.Result

	if len(args) == 0 {
		results, err = s.engine.ProcessDir(cmd.Context())
		if err != nil {
			return err
		}
	} else {
		for _, file := range args {
			res, err := s.engine.ProcessFile(file)
			if err != nil {
				return err
			}

			results = append(results, res)
		}
	}

	printResults(cmd.OutOrStdout(), results)
	return nil
}

func printResults(w io.Writer, results []*engine.Result) {
	failed := 0

	for _, res := range results {
		status := "resolved"
		if res.Cache != nil {
			status = res.Cache.Status.String()
		}

		fmt.Fprintf(w, "%-40s %-8s %d queries, %d errors\n", res.Document.Route, status, len(res.Queries), res.Errors())
		failed += res.Errors()
	}

	fmt.Fprintf(w, "%d pages, %d query errors\n", len(results), failed)
}
