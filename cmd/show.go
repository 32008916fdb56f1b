package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/mdq/internal/query"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "show <file>",
		Short:        "Print the resolved queries of a page",
		Long:         `Resolve the queries of one page without touching the cache and print them.`,
		Args:         cobra.ExactArgs(1),
		RunE:         runShow,
		SilenceUsage: true,
	}
}

func runShow(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, args, false)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.engine.ProcessFile(args[0])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s (%s)\n", res.Document.Route, res.Document.ID)

	for _, q := range res.Queries {
		status := "ok"
		switch {
		case q.Failed():
			status = q.Kind().String()
		case q.Compiled:
			status = "compiled"
		}

		fmt.Fprintf(w, "\n[%s] %s\n", q.ID, status)
		for _, line := range strings.Split(q.CompiledBody, "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}

	fmt.Fprintf(w, "\nbindings: %s\n", strings.Join(query.BindableIDs(res.IDs), ", "))
	return nil
}
