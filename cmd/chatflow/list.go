package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/aretw0/chatflow/internal/catalog"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded workflows",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := catalog.Load(cfg.Workflows)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tVERSION\tSTEPS\tSELECTABLE\tON")
		for _, wf := range c.All() {
			on := make([]string, 0, len(wf.On))
			for t := range wf.On {
				on = append(on, string(t))
			}
			sort.Strings(on)
			fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%s\n", wf.Name, wf.Version, len(wf.Steps), wf.Selectable(), strings.Join(on, ","))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
