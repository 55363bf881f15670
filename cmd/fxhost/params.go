package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "List host parameters exposed by the module and the pitch stage",
	RunE:  runParams,
}

func init() {
	rootCmd.AddCommand(paramsCmd)
}

func runParams(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, cmd, "")
	if err != nil {
		return err
	}
	defer func() { _ = s.Close(ctx) }()

	if err := s.engine.ModuleErr(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "module unavailable: %v\n", err)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tMIN\tMAX\tDEFAULT\tVALUE\tINDEX")
	for _, p := range s.engine.Parameters() {
		d := p.Descriptor()
		index := "native"
		if !p.Native() {
			index = fmt.Sprint(d.Index)
		}
		fmt.Fprintf(tw, "%s\t%s\t%g\t%g\t%g\t%g\t%s\n",
			p.ID(), d.Kind, d.Min, d.Max, d.Init, p.Plain(), index)
	}
	return tw.Flush()
}
