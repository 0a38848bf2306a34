package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/armatrix/agent-delegation-go/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect worker catalogs",
}

var catalogListCmd = &cobra.Command{
	Use:   "list [dir...]",
	Short: "List the workers declared in catalog directories",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, s, err := loadSettings()
		if err != nil {
			return err
		}
		entries, err := catalog.Load(catalogDirs(args, s)...)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(out, mutedStyle.Render("No workers found."))
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, headerStyle.Render("ID")+"\t"+headerStyle.Render("ROLE")+"\t"+
			headerStyle.Render("TOOLS")+"\t"+headerStyle.Render("SOURCE"))
		for i := range entries {
			def := entries[i].Definition()
			tools := strings.Join(def.Tools, ",")
			if tools == "" {
				tools = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", def.ID, def.Role, tools, mutedStyle.Render(entries[i].Path))
		}
		return w.Flush()
	},
}

var catalogSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of a catalog entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := catalog.Schema()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	catalogCmd.AddCommand(catalogListCmd, catalogSchemaCmd)
}
