package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pactflow/agreement"
	"pactflow/document"
)

func newRenderCmd() *cobra.Command {
	var (
		set        []string
		listFields bool
		strict     bool
	)
	cmd := &cobra.Command{
		Use:   "render <type>",
		Short: "Render an agreement template to stdout",
		Example: `  pactctl render rental --set ownerName=Cara --set tenantName=Alice
  pactctl render nda --fields`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := agreement.Type(args[0])
			if !kind.Valid() {
				return fmt.Errorf("unknown agreement type %q", args[0])
			}
			if listFields {
				for _, f := range document.Fields(string(kind)) {
					fmt.Fprintln(cmd.OutOrStdout(), f)
				}
				return nil
			}

			form := make(map[string]string, len(set))
			for _, kv := range set {
				key, value, ok := strings.Cut(kv, "=")
				if !ok || strings.TrimSpace(key) == "" {
					return fmt.Errorf("--set expects key=value, got %q", kv)
				}
				form[strings.TrimSpace(key)] = value
			}

			content, missing := document.Render(string(kind), form)
			if strict && len(missing) > 0 {
				return fmt.Errorf("missing fields: %s", strings.Join(missing, ", "))
			}
			fmt.Fprint(cmd.OutOrStdout(), content)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&set, "set", nil, "form value as key=value; repeatable")
	cmd.Flags().BoolVar(&listFields, "fields", false, "list the form fields the template reads")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when a placeholder has no value")
	return cmd
}
