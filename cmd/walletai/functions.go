package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"walletai/internal/config"
	"walletai/internal/functions"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var functionsYAML bool

var functionsCmd = &cobra.Command{
	Use:   "functions",
	Short: "List the HTTP functions the agent can call",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		fns, err := loadFunctions(cfg.Functions)
		if err != nil {
			return err
		}

		if functionsYAML {
			return writeFunctionsYAML(fns)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tMETHOD\tURL\tARGS")
		for _, fn := range fns {
			names := make([]string, len(fn.Args))
			for i, a := range fn.Args {
				names[i] = a.Name + ":" + a.Type
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", fn.Name, fn.Config.Method, fn.Config.URL, strings.Join(names, ", "))
		}
		return w.Flush()
	},
}

func init() {
	functionsCmd.Flags().BoolVar(&functionsYAML, "yaml", false, "print the functions as a descriptor file for [functions] file")
}

// writeFunctionsYAML prints fns in the format functions.LoadFile reads, with
// the resolved API key replaced by its variable.
func writeFunctionsYAML(fns []functions.Function) error {
	out := make([]functions.Function, len(fns))
	for i, fn := range fns {
		headers := make(map[string]string, len(fn.Config.Headers))
		for k, v := range fn.Config.Headers {
			if strings.EqualFold(k, "Authorization") {
				v = "Bearer $API_KEY"
			}
			headers[k] = v
		}
		fn.Config.Headers = headers
		out[i] = fn
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(struct {
		Functions []functions.Function `yaml:"functions"`
	}{out})
}
