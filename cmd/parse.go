package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ibimina/ingest-core/internal/adapter"
	"github.com/ibimina/ingest-core/internal/model"
)

var (
	parseType     string
	parseCountry  string
	parseProvider string
)

var parseCmd = &cobra.Command{
	Use:   "parse [input]",
	Short: "Parse one statement row or SMS body into a normalized transaction",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := strings.Join(args, " ")

		reg, err := initRegistry()
		if err != nil {
			return err
		}

		typ := adapter.Type(parseType)
		if parseType != "" && !typ.Valid() {
			return eris.Errorf("unknown adapter type %q (want statement or sms)", parseType)
		}

		var result model.ParseResult
		if parseCountry != "" || parseProvider != "" {
			if parseCountry == "" || parseProvider == "" || !typ.Valid() {
				return eris.New("targeted parse requires --country, --provider and --type together")
			}
			a := reg.GetAdapter(parseCountry, parseProvider, typ)
			if a == nil {
				return eris.Errorf("no adapter registered for %s/%s/%s", parseCountry, parseProvider, typ)
			}
			result = a.Parse(input)
		} else {
			result = reg.AutoParse(input, typ)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	parseCmd.Flags().StringVar(&parseType, "type", "", "restrict to one adapter type: statement or sms")
	parseCmd.Flags().StringVar(&parseCountry, "country", "", "ISO-3166 alpha-3 country code for a targeted parse")
	parseCmd.Flags().StringVar(&parseProvider, "provider", "", "provider name for a targeted parse")
	rootCmd.AddCommand(parseCmd)
}
