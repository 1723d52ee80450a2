package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const configFile = ".gamemeta.yaml"

func init() {
	configCmd.AddCommand(configShowCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create configuration.",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active configuration.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if outputCfg.JSON {
			PrintResult(cfg)
			return nil
		}
		data, err := cfg.Marshal()
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Println("# Active Configuration")
		fmt.Println(string(data))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example " + configFile + " in the current directory.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configFile); err == nil {
			return fmt.Errorf("config file already exists at %s", configFile)
		}

		example := `# gamemeta configuration
db_path: gamemeta.db

# Optional YAML file of extra platform labels: {mappings: {label: id}}
# platforms_file: platforms.yaml

http:
  timeout: 30s
  requests_per_second: 2
  burst: 2
  cloudflare_bypass: false
  # user_agents: ["Mozilla/5.0 ..."]

import:
  workers: 8
  policy: append   # append or replace
  max_pages: 50
  max_results: 5000
  similarity_threshold: 0.92

sources:
  barcode:
    base_url: ""
  wiki:
    api_url: https://en.wikipedia.org/w/api.php
    platform_delimiter: ";"
  igdb:
    client_id: ""      # or IGDB_CLIENT_ID
    client_secret: ""  # or IGDB_CLIENT_SECRET

logging:
  level: info   # debug, info, warn, error
  format: text  # text or json
`
		if err := os.WriteFile(configFile, []byte(example), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}

		if outputCfg.JSON {
			PrintResult(map[string]string{"path": configFile, "status": "created"})
		} else {
			PrintInfo("Created config file: %s\n", configFile)
		}
		return nil
	},
}
