package main

import (
	"fmt"
	"strings"
	"time"

	"stream-gateway/internal/client"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	gatewayURLKey = "gateway-url"
	apiKeyKey     = "api-key"
	timeoutKey    = "timeout"
	configKey     = "config"
)

// newRootCmd builds the command tree. Settings resolve flag > env
// (GATEWAYCTL_*) > config file > default.
func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:          "gatewayctl",
		Short:        "Operate a stream gateway over its HTTP API",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v)
		},
	}

	pf := root.PersistentFlags()
	pf.String(configKey, "", "config file (yaml)")
	pf.String(gatewayURLKey, "http://127.0.0.1:3000", "base URL of the gateway")
	pf.String(apiKeyKey, "", "credential sent as X-Api-Key")
	pf.Duration(timeoutKey, 10*time.Second, "per-request timeout")
	for _, k := range []string{configKey, gatewayURLKey, apiKeyKey, timeoutKey} {
		_ = v.BindPFlag(k, pf.Lookup(k))
	}

	v.SetEnvPrefix("GATEWAYCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	newClient := func() (*client.Client, error) {
		return client.New(v.GetString(gatewayURLKey),
			client.WithAPIKey(v.GetString(apiKeyKey)),
			client.WithTimeout(v.GetDuration(timeoutKey)),
		)
	}

	root.AddCommand(
		newRegisterCmd(newClient),
		newBitrateCmd(newClient),
		newSessionCmd(newClient),
		newStreamCmd(newClient),
		newVideoCmd(newClient),
	)
	return root
}

func initConfig(v *viper.Viper) error {
	path := v.GetString(configKey)
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}
