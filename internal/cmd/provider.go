package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/blueprint/internal/provider"
	"github.com/felixgeelhaar/blueprint/internal/tui"
)

const defaultProviderConfigPath = "providers.yaml"

var providerCmd = &cobra.Command{
	Use:   "provider",
	Short: "Manage AI providers",
	Long: `Manage the AI providers 'blueprint export --ai' can use.

Providers are read from providers.yaml when it exists. Without it, the
provider section of blueprint.yaml is used.`,
}

var providerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured providers",
	Long:  `List all configured providers and whether they are enabled.`,
	RunE:  runProviderList,
}

var providerDoctorCmd = &cobra.Command{
	Use:     "doctor [provider-name]",
	Aliases: []string{"health"},
	Short:   "Check provider health and configuration",
	Long:    `Check the health status of providers. If no provider name is specified, checks all enabled providers.`,
	RunE:    runProviderDoctor,
}

var providerInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create providers.yaml",
	Long: `Write a providers.yaml with OpenAI enabled and Gemini disabled. API keys are
referenced as ${OPENAI_API_KEY} and ${GEMINI_API_KEY}, never stored.`,
	RunE: runProviderInit,
}

var (
	providerConfigPath string
	providerForce      bool
)

func init() {
	providerCmd.PersistentFlags().StringVar(&providerConfigPath, "providers", defaultProviderConfigPath, "providers configuration file")
	providerInitCmd.Flags().BoolVarP(&providerForce, "force", "f", false, "overwrite an existing file")

	providerCmd.AddCommand(providerListCmd)
	providerCmd.AddCommand(providerDoctorCmd)
	providerCmd.AddCommand(providerInitCmd)
	rootCmd.AddCommand(providerCmd)
}

// loadProviders reads providers.yaml, or builds a single-provider
// configuration from blueprint.yaml when the file does not exist.
func loadProviders() (*provider.ProvidersConfig, bool, error) {
	if _, err := os.Stat(providerConfigPath); errors.Is(err, fs.ErrNotExist) {
		settings := currentConfig().Provider.Settings()
		pc := settings.Config()
		pc.Enabled = settings.APIKey != ""
		return &provider.ProvidersConfig{
			Providers: []provider.ProviderConfig{*pc},
			Default:   pc.Name,
		}, false, nil
	}
	cfg, err := provider.LoadProvidersConfig(providerConfigPath)
	if err != nil {
		return nil, true, ProviderLoadError(providerConfigPath, err)
	}
	return cfg, true, nil
}

func runProviderList(cmd *cobra.Command, args []string) error {
	cfg, fromFile, err := loadProviders()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !fromFile {
		fmt.Fprintf(out, "No %s found; showing the provider from the blueprint config.\n\n", providerConfigPath)
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tENABLED\tDEFAULT\tMODEL") //nolint:errcheck
	fmt.Fprintln(w, "----\t----\t-------\t-------\t-----") //nolint:errcheck
	for _, p := range cfg.Providers {
		enabled := "no"
		if p.Enabled {
			enabled = "yes"
		}
		def := ""
		if p.Name == cfg.Default {
			def = "*"
		}
		model, _ := p.Config["model"].(string)
		if model == "" {
			model = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.Name, p.Type, enabled, def, model) //nolint:errcheck
	}
	return w.Flush()
}

func runProviderDoctor(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadProviders()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	registry, err := provider.LoadRegistryFromProvidersConfig(ctx, cfg)
	if err != nil {
		return NewErrorWithSuggestions(
			"No provider could be loaded",
			err,
			"Set BLUEPRINT_API_KEY, or the key variables referenced in "+providerConfigPath,
			"Enable a provider: blueprint provider init",
		)
	}
	defer registry.CloseAll() //nolint:errcheck

	names := args
	if len(names) == 0 {
		names = registry.List()
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tSTATUS\tMESSAGE") //nolint:errcheck
	fmt.Fprintln(w, "--------\t------\t-------") //nolint:errcheck

	unhealthy := 0
	for _, name := range names {
		prov, getErr := registry.Get(name)
		if getErr != nil {
			unhealthy++
			fmt.Fprintf(w, "%s\t❌ ERROR\t%v\n", name, getErr) //nolint:errcheck
			continue
		}

		if healthErr := prov.Health(ctx); healthErr != nil {
			unhealthy++
			fmt.Fprintf(w, "%s\t❌ UNHEALTHY\t%v\n", name, healthErr) //nolint:errcheck
		} else {
			info := prov.GetInfo()
			fmt.Fprintf(w, "%s\t✅ HEALTHY\t%s (%s)\n", name, info.Description, info.Model) //nolint:errcheck
		}
	}
	w.Flush() //nolint:errcheck

	if unhealthy > 0 {
		return fmt.Errorf("%d of %d providers unhealthy", unhealthy, len(names))
	}
	return nil
}

func runProviderInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(providerConfigPath); err == nil && !providerForce {
		if !tui.ShouldPrompt() {
			return fmt.Errorf("provider config already exists at %s (use --force to overwrite)", providerConfigPath)
		}
		ok, err := tui.PromptForConfirmation(fmt.Sprintf("%s exists. Overwrite?", providerConfigPath), false)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	if err := provider.SaveProvidersConfig(provider.DefaultProvidersConfig(), providerConfigPath); err != nil {
		return fmt.Errorf("failed to write provider config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Created provider configuration at %s\n", providerConfigPath)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Set OPENAI_API_KEY (or enable gemini and set GEMINI_API_KEY)")
	fmt.Fprintln(out, "  2. Run 'blueprint provider doctor' to check provider status")
	return nil
}
