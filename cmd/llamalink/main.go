// Command llamalink diagnoses backend selection for the dynamically
// loaded llama.cpp engine: which devices the host exposes, which
// prebuilt variants are on disk, and which one the loader would pick.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/llamalink/llamalink/discover"
	"github.com/llamalink/llamalink/envconfig"
	"github.com/llamalink/llamalink/format"
	"github.com/llamalink/llamalink/llama"
	"github.com/llamalink/llamalink/llm"
	"github.com/llamalink/llamalink/logutil"
)

func main() {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))

	if err := newCLI().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newCLI() *cobra.Command {
	root := &cobra.Command{
		Use:           "llamalink",
		Short:         "Backend selection diagnostics for the llama.cpp loader",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "info",
			Short: "Show detected devices and environment configuration",
			RunE:  infoHandler,
		},
		&cobra.Command{
			Use:   "variants",
			Short: "List on-disk backend variants and their per-device try order",
			RunE:  variantsHandler,
		},
		&cobra.Command{
			Use:   "load",
			Short: "Attempt the full backend selection and load",
			RunE:  loadHandler,
		},
	)
	return root
}

func newTable(headers []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(headers)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

func infoHandler(cmd *cobra.Command, args []string) error {
	fmt.Printf("strategy: %s\n\n", discover.ActiveStrategy())

	table := newTable([]string{"LIBRARY", "ID", "NAME", "DETAIL", "TOTAL", "FREE"})
	for _, device := range discover.Devices() {
		detail := device.Capability.String()
		if device.Library != "cpu" {
			detail = fmt.Sprintf("compute %s driver %s", device.Compute, device.Driver())
		}
		table.Append([]string{
			device.Library,
			device.ID,
			device.Name,
			detail,
			format.HumanBytes2(device.TotalMemory),
			format.HumanBytes2(device.FreeMemory),
		})
	}
	table.Render()

	fmt.Println()
	envVars := envconfig.AsMap()
	keys := make([]string, 0, len(envVars))
	for k := range envVars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s=%v\n", k, envVars[k].Value)
	}
	return nil
}

func variantsHandler(cmd *cobra.Command, args []string) error {
	base, err := llm.BasePath()
	if err != nil {
		return err
	}
	catalog := llm.AvailableVariants(base)
	fmt.Printf("base: %s\n", base)
	if len(catalog) == 0 {
		fmt.Println("no backend variants found")
		return nil
	}

	names := make([]string, len(catalog))
	for i, v := range catalog {
		names[i] = v.String()
	}
	sort.Strings(names)
	fmt.Printf("on disk: %s\n\n", strings.Join(names, ", "))

	table := newTable([]string{"DEVICE", "TRY ORDER"})
	for _, device := range discover.Devices() {
		ranked, err := llm.RankedVariants(catalog, device)
		if err != nil {
			table.Append([]string{device.String(), "error: " + err.Error()})
			continue
		}
		order := make([]string, len(ranked))
		for i, v := range ranked {
			order[i] = v.String()
		}
		table.Append([]string{device.String(), strings.Join(order, " > ")})
	}
	table.Render()
	return nil
}

func loadHandler(cmd *cobra.Command, args []string) error {
	if err := llama.Init(); err != nil {
		return err
	}
	variant, err := llama.BackendVariant()
	if err != nil {
		return err
	}
	fmt.Printf("loaded backend variant %s (strategy %s)\n", variant, discover.ActiveStrategy())
	return nil
}
