package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"kaiwa/src/persona"
)

// personasCmd lists the available persona profiles.
var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "List available persona profiles",
	Long:  `List embedded and user-defined persona profiles with their tone and traits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		profiles, err := persona.List()
		if err != nil {
			return fmt.Errorf("failed to list personas: %w", err)
		}

		for _, p := range profiles {
			fmt.Printf("%s — %s\n", p.Name(), p.Tone())
			if traits := p.Voice.Traits; len(traits) > 0 {
				names := make([]string, 0, len(traits))
				for name := range traits {
					names = append(names, name)
				}
				sort.Strings(names)
				parts := make([]string, 0, len(names))
				for _, name := range names {
					parts = append(parts, fmt.Sprintf("%s=%.1f", name, traits[name]))
				}
				fmt.Printf("  traits: %s\n", strings.Join(parts, " "))
			}
			if aliases := p.Metadata.Aliases; len(aliases) > 0 {
				fmt.Printf("  aliases: %s\n", strings.Join(aliases, ", "))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(personasCmd)
}
