package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/converse/internal/capability"
	"github.com/user/converse/pkg/chat"
)

func init() {
	rootCmd.AddCommand(modelsCmd)
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List known model families and their capabilities",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := capability.NewRegistry()
		families := registry.Families()
		sort.Strings(families)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FAMILY\tTOOL CHOICE\tFORCED TOOL\tMODES\tSTRICT ORDERING\tQUIRKS")
		for _, f := range families {
			p, _ := registry.Get(f)
			quirks := "-"
			if p.StringlyTypedNumbers {
				quirks = "numeric args as strings"
			}
			fmt.Fprintf(w, "%s\t%v\t%v\t%s\t%v\t%s\n",
				p.Family,
				p.SupportsToolChoice,
				p.SupportsForcedToolUse,
				modeList(p),
				p.MessageOrderingStrict,
				quirks,
			)
		}
		return w.Flush()
	},
}

func modeList(p chat.CapabilityProfile) string {
	if !p.SupportsToolChoice {
		return "-"
	}
	var modes []string
	for _, m := range []chat.ToolChoiceMode{chat.ToolChoiceAuto, chat.ToolChoiceAny, chat.ToolChoiceTool} {
		if p.ToolChoiceModes[m] {
			modes = append(modes, string(m))
		}
	}
	return strings.Join(modes, ",")
}
