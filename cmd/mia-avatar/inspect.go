package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fulopkrisztian-prog/Mia/internal/rig"
)

func inspectCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect <model>",
		Short: "Show the bones and expressions a model file exposes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := rig.LoadFile(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(h.Pose())
			}

			fmt.Printf("Name:        %s\n", h.Name)
			fmt.Printf("Format:      %s\n", h.Format)
			fmt.Printf("Facing:      %.2f rad\n", h.Facing())
			fmt.Printf("Bones:       %d/%d\n", h.BoneCount(), len(rig.Bones))
			for _, b := range rig.Bones {
				mark := "-"
				if _, ok := h.Joint(b); ok {
					mark = "+"
				}
				fmt.Printf("  %s %s\n", mark, b)
			}
			names := h.ExpressionNames()
			sort.Strings(names)
			fmt.Printf("Expressions: %d\n", len(names))
			if len(names) > 0 {
				fmt.Printf("  %s\n", strings.Join(names, ", "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the rest pose as JSON")
	return cmd
}
