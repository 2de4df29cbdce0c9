package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Davincible/erasure/pkg/bitmatrix"
	"github.com/Davincible/erasure/pkg/coding"
	"github.com/Davincible/erasure/pkg/config"
	"github.com/Davincible/erasure/pkg/fragmentstore"
	"github.com/Davincible/erasure/pkg/galois"
	"github.com/Davincible/erasure/pkg/schedule"
)

// NewInspectCommand creates the inspect command
func NewInspectCommand() *cobra.Command {
	var (
		storePath   string
		verify      bool
		showWeights bool
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "inspect [set-id-or-name]",
		Short: "List fragment sets or show details of one",
		Long: `Without arguments, list all fragment sets in the store. With a set
ID or name, show its coding parameters and per-fragment status.

Examples:
  # List everything
  erasure inspect

  # Check one set, verifying fragment digests
  erasure inspect backup.tar --verify

  # Show the XOR cost of the coding matrix
  erasure inspect backup.tar --weights`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cm, err := config.NewConfigManager()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if storePath == "" {
				storePath = cm.GetConfig().Storage.DefaultPath
			}

			store, err := fragmentstore.NewStore(expandHome(storePath))
			if err != nil {
				return err
			}

			if len(args) == 0 {
				return listSets(store, jsonOutput)
			}

			set, err := findFragmentSet(store, args[0])
			if err != nil {
				return err
			}

			if verify {
				report, err := store.VerifyFragments(set.ID)
				if err != nil {
					return err
				}
				if jsonOutput {
					return json.NewEncoder(os.Stdout).Encode(report)
				}
				printVerification(report)
				return nil
			}

			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(set)
			}
			printSet(set)
			if showWeights || cm.GetConfig().UI.ShowWeights {
				return printWeights(set)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&storePath, "store", "s", "", "Fragment store directory")
	cmd.Flags().BoolVar(&verify, "verify", false, "Verify fragment digests")
	cmd.Flags().BoolVar(&showWeights, "weights", false, "Show XOR cost of the coding matrix")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")

	return cmd
}

func listSets(store *fragmentstore.Store, jsonOutput bool) error {
	sets := store.ListFragmentSets(nil)
	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(sets)
	}

	if len(sets) == 0 {
		fmt.Println("No fragment sets in store.")
		return nil
	}

	cyan := color.New(color.FgCyan, color.Bold)
	for _, set := range sets {
		cyan.Printf("%s  %s\n", set.ID, set.Name)
		fmt.Printf("    %d+%d over GF(2^%d), %s/%s, %s, created %s\n",
			set.DataFragments, set.ParityFragments, set.WordSize,
			set.Method, set.Technique,
			humanize.Bytes(uint64(set.OriginalSize)),
			humanize.Time(set.Created))
	}
	return nil
}

func printSet(set *fragmentstore.FragmentSet) {
	cyan := color.New(color.FgCyan, color.Bold)

	cyan.Printf("%s\n", set.Name)
	fmt.Printf("ID:          %s\n", set.ID)
	if set.Description != "" {
		fmt.Printf("Description: %s\n", set.Description)
	}
	fmt.Printf("Coding:      %d data + %d parity over GF(2^%d)\n",
		set.DataFragments, set.ParityFragments, set.WordSize)
	fmt.Printf("Method:      %s (%s technique)\n", set.Method, set.Technique)
	fmt.Printf("Size:        %s in %s fragments\n",
		humanize.Bytes(uint64(set.OriginalSize)),
		humanize.Bytes(uint64(set.FragmentLength)))
	fmt.Printf("Created:     %s\n", set.Created.Format("2006-01-02 15:04:05"))
	if len(set.Tags) > 0 {
		fmt.Printf("Tags:        %v\n", set.Tags)
	}

	fmt.Println("\nFragments:")
	for _, frag := range set.Fragments {
		kind := "data"
		if frag.Index >= set.DataFragments {
			kind = "parity"
		}
		fmt.Printf("  %3d  %-6s  %-10s  %s\n",
			frag.Index, kind, statusColored(frag.Status), frag.Filename)
	}
}

func statusColored(status fragmentstore.FragmentStatus) string {
	switch status {
	case fragmentstore.FragmentStatusAvailable:
		return color.GreenString(string(status))
	case fragmentstore.FragmentStatusMissing, fragmentstore.FragmentStatusCorrupted:
		return color.RedString(string(status))
	default:
		return color.YellowString(string(status))
	}
}

func printVerification(report *fragmentstore.VerificationReport) {
	fmt.Printf("Verified %d fragments: %d valid\n", report.TotalCount, report.ValidCount)
	for _, result := range report.Results {
		if !result.IsValid {
			fmt.Printf("  %3d  %s  %s\n", result.Index, statusColored(result.Status), result.Error)
		}
	}
	if report.IsRecoverable {
		printSuccess("Fragment set is recoverable")
	} else {
		red := color.New(color.FgRed, color.Bold)
		red.Println("✗ Too many fragments lost; the set is NOT recoverable")
	}
}

// printWeights rebuilds the coding matrix and reports its XOR cost with
// and without the compiled schedule
func printWeights(set *fragmentstore.FragmentSet) error {
	f, err := galois.NewField(set.WordSize)
	if err != nil {
		return err
	}
	cm, err := coding.Build(f, coding.Method(set.Method),
		set.DataFragments, set.ParityFragments)
	if err != nil {
		return err
	}

	bm := bitmatrix.New(cm.CodingRows())
	s := schedule.Compile(bm)

	fmt.Println("\nXOR cost of the coding matrix:")
	fmt.Printf("  Bit matrix ones:   %d\n", bm.Weight())
	fmt.Printf("  Naive XOR count:   %d\n", s.NaiveXORCount())
	fmt.Printf("  Scheduled XORs:    %d\n", s.XORCount())
	if naive := s.NaiveXORCount(); naive > 0 {
		fmt.Printf("  Schedule saving:   %.1f%%\n",
			100*float64(naive-s.XORCount())/float64(naive))
	}
	return nil
}
