package cli

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Davincible/erasure/internal/validation"
	"github.com/Davincible/erasure/pkg/codec"
	"github.com/Davincible/erasure/pkg/config"
	"github.com/Davincible/erasure/pkg/fragmentstore"
)

// NewDecodeCommand creates the decode command
func NewDecodeCommand() *cobra.Command {
	var (
		storePath      string
		outputFile     string
		encrypted      bool
		manualErasures string
	)

	cmd := &cobra.Command{
		Use:   "decode <set-id-or-name>",
		Short: "Reconstruct a file from its erasure-coded fragments",
		Long: `Reconstruct the original file from a stored fragment set.

Missing or corrupted fragments are detected via their digests and
recovered from the survivors, as long as no more than m fragments are
lost.

Examples:
  # Decode by fragment set ID
  erasure decode 3f2a... --output backup.tar

  # Decode by name
  erasure decode backup.tar --output restored.tar

  # Discard fragments 0 and 3 even if their files look intact
  erasure decode backup.tar --erasures 0,3 --output restored.tar`,
		Args: cobra.ExactArgs(1),
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
			if encrypted {
				passphrase, err := readPassphrase("Enter manifest passphrase: ")
				if err != nil {
					return err
				}
				if err := store.EnableEncryption(passphrase); err != nil {
					return err
				}
			}

			set, err := findFragmentSet(store, args[0])
			if err != nil {
				return err
			}

			packetAligned := set.Technique != string(codec.TechniqueMatrix)
			if err := validation.ValidateFragmentLength(set.FragmentLength,
				set.WordSize, packetAligned); err != nil {
				return fmt.Errorf("manifest is inconsistent: %w", err)
			}

			fragments, erasures, err := store.LoadFragments(set.ID)
			if err != nil {
				return err
			}
			if manualErasures != "" {
				manual, err := validation.ParseIndexList(manualErasures)
				if err != nil {
					return fmt.Errorf("invalid --erasures list: %w", err)
				}
				erasures = mergeErasures(erasures, manual)
			}
			if len(erasures) > 0 {
				printWarning("%d of %d fragments unavailable: %v",
					len(erasures), len(fragments), erasures)
			}
			if err := validation.ValidateErasures(erasures,
				set.DataFragments, set.ParityFragments); err != nil {
				return fmt.Errorf("fragment set is not recoverable: %w", err)
			}

			c, err := buildCodec(config.CodingSettings{
				DataFragments:   set.DataFragments,
				ParityFragments: set.ParityFragments,
				WordSize:        set.WordSize,
				Method:          set.Method,
				Technique:       set.Technique,
			})
			if err != nil {
				return err
			}

			decoded, err := c.Decode(fragments, erasures)
			if err != nil {
				return fmt.Errorf("decoding failed: %w", err)
			}

			data := joinFragments(decoded, set.OriginalSize)

			slog.Debug("decoded fragment set",
				"id", set.ID,
				"erasures", len(erasures),
				"bytes", len(data),
			)

			if outputFile == "" || outputFile == "-" {
				_, err := os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(outputFile, data, 0600); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}

			printSuccess("Recovered %s (%s) to %s",
				set.Name, humanize.Bytes(uint64(len(data))), outputFile)
			if len(erasures) > 0 {
				fmt.Printf("Rebuilt fragments %v from the %d survivors.\n",
					erasures, len(fragments)-len(erasures))
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&storePath, "store", "s", "", "Fragment store directory")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (stdout when omitted)")
	cmd.Flags().BoolVar(&encrypted, "encrypted", false, "Manifest is encrypted")
	cmd.Flags().StringVar(&manualErasures, "erasures", "", "Fragment indices to discard, e.g. 0,3")

	return cmd
}

// mergeErasures unions detected and manually flagged erasure indices.
func mergeErasures(detected, manual []int) []int {
	seen := make(map[int]bool, len(detected)+len(manual))
	for _, e := range detected {
		seen[e] = true
	}
	for _, e := range manual {
		seen[e] = true
	}
	merged := make([]int, 0, len(seen))
	for e := range seen {
		merged = append(merged, e)
	}
	sort.Ints(merged)
	return merged
}

// findFragmentSet resolves an ID or a unique name to a fragment set
func findFragmentSet(store *fragmentstore.Store, key string) (*fragmentstore.FragmentSet, error) {
	if set, err := store.GetFragmentSet(key); err == nil {
		return set, nil
	}

	matches := store.SearchFragmentSets(key)
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no fragment set matches '%s'", key)
	case 1:
		return matches[0], nil
	default:
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = fmt.Sprintf("%s (%s)", m.ID, m.Name)
		}
		return nil, fmt.Errorf("'%s' is ambiguous, candidates: %v", key, ids)
	}
}
