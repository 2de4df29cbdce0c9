package cli

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Davincible/erasure/internal/validation"
	"github.com/Davincible/erasure/pkg/config"
	"github.com/Davincible/erasure/pkg/fragmentstore"
)

// NewEncodeCommand creates the encode command
func NewEncodeCommand() *cobra.Command {
	var (
		dataFragments   int
		parityFragments int
		wordSize        uint
		method          string
		technique       string
		storePath       string
		name            string
		tags            []string
		encrypt         bool
		profile         string
	)

	cmd := &cobra.Command{
		Use:   "encode <file>",
		Short: "Encode a file into erasure-coded fragments",
		Long: `Encode a file into k data fragments and m parity fragments.

Any k of the k+m fragments are enough to reconstruct the file, so up to
m fragments can be lost or corrupted without losing data.

Examples:
  # Default 4+2 Reed-Solomon coding
  erasure encode backup.tar

  # Cauchy coding with the compiled XOR schedule
  erasure encode --method cauchy --technique schedule backup.tar

  # Wide stripe over GF(2^16)
  erasure encode -k 40 -m 8 -w 16 backup.tar

  # Read payload from stdin
  cat backup.tar | erasure encode --name backup -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cm, err := config.NewConfigManager()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			settings := config.CodingSettings{
				DataFragments:   dataFragments,
				ParityFragments: parityFragments,
				WordSize:        wordSize,
				Method:          method,
				Technique:       technique,
			}
			if profile != "" {
				saved, err := cm.GetProfile(profile)
				if err != nil {
					return err
				}
				settings = saved.Coding
			}
			cm.ApplyDefaults(&settings)

			c, err := buildCodec(settings)
			if err != nil {
				return err
			}

			data, err := readInput(args[0])
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			if len(data) == 0 {
				return fmt.Errorf("input is empty")
			}

			fragments := splitIntoFragments(data, c.K(), c.FragmentAlignment())
			parity, err := c.Encode(fragments)
			if err != nil {
				return fmt.Errorf("encoding failed: %w", err)
			}
			all := append(fragments, parity...)

			if storePath == "" {
				storePath = cm.GetConfig().Storage.DefaultPath
			}
			store, err := fragmentstore.NewStore(expandHome(storePath))
			if err != nil {
				return err
			}

			if encrypt || cm.GetConfig().Storage.EncryptManifest {
				passphrase, err := readPassphrase("Enter manifest passphrase: ")
				if err != nil {
					return err
				}
				if err := store.EnableEncryption(passphrase); err != nil {
					return err
				}
			}

			name = validation.SanitizeInput(name)
			if name == "" {
				name = filepath.Base(args[0])
				if name == "-" {
					name = "stdin"
				}
			}

			set := &fragmentstore.FragmentSet{
				Name:            name,
				DataFragments:   settings.DataFragments,
				ParityFragments: settings.ParityFragments,
				WordSize:        settings.WordSize,
				Method:          settings.Method,
				Technique:       settings.Technique,
				OriginalSize:    int64(len(data)),
				Tags:            tags,
			}
			if err := store.SaveFragmentSet(set, all); err != nil {
				return fmt.Errorf("failed to store fragments: %w", err)
			}

			slog.Debug("encoded fragment set",
				"id", set.ID,
				"k", set.DataFragments,
				"m", set.ParityFragments,
				"fragment_bytes", set.FragmentLength,
			)

			printSuccess("Encoded %s (%s) into %d+%d fragments of %s each",
				name, humanize.Bytes(uint64(len(data))),
				set.DataFragments, set.ParityFragments,
				humanize.Bytes(uint64(set.FragmentLength)))
			fmt.Printf("Fragment set ID: %s\n", set.ID)
			fmt.Printf("Any %d fragments recover the file; up to %d losses are tolerated.\n",
				set.DataFragments, set.ParityFragments)

			return nil
		},
	}

	cmd.Flags().IntVarP(&dataFragments, "data", "k", 0, "Number of data fragments")
	cmd.Flags().IntVarP(&parityFragments, "parity", "m", 0, "Number of parity fragments")
	cmd.Flags().UintVarP(&wordSize, "word-size", "w", 0, "Field word size (8, 16, or 32)")
	cmd.Flags().StringVar(&method, "method", "", "Coding method (reed-solomon, cauchy)")
	cmd.Flags().StringVar(&technique, "technique", "", "Evaluation technique (matrix, bitmatrix, schedule)")
	cmd.Flags().StringVarP(&storePath, "store", "s", "", "Fragment store directory")
	cmd.Flags().StringVar(&name, "name", "", "Fragment set name (defaults to the file name)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tags for the fragment set")
	cmd.Flags().BoolVar(&encrypt, "encrypt", false, "Encrypt the fragment manifest")
	cmd.Flags().StringVar(&profile, "profile", "", "Use a saved coding profile")

	return cmd
}
