package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Davincible/erasure/pkg/config"
	"github.com/Davincible/erasure/pkg/fragmentstore"
	"github.com/Davincible/erasure/pkg/secure"
	"github.com/Davincible/erasure/pkg/storage"
)

// NewExportCommand creates the export command
func NewExportCommand() *cobra.Command {
	var (
		storePath  string
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "export <set-id-or-name>",
		Short: "Export a fragment set as a password-protected archive",
		Long: `Bundle a fragment set and its coding parameters into a single
encrypted file, for moving the set to offsite storage.

Example:
  erasure export backup.tar --output backup.archive`,
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
			set, err := findFragmentSet(store, args[0])
			if err != nil {
				return err
			}

			fragments, erasures, err := store.LoadFragments(set.ID)
			if err != nil {
				return err
			}
			if len(erasures) > 0 {
				return fmt.Errorf("cannot export with %d unavailable fragments %v, decode and re-encode first",
					len(erasures), erasures)
			}

			password, err := readPassphrase("Enter archive password: ")
			if err != nil {
				return err
			}
			if password == "" {
				return fmt.Errorf("archive password cannot be empty")
			}

			if outputFile == "" {
				outputFile = set.Name + ".archive"
			}

			archive := storage.NewFragmentArchive(outputFile)
			passBytes := []byte(password)
			defer secure.Zero(passBytes)
			err = archive.Save(&storage.ArchivedSet{
				Name:            set.Name,
				DataFragments:   set.DataFragments,
				ParityFragments: set.ParityFragments,
				WordSize:        set.WordSize,
				Method:          set.Method,
				Technique:       set.Technique,
				OriginalSize:    set.OriginalSize,
				Fragments:       fragments,
				Metadata:        set.Metadata,
			}, passBytes)
			if err != nil {
				return fmt.Errorf("failed to write archive: %w", err)
			}

			printSuccess("Exported %s (%s) to %s",
				set.Name, humanize.Bytes(uint64(set.OriginalSize)), outputFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&storePath, "store", "s", "", "Fragment store directory")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Archive file (defaults to <name>.archive)")

	return cmd
}

// NewImportCommand creates the import command
func NewImportCommand() *cobra.Command {
	var storePath string

	cmd := &cobra.Command{
		Use:   "import <archive>",
		Short: "Import a fragment set from a password-protected archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cm, err := config.NewConfigManager()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if storePath == "" {
				storePath = cm.GetConfig().Storage.DefaultPath
			}

			password, err := readPassphrase("Enter archive password: ")
			if err != nil {
				return err
			}

			passBytes := []byte(password)
			defer secure.Zero(passBytes)
			archived, err := storage.NewFragmentArchive(args[0]).Load(passBytes)
			if err != nil {
				return fmt.Errorf("failed to read archive: %w", err)
			}

			store, err := fragmentstore.NewStore(expandHome(storePath))
			if err != nil {
				return err
			}

			set := &fragmentstore.FragmentSet{
				Name:            archived.Name,
				DataFragments:   archived.DataFragments,
				ParityFragments: archived.ParityFragments,
				WordSize:        archived.WordSize,
				Method:          archived.Method,
				Technique:       archived.Technique,
				OriginalSize:    archived.OriginalSize,
				Metadata:        archived.Metadata,
			}
			if err := store.SaveFragmentSet(set, archived.Fragments); err != nil {
				return fmt.Errorf("failed to store fragments: %w", err)
			}

			printSuccess("Imported %s as fragment set %s", archived.Name, set.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&storePath, "store", "s", "", "Fragment store directory")

	return cmd
}
