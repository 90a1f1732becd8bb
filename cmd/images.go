package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/images"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/models"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/storage"
)

func newImagesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "images",
		Short: "Card image tools",
	}
	cmd.AddCommand(newImagesMirrorCmd(opts))
	cmd.AddCommand(newImagesResolveCmd(opts))
	return cmd
}

func newImagesMirrorCmd(opts *rootOptions) *cobra.Command {
	var (
		imageStore string
		perSecond  float64
		workers    int
	)

	cmd := &cobra.Command{
		Use:   "mirror [CARD_ID...]",
		Short: "Copy canonical card images into an image store",
		Long: `Download each card's image from the catalog's image endpoint into the local
image directory, the database blob table or the STORAGE_URL bucket, skipping
images already present.

Without arguments every card in the store is mirrored.`,
		Example: `  # Mirror every stored card into public/card_images
  combo images mirror

  # Mirror two cards into the database, 2 requests per second
  combo images mirror 89631139 46986414 --image-store db --rate 2

  # Upload missing images to the storage bucket
  combo images mirror --image-store object`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			blobs, err := pickBlobStore(imageStore, cfg, store)
			if err != nil {
				return err
			}

			ids, err := mirrorIDs(cmd, args, store)
			if err != nil {
				return err
			}

			client := newCatalogClient(cfg)
			m := images.NewMirror(blobs, client.CanonicalImageURL, perSecond)
			m.Workers = workers

			report, err := m.Run(ctx, ids)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "copied: %d\nskipped: %d\nfailed: %d\n", report.Copied, report.Skipped, report.Failed)
			return nil
		},
	}

	cmd.Flags().StringVar(&imageStore, "image-store", imageStoreDir, "Destination (dir, db or object)")
	cmd.Flags().Float64Var(&perSecond, "rate", 10, "Maximum downloads per second")
	cmd.Flags().IntVar(&workers, "workers", 4, "Parallel downloads")

	return cmd
}

func mirrorIDs(cmd *cobra.Command, args []string, store storage.CardStore) ([]int64, error) {
	if len(args) == 0 {
		return store.CardIDs(cmd.Context())
	}
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid card id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func newImagesResolveCmd(opts *rootOptions) *cobra.Command {
	var (
		imageURL string
		noCheck  bool
	)

	cmd := &cobra.Command{
		Use:   "resolve CARD_ID",
		Short: "Show which image source a card would be rendered from",
		Long: `Walk the image tiers for a card (cached, nominal, canonical, placeholder) and
print the first one that loads. With --no-check the first configured tier is
printed without any network or disk access.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid card id %q", args[0])
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			card := models.Card{ID: id, ImageURL: imageURL}
			resolver := images.NewResolver(cfg.ImageOptions())

			var candidate images.Candidate
			if noCheck {
				candidate = resolver.Candidate(card)
			} else {
				candidate = resolver.Resolve(cmd.Context(), card)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(candidate)
		},
	}

	cmd.Flags().StringVar(&imageURL, "image-url", "", "The card's nominal image URL, if known")
	cmd.Flags().BoolVar(&noCheck, "no-check", false, "Do not check that the image exists")

	return cmd
}
