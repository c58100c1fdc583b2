package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"learnapp/internal/apiclient"
	contextutils "learnapp/internal/utils"

	"github.com/spf13/cobra"
)

// ocrCmd returns the ocr command
func ocrCmd(app *App) *cobra.Command {
	var batch bool

	cmd := &cobra.Command{
		Use:   "ocr <image>...",
		Short: "Recognize the text in one or more images",
		Long: `Upload images to the server and print the recognized text.

One image is recognized on its own. Up to pipeline.max_multiple_images images are
recognized together as one document; more than that are sent as a batch.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := app.recognize(cmd.Context(), args, batch)
			if err != nil {
				return err
			}
			fmt.Fprintln(app.Out, text)
			return nil
		},
	}
	cmd.Flags().BoolVar(&batch, "batch", false, "always use the batch endpoint")

	return cmd
}

func readImages(paths []string) ([]apiclient.File, error) {
	files := make([]apiclient.File, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "failed to read %s: %v", path, err)
		}
		files = append(files, apiclient.File{Name: filepath.Base(path), Data: data})
	}
	return files, nil
}

// recognize uploads the images through the endpoint that fits their count and
// returns the extracted text.
func (a *App) recognize(ctx context.Context, paths []string, forceBatch bool) (string, error) {
	files, err := readImages(paths)
	if err != nil {
		return "", err
	}

	maxMultiple := a.Config.Pipeline.MaxMultipleImages
	switch {
	case len(files) == 1 && !forceBatch:
		result, err := a.Client.UploadImage(ctx, files[0])
		if err != nil {
			return "", err
		}
		return result.ExtractedText, nil

	case len(files) <= maxMultiple && !forceBatch:
		result, err := a.Client.UploadMultiple(ctx, files)
		if err != nil {
			return "", err
		}
		return result.ExtractedText, nil

	default:
		outcome, err := a.Client.UploadBatch(ctx, files)
		if err != nil {
			return "", err
		}
		if outcome.FailedBatches > 0 {
			fmt.Fprintf(a.ErrOut, "warning: %d of %d batches failed; their images were skipped\n",
				outcome.FailedBatches, outcome.ProcessedBatches+outcome.FailedBatches)
			a.Logger.Warn(ctx, "Batch recognition partially failed", map[string]interface{}{
				"failed_batches":    outcome.FailedBatches,
				"processed_batches": outcome.ProcessedBatches,
				"total_images":      outcome.TotalImages,
			})
		}
		return outcome.CombinedText, nil
	}
}
