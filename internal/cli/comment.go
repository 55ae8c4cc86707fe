package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/wilberttgr/folio/internal/widget"
)

func newCommentCmd() *cobra.Command {
	var (
		name    string
		message string
		image   string
	)

	cmd := &cobra.Command{
		Use:   `comment --name NAME [--message] "message"`,
		Short: "Post a comment",
		Long:  "Post a comment to the public comment section, optionally with a profile image. The message comes from --message or the remaining arguments.",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				message = strings.Join(args, " ")
			}
			return runComment(cmd.Context(), cmd.OutOrStdout(), widget.New(newAPIClient()), name, message, image)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&message, "message", "", "comment text")
	cmd.Flags().StringVar(&image, "image", "", "path to a profile image (max 5MB)")

	return cmd
}

func runComment(ctx context.Context, out io.Writer, s widget.Submitter, name, message, imagePath string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	form := widget.NewForm(s)
	form.SetName(name)
	form.SetMessage(message)

	if imagePath != "" {
		f, img, err := openImage(imagePath)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); cerr != nil {
				fmt.Fprintf(os.Stderr, "warning: closing image: %v\n", cerr)
			}
		}()
		if err := form.AttachImage(img); err != nil {
			return fmt.Errorf("%s: %w", imagePath, err)
		}
	}

	if err := form.Submit(ctx); err != nil {
		return err
	}

	if isJSON() {
		return printJSON(out, map[string]bool{"posted": true})
	}
	fmt.Fprintln(out, "✓ Comment posted.")
	return nil
}

// openImage opens path and describes it for a form attachment. The content
// type is sniffed from the file, not taken from its extension.
func openImage(path string) (*os.File, widget.Image, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, widget.Image{}, fmt.Errorf("reading image: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, widget.Image{}, fmt.Errorf("opening image: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, widget.Image{}, fmt.Errorf("reading image: %w", err)
	}

	return f, widget.Image{
		Name:        filepath.Base(path),
		ContentType: mt.String(),
		Size:        info.Size(),
		Data:        f,
	}, nil
}
