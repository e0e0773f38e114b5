package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/actyvystom/cloudinary-demo/datalayer"
	"github.com/actyvystom/cloudinary-demo/domain/image"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const uploadDateLayout = "02.01.2006"

func newGallery(v *viper.Viper) *datalayer.Gallery {
	client := datalayer.NewClient(v.GetString(serverURLKey))
	return datalayer.NewGallery(client, datalayer.Config{MaxAge: v.GetDuration(cacheMaxAgeKey)})
}

func newListCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the latest images in the gallery",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gallery := newGallery(v)
			result, err := gallery.Images(cmd.Context())
			renderGallery(cmd.OutOrStdout(), result, err)
			return err
		},
	}
}

func newShowCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "show PUBLIC_ID",
		Short: "Show the details of one image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gallery := newGallery(v)
			img, err := gallery.Image(cmd.Context(), args[0])
			renderImage(cmd.OutOrStdout(), img, err)
			return err
		},
	}
}

func newUploadCommand(v *viper.Viper) *cobra.Command {
	var opts datalayer.UploadOptions
	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload an image and show the refreshed gallery",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			gallery := newGallery(v)
			fmt.Fprintln(out, "Uploading...")
			result, err := gallery.Upload(cmd.Context(), filepath.Base(f.Name()), f, opts)
			if err != nil {
				fmt.Fprintln(out, errorMessage(err))
				return err
			}
			fmt.Fprintln(out, "Upload complete!")
			renderGallery(out, result.Listing, result.ListingErr)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.PublicID, "public-id", "", "pin the identifier of the new image")
	flags.StringVar(&opts.Folder, "folder", "", "media library folder")
	flags.StringSliceVar(&opts.Tags, "tags", nil, "comma separated tags")
	return cmd
}

// errorMessage prefers the server's message over the full error chain.
func errorMessage(err error) string {
	var fe *datalayer.ClientFetchError
	if errors.As(err, &fe) && fe.Message != "" {
		return fe.Message
	}
	return err.Error()
}

func renderTags(tags []string) string {
	if len(tags) == 0 {
		return "untagged"
	}
	return strings.Join(tags, ", ")
}

func renderGallery(w io.Writer, result *image.SearchResult, err error) {
	switch {
	case err != nil:
		fmt.Fprintf(w, "failed to load: %s\n", errorMessage(err))
		return
	case result == nil:
		fmt.Fprintln(w, "loading...")
		return
	case len(result.Resources) == 0:
		fmt.Fprintln(w, "no images yet")
		return
	}

	for _, img := range result.Resources {
		fmt.Fprintf(w, "Image-Id: %s (%dx%d)\n", img.PublicID, img.Width, img.Height)
		fmt.Fprintf(w, "  %s\n", img.URL)
		fmt.Fprintf(w, "  %s\n", renderTags(img.Tags))
	}
}

func renderImage(w io.Writer, img *image.Resource, err error) {
	switch {
	case err != nil:
		fmt.Fprintf(w, "failed to load: %s\n", errorMessage(err))
		return
	case img == nil:
		fmt.Fprintln(w, "loading...")
		return
	}

	uploaded := img.UploadedAt
	if uploaded.IsZero() {
		uploaded = img.CreatedAt
	}
	fmt.Fprintf(w, "%s (%dx%d)\n", img.URL, img.Width, img.Height)
	fmt.Fprintf(w, "Path in Media Library: /%s\n", img.Folder)
	fmt.Fprintf(w, "Image-Id: %s\n", img.PublicID)
	fmt.Fprintf(w, "Tags: %s\n", renderTags(img.Tags))
	fmt.Fprintf(w, "Date uploaded: %s\n", uploaded.Format(uploadDateLayout))
}
