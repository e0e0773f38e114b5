package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCommand(newConfig()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gallery",
		Short:         "gallery proxies uploads and searches to a Cloudinary media library",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().String("server", "http://localhost:3000", "gallery server URL used by client commands")
	mustBindFlag(v, serverURLKey, cmd.PersistentFlags().Lookup("server"))

	cmd.AddCommand(
		newServeCommand(v),
		newListCommand(v),
		newShowCommand(v),
		newUploadCommand(v),
	)
	return cmd
}
