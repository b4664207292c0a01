package screen

import (
	"log/slog"

	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/content"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewContentCommand returns the command that validates ORALSCAN_CONTENT_PATH and prints the effective content. The
// output is a starting point for an override file.
func NewContentCommand(lookupEnv func(string) (string, bool)) *cobra.Command {
	return &cobra.Command{
		Use:     "content",
		GroupID: Group.ID,
		Short:   "Print the page content",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(lookupEnv)
			if err != nil {
				return err
			}
			texts, err := content.Load(s.ContentPath)
			if err != nil {
				return errors.Wrap(err, "load content", slog.String("path", s.ContentPath))
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2) //nolint:mnd // matches the built-in file
			if err = enc.Encode(texts); err != nil {
				return errors.Wrap(err, "encode content")
			}
			return errors.Wrap(enc.Close(), "close encoder")
		},
	}
}
