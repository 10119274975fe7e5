package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/monorkin/nightscout-watch-monitor/internal/globals"
	"github.com/monorkin/nightscout-watch-monitor/nightscout/watch"
)

var decodeEpochUnit string

var decodeCmd = &cobra.Command{
	Use:   "decode [file|-]",
	Short: "Decode a watch face payload",
	Long: `Decode a watch face payload read from a file, or from stdin when the file is
omitted or "-", and print the entry as JSON.

Examples:
  nightscout-watch-monitor decode pebble.json
  curl -s https://example.herokuapp.com/pebble?count=1 | nightscout-watch-monitor decode --epoch-unit milliseconds`,
	Args: cobra.MaximumNArgs(1),
	Run:  runDecode,
}

func runDecode(cmd *cobra.Command, args []string) {
	input := io.Reader(os.Stdin)
	if len(args) == 1 && args[0] != "-" {
		file, err := os.Open(args[0])
		if err != nil {
			fail("Failed to open payload", err)
		}
		defer file.Close()
		input = file
	}

	unitName := decodeEpochUnit
	if unitName == "" {
		unitName = globals.Settings.EpochUnit
	}

	unit, err := watch.ParseEpochUnit(unitName)
	if err != nil {
		fail("Invalid epoch unit", err)
	}

	entry, err := decodePayload(input, unit, globals.Logging.Get("decoder"))
	if err != nil {
		fail("Failed to decode payload", err)
	}

	if err := printJSON(os.Stdout, entry); err != nil {
		fail("Failed to encode entry", err)
	}
}

// decodePayload only fails when the input is not a JSON object. A payload
// with unusable groups still decodes to an entry with those groups absent.
func decodePayload(input io.Reader, unit watch.EpochUnit, logger logrus.FieldLogger) (watch.WatchEntry, error) {
	decoder := json.NewDecoder(input)
	decoder.UseNumber()

	var payload map[string]interface{}
	if err := decoder.Decode(&payload); err != nil {
		return watch.WatchEntry{}, errors.Wrap(err, "payload is not a JSON object")
	}

	return watch.NewDecoder(watch.WithEpochUnit(unit), watch.WithLogger(logger)).Decode(payload), nil
}

func printJSON(w io.Writer, value interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().StringVar(&decodeEpochUnit, "epoch-unit", "", "Unit of payload timestamps: seconds or milliseconds (default from settings)")
}
