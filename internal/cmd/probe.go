package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"tarediiran-industries.com/transit-board/internal/feed"
)

func NewProbeCmd(app *BoardCtlApp) *cobra.Command {
	var filePath string
	var limit int

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Dump the raw feed, or a saved .pb file, as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			var message *gtfs.FeedMessage
			var err error

			if filePath != "" {
				message, err = readFeedFile(filePath)
			} else {
				var client *feed.Client
				client, _, err = app.Client()
				if err == nil {
					message, err = client.SampleEndpoint(cmd.Context())
				}
			}
			if err != nil {
				return err
			}

			return printFeed(cmd.OutOrStdout(), message, limit)
		},
	}

	cmd.Flags().StringVar(&filePath, "file", "", "Read a protobuf feed from disk instead of the network")
	cmd.Flags().IntVar(&limit, "limit", 0, "Print at most this many entities (0 prints all)")

	return cmd
}

func readFeedFile(path string) (*gtfs.FeedMessage, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return feed.Decode(body)
}

func printProtobuf(out io.Writer, message proto.Message) error {
	options := protojson.MarshalOptions{Multiline: true}
	jsonBytes, err := options.Marshal(message)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(jsonBytes))
	return err
}

func printFeed(out io.Writer, message *gtfs.FeedMessage, limit int) error {
	if err := printProtobuf(out, message.GetHeader()); err != nil {
		return err
	}
	for i, entity := range message.GetEntity() {
		if limit > 0 && i >= limit {
			fmt.Fprintf(out, "... %d more entities\n", len(message.GetEntity())-limit)
			break
		}
		if err := printProtobuf(out, entity); err != nil {
			return err
		}
	}
	return nil
}
