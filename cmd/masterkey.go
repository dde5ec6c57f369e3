package main

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mailio/go-keyless-server/types"
	"github.com/mailio/go-keyless-server/util"
	"github.com/spf13/cobra"
)

var masterKeyOutput string
var masterKeyID string

func init() {
	masterKeyCmd.Flags().StringVarP(&masterKeyOutput, "output", "o", "", "output file (default is stdout)")
	masterKeyCmd.Flags().StringVarP(&masterKeyID, "id", "i", "", "key id (default is a random uuid)")
	rootCmd.AddCommand(masterKeyCmd)
}

// masterKeyCmd generates a community master key entry for community.masterKeys in conf.yaml
var masterKeyCmd = &cobra.Command{
	Use:   "masterkey",
	Short: "Generate a community master key",
	Long:  "Generate a 32 byte master key wrapping community data keys. Add it to community.masterKeys and point community.activeKeyId at it to rotate.",
	Run: func(cmd *cobra.Command, args []string) {
		key, err := util.RandomBytes(util.DataKeySize)
		check(err)
		id := masterKeyID
		if id == "" {
			id = uuid.NewString()
		}
		entry := types.MasterKeyFile{
			Type:    "keyless_community_master_key",
			ID:      id,
			Key:     base64.StdEncoding.EncodeToString(key),
			Created: time.Now().UnixMilli(),
		}
		fileBytes, err := json.MarshalIndent(entry, "", "  ")
		check(err)
		writeOutput(masterKeyOutput, fileBytes)
	},
}
