package main

import (
	"encoding/json"
	"time"

	"github.com/mailio/go-keyless-server/types"
	"github.com/mailio/go-keyless-server/util"
	"github.com/spf13/cobra"
)

var outputFile string

func init() {
	keysCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default is stdout)")
	rootCmd.AddCommand(keysCmd)
}

// keysCmd generates the ed25519 keys the server signs session tokens with
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate ed25519 keys",
	Long:  "Generate ed25519 session signing keys (server.serverKeysPath in conf.yaml)",
	Run: func(cmd *cobra.Command, args []string) {
		public, private, err := util.GenerateEd25519KeyPair()
		check(err)
		keys := types.ServerKeys{
			Type:       "keyless_server_keys_ed25519",
			PublicKey:  *public,
			PrivateKey: *private,
			Created:    time.Now().UnixMilli(),
		}
		fileBytes, err := json.MarshalIndent(keys, "", "  ")
		check(err)
		writeOutput(outputFile, fileBytes)
	},
}
