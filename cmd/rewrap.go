package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mailio/go-keyless-server/global"
	"github.com/mailio/go-keyless-server/repository"
	"github.com/mailio/go-keyless-server/services"
	"github.com/mailio/go-keyless-server/util"
	cfg "github.com/mailio/go-web3-kit/config"
	"github.com/spf13/cobra"
)

var rewrapConfigFile string

func init() {
	rewrapCmd.Flags().StringVarP(&rewrapConfigFile, "config", "c", "conf.yaml", "server configuration file")
	rootCmd.AddCommand(rewrapCmd)
}

// rewrapCmd moves communities onto the active master key after a rotation
var rewrapCmd = &cobra.Command{
	Use:   "rewrap <communityHash>...",
	Short: "Re-wrap community data keys under the active master key",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		check(cfg.NewYamlConfig(rewrapConfigFile, &global.Conf))

		encoded := make(map[string]string, len(global.Conf.Community.MasterKeys))
		for _, mk := range global.Conf.Community.MasterKeys {
			encoded[mk.ID] = mk.Key
		}
		keyring, err := util.NewKeyringFromBase64(global.Conf.Community.ActiveKeyID, encoded)
		check(err)

		repoUrl := global.Conf.CouchDB.Scheme + "://" + global.Conf.CouchDB.Host + ":" + strconv.Itoa(global.Conf.CouchDB.Port)
		communityRepo, err := repository.NewCouchDBRepository(repoUrl, repository.Community, global.Conf.CouchDB.Username, global.Conf.CouchDB.Password, false)
		check(err)
		dbSelector := repository.NewCouchDBSelector()
		dbSelector.AddDB(communityRepo)
		communityService := services.NewCommunityService(dbSelector, keyring)

		for _, hash := range args {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			changed, rErr := communityService.RewrapCommunity(ctx, hash)
			cancel()
			switch {
			case rErr != nil:
				fmt.Printf("%s: %v\n", hash, rErr)
			case changed:
				fmt.Printf("%s: rewrapped with %s\n", hash, keyring.ActiveID())
			default:
				fmt.Printf("%s: already on %s\n", hash, keyring.ActiveID())
			}
		}
	},
}
