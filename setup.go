package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-kit/log/level"
	"github.com/mailio/go-keyless-server/global"
	"github.com/mailio/go-keyless-server/repository"
	"github.com/mailio/go-keyless-server/services"
	"github.com/mailio/go-keyless-server/types"
	"github.com/mailio/go-keyless-server/util"
)

// Configure DB Repositories and create DB Selector
func ConfigDBSelector() repository.DBSelector {
	// configure Repository (couchDB)
	repoUrl := global.Conf.CouchDB.Scheme + "://" + global.Conf.CouchDB.Host + ":" + strconv.Itoa(global.Conf.CouchDB.Port)
	communityRepo, communityRepoErr := repository.NewCouchDBRepository(repoUrl, repository.Community, global.Conf.CouchDB.Username, global.Conf.CouchDB.Password, false)
	if communityRepoErr != nil {
		level.Error(global.Logger).Log("msg", "failed to create repositories", "err", communityRepoErr)
		panic(communityRepoErr)
	}

	// REPOSITORY definitions
	dbSelector := repository.NewCouchDBSelector()
	dbSelector.AddDB(communityRepo)

	return dbSelector
}

// Configure the master keys wrapping community data keys
func ConfigCommunityKeyring(conf *global.Config) *util.Keyring {
	encoded := make(map[string]string, len(conf.Community.MasterKeys))
	for _, mk := range conf.Community.MasterKeys {
		encoded[mk.ID] = mk.Key
	}
	keyring, err := util.NewKeyringFromBase64(conf.Community.ActiveKeyID, encoded)
	if err != nil {
		level.Error(global.Logger).Log("msg", "invalid community master keys", "err", err)
		panic(err)
	}
	return keyring
}

// Configure the S3 compatible pinning gateway
func ConfigS3Storage(conf *global.Config, env *types.Environment) {
	credentials := aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(conf.Storage.Key, conf.Storage.Secret, ""))
	awsConf, err := config.LoadDefaultConfig(context.TODO(), config.WithCredentialsProvider(credentials), config.WithRegion(conf.Storage.Region))
	if err != nil {
		panic(err)
	}
	s3Client := s3.NewFromConfig(awsConf, func(o *s3.Options) {
		if conf.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(conf.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	uploader := manager.NewUploader(s3Client)
	env.AddS3Uploader(uploader)

	env.S3Client = s3Client
}

// removes expired ephemeral key pairs of every session
func purgeExpiredKeyPairs(ephemeralKeys *services.EphemeralKeyService) func() {
	return func() {
		removed, err := ephemeralKeys.PurgeExpired(context.Background())
		if err != nil {
			level.Error(global.Logger).Log("msg", "failed to purge expired ephemeral key pairs", "err", err)
			return
		}
		if removed > 0 {
			level.Info(global.Logger).Log("msg", "purged expired ephemeral key pairs", "count", removed)
		}
	}
}

func ConfigCronJobs(environment *types.Environment, ephemeralKeys *services.EphemeralKeyService) {
	purgeMins := global.Conf.Server.ExpiredPairsPurgeMins
	if purgeMins <= 0 {
		purgeMins = 5
	}
	purge := purgeExpiredKeyPairs(ephemeralKeys)
	if _, err := environment.Cron.AddFunc(fmt.Sprintf("@every %dm", purgeMins), purge); err != nil {
		panic(err)
	}
	environment.Cron.Start()
	go purge() // run once on startup
}
