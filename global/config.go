package global

import (
	"crypto/ed25519"

	"github.com/go-redis/redis_rate/v10"
	cfg "github.com/mailio/go-web3-kit/config"
)

// Conf global config
var Conf Config

// Session token signing keys (loaded from server.serverKeysPath in conf.yaml)
var PublicKey ed25519.PublicKey
var PrivateKey ed25519.PrivateKey
var ServerKeysCreated int64

// Global rate limiter
var RateLimiter *redis_rate.Limiter

type Config struct {
	cfg.YamlConfig `yaml:",inline"`
	Server         ServerConfig     `yaml:"server"`
	CouchDB        CouchDBConfig    `yaml:"couchdb"`
	Prometheus     PrometheusConfig `yaml:"prometheus"`
	Redis          RedisConfig      `yaml:"redis"`
	Queue          Queue            `yaml:"queue"`
	Storage        StorageConfig    `yaml:"storage"`
	Chain          ChainConfig      `yaml:"chain"`
	Identity       IdentityConfig   `yaml:"identity"`
	Community      CommunityConfig  `yaml:"community"`
}

type ServerConfig struct {
	ServerKeysPath        string `yaml:"serverKeysPath"`
	SessionTokenHours     int    `yaml:"sessionTokenHours"`
	SessionCookieDomain   string `yaml:"sessionCookieDomain"`
	ExpiredPairsPurgeMins int    `yaml:"expiredPairsPurgeMins"`
	AccountCacheSize      int    `yaml:"accountCacheSize"` // sessions whose account is kept in memory
}

type CouchDBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Scheme   string `yaml:"scheme"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type PrometheusConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	Username string `yaml:"username"`
}

type Queue struct {
	Concurrency int `yaml:"concurrency"`
}

// S3 compatible IPFS pinning gateway (e.g. Filebase)
type StorageConfig struct {
	Endpoint     string   `yaml:"endpoint"`
	Key          string   `yaml:"key"`
	Secret       string   `yaml:"secret"`
	Bucket       string   `yaml:"bucket"`
	Region       string   `yaml:"region"`
	GatewayURL   string   `yaml:"gatewayUrl"`
	MaxFileBytes int64    `yaml:"maxFileBytes"`
	ContentTypes []string `yaml:"contentTypes"`
}

type ChainConfig struct {
	NodeURL          string `yaml:"nodeUrl"`
	FaucetURL        string `yaml:"faucetUrl"`
	FaucetAmount     uint64 `yaml:"faucetAmount"`
	PepperURL        string `yaml:"pepperUrl"`
	ProverURL        string `yaml:"proverUrl"`
	MaxGasAmount     uint64 `yaml:"maxGasAmount"`
	GasUnitPrice     uint64 `yaml:"gasUnitPrice"`
	TxExpirationSecs int64  `yaml:"txExpirationSecs"`
}

type IdentityConfig struct {
	ClientID               string   `yaml:"clientId"`
	AuthorizationEndpoint  string   `yaml:"authorizationEndpoint"`
	RedirectURI            string   `yaml:"redirectUri"`
	AllowedOrigins         []string `yaml:"allowedOrigins"`
	Issuer                 string   `yaml:"issuer"`
	JwksURL                string   `yaml:"jwksUrl"`
	EphemeralLifetimeHours int      `yaml:"ephemeralLifetimeHours"`
}

type CommunityConfig struct {
	// ActiveKeyID is the master key used to wrap newly generated data keys
	ActiveKeyID string      `yaml:"activeKeyId"`
	MasterKeys  []MasterKey `yaml:"masterKeys"`
}

type MasterKey struct {
	ID  string `yaml:"id"`
	Key string `yaml:"key"` // base64, 32 bytes
}
