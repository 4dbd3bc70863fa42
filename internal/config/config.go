package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os/user"
	"path/filepath"

	"github.com/habitat-network/bskykit/pkg/bskykit"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	viper "github.com/spf13/viper"
)

const (
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// Config holds everything the bsky command reads from the environment, the
// optional bskykit.yml and its own flags.
type Config struct {
	InstanceURL   string `yaml:"instance_url"`
	LoginEndpoint string `yaml:"login_endpoint"`
	Identifier    string `yaml:"identifier"`
	Password      string `yaml:"password"`
	CredentialDB  string `yaml:"credential_db"`
	CredentialKey string `yaml:"credential_key"`
	Debug         bool   `yaml:"debug"`
	UserAgent     string `yaml:"user_agent"`
	Output        string `yaml:"output"`
	ResolvePDS    bool   `yaml:"resolve_pds"`

	viper *viper.Viper
}

var envBindings = []struct {
	key string
	env string
}{
	{"home", "BSKY_HOME"},
	{"instance_url", "BSKY_INSTANCE_URL"},
	{"login_endpoint", "BSKY_LOGIN_ENDPOINT"},
	{"identifier", "BSKY_IDENTIFIER"},
	{"password", "BSKY_PASSWORD"},
	{"credential_db", "BSKY_CREDENTIAL_DB"},
	{"credential_key", "BSKY_CREDENTIAL_KEY"},
	{"debug", "BSKY_DEBUG"},
	{"user_agent", "BSKY_USER_AGENT"},
	{"output", "BSKY_OUTPUT"},
	{"resolve_pds", "BSKY_RESOLVE_PDS"},
}

func loadEnv(v *viper.Viper) error {
	for _, b := range envBindings {
		if err := v.BindEnv(b.key, b.env); err != nil {
			return err
		}
	}

	homedir, err := homedir()
	if err != nil {
		return err
	}
	v.SetDefault("home", filepath.Join(homedir, ".bskykit"))
	v.SetDefault("instance_url", bskykit.DefaultInstanceURL)
	v.SetDefault("login_endpoint", bskykit.DefaultLoginEndpoint)
	v.SetDefault("user_agent", bskykit.DefaultUserAgent)
	v.SetDefault("output", OutputJSON)
	v.SetDefault("debug", false)
	v.SetDefault("resolve_pds", false)
	return nil
}

// Load reads .env from the working directory, then the environment, then
// configFile. An empty configFile searches for bskykit.yml in ~/.bskykit
// and $BSKY_HOME; not finding one there is fine.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	if err := loadEnv(v); err != nil {
		return nil, err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		homedir, err := homedir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(filepath.Join(homedir, ".bskykit"))
		v.AddConfigPath(v.GetString("home"))
		v.SetConfigType("yml")
		v.SetConfigName("bskykit")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	config, err := FromViper(v)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("config_file", v.ConfigFileUsed()).
		Str("instance_url", config.InstanceURL).
		Msg("loaded config")
	return config, nil
}

// FromViper decodes an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var config Config
	err := v.Unmarshal(&config, viper.DecoderConfigOption(
		func(decoderConfig *mapstructure.DecoderConfig) {
			decoderConfig.TagName = "yaml"
		},
	))
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	config.viper = v

	switch config.Output {
	case "":
		config.Output = OutputJSON
	case OutputJSON, OutputYAML:
	default:
		return nil, fmt.Errorf("unsupported output format %q", config.Output)
	}
	if config.CredentialDB == "" {
		config.CredentialDB = filepath.Join(config.Home(), "credentials.db")
	}
	return &config, nil
}

// Home is the directory that holds bskykit.yml and the default credential db.
func (c *Config) Home() string {
	if c.viper == nil {
		return ""
	}
	return c.viper.GetString("home")
}

func (c *Config) LogLevel() zerolog.Level {
	if c.Debug {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

// ClientOptions turns the config into options for bskykit.NewClient.
func (c *Config) ClientOptions() []bskykit.Option {
	var opts []bskykit.Option
	if c.LoginEndpoint != "" {
		opts = append(opts, bskykit.WithLoginEndpoint(c.LoginEndpoint))
	}
	if c.UserAgent != "" {
		opts = append(opts, bskykit.WithUserAgent(c.UserAgent))
	}
	return opts
}

func homedir() (string, error) {
	usr, err := user.Current()
	if err != nil {
		return "", err
	}
	return usr.HomeDir, nil
}
