package cfg

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var (
	cfgIns     *Config
	cfgInsOnce sync.Once
	cfgMutex   sync.RWMutex
)

// ViperLoader reads configuration from environment variables, with an
// optional yaml file for local overrides. Environment always wins.
type ViperLoader struct {
	configChangeCallbacks []func(*Config)
	fileLoaded            bool
}

func NewViperLoader() (*ViperLoader, error) {
	return &ViperLoader{
		configChangeCallbacks: make([]func(*Config), 0),
	}, nil
}

func (vl *ViperLoader) Load() (*Config, error) {
	var err error
	cfgInsOnce.Do(func() {
		err = vl.loadConfig()
		if err == nil && vl.IsWatchChange() {
			viper.WatchConfig()
			viper.OnConfigChange(func(e fsnotify.Event) {
				fmt.Printf("[INFO][CONFIG] Config file changed: %s\n", e.Name)
				if errReload := vl.reloadConfig(); errReload != nil {
					fmt.Printf("[ERROR][CONFIG] Failed to reload config: %v\n", errReload)
				}
			})
		}
	})

	if err != nil {
		return nil, err
	}

	cfgMutex.RLock()
	defer cfgMutex.RUnlock()
	return cfgIns, nil
}

func (vl *ViperLoader) IsWatchChange() bool {
	// Watching only makes sense when a config file was actually found.
	return vl.fileLoaded
}

func (vl *ViperLoader) RegisterConfigChangeCallback(callback func(*Config)) {
	cfgMutex.Lock()
	vl.configChangeCallbacks = append(vl.configChangeCallbacks, callback)
	cfgMutex.Unlock()
}

func (vl *ViperLoader) setDefaults() {
	viper.SetDefault("app.name", "gh-event-pipeline")
	viper.SetDefault("app.version", "0.0.1")

	viper.SetDefault("github.tokens", "")
	viper.SetDefault("github.eventsurl", "https://api.github.com/events")
	viper.SetDefault("github.perpage", 100)
	viper.SetDefault("github.requestspersecond", 5)

	viper.SetDefault("kafka.brokers", "localhost:9092")
	viper.SetDefault("kafka.topic", "github-events-raw")
	viper.SetDefault("kafka.consumergroup", "github-processor")
	viper.SetDefault("kafka.offsetreset", "earliest")
	viper.SetDefault("kafka.flushtimeout", 10)

	viper.SetDefault("poller.interval", 10)
	viper.SetDefault("poller.maxretries", 3)
	viper.SetDefault("poller.retrybase", 1)
	viper.SetDefault("poller.retrymax", 60)
	viper.SetDefault("poller.dedupcapacity", 10000)

	viper.SetDefault("processor.batchsize", 100)
	viper.SetDefault("processor.fetchmaxwait", 1)
	viper.SetDefault("processor.statsinterval", 30)

	viper.SetDefault("mysql.host", "127.0.0.1")
	viper.SetDefault("mysql.port", "3306")
	viper.SetDefault("mysql.username", "root")
	viper.SetDefault("mysql.password", "root")
	viper.SetDefault("mysql.database", "github_analytics")
	viper.SetDefault("mysql.maxidleconnection", 10)
	viper.SetDefault("mysql.maxopenconnection", 100)
	viper.SetDefault("mysql.maxlifetimeconnection", 3600)
}

func (vl *ViperLoader) bindEnv() {
	_ = viper.BindEnv("github.tokens", "GITHUB_TOKENS")
	_ = viper.BindEnv("github.eventsurl", "GITHUB_EVENTS_URL")
	_ = viper.BindEnv("github.perpage", "EVENTS_PER_PAGE")
	_ = viper.BindEnv("github.requestspersecond", "REQUESTS_PER_SECOND")

	_ = viper.BindEnv("kafka.brokers", "KAFKA_BOOTSTRAP_SERVERS")
	_ = viper.BindEnv("kafka.topic", "KAFKA_TOPIC")
	_ = viper.BindEnv("kafka.consumergroup", "KAFKA_CONSUMER_GROUP")
	_ = viper.BindEnv("kafka.offsetreset", "KAFKA_AUTO_OFFSET_RESET")
	_ = viper.BindEnv("kafka.flushtimeout", "KAFKA_FLUSH_TIMEOUT")

	_ = viper.BindEnv("poller.interval", "POLL_INTERVAL")
	_ = viper.BindEnv("poller.maxretries", "MAX_RETRIES")
	_ = viper.BindEnv("poller.retrybase", "RETRY_BASE_DELAY")
	_ = viper.BindEnv("poller.retrymax", "RETRY_MAX_DELAY")
	_ = viper.BindEnv("poller.dedupcapacity", "DEDUP_CAPACITY")

	_ = viper.BindEnv("processor.batchsize", "BATCH_SIZE")
	_ = viper.BindEnv("processor.fetchmaxwait", "FETCH_MAX_WAIT")
	_ = viper.BindEnv("processor.statsinterval", "STATS_INTERVAL")

	_ = viper.BindEnv("mysql.host", "MYSQL_HOST")
	_ = viper.BindEnv("mysql.port", "MYSQL_PORT")
	_ = viper.BindEnv("mysql.username", "MYSQL_USER")
	_ = viper.BindEnv("mysql.password", "MYSQL_PASSWORD")
	_ = viper.BindEnv("mysql.database", "MYSQL_DATABASE")
}

func (vl *ViperLoader) loadConfig() error {
	viper.AddConfigPath("cfg/yaml")
	viper.AddConfigPath(".")
	viper.SetConfigName("pipeline")
	viper.SetConfigType("yaml")

	vl.setDefaults()
	vl.bindEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("[ERROR][CONFIG] failed to read config file: %w", err)
		}
	} else {
		vl.fileLoaded = true
	}

	// Unmarshal into the config
	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("[ERROR][CONFIG] failed to unmarshal config: %w", err)
	}

	// Assign to the global
	cfgMutex.Lock()
	cfgIns = cfg
	cfgMutex.Unlock()

	return nil
}

func (vl *ViperLoader) reloadConfig() error {
	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("[ERROR][CONFIG] failed to unmarshal config during reload: %w", err)
	}

	// Update the global instance
	cfgMutex.Lock()
	cfgIns = cfg

	// Notify all registered callbacks
	callbacks := make([]func(*Config), len(vl.configChangeCallbacks))
	copy(callbacks, vl.configChangeCallbacks)
	cfgMutex.Unlock()
	for _, callback := range callbacks {
		go callback(cfg)
	}

	fmt.Println("[INFO][CONFIG] Configuration reloaded successfully")
	return nil
}
