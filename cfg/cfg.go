package cfg

import (
	"fmt"
	"strings"
)

type (
	App struct {
		Name    string
		Version string
	}

	Mysql struct {
		Host                  string
		Port                  string
		Username              string
		Password              string
		Database              string
		MaxIdleConnection     int
		MaxOpenConnection     int
		MaxLifeTimeConnection int
	}

	Github struct {
		Tokens            string
		EventsUrl         string
		PerPage           int
		RequestsPerSecond int
	}

	Kafka struct {
		Brokers       string
		Topic         string
		ConsumerGroup string
		OffsetReset   string
		FlushTimeout  int
	}

	Poller struct {
		Interval      int
		MaxRetries    int
		RetryBase     int
		RetryMax      int
		DedupCapacity int
	}

	Processor struct {
		BatchSize     int
		FetchMaxWait  int
		StatsInterval int
	}
)

type Config struct {
	App       App
	Mysql     Mysql
	Github    Github
	Kafka     Kafka
	Poller    Poller
	Processor Processor
}

// TokenList splits the comma-separated token config into individual tokens.
func (g Github) TokenList() []string {
	tokens := make([]string, 0)
	for _, t := range strings.Split(g.Tokens, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// BrokerList splits the comma-separated broker config into addresses.
func (k Kafka) BrokerList() []string {
	brokers := make([]string, 0)
	for _, b := range strings.Split(k.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// ValidatePoller checks the settings the poller cannot start without.
func (c *Config) ValidatePoller() error {
	if len(c.Github.TokenList()) == 0 {
		return fmt.Errorf("no github tokens configured, set GITHUB_TOKENS")
	}
	if len(c.Kafka.BrokerList()) == 0 {
		return fmt.Errorf("no kafka brokers configured, set KAFKA_BOOTSTRAP_SERVERS")
	}
	return nil
}

// ValidateProcessor checks the settings the processor cannot start without.
func (c *Config) ValidateProcessor() error {
	if len(c.Kafka.BrokerList()) == 0 {
		return fmt.Errorf("no kafka brokers configured, set KAFKA_BOOTSTRAP_SERVERS")
	}
	if c.Processor.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.Processor.BatchSize)
	}
	return nil
}
