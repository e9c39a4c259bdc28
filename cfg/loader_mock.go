package cfg

type MockLoader struct{}

func NewMockLoader() (*MockLoader, error) {
	return &MockLoader{}, nil
}

func (ml *MockLoader) Load() (*Config, error) {
	return &Config{
		// App
		App: App{
			Name:    "gh-event-pipeline",
			Version: "0.0.1",
		},

		// Mysql
		Mysql: Mysql{
			Host:                  "127.0.0.1",
			Port:                  "3306",
			Username:              "root",
			Password:              "root",
			Database:              "github_analytics",
			MaxIdleConnection:     10,
			MaxOpenConnection:     100,
			MaxLifeTimeConnection: 3600,
		},

		// Github
		Github: Github{
			Tokens:            "test-token-1,test-token-2",
			EventsUrl:         "https://api.github.com/events",
			PerPage:           100,
			RequestsPerSecond: 5,
		},

		// Kafka
		Kafka: Kafka{
			Brokers:       "localhost:9092",
			Topic:         "github-events-raw",
			ConsumerGroup: "github-processor",
			OffsetReset:   "earliest",
			FlushTimeout:  10,
		},

		// Poller
		Poller: Poller{
			Interval:      10,
			MaxRetries:    3,
			RetryBase:     1,
			RetryMax:      60,
			DedupCapacity: 10000,
		},

		// Processor
		Processor: Processor{
			BatchSize:     100,
			FetchMaxWait:  1,
			StatsInterval: 30,
		},
	}, nil
}
