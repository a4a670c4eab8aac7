package audit

import (
	"errors"

	"github.com/elastic/go-elasticsearch/v8"
)

type ElasticsearchConfig struct {
	Addresses []string
	Username  string
	Password  string
}

// NewElasticsearchClient builds the client used as the optional audit sink.
func NewElasticsearchClient(cfg ElasticsearchConfig) (*elasticsearch.Client, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.New("elasticsearch addresses are required")
	}
	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
}
