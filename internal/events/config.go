package events

import (
	"github.com/reop/addressfinder/internal/config"
	"github.com/reop/addressfinder/internal/logger"
)

// FromConfig builds the publisher for the configured bridge targets. With
// nothing configured updates are dropped.
func FromConfig(cfg config.BridgeConfig) Publisher {
	log := logger.GetLogger("events")

	var pubs Multi
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic != "" {
		pubs = append(pubs, NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaBatchTimeout))
		log.Infof("Kafka session bridge 활성화 (topic=%s, brokers=%v)", cfg.KafkaTopic, cfg.KafkaBrokers)
	}
	if cfg.HTTPURL != "" {
		pubs = append(pubs, NewHTTPPublisher(cfg.HTTPURL, cfg.APIKey))
		log.Infof("HTTP session bridge 활성화 (url=%s)", cfg.HTTPURL)
	}

	switch len(pubs) {
	case 0:
		log.Info("세션 bridge 비활성화: 업데이트는 전송되지 않습니다")
		return Noop{}
	case 1:
		return pubs[0]
	default:
		return pubs
	}
}
