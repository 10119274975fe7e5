package broker

import (
	"fmt"
	"strings"
	"time"

	"github.com/monorkin/nightscout-watch-monitor/nightscout/watch"
)

const (
	DEFAULT_EXCHANGE   = "nightscout.watch"
	ROUTING_KEY_PREFIX = "entry."
	routingKeyReplacer = "_"
)

// WatchEntryMessage is the body published for every newly stored entry.
type WatchEntryMessage struct {
	Site        string           `json:"site"`
	URL         string           `json:"url"`
	PublishedAt time.Time        `json:"publishedAt"`
	Entry       watch.WatchEntry `json:"entry"`
}

type Publisher interface {
	PublishWatchEntry(site, url string, entry watch.WatchEntry) error
}

type msgPublisher struct {
	amqp     Messaging
	exchange string
	clock    func() time.Time
}

func NewMsgPublisher(amqp Messaging, exchange string) Publisher {
	if exchange == "" {
		exchange = DEFAULT_EXCHANGE
	}

	return &msgPublisher{amqp: amqp, exchange: exchange, clock: time.Now}
}

func (mp *msgPublisher) PublishWatchEntry(site, url string, entry watch.WatchEntry) error {
	message := WatchEntryMessage{
		Site:        site,
		URL:         url,
		PublishedAt: mp.clock().UTC(),
		Entry:       entry,
	}

	err := mp.amqp.PublishPersistentMessage(mp.exchange, EXCHANGE_TYPE_TOPIC, RoutingKey(site), message)
	if err != nil {
		return fmt.Errorf("failed to publish entry for %s: %w", site, err)
	}

	return nil
}

// RoutingKey turns a site name into a single topic word, since dots and
// wildcards separate words in topic exchanges.
func RoutingKey(site string) string {
	replacer := strings.NewReplacer(".", routingKeyReplacer, "*", routingKeyReplacer, "#", routingKeyReplacer, " ", routingKeyReplacer)
	return ROUTING_KEY_PREFIX + replacer.Replace(strings.ToLower(strings.TrimSpace(site)))
}
