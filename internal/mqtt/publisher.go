package mqtt

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"vehiclelookup/internal/attributes"
	"vehiclelookup/internal/coordinator"
)

// Publisher keeps the Home Assistant entities in sync with the
// coordinator.
type Publisher struct {
	broker Broker
	topics Topics
	logger *zap.Logger

	mu        sync.Mutex
	defs      []attributes.Definition
	announced map[string]bool
}

// NewPublisher creates a publisher for the built-in attribute set.
// Call Announce to change it.
func NewPublisher(broker Broker, topics Topics, logger *zap.Logger) *Publisher {
	return &Publisher{
		broker:    broker,
		topics:    topics,
		logger:    logger.Named("mqtt.publisher"),
		defs:      withDiagnostics(attributes.Supported()),
		announced: make(map[string]bool),
	}
}

func withDiagnostics(defs []attributes.Definition) []attributes.Definition {
	out := make([]attributes.Definition, 0, len(defs)+len(attributes.Diagnostics()))
	out = append(out, defs...)
	return append(out, attributes.Diagnostics()...)
}

// Announce publishes discovery for defs (plus diagnostics and the
// button) and removes entities announced earlier that are no longer
// present.
func (p *Publisher) Announce(defs []attributes.Definition) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	all := withDiagnostics(defs)
	announcements, err := Announcements(p.topics, all)
	if err != nil {
		return err
	}

	current := make(map[string]bool, len(announcements))
	var errs []error
	for _, a := range announcements {
		current[a.Topic] = true
		if err := p.broker.Publish(a.Topic, a.Payload, true); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", a.Topic, err))
		}
	}

	removed := 0
	for topic := range p.announced {
		if current[topic] {
			continue
		}
		if err := p.broker.Publish(topic, nil, true); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", topic, err))
			continue
		}
		removed++
	}

	p.defs = all
	p.announced = current

	p.logger.Info("Announced entities",
		zap.Int("entities", len(announcements)),
		zap.Int("removed", removed))

	if len(errs) > 0 {
		return fmt.Errorf("failed to announce %d entities: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// Definitions returns the announced definitions, diagnostics included.
func (p *Publisher) Definitions() []attributes.Definition {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]attributes.Definition(nil), p.defs...)
}

// PublishSnapshot publishes the state document and the raw response
// attributes for snap.
func (p *Publisher) PublishSnapshot(snap coordinator.Snapshot) error {
	p.mu.Lock()
	defs := p.defs
	p.mu.Unlock()

	state, err := StatePayload(snap.Values(defs))
	if err != nil {
		return err
	}
	if err := p.broker.Publish(p.topics.State(), state, true); err != nil {
		return fmt.Errorf("failed to publish state: %w", err)
	}

	raw, err := RawAttributesPayload(snap.RawJSON)
	if err != nil {
		return err
	}
	if err := p.broker.Publish(p.topics.RawAttributes(), raw, true); err != nil {
		return fmt.Errorf("failed to publish raw attributes: %w", err)
	}

	p.logger.Debug("Published state",
		zap.String("status", string(snap.Status)),
		zap.String("lookup_id", snap.LookupID))
	return nil
}

// HandleCommands subscribes to the command topics. lookup receives the
// trimmed payload of a lookup command (empty means the current number);
// refresh is called for every button press.
func (p *Publisher) HandleCommands(lookup func(number string), refresh func()) error {
	if err := p.broker.Subscribe(p.topics.LookupCommand(), func(_ string, payload []byte) {
		lookup(strings.TrimSpace(string(payload)))
	}); err != nil {
		return fmt.Errorf("failed to subscribe to lookup command: %w", err)
	}

	if err := p.broker.Subscribe(p.topics.RefreshCommand(), func(_ string, payload []byte) {
		if s := strings.TrimSpace(string(payload)); s != "" && s != payloadPress {
			p.logger.Warn("Ignoring unexpected button payload", zap.String("payload", s))
			return
		}
		refresh()
	}); err != nil {
		return fmt.Errorf("failed to subscribe to refresh command: %w", err)
	}
	return nil
}
