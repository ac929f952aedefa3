package pipeline

import (
	"github.com/sony/gobreaker"

	"github.com/deep1283/signalwatch/pkg/registry"
)

// buildAdapters constructs a Source for every enabled, implemented
// registry entry. Entries switched off in config are skipped without a
// log line; an enabled entry with no builder, or whose builder declines,
// is logged at info as source_disabled with the reason.
func (p *Pipeline) buildAdapters() (map[string]registry.Source, map[string]*gobreaker.CircuitBreaker) {
	adapters := make(map[string]registry.Source)
	breakers := make(map[string]*gobreaker.CircuitBreaker)

	for _, def := range registry.Definitions {
		if !p.cfg.IsSourceEnabled(def.Key) {
			continue
		}

		if def.Builder == nil {
			p.logger.Info("source_disabled", "source", def.Key, "reason", "unsupported_adapter")
			continue
		}

		source, reason := def.Builder(p.httpCli, p.deps)
		if source == nil {
			if reason == "" {
				reason = "missing_credentials"
			}
			p.logger.Info("source_disabled", "source", def.Key, "reason", reason)
			continue
		}

		adapters[def.Key] = source
		breakers[def.Key] = newBreaker(def.Key)
	}

	return adapters, breakers
}
