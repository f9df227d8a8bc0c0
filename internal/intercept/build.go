package intercept

import (
	"fmt"
	"regexp"

	"github.com/udisondev/pagelock/internal/config"
	"github.com/udisondev/pagelock/internal/keys"
)

// Resolvers are the network-backed key resolvers shared by the rules.
// A nil resolver disables the rules that need it.
type Resolvers struct {
	Tables  *keys.TableResolver
	Scripts *keys.ScriptResolver
}

// NewRules builds the enabled rules in match order: fragment and query
// indicators first, URL shape rules last.
func NewRules(cfg config.Pagelock, res Resolvers) ([]Rule, error) {
	var rules []Rule

	if cfg.SpeedBinb.Enabled {
		rules = append(rules, PtBinbRule{Tables: res.Tables})
	}
	if cfg.MagazinePocket.Enabled {
		rules = append(rules, ShuffleRule{})
	}
	if cfg.ComicFuz.Enabled {
		rules = append(rules, HexCipherRule{})
	}
	if cfg.ColaManga.Enabled {
		rules = append(rules, LiteralKeyRule{Scripts: res.Scripts})
	}
	if cfg.EgoToons.Enabled {
		pattern, err := regexp.Compile(cfg.EgoToons.URLPattern)
		if err != nil {
			return nil, fmt.Errorf("compiling egotoons url pattern: %w", err)
		}
		params, err := keys.PassphraseCipher(cfg.EgoToons.Passphrase, cfg.EgoToons.Salt, cfg.EgoToons.Iterations)
		if err != nil {
			return nil, fmt.Errorf("deriving egotoons key: %w", err)
		}
		rules = append(rules, GCMRule{Pattern: pattern, Params: params})
	}
	if cfg.KadoComi.Enabled {
		rules = append(rules, FragmentXORRule{Prefix: cfg.KadoComi.CDNPrefix})
	}
	if cfg.Nicovideo.Enabled {
		rules = append(rules, PathXORRule{})
	}
	if cfg.GigaViewer.Enabled && len(cfg.GigaViewer.CDNPrefixes) > 0 {
		rules = append(rules, GridRule{Prefixes: cfg.GigaViewer.CDNPrefixes})
	}

	return rules, nil
}
