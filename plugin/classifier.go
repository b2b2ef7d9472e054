package plugin

import (
	"github.com/tidwall/gjson"

	"github.com/lcx/keel/codec"
	"github.com/lcx/keel/log"
)

// classify decides whether raw candidate bytes are a matching plugin
// manifest. JSON candidates are probed structurally first so obviously
// non-matching documents are discarded without a full decode; YAML
// candidates go straight to decode. Candidates without the plugin marker and
// undecodable documents yield (nil, nil); a marked document that decodes but
// fails validation is an error.
func classify(name string, data []byte, f *Finder) (*Declaration, error) {
	marked := true
	if _, ok := codec.Sniff(data).(*codec.JSONCodec); ok {
		probe, reject := probeJSON(data, f)
		if reject {
			return nil, nil
		}
		marked = probe
	}

	d, err := DecodeManifest(name, data)
	if err != nil {
		if !marked {
			return nil, nil
		}
		log.Warn().Str("candidate", name).Err(err).Msg("manifest decode failed, skipped")
		return nil, nil
	}
	if d == nil {
		return nil, nil
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if !f.Matches(d) {
		return nil, nil
	}
	return d, nil
}

// probeJSON checks the marker and the cheap scalar criteria against the raw
// document. It reports whether the marker is present and whether the
// document can already be rejected.
func probeJSON(data []byte, f *Finder) (marked bool, reject bool) {
	root := gjson.GetBytes(data, "plugin")
	if !root.IsObject() {
		return false, true
	}
	class := root.Get("class")
	if !class.Exists() || class.String() == "" {
		return true, true
	}

	if len(f.names) > 0 {
		name := root.Get("name").String()
		if name == "" {
			name = class.String()
		}
		if !containsString(f.names, name, false) {
			return true, true
		}
	}
	if len(f.strategies) > 0 {
		strategy := root.Get("strategy").String()
		if strategy == "" {
			strategy = StrategyConstruct
		}
		if !containsString(f.strategies, strategy, false) {
			return true, true
		}
	}
	if len(f.descs) > 0 {
		if !containsString(f.descs, root.Get("description").String(), false) {
			return true, true
		}
	}
	if len(f.categories) > 0 {
		ok := false
		root.Get("categories").ForEach(func(_, v gjson.Result) bool {
			if containsString(f.categories, v.String(), true) {
				ok = true
				return false
			}
			return true
		})
		if !ok {
			return true, true
		}
	}
	return true, false
}
