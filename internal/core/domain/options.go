package domain

import (
	"net/url"
	"strconv"
)

// Options is the explicit option bag passed alongside an extraction request.
// Extractors and post-processors each read only the subset they recognize;
// unrecognized query keys are silently dropped by OptionsFromQuery.
type Options struct {
	Download       bool `json:"download,omitempty"`
	HD             bool `json:"hd,omitempty"`
	AudioOnly      bool `json:"audio_only,omitempty"`
	Transcribe     bool `json:"transcribe,omitempty"`
	StoreDocument  bool `json:"store_document,omitempty"`
	StoreTelegraph bool `json:"store_telegraph,omitempty"`
	StoreDatabase  bool `json:"store_database,omitempty"`
}

// optionSetters maps the recognized option keys to their struct fields.
var optionSetters = map[string]func(*Options, bool){
	"download":        func(o *Options, v bool) { o.Download = v },
	"hd":              func(o *Options, v bool) { o.HD = v },
	"audio_only":      func(o *Options, v bool) { o.AudioOnly = v },
	"transcribe":      func(o *Options, v bool) { o.Transcribe = v },
	"store_document":  func(o *Options, v bool) { o.StoreDocument = v },
	"store_telegraph": func(o *Options, v bool) { o.StoreTelegraph = v },
	"store_database":  func(o *Options, v bool) { o.StoreDatabase = v },
}

// OptionsFromQuery builds an Options struct from request query values.
// authParam names the shared-secret query key and is never interpreted as an
// option, so a URL carrying only the auth key yields the zero Options.
func OptionsFromQuery(values url.Values, authParam string) Options {
	var opts Options

	for key, vals := range values {
		if key == authParam || len(vals) == 0 {
			continue
		}

		setter, ok := optionSetters[key]
		if !ok {
			continue
		}

		parsed, err := strconv.ParseBool(vals[0])
		if err != nil {
			continue
		}

		setter(&opts, parsed)
	}

	return opts
}

// Values renders the options back into query values, omitting false flags.
func (o Options) Values() url.Values {
	values := url.Values{}

	set := func(key string, v bool) {
		if v {
			values.Set(key, "true")
		}
	}

	set("download", o.Download)
	set("hd", o.HD)
	set("audio_only", o.AudioOnly)
	set("transcribe", o.Transcribe)
	set("store_document", o.StoreDocument)
	set("store_telegraph", o.StoreTelegraph)
	set("store_database", o.StoreDatabase)

	return values
}
