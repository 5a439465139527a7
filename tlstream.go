// Package tlstream streams translations from a hosted language model to a
// browser client and caches finished translations.
//
// A Translator derives a deterministic cache key for each request, replays a
// cached translation when one exists, and otherwise streams the model output
// through a StreamWriter while accumulating the full text for the cache.
// Cache failures never fail a translation.
//
// Basic usage:
//
//	import (
//	    "github.com/ZaguanLabs/tlstream"
//	    "github.com/ZaguanLabs/tlstream/cache"
//	    "github.com/ZaguanLabs/tlstream/provider"
//	    "github.com/ZaguanLabs/tlstream/stream"
//	)
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    p := provider.NewOpenAIProvider(provider.OpenAIConfig{
//	        APIKey: os.Getenv("OPENAI_API_KEY"),
//	    })
//
//	    t := tlstream.NewTranslator(p,
//	        tlstream.WithCache(cache.NewInMemoryStore()),
//	    )
//
//	    sw := stream.NewDataStreamWriter(w)
//	    _, _ = t.Translate(r.Context(), tlstream.TranslationRequest{
//	        Text:           "Hello World",
//	        SourceLanguage: "en",
//	        TargetLanguage: "ja",
//	    }, sw)
//	}
package tlstream
